package domain

import "time"

const holidayDateLayout = "2006-01-02"

// Holiday is one non-working date from the official calendar. Waivable
// holidays may be worked by agreement, but both kinds interrupt statutory
// business-day counting.
type Holiday struct {
	Date     time.Time
	Name     string
	Waivable bool
}

// HolidayCalendar is an immutable snapshot of non-working dates covering the
// span of a deadline computation. The service only ever reads snapshots; the
// calendar itself is refreshed by a collaborator.
type HolidayCalendar struct {
	Version   string
	FetchedAt time.Time
	dates     map[string]Holiday
}

// NewHolidayCalendar builds a snapshot from the given holiday set.
func NewHolidayCalendar(version string, fetchedAt time.Time, holidays []Holiday) *HolidayCalendar {
	dates := make(map[string]Holiday, len(holidays))
	for _, h := range holidays {
		dates[h.Date.Format(holidayDateLayout)] = h
	}
	return &HolidayCalendar{Version: version, FetchedAt: fetchedAt, dates: dates}
}

// Contains reports whether t falls on a listed holiday, ignoring time of day.
func (c *HolidayCalendar) Contains(t time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c.dates[t.Format(holidayDateLayout)]
	return ok
}

// Empty reports whether the snapshot lists no dates at all.
func (c *HolidayCalendar) Empty() bool {
	return c == nil || len(c.dates) == 0
}

// Len returns the number of listed dates.
func (c *HolidayCalendar) Len() int {
	if c == nil {
		return 0
	}
	return len(c.dates)
}
