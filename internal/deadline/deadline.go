// Package deadline computes statutory case deadlines. All functions are pure:
// identical inputs yield identical results and no wall clock is read inside.
package deadline

import (
	"time"

	"github.com/spec-kit/case-service/internal/domain"
)

// Business-day spans fixed by regulation.
const (
	relevantDays        = 45
	severeExpulsionDays = 10
	reconsiderationDays = 15
)

// Result is a computed deadline. Degraded marks a computation that fell back
// to weekday-only skipping because no usable holiday calendar was available.
// Degraded is a warning for the caller, never an error.
type Result struct {
	Deadline time.Time
	Degraded bool
}

// ComputeFatalDeadline derives the statutory resolution deadline for a case
// opened at start. Minor cases get 24 elapsed hours regardless of weekday;
// the other severities count business days against the calendar.
func ComputeFatalDeadline(start time.Time, severity domain.CaseSeverity, cal *domain.HolidayCalendar) Result {
	switch severity {
	case domain.SeverityMinor:
		return Result{Deadline: start.Add(24 * time.Hour)}
	case domain.SeveritySevereExpulsion:
		return Result{Deadline: AddBusinessDays(start, severeExpulsionDays, cal), Degraded: cal.Empty()}
	default:
		return Result{Deadline: AddBusinessDays(start, relevantDays, cal), Degraded: cal.Empty()}
	}
}

// ComputeReconsiderationDeadline derives the appeal-stage deadline from the
// moment the case entered Reconsideration.
func ComputeReconsiderationDeadline(enteredAt time.Time, cal *domain.HolidayCalendar) Result {
	return Result{Deadline: AddBusinessDays(enteredAt, reconsiderationDays, cal), Degraded: cal.Empty()}
}

// AddBusinessDays advances start one calendar day at a time until n working
// days have elapsed. A day counts only if it is not Saturday, not Sunday and
// not listed in cal; every calendar entry interrupts counting, waivable or
// not. A nil or empty calendar skips weekends only.
func AddBusinessDays(start time.Time, n int, cal *domain.HolidayCalendar) time.Time {
	t := start
	for counted := 0; counted < n; {
		t = t.AddDate(0, 0, 1)
		if businessDay(t, cal) {
			counted++
		}
	}
	return t
}

func businessDay(t time.Time, cal *domain.HolidayCalendar) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !cal.Contains(t)
}
