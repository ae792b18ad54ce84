package deadline_test

import (
	"testing"
	"time"

	"github.com/spec-kit/case-service/internal/deadline"
	"github.com/spec-kit/case-service/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestAddBusinessDaysSkipsWeekends(t *testing.T) {
	// Tue 2026-02-17 + 10 business days crosses two weekends.
	start := date(2026, time.February, 17)
	got := deadline.AddBusinessDays(start, 10, nil)
	want := date(2026, time.March, 3)
	if !got.Equal(want) {
		t.Fatalf("AddBusinessDays(%v, 10) = %v, want %v", start, got, want)
	}
}

func TestAddBusinessDaysSkipsHolidays(t *testing.T) {
	cal := domain.NewHolidayCalendar("2026", time.Now(), []domain.Holiday{
		{Date: date(2026, time.February, 18), Name: "regional holiday", Waivable: true},
		{Date: date(2026, time.February, 23), Name: "civic day", Waivable: false},
	})
	start := date(2026, time.February, 17)
	// Wed 18 and Mon 23 no longer count, pushing the landing date out two
	// working days regardless of waivability.
	got := deadline.AddBusinessDays(start, 10, cal)
	want := date(2026, time.March, 5)
	if !got.Equal(want) {
		t.Fatalf("AddBusinessDays with holidays = %v, want %v", got, want)
	}
}

func TestAddBusinessDaysDeterministic(t *testing.T) {
	cal := domain.NewHolidayCalendar("2026", time.Now(), []domain.Holiday{
		{Date: date(2026, time.May, 1), Name: "labour day"},
	})
	start := date(2026, time.April, 27)
	first := deadline.AddBusinessDays(start, 45, cal)
	second := deadline.AddBusinessDays(start, 45, cal)
	if !first.Equal(second) {
		t.Fatalf("AddBusinessDays not deterministic: %v vs %v", first, second)
	}
}

func TestAddBusinessDaysPreservesTimeOfDay(t *testing.T) {
	start := time.Date(2026, time.February, 17, 16, 45, 12, 0, time.UTC)
	got := deadline.AddBusinessDays(start, 1, nil)
	if got.Hour() != 16 || got.Minute() != 45 || got.Second() != 12 {
		t.Fatalf("time of day not preserved: %v", got)
	}
}

func TestComputeFatalDeadlineMinorIsElapsedHours(t *testing.T) {
	// Friday: minor severity uses calendar arithmetic, not business days.
	start := time.Date(2026, time.February, 20, 11, 0, 0, 0, time.UTC)
	res := deadline.ComputeFatalDeadline(start, domain.SeverityMinor, nil)
	want := start.Add(24 * time.Hour)
	if !res.Deadline.Equal(want) {
		t.Fatalf("minor deadline = %v, want %v", res.Deadline, want)
	}
	if res.Degraded {
		t.Fatal("minor deadline must never be degraded")
	}
}

func TestComputeFatalDeadlineSevereExpulsion(t *testing.T) {
	cal := domain.NewHolidayCalendar("2026", time.Now(), []domain.Holiday{
		{Date: date(2026, time.February, 25), Name: "holiday"},
	})
	start := date(2026, time.February, 17)
	res := deadline.ComputeFatalDeadline(start, domain.SeveritySevereExpulsion, cal)
	want := date(2026, time.March, 4)
	if !res.Deadline.Equal(want) {
		t.Fatalf("severe deadline = %v, want %v", res.Deadline, want)
	}
	if res.Degraded {
		t.Fatal("deadline with calendar should not be degraded")
	}
}

func TestComputeFatalDeadlineDegradedWithoutCalendar(t *testing.T) {
	start := date(2026, time.February, 17)
	res := deadline.ComputeFatalDeadline(start, domain.SeverityRelevant, nil)
	if !res.Degraded {
		t.Fatal("expected degraded result without calendar")
	}
	if res.Deadline.IsZero() {
		t.Fatal("degraded computation must still produce a date")
	}
	// Weekday-only fallback must match an explicit empty calendar.
	empty := domain.NewHolidayCalendar("", time.Now(), nil)
	alt := deadline.ComputeFatalDeadline(start, domain.SeverityRelevant, empty)
	if !res.Deadline.Equal(alt.Deadline) {
		t.Fatalf("nil and empty calendars disagree: %v vs %v", res.Deadline, alt.Deadline)
	}
}

func TestComputeReconsiderationDeadline(t *testing.T) {
	enteredAt := date(2026, time.March, 2) // Monday
	res := deadline.ComputeReconsiderationDeadline(enteredAt, nil)
	want := date(2026, time.March, 23)
	if !res.Deadline.Equal(want) {
		t.Fatalf("reconsideration deadline = %v, want %v", res.Deadline, want)
	}
}
