package holiday

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/domain"
)

type stubHolidayRepo struct {
	holidays    []domain.Holiday
	refreshedAt time.Time
	err         error
	listedYears []int
}

func (r *stubHolidayRepo) ListByYears(_ context.Context, years []int) ([]domain.Holiday, error) {
	r.listedYears = years
	if r.err != nil {
		return nil, r.err
	}
	return r.holidays, nil
}

func (r *stubHolidayRepo) LastRefreshedAt(_ context.Context) (time.Time, error) {
	if r.err != nil {
		return time.Time{}, r.err
	}
	return r.refreshedAt, nil
}

func newSource(repo *stubHolidayRepo, now time.Time) *CalendarSource {
	src := NewCalendarSource(repo, nil, time.Hour, 400*24*time.Hour, zap.NewNop())
	src.Now = func() time.Time { return now }
	return src
}

func TestCalendarForSpansTwoYears(t *testing.T) {
	now := time.Date(2026, time.November, 10, 12, 0, 0, 0, time.UTC)
	repo := &stubHolidayRepo{
		holidays: []domain.Holiday{
			{Date: time.Date(2026, time.December, 25, 0, 0, 0, 0, time.UTC), Name: "Christmas Day"},
			{Date: time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC), Name: "New Year's Day"},
		},
		refreshedAt: now.Add(-time.Hour),
	}

	cal, err := newSource(repo, now).CalendarFor(context.Background(), now)
	if err != nil {
		t.Fatalf("CalendarFor: %v", err)
	}
	if len(repo.listedYears) != 2 || repo.listedYears[0] != 2026 || repo.listedYears[1] != 2027 {
		t.Fatalf("listed years = %v, want [2026 2027]", repo.listedYears)
	}
	if cal.Len() != 2 {
		t.Fatalf("calendar dates = %d, want 2", cal.Len())
	}
	if !cal.Contains(time.Date(2027, time.January, 1, 15, 30, 0, 0, time.UTC)) {
		t.Fatal("calendar should match the date regardless of time of day")
	}
}

func TestCalendarForEmptyIsUnavailable(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	repo := &stubHolidayRepo{refreshedAt: now}

	_, err := newSource(repo, now).CalendarFor(context.Background(), now)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestCalendarForStaleIsUnavailable(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	repo := &stubHolidayRepo{
		holidays:    []domain.Holiday{{Date: time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC), Name: "Labour Day"}},
		refreshedAt: now.Add(-401 * 24 * time.Hour),
	}

	_, err := newSource(repo, now).CalendarFor(context.Background(), now)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable for stale calendar", err)
	}
}

func TestCalendarForRepoError(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	repo := &stubHolidayRepo{err: errors.New("connection refused")}

	_, err := newSource(repo, now).CalendarFor(context.Background(), now)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable on repo failure", err)
	}
}
