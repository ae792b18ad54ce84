// Package holiday supplies immutable holiday-calendar snapshots for deadline
// computation. Snapshots come from the ingested postgres calendar with a
// redis cache in front; an unreachable or stale calendar yields
// ErrUnavailable so that callers fall back to degraded weekday-only counting.
package holiday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/repository"
)

// ErrUnavailable signals that no usable calendar snapshot exists. It is a
// warning condition: deadline computation continues without holiday data.
var ErrUnavailable = errors.New("holiday calendar unavailable")

// Source yields a calendar snapshot covering a deadline computation that
// starts at the given date.
type Source interface {
	CalendarFor(ctx context.Context, start time.Time) (*domain.HolidayCalendar, error)
}

// CalendarSource reads the holiday table, caching per-year snapshots in redis.
type CalendarSource struct {
	repo     repository.HolidayRepository
	cache    *redis.Client
	cacheTTL time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
	Now      func() time.Time
}

// NewCalendarSource builds the source. cache may be nil; caching is then
// skipped entirely.
func NewCalendarSource(repo repository.HolidayRepository, cache *redis.Client, cacheTTL, maxAge time.Duration, logger *zap.Logger) *CalendarSource {
	return &CalendarSource{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		maxAge:   maxAge,
		logger:   logger,
		Now:      time.Now,
	}
}

type cachedSnapshot struct {
	Holidays    []cachedHoliday `json:"holidays"`
	RefreshedAt time.Time       `json:"refreshed_at"`
}

type cachedHoliday struct {
	Date     time.Time `json:"date"`
	Name     string    `json:"name"`
	Waivable bool      `json:"waivable"`
}

// CalendarFor returns a snapshot spanning the start year and the following
// one, enough to cover the longest statutory business-day count. A snapshot
// with no dates or one not refreshed within the staleness bound is treated
// as unavailable.
func (s *CalendarSource) CalendarFor(ctx context.Context, start time.Time) (*domain.HolidayCalendar, error) {
	years := []int{start.Year(), start.Year() + 1}

	snapshot, err := s.load(ctx, years)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(snapshot.Holidays) == 0 {
		return nil, fmt.Errorf("%w: no dates for years %v", ErrUnavailable, years)
	}
	if s.maxAge > 0 && s.Now().Sub(snapshot.RefreshedAt) > s.maxAge {
		return nil, fmt.Errorf("%w: snapshot stale since %s", ErrUnavailable, snapshot.RefreshedAt.Format(time.RFC3339))
	}

	holidays := make([]domain.Holiday, 0, len(snapshot.Holidays))
	for _, h := range snapshot.Holidays {
		holidays = append(holidays, domain.Holiday{Date: h.Date, Name: h.Name, Waivable: h.Waivable})
	}
	version := fmt.Sprintf("%d-%d@%d", years[0], years[1], snapshot.RefreshedAt.Unix())
	return domain.NewHolidayCalendar(version, snapshot.RefreshedAt, holidays), nil
}

func (s *CalendarSource) load(ctx context.Context, years []int) (*cachedSnapshot, error) {
	key := s.cacheKey(years)
	if cached := s.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	holidays, err := s.repo.ListByYears(ctx, years)
	if err != nil {
		return nil, err
	}
	refreshedAt, err := s.repo.LastRefreshedAt(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &cachedSnapshot{RefreshedAt: refreshedAt}
	for _, h := range holidays {
		snapshot.Holidays = append(snapshot.Holidays, cachedHoliday{Date: h.Date, Name: h.Name, Waivable: h.Waivable})
	}
	s.toCache(ctx, key, snapshot)
	return snapshot, nil
}

func (s *CalendarSource) cacheKey(years []int) string {
	return fmt.Sprintf("holidays:v1:%d-%d", years[0], years[len(years)-1])
}

func (s *CalendarSource) fromCache(ctx context.Context, key string) *cachedSnapshot {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil && s.logger != nil {
			s.logger.Warn("holiday cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	var snapshot cachedSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		if s.logger != nil {
			s.logger.Warn("holiday cache entry corrupt", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	return &snapshot
}

func (s *CalendarSource) toCache(ctx context.Context, key string, snapshot *cachedSnapshot) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.Warn("holiday cache write failed", zap.String("key", key), zap.Error(err))
	}
}
