package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/repository"
)

// DeadlineReminder periodically scans open cases and logs a warning for any
// whose statutory deadline is near or already past. Logging is the delivery
// mechanism here; the records stay authoritative in the case table.
type DeadlineReminder struct {
	cases          repository.CaseRepository
	establishments repository.EstablishmentRepository
	logger         *zap.Logger
	interval       time.Duration
	warnWindow     time.Duration
}

// NewDeadlineReminder builds the reminder worker.
func NewDeadlineReminder(cases repository.CaseRepository, establishments repository.EstablishmentRepository, logger *zap.Logger, interval, warnWindow time.Duration) *DeadlineReminder {
	if interval <= 0 {
		interval = time.Hour
	}
	if warnWindow <= 0 {
		warnWindow = 72 * time.Hour
	}
	return &DeadlineReminder{
		cases:          cases,
		establishments: establishments,
		logger:         logger,
		interval:       interval,
		warnWindow:     warnWindow,
	}
}

// Run blocks until ctx is cancelled, sweeping on each tick.
func (w *DeadlineReminder) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *DeadlineReminder) sweep(ctx context.Context) {
	establishments, err := w.establishments.List(ctx, 500, 0)
	if err != nil {
		w.logger.Error("deadline sweep: listing establishments failed", zap.Error(err))
		return
	}

	now := time.Now()
	for _, est := range establishments {
		cases, err := w.cases.ListWithFilter(ctx, repository.CaseFilter{
			EstablishmentID: est.ID,
			OpenOnly:        true,
			Limit:           200,
		})
		if err != nil {
			w.logger.Error("deadline sweep: listing cases failed",
				zap.String("establishment_id", est.ID), zap.Error(err))
			continue
		}

		for _, kase := range cases {
			switch {
			case now.After(kase.FatalDeadline):
				w.logger.Warn("case past statutory deadline",
					zap.String("case_id", kase.ID),
					zap.String("establishment_id", est.ID),
					zap.String("stage", string(kase.Stage)),
					zap.Time("fatal_deadline", kase.FatalDeadline))
			case kase.FatalDeadline.Sub(now) <= w.warnWindow:
				w.logger.Warn("case approaching statutory deadline",
					zap.String("case_id", kase.ID),
					zap.String("establishment_id", est.ID),
					zap.String("stage", string(kase.Stage)),
					zap.Time("fatal_deadline", kase.FatalDeadline))
			}
		}
	}
}
