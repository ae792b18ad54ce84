package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/case-service/internal/domain"
)

// HolidayRepository reads the ingested holiday calendar. The service never
// authors holidays; rows arrive through migrations or an external refresher.
type HolidayRepository interface {
	ListByYears(ctx context.Context, years []int) ([]domain.Holiday, error)
	LastRefreshedAt(ctx context.Context) (time.Time, error)
}

type holidayRepository struct {
	pool *pgxpool.Pool
}

// NewHolidayRepository instantiates the repository.
func NewHolidayRepository(pool *pgxpool.Pool) HolidayRepository {
	return &holidayRepository{pool: pool}
}

func (r *holidayRepository) ListByYears(ctx context.Context, years []int) ([]domain.Holiday, error) {
	const query = `
        SELECT holiday_date, name, waivable
        FROM holiday_calendar
        WHERE EXTRACT(YEAR FROM holiday_date) = ANY($1)
        ORDER BY holiday_date ASC`
	rows, err := r.pool.Query(ctx, query, years)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Holiday
	for rows.Next() {
		var h domain.Holiday
		if err := rows.Scan(&h.Date, &h.Name, &h.Waivable); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

func (r *holidayRepository) LastRefreshedAt(ctx context.Context) (time.Time, error) {
	const query = `SELECT MAX(refreshed_at) FROM holiday_calendar`
	var refreshed *time.Time
	if err := r.pool.QueryRow(ctx, query).Scan(&refreshed); err != nil && err != pgx.ErrNoRows {
		return time.Time{}, err
	}
	if refreshed == nil {
		return time.Time{}, nil
	}
	return *refreshed, nil
}
