package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/case-service/internal/domain"
)

// EstablishmentRepository reads tenant records for scoping and validation.
type EstablishmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Establishment, error)
	List(ctx context.Context, limit, offset int) ([]domain.Establishment, error)
}

type establishmentRepository struct {
	pool *pgxpool.Pool
}

// NewEstablishmentRepository instantiates the repository.
func NewEstablishmentRepository(pool *pgxpool.Pool) EstablishmentRepository {
	return &establishmentRepository{pool: pool}
}

func (r *establishmentRepository) GetByID(ctx context.Context, id string) (*domain.Establishment, error) {
	const query = `
        SELECT id, name, commune, is_active, created_at, updated_at
        FROM establishments WHERE id=$1`
	var est domain.Establishment
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&est.ID,
		&est.Name,
		&est.Commune,
		&est.IsActive,
		&est.CreatedAt,
		&est.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &est, nil
}

func (r *establishmentRepository) List(ctx context.Context, limit, offset int) ([]domain.Establishment, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, name, commune, is_active, created_at, updated_at
        FROM establishments ORDER BY name ASC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Establishment
	for rows.Next() {
		var est domain.Establishment
		if err := rows.Scan(
			&est.ID,
			&est.Name,
			&est.Commune,
			&est.IsActive,
			&est.CreatedAt,
			&est.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, est)
	}
	return result, rows.Err()
}
