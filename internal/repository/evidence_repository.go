package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/case-service/internal/domain"
)

// EvidenceRepository stores metadata references to externally stored files.
type EvidenceRepository interface {
	Create(ctx context.Context, evidence *domain.EvidenceReference) error
	ListByCase(ctx context.Context, caseID string) ([]domain.EvidenceReference, error)
}

type evidenceRepository struct {
	pool *pgxpool.Pool
}

// NewEvidenceRepository builds repository.
func NewEvidenceRepository(pool *pgxpool.Pool) EvidenceRepository {
	return &evidenceRepository{pool: pool}
}

func (r *evidenceRepository) Create(ctx context.Context, evidence *domain.EvidenceReference) error {
	const query = `
        INSERT INTO evidence_references (case_id, uploaded_by, storage_key, file_name, mime_type, size_bytes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		evidence.CaseID,
		evidence.UploadedBy,
		evidence.StorageKey,
		evidence.FileName,
		evidence.MimeType,
		evidence.SizeBytes,
	).Scan(&evidence.ID, &evidence.CreatedAt)
}

func (r *evidenceRepository) ListByCase(ctx context.Context, caseID string) ([]domain.EvidenceReference, error) {
	const query = `
        SELECT id, case_id, uploaded_by, storage_key, file_name, mime_type, size_bytes, created_at
        FROM evidence_references WHERE case_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EvidenceReference
	for rows.Next() {
		var evidence domain.EvidenceReference
		if err := rows.Scan(
			&evidence.ID,
			&evidence.CaseID,
			&evidence.UploadedBy,
			&evidence.StorageKey,
			&evidence.FileName,
			&evidence.MimeType,
			&evidence.SizeBytes,
			&evidence.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, evidence)
	}
	return result, rows.Err()
}
