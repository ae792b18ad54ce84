package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/case-service/internal/domain"
	apperrors "github.com/spec-kit/case-service/pkg/util"
)

// MediationRepository handles persistence for mediation records. Closure is
// committed through CommitClosure, which composes the mediation update, the
// case transition and the audit entry in one transaction.
type MediationRepository interface {
	Create(ctx context.Context, mediation *domain.Mediation) error
	GetByID(ctx context.Context, establishmentID, id string) (*domain.Mediation, error)
	GetByCase(ctx context.Context, establishmentID, caseID string) (*domain.Mediation, error)
	Update(ctx context.Context, mediation *domain.Mediation, expectedVersion int64) error
	CommitClosure(ctx context.Context, mediation *domain.Mediation, expectedMediationVersion int64,
		kase *domain.Case, expectedCaseVersion int64, entry *domain.AuditEntry) error
}

type mediationRepository struct {
	pool *pgxpool.Pool
}

// NewMediationRepository instantiates the repository.
func NewMediationRepository(pool *pgxpool.Pool) MediationRepository {
	return &mediationRepository{pool: pool}
}

const mediationColumns = `id, case_id, establishment_id, step, outcome, commitments, version, created_at, updated_at, confirmed_at`

func (r *mediationRepository) Create(ctx context.Context, mediation *domain.Mediation) error {
	commitments, err := marshalCommitments(mediation.Commitments)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO mediations (case_id, establishment_id, step, outcome, commitments)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		mediation.CaseID,
		mediation.EstablishmentID,
		mediation.Step,
		mediation.Outcome,
		commitments,
	).Scan(&mediation.ID, &mediation.Version, &mediation.CreatedAt, &mediation.UpdatedAt)
}

func (r *mediationRepository) GetByID(ctx context.Context, establishmentID, id string) (*domain.Mediation, error) {
	const query = `
        SELECT ` + mediationColumns + `
        FROM mediations WHERE establishment_id=$1 AND id=$2`
	return r.fetchSingle(ctx, query, establishmentID, id)
}

func (r *mediationRepository) GetByCase(ctx context.Context, establishmentID, caseID string) (*domain.Mediation, error) {
	const query = `
        SELECT ` + mediationColumns + `
        FROM mediations WHERE establishment_id=$1 AND case_id=$2`
	return r.fetchSingle(ctx, query, establishmentID, caseID)
}

func (r *mediationRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Mediation, error) {
	var mediation domain.Mediation
	var step string
	var outcome *string
	var commitments []byte
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&mediation.ID,
		&mediation.CaseID,
		&mediation.EstablishmentID,
		&step,
		&outcome,
		&commitments,
		&mediation.Version,
		&mediation.CreatedAt,
		&mediation.UpdatedAt,
		&mediation.ConfirmedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("mediation", nil)
		}
		return nil, err
	}
	mediation.Step = domain.MediationStep(step)
	if !domain.ValidMediationStep(mediation.Step) {
		return nil, apperrors.NewInternalError(nil)
	}
	if outcome != nil {
		v := domain.MediationOutcome(*outcome)
		mediation.Outcome = &v
	}
	if err := unmarshalCommitments(commitments, &mediation.Commitments); err != nil {
		return nil, err
	}
	return &mediation, nil
}

// Update persists workflow progress (step, outcome, draft commitments) under
// the optimistic version precondition.
func (r *mediationRepository) Update(ctx context.Context, mediation *domain.Mediation, expectedVersion int64) error {
	commitments, err := marshalCommitments(mediation.Commitments)
	if err != nil {
		return err
	}
	const query = `
        UPDATE mediations
        SET step=$1, outcome=$2, commitments=$3, version=version+1, updated_at=NOW()
        WHERE id=$4 AND establishment_id=$5 AND version=$6
        RETURNING version, updated_at`
	err = r.pool.QueryRow(ctx, query,
		mediation.Step,
		mediation.Outcome,
		commitments,
		mediation.ID,
		mediation.EstablishmentID,
		expectedVersion,
	).Scan(&mediation.Version, &mediation.UpdatedAt)
	if err == pgx.ErrNoRows {
		return apperrors.NewConflict("mediation version mismatch", map[string]any{
			"mediation_id":     mediation.ID,
			"expected_version": expectedVersion,
		})
	}
	if err != nil {
		return apperrors.NewPersistenceFailure(err)
	}
	return nil
}

// CommitClosure writes the mediation outcome, its commitments, the parent
// case's stage and outcome and the audit entry as one atomic unit. Either
// version precondition failing aborts the whole commit with Conflict.
func (r *mediationRepository) CommitClosure(ctx context.Context, mediation *domain.Mediation, expectedMediationVersion int64,
	kase *domain.Case, expectedCaseVersion int64, entry *domain.AuditEntry) error {

	commitments, err := marshalCommitments(mediation.Commitments)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewPersistenceFailure(err)
	}
	defer tx.Rollback(ctx)

	const update = `
        UPDATE mediations
        SET step=$1, outcome=$2, commitments=$3, confirmed_at=NOW(), version=version+1, updated_at=NOW()
        WHERE id=$4 AND establishment_id=$5 AND version=$6
        RETURNING version, updated_at, confirmed_at`
	err = tx.QueryRow(ctx, update,
		mediation.Step,
		mediation.Outcome,
		commitments,
		mediation.ID,
		mediation.EstablishmentID,
		expectedMediationVersion,
	).Scan(&mediation.Version, &mediation.UpdatedAt, &mediation.ConfirmedAt)
	if err == pgx.ErrNoRows {
		return apperrors.NewConflict("mediation version mismatch", map[string]any{
			"mediation_id":     mediation.ID,
			"expected_version": expectedMediationVersion,
		})
	}
	if err != nil {
		return apperrors.NewPersistenceFailure(err)
	}

	if err := commitCaseTx(ctx, tx, kase, expectedCaseVersion, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewPersistenceFailure(err)
	}
	return nil
}

func marshalCommitments(commitments []domain.Commitment) ([]byte, error) {
	if commitments == nil {
		commitments = []domain.Commitment{}
	}
	data, err := json.Marshal(commitments)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return data, nil
}

func unmarshalCommitments(data []byte, out *[]domain.Commitment) error {
	if len(data) == 0 {
		*out = nil
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}
