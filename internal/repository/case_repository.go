package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/case-service/internal/domain"
	apperrors "github.com/spec-kit/case-service/pkg/util"
)

// CaseFilter captures case listing parameters. EstablishmentID is mandatory:
// every read is tenant-scoped explicitly.
type CaseFilter struct {
	EstablishmentID string
	StudentID       *string
	Stages          []domain.CaseStage
	Severities      []domain.CaseSeverity
	OpenOnly        bool
	Limit           int
	Offset          int
}

// CaseRepository encapsulates case persistence. CommitTransition is the only
// write path for stage changes; it applies the optimistic version
// precondition and appends the audit entry in the same transaction.
type CaseRepository interface {
	Create(ctx context.Context, kase *domain.Case) error
	GetByID(ctx context.Context, establishmentID, id string) (*domain.Case, error)
	GetByExternalKey(ctx context.Context, establishmentID, key string) (*domain.Case, error)
	ListWithFilter(ctx context.Context, filter CaseFilter) ([]domain.Case, error)
	CommitTransition(ctx context.Context, kase *domain.Case, expectedVersion int64, entry *domain.AuditEntry) error
	ListAudit(ctx context.Context, establishmentID, caseID string) ([]domain.AuditEntry, error)
}

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository instantiates repository.
func NewCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &caseRepository{pool: pool}
}

const caseColumns = `id, external_key, establishment_id, student_id, reported_by_id, title, description,
               severity, stage, outcome, opened_at, fatal_deadline, deadline_degraded,
               reconsideration_deadline, version, created_at, updated_at, closed_at`

func (r *caseRepository) Create(ctx context.Context, kase *domain.Case) error {
	const query = `
        INSERT INTO cases (external_key, establishment_id, student_id, reported_by_id, title, description,
                           severity, stage, outcome, opened_at, fatal_deadline, deadline_degraded, reconsideration_deadline)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		kase.ExternalKey,
		kase.EstablishmentID,
		kase.StudentID,
		kase.ReportedByID,
		kase.Title,
		kase.Description,
		kase.Severity,
		kase.Stage,
		kase.Outcome,
		kase.OpenedAt,
		kase.FatalDeadline,
		kase.DeadlineDegraded,
		kase.ReconsiderationDeadline,
	).Scan(&kase.ID, &kase.Version, &kase.CreatedAt, &kase.UpdatedAt)
}

func (r *caseRepository) GetByID(ctx context.Context, establishmentID, id string) (*domain.Case, error) {
	query := fmt.Sprintf(`SELECT %s FROM cases WHERE establishment_id=$1 AND id=$2`, caseColumns)
	return r.fetchSingle(ctx, query, establishmentID, id)
}

func (r *caseRepository) GetByExternalKey(ctx context.Context, establishmentID, key string) (*domain.Case, error) {
	query := fmt.Sprintf(`SELECT %s FROM cases WHERE establishment_id=$1 AND external_key=$2`, caseColumns)
	return r.fetchSingle(ctx, query, establishmentID, key)
}

func (r *caseRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Case, error) {
	var kase domain.Case
	if err := scanCase(r.pool.QueryRow(ctx, query, args...), &kase); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("case", nil)
		}
		return nil, err
	}
	return &kase, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner, kase *domain.Case) error {
	var severity, stage string
	var outcome *string
	if err := row.Scan(
		&kase.ID,
		&kase.ExternalKey,
		&kase.EstablishmentID,
		&kase.StudentID,
		&kase.ReportedByID,
		&kase.Title,
		&kase.Description,
		&severity,
		&stage,
		&outcome,
		&kase.OpenedAt,
		&kase.FatalDeadline,
		&kase.DeadlineDegraded,
		&kase.ReconsiderationDeadline,
		&kase.Version,
		&kase.CreatedAt,
		&kase.UpdatedAt,
		&kase.ClosedAt,
	); err != nil {
		return err
	}
	// Map stored strings into the exact enums; the engine never branches on
	// loosely typed values.
	kase.Severity = domain.CaseSeverity(severity)
	if !domain.ValidSeverity(kase.Severity) {
		return fmt.Errorf("case %s: unknown severity %q", kase.ID, severity)
	}
	kase.Stage = domain.CaseStage(stage)
	if !domain.ValidStage(kase.Stage) {
		return fmt.Errorf("case %s: unknown stage %q", kase.ID, stage)
	}
	if outcome != nil {
		v := domain.CaseOutcome(*outcome)
		kase.Outcome = &v
	}
	return nil
}

func (r *caseRepository) ListWithFilter(ctx context.Context, filter CaseFilter) ([]domain.Case, error) {
	base := fmt.Sprintf(`SELECT %s FROM cases`, caseColumns)
	args := []any{filter.EstablishmentID}
	clauses := []string{"establishment_id=$1"}

	if filter.StudentID != nil {
		args = append(args, *filter.StudentID)
		clauses = append(clauses, fmt.Sprintf("student_id=$%d", len(args)))
	}
	if len(filter.Stages) > 0 {
		placeholders := make([]string, len(filter.Stages))
		for i, stage := range filter.Stages {
			args = append(args, stage)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("stage IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Severities) > 0 {
		placeholders := make([]string, len(filter.Severities))
		for i, severity := range filter.Severities {
			args = append(args, severity)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("severity IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.OpenOnly {
		clauses = append(clauses, "closed_at IS NULL")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY fatal_deadline ASC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Case
	for rows.Next() {
		var kase domain.Case
		if err := scanCase(rows, &kase); err != nil {
			return nil, err
		}
		result = append(result, kase)
	}
	return result, rows.Err()
}

// CommitTransition applies the already-validated stage change. The UPDATE
// carries the version precondition; zero rows affected means another commit
// won the race and the caller gets Conflict with nothing written.
func (r *caseRepository) CommitTransition(ctx context.Context, kase *domain.Case, expectedVersion int64, entry *domain.AuditEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewPersistenceFailure(err)
	}
	defer tx.Rollback(ctx)

	if err := commitCaseTx(ctx, tx, kase, expectedVersion, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewPersistenceFailure(err)
	}
	return nil
}

// commitCaseTx updates the case row and appends the audit entry inside an
// existing transaction. Shared with the mediation closure commit.
func commitCaseTx(ctx context.Context, tx pgx.Tx, kase *domain.Case, expectedVersion int64, entry *domain.AuditEntry) error {
	const update = `
        UPDATE cases
        SET stage=$1, outcome=$2, fatal_deadline=$3, deadline_degraded=$4,
            reconsideration_deadline=$5, closed_at=$6, version=version+1, updated_at=NOW()
        WHERE id=$7 AND establishment_id=$8 AND version=$9
        RETURNING version, updated_at`
	err := tx.QueryRow(ctx, update,
		kase.Stage,
		kase.Outcome,
		kase.FatalDeadline,
		kase.DeadlineDegraded,
		kase.ReconsiderationDeadline,
		kase.ClosedAt,
		kase.ID,
		kase.EstablishmentID,
		expectedVersion,
	).Scan(&kase.Version, &kase.UpdatedAt)
	if err == pgx.ErrNoRows {
		return apperrors.NewConflict("case version mismatch", map[string]any{
			"case_id":          kase.ID,
			"expected_version": expectedVersion,
		})
	}
	if err != nil {
		return apperrors.NewPersistenceFailure(err)
	}

	const insertAudit = `
        INSERT INTO case_audit (case_id, transition_id, from_stage, to_stage, actor_id, satisfied_checklist)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insertAudit,
		entry.CaseID,
		entry.TransitionID,
		entry.FromStage,
		entry.ToStage,
		entry.ActorID,
		entry.SatisfiedChecklist,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return apperrors.NewPersistenceFailure(err)
	}
	return nil
}

func (r *caseRepository) ListAudit(ctx context.Context, establishmentID, caseID string) ([]domain.AuditEntry, error) {
	const query = `
        SELECT a.id, a.case_id, a.transition_id, a.from_stage, a.to_stage, a.actor_id, a.satisfied_checklist, a.created_at
        FROM case_audit a
        JOIN cases c ON c.id = a.case_id
        WHERE c.establishment_id=$1 AND a.case_id=$2
        ORDER BY a.created_at ASC, a.id ASC`
	rows, err := r.pool.Query(ctx, query, establishmentID, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.CaseID,
			&entry.TransitionID,
			&entry.FromStage,
			&entry.ToStage,
			&entry.ActorID,
			&entry.SatisfiedChecklist,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
