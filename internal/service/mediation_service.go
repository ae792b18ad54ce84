package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/repository"
	apperrors "github.com/spec-kit/case-service/pkg/util"
)

// MediationService drives the guarded four-step closure workflow:
// summary review, outcome selection, commitments, confirmation. Nothing is
// applied to the owning case until Confirm commits, and Confirm revalidates
// everything against current state.
type MediationService struct {
	mediations repository.MediationRepository
	cases      repository.CaseRepository
	engine     *CaseService
	dispatcher events.Dispatcher
	logger     *zap.Logger

	Now func() time.Time
}

// NewMediationService constructs the workflow service on top of the
// transition engine.
func NewMediationService(mediations repository.MediationRepository, cases repository.CaseRepository, engine *CaseService, dispatcher events.Dispatcher, logger *zap.Logger) *MediationService {
	return &MediationService{
		mediations: mediations,
		cases:      cases,
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger,
		Now:        time.Now,
	}
}

// Start opens a mediation for the case at the summary step. The case must be
// in a stage the mediated-closure transition accepts, and a case carries at
// most one mediation.
func (s *MediationService) Start(ctx context.Context, establishmentID, caseID, actorID string) (*domain.Mediation, error) {
	kase, err := s.cases.GetByID(ctx, establishmentID, caseID)
	if err != nil {
		return nil, err
	}
	rule, _ := domain.RuleFor(domain.TransitionDeriveMediation)
	if !rule.AllowsFrom(kase.Stage) {
		return nil, apperrors.NewInvalidTransition(string(rule.ID), string(kase.Stage))
	}

	if existing, err := s.mediations.GetByCase(ctx, establishmentID, caseID); err == nil {
		return nil, apperrors.NewConflict("mediation already exists for case", map[string]any{
			"mediation_id": existing.ID,
		})
	} else if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		return nil, err
	}

	mediation := &domain.Mediation{
		CaseID:          kase.ID,
		EstablishmentID: kase.EstablishmentID,
		Step:            domain.StepSummary,
	}
	if err := s.mediations.Create(ctx, mediation); err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}

	s.publish(ctx, events.Event{
		Type:            events.EventMediationStarted,
		CaseID:          kase.ID,
		EstablishmentID: kase.EstablishmentID,
		ActorID:         actorID,
		Payload:         events.MediationStartedPayload{MediationID: mediation.ID},
	})
	return mediation, nil
}

// Get returns the mediation attached to a case.
func (s *MediationService) Get(ctx context.Context, establishmentID, caseID string) (*domain.Mediation, error) {
	return s.mediations.GetByCase(ctx, establishmentID, caseID)
}

// AcknowledgeSummary records that the mediator reviewed the case summary and
// advances to outcome selection.
func (s *MediationService) AcknowledgeSummary(ctx context.Context, establishmentID, caseID string, expectedVersion int64) (*domain.Mediation, error) {
	mediation, err := s.loadAtStep(ctx, establishmentID, caseID, domain.StepSummary)
	if err != nil {
		return nil, err
	}
	mediation.Step = domain.StepOutcomeSelection
	if err := s.mediations.Update(ctx, mediation, expectedVersion); err != nil {
		return nil, err
	}
	return mediation, nil
}

// SelectOutcome records the agreed (or failed) result and advances to the
// commitments step. Changing the outcome later means stepping through
// Confirm's revalidation with the new value, so commitments are cleared here
// whenever the outcome changes.
func (s *MediationService) SelectOutcome(ctx context.Context, establishmentID, caseID string, outcome domain.MediationOutcome, expectedVersion int64) (*domain.Mediation, error) {
	if !domain.ValidMediationOutcome(outcome) {
		return nil, apperrors.NewValidationError("unknown mediation outcome", map[string]any{"outcome": outcome})
	}
	mediation, err := s.loadAtStep(ctx, establishmentID, caseID, domain.StepOutcomeSelection)
	if err != nil {
		return nil, err
	}
	if mediation.Outcome == nil || *mediation.Outcome != outcome {
		mediation.Commitments = nil
	}
	mediation.Outcome = &outcome
	mediation.Step = domain.StepCommitments
	if err := s.mediations.Update(ctx, mediation, expectedVersion); err != nil {
		return nil, err
	}
	return mediation, nil
}

// SetCommitments records the mediated obligations and advances to the
// confirmation step. Agreements need at least one commitment; for a failed
// mediation the step is a no-op and any drafted commitments are dropped.
func (s *MediationService) SetCommitments(ctx context.Context, establishmentID, caseID string, commitments []domain.Commitment, expectedVersion int64) (*domain.Mediation, error) {
	mediation, err := s.loadAtStep(ctx, establishmentID, caseID, domain.StepCommitments)
	if err != nil {
		return nil, err
	}
	if mediation.Outcome == nil {
		return nil, apperrors.NewValidationError("mediation outcome not selected", nil)
	}
	if !mediation.Outcome.Agreement() {
		commitments = nil
	}
	if err := validateCommitments(*mediation.Outcome, commitments); err != nil {
		return nil, err
	}
	mediation.Commitments = commitments
	mediation.Step = domain.StepConfirm
	if err := s.mediations.Update(ctx, mediation, expectedVersion); err != nil {
		return nil, err
	}
	return mediation, nil
}

// ConfirmInput carries the final confirmation request.
type ConfirmInput struct {
	EstablishmentID string
	CaseID          string
	ActorID         string
	Confirmations   map[string]bool
	ExpectedVersion int64
}

// Confirm revalidates the whole workflow against current state and, when
// everything still holds, closes the case through the mediated-closure
// transition. The mediation update, the case transition and its audit entry
// commit atomically; a version mismatch on either record aborts with a
// conflict and no partial write.
func (s *MediationService) Confirm(ctx context.Context, input ConfirmInput) (*domain.Mediation, *domain.Case, error) {
	mediation, err := s.loadAtStep(ctx, input.EstablishmentID, input.CaseID, domain.StepConfirm)
	if err != nil {
		return nil, nil, err
	}
	if mediation.Outcome == nil {
		return nil, nil, apperrors.NewValidationError("mediation outcome not selected", nil)
	}
	if !mediation.Outcome.Agreement() {
		mediation.Commitments = nil
	}
	if err := validateCommitments(*mediation.Outcome, mediation.Commitments); err != nil {
		return nil, nil, err
	}

	kase, err := s.cases.GetByID(ctx, input.EstablishmentID, input.CaseID)
	if err != nil {
		return nil, nil, err
	}
	expectedCaseVersion := kase.Version

	caseOutcome := mediation.Outcome.CaseOutcome()
	entry, err := s.engine.ApplyTransition(ctx, kase, TransitionInput{
		EstablishmentID: input.EstablishmentID,
		CaseID:          input.CaseID,
		TransitionID:    domain.TransitionDeriveMediation,
		Confirmations:   input.Confirmations,
		ActorID:         input.ActorID,
		Outcome:         &caseOutcome,
	})
	if err != nil {
		return nil, nil, err
	}

	mediation.Step = domain.StepConfirm
	if err := s.mediations.CommitClosure(ctx, mediation, input.ExpectedVersion, kase, expectedCaseVersion, entry); err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.Event{
		Type:            events.EventMediationConfirmed,
		CaseID:          kase.ID,
		EstablishmentID: kase.EstablishmentID,
		ActorID:         input.ActorID,
		Payload: events.MediationConfirmedPayload{
			MediationID: mediation.ID,
			Outcome:     *mediation.Outcome,
			Commitments: len(mediation.Commitments),
		},
	})
	s.engine.publishStageChanged(ctx, kase, entry)
	return mediation, kase, nil
}

// loadAtStep fetches an unconfirmed mediation positioned for step. The
// workflow is forward-only but a caller may re-enter any step it already
// passed to edit it: the record rewinds to that step and advancing walks the
// remaining steps again, so Confirm always revalidates the final state.
// Skipping ahead of the current step is a conflict.
func (s *MediationService) loadAtStep(ctx context.Context, establishmentID, caseID string, step domain.MediationStep) (*domain.Mediation, error) {
	mediation, err := s.mediations.GetByCase(ctx, establishmentID, caseID)
	if err != nil {
		return nil, err
	}
	if mediation.Confirmed() {
		return nil, apperrors.NewConflict("mediation already confirmed", nil)
	}
	if !mediation.Step.Reached(step) {
		return nil, apperrors.NewConflict("mediation step out of order", map[string]any{
			"current_step":  mediation.Step,
			"expected_step": step,
		})
	}
	mediation.Step = step
	return mediation, nil
}

// validateCommitments enforces the agreement invariant: at least one
// well-formed commitment. Commitments on a no-agreement outcome are ignored,
// not rejected.
func validateCommitments(outcome domain.MediationOutcome, commitments []domain.Commitment) error {
	if !outcome.Agreement() {
		return nil
	}
	if len(commitments) == 0 {
		return apperrors.NewValidationError("agreement requires at least one commitment", nil)
	}
	for i, c := range commitments {
		if strings.TrimSpace(c.Description) == "" {
			return apperrors.NewValidationError("commitment description required", map[string]any{"index": i})
		}
		if strings.TrimSpace(c.ResponsibleParty) == "" {
			return apperrors.NewValidationError("commitment responsible_party required", map[string]any{"index": i})
		}
	}
	return nil
}

func (s *MediationService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.Now()
	_ = s.dispatcher.Publish(ctx, event)
}
