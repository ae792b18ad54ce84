package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/deadline"
	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/holiday"
	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/repository"
	apperrors "github.com/spec-kit/case-service/pkg/util"
)

// CaseService is the stage transition engine. It validates requested
// transitions against the fixed rule table and commits accepted ones
// atomically together with their audit entry.
type CaseService struct {
	cases          repository.CaseRepository
	establishments repository.EstablishmentRepository
	notes          repository.CaseNoteRepository
	evidence       repository.EvidenceRepository
	holidays       holiday.Source
	dispatcher     events.Dispatcher
	metrics        *observability.Metrics
	logger         *zap.Logger

	// Now is injectable for tests; every operation captures it exactly once.
	Now func() time.Time
}

// CaseDependencies bundles collaborators for the case service.
type CaseDependencies struct {
	CaseRepo          repository.CaseRepository
	EstablishmentRepo repository.EstablishmentRepository
	NoteRepo          repository.CaseNoteRepository
	EvidenceRepo      repository.EvidenceRepository
	HolidaySource     holiday.Source
	Dispatcher        events.Dispatcher
	Metrics           *observability.Metrics
	Logger            *zap.Logger
}

// NewCaseService constructs the service.
func NewCaseService(deps CaseDependencies) *CaseService {
	return &CaseService{
		cases:          deps.CaseRepo,
		establishments: deps.EstablishmentRepo,
		notes:          deps.NoteRepo,
		evidence:       deps.EvidenceRepo,
		holidays:       deps.HolidaySource,
		dispatcher:     deps.Dispatcher,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
		Now:            time.Now,
	}
}

// CaseOpenInput describes case intake payload.
type CaseOpenInput struct {
	EstablishmentID string
	StudentID       string
	ReportedByID    string
	Title           string
	Description     string
	Severity        domain.CaseSeverity
}

// TransitionInput names one requested transition. The caller always names
// the transition id explicitly; when several rules are legal from the same
// stage the engine never infers intent from the checklist.
type TransitionInput struct {
	EstablishmentID string
	CaseID          string
	TransitionID    domain.TransitionID
	Confirmations   map[string]bool
	ActorID         string
	// Outcome is required when the transition closes the case through
	// mediation; the closure workflow supplies it.
	Outcome *domain.CaseOutcome
}

// OpenCase creates a case at Intake and fixes its statutory deadline.
func (s *CaseService) OpenCase(ctx context.Context, input CaseOpenInput) (*domain.Case, error) {
	if !domain.ValidSeverity(input.Severity) {
		return nil, apperrors.NewValidationError("unknown severity", map[string]any{"severity": input.Severity})
	}
	if strings.TrimSpace(input.StudentID) == "" {
		return nil, apperrors.NewValidationError("student_id required", nil)
	}
	est, err := s.establishments.GetByID(ctx, input.EstablishmentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !est.IsActive {
		return nil, apperrors.NewValidationError("establishment inactive", nil)
	}

	openedAt := s.Now()
	res := deadline.ComputeFatalDeadline(openedAt, input.Severity, s.calendarSnapshot(ctx, openedAt))

	kase := &domain.Case{
		ExternalKey:      generateCaseKey(),
		EstablishmentID:  input.EstablishmentID,
		StudentID:        input.StudentID,
		ReportedByID:     input.ReportedByID,
		Title:            strings.TrimSpace(input.Title),
		Description:      strings.TrimSpace(input.Description),
		Severity:         input.Severity,
		Stage:            domain.StageIntake,
		OpenedAt:         openedAt,
		FatalDeadline:    res.Deadline,
		DeadlineDegraded: res.Degraded,
	}
	if err := s.cases.Create(ctx, kase); err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:            events.EventCaseOpened,
		CaseID:          kase.ID,
		EstablishmentID: kase.EstablishmentID,
		ActorID:         input.ReportedByID,
		Payload: events.CaseOpenedPayload{
			Severity:      kase.Severity,
			StudentID:     kase.StudentID,
			FatalDeadline: kase.FatalDeadline,
			Degraded:      kase.DeadlineDegraded,
		},
	})
	return kase, nil
}

// GetCase loads a case scoped to one establishment.
func (s *CaseService) GetCase(ctx context.Context, establishmentID, caseID string) (*domain.Case, error) {
	return s.cases.GetByID(ctx, establishmentID, caseID)
}

// ListCases returns cases ordered by urgency of their fatal deadline.
func (s *CaseService) ListCases(ctx context.Context, filter repository.CaseFilter) ([]domain.Case, error) {
	return s.cases.ListWithFilter(ctx, filter)
}

// ListAudit returns the committed transition trail in commit order.
func (s *CaseService) ListAudit(ctx context.Context, establishmentID, caseID string) ([]domain.AuditEntry, error) {
	if _, err := s.cases.GetByID(ctx, establishmentID, caseID); err != nil {
		return nil, err
	}
	return s.cases.ListAudit(ctx, establishmentID, caseID)
}

// AttemptTransition validates and commits one stage transition. On any
// validation failure the case is left completely unmodified and no audit
// entry is written.
func (s *CaseService) AttemptTransition(ctx context.Context, input TransitionInput) (*domain.Case, error) {
	kase, err := s.cases.GetByID(ctx, input.EstablishmentID, input.CaseID)
	if err != nil {
		return nil, err
	}
	expectedVersion := kase.Version

	entry, err := s.ApplyTransition(ctx, kase, input)
	if err != nil {
		s.recordTransition(input.TransitionID, false)
		return nil, err
	}

	if err := s.cases.CommitTransition(ctx, kase, expectedVersion, entry); err != nil {
		s.recordTransition(input.TransitionID, false)
		return nil, err
	}
	s.recordTransition(input.TransitionID, true)

	s.publishStageChanged(ctx, kase, entry)
	return kase, nil
}

// ApplyTransition validates the rule, checklist and outcome for the loaded
// case and mutates it in memory, returning the audit entry to commit.
// Callers own the subsequent atomic commit; the closure workflow reuses this
// to compose the mediated-closure commit with its own writes.
func (s *CaseService) ApplyTransition(ctx context.Context, kase *domain.Case, input TransitionInput) (*domain.AuditEntry, error) {
	rule, ok := domain.RuleFor(input.TransitionID)
	if !ok {
		return nil, apperrors.NewNotFound("transition", map[string]any{"transition_id": input.TransitionID})
	}
	if !rule.AllowsFrom(kase.Stage) {
		return nil, apperrors.NewInvalidTransition(string(rule.ID), string(kase.Stage))
	}

	var unmet []string
	for _, item := range rule.RequiredChecklist {
		if !input.Confirmations[item] {
			unmet = append(unmet, item)
		}
	}
	if len(unmet) > 0 {
		return nil, apperrors.NewRequirementsNotMet(unmet)
	}

	now := s.Now()
	fromStage := kase.Stage

	if rule.RecomputesDeadline {
		cal := s.calendarSnapshot(ctx, now)
		if rule.ToStage == domain.StageReconsideration {
			res := deadline.ComputeReconsiderationDeadline(now, cal)
			kase.ReconsiderationDeadline = &res.Deadline
			kase.DeadlineDegraded = res.Degraded
		} else {
			res := deadline.ComputeFatalDeadline(now, kase.Severity, cal)
			kase.FatalDeadline = res.Deadline
			kase.DeadlineDegraded = res.Degraded
		}
	}

	switch rule.ToStage {
	case domain.StageClosedSanction:
		outcome := domain.OutcomeSanctioned
		kase.Outcome = &outcome
		kase.ClosedAt = &now
	case domain.StageMediatedClosure:
		if input.Outcome == nil {
			return nil, apperrors.NewValidationError("mediation outcome required for mediated closure", nil)
		}
		kase.Outcome = input.Outcome
		kase.ClosedAt = &now
	}
	kase.Stage = rule.ToStage

	satisfied := make([]string, len(rule.RequiredChecklist))
	copy(satisfied, rule.RequiredChecklist)

	return &domain.AuditEntry{
		CaseID:             kase.ID,
		TransitionID:       rule.ID,
		FromStage:          fromStage,
		ToStage:            rule.ToStage,
		ActorID:            input.ActorID,
		SatisfiedChecklist: satisfied,
	}, nil
}

// AddNote appends a record-book entry to a case.
func (s *CaseService) AddNote(ctx context.Context, establishmentID, caseID, authorID string, kind domain.CaseNoteKind, body string) (*domain.CaseNote, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}
	if kind != domain.NoteKindInternal && kind != domain.NoteKindGuardianVisible {
		return nil, apperrors.NewValidationError("unknown note kind", map[string]any{"kind": kind})
	}
	kase, err := s.cases.GetByID(ctx, establishmentID, caseID)
	if err != nil {
		return nil, err
	}

	note := &domain.CaseNote{
		CaseID:   kase.ID,
		AuthorID: authorID,
		Kind:     kind,
		Body:     strings.TrimSpace(body),
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:            events.EventCaseNoteAdded,
		CaseID:          kase.ID,
		EstablishmentID: kase.EstablishmentID,
		ActorID:         authorID,
		Payload: events.CaseNoteAddedPayload{
			NoteID:      note.ID,
			Kind:        note.Kind,
			BodyPreview: stringPreview(note.Body, 120),
		},
	})
	return note, nil
}

// ListNotes returns a case's record book in chronological order.
func (s *CaseService) ListNotes(ctx context.Context, establishmentID, caseID string) ([]domain.CaseNote, error) {
	if _, err := s.cases.GetByID(ctx, establishmentID, caseID); err != nil {
		return nil, err
	}
	return s.notes.ListByCase(ctx, caseID)
}

// EvidenceInput defines evidence metadata.
type EvidenceInput struct {
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
}

// AddEvidence records a reference to an externally stored document.
func (s *CaseService) AddEvidence(ctx context.Context, establishmentID, caseID, uploadedBy string, input EvidenceInput) (*domain.EvidenceReference, error) {
	if strings.TrimSpace(input.StorageKey) == "" || strings.TrimSpace(input.FileName) == "" {
		return nil, apperrors.NewValidationError("storage_key and file_name required", nil)
	}
	kase, err := s.cases.GetByID(ctx, establishmentID, caseID)
	if err != nil {
		return nil, err
	}

	evidence := &domain.EvidenceReference{
		CaseID:     kase.ID,
		UploadedBy: uploadedBy,
		StorageKey: input.StorageKey,
		FileName:   input.FileName,
		MimeType:   input.MimeType,
		SizeBytes:  input.SizeBytes,
	}
	if err := s.evidence.Create(ctx, evidence); err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}
	return evidence, nil
}

// ListEvidence returns the evidence references for a case.
func (s *CaseService) ListEvidence(ctx context.Context, establishmentID, caseID string) ([]domain.EvidenceReference, error) {
	if _, err := s.cases.GetByID(ctx, establishmentID, caseID); err != nil {
		return nil, err
	}
	return s.evidence.ListByCase(ctx, caseID)
}

// calendarSnapshot fetches the holiday overlay for a computation starting at
// start. Unavailability degrades to a nil calendar: the computation still
// completes, weekday-only.
func (s *CaseService) calendarSnapshot(ctx context.Context, start time.Time) *domain.HolidayCalendar {
	if s.holidays == nil {
		return nil
	}
	cal, err := s.holidays.CalendarFor(ctx, start)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("holiday calendar unavailable; falling back to weekday-only counting", zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordDegradedDeadline()
		}
		return nil
	}
	return cal
}

func (s *CaseService) publishStageChanged(ctx context.Context, kase *domain.Case, entry *domain.AuditEntry) {
	s.publishEvent(ctx, events.Event{
		Type:            events.EventStageChanged,
		CaseID:          kase.ID,
		EstablishmentID: kase.EstablishmentID,
		ActorID:         entry.ActorID,
		Payload: events.StageChangedPayload{
			FromStage:    entry.FromStage,
			ToStage:      entry.ToStage,
			TransitionID: entry.TransitionID,
			At:           kase.UpdatedAt,
		},
	})
}

func (s *CaseService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *CaseService) recordTransition(id domain.TransitionID, accepted bool) {
	if s.metrics != nil {
		s.metrics.RecordTransition(string(id), accepted)
	}
}

func generateCaseKey() string {
	return "CASE-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
