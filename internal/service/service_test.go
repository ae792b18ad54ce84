package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/repository"
	apperrors "github.com/spec-kit/case-service/pkg/util"
)

// In-memory fakes shared by the service tests.

type fakeCaseRepo struct {
	mu     sync.Mutex
	seq    int
	cases  map[string]*domain.Case
	audit  []domain.AuditEntry
	onTx   func() // runs just before a commit, to stage interleaved writes
	nowRef func() time.Time
}

func newFakeCaseRepo(now func() time.Time) *fakeCaseRepo {
	return &fakeCaseRepo{cases: map[string]*domain.Case{}, nowRef: now}
}

func (r *fakeCaseRepo) Create(_ context.Context, kase *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	kase.ID = fmt.Sprintf("case-%d", r.seq)
	kase.Version = 1
	kase.CreatedAt = r.nowRef()
	kase.UpdatedAt = kase.CreatedAt
	stored := *kase
	r.cases[kase.ID] = &stored
	return nil
}

func (r *fakeCaseRepo) GetByID(_ context.Context, establishmentID, id string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.cases[id]
	if !ok || stored.EstablishmentID != establishmentID {
		return nil, apperrors.NewNotFound("case", nil)
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeCaseRepo) GetByExternalKey(_ context.Context, establishmentID, key string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.cases {
		if stored.EstablishmentID == establishmentID && stored.ExternalKey == key {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, apperrors.NewNotFound("case", nil)
}

func (r *fakeCaseRepo) ListWithFilter(_ context.Context, filter repository.CaseFilter) ([]domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Case
	for _, stored := range r.cases {
		if stored.EstablishmentID != filter.EstablishmentID {
			continue
		}
		if filter.OpenOnly && stored.Stage.Terminal() {
			continue
		}
		result = append(result, *stored)
	}
	return result, nil
}

func (r *fakeCaseRepo) CommitTransition(_ context.Context, kase *domain.Case, expectedVersion int64, entry *domain.AuditEntry) error {
	if r.onTx != nil {
		r.onTx()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commitLocked(kase, expectedVersion, entry)
}

func (r *fakeCaseRepo) commitLocked(kase *domain.Case, expectedVersion int64, entry *domain.AuditEntry) error {
	stored, ok := r.cases[kase.ID]
	if !ok {
		return apperrors.NewNotFound("case", nil)
	}
	if stored.Version != expectedVersion {
		return apperrors.NewConflict("case version mismatch", nil)
	}
	kase.Version = stored.Version + 1
	kase.UpdatedAt = r.nowRef()
	updated := *kase
	r.cases[kase.ID] = &updated

	saved := *entry
	saved.ID = fmt.Sprintf("audit-%d", len(r.audit)+1)
	saved.CreatedAt = r.nowRef()
	r.audit = append(r.audit, saved)
	return nil
}

func (r *fakeCaseRepo) ListAudit(_ context.Context, establishmentID, caseID string) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.AuditEntry
	for _, entry := range r.audit {
		if entry.CaseID == caseID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type fakeEstablishmentRepo struct {
	establishments map[string]*domain.Establishment
}

func (r *fakeEstablishmentRepo) GetByID(_ context.Context, id string) (*domain.Establishment, error) {
	est, ok := r.establishments[id]
	if !ok {
		return nil, apperrors.NewNotFound("establishment", nil)
	}
	return est, nil
}

func (r *fakeEstablishmentRepo) List(_ context.Context, _, _ int) ([]domain.Establishment, error) {
	var result []domain.Establishment
	for _, est := range r.establishments {
		result = append(result, *est)
	}
	return result, nil
}

type fakeNoteRepo struct {
	notes []domain.CaseNote
}

func (r *fakeNoteRepo) Create(_ context.Context, note *domain.CaseNote) error {
	note.ID = fmt.Sprintf("note-%d", len(r.notes)+1)
	note.CreatedAt = time.Now()
	r.notes = append(r.notes, *note)
	return nil
}

func (r *fakeNoteRepo) ListByCase(_ context.Context, caseID string) ([]domain.CaseNote, error) {
	var result []domain.CaseNote
	for _, note := range r.notes {
		if note.CaseID == caseID {
			result = append(result, note)
		}
	}
	return result, nil
}

type fakeEvidenceRepo struct {
	items []domain.EvidenceReference
}

func (r *fakeEvidenceRepo) Create(_ context.Context, evidence *domain.EvidenceReference) error {
	evidence.ID = fmt.Sprintf("evidence-%d", len(r.items)+1)
	evidence.CreatedAt = time.Now()
	r.items = append(r.items, *evidence)
	return nil
}

func (r *fakeEvidenceRepo) ListByCase(_ context.Context, caseID string) ([]domain.EvidenceReference, error) {
	var result []domain.EvidenceReference
	for _, item := range r.items {
		if item.CaseID == caseID {
			result = append(result, item)
		}
	}
	return result, nil
}

type fakeHolidaySource struct {
	calendar *domain.HolidayCalendar
	err      error
}

func (s *fakeHolidaySource) CalendarFor(_ context.Context, _ time.Time) (*domain.HolidayCalendar, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.calendar, nil
}

type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(_ events.EventType, _ events.EventHandler) {}

func (d *captureDispatcher) byType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, e := range d.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

type fakeMediationRepo struct {
	mu         sync.Mutex
	seq        int
	mediations map[string]*domain.Mediation // keyed by case id
	caseRepo   *fakeCaseRepo
	nowRef     func() time.Time
}

func newFakeMediationRepo(caseRepo *fakeCaseRepo, now func() time.Time) *fakeMediationRepo {
	return &fakeMediationRepo{mediations: map[string]*domain.Mediation{}, caseRepo: caseRepo, nowRef: now}
}

func (r *fakeMediationRepo) Create(_ context.Context, mediation *domain.Mediation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mediations[mediation.CaseID]; exists {
		return errors.New("duplicate mediation")
	}
	r.seq++
	mediation.ID = fmt.Sprintf("mediation-%d", r.seq)
	mediation.Version = 1
	mediation.CreatedAt = r.nowRef()
	mediation.UpdatedAt = mediation.CreatedAt
	stored := *mediation
	r.mediations[mediation.CaseID] = &stored
	return nil
}

func (r *fakeMediationRepo) GetByID(_ context.Context, establishmentID, id string) (*domain.Mediation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.mediations {
		if stored.ID == id && stored.EstablishmentID == establishmentID {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, apperrors.NewNotFound("mediation", nil)
}

func (r *fakeMediationRepo) GetByCase(_ context.Context, establishmentID, caseID string) (*domain.Mediation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.mediations[caseID]
	if !ok || stored.EstablishmentID != establishmentID {
		return nil, apperrors.NewNotFound("mediation", nil)
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeMediationRepo) Update(_ context.Context, mediation *domain.Mediation, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.mediations[mediation.CaseID]
	if !ok {
		return apperrors.NewNotFound("mediation", nil)
	}
	if stored.Version != expectedVersion {
		return apperrors.NewConflict("mediation version mismatch", nil)
	}
	mediation.Version = stored.Version + 1
	mediation.UpdatedAt = r.nowRef()
	updated := *mediation
	r.mediations[mediation.CaseID] = &updated
	return nil
}

func (r *fakeMediationRepo) CommitClosure(_ context.Context, mediation *domain.Mediation, expectedMediationVersion int64,
	kase *domain.Case, expectedCaseVersion int64, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.mediations[mediation.CaseID]
	if !ok {
		return apperrors.NewNotFound("mediation", nil)
	}
	if stored.Version != expectedMediationVersion {
		return apperrors.NewConflict("mediation version mismatch", nil)
	}

	r.caseRepo.mu.Lock()
	defer r.caseRepo.mu.Unlock()
	if err := r.caseRepo.commitLocked(kase, expectedCaseVersion, entry); err != nil {
		return err
	}

	now := r.nowRef()
	mediation.Version = stored.Version + 1
	mediation.UpdatedAt = now
	mediation.ConfirmedAt = &now
	updated := *mediation
	r.mediations[mediation.CaseID] = &updated
	return nil
}

// testEnv bundles the services under test with their fakes and a fixed clock.
type testEnv struct {
	cases      *CaseService
	mediations *MediationService
	caseRepo   *fakeCaseRepo
	medRepo    *fakeMediationRepo
	notes      *fakeNoteRepo
	evidence   *fakeEvidenceRepo
	source     *fakeHolidaySource
	dispatcher *captureDispatcher
	now        time.Time
}

func newTestEnv(now time.Time) *testEnv {
	env := &testEnv{now: now}
	clock := func() time.Time { return env.now }

	env.caseRepo = newFakeCaseRepo(clock)
	env.medRepo = newFakeMediationRepo(env.caseRepo, clock)
	env.notes = &fakeNoteRepo{}
	env.evidence = &fakeEvidenceRepo{}
	env.dispatcher = &captureDispatcher{}
	// A non-empty calendar keeps computations out of degraded mode; the one
	// date sits far from the windows the tests exercise.
	env.source = &fakeHolidaySource{calendar: domain.NewHolidayCalendar("test", now, []domain.Holiday{
		{Date: time.Date(2026, time.December, 25, 0, 0, 0, 0, time.UTC), Name: "Christmas Day"},
	})}

	establishments := &fakeEstablishmentRepo{establishments: map[string]*domain.Establishment{
		"est-1": {ID: "est-1", Name: "Liceo Municipal", IsActive: true},
		"est-2": {ID: "est-2", Name: "Colegio Cerrado", IsActive: false},
	}}

	logger := zap.NewNop()
	env.cases = NewCaseService(CaseDependencies{
		CaseRepo:          env.caseRepo,
		EstablishmentRepo: establishments,
		NoteRepo:          env.notes,
		EvidenceRepo:      env.evidence,
		HolidaySource:     env.source,
		Dispatcher:        env.dispatcher,
		Metrics:           observability.NewMetrics(),
		Logger:            logger,
	})
	env.cases.Now = clock

	env.mediations = NewMediationService(env.medRepo, env.caseRepo, env.cases, env.dispatcher, logger)
	env.mediations.Now = clock
	return env
}

func (env *testEnv) openCase(severity domain.CaseSeverity) *domain.Case {
	kase, err := env.cases.OpenCase(context.Background(), CaseOpenInput{
		EstablishmentID: "est-1",
		StudentID:       "student-7",
		ReportedByID:    "staff-1",
		Title:           "Incident report",
		Severity:        severity,
	})
	if err != nil {
		panic(err)
	}
	return kase
}

// advanceTo drives a case through the transition graph to the target stage,
// confirming every checklist item along the way.
func (env *testEnv) advanceTo(kase *domain.Case, target domain.CaseStage) *domain.Case {
	path := []domain.TransitionID{
		domain.TransitionNotify,
		domain.TransitionOpenRebuttal,
		domain.TransitionBeginInvestigation,
		domain.TransitionCloseInvestigation,
	}
	for _, id := range path {
		if kase.Stage == target {
			return kase
		}
		next, err := env.cases.AttemptTransition(context.Background(), TransitionInput{
			EstablishmentID: kase.EstablishmentID,
			CaseID:          kase.ID,
			TransitionID:    id,
			Confirmations:   allConfirmed(id),
			ActorID:         "staff-1",
		})
		if err != nil {
			panic(err)
		}
		kase = next
	}
	return kase
}

func allConfirmed(id domain.TransitionID) map[string]bool {
	rule, ok := domain.RuleFor(id)
	if !ok {
		return nil
	}
	confirmations := make(map[string]bool, len(rule.RequiredChecklist))
	for _, item := range rule.RequiredChecklist {
		confirmations[item] = true
	}
	return confirmations
}
