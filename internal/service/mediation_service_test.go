package service

import (
	"context"
	"testing"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	apperrors "github.com/spec-kit/case-service/pkg/util"
)

func startMediation(t *testing.T, env *testEnv, kase *domain.Case) *domain.Mediation {
	t.Helper()
	mediation, err := env.mediations.Start(context.Background(), "est-1", kase.ID, "staff-2")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return mediation
}

func TestMediationFullAgreementFlow(t *testing.T) {
	env := newTestEnv(baseTime)
	kase := env.openCase(domain.SeverityRelevant)
	kase = env.advanceTo(kase, domain.StageInvestigation)

	mediation := startMediation(t, env, kase)
	if mediation.Step != domain.StepSummary {
		t.Fatalf("step = %s, want %s", mediation.Step, domain.StepSummary)
	}

	mediation, err := env.mediations.AcknowledgeSummary(context.Background(), "est-1", kase.ID, mediation.Version)
	if err != nil {
		t.Fatalf("AcknowledgeSummary: %v", err)
	}
	mediation, err = env.mediations.SelectOutcome(context.Background(), "est-1", kase.ID, domain.MediationAgreementPartial, mediation.Version)
	if err != nil {
		t.Fatalf("SelectOutcome: %v", err)
	}
	mediation, err = env.mediations.SetCommitments(context.Background(), "est-1", kase.ID, []domain.Commitment{
		{Description: "Weekly check-in with counselor", ResponsibleParty: "student"},
	}, mediation.Version)
	if err != nil {
		t.Fatalf("SetCommitments: %v", err)
	}
	if mediation.Step != domain.StepConfirm {
		t.Fatalf("step = %s, want %s", mediation.Step, domain.StepConfirm)
	}

	mediation, closedCase, err := env.mediations.Confirm(context.Background(), ConfirmInput{
		EstablishmentID: "est-1",
		CaseID:          kase.ID,
		ActorID:         "staff-2",
		Confirmations:   allConfirmed(domain.TransitionDeriveMediation),
		ExpectedVersion: mediation.Version,
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !mediation.Confirmed() {
		t.Fatal("mediation not marked confirmed")
	}
	if closedCase.Stage != domain.StageMediatedClosure {
		t.Fatalf("stage = %s, want %s", closedCase.Stage, domain.StageMediatedClosure)
	}
	if closedCase.Outcome == nil || *closedCase.Outcome != domain.OutcomeMediatedAgreement {
		t.Fatalf("outcome = %v, want %s", closedCase.Outcome, domain.OutcomeMediatedAgreement)
	}
	if closedCase.ClosedAt == nil {
		t.Fatal("closed_at not set")
	}

	audit, _ := env.cases.ListAudit(context.Background(), "est-1", kase.ID)
	last := audit[len(audit)-1]
	if last.TransitionID != domain.TransitionDeriveMediation || last.ToStage != domain.StageMediatedClosure {
		t.Fatalf("unexpected closing audit entry %+v", last)
	}
	if got := env.dispatcher.byType(events.EventMediationConfirmed); len(got) != 1 {
		t.Fatalf("mediation_confirmed events = %d, want 1", len(got))
	}
}

func TestMediationNoAgreementFlow(t *testing.T) {
	env := newTestEnv(baseTime)
	kase := env.openCase(domain.SeverityRelevant)
	kase = env.advanceTo(kase, domain.StagePendingResolution)

	mediation := startMediation(t, env, kase)
	mediation, err := env.mediations.AcknowledgeSummary(context.Background(), "est-1", kase.ID, mediation.Version)
	if err != nil {
		t.Fatalf("AcknowledgeSummary: %v", err)
	}
	mediation, err = env.mediations.SelectOutcome(context.Background(), "est-1", kase.ID, domain.MediationNoAgreement, mediation.Version)
	if err != nil {
		t.Fatalf("SelectOutcome: %v", err)
	}
	mediation, err = env.mediations.SetCommitments(context.Background(), "est-1", kase.ID, nil, mediation.Version)
	if err != nil {
		t.Fatalf("SetCommitments: %v", err)
	}

	_, closedCase, err := env.mediations.Confirm(context.Background(), ConfirmInput{
		EstablishmentID: "est-1",
		CaseID:          kase.ID,
		ActorID:         "staff-2",
		Confirmations:   allConfirmed(domain.TransitionDeriveMediation),
		ExpectedVersion: mediation.Version,
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if closedCase.Outcome == nil || *closedCase.Outcome != domain.OutcomeMediatedNoAgreement {
		t.Fatalf("outcome = %v, want %s", closedCase.Outcome, domain.OutcomeMediatedNoAgreement)
	}
}

func TestMediationCommitmentRules(t *testing.T) {
	env := newTestEnv(baseTime)
	kase := env.openCase(domain.SeverityRelevant)
	kase = env.advanceTo(kase, domain.StageInvestigation)

	mediation := startMediation(t, env, kase)
	mediation, err := env.mediations.AcknowledgeSummary(context.Background(), "est-1", kase.ID, mediation.Version)
	if err != nil {
		t.Fatalf("AcknowledgeSummary: %v", err)
	}
	mediation, err = env.mediations.SelectOutcome(context.Background(), "est-1", kase.ID, domain.MediationAgreementFull, mediation.Version)
	if err != nil {
		t.Fatalf("SelectOutcome: %v", err)
	}

	// An agreement with no commitments is rejected and the step stays put.
	if _, err := env.mediations.SetCommitments(context.Background(), "est-1", kase.ID, nil, mediation.Version); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("err = %v, want validation failure for empty commitments", err)
	}
	stored, _ := env.mediations.Get(context.Background(), "est-1", kase.ID)
	if stored.Step != domain.StepCommitments {
		t.Fatalf("step = %s, want %s after rejected commitments", stored.Step, domain.StepCommitments)
	}

	if _, err := env.mediations.SetCommitments(context.Background(), "est-1", kase.ID, []domain.Commitment{
		{Description: "", ResponsibleParty: "student"},
	}, mediation.Version); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("err = %v, want validation failure for blank description", err)
	}
}

func TestMediationStepOrderEnforced(t *testing.T) {
	env := newTestEnv(baseTime)
	kase := env.openCase(domain.SeverityRelevant)
	kase = env.advanceTo(kase, domain.StageInvestigation)

	mediation := startMediation(t, env, kase)

	// Outcome selection before the summary was acknowledged.
	if _, err := env.mediations.SelectOutcome(context.Background(), "est-1", kase.ID, domain.MediationAgreementFull, mediation.Version); !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("err = %v, want CONFLICT for out-of-order step", err)
	}
	// Confirm straight from the summary step.
	if _, _, err := env.mediations.Confirm(context.Background(), ConfirmInput{
		EstablishmentID: "est-1",
		CaseID:          kase.ID,
		ActorID:         "staff-2",
		Confirmations:   allConfirmed(domain.TransitionDeriveMediation),
		ExpectedVersion: mediation.Version,
	}); !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("err = %v, want CONFLICT for premature confirm", err)
	}
}

func TestMediationReenterEarlierStep(t *testing.T) {
	env := newTestEnv(baseTime)
	kase := env.openCase(domain.SeverityRelevant)
	kase = env.advanceTo(kase, domain.StageInvestigation)

	mediation := startMediation(t, env, kase)
	mediation, _ = env.mediations.AcknowledgeSummary(context.Background(), "est-1", kase.ID, mediation.Version)
	mediation, _ = env.mediations.SelectOutcome(context.Background(), "est-1", kase.ID, domain.MediationAgreementFull, mediation.Version)
	mediation, _ = env.mediations.SetCommitments(context.Background(), "est-1", kase.ID, []domain.Commitment{
		{Description: "Written apology", ResponsibleParty: "student"},
	}, mediation.Version)
	if mediation.Step != domain.StepConfirm {
		t.Fatalf("step = %s, want %s", mediation.Step, domain.StepConfirm)
	}

	// Re-selecting the same outcome rewinds the step but keeps the drafts.
	mediation, err := env.mediations.SelectOutcome(context.Background(), "est-1", kase.ID, domain.MediationAgreementFull, mediation.Version)
	if err != nil {
		t.Fatalf("re-enter SelectOutcome: %v", err)
	}
	if mediation.Step != domain.StepCommitments {
		t.Fatalf("step = %s, want %s after re-entry", mediation.Step, domain.StepCommitments)
	}
	if len(mediation.Commitments) != 1 {
		t.Fatalf("commitments = %d, want drafts kept for unchanged outcome", len(mediation.Commitments))
	}

	// Changing the outcome drops the commitments drafted for the old one.
	mediation, err = env.mediations.SelectOutcome(context.Background(), "est-1", kase.ID, domain.MediationNoAgreement, mediation.Version)
	if err != nil {
		t.Fatalf("SelectOutcome with new outcome: %v", err)
	}
	if len(mediation.Commitments) != 0 {
		t.Fatalf("commitments = %d, want cleared after outcome change", len(mediation.Commitments))
	}

	// Advancing walks the remaining steps again before confirm succeeds.
	mediation, err = env.mediations.SetCommitments(context.Background(), "est-1", kase.ID, nil, mediation.Version)
	if err != nil {
		t.Fatalf("SetCommitments: %v", err)
	}
	_, closedCase, err := env.mediations.Confirm(context.Background(), ConfirmInput{
		EstablishmentID: "est-1",
		CaseID:          kase.ID,
		ActorID:         "staff-2",
		Confirmations:   allConfirmed(domain.TransitionDeriveMediation),
		ExpectedVersion: mediation.Version,
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if closedCase.Outcome == nil || *closedCase.Outcome != domain.OutcomeMediatedNoAgreement {
		t.Fatalf("outcome = %v, want %s", closedCase.Outcome, domain.OutcomeMediatedNoAgreement)
	}
}

func TestMediationNoAgreementIgnoresDraftedCommitments(t *testing.T) {
	env := newTestEnv(baseTime)
	kase := env.openCase(domain.SeverityRelevant)
	kase = env.advanceTo(kase, domain.StageInvestigation)

	mediation := startMediation(t, env, kase)
	mediation, _ = env.mediations.AcknowledgeSummary(context.Background(), "est-1", kase.ID, mediation.Version)
	mediation, _ = env.mediations.SelectOutcome(context.Background(), "est-1", kase.ID, domain.MediationNoAgreement, mediation.Version)

	mediation, err := env.mediations.SetCommitments(context.Background(), "est-1", kase.ID, []domain.Commitment{
		{Description: "Leftover draft", ResponsibleParty: "student"},
	}, mediation.Version)
	if err != nil {
		t.Fatalf("SetCommitments: %v", err)
	}
	if len(mediation.Commitments) != 0 {
		t.Fatalf("commitments = %d, want drafts dropped for no-agreement", len(mediation.Commitments))
	}

	_, closedCase, err := env.mediations.Confirm(context.Background(), ConfirmInput{
		EstablishmentID: "est-1",
		CaseID:          kase.ID,
		ActorID:         "staff-2",
		Confirmations:   allConfirmed(domain.TransitionDeriveMediation),
		ExpectedVersion: mediation.Version,
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if closedCase.Outcome == nil || *closedCase.Outcome != domain.OutcomeMediatedNoAgreement {
		t.Fatalf("outcome = %v, want %s", closedCase.Outcome, domain.OutcomeMediatedNoAgreement)
	}
}

func TestMediationStartGuards(t *testing.T) {
	env := newTestEnv(baseTime)

	// Intake is not an eligible stage for mediated closure.
	kase := env.openCase(domain.SeverityRelevant)
	if _, err := env.mediations.Start(context.Background(), "est-1", kase.ID, "staff-2"); !apperrors.IsCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("err = %v, want INVALID_TRANSITION from intake", err)
	}

	kase = env.advanceTo(kase, domain.StageNotified)
	startMediation(t, env, kase)

	// A case carries at most one mediation.
	if _, err := env.mediations.Start(context.Background(), "est-1", kase.ID, "staff-2"); !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("err = %v, want CONFLICT for duplicate mediation", err)
	}
}

func TestMediationConfirmChecklistGate(t *testing.T) {
	env := newTestEnv(baseTime)
	kase := env.openCase(domain.SeverityRelevant)
	kase = env.advanceTo(kase, domain.StageInvestigation)

	mediation := startMediation(t, env, kase)
	mediation, _ = env.mediations.AcknowledgeSummary(context.Background(), "est-1", kase.ID, mediation.Version)
	mediation, _ = env.mediations.SelectOutcome(context.Background(), "est-1", kase.ID, domain.MediationNoAgreement, mediation.Version)
	mediation, _ = env.mediations.SetCommitments(context.Background(), "est-1", kase.ID, nil, mediation.Version)

	_, _, err := env.mediations.Confirm(context.Background(), ConfirmInput{
		EstablishmentID: "est-1",
		CaseID:          kase.ID,
		ActorID:         "staff-2",
		Confirmations:   nil,
		ExpectedVersion: mediation.Version,
	})
	if !apperrors.IsCode(err, apperrors.CodeRequirementsNotMet) {
		t.Fatalf("err = %v, want REQUIREMENTS_NOT_MET without consent confirmation", err)
	}

	// Nothing was committed on either record.
	stored, _ := env.mediations.Get(context.Background(), "est-1", kase.ID)
	if stored.Confirmed() {
		t.Fatal("mediation confirmed despite failed checklist")
	}
	storedCase, _ := env.cases.GetCase(context.Background(), "est-1", kase.ID)
	if storedCase.Stage != domain.StageInvestigation {
		t.Fatalf("case stage = %s, want unchanged %s", storedCase.Stage, domain.StageInvestigation)
	}
}

func TestMediationConfirmOnlyOnce(t *testing.T) {
	env := newTestEnv(baseTime)
	kase := env.openCase(domain.SeverityRelevant)
	kase = env.advanceTo(kase, domain.StageInvestigation)

	mediation := startMediation(t, env, kase)
	mediation, _ = env.mediations.AcknowledgeSummary(context.Background(), "est-1", kase.ID, mediation.Version)
	mediation, _ = env.mediations.SelectOutcome(context.Background(), "est-1", kase.ID, domain.MediationAgreementFull, mediation.Version)
	mediation, _ = env.mediations.SetCommitments(context.Background(), "est-1", kase.ID, []domain.Commitment{
		{Description: "Written apology", ResponsibleParty: "student"},
	}, mediation.Version)

	input := ConfirmInput{
		EstablishmentID: "est-1",
		CaseID:          kase.ID,
		ActorID:         "staff-2",
		Confirmations:   allConfirmed(domain.TransitionDeriveMediation),
		ExpectedVersion: mediation.Version,
	}
	if _, _, err := env.mediations.Confirm(context.Background(), input); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, _, err := env.mediations.Confirm(context.Background(), input); !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("err = %v, want CONFLICT on second confirm", err)
	}
}
