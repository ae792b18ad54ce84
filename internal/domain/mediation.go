package domain

import "time"

// MediationStep tracks progress through the guarded closure workflow.
type MediationStep string

const (
	StepSummary          MediationStep = "SUMMARY"
	StepOutcomeSelection MediationStep = "OUTCOME_SELECTION"
	StepCommitments      MediationStep = "COMMITMENTS"
	StepConfirm          MediationStep = "CONFIRM"
)

// ValidMediationStep reports whether s is a known workflow step.
func ValidMediationStep(s MediationStep) bool {
	switch s {
	case StepSummary, StepOutcomeSelection, StepCommitments, StepConfirm:
		return true
	}
	return false
}

var mediationStepOrder = map[MediationStep]int{
	StepSummary:          0,
	StepOutcomeSelection: 1,
	StepCommitments:      2,
	StepConfirm:          3,
}

// Reached reports whether the workflow at step s has advanced to other or
// beyond it.
func (s MediationStep) Reached(other MediationStep) bool {
	return mediationStepOrder[s] >= mediationStepOrder[other]
}

// MediationOutcome is the result agreed (or not) between the parties.
type MediationOutcome string

const (
	MediationAgreementFull    MediationOutcome = "AGREEMENT_FULL"
	MediationAgreementPartial MediationOutcome = "AGREEMENT_PARTIAL"
	MediationNoAgreement      MediationOutcome = "NO_AGREEMENT"
)

// ValidMediationOutcome reports whether o is a known outcome value.
func ValidMediationOutcome(o MediationOutcome) bool {
	switch o {
	case MediationAgreementFull, MediationAgreementPartial, MediationNoAgreement:
		return true
	}
	return false
}

// Agreement reports whether the outcome implies at least one commitment.
func (o MediationOutcome) Agreement() bool {
	return o == MediationAgreementFull || o == MediationAgreementPartial
}

// CaseOutcome maps the mediation result onto the owning case's outcome.
func (o MediationOutcome) CaseOutcome() CaseOutcome {
	if o.Agreement() {
		return OutcomeMediatedAgreement
	}
	return OutcomeMediatedNoAgreement
}

// Commitment is a concrete obligation recorded as part of a mediated
// agreement.
type Commitment struct {
	Description      string     `json:"description"`
	ResponsibleParty string     `json:"responsible_party"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	Fulfilled        bool       `json:"fulfilled"`
}

// Mediation is the sub-record gating the mediated-closure transition. It is
// owned 1:1 by its case and has no independent lifecycle.
type Mediation struct {
	ID              string
	CaseID          string
	EstablishmentID string
	Step            MediationStep
	Outcome         *MediationOutcome
	Commitments     []Commitment
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ConfirmedAt     *time.Time
}

// Confirmed reports whether the mediation already closed its case.
func (m *Mediation) Confirmed() bool {
	return m.ConfirmedAt != nil
}
