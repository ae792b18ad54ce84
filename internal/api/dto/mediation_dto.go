package dto

import (
	"time"

	"github.com/spec-kit/case-service/internal/domain"
)

// MediationResponse payload.
type MediationResponse struct {
	ID          string                   `json:"id"`
	CaseID      string                   `json:"case_id"`
	Step        domain.MediationStep     `json:"step"`
	Outcome     *domain.MediationOutcome `json:"outcome"`
	Commitments []CommitmentDTO          `json:"commitments"`
	Version     int64                    `json:"version"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
	ConfirmedAt *time.Time               `json:"confirmed_at,omitempty"`
}

// CommitmentDTO mirrors a mediated obligation.
type CommitmentDTO struct {
	Description      string     `json:"description"`
	ResponsibleParty string     `json:"responsible_party"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	Fulfilled        bool       `json:"fulfilled"`
}

// AcknowledgeSummaryRequest advances past the summary step.
type AcknowledgeSummaryRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

// SelectOutcomeRequest payload.
type SelectOutcomeRequest struct {
	Outcome         domain.MediationOutcome `json:"outcome"`
	ExpectedVersion int64                   `json:"expected_version"`
}

// SetCommitmentsRequest payload.
type SetCommitmentsRequest struct {
	Commitments     []CommitmentDTO `json:"commitments"`
	ExpectedVersion int64           `json:"expected_version"`
}

// ConfirmMediationRequest payload. Confirmations cover the mediated-closure
// checklist.
type ConfirmMediationRequest struct {
	Confirmations   map[string]bool `json:"confirmations"`
	ExpectedVersion int64           `json:"expected_version"`
}
