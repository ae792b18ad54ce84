package dto

import (
	"time"

	"github.com/spec-kit/case-service/internal/domain"
)

// CreateCaseRequest payload.
type CreateCaseRequest struct {
	StudentID   string              `json:"student_id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Severity    domain.CaseSeverity `json:"severity"`
}

// TransitionRequest names one transition and the checklist confirmations the
// caller asserts.
type TransitionRequest struct {
	TransitionID  domain.TransitionID `json:"transition_id"`
	Confirmations map[string]bool     `json:"confirmations"`
}

// CaseSummary response.
type CaseSummary struct {
	ID                      string               `json:"id"`
	ExternalKey             string               `json:"external_key"`
	StudentID               string               `json:"student_id"`
	Title                   string               `json:"title"`
	Severity                domain.CaseSeverity  `json:"severity"`
	Stage                   domain.CaseStage     `json:"stage"`
	Outcome                 *domain.CaseOutcome  `json:"outcome"`
	OpenedAt                time.Time            `json:"opened_at"`
	FatalDeadline           time.Time            `json:"fatal_deadline"`
	DeadlineDegraded        bool                 `json:"deadline_degraded"`
	ReconsiderationDeadline *time.Time           `json:"reconsideration_deadline,omitempty"`
	Version                 int64                `json:"version"`
	CreatedAt               time.Time            `json:"created_at"`
	UpdatedAt               time.Time            `json:"updated_at"`
	ClosedAt                *time.Time           `json:"closed_at,omitempty"`
}

// CaseDetailResponse provides full case info including the audit trail.
type CaseDetailResponse struct {
	CaseSummary
	Description string               `json:"description"`
	ReportedBy  string               `json:"reported_by"`
	Audit       []AuditEntryResponse `json:"audit"`
	Notes       []CaseNoteResponse   `json:"notes"`
	Evidence    []EvidenceResponse   `json:"evidence"`
}

// AuditEntryResponse represents one committed transition.
type AuditEntryResponse struct {
	ID                 string              `json:"id"`
	TransitionID       domain.TransitionID `json:"transition_id"`
	FromStage          domain.CaseStage    `json:"from_stage"`
	ToStage            domain.CaseStage    `json:"to_stage"`
	ActorID            string              `json:"actor_id"`
	SatisfiedChecklist []string            `json:"satisfied_checklist"`
	CreatedAt          time.Time           `json:"created_at"`
}

// TransitionOptionResponse describes one transition available from the
// case's current stage together with its checklist.
type TransitionOptionResponse struct {
	TransitionID      domain.TransitionID `json:"transition_id"`
	ToStage           domain.CaseStage    `json:"to_stage"`
	RequiredChecklist []string            `json:"required_checklist"`
}

// CreateNoteRequest payload.
type CreateNoteRequest struct {
	Kind domain.CaseNoteKind `json:"kind"`
	Body string              `json:"body"`
}

// CaseNoteResponse payload.
type CaseNoteResponse struct {
	ID        string              `json:"id"`
	AuthorID  string              `json:"author_id"`
	Kind      domain.CaseNoteKind `json:"kind"`
	Body      string              `json:"body"`
	CreatedAt time.Time           `json:"created_at"`
}

// CreateEvidenceRequest describes evidence metadata input.
type CreateEvidenceRequest struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// EvidenceResponse metadata.
type EvidenceResponse struct {
	ID         string    `json:"id"`
	UploadedBy string    `json:"uploaded_by"`
	StorageKey string    `json:"storage_key"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}
