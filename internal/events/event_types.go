package events

import (
	"time"

	"github.com/spec-kit/case-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCaseOpened         EventType = "case_opened"
	EventStageChanged       EventType = "case_stage_changed"
	EventCaseNoteAdded      EventType = "case_note_added"
	EventMediationStarted   EventType = "mediation_started"
	EventMediationConfirmed EventType = "mediation_confirmed"
)

// Event represents a domain event emitted by services after a successful
// commit. Delivery is fire-and-forget; the committing call never waits on
// downstream consumers.
type Event struct {
	ID              string      `json:"id"`
	Type            EventType   `json:"type"`
	CaseID          string      `json:"case_id"`
	EstablishmentID string      `json:"establishment_id"`
	ActorID         string      `json:"actor_id"`
	Timestamp       time.Time   `json:"timestamp"`
	Payload         interface{} `json:"payload"`
}

// CaseOpenedPayload payload.
type CaseOpenedPayload struct {
	Severity      domain.CaseSeverity `json:"severity"`
	StudentID     string              `json:"student_id"`
	FatalDeadline time.Time           `json:"fatal_deadline"`
	Degraded      bool                `json:"deadline_degraded"`
}

// StageChangedPayload payload.
type StageChangedPayload struct {
	FromStage    domain.CaseStage    `json:"from_stage"`
	ToStage      domain.CaseStage    `json:"to_stage"`
	TransitionID domain.TransitionID `json:"transition_id"`
	At           time.Time           `json:"at"`
}

// CaseNoteAddedPayload payload.
type CaseNoteAddedPayload struct {
	NoteID      string              `json:"note_id"`
	Kind        domain.CaseNoteKind `json:"kind"`
	BodyPreview string              `json:"body_preview"`
}

// MediationStartedPayload payload.
type MediationStartedPayload struct {
	MediationID string `json:"mediation_id"`
}

// MediationConfirmedPayload payload.
type MediationConfirmedPayload struct {
	MediationID string                  `json:"mediation_id"`
	Outcome     domain.MediationOutcome `json:"outcome"`
	Commitments int                     `json:"commitments"`
}
