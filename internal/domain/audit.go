package domain

import "time"

// AuditEntry is an immutable record of one committed stage transition.
// Entries are written in the same transaction as the stage change they
// describe, so their order is the commit order of transitions.
type AuditEntry struct {
	ID                 string
	CaseID             string
	TransitionID       TransitionID
	FromStage          CaseStage
	ToStage            CaseStage
	ActorID            string
	SatisfiedChecklist []string
	CreatedAt          time.Time
}
