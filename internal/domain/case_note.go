package domain

import "time"

// CaseNoteKind distinguishes internal log entries from notes that are
// visible to the student's guardian.
type CaseNoteKind string

const (
	NoteKindInternal        CaseNoteKind = "INTERNAL"
	NoteKindGuardianVisible CaseNoteKind = "GUARDIAN_VISIBLE"
)

// CaseNote is one append-only log entry in a case's record book.
type CaseNote struct {
	ID        string
	CaseID    string
	AuthorID  string
	Kind      CaseNoteKind
	Body      string
	CreatedAt time.Time
}
