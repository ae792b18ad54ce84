package domain

import "time"

// CaseSeverity classifies a case under the regulated typology.
// The severity fixes which statutory deadline rule applies.
type CaseSeverity string

const (
	SeverityMinor           CaseSeverity = "MINOR"
	SeverityRelevant        CaseSeverity = "RELEVANT"
	SeveritySevereExpulsion CaseSeverity = "SEVERE_EXPULSION"
)

// ValidSeverity reports whether s is a known severity value.
func ValidSeverity(s CaseSeverity) bool {
	switch s {
	case SeverityMinor, SeverityRelevant, SeveritySevereExpulsion:
		return true
	}
	return false
}

// CaseStage enumerates the fixed stage graph a case moves through.
type CaseStage string

const (
	StageIntake            CaseStage = "INTAKE"
	StageNotified          CaseStage = "NOTIFIED"
	StageRebuttal          CaseStage = "REBUTTAL"
	StageInvestigation     CaseStage = "INVESTIGATION"
	StagePendingResolution CaseStage = "PENDING_RESOLUTION"
	StageReconsideration   CaseStage = "RECONSIDERATION"
	StageClosedSanction    CaseStage = "CLOSED_SANCTION"
	StageMediatedClosure   CaseStage = "MEDIATED_CLOSURE"
)

// Terminal reports whether the stage has no outgoing transitions.
func (s CaseStage) Terminal() bool {
	return s == StageClosedSanction || s == StageMediatedClosure
}

// ValidStage reports whether s is a known stage value.
func ValidStage(s CaseStage) bool {
	switch s {
	case StageIntake, StageNotified, StageRebuttal, StageInvestigation,
		StagePendingResolution, StageReconsideration, StageClosedSanction, StageMediatedClosure:
		return true
	}
	return false
}

// CaseOutcome records how a terminal case was resolved.
type CaseOutcome string

const (
	OutcomeSanctioned          CaseOutcome = "SANCTIONED"
	OutcomeMediatedAgreement   CaseOutcome = "MEDIATED_AGREEMENT"
	OutcomeMediatedNoAgreement CaseOutcome = "MEDIATED_NO_AGREEMENT"
)

// Case is the aggregate for a disciplinary/welfare matter. The version field
// is the optimistic-concurrency precondition for every committed mutation.
type Case struct {
	ID                      string
	ExternalKey             string
	EstablishmentID         string
	StudentID               string
	ReportedByID            string
	Title                   string
	Description             string
	Severity                CaseSeverity
	Stage                   CaseStage
	Outcome                 *CaseOutcome
	OpenedAt                time.Time
	FatalDeadline           time.Time
	DeadlineDegraded        bool
	ReconsiderationDeadline *time.Time
	Version                 int64
	CreatedAt               time.Time
	UpdatedAt               time.Time
	ClosedAt                *time.Time
}

// Closed reports whether the case reached a terminal stage.
func (c *Case) Closed() bool {
	return c.Stage.Terminal()
}
