package domain

// TransitionID names one edge of the stage graph. Callers always name the
// transition explicitly; the engine never infers intent from the checklist.
type TransitionID string

const (
	TransitionNotify                 TransitionID = "notify"
	TransitionOpenRebuttal           TransitionID = "open_rebuttal"
	TransitionBeginInvestigation     TransitionID = "begin_investigation"
	TransitionCloseInvestigation     TransitionID = "close_investigation"
	TransitionResolveSanction        TransitionID = "resolve_sanction"
	TransitionRequestReconsideration TransitionID = "request_reconsideration"
	TransitionUpholdSanction         TransitionID = "uphold_sanction"
	TransitionDeriveMediation        TransitionID = "derive_mediation"
)

// TransitionRule is one allowed edge with its evidence gate. The rule set is
// fixed by regulation: every non-terminal stage has at least one outgoing
// rule and terminal stages have none.
type TransitionRule struct {
	ID                 TransitionID
	FromStages         []CaseStage
	ToStage            CaseStage
	RequiredChecklist  []string
	RecomputesDeadline bool
}

// AllowsFrom reports whether the rule can fire from the given stage.
func (r TransitionRule) AllowsFrom(stage CaseStage) bool {
	for _, s := range r.FromStages {
		if s == stage {
			return true
		}
	}
	return false
}

var transitionRules = []TransitionRule{
	{
		ID:                TransitionNotify,
		FromStages:        []CaseStage{StageIntake},
		ToStage:           StageNotified,
		RequiredChecklist: []string{"guardian_notified", "written_notice_recorded"},
	},
	{
		ID:                TransitionOpenRebuttal,
		FromStages:        []CaseStage{StageNotified},
		ToStage:           StageRebuttal,
		RequiredChecklist: []string{"rebuttal_window_communicated"},
	},
	{
		ID:                TransitionBeginInvestigation,
		FromStages:        []CaseStage{StageRebuttal},
		ToStage:           StageInvestigation,
		RequiredChecklist: []string{"rebuttal_recorded", "investigator_assigned"},
	},
	{
		ID:                TransitionCloseInvestigation,
		FromStages:        []CaseStage{StageInvestigation},
		ToStage:           StagePendingResolution,
		RequiredChecklist: []string{"evidence_reviewed", "interviews_completed"},
	},
	{
		ID:                TransitionResolveSanction,
		FromStages:        []CaseStage{StagePendingResolution},
		ToStage:           StageClosedSanction,
		RequiredChecklist: []string{"resolution_drafted", "guardian_informed"},
	},
	{
		ID:                 TransitionRequestReconsideration,
		FromStages:         []CaseStage{StagePendingResolution},
		ToStage:            StageReconsideration,
		RequiredChecklist:  []string{"appeal_letter_received"},
		RecomputesDeadline: true,
	},
	{
		ID:                TransitionUpholdSanction,
		FromStages:        []CaseStage{StageReconsideration},
		ToStage:           StageClosedSanction,
		RequiredChecklist: []string{"review_panel_convened", "decision_recorded"},
	},
	{
		ID:                TransitionDeriveMediation,
		FromStages:        []CaseStage{StageNotified, StageRebuttal, StageInvestigation, StagePendingResolution},
		ToStage:           StageMediatedClosure,
		RequiredChecklist: []string{"parties_consent_recorded"},
	},
}

// RuleFor returns the rule registered under the given transition id.
func RuleFor(id TransitionID) (TransitionRule, bool) {
	for _, rule := range transitionRules {
		if rule.ID == id {
			return rule, true
		}
	}
	return TransitionRule{}, false
}

// TransitionRules returns a copy of the full rule table.
func TransitionRules() []TransitionRule {
	out := make([]TransitionRule, len(transitionRules))
	copy(out, transitionRules)
	return out
}
