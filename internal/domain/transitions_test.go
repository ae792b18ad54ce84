package domain

import "testing"

func TestTerminalStagesHaveNoOutgoingRules(t *testing.T) {
	for _, rule := range TransitionRules() {
		for _, from := range rule.FromStages {
			if from.Terminal() {
				t.Errorf("rule %s fires from terminal stage %s", rule.ID, from)
			}
		}
	}
}

func TestRuleForUnknown(t *testing.T) {
	if _, ok := RuleFor("escalate"); ok {
		t.Fatal("unknown transition id resolved to a rule")
	}
}

func TestMediatedClosureEntryPoints(t *testing.T) {
	rule, ok := RuleFor(TransitionDeriveMediation)
	if !ok {
		t.Fatal("derive_mediation rule missing")
	}
	want := []CaseStage{StageNotified, StageRebuttal, StageInvestigation, StagePendingResolution}
	for _, stage := range want {
		if !rule.AllowsFrom(stage) {
			t.Errorf("derive_mediation should fire from %s", stage)
		}
	}
	if rule.AllowsFrom(StageIntake) {
		t.Error("derive_mediation must not fire from intake")
	}
	if rule.ToStage != StageMediatedClosure {
		t.Errorf("derive_mediation targets %s", rule.ToStage)
	}
}

func TestReconsiderationBranch(t *testing.T) {
	request, _ := RuleFor(TransitionRequestReconsideration)
	if !request.AllowsFrom(StagePendingResolution) || request.ToStage != StageReconsideration {
		t.Fatalf("unexpected reconsideration request rule %+v", request)
	}
	if !request.RecomputesDeadline {
		t.Fatal("reconsideration request must recompute the deadline")
	}

	uphold, _ := RuleFor(TransitionUpholdSanction)
	if !uphold.AllowsFrom(StageReconsideration) || uphold.ToStage != StageClosedSanction {
		t.Fatalf("unexpected uphold rule %+v", uphold)
	}
}

func TestEveryRuleHasDistinctID(t *testing.T) {
	seen := map[TransitionID]bool{}
	for _, rule := range TransitionRules() {
		if seen[rule.ID] {
			t.Errorf("duplicate transition id %s", rule.ID)
		}
		seen[rule.ID] = true
		if len(rule.FromStages) == 0 {
			t.Errorf("rule %s has no source stages", rule.ID)
		}
	}
}
