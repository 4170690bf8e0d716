package engine_test

import (
	"testing"

	"github.com/warp/incentive-engine/engine"
)

func qualificationScheme() *engine.SchemeDefinition {
	scheme := processorScheme()
	scheme.KPIConfig.QualificationFields = []engine.FieldMapping{
		{LogicalName: "TotalPremium", SourceField: "Premium", DataType: engine.TypeNumber,
			EvaluationLevel: engine.LevelAgent, Aggregation: "Sum", SourceFile: "sales"},
	}
	scheme.QualificationRules = []engine.QualificationRule{
		{ID: "qual-min-70k", Condition: engine.Condition{Field: "TotalPremium", Operator: ">=", Value: "70000"}},
	}
	return scheme
}

func newGate(scheme *engine.SchemeDefinition) *engine.QualificationGate {
	fields := engine.ResolveFields(scheme, nil)
	return engine.NewQualificationGate(scheme, fields, engine.DefaultRounding, nil)
}

func TestQualifies_ZeroOrNegativeTotalNeverQualifies(t *testing.T) {
	// Baseline precondition: no payout and, deliberately, no log entry.
	gate := newGate(qualificationScheme())

	for _, total := range []string{"0", "-100"} {
		ok, logs := gate.Qualifies("101", dec(total))
		if ok {
			t.Errorf("total %s must not qualify", total)
		}
		if len(logs) != 0 {
			t.Errorf("total %s: baseline disqualification must not log, got %d entries", total, len(logs))
		}
	}
}

func TestQualifies_FailingRuleLogsAndShortCircuits(t *testing.T) {
	// GIVEN: a >= 70000 rule and a 50000 total
	// THEN: disqualified with one Qualification entry carrying the numbers

	gate := newGate(qualificationScheme())
	ok, logs := gate.Qualifies("101", dec("50000"))

	if ok {
		t.Fatal("50000 must not pass the 70000 threshold")
	}
	if len(logs) != 1 {
		t.Fatalf("expected exactly one qualification log entry, got %d", len(logs))
	}
	entry := logs[0]
	if entry.RuleType != engine.RuleQualification || entry.RuleID != "qual-min-70k" {
		t.Errorf("unexpected log entry: %+v", entry)
	}
	if entry.Details["operator"] != ">=" || entry.Details["rule_value"] != "70000" || entry.Details["total_amount"] != "50000.00" {
		t.Errorf("log entry must carry operator, rule value and actual amount: %v", entry.Details)
	}
}

func TestQualifies_PassingTotalQualifiesWithoutLogs(t *testing.T) {
	gate := newGate(qualificationScheme())
	ok, logs := gate.Qualifies("101", dec("130000"))

	if !ok {
		t.Fatal("130000 should pass the 70000 threshold")
	}
	if len(logs) != 0 {
		t.Errorf("passing qualification must not log, got %d entries", len(logs))
	}
}

func TestQualifies_MalformedRuleValueDisqualifies(t *testing.T) {
	// GIVEN: a supported Sum rule whose value is not a number
	// THEN: the rule evaluates false, so the agent is disqualified with a
	//       Qualification entry - never silently passed

	scheme := qualificationScheme()
	scheme.QualificationRules = []engine.QualificationRule{
		{ID: "qual-bad-value", Condition: engine.Condition{Field: "TotalPremium", Operator: ">=", Value: "lots"}},
	}

	gate := newGate(scheme)
	ok, logs := gate.Qualifies("101", dec("80000"))

	if ok {
		t.Fatal("a rule with an unparseable value must fail, not be skipped")
	}
	if len(logs) != 1 {
		t.Fatalf("expected one qualification log entry, got %d", len(logs))
	}
	if logs[0].RuleID != "qual-bad-value" || logs[0].RuleType != engine.RuleQualification {
		t.Errorf("unexpected log entry: %+v", logs[0])
	}
}

func TestQualifies_EmptyRuleValueFollowsNullPolicy(t *testing.T) {
	// An empty rule value against the (non-empty) total: only != holds.
	for _, tc := range []struct {
		operator string
		want     bool
	}{
		{">=", false},
		{"!=", true},
	} {
		scheme := qualificationScheme()
		scheme.QualificationRules = []engine.QualificationRule{
			{ID: "qual-empty", Condition: engine.Condition{Field: "TotalPremium", Operator: tc.operator, Value: ""}},
		}

		gate := newGate(scheme)
		ok, logs := gate.Qualifies("101", dec("80000"))

		if ok != tc.want {
			t.Errorf("operator %q with empty rule value: qualified=%v, want %v", tc.operator, ok, tc.want)
		}
		if !tc.want && len(logs) != 1 {
			t.Errorf("operator %q: failing rule must log, got %d entries", tc.operator, len(logs))
		}
	}
}

func TestQualifies_UnsupportedAggregationIsSkippedNotFailed(t *testing.T) {
	// Only Sum over the primary amount field is supported; anything else
	// is skipped with a warning, never a silent pass into failure.
	scheme := qualificationScheme()
	scheme.KPIConfig.QualificationFields = append(scheme.KPIConfig.QualificationFields,
		engine.FieldMapping{LogicalName: "AvgPremium", SourceField: "Premium", DataType: engine.TypeNumber,
			EvaluationLevel: engine.LevelAgent, Aggregation: "Avg", SourceFile: "sales"})
	scheme.QualificationRules = append(scheme.QualificationRules,
		engine.QualificationRule{ID: "qual-avg", Condition: engine.Condition{Field: "AvgPremium", Operator: ">=", Value: "999999"}})

	gate := newGate(scheme)
	ok, logs := gate.Qualifies("101", dec("80000"))

	if !ok {
		t.Fatal("the unsupported Avg rule must be skipped, not evaluated")
	}
	if len(logs) != 0 {
		t.Errorf("skipped rules must not log against the agent, got %d entries", len(logs))
	}
}
