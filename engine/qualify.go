/*
qualify.go - Agent-level qualification

PURPOSE:
  Decides whether an agent's summed credited amount earns a payout at all.
  Two layers:

  - Baseline: a total of zero or less never qualifies and emits no log
    entry. That is a precondition, not a rule failure.
  - Agent-level qualification rules: evaluated against the total. The
    first failing rule disqualifies, logs a Qualification entry with the
    operator, rule value and actual amount, and stops evaluation.

  A rule value that failed to parse at compile time evaluates false,
  exactly as it does per record in condition.go, so it fails the rule and
  disqualifies the agent. An empty rule value follows the null policy:
  only != holds against the (always non-empty) total.

SUPPORTED AGGREGATION:
  Only rules targeting the primary amount field with Sum aggregation are
  evaluated. Anything else is skipped with a warning; the skip is
  surfaced, never a silent pass.
*/
package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type compiledAgentRule struct {
	rule      QualificationRule
	cond      CompiledCondition
	supported bool
}

// QualificationGate evaluates agent-level qualification rules.
type QualificationGate struct {
	rounding Rounding
	logger   *Logger
	rules    []compiledAgentRule
}

// NewQualificationGate compiles the scheme's agent-level qualification rules.
func NewQualificationGate(scheme *SchemeDefinition, fields FieldMap, rounding Rounding, logger *Logger) *QualificationGate {
	g := &QualificationGate{rounding: rounding, logger: logger}

	for _, rule := range scheme.QualificationRules {
		cc := CompileCondition(rule.Condition, fields, logger)
		if !cc.Resolved || cc.Mapping.EvaluationLevel != LevelAgent {
			continue
		}
		supported := cc.Mapping.SourceField == scheme.BaseMapping.AmountField &&
			cc.Mapping.DataType == TypeNumber &&
			strings.EqualFold(cc.Mapping.Aggregation, "Sum")
		if !supported {
			logger.Warnf("qualify", "agent-level rule %s targets %s/%s; only Sum over the primary amount field is supported, skipping",
				rule.ID, cc.Mapping.SourceField, cc.Mapping.Aggregation)
		}
		g.rules = append(g.rules, compiledAgentRule{rule: rule, cond: cc, supported: supported})
	}
	return g
}

// Qualifies reports whether the agent earns a payout, plus the log entries
// for any failing rule.
func (g *QualificationGate) Qualifies(agentID string, total decimal.Decimal) (bool, []RuleLogEntry) {
	if total.LessThanOrEqual(decimal.Zero) {
		return false, nil // baseline precondition, never logged
	}

	for _, r := range g.rules {
		if !r.supported {
			continue
		}
		passed := false
		switch {
		case r.cond.ruleEmpty:
			passed = r.rule.Operator == "!="
		case r.cond.typedOK:
			passed = orderedResult(r.rule.Operator, total.Cmp(r.cond.ruleNum), g.logger)
		}
		// !typedOK falls through as false: a malformed rule value fails
		// the rule, the same way it fails per record in Eval.
		if passed {
			continue
		}
		entry := RuleLogEntry{
			RuleType: RuleQualification,
			RuleID:   r.rule.ID,
			AgentID:  agentID,
			Message:  "agent disqualified: summed amount " + g.rounding.Money(total) + " failed " + r.rule.Operator + " " + r.rule.Value,
			Details: map[string]string{
				"operator":     r.rule.Operator,
				"rule_value":   r.rule.Value,
				"total_amount": g.rounding.Money(total),
			},
			Timestamp: time.Now().UTC(),
		}
		return false, []RuleLogEntry{entry}
	}
	return true, nil
}
