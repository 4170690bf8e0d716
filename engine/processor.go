/*
processor.go - Per-record exclusion and adjustment

PURPOSE:
  Turns a selected base record into a ProcessedRecord carrying the
  credited amount after exclusions and adjustments. The step order is
  fixed and the two rule families deliberately behave differently:

  1. Exclusion: first matching rule wins. The record is marked excluded,
     one Exclusion log entry is emitted, and no further exclusion rules
     are checked.

  2. Adjustment (skipped when excluded): every matching rule applies, in
     declaration order, and the effects compound:
       Rate   + percentage: running multiplier *= value/100
       Amount + percentage: running amount += running amount * value/100
       Amount + fixed:      running amount += value
     Unknown target/type combinations warn and have no numeric effect.

  Final adjusted amount = running amount * running multiplier when not
  excluded, exactly zero otherwise.

  The first-match exclusion vs all-match adjustment asymmetry is
  intentional. Do not unify the two policies.

SEE ALSO:
  - aggregate.go: Sums adjusted amounts per agent
*/
package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type compiledExclusion struct {
	rule ExclusionRule
	cond CompiledCondition
}

type compiledAdjustment struct {
	rule AdjustmentRule
	cond CompiledCondition
}

// RecordProcessor applies exclusion and adjustment rules to one record.
type RecordProcessor struct {
	fields   FieldMap
	rounding Rounding
	logger   *Logger

	exclusions  []compiledExclusion
	adjustments []compiledAdjustment
}

// NewRecordProcessor compiles the scheme's exclusion and adjustment rules.
func NewRecordProcessor(scheme *SchemeDefinition, fields FieldMap, rounding Rounding, logger *Logger) *RecordProcessor {
	p := &RecordProcessor{fields: fields, rounding: rounding, logger: logger}
	for _, rule := range scheme.ExclusionRules {
		p.exclusions = append(p.exclusions, compiledExclusion{
			rule: rule,
			cond: CompileCondition(rule.Condition, fields, logger),
		})
	}
	for _, rule := range scheme.AdjustmentRules {
		p.adjustments = append(p.adjustments, compiledAdjustment{
			rule: rule,
			cond: CompileCondition(rule.Condition, fields, logger),
		})
	}
	return p
}

// Process derives the ProcessedRecord for one input record, plus the audit
// entries for every rule that fired. The input record is not mutated.
func (p *RecordProcessor) Process(rec Record) (ProcessedRecord, []RuleLogEntry) {
	agentMapping, _ := p.fields.Lookup(FieldAgent)
	amountMapping, _ := p.fields.Lookup(FieldAmount)

	pr := ProcessedRecord{
		Record:         rec,
		AgentID:        strings.TrimSpace(stringify(rec.Get(agentMapping.SourceField))),
		RateMultiplier: decimal.NewFromInt(1),
	}

	amount, err := decimalFromAny(rec.Get(amountMapping.SourceField))
	if err != nil {
		p.logger.Warnf("processor", "record %s: amount %q is not numeric, crediting zero",
			rec.ID(), stringify(rec.Get(amountMapping.SourceField)))
		amount = decimal.Zero
	}
	pr.OriginalAmount = amount

	var logs []RuleLogEntry

	// Exclusion: first match wins.
	for _, ex := range p.exclusions {
		if !ex.cond.Resolved {
			continue
		}
		if !ex.cond.Eval(rec, p.logger) {
			continue
		}
		pr.IsExcluded = true
		pr.ExclusionReason = ex.rule.Reason
		if pr.ExclusionReason == "" {
			pr.ExclusionReason = ex.rule.ID
		}
		logs = append(logs, RuleLogEntry{
			RuleType: RuleExclusion,
			RuleID:   ex.rule.ID,
			RecordID: rec.ID(),
			AgentID:  pr.AgentID,
			Message:  "record excluded: " + pr.ExclusionReason,
			Details: map[string]string{
				"field":    ex.rule.Field,
				"operator": ex.rule.Operator,
				"value":    ex.rule.Value,
			},
			Timestamp: time.Now().UTC(),
		})
		break
	}

	if pr.IsExcluded {
		pr.AdjustedAmount = decimal.Zero
		return pr, logs
	}

	// Adjustment: every matching rule applies and compounds.
	running := amount
	multiplier := decimal.NewFromInt(1)
	var notes []string

	for _, adj := range p.adjustments {
		if !adj.cond.Resolved {
			continue
		}
		if !adj.cond.Eval(rec, p.logger) {
			continue
		}

		applied := true
		var note string
		switch {
		case adj.rule.Target == AdjustTargetRate && adj.rule.AdjustmentType == AdjustTypePercentage:
			multiplier = multiplier.Mul(adj.rule.AdjustmentValue.Div(decimal.NewFromInt(100)))
			note = "rate x " + p.rounding.Rate(adj.rule.AdjustmentValue.Div(decimal.NewFromInt(100)))
		case adj.rule.Target == AdjustTargetAmount && adj.rule.AdjustmentType == AdjustTypePercentage:
			delta := running.Mul(adj.rule.AdjustmentValue).Div(decimal.NewFromInt(100))
			running = running.Add(delta)
			note = "amount + " + p.rounding.Money(delta)
		case adj.rule.Target == AdjustTargetAmount && adj.rule.AdjustmentType == AdjustTypeFixed:
			running = running.Add(adj.rule.AdjustmentValue)
			note = "amount + " + p.rounding.Money(adj.rule.AdjustmentValue)
		default:
			applied = false
			p.logger.Warnf("processor", "adjustment rule %s: unknown target/type %q/%q, no effect",
				adj.rule.ID, adj.rule.Target, adj.rule.AdjustmentType)
		}
		if !applied {
			continue
		}

		notes = append(notes, adj.rule.ID+": "+note)
		logs = append(logs, RuleLogEntry{
			RuleType: RuleAdjustment,
			RuleID:   adj.rule.ID,
			RecordID: rec.ID(),
			AgentID:  pr.AgentID,
			Message:  "adjustment applied: " + note,
			Details: map[string]string{
				"target": adj.rule.Target,
				"type":   adj.rule.AdjustmentType,
				"value":  adj.rule.AdjustmentValue.String(),
			},
			Timestamp: time.Now().UTC(),
		})
	}

	pr.RateMultiplier = multiplier
	pr.AdjustedAmount = running.Mul(multiplier)
	pr.AdjustmentNote = strings.Join(notes, "; ")
	return pr, logs
}
