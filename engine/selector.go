/*
selector.go - Base dataset selection

PURPOSE:
  Narrows the base dataset to the records a run should credit. Two filter
  stages, in order:

  1. Date window: the record's transaction date must parse and lie in the
     closed interval [scheme effective-from, run as-of]. Records with a
     missing or unparseable date are silently dropped.

  2. Per-record qualification: qualification rules whose resolved field is
     PerRecord-level against the base dataset must all hold. Short-circuits
     on the first failure. Disqualification here is deliberately silent;
     agent-level qualification failures are the logged ones.

SEE ALSO:
  - processor.go: What happens to the records that survive
  - qualify.go: The agent-level (logged) counterpart
*/
package engine

import "strings"

// RecordSelector filters the base dataset for a run.
type RecordSelector struct {
	scheme *SchemeDefinition
	fields FieldMap
	logger *Logger

	perRecord []CompiledCondition
}

// NewRecordSelector compiles the scheme's per-record qualification rules
// against the field map.
func NewRecordSelector(scheme *SchemeDefinition, fields FieldMap, logger *Logger) *RecordSelector {
	s := &RecordSelector{scheme: scheme, fields: fields, logger: logger}

	base := scheme.BaseMapping.SourceFile
	for _, rule := range scheme.QualificationRules {
		cc := CompileCondition(rule.Condition, fields, logger)
		if !cc.Resolved {
			continue
		}
		if cc.Mapping.EvaluationLevel != LevelPerRecord {
			continue // agent-level rules are the gate's business
		}
		if cc.Mapping.SourceFile != "" && cc.Mapping.SourceFile != base {
			continue // rules over other datasets never filter base records
		}
		s.perRecord = append(s.perRecord, cc)
	}
	return s
}

// Select returns the base records inside the run window that pass every
// per-record qualification rule, in input order.
func (s *RecordSelector) Select(records []Record, from, asOf DateOnly) []Record {
	dateMapping, ok := s.fields.Lookup(FieldTransactionDate)
	if !ok {
		// Cannot happen after ResolveFields, which always injects it.
		s.logger.Errorf("selector", "transaction date field is unmapped; selecting nothing")
		return nil
	}

	var selected []Record
	for _, rec := range records {
		raw := stringify(rec.Get(dateMapping.SourceField))
		d, err := ParseDate(strings.TrimSpace(raw))
		if err != nil {
			continue // unparseable or missing date: silent drop
		}
		if !d.InClosedRange(from, asOf) {
			continue
		}
		if !s.qualifies(rec) {
			continue
		}
		selected = append(selected, rec)
	}
	return selected
}

// qualifies applies the per-record qualification rules as a short-circuit
// AND. No log entries here; this stage is silent.
func (s *RecordSelector) qualifies(rec Record) bool {
	for _, cc := range s.perRecord {
		if !cc.Eval(rec, s.logger) {
			return false
		}
	}
	return true
}
