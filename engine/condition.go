/*
condition.go - Typed condition evaluation

PURPOSE:
  Compares a record value against a rule value under a declared data type.
  This is the single comparison primitive every rule in the engine goes
  through: exclusions, adjustments, and qualification at both record and
  agent level.

NULL POLICY (applies before typed dispatch):
  - Empty record value: true only for `=` against an equally-empty rule
    value, false otherwise.
  - Empty rule value against a non-empty record value: `!=` is true,
    everything else false.

TYPED DISPATCH:
  Number: exact decimal comparison, operators = != > >= < <=
  Date:   UTC year/month/day comparison, same operators
  String: trimmed, case-folded; = != CONTAINS STARTSWITH ENDSWITH
          NOT CONTAINS

  An unknown operator logs a warning and evaluates false. Silent failure
  is the contract here, not an error.

PRE-PARSED RULE VALUES:
  Conditions are compiled once per run (CompileCondition). Numeric and
  date rule values are parsed at compile time so malformed rule
  definitions are reported up front instead of once per record.

SEE ALSO:
  - fields.go: The field map conditions compile against
*/
package engine

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Evaluate compares a record value against a rule value under the given
// data type. This is the uncompiled form of the comparison; hot paths use
// CompiledCondition instead.
func Evaluate(recordValue any, operator, ruleValue string, dataType DataType, logger *Logger) bool {
	recS := strings.TrimSpace(stringify(recordValue))
	ruleS := strings.TrimSpace(ruleValue)

	if recS == "" {
		return operator == "=" && ruleS == ""
	}
	if ruleS == "" {
		return operator == "!="
	}

	switch dataType {
	case TypeNumber:
		rv, err := decimalFromAny(recordValue)
		if err != nil {
			return false
		}
		tv, err := decimal.NewFromString(ruleS)
		if err != nil {
			return false
		}
		return orderedResult(operator, rv.Cmp(tv), logger)

	case TypeDate:
		rd, err := ParseDate(recS)
		if err != nil {
			return false
		}
		td, err := ParseDate(ruleS)
		if err != nil {
			return false
		}
		return orderedResult(operator, rd.Compare(td), logger)

	default:
		return compareString(recS, ruleS, operator, logger)
	}
}

// orderedResult maps a relational operator onto a three-way comparison.
func orderedResult(operator string, cmp int, logger *Logger) bool {
	switch operator {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	default:
		logger.Warnf("condition", "unknown operator %q for ordered comparison", operator)
		return false
	}
}

func compareString(recordValue, ruleValue, operator string, logger *Logger) bool {
	a := strings.ToLower(recordValue)
	b := strings.ToLower(ruleValue)

	switch strings.ToUpper(strings.TrimSpace(operator)) {
	case "=":
		return a == b
	case "!=":
		return a != b
	case "CONTAINS":
		return strings.Contains(a, b)
	case "NOT CONTAINS":
		return !strings.Contains(a, b)
	case "STARTSWITH":
		return strings.HasPrefix(a, b)
	case "ENDSWITH":
		return strings.HasSuffix(a, b)
	default:
		logger.Warnf("condition", "unknown operator %q for string comparison", operator)
		return false
	}
}

// =============================================================================
// COMPILED CONDITIONS - field resolved and rule value parsed once per run
// =============================================================================

// CompiledCondition is a Condition bound to its field mapping with the
// rule value parsed into its declared type. Compile once, evaluate per
// record.
type CompiledCondition struct {
	Condition
	Mapping FieldMapping

	// Resolved is false when the logical field has no mapping. Callers
	// skip unresolved conditions; skipping, not failing, is the policy
	// for unmapped rule fields.
	Resolved bool

	typedOK   bool
	ruleNum   decimal.Decimal
	ruleDate  DateOnly
	ruleEmpty bool
}

// CompileCondition resolves the condition's field and pre-parses its rule
// value. Malformed numeric or date rule values are reported here, once,
// and the condition evaluates false against every non-empty record value.
func CompileCondition(cond Condition, fields FieldMap, logger *Logger) CompiledCondition {
	cc := CompiledCondition{Condition: cond}

	mapping, ok := fields.Lookup(cond.Field)
	if !ok {
		logger.Warnf("condition", "rule references unmapped field %q; rule will not apply", cond.Field)
		return cc
	}
	cc.Mapping = mapping
	cc.Resolved = true

	ruleS := strings.TrimSpace(cond.Value)
	cc.ruleEmpty = ruleS == ""
	if cc.ruleEmpty {
		return cc
	}

	switch mapping.DataType {
	case TypeNumber:
		n, err := decimal.NewFromString(ruleS)
		if err != nil {
			logger.Warnf("condition", "rule value %q is not a number for field %q", cond.Value, cond.Field)
			return cc
		}
		cc.ruleNum = n
		cc.typedOK = true
	case TypeDate:
		d, err := ParseDate(ruleS)
		if err != nil {
			logger.Warnf("condition", "rule value %q is not a YYYY-MM-DD date for field %q", cond.Value, cond.Field)
			return cc
		}
		cc.ruleDate = d
		cc.typedOK = true
	default:
		cc.typedOK = true
	}
	return cc
}

// Eval evaluates the compiled condition against a record. Unresolved
// conditions evaluate false; callers that must distinguish "rule skipped"
// from "rule failed" check Resolved first.
func (c CompiledCondition) Eval(rec Record, logger *Logger) bool {
	if !c.Resolved {
		return false
	}

	raw := rec.Get(c.Mapping.SourceField)
	recS := strings.TrimSpace(stringify(raw))

	if recS == "" {
		return c.Operator == "=" && c.ruleEmpty
	}
	if c.ruleEmpty {
		return c.Operator == "!="
	}

	switch c.Mapping.DataType {
	case TypeNumber:
		if !c.typedOK {
			return false
		}
		rv, err := decimalFromAny(raw)
		if err != nil {
			return false
		}
		return orderedResult(c.Operator, rv.Cmp(c.ruleNum), logger)

	case TypeDate:
		if !c.typedOK {
			return false
		}
		rd, err := ParseDate(recS)
		if err != nil {
			return false
		}
		return orderedResult(c.Operator, rd.Compare(c.ruleDate), logger)

	default:
		return compareString(recS, strings.TrimSpace(c.Value), c.Operator, logger)
	}
}
