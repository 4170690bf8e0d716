/*
Package engine computes sales-incentive payouts.

PURPOSE:
  This package contains the full payout computation: typed condition
  evaluation over record fields, exclusion and adjustment rule processing,
  per-agent aggregation, qualification gating, marginal tier payouts, and
  hierarchical credit splits. One run is a pure function of
  (scheme, datasets, as-of date) -> RunResult.

KEY CONCEPTS IN THIS FILE (types.go):
  - SchemeDefinition: The declarative ruleset governing a run
  - FieldMapping: logical name -> physical field descriptor
  - Record/ProcessedRecord: Raw input row and its processed derivative
  - HierarchyRecord: Time-bounded reporting relationship
  - RuleLogEntry: Append-only audit of every rule that fired
  - RunResult: The four output collections of a run

DESIGN PRINCIPLES:
  1. Immutability: input records are never mutated; processing derives new values
  2. Precision: all monetary math uses decimal.Decimal, never float64
  3. Auditability: every exclusion, adjustment, qualification failure and
     credit split leaves a log entry
  4. Statelessness: nothing outlives the run that produced it

SEE ALSO:
  - condition.go: Typed condition evaluation
  - processor.go: Exclusion and adjustment processing
  - tiers.go: Marginal tier payout calculation
  - run.go: The orchestrator tying everything together
*/
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FIELD MAPPING - logical name to physical field descriptor
// =============================================================================

// DataType declares how a mapped field's values are compared.
type DataType string

const (
	TypeString DataType = "String"
	TypeNumber DataType = "Number"
	TypeDate   DataType = "Date"
)

// EvaluationLevel declares where a rule over the field applies.
type EvaluationLevel string

const (
	LevelPerRecord EvaluationLevel = "PerRecord"
	LevelAgent     EvaluationLevel = "Agent"
)

// FieldMapping binds a logical rule-facing name to a physical column.
type FieldMapping struct {
	LogicalName     string
	SourceField     string
	DataType        DataType
	EvaluationLevel EvaluationLevel
	Aggregation     string // e.g. "Sum"; only meaningful at agent level
	SourceFile      string // dataset the field lives in
}

// Logical names injected from the base mapping when no explicit KPI entry
// defines them. Record-level logic can always rely on these three.
const (
	FieldAgent           = "Agent"
	FieldAmount          = "Amount"
	FieldTransactionDate = "TransactionDate"
)

// =============================================================================
// SCHEME DEFINITION - immutable configuration for one run
// =============================================================================

// BaseMapping identifies the base dataset and its three mandatory columns.
// All four fields are required; the orchestrator fails fast when any is empty.
type BaseMapping struct {
	SourceFile           string
	AgentField           string
	AmountField          string
	TransactionDateField string
}

// Condition is a single comparison: resolved field vs a literal value.
type Condition struct {
	Field    string // logical field name, resolved through the field map
	Operator string
	Value    string
}

// QualificationRule gates either records (PerRecord) or agents (Agent),
// depending on the evaluation level of its resolved field.
type QualificationRule struct {
	ID string
	Condition
}

// ExclusionRule drops a record from crediting. First matching rule wins.
type ExclusionRule struct {
	ID     string
	Reason string
	Condition
}

// Adjustment targets and types. Unknown combinations log a warning and
// have no numeric effect.
const (
	AdjustTargetRate   = "Rate"
	AdjustTargetAmount = "Amount"

	AdjustTypePercentage = "percentage"
	AdjustTypeFixed      = "fixed"
)

// AdjustmentRule modifies the credited amount or rate multiplier of a
// record whose condition holds. All matching rules compound.
type AdjustmentRule struct {
	ID string
	Condition
	Target          string          // Rate | Amount
	AdjustmentType  string          // percentage | fixed
	AdjustmentValue decimal.Decimal // parsed once at scheme load
}

// CreditSplit sends a percentage of an agent's base payout to the manager
// holding the given hierarchy role.
type CreditSplit struct {
	ID         string
	Role       string
	Percentage decimal.Decimal
}

// PayoutTier is one bracket of the marginal payout table.
// To == nil means unbounded above.
type PayoutTier struct {
	From         decimal.Decimal
	To           *decimal.Decimal
	Rate         decimal.Decimal
	IsPercentage bool // true: Rate is a percentage of the slice; false: per-unit multiplier
}

// KPIConfig groups the five field-mapping sections of a scheme.
type KPIConfig struct {
	BaseData            []FieldMapping
	QualificationFields []FieldMapping
	AdjustmentFields    []FieldMapping
	ExclusionFields     []FieldMapping
	CreditFields        []FieldMapping
}

// SchemeDefinition is the complete declarative configuration for a run.
// It is read-only for the duration of the run.
type SchemeDefinition struct {
	Name          string
	EffectiveFrom string // YYYY-MM-DD
	EffectiveTo   string // YYYY-MM-DD

	BaseMapping BaseMapping
	KPIConfig   KPIConfig

	QualificationRules []QualificationRule
	ExclusionRules     []ExclusionRule
	AdjustmentRules    []AdjustmentRule
	CreditSplits       []CreditSplit
	PayoutTiers        []PayoutTier

	// Name of the dataset holding hierarchy records, if credit splits
	// are configured. Optional.
	CreditHierarchyFile string
}

// =============================================================================
// RECORDS
// =============================================================================

// Record is one row from an input dataset: an open mapping from physical
// field name to raw scalar value, plus a stable identity.
type Record struct {
	Source string
	Row    int
	Fields map[string]any
}

// ID returns the stable record identity (source file + row index).
func (r Record) ID() string { return fmt.Sprintf("%s#%d", r.Source, r.Row) }

// Get returns the raw value of a physical field, or nil when absent.
func (r Record) Get(field string) any { return r.Fields[field] }

// ProcessedRecord carries the original record plus its processing status.
// Excluded records always have a zero adjusted amount.
type ProcessedRecord struct {
	Record

	AgentID         string
	OriginalAmount  decimal.Decimal
	RateMultiplier  decimal.Decimal
	AdjustedAmount  decimal.Decimal
	IsExcluded      bool
	ExclusionReason string
	AdjustmentNote  string
}

// =============================================================================
// HIERARCHY
// =============================================================================

// HierarchyRecord is a time-bounded statement that an agent reports to a
// manager at a given level. Multiple records may exist per (agent, level)
// across time; overlap is not enforced.
type HierarchyRecord struct {
	AgentID      string
	Level        string
	ManagerID    string
	ReportsFrom  string // YYYY-MM-DD
	ReportsToEnd string // YYYY-MM-DD
}

// =============================================================================
// AUDIT LOG
// =============================================================================

type RuleType string

const (
	RuleExclusion     RuleType = "Exclusion"
	RuleAdjustment    RuleType = "Adjustment"
	RuleQualification RuleType = "Qualification"
	RuleCreditSplit   RuleType = "CreditSplit"
)

// RuleLogEntry records one rule firing (or failing to apply) during a run.
// Entries are append-only and owned by the run that produced them.
type RuleLogEntry struct {
	RuleType  RuleType          `json:"rule_type"`
	RuleID    string            `json:"rule_id"`
	RecordID  string            `json:"record_id,omitempty"`
	AgentID   string            `json:"agent_id"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// CreditDistributionEntry records credit flowing from an agent's payout to
// a manager. It is bookkeeping, not a transfer: the agent's own payout is
// never reduced by a split.
type CreditDistributionEntry struct {
	FromAgent           string    `json:"from_agent"`
	Role                string    `json:"role"`
	Amount              string    `json:"amount"`
	SplitRuleID         string    `json:"split_rule_id"`
	BasePayoutFromAgent string    `json:"base_payout_from_agent"`
	PercentageApplied   string    `json:"percentage_applied"`
	Timestamp           time.Time `json:"timestamp"`
}

// =============================================================================
// RUN RESULT
// =============================================================================

// RunResult is the complete output of one run. Monetary figures are
// fixed-precision strings; string formatting is the wire contract.
type RunResult struct {
	AgentPayouts        map[string]string                    `json:"agent_payouts"`
	RuleHitLogs         map[string][]RuleLogEntry            `json:"rule_hit_logs"`
	CreditDistributions map[string][]CreditDistributionEntry `json:"credit_distributions"`
	RawRecordLevelData  []ProcessedRecordDTO                 `json:"raw_record_level_data"`
}

// ProcessedRecordDTO is the serializable form of a ProcessedRecord, with
// decimals rendered as fixed-precision strings.
type ProcessedRecordDTO struct {
	RecordID        string         `json:"record_id"`
	AgentID         string         `json:"agent_id"`
	Fields          map[string]any `json:"fields"`
	OriginalAmount  string         `json:"original_amount"`
	RateMultiplier  string         `json:"rate_multiplier"`
	AdjustedAmount  string         `json:"adjusted_amount"`
	IsExcluded      bool           `json:"is_excluded"`
	ExclusionReason string         `json:"exclusion_reason,omitempty"`
	AdjustmentNote  string         `json:"adjustment_note,omitempty"`
}

// =============================================================================
// ROUNDING - explicit precision configuration, threaded through the run
// =============================================================================

// Rounding fixes the output precision of a run. It is a parameter, not
// ambient state: the orchestrator passes it into every formatting site.
type Rounding struct {
	MoneyPlaces int32 // monetary amounts
	RatePlaces  int32 // multipliers and percentages
}

// DefaultRounding matches the documented wire contract: two places for
// money, four for rates.
var DefaultRounding = Rounding{MoneyPlaces: 2, RatePlaces: 4}

// Money formats a monetary amount at the configured precision.
func (r Rounding) Money(d decimal.Decimal) string { return d.StringFixed(r.MoneyPlaces) }

// Rate formats a multiplier or percentage at the configured precision.
func (r Rounding) Rate(d decimal.Decimal) string { return d.StringFixed(r.RatePlaces) }

// =============================================================================
// VALUE HELPERS
// =============================================================================

// stringify renders a raw record or rule value for string comparison and
// parsing. nil becomes the empty string.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// decimalFromAny parses a raw value as an exact decimal.
func decimalFromAny(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	default:
		return decimal.NewFromString(strings.TrimSpace(stringify(v)))
	}
}
