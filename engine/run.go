/*
run.go - Run orchestration

PURPOSE:
  Sequences the whole computation for one run: fatal configuration
  validation, base dataset selection, per-record processing, per-agent
  aggregation, qualification, tiered payout, and credit distribution.
  This is the only file that returns errors; everything downstream of
  validation degrades gracefully and logs.

DETERMINISM:
  A run is a pure function of (scheme, datasets, as-of date). Agents are
  processed in sorted key order so the output maps and sequences are
  byte-for-byte reproducible across runs (timestamps aside). Per-agent
  work is independent and could be parallelized; sorted sequential
  processing keeps the merge trivially deterministic.

FAILURE POLICY:
  Fatal (returned as errors, before any processing):
    missing scheme, incomplete base mapping, unparseable run or scheme
    start date, missing base dataset.
  Recoverable (logged, run continues):
    malformed record values, unknown operators, unmapped rule fields,
    missing hierarchy data, unresolved managers.
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Engine computes incentive payout runs. Safe for reuse across runs;
// it holds no per-run state.
type Engine struct {
	Logger   *Logger
	Rounding Rounding
}

// New returns an engine with the default wire precision.
func New(logger *Logger) *Engine {
	return &Engine{Logger: logger, Rounding: DefaultRounding}
}

// RunInput is everything a run consumes. Datasets maps dataset name to
// its ordered records; Hierarchy is the already-decoded hierarchy dataset
// (may be nil when the scheme configures no splits).
type RunInput struct {
	Scheme    *SchemeDefinition
	Datasets  map[string][]Record
	Hierarchy []HierarchyRecord
	AsOfDate  string // YYYY-MM-DD, inclusive upper bound for selection
}

// Run executes one full, stateless recomputation.
func (e *Engine) Run(input RunInput) (*RunResult, error) {
	scheme := input.Scheme
	if scheme == nil {
		return nil, &ConfigError{Field: "scheme", Reason: ErrMissingScheme}
	}
	if err := validateBaseMapping(scheme.BaseMapping); err != nil {
		return nil, err
	}

	asOf, err := ParseDate(input.AsOfDate)
	if err != nil {
		return nil, &ConfigError{Field: "as_of_date", Value: input.AsOfDate, Reason: ErrBadDate}
	}
	schemeStart, err := ParseDate(scheme.EffectiveFrom)
	if err != nil {
		return nil, &ConfigError{Field: "effective_from", Value: scheme.EffectiveFrom, Reason: ErrBadDate}
	}

	baseRecords, ok := input.Datasets[scheme.BaseMapping.SourceFile]
	if !ok {
		return nil, &ConfigError{Field: "datasets", Value: scheme.BaseMapping.SourceFile, Reason: ErrMissingDataset}
	}

	fields := ResolveFields(scheme, e.Logger)
	selector := NewRecordSelector(scheme, fields, e.Logger)
	processor := NewRecordProcessor(scheme, fields, e.Rounding, e.Logger)
	gate := NewQualificationGate(scheme, fields, e.Rounding, e.Logger)
	calculator := TieredPayoutCalculator{Rounding: e.Rounding}
	distributor := NewCreditSplitDistributor(scheme, input.Hierarchy, e.Rounding, e.Logger)

	result := &RunResult{
		AgentPayouts:        make(map[string]string),
		RuleHitLogs:         make(map[string][]RuleLogEntry),
		CreditDistributions: make(map[string][]CreditDistributionEntry),
		RawRecordLevelData:  []ProcessedRecordDTO{},
	}

	// Record-level phase: select, process, log. Raw output keeps input order.
	selected := selector.Select(baseRecords, schemeStart, asOf)
	processed := make([]ProcessedRecord, 0, len(selected))
	for _, rec := range selected {
		pr, logs := processor.Process(rec)
		processed = append(processed, pr)
		result.RawRecordLevelData = append(result.RawRecordLevelData, e.recordDTO(pr))
		if pr.AgentID == "" {
			continue // anonymous records carry no payout and no logs
		}
		result.RuleHitLogs[pr.AgentID] = append(result.RuleHitLogs[pr.AgentID], logs...)
	}

	// Agent-level phase, in sorted key order for reproducible output.
	totals := AggregateByAgent(processed)
	agents := make([]string, 0, len(totals))
	for agentID := range totals {
		agents = append(agents, agentID)
	}
	sort.Strings(agents)

	for _, agentID := range agents {
		total := totals[agentID].TotalCreditedAmount

		qualified, qualLogs := gate.Qualifies(agentID, total)
		result.RuleHitLogs[agentID] = append(result.RuleHitLogs[agentID], qualLogs...)
		if !qualified {
			result.AgentPayouts[agentID] = e.Rounding.Money(decimal.Zero)
			continue
		}

		payout := calculator.MarginalPayout(total, scheme.PayoutTiers)
		result.AgentPayouts[agentID] = e.Rounding.Money(payout)

		if payout.LessThanOrEqual(decimal.Zero) {
			continue
		}
		allocations, splitLogs := distributor.Distribute(agentID, payout, schemeStart, asOf)
		result.RuleHitLogs[agentID] = append(result.RuleHitLogs[agentID], splitLogs...)
		for _, alloc := range allocations {
			result.CreditDistributions[alloc.ManagerID] = append(result.CreditDistributions[alloc.ManagerID], alloc.Entry)
		}
	}

	// Agents whose every log list stayed empty keep no entry in the map.
	for agentID, logs := range result.RuleHitLogs {
		if len(logs) == 0 {
			delete(result.RuleHitLogs, agentID)
		}
	}

	return result, nil
}

func (e *Engine) recordDTO(pr ProcessedRecord) ProcessedRecordDTO {
	return ProcessedRecordDTO{
		RecordID:        pr.ID(),
		AgentID:         pr.AgentID,
		Fields:          pr.Fields,
		OriginalAmount:  e.Rounding.Money(pr.OriginalAmount),
		RateMultiplier:  e.Rounding.Rate(pr.RateMultiplier),
		AdjustedAmount:  e.Rounding.Money(pr.AdjustedAmount),
		IsExcluded:      pr.IsExcluded,
		ExclusionReason: pr.ExclusionReason,
		AdjustmentNote:  pr.AdjustmentNote,
	}
}

func validateBaseMapping(bm BaseMapping) error {
	required := []struct {
		field string
		value string
	}{
		{"base_mapping.source_file", bm.SourceFile},
		{"base_mapping.agent_field", bm.AgentField},
		{"base_mapping.amount_field", bm.AmountField},
		{"base_mapping.transaction_date_field", bm.TransactionDateField},
	}
	for _, r := range required {
		if r.value == "" {
			return &ConfigError{Field: r.field, Reason: ErrMissingBaseMapping}
		}
	}
	return nil
}
