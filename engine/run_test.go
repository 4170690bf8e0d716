package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// END-TO-END SCENARIO
// =============================================================================

// scenarioScheme wires every rule family at once: an exclusion that does
// not fire, a rate-doubling adjustment on fully-delivered records, a 70k
// qualification threshold, the standard bracket table and a 90/10 split.
func scenarioScheme() *engine.SchemeDefinition {
	scheme := processorScheme()
	scheme.KPIConfig.QualificationFields = []engine.FieldMapping{
		{LogicalName: "TotalPremium", SourceField: "Premium", DataType: engine.TypeNumber,
			EvaluationLevel: engine.LevelAgent, Aggregation: "Sum", SourceFile: "sales"},
	}
	scheme.ExclusionRules = []engine.ExclusionRule{
		{ID: "excl-cancelled", Reason: "policy cancelled",
			Condition: engine.Condition{Field: "PolicyStatus", Operator: "=", Value: "cancelled"}},
	}
	scheme.AdjustmentRules = []engine.AdjustmentRule{
		{ID: "adj-full-delivery", Condition: engine.Condition{Field: "DeliveryStat", Operator: "CONTAINS", Value: "Fully"},
			Target: engine.AdjustTargetRate, AdjustmentType: engine.AdjustTypePercentage, AdjustmentValue: dec("200")},
	}
	scheme.QualificationRules = []engine.QualificationRule{
		{ID: "qual-min-70k", Condition: engine.Condition{Field: "TotalPremium", Operator: ">=", Value: "70000"}},
	}
	scheme.PayoutTiers = standardTiers()
	scheme.CreditSplits = []engine.CreditSplit{
		{ID: "split-l1", Role: "L1", Percentage: dec("90")},
		{ID: "split-l2", Role: "L2", Percentage: dec("10")},
	}
	scheme.CreditHierarchyFile = "hierarchy"
	return scheme
}

func scenarioInput() engine.RunInput {
	return engine.RunInput{
		Scheme: scenarioScheme(),
		Datasets: map[string][]engine.Record{
			"sales": {
				salesRecord(0, map[string]any{
					"AgentID": "101", "Premium": "50000", "SaleDate": "2024-03-10",
					"Status": "active", "Delivery": "Fully Delivered",
				}),
				salesRecord(1, map[string]any{
					"AgentID": "101", "Premium": "30000", "SaleDate": "2024-06-20",
					"Status": "active", "Delivery": "Partial",
				}),
			},
		},
		Hierarchy: []engine.HierarchyRecord{
			{AgentID: "101", Level: "L1", ManagerID: "M-201", ReportsFrom: "2024-01-01", ReportsToEnd: "2024-12-31"},
			{AgentID: "101", Level: "L2", ManagerID: "M-301", ReportsFrom: "2024-01-01", ReportsToEnd: "2024-12-31"},
		},
		AsOfDate: "2024-12-31",
	}
}

func TestRun_EndToEndScenario(t *testing.T) {
	// GIVEN: two records for agent 101 (50000 doubled by adjustment, 30000
	//        untouched) -> credited 130000
	// THEN: payout 750 + 7000 + 500 = 8250.00, split 90/10 to the two
	//       resolved managers, summing to 100% of the payout

	e := engine.New(nil)
	result, err := e.Run(scenarioInput())
	require.NoError(t, err)

	assert.Equal(t, "8250.00", result.AgentPayouts["101"])

	require.Len(t, result.CreditDistributions["M-201"], 1)
	require.Len(t, result.CreditDistributions["M-301"], 1)
	l1 := result.CreditDistributions["M-201"][0]
	l2 := result.CreditDistributions["M-301"][0]
	assert.Equal(t, "7425.00", l1.Amount)
	assert.Equal(t, "825.00", l2.Amount)
	assert.Equal(t, "101", l1.FromAgent)
	assert.Equal(t, "8250.00", l1.BasePayoutFromAgent)

	// The adjustment fired on exactly one record; the exclusion never did.
	var adjustments, exclusions int
	for _, entry := range result.RuleHitLogs["101"] {
		switch entry.RuleType {
		case engine.RuleAdjustment:
			adjustments++
		case engine.RuleExclusion:
			exclusions++
		}
	}
	assert.Equal(t, 1, adjustments)
	assert.Equal(t, 0, exclusions)

	// Raw record data keeps both records with their processing status.
	require.Len(t, result.RawRecordLevelData, 2)
	assert.Equal(t, "100000.00", result.RawRecordLevelData[0].AdjustedAmount)
	assert.Equal(t, "2.0000", result.RawRecordLevelData[0].RateMultiplier)
	assert.Equal(t, "30000.00", result.RawRecordLevelData[1].AdjustedAmount)
}

func TestRun_IsIdempotent(t *testing.T) {
	// Same inputs, same payouts and distributions (timestamps aside).
	e := engine.New(nil)

	first, err := e.Run(scenarioInput())
	require.NoError(t, err)
	second, err := e.Run(scenarioInput())
	require.NoError(t, err)

	assert.Equal(t, first.AgentPayouts, second.AgentPayouts)
	require.Equal(t, len(first.CreditDistributions), len(second.CreditDistributions))
	for manager, entries := range first.CreditDistributions {
		for i, entry := range entries {
			other := second.CreditDistributions[manager][i]
			assert.Equal(t, entry.Amount, other.Amount)
			assert.Equal(t, entry.FromAgent, other.FromAgent)
			assert.Equal(t, entry.SplitRuleID, other.SplitRuleID)
		}
	}
}

// =============================================================================
// FATAL VALIDATION
// =============================================================================

func TestRun_FatalValidationErrors(t *testing.T) {
	e := engine.New(nil)

	t.Run("missing scheme", func(t *testing.T) {
		_, err := e.Run(engine.RunInput{AsOfDate: "2024-12-31"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, engine.ErrMissingScheme))
	})

	t.Run("incomplete base mapping", func(t *testing.T) {
		input := scenarioInput()
		input.Scheme.BaseMapping.AmountField = ""
		_, err := e.Run(input)
		require.Error(t, err)
		assert.True(t, errors.Is(err, engine.ErrMissingBaseMapping))
		assert.Contains(t, err.Error(), "amount_field")
	})

	t.Run("bad as-of date", func(t *testing.T) {
		input := scenarioInput()
		input.AsOfDate = "31/12/2024"
		_, err := e.Run(input)
		require.Error(t, err)
		assert.True(t, errors.Is(err, engine.ErrBadDate))
	})

	t.Run("bad scheme start date", func(t *testing.T) {
		input := scenarioInput()
		input.Scheme.EffectiveFrom = "January 1st"
		_, err := e.Run(input)
		require.Error(t, err)
		assert.True(t, errors.Is(err, engine.ErrBadDate))
	})

	t.Run("missing base dataset", func(t *testing.T) {
		input := scenarioInput()
		delete(input.Datasets, "sales")
		_, err := e.Run(input)
		require.Error(t, err)
		assert.True(t, errors.Is(err, engine.ErrMissingDataset))
	})
}

// =============================================================================
// RECOVERABLE DEGRADATION
// =============================================================================

func TestRun_ZeroCreditAgentPaysZeroWithoutQualificationLog(t *testing.T) {
	input := scenarioInput()
	input.Datasets["sales"] = []engine.Record{
		salesRecord(0, map[string]any{
			"AgentID": "202", "Premium": "0", "SaleDate": "2024-03-10", "Status": "active",
		}),
	}

	e := engine.New(nil)
	result, err := e.Run(input)
	require.NoError(t, err)

	assert.Equal(t, "0.00", result.AgentPayouts["202"])
	for _, entry := range result.RuleHitLogs["202"] {
		assert.NotEqual(t, engine.RuleQualification, entry.RuleType,
			"zero-credit agents must not receive qualification log entries")
	}
	assert.Empty(t, result.CreditDistributions)
}

func TestRun_DisqualifiedAgentPaysZeroWithLog(t *testing.T) {
	input := scenarioInput()
	input.Datasets["sales"] = []engine.Record{
		salesRecord(0, map[string]any{
			"AgentID": "303", "Premium": "50000", "SaleDate": "2024-03-10",
			"Status": "active", "Delivery": "Partial",
		}),
	}

	e := engine.New(nil)
	result, err := e.Run(input)
	require.NoError(t, err)

	assert.Equal(t, "0.00", result.AgentPayouts["303"])
	require.Len(t, result.RuleHitLogs["303"], 1)
	assert.Equal(t, engine.RuleQualification, result.RuleHitLogs["303"][0].RuleType)
}

func TestRun_MissingHierarchyLogsInsteadOfSplitting(t *testing.T) {
	input := scenarioInput()
	input.Hierarchy = nil

	e := engine.New(nil)
	result, err := e.Run(input)
	require.NoError(t, err)

	assert.Equal(t, "8250.00", result.AgentPayouts["101"], "payout is unaffected by missing hierarchy")
	assert.Empty(t, result.CreditDistributions)

	var explanatory int
	for _, entry := range result.RuleHitLogs["101"] {
		if entry.RuleType == engine.RuleCreditSplit {
			explanatory++
		}
	}
	assert.Equal(t, 1, explanatory, "exactly one explanatory entry per agent")
}

func TestRun_ExcludedRecordsContributeNothing(t *testing.T) {
	input := scenarioInput()
	input.Datasets["sales"] = append(input.Datasets["sales"],
		salesRecord(2, map[string]any{
			"AgentID": "101", "Premium": "999999", "SaleDate": "2024-07-01",
			"Status": "cancelled", "Delivery": "Partial",
		}))

	e := engine.New(nil)
	result, err := e.Run(input)
	require.NoError(t, err)

	// Payout unchanged: the excluded record credits exactly zero.
	assert.Equal(t, "8250.00", result.AgentPayouts["101"])

	require.Len(t, result.RawRecordLevelData, 3)
	excluded := result.RawRecordLevelData[2]
	assert.True(t, excluded.IsExcluded)
	assert.Equal(t, "0.00", excluded.AdjustedAmount)
}

func TestRun_AnonymousRecordsAreDroppedFromPayouts(t *testing.T) {
	input := scenarioInput()
	input.Datasets["sales"] = append(input.Datasets["sales"],
		salesRecord(2, map[string]any{
			"AgentID": "  ", "Premium": "70000", "SaleDate": "2024-07-01", "Status": "active",
		}))

	e := engine.New(nil)
	result, err := e.Run(input)
	require.NoError(t, err)

	if _, ok := result.AgentPayouts[""]; ok {
		t.Error("records without an agent identity must not produce a payout")
	}
	// They do remain visible in the raw record data.
	require.Len(t, result.RawRecordLevelData, 3)
}
