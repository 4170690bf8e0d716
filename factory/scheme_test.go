package factory_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/factory"
)

const validSchemeJSON = `{
	"name": "FY24 Agent Incentive",
	"effective_from": "2024-01-01",
	"effective_to": "2024-12-31",
	"base_mapping": {
		"source_file": "sales",
		"agent_field": "AgentID",
		"amount_field": "Premium",
		"transaction_date_field": "SaleDate"
	},
	"kpi_config": {
		"qualification_fields": [
			{"name": "TotalPremium", "source_field": "Premium", "data_type": "Number",
			 "evaluation_level": "Agent", "aggregation": "Sum", "source_file": "sales"}
		],
		"adjustment_fields": [
			{"name": "DeliveryStat", "source_field": "Delivery", "data_type": "String",
			 "evaluation_level": "PerRecord", "source_file": "sales"}
		]
	},
	"qualification_rules": [
		{"id": "q1", "field": "TotalPremium", "operator": ">=", "value": "70000"}
	],
	"exclusion_rules": [
		{"id": "e1", "field": "PolicyStatus", "operator": "=", "value": "cancelled", "reason": "policy cancelled"}
	],
	"adjustment_rules": [
		{"id": "a1", "field": "DeliveryStat", "operator": "CONTAINS", "value": "Fully",
		 "target": "Rate", "adjustment_type": "percentage", "adjustment_value": 200}
	],
	"credit_splits": [
		{"id": "s1", "role": "L1", "percentage": 90},
		{"id": "s2", "role": "L2", "percentage": 10}
	],
	"payout_tiers": [
		{"from": 0, "to": 25000, "rate": 3},
		{"from": 25000, "to": 125000, "rate": 7},
		{"from": 125000, "rate": 10}
	],
	"credit_hierarchy_file": "hierarchy"
}`

func TestParseScheme_ValidDocument(t *testing.T) {
	f := factory.NewSchemeFactory()
	scheme, err := f.ParseScheme(validSchemeJSON)
	require.NoError(t, err)

	assert.Equal(t, "FY24 Agent Incentive", scheme.Name)
	assert.Equal(t, "sales", scheme.BaseMapping.SourceFile)
	require.Len(t, scheme.PayoutTiers, 3)
	require.Len(t, scheme.CreditSplits, 2)
	require.Len(t, scheme.AdjustmentRules, 1)

	// Numeric components are parsed into decimals at load time.
	assert.True(t, scheme.AdjustmentRules[0].AdjustmentValue.Equal(dec(t, "200")))
	assert.True(t, scheme.CreditSplits[0].Percentage.Equal(dec(t, "90")))

	// is_percentage defaults to true; the last tier is unbounded above.
	assert.True(t, scheme.PayoutTiers[0].IsPercentage)
	assert.Nil(t, scheme.PayoutTiers[2].To)
	require.NotNil(t, scheme.PayoutTiers[1].To)
	assert.True(t, scheme.PayoutTiers[1].To.Equal(dec(t, "125000")))
}

func TestParseScheme_RunsEndToEndThroughTheEngine(t *testing.T) {
	// The factory output must be directly runnable.
	f := factory.NewSchemeFactory()
	scheme, err := f.ParseScheme(validSchemeJSON)
	require.NoError(t, err)

	result, err := engine.New(nil).Run(engine.RunInput{
		Scheme: scheme,
		Datasets: map[string][]engine.Record{
			"sales": {
				{Source: "sales", Row: 0, Fields: map[string]any{
					"AgentID": "101", "Premium": "50000", "SaleDate": "2024-03-10", "Delivery": "Fully Delivered"}},
				{Source: "sales", Row: 1, Fields: map[string]any{
					"AgentID": "101", "Premium": "30000", "SaleDate": "2024-06-20", "Delivery": "Partial"}},
			},
		},
		Hierarchy: []engine.HierarchyRecord{
			{AgentID: "101", Level: "L1", ManagerID: "M-201", ReportsFrom: "2024-01-01", ReportsToEnd: "2024-12-31"},
			{AgentID: "101", Level: "L2", ManagerID: "M-301", ReportsFrom: "2024-01-01", ReportsToEnd: "2024-12-31"},
		},
		AsOfDate: "2024-12-31",
	})
	require.NoError(t, err)
	assert.Equal(t, "8250.00", result.AgentPayouts["101"])
}

func TestParseScheme_ValidationFailures(t *testing.T) {
	f := factory.NewSchemeFactory()

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := f.ParseScheme(`{"name": `)
		require.Error(t, err)
	})

	t.Run("missing base mapping field", func(t *testing.T) {
		_, err := f.ParseScheme(`{
			"name": "x", "effective_from": "2024-01-01",
			"base_mapping": {"source_file": "sales", "agent_field": "A", "amount_field": "P"}
		}`)
		require.Error(t, err)
		assert.True(t, errors.Is(err, engine.ErrMissingBaseMapping))
		assert.Contains(t, err.Error(), "transaction_date_field")
	})

	t.Run("bad effective_from", func(t *testing.T) {
		_, err := f.ParseScheme(`{
			"name": "x", "effective_from": "next january",
			"base_mapping": {"source_file": "s", "agent_field": "a", "amount_field": "m", "transaction_date_field": "d"}
		}`)
		require.Error(t, err)
		assert.True(t, errors.Is(err, engine.ErrBadDate))
	})
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
