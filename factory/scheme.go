/*
Package factory provides JSON to Go scheme conversion.

PURPOSE:
  Converts JSON scheme definitions into engine.SchemeDefinition values.
  Schemes are authored externally (admin UI, version-controlled JSON) and
  stored as documents; the factory is the boundary that validates them
  and parses every numeric rule component into exact decimals exactly
  once, at load time.

JSON SCHEMA:
  {
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
      "base_data":            [{"name": "...", "source_field": "...", ...}],
      "qualification_fields": [...],
      "adjustment_fields":    [...],
      "exclusion_fields":     [...],
      "credit_fields":        [...]
    },
    "qualification_rules": [{"id": "q1", "field": "TotalPremium", "operator": ">=", "value": "70000"}],
    "exclusion_rules":     [{"id": "e1", "field": "PolicyStatus", "operator": "=", "value": "cancelled", "reason": "policy cancelled"}],
    "adjustment_rules":    [{"id": "a1", "field": "DeliveryStat", "operator": "CONTAINS", "value": "Fully",
                             "target": "Rate", "adjustment_type": "percentage", "adjustment_value": 200}],
    "credit_splits":       [{"id": "s1", "role": "L1", "percentage": 90}],
    "payout_tiers":        [{"from": 0, "to": 25000, "rate": 3, "is_percentage": true}],
    "credit_hierarchy_file": "hierarchy"
  }

VALIDATION:
  Missing base-mapping fields and an unparseable effective_from fail fast
  here, before the scheme can reach a run. Everything else the engine can
  degrade on gracefully is left to the engine's own recoverable policy.

SEE ALSO:
  - engine/types.go: The target types
  - api/handlers.go: Where schemes arrive as JSON
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SchemeJSON is the JSON representation of a scheme definition.
type SchemeJSON struct {
	Name          string          `json:"name"`
	EffectiveFrom string          `json:"effective_from"`
	EffectiveTo   string          `json:"effective_to,omitempty"`
	BaseMapping   BaseMappingJSON `json:"base_mapping"`
	KPIConfig     KPIConfigJSON   `json:"kpi_config,omitempty"`

	QualificationRules []RuleJSON           `json:"qualification_rules,omitempty"`
	ExclusionRules     []ExclusionRuleJSON  `json:"exclusion_rules,omitempty"`
	AdjustmentRules    []AdjustmentRuleJSON `json:"adjustment_rules,omitempty"`
	CreditSplits       []CreditSplitJSON    `json:"credit_splits,omitempty"`
	PayoutTiers        []PayoutTierJSON     `json:"payout_tiers,omitempty"`

	CreditHierarchyFile string `json:"credit_hierarchy_file,omitempty"`
}

type BaseMappingJSON struct {
	SourceFile           string `json:"source_file"`
	AgentField           string `json:"agent_field"`
	AmountField          string `json:"amount_field"`
	TransactionDateField string `json:"transaction_date_field"`
}

type KPIConfigJSON struct {
	BaseData            []FieldMappingJSON `json:"base_data,omitempty"`
	QualificationFields []FieldMappingJSON `json:"qualification_fields,omitempty"`
	AdjustmentFields    []FieldMappingJSON `json:"adjustment_fields,omitempty"`
	ExclusionFields     []FieldMappingJSON `json:"exclusion_fields,omitempty"`
	CreditFields        []FieldMappingJSON `json:"credit_fields,omitempty"`
}

type FieldMappingJSON struct {
	Name            string `json:"name"`
	SourceField     string `json:"source_field"`
	DataType        string `json:"data_type,omitempty"`        // String | Number | Date
	EvaluationLevel string `json:"evaluation_level,omitempty"` // PerRecord | Agent
	Aggregation     string `json:"aggregation,omitempty"`
	SourceFile      string `json:"source_file,omitempty"`
}

type RuleJSON struct {
	ID       string `json:"id"`
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type ExclusionRuleJSON struct {
	RuleJSON
	Reason string `json:"reason,omitempty"`
}

type AdjustmentRuleJSON struct {
	RuleJSON
	Target          string  `json:"target"`          // Rate | Amount
	AdjustmentType  string  `json:"adjustment_type"` // percentage | fixed
	AdjustmentValue float64 `json:"adjustment_value"`
}

type CreditSplitJSON struct {
	ID         string  `json:"id"`
	Role       string  `json:"role"`
	Percentage float64 `json:"percentage"`
}

type PayoutTierJSON struct {
	From         float64  `json:"from"`
	To           *float64 `json:"to,omitempty"` // nil = unbounded above
	Rate         float64  `json:"rate"`
	IsPercentage *bool    `json:"is_percentage,omitempty"` // default true
}

// =============================================================================
// SCHEME FACTORY
// =============================================================================

// SchemeFactory converts JSON schemes to engine definitions.
type SchemeFactory struct{}

func NewSchemeFactory() *SchemeFactory {
	return &SchemeFactory{}
}

// ParseScheme parses a JSON document into a validated SchemeDefinition.
func (f *SchemeFactory) ParseScheme(jsonStr string) (*engine.SchemeDefinition, error) {
	var sj SchemeJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("failed to parse scheme JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON converts SchemeJSON to an engine.SchemeDefinition, validating
// the parts the engine would otherwise reject at run time.
func (f *SchemeFactory) FromJSON(sj SchemeJSON) (*engine.SchemeDefinition, error) {
	if err := f.validate(sj); err != nil {
		return nil, err
	}

	scheme := &engine.SchemeDefinition{
		Name:          sj.Name,
		EffectiveFrom: sj.EffectiveFrom,
		EffectiveTo:   sj.EffectiveTo,
		BaseMapping: engine.BaseMapping{
			SourceFile:           sj.BaseMapping.SourceFile,
			AgentField:           sj.BaseMapping.AgentField,
			AmountField:          sj.BaseMapping.AmountField,
			TransactionDateField: sj.BaseMapping.TransactionDateField,
		},
		KPIConfig: engine.KPIConfig{
			BaseData:            fieldMappings(sj.KPIConfig.BaseData),
			QualificationFields: fieldMappings(sj.KPIConfig.QualificationFields),
			AdjustmentFields:    fieldMappings(sj.KPIConfig.AdjustmentFields),
			ExclusionFields:     fieldMappings(sj.KPIConfig.ExclusionFields),
			CreditFields:        fieldMappings(sj.KPIConfig.CreditFields),
		},
		CreditHierarchyFile: sj.CreditHierarchyFile,
	}

	for _, r := range sj.QualificationRules {
		scheme.QualificationRules = append(scheme.QualificationRules, engine.QualificationRule{
			ID:        r.ID,
			Condition: condition(r),
		})
	}
	for _, r := range sj.ExclusionRules {
		scheme.ExclusionRules = append(scheme.ExclusionRules, engine.ExclusionRule{
			ID:        r.ID,
			Reason:    r.Reason,
			Condition: condition(r.RuleJSON),
		})
	}
	for _, r := range sj.AdjustmentRules {
		scheme.AdjustmentRules = append(scheme.AdjustmentRules, engine.AdjustmentRule{
			ID:              r.ID,
			Condition:       condition(r.RuleJSON),
			Target:          r.Target,
			AdjustmentType:  r.AdjustmentType,
			AdjustmentValue: decimal.NewFromFloat(r.AdjustmentValue),
		})
	}
	for _, s := range sj.CreditSplits {
		scheme.CreditSplits = append(scheme.CreditSplits, engine.CreditSplit{
			ID:         s.ID,
			Role:       s.Role,
			Percentage: decimal.NewFromFloat(s.Percentage),
		})
	}
	for _, tj := range sj.PayoutTiers {
		tier := engine.PayoutTier{
			From:         decimal.NewFromFloat(tj.From),
			Rate:         decimal.NewFromFloat(tj.Rate),
			IsPercentage: tj.IsPercentage == nil || *tj.IsPercentage,
		}
		if tj.To != nil {
			to := decimal.NewFromFloat(*tj.To)
			tier.To = &to
		}
		scheme.PayoutTiers = append(scheme.PayoutTiers, tier)
	}

	return scheme, nil
}

func (f *SchemeFactory) validate(sj SchemeJSON) error {
	required := []struct {
		field string
		value string
	}{
		{"base_mapping.source_file", sj.BaseMapping.SourceFile},
		{"base_mapping.agent_field", sj.BaseMapping.AgentField},
		{"base_mapping.amount_field", sj.BaseMapping.AmountField},
		{"base_mapping.transaction_date_field", sj.BaseMapping.TransactionDateField},
	}
	for _, r := range required {
		if r.value == "" {
			return &engine.ConfigError{Field: r.field, Reason: engine.ErrMissingBaseMapping}
		}
	}
	if _, err := engine.ParseDate(sj.EffectiveFrom); err != nil {
		return &engine.ConfigError{Field: "effective_from", Value: sj.EffectiveFrom, Reason: engine.ErrBadDate}
	}
	if sj.EffectiveTo != "" {
		if _, err := engine.ParseDate(sj.EffectiveTo); err != nil {
			return &engine.ConfigError{Field: "effective_to", Value: sj.EffectiveTo, Reason: engine.ErrBadDate}
		}
	}
	return nil
}

func fieldMappings(in []FieldMappingJSON) []engine.FieldMapping {
	out := make([]engine.FieldMapping, 0, len(in))
	for _, fm := range in {
		out = append(out, engine.FieldMapping{
			LogicalName:     fm.Name,
			SourceField:     fm.SourceField,
			DataType:        engine.DataType(fm.DataType),
			EvaluationLevel: engine.EvaluationLevel(fm.EvaluationLevel),
			Aggregation:     fm.Aggregation,
			SourceFile:      fm.SourceFile,
		})
	}
	return out
}

func condition(r RuleJSON) engine.Condition {
	return engine.Condition{Field: r.Field, Operator: r.Operator, Value: r.Value}
}
