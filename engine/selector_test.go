package engine_test

import (
	"testing"
	"time"

	"github.com/warp/incentive-engine/engine"
)

// Helpers (salesRecord, processorScheme, dec, date) live in the other
// _test.go files of this package.

func newSelector(scheme *engine.SchemeDefinition) *engine.RecordSelector {
	fields := engine.ResolveFields(scheme, nil)
	return engine.NewRecordSelector(scheme, fields, nil)
}

func TestSelect_DateWindowIsClosedAndDayGranular(t *testing.T) {
	// GIVEN: scheme effective from 2024-01-01, run as-of 2024-12-31
	// THEN: both boundary dates are included; the next day is not

	scheme := processorScheme()
	records := []engine.Record{
		salesRecord(0, map[string]any{"AgentID": "101", "Premium": "1", "SaleDate": "2024-01-01"}),
		salesRecord(1, map[string]any{"AgentID": "101", "Premium": "1", "SaleDate": "2024-12-31"}),
		salesRecord(2, map[string]any{"AgentID": "101", "Premium": "1", "SaleDate": "2025-01-01"}),
		salesRecord(3, map[string]any{"AgentID": "101", "Premium": "1", "SaleDate": "2023-12-31"}),
	}

	got := newSelector(scheme).Select(records, date(2024, time.January, 1), date(2024, time.December, 31))
	if len(got) != 2 {
		t.Fatalf("expected 2 records inside the window, got %d", len(got))
	}
	if got[0].Row != 0 || got[1].Row != 1 {
		t.Errorf("selection must preserve input order, got rows %d,%d", got[0].Row, got[1].Row)
	}
}

func TestSelect_UnparseableDatesAreSilentlyDropped(t *testing.T) {
	scheme := processorScheme()
	records := []engine.Record{
		salesRecord(0, map[string]any{"AgentID": "101", "Premium": "1", "SaleDate": "31/12/2024"}),
		salesRecord(1, map[string]any{"AgentID": "101", "Premium": "1"}), // missing date
		salesRecord(2, map[string]any{"AgentID": "101", "Premium": "1", "SaleDate": "2024-06-15"}),
	}

	got := newSelector(scheme).Select(records, date(2024, time.January, 1), date(2024, time.December, 31))
	if len(got) != 1 || got[0].Row != 2 {
		t.Fatalf("expected only the well-dated record, got %d records", len(got))
	}
}

func TestSelect_PerRecordQualificationIsSilentAND(t *testing.T) {
	// GIVEN: a per-record qualification rule over the base dataset
	// THEN: failing records are dropped without log entries

	scheme := processorScheme()
	scheme.KPIConfig.QualificationFields = []engine.FieldMapping{
		{LogicalName: "ProductLine", SourceField: "Product", DataType: engine.TypeString,
			EvaluationLevel: engine.LevelPerRecord, SourceFile: "sales"},
	}
	scheme.QualificationRules = []engine.QualificationRule{
		{ID: "qual-product", Condition: engine.Condition{Field: "ProductLine", Operator: "=", Value: "term-life"}},
	}

	records := []engine.Record{
		salesRecord(0, map[string]any{"AgentID": "101", "Premium": "1", "SaleDate": "2024-06-15", "Product": "term-life"}),
		salesRecord(1, map[string]any{"AgentID": "101", "Premium": "1", "SaleDate": "2024-06-15", "Product": "annuity"}),
	}

	got := newSelector(scheme).Select(records, date(2024, time.January, 1), date(2024, time.December, 31))
	if len(got) != 1 || got[0].Row != 0 {
		t.Fatalf("expected only the qualifying record, got %d", len(got))
	}
}

func TestSelect_AgentLevelRulesDoNotFilterRecords(t *testing.T) {
	// Agent-level qualification is the gate's business, not the selector's.
	scheme := processorScheme()
	scheme.KPIConfig.QualificationFields = []engine.FieldMapping{
		{LogicalName: "TotalPremium", SourceField: "Premium", DataType: engine.TypeNumber,
			EvaluationLevel: engine.LevelAgent, Aggregation: "Sum", SourceFile: "sales"},
	}
	scheme.QualificationRules = []engine.QualificationRule{
		{ID: "qual-total", Condition: engine.Condition{Field: "TotalPremium", Operator: ">=", Value: "70000"}},
	}

	records := []engine.Record{
		salesRecord(0, map[string]any{"AgentID": "101", "Premium": "10", "SaleDate": "2024-06-15"}),
	}

	got := newSelector(scheme).Select(records, date(2024, time.January, 1), date(2024, time.December, 31))
	if len(got) != 1 {
		t.Fatalf("agent-level rule must not filter records, got %d", len(got))
	}
}

func TestSelect_RulesOverOtherDatasetsAreIgnored(t *testing.T) {
	scheme := processorScheme()
	scheme.KPIConfig.QualificationFields = []engine.FieldMapping{
		{LogicalName: "Region", SourceField: "Region", DataType: engine.TypeString,
			EvaluationLevel: engine.LevelPerRecord, SourceFile: "agents"},
	}
	scheme.QualificationRules = []engine.QualificationRule{
		{ID: "qual-region", Condition: engine.Condition{Field: "Region", Operator: "=", Value: "north"}},
	}

	records := []engine.Record{
		salesRecord(0, map[string]any{"AgentID": "101", "Premium": "1", "SaleDate": "2024-06-15"}),
	}

	got := newSelector(scheme).Select(records, date(2024, time.January, 1), date(2024, time.December, 31))
	if len(got) != 1 {
		t.Fatalf("rule over a non-base dataset must not filter base records, got %d", len(got))
	}
}
