package engine_test

import (
	"testing"

	"github.com/warp/incentive-engine/engine"
)

func TestResolveFields_MergesAllSectionsAndInjectsDefaults(t *testing.T) {
	scheme := processorScheme()
	fields := engine.ResolveFields(scheme, nil)

	// Explicit KPI entries from both sections are present.
	if fm, ok := fields.Lookup("PolicyStatus"); !ok || fm.SourceField != "Status" {
		t.Errorf("expected PolicyStatus -> Status, got %+v (ok=%v)", fm, ok)
	}
	if fm, ok := fields.Lookup("DeliveryStat"); !ok || fm.SourceField != "Delivery" {
		t.Errorf("expected DeliveryStat -> Delivery, got %+v (ok=%v)", fm, ok)
	}

	// Base fields are injected from the base mapping with default types.
	cases := []struct {
		logical  string
		physical string
		dataType engine.DataType
	}{
		{engine.FieldAgent, "AgentID", engine.TypeString},
		{engine.FieldAmount, "Premium", engine.TypeNumber},
		{engine.FieldTransactionDate, "SaleDate", engine.TypeDate},
	}
	for _, tc := range cases {
		fm, ok := fields.Lookup(tc.logical)
		if !ok {
			t.Errorf("base field %s must always resolve", tc.logical)
			continue
		}
		if fm.SourceField != tc.physical || fm.DataType != tc.dataType {
			t.Errorf("%s: got %s/%s, want %s/%s", tc.logical, fm.SourceField, fm.DataType, tc.physical, tc.dataType)
		}
		if fm.SourceFile != "sales" || fm.EvaluationLevel != engine.LevelPerRecord {
			t.Errorf("%s: injected defaults must target the base dataset per record, got %+v", tc.logical, fm)
		}
	}
}

func TestResolveFields_ExplicitEntryBeatsInjectedDefault(t *testing.T) {
	scheme := processorScheme()
	scheme.KPIConfig.BaseData = []engine.FieldMapping{
		{LogicalName: engine.FieldAmount, SourceField: "NetPremium", DataType: engine.TypeNumber,
			EvaluationLevel: engine.LevelPerRecord, SourceFile: "sales"},
	}

	fields := engine.ResolveFields(scheme, nil)
	fm, _ := fields.Lookup(engine.FieldAmount)
	if fm.SourceField != "NetPremium" {
		t.Errorf("explicit Amount mapping must win over the injected default, got %s", fm.SourceField)
	}
}

func TestResolveFields_DropsIncompleteEntries(t *testing.T) {
	scheme := processorScheme()
	scheme.KPIConfig.BaseData = []engine.FieldMapping{
		{LogicalName: "", SourceField: "X"},
		{LogicalName: "NoSource", SourceField: ""},
	}

	fields := engine.ResolveFields(scheme, nil)
	if _, ok := fields.Lookup("NoSource"); ok {
		t.Error("entry without a source field must be dropped")
	}
}

func TestResolveFields_DefaultsMissingTypeAndLevel(t *testing.T) {
	scheme := processorScheme()
	scheme.KPIConfig.CreditFields = []engine.FieldMapping{
		{LogicalName: "Branch", SourceField: "BranchCode"},
	}

	fields := engine.ResolveFields(scheme, nil)
	fm, ok := fields.Lookup("Branch")
	if !ok {
		t.Fatal("Branch must resolve")
	}
	if fm.DataType != engine.TypeString || fm.EvaluationLevel != engine.LevelPerRecord {
		t.Errorf("missing type/level must default to String/PerRecord, got %s/%s", fm.DataType, fm.EvaluationLevel)
	}
}
