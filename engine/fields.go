/*
fields.go - Field resolution: logical names to physical columns

PURPOSE:
  Rules reference fields by logical name. The scheme's five KPI sections
  each map logical names to physical dataset columns; this file merges
  them into one lookup table for the run and guarantees that the three
  base-mapping fields (Agent, Amount, TransactionDate) always resolve,
  even when no KPI section declares them.

RESOLUTION POLICY:
  - Sections merge in a fixed order; a later section may override an
    earlier entry with the same logical name.
  - Entries missing a logical name or a source field are dropped with a
    warning. Non-fatal: the rule referencing them simply will not apply.
  - Defaults injected from baseMapping: Agent (String), Amount (Number),
    TransactionDate (Date), all PerRecord against the base dataset.

SEE ALSO:
  - condition.go: Compiles conditions against the resolved map
*/
package engine

// FieldMap is the per-run lookup table from logical name to field descriptor.
type FieldMap map[string]FieldMapping

// Lookup returns the mapping for a logical name.
func (m FieldMap) Lookup(logical string) (FieldMapping, bool) {
	fm, ok := m[logical]
	return fm, ok
}

// ResolveFields merges the scheme's KPI sections and injects the default
// base-field mappings. It never fails; malformed entries are skipped.
func ResolveFields(scheme *SchemeDefinition, logger *Logger) FieldMap {
	fields := make(FieldMap)

	sections := [][]FieldMapping{
		scheme.KPIConfig.BaseData,
		scheme.KPIConfig.QualificationFields,
		scheme.KPIConfig.AdjustmentFields,
		scheme.KPIConfig.ExclusionFields,
		scheme.KPIConfig.CreditFields,
	}
	for _, section := range sections {
		for _, fm := range section {
			if fm.LogicalName == "" || fm.SourceField == "" {
				logger.Warnf("fields", "dropping KPI entry with missing name or source field: %+v", fm)
				continue
			}
			if fm.DataType == "" {
				fm.DataType = TypeString
			}
			if fm.EvaluationLevel == "" {
				fm.EvaluationLevel = LevelPerRecord
			}
			fields[fm.LogicalName] = fm
		}
	}

	// The base fields must always be live for record-level logic, whether
	// or not the KPI config declares them.
	defaults := []FieldMapping{
		{LogicalName: FieldAgent, SourceField: scheme.BaseMapping.AgentField, DataType: TypeString},
		{LogicalName: FieldAmount, SourceField: scheme.BaseMapping.AmountField, DataType: TypeNumber},
		{LogicalName: FieldTransactionDate, SourceField: scheme.BaseMapping.TransactionDateField, DataType: TypeDate},
	}
	for _, fm := range defaults {
		if _, exists := fields[fm.LogicalName]; exists {
			continue
		}
		fm.EvaluationLevel = LevelPerRecord
		fm.SourceFile = scheme.BaseMapping.SourceFile
		fields[fm.LogicalName] = fm
	}

	return fields
}
