/*
hierarchy.go - Hierarchy dataset loading

PURPOSE:
  The hierarchy dataset has a fixed shape: agent, level, manager, and a
  validity window. Unlike the open base datasets, it is loaded through a
  dataframe so the columns can be addressed by name regardless of order,
  with case-insensitive header matching.
*/
package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"

	"github.com/warp/incentive-engine/engine"
)

// Hierarchy column headers. Matching is case-insensitive.
const (
	colAgentID      = "AgentID"
	colLevel        = "Level"
	colManagerID    = "ManagerID"
	colReportsFrom  = "ReportsFrom"
	colReportsToEnd = "ReportsToEnd"
)

// HierarchyFromCSV parses a hierarchy CSV into engine records. Rows with
// problems (missing cells, bad dates) are carried through as-is; the
// resolver skips unusable records at lookup time.
func HierarchyFromCSV(data []byte) ([]engine.HierarchyRecord, error) {
	decoded, err := decodeToUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("decoding failed: %w", err)
	}

	df := dataframe.ReadCSV(bytes.NewReader(decoded),
		dataframe.DetectTypes(false),
		dataframe.WithLazyQuotes(true),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to read hierarchy CSV: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return nil, fmt.Errorf("hierarchy dataset is empty")
	}

	out := make([]engine.HierarchyRecord, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		out = append(out, engine.HierarchyRecord{
			AgentID:      cell(&df, colAgentID, i),
			Level:        cell(&df, colLevel, i),
			ManagerID:    cell(&df, colManagerID, i),
			ReportsFrom:  cell(&df, colReportsFrom, i),
			ReportsToEnd: cell(&df, colReportsToEnd, i),
		})
	}
	return out, nil
}

// HierarchyFromRecords converts already-parsed dataset records (e.g. a
// stored upload) into hierarchy records using the same column names.
func HierarchyFromRecords(records []engine.Record) []engine.HierarchyRecord {
	out := make([]engine.HierarchyRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, engine.HierarchyRecord{
			AgentID:      fieldCI(rec, colAgentID),
			Level:        fieldCI(rec, colLevel),
			ManagerID:    fieldCI(rec, colManagerID),
			ReportsFrom:  fieldCI(rec, colReportsFrom),
			ReportsToEnd: fieldCI(rec, colReportsToEnd),
		})
	}
	return out
}

// cell reads one dataframe cell by case-insensitive column name, empty
// string when the column is absent.
func cell(df *dataframe.DataFrame, col string, row int) string {
	for _, name := range df.Names() {
		if strings.EqualFold(name, col) {
			v := df.Col(name).Elem(row).String()
			if v == "NaN" {
				return ""
			}
			return v
		}
	}
	return ""
}

func fieldCI(rec engine.Record, col string) string {
	for name, v := range rec.Fields {
		if strings.EqualFold(name, col) {
			if s, ok := v.(string); ok {
				return s
			}
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}
