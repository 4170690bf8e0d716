/*
Package ingest converts uploaded tabular files into engine records.

PURPOSE:
  The engine treats a dataset as an opaque ordered sequence of flat
  records. This package is the parsing boundary in front of it: CSV bytes
  in, []engine.Record out, with non-fatal problems surfaced as warnings
  instead of aborting the upload.

ENCODING:
  Real-world exports arrive in UTF-8 (with or without BOM) and Latin-1 /
  Windows-1252 alike. decodeToUTF8 strips BOMs and falls back to a
  Windows-1252 decode when the bytes are not valid UTF-8.

TOLERANCE:
  Ragged rows are padded or truncated to the header width with a warning.
  Rows that fail to parse at all are skipped with a warning. An upload
  fails only when there is no usable header or no data rows.

SEE ALSO:
  - hierarchy.go: Fixed-shape hierarchy dataset loading
*/
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/warp/incentive-engine/engine"
)

// ParseWarning is a non-fatal problem found while parsing an upload.
type ParseWarning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// decodeToUTF8 strips a UTF-8 BOM and falls back to Windows-1252 for
// byte streams that are not valid UTF-8.
func decodeToUTF8(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, bomUTF8) {
		data = data[3:]
	}
	if utf8.Valid(data) {
		return data, nil
	}
	return charmap.Windows1252.NewDecoder().Bytes(data)
}

// ParseCSV parses CSV bytes into engine records for the named dataset.
// The header row supplies the physical field names; each data row becomes
// one Record with its row index as identity.
func ParseCSV(datasetName string, data []byte) ([]engine.Record, []ParseWarning, error) {
	decoded, err := decodeToUTF8(data)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding failed: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1 // ragged rows handled below
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("empty file: no header row")
		}
		return nil, nil, fmt.Errorf("failed to read header row: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	var records []engine.Record
	var warnings []ParseWarning
	rowNum := 0

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			warnings = append(warnings, ParseWarning{Row: rowNum + 1, Message: fmt.Sprintf("parse error: %v", err)})
			continue
		}

		switch {
		case len(row) < len(headers):
			warnings = append(warnings, ParseWarning{Row: rowNum + 1,
				Message: fmt.Sprintf("row has %d columns, expected %d; padding", len(row), len(headers))})
			padded := make([]string, len(headers))
			copy(padded, row)
			row = padded
		case len(row) > len(headers):
			warnings = append(warnings, ParseWarning{Row: rowNum + 1,
				Message: fmt.Sprintf("row has %d columns, expected %d; truncating", len(row), len(headers))})
			row = row[:len(headers)]
		}

		fields := make(map[string]any, len(headers))
		for i, h := range headers {
			fields[h] = row[i]
		}
		records = append(records, engine.Record{Source: datasetName, Row: rowNum, Fields: fields})
		rowNum++
	}

	if len(records) == 0 {
		return nil, warnings, fmt.Errorf("file contains no data rows")
	}
	return records, warnings, nil
}
