// Package tabular holds the small delimited-table model shared by the sheet
// fetcher and the chart data upload: a header row defining ordered named
// columns, and rows keyed by column name.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// Table is parsed delimited text. Columns preserves the header order; every
// row maps column name to the cell value.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Parse reads delimited text with a header row into a Table. A payload with
// no header row is an error; a header-only payload yields zero rows.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("payload has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse header row: %w", err)
	}

	t := &Table{Columns: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse row %d: %w", len(t.Rows)+2, err)
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// MarshalCSV serializes the table back to delimited text, header row first,
// preserving column order.
func (t *Table) MarshalCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}
	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		for j, col := range t.Columns {
			record[j] = row[col]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
