package exec

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Row is one record keyed by column name.
type Row map[string]Value

// Table is an ordered set of rows with a stable column order.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable builds an empty table with the given column order.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the row count.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the table declares the column.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns every value of one column in row order.
func (t *Table) Column(name string) []Value {
	if t == nil {
		return nil
	}
	out := make([]Value, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, row[name])
	}
	return out
}

// Slice returns rows[offset:offset+limit] clamped to the table bounds.
func (t *Table) Slice(offset, limit int) []Row {
	if t == nil || offset >= len(t.Rows) || limit <= 0 {
		return nil
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + limit
	if end > len(t.Rows) {
		end = len(t.Rows)
	}
	return t.Rows[offset:end]
}

// FromRecords builds a table from decoded JSON objects. Map iteration is
// unordered, so columns are sorted by name for a stable layout.
func FromRecords(records []map[string]any) *Table {
	colSet := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			colSet[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(colSet))
	for k := range colSet {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	table := NewTable(columns...)
	for _, rec := range records {
		row := make(Row, len(columns))
		for _, c := range columns {
			row[c] = FromAny(rec[c])
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// FromCSV reads a header-first CSV stream into a table. Cells stay strings;
// typing is the profiler's concern.
func FromCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := NewTable(header...)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(table.Rows)+2, err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = String(record[i])
			} else {
				row[col] = Null()
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
