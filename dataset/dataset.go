package dataset

import (
	"fmt"
	"strings"
)

// ============================================================================
// DATASET — In-memory table with ordered, typed columns
// ============================================================================
// One Dataset is created per request by the loader, owned by the pipeline
// for the duration of that request, and discarded afterwards. It is never
// shared across concurrent requests. After load it is treated as immutable;
// the sandbox executes against its own copy.
// ============================================================================

// ColumnType classifies a column's values.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeNumeric
	TypeTemporal
)

func (t ColumnType) String() string {
	switch t {
	case TypeNumeric:
		return "numeric"
	case TypeTemporal:
		return "temporal"
	default:
		return "text"
	}
}

// ColumnID is a handle into a dataset's schema. Stages downstream of
// detection carry ColumnIDs rather than raw strings, so they cannot
// reference a nonexistent column.
type ColumnID int

// Column describes a single named, typed column.
type Column struct {
	Name string
	Type ColumnType
}

// Dataset is an ordered list of named, typed columns plus rows addressed
// by position. Cell values are kept as strings; numeric coercion happens
// at execution time.
type Dataset struct {
	cols []Column
	rows [][]string
}

// New builds a Dataset from columns and rows. Rows shorter than the column
// list are padded with empty cells; longer rows are truncated.
func New(cols []Column, rows [][]string) *Dataset {
	normalized := make([][]string, len(rows))
	for i, row := range rows {
		r := make([]string, len(cols))
		copy(r, row)
		normalized[i] = r
	}
	return &Dataset{cols: append([]Column(nil), cols...), rows: normalized}
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Columns returns a copy of the column list.
func (d *Dataset) Columns() []Column {
	return append([]Column(nil), d.cols...)
}

// NumCols returns the number of columns.
func (d *Dataset) NumCols() int { return len(d.cols) }

// Cell returns the value at (row, column). Out-of-range access yields "".
func (d *Dataset) Cell(row int, col ColumnID) string {
	if row < 0 || row >= len(d.rows) || int(col) < 0 || int(col) >= len(d.cols) {
		return ""
	}
	return d.rows[row][col]
}

// Row returns a copy of row i.
func (d *Dataset) Row(i int) []string {
	if i < 0 || i >= len(d.rows) {
		return nil
	}
	return append([]string(nil), d.rows[i]...)
}

// Clone deep-copies the dataset. The sandbox executes against a clone so the
// request-owned original survives execution untouched.
func (d *Dataset) Clone() *Dataset {
	return New(d.cols, d.rows)
}

// Sample returns up to n rows from the top of the dataset.
func (d *Dataset) Sample(n int) [][]string {
	if n > len(d.rows) {
		n = len(d.rows)
	}
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		out[i] = append([]string(nil), d.rows[i]...)
	}
	return out
}

// Schema returns the introspection view over the dataset's columns.
func (d *Dataset) Schema() Schema {
	return Schema{cols: d.cols}
}

// ============================================================================
// SCHEMA — Introspection view consumed by every pipeline stage
// ============================================================================

// Schema exposes column names and per-column types.
type Schema struct {
	cols []Column
}

// NewSchema builds a Schema directly from columns (used by tests and the
// textual script parser).
func NewSchema(cols []Column) Schema {
	return Schema{cols: append([]Column(nil), cols...)}
}

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.cols) }

// Column returns the column behind a handle.
func (s Schema) Column(id ColumnID) Column {
	if int(id) < 0 || int(id) >= len(s.cols) {
		return Column{}
	}
	return s.cols[id]
}

// Name returns the column name behind a handle.
func (s Schema) Name(id ColumnID) string { return s.Column(id).Name }

// Columns returns all columns in order.
func (s Schema) Columns() []Column {
	return append([]Column(nil), s.cols...)
}

// NumericColumns returns the handles of all numeric columns, in order.
func (s Schema) NumericColumns() []ColumnID {
	var out []ColumnID
	for i, c := range s.cols {
		if c.Type == TypeNumeric {
			out = append(out, ColumnID(i))
		}
	}
	return out
}

// Resolve maps a user-supplied token to a column handle with graceful
// degradation: exact match, then case-insensitive match, then substring
// match in either direction preferring the longest matching column name.
func (s Schema) Resolve(token string) (ColumnID, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}

	for i, c := range s.cols {
		if c.Name == token {
			return ColumnID(i), true
		}
	}

	lower := strings.ToLower(token)
	for i, c := range s.cols {
		if strings.ToLower(c.Name) == lower {
			return ColumnID(i), true
		}
	}

	best := -1
	bestLen := 0
	for i, c := range s.cols {
		name := strings.ToLower(c.Name)
		if strings.Contains(name, lower) || strings.Contains(lower, name) {
			if len(c.Name) > bestLen {
				best = i
				bestLen = len(c.Name)
			}
		}
	}
	if best >= 0 {
		return ColumnID(best), true
	}
	return 0, false
}

// MustResolve is Resolve for callers that know the column exists (tests,
// script parsing against a validated schema). Panics on miss.
func (s Schema) MustResolve(token string) ColumnID {
	id, ok := s.Resolve(token)
	if !ok {
		panic(fmt.Sprintf("dataset: no column matches %q", token))
	}
	return id
}

// ResolveExact maps a name to a handle without fuzzy fallback. The textual
// script parser uses this so replayed scripts cannot ride on fuzzy matching.
func (s Schema) ResolveExact(name string) (ColumnID, bool) {
	for i, c := range s.cols {
		if c.Name == name {
			return ColumnID(i), true
		}
	}
	return 0, false
}
