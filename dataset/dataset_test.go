package dataset

import (
	"errors"
	"testing"
)

// ============================================================================
// CSV LOADING + TYPE INFERENCE TESTS
// ============================================================================

var salaryCSV = []byte(`Name,City,Salary,Joined
Asha,Pune,75000,2024-03-01
Ravi,Pune,65000,2023-11-15
Meera,Delhi,85000,2022-07-20
`)

func TestLoadCSV(t *testing.T) {
	ds, err := LoadCSV(salaryCSV)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if ds.Len() != 3 {
		t.Errorf("expected 3 rows, got %d", ds.Len())
	}
	if ds.NumCols() != 4 {
		t.Errorf("expected 4 columns, got %d", ds.NumCols())
	}

	want := map[string]ColumnType{
		"Name":   TypeText,
		"City":   TypeText,
		"Salary": TypeNumeric,
		"Joined": TypeTemporal,
	}
	for _, c := range ds.Columns() {
		if want[c.Name] != c.Type {
			t.Errorf("column %s: expected type %s, got %s", c.Name, want[c.Name], c.Type)
		}
	}
}

func TestLoadCSVEmpty(t *testing.T) {
	cases := map[string][]byte{
		"no bytes":     nil,
		"header only":  []byte("A,B,C\n"),
		"blank header": []byte(""),
	}
	for name, data := range cases {
		if _, err := LoadCSV(data); !errors.Is(err, ErrEmptyDataset) {
			t.Errorf("%s: expected ErrEmptyDataset, got %v", name, err)
		}
	}
}

func TestLoadCSVRaggedRows(t *testing.T) {
	ds, err := LoadCSV([]byte("A,B\n1,2\n3\n4,5,6\n"))
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", ds.Len())
	}
	// Short rows pad, long rows truncate.
	if got := ds.Cell(1, 1); got != "" {
		t.Errorf("short row should pad with empty cell, got %q", got)
	}
	if got := ds.Row(2); len(got) != 2 {
		t.Errorf("long row should truncate to 2 cells, got %d", len(got))
	}
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   ColumnType
	}{
		{"plain ints", []string{"1", "2", "3"}, TypeNumeric},
		{"currency", []string{"$1,200.50", "$980", "$2,000"}, TypeNumeric},
		{"dates", []string{"2024-01-02", "2024-02-03", "2024-03-04"}, TypeTemporal},
		{"month labels", []string{"Jan-2026", "Feb-2026"}, TypeTemporal},
		{"mixed mostly text", []string{"alpha", "beta", "3"}, TypeText},
		{"mostly numeric with nulls", []string{"1", "2", "null", "N/A", "3"}, TypeNumeric},
		{"all empty", []string{"", ""}, TypeText},
	}
	for _, tt := range tests {
		if got := InferType(tt.values); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"75000", 75000, true},
		{"1,234.56", 1234.56, true},
		{"$99", 99, true},
		{"-3.5", -3.5, true},
		{"Pune", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseNumber(%q) = %v, %v; expected %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

// ============================================================================
// COLUMN RESOLUTION TESTS
// ============================================================================

func TestResolve(t *testing.T) {
	sch := NewSchema([]Column{
		{Name: "Monthly Salary", Type: TypeNumeric},
		{Name: "City", Type: TypeText},
		{Name: "Sal", Type: TypeText},
	})

	tests := []struct {
		token string
		want  string
		ok    bool
	}{
		{"City", "City", true},             // exact
		{"city", "City", true},             // case-insensitive
		{"salary", "Monthly Salary", true}, // substring, longest name wins
		{"monthly salary costs", "Monthly Salary", true}, // token contains name
		{"Sal", "Sal", true}, // exact beats substring
		{"region", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		id, ok := sch.Resolve(tt.token)
		if ok != tt.ok {
			t.Errorf("Resolve(%q): expected ok=%v, got %v", tt.token, tt.ok, ok)
			continue
		}
		if ok && sch.Name(id) != tt.want {
			t.Errorf("Resolve(%q): expected %s, got %s", tt.token, tt.want, sch.Name(id))
		}
	}
}

func TestResolveExact(t *testing.T) {
	sch := NewSchema([]Column{{Name: "Salary", Type: TypeNumeric}})
	if _, ok := sch.ResolveExact("salary"); ok {
		t.Error("ResolveExact must not match case-insensitively")
	}
	if _, ok := sch.ResolveExact("Salary"); !ok {
		t.Error("ResolveExact missed an exact name")
	}
}

func TestDatasetIsolation(t *testing.T) {
	ds, err := LoadCSV(salaryCSV)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	row := ds.Row(0)
	row[0] = "mutated"
	if ds.Cell(0, 0) == "mutated" {
		t.Error("Row must return a copy")
	}

	cols := ds.Columns()
	cols[0].Name = "mutated"
	if ds.Columns()[0].Name == "mutated" {
		t.Error("Columns must return a copy")
	}

	clone := ds.Clone()
	if clone.Len() != ds.Len() || clone.NumCols() != ds.NumCols() {
		t.Error("Clone changed shape")
	}
}
