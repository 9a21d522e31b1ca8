package sandbox

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/exacta-org/exacta/dataset"
	"github.com/exacta-org/exacta/intent"
	"github.com/exacta-org/exacta/plan"
)

// ============================================================================
// EXECUTOR — Evaluates a Script against an owned dataset copy
// ============================================================================
// The evaluation context holds exactly one thing: the working table. Steps
// transform it in place; grouping and aggregation produce new tables whose
// columns remember their source handle, so a later sort can find "the
// aggregate derived from Salary" without string matching.
// ============================================================================

// Execute runs a script against the dataset and returns the result table
// (possibly zero rows). The dataset itself is never mutated; execution
// works on a copy. Cancellation is honored between primitive steps; a step
// in flight runs to completion.
func Execute(ctx context.Context, script plan.Script, ds *dataset.Dataset) (*dataset.Dataset, error) {
	sch := ds.Schema()
	tbl := newTable(ds)

	for _, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var err error
		switch st := step.(type) {
		case plan.FilterStep:
			err = tbl.filter(st)
		case plan.GroupAggregateStep:
			err = tbl.groupAggregate(st, sch)
		case plan.AggregateStep:
			err = tbl.aggregate(st, sch)
		case plan.SortStep:
			err = tbl.sortBy(st)
		case plan.LimitStep:
			tbl.limit(st.N)
		default:
			err = unsafeErr("operation outside the primitive vocabulary")
		}
		if err != nil {
			return nil, err
		}
	}

	return dataset.New(tbl.cols, tbl.rows), nil
}

// ============================================================================
// WORKING TABLE
// ============================================================================

// table is the executor's working state. src tracks, per column, the source
// column handle the values derive from (group keys keep their own handle,
// aggregates keep the handle of the column they reduce).
type table struct {
	cols []dataset.Column
	src  []dataset.ColumnID
	rows [][]string
}

func newTable(ds *dataset.Dataset) *table {
	cols := ds.Columns()
	src := make([]dataset.ColumnID, len(cols))
	rows := make([][]string, ds.Len())
	for i := range src {
		src[i] = dataset.ColumnID(i)
	}
	for i := 0; i < ds.Len(); i++ {
		rows[i] = ds.Row(i)
	}
	return &table{cols: cols, src: src, rows: rows}
}

// find locates the current column deriving from a source handle. Aggregate
// columns are appended after group keys, so the last match wins: "sort by
// Salary" after grouping sorts the Salary aggregate, not a group key.
func (t *table) find(id dataset.ColumnID) (int, bool) {
	for i := len(t.src) - 1; i >= 0; i-- {
		if t.src[i] == id {
			return i, true
		}
	}
	return 0, false
}

// ============================================================================
// FILTER
// ============================================================================

func (t *table) filter(st plan.FilterStep) error {
	idx, ok := t.find(st.Column)
	if !ok {
		return runtimeErr("filter column is not in scope at this point in the script")
	}

	match := predicate(st.Op, st.Value)
	kept := t.rows[:0]
	for _, row := range t.rows {
		if match(row[idx]) {
			kept = append(kept, row)
		}
	}
	t.rows = kept
	return nil
}

// predicate builds a cell matcher for one filter operator. Numeric
// comparison failures are "no match", never errors.
func predicate(op intent.Operator, value string) func(cell string) bool {
	switch op {
	case intent.OpEquals:
		want := strings.TrimSpace(value)
		return func(cell string) bool {
			return strings.EqualFold(strings.TrimSpace(cell), want)
		}
	case intent.OpGreater, intent.OpLess:
		threshold, ok := dataset.ParseNumber(value)
		return func(cell string) bool {
			if !ok {
				return false
			}
			v, vok := dataset.ParseNumber(cell)
			if !vok {
				return false
			}
			if op == intent.OpGreater {
				return v > threshold
			}
			return v < threshold
		}
	case intent.OpLike:
		want := strings.ToLower(strings.TrimSpace(value))
		return func(cell string) bool {
			return strings.Contains(strings.ToLower(cell), want)
		}
	case intent.OpIn:
		members := make(map[string]bool)
		for _, part := range strings.Split(value, ",") {
			members[strings.ToLower(strings.TrimSpace(part))] = true
		}
		return func(cell string) bool {
			return members[strings.ToLower(strings.TrimSpace(cell))]
		}
	default:
		return func(string) bool { return false }
	}
}

// ============================================================================
// AGGREGATION
// ============================================================================

func (t *table) aggregate(st plan.AggregateStep, sch dataset.Schema) error {
	row := make([]string, len(st.Aggs))
	cols := make([]dataset.Column, len(st.Aggs))
	src := make([]dataset.ColumnID, len(st.Aggs))

	for i, a := range st.Aggs {
		v, err := t.reduce(a, t.rows)
		if err != nil {
			return err
		}
		row[i] = dataset.FormatNumber(v)
		cols[i] = dataset.Column{Name: plan.ColumnName(a, sch), Type: dataset.TypeNumeric}
		src[i] = a.Column
	}

	t.cols, t.src, t.rows = cols, src, [][]string{row}
	return nil
}

func (t *table) groupAggregate(st plan.GroupAggregateStep, sch dataset.Schema) error {
	keyIdx := make([]int, len(st.GroupBy))
	for i, g := range st.GroupBy {
		idx, ok := t.find(g)
		if !ok {
			return runtimeErr("group column is not in scope at this point in the script")
		}
		keyIdx[i] = idx
	}

	// First-seen order keeps execution deterministic.
	var order []string
	groups := make(map[string][][]string)
	keys := make(map[string][]string)
	for _, row := range t.rows {
		parts := make([]string, len(keyIdx))
		for i, idx := range keyIdx {
			parts[i] = row[idx]
		}
		key := strings.Join(parts, "\x00")
		if _, seen := groups[key]; !seen {
			order = append(order, key)
			keys[key] = parts
		}
		groups[key] = append(groups[key], row)
	}

	cols := make([]dataset.Column, 0, len(st.GroupBy)+len(st.Aggs))
	src := make([]dataset.ColumnID, 0, len(st.GroupBy)+len(st.Aggs))
	for i, g := range st.GroupBy {
		cols = append(cols, t.cols[keyIdx[i]])
		src = append(src, g)
	}
	for _, a := range st.Aggs {
		cols = append(cols, dataset.Column{Name: plan.ColumnName(a, sch), Type: dataset.TypeNumeric})
		src = append(src, a.Column)
	}

	rows := make([][]string, 0, len(order))
	for _, key := range order {
		row := append([]string(nil), keys[key]...)
		for _, a := range st.Aggs {
			v, err := t.reduce(a, groups[key])
			if err != nil {
				return err
			}
			row = append(row, dataset.FormatNumber(v))
		}
		rows = append(rows, row)
	}

	t.cols, t.src, t.rows = cols, src, rows
	return nil
}

// reduce computes one aggregation over a set of rows.
func (t *table) reduce(a intent.Aggregation, rows [][]string) (float64, error) {
	idx, ok := t.find(a.Column)
	if !ok {
		return 0, runtimeErr("aggregation column is not in scope at this point in the script")
	}

	if a.Type == intent.AggCount {
		return float64(len(rows)), nil
	}

	if t.cols[idx].Type != dataset.TypeNumeric {
		return 0, runtimeErr("cannot compute %s over non-numeric column %q", a.Type, t.cols[idx].Name)
	}

	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if v, ok := dataset.ParseNumber(row[idx]); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0, nil
	}

	switch a.Type {
	case intent.AggSum:
		return sum(values), nil
	case intent.AggAverage:
		return sum(values) / float64(len(values)), nil
	case intent.AggMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case intent.AggMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	case intent.AggStd:
		mean := sum(values) / float64(len(values))
		var sq float64
		for _, v := range values {
			sq += (v - mean) * (v - mean)
		}
		return math.Sqrt(sq / float64(len(values))), nil
	}
	return 0, runtimeErr("unknown aggregation")
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// ============================================================================
// SORT + LIMIT
// ============================================================================

func (t *table) sortBy(st plan.SortStep) error {
	idx, ok := t.find(st.Column)
	if !ok {
		return runtimeErr("sort column is not in scope at this point in the script")
	}

	numeric := t.cols[idx].Type == dataset.TypeNumeric
	less := func(a, b string) bool {
		if numeric {
			av, aok := dataset.ParseNumber(a)
			bv, bok := dataset.ParseNumber(b)
			if aok && bok {
				return av < bv
			}
			return !aok && bok // unparseable cells sort first
		}
		return strings.ToLower(a) < strings.ToLower(b)
	}

	sort.SliceStable(t.rows, func(i, j int) bool {
		if st.Desc {
			return less(t.rows[j][idx], t.rows[i][idx])
		}
		return less(t.rows[i][idx], t.rows[j][idx])
	})
	return nil
}

func (t *table) limit(n int) {
	if n > 0 && len(t.rows) > n {
		t.rows = t.rows[:n]
	}
}
