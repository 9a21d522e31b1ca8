package plan

import (
	"fmt"
	"strings"

	"github.com/exacta-org/exacta/dataset"
	"github.com/exacta-org/exacta/intent"
)

// ============================================================================
// TRANSFORMATION SCRIPT — Typed AST of the fixed primitive vocabulary
// ============================================================================
// A Script is an ordered sequence of primitive steps over a dataset:
// filter* → {group+aggregate | aggregate} → sort? → limit?. The steps form a
// closed tagged union: the compiler can only construct well-typed nodes, so
// a compiled Script can never name an operation outside the vocabulary or a
// column outside the schema. The textual form exists for auditability and
// replay, not as the execution medium.
// ============================================================================

// Script is an ordered sequence of primitive steps.
type Script struct {
	Steps []Step
}

// Step is one primitive operation. The interface is sealed: only the five
// step types in this package implement it.
type Step interface {
	isStep()
	text(b *strings.Builder, sch dataset.Schema)
}

// FilterStep keeps rows matching a single predicate.
type FilterStep struct {
	Column dataset.ColumnID
	Op     intent.Operator
	Value  string
}

// AggregateStep reduces the whole table to a single row, one value per
// aggregation.
type AggregateStep struct {
	Aggs []intent.Aggregation
}

// GroupAggregateStep produces one row per distinct group-key combination,
// with one value per aggregation.
type GroupAggregateStep struct {
	GroupBy []dataset.ColumnID
	Aggs    []intent.Aggregation
}

// SortStep orders rows by a source column (or the aggregate derived from it).
type SortStep struct {
	Column dataset.ColumnID
	Desc   bool
}

// LimitStep keeps the first N rows.
type LimitStep struct {
	N int
}

func (FilterStep) isStep()         {}
func (AggregateStep) isStep()      {}
func (GroupAggregateStep) isStep() {}
func (SortStep) isStep()           {}
func (LimitStep) isStep()          {}

// ============================================================================
// TEXTUAL RENDERING
// ============================================================================

// Text renders the script in its canonical textual form, one step per line.
// The text is what gets audited; Parse reverses it.
func (s Script) Text(sch dataset.Schema) string {
	var b strings.Builder
	for i, step := range s.Steps {
		if i > 0 {
			b.WriteByte('\n')
		}
		step.text(&b, sch)
	}
	return b.String()
}

func (st FilterStep) text(b *strings.Builder, sch dataset.Schema) {
	fmt.Fprintf(b, "filter %s %s %q", sch.Name(st.Column), st.Op, st.Value)
}

func (st AggregateStep) text(b *strings.Builder, sch dataset.Schema) {
	b.WriteString("aggregate ")
	writeAggs(b, st.Aggs, sch)
}

func (st GroupAggregateStep) text(b *strings.Builder, sch dataset.Schema) {
	b.WriteString("group ")
	for i, col := range st.GroupBy {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sch.Name(col))
	}
	b.WriteString(" | ")
	writeAggs(b, st.Aggs, sch)
}

func (st SortStep) text(b *strings.Builder, sch dataset.Schema) {
	dir := "asc"
	if st.Desc {
		dir = "desc"
	}
	fmt.Fprintf(b, "sort %s %s", sch.Name(st.Column), dir)
}

func (st LimitStep) text(b *strings.Builder, _ dataset.Schema) {
	fmt.Fprintf(b, "limit %d", st.N)
}

func writeAggs(b *strings.Builder, aggs []intent.Aggregation, sch dataset.Schema) {
	for i, a := range aggs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s(%s)", a.Type, sch.Name(a.Column))
	}
}

// ColumnName names a result column derived from an aggregation, e.g.
// "average(Salary)". Shared by the executor and the formatter.
func ColumnName(a intent.Aggregation, sch dataset.Schema) string {
	return fmt.Sprintf("%s(%s)", a.Type, sch.Name(a.Column))
}
