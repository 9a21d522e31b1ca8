package intent

import (
	"github.com/exacta-org/exacta/dataset"
)

// ============================================================================
// INTENT — Structured representation of a question's computational meaning
// ============================================================================
// Produced by Detect, consumed by the plan compiler. Every column referenced
// anywhere in an Intent is a dataset.ColumnID resolved against the schema at
// detection time, so execution never sees an unresolved column name.
// ============================================================================

// AggType names an aggregation function.
type AggType int

const (
	AggSum AggType = iota
	AggAverage
	AggCount
	AggMin
	AggMax
	AggStd
)

func (a AggType) String() string {
	switch a {
	case AggSum:
		return "sum"
	case AggAverage:
		return "average"
	case AggCount:
		return "count"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggStd:
		return "std"
	default:
		return "unknown"
	}
}

// Operator names a filter comparison.
type Operator int

const (
	OpEquals Operator = iota
	OpGreater
	OpLess
	OpLike
	OpIn
)

func (o Operator) String() string {
	switch o {
	case OpEquals:
		return "equals"
	case OpGreater:
		return "greater"
	case OpLess:
		return "less"
	case OpLike:
		return "like"
	case OpIn:
		return "in"
	default:
		return "unknown"
	}
}

// Aggregation pairs a function with the column it reduces.
type Aggregation struct {
	Type   AggType
	Column dataset.ColumnID
}

// Filter restricts rows before aggregation.
type Filter struct {
	Column dataset.ColumnID
	Op     Operator
	Value  string
}

// Order describes result ordering. The sorted column is implicit: the first
// target column.
type Order struct {
	Desc bool
}

// Intent is the structured query plan derived from a question.
type Intent struct {
	Aggregations  []Aggregation
	Filters       []Filter
	GroupBy       []dataset.ColumnID
	OrderBy       *Order
	Limit         int // 0 = unset
	TargetColumns []dataset.ColumnID
	Confidence    float64
}
