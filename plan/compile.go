package plan

import (
	"github.com/exacta-org/exacta/dataset"
	"github.com/exacta-org/exacta/intent"
)

// ============================================================================
// COMPILER — Deterministic lowering of Intent → Script
// ============================================================================
// Pure function: two structurally equal intents compile to structurally
// equal scripts. The intent is assumed already validated against the schema
// (every column is a resolved handle), so compilation never fails.
//
// Step order is fixed: filter → aggregate/group → sort → limit. Steps with
// empty inputs are omitted rather than emitted as no-ops.
// ============================================================================

// Compile lowers an Intent into a transformation Script.
func Compile(it intent.Intent) Script {
	var steps []Step

	for _, f := range it.Filters {
		steps = append(steps, FilterStep{Column: f.Column, Op: f.Op, Value: f.Value})
	}

	switch {
	case len(it.GroupBy) > 0:
		aggs := it.Aggregations
		if len(aggs) == 0 {
			// Bare grouping ("per region" with no aggregation keyword):
			// count rows per group.
			aggs = []intent.Aggregation{{Type: intent.AggCount, Column: it.GroupBy[0]}}
		}
		steps = append(steps, GroupAggregateStep{
			GroupBy: append([]dataset.ColumnID(nil), it.GroupBy...),
			Aggs:    append([]intent.Aggregation(nil), aggs...),
		})

	case len(it.Aggregations) > 0:
		steps = append(steps, AggregateStep{
			Aggs: append([]intent.Aggregation(nil), it.Aggregations...),
		})
	}

	if it.OrderBy != nil && len(it.TargetColumns) > 0 {
		steps = append(steps, SortStep{Column: it.TargetColumns[0], Desc: it.OrderBy.Desc})
	}

	if it.Limit > 0 {
		steps = append(steps, LimitStep{N: it.Limit})
	}

	return Script{Steps: steps}
}
