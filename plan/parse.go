package plan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/exacta-org/exacta/dataset"
	"github.com/exacta-org/exacta/intent"
)

// ============================================================================
// PARSER — Textual script → AST, for the audit/replay path
// ============================================================================
// Compiled scripts never round-trip through text at execution time; this
// parser exists for scripts that originate from a less-trusted place (the
// audit log). It is strict: only the five primitives, only known operators
// and aggregations, and columns resolved by exact name. No fuzzy matching.
// ============================================================================

// Parse reads the canonical textual script form back into an AST, validated
// against the schema.
func Parse(text string, sch dataset.Schema) (Script, error) {
	var steps []Step

	for lineNo, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		verb, rest, _ := strings.Cut(line, " ")
		var (
			step Step
			err  error
		)
		switch verb {
		case "filter":
			step, err = parseFilter(rest, sch)
		case "aggregate":
			step, err = parseAggregate(rest, sch)
		case "group":
			step, err = parseGroup(rest, sch)
		case "sort":
			step, err = parseSort(rest, sch)
		case "limit":
			step, err = parseLimit(rest)
		default:
			err = fmt.Errorf("unknown operation %q", verb)
		}
		if err != nil {
			return Script{}, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return Script{}, fmt.Errorf("empty script")
	}
	return Script{Steps: steps}, nil
}

func parseFilter(rest string, sch dataset.Schema) (Step, error) {
	// Form: <column> <operator> "<value>". The value is a quoted string at
	// the end; the operator is the word right before it; everything earlier
	// is the column name (which may contain spaces).
	q := strings.Index(rest, `"`)
	if q < 0 || !strings.HasSuffix(rest, `"`) {
		return nil, fmt.Errorf("filter: missing quoted value")
	}
	value, err := strconv.Unquote(rest[q:])
	if err != nil {
		return nil, fmt.Errorf("filter: bad value: %w", err)
	}

	head := strings.TrimSpace(rest[:q])
	sp := strings.LastIndex(head, " ")
	if sp < 0 {
		return nil, fmt.Errorf("filter: missing operator")
	}
	colName, opName := head[:sp], head[sp+1:]

	op, err := parseOperator(opName)
	if err != nil {
		return nil, err
	}
	col, ok := sch.ResolveExact(colName)
	if !ok {
		return nil, fmt.Errorf("filter: unknown column %q", colName)
	}
	return FilterStep{Column: col, Op: op, Value: value}, nil
}

func parseAggregate(rest string, sch dataset.Schema) (Step, error) {
	aggs, err := parseAggList(rest, sch)
	if err != nil {
		return nil, err
	}
	return AggregateStep{Aggs: aggs}, nil
}

func parseGroup(rest string, sch dataset.Schema) (Step, error) {
	colsPart, aggsPart, found := strings.Cut(rest, "|")
	if !found {
		return nil, fmt.Errorf("group: missing aggregation list")
	}

	var groupBy []dataset.ColumnID
	for _, name := range strings.Split(colsPart, ",") {
		name = strings.TrimSpace(name)
		col, ok := sch.ResolveExact(name)
		if !ok {
			return nil, fmt.Errorf("group: unknown column %q", name)
		}
		groupBy = append(groupBy, col)
	}

	aggs, err := parseAggList(strings.TrimSpace(aggsPart), sch)
	if err != nil {
		return nil, err
	}
	return GroupAggregateStep{GroupBy: groupBy, Aggs: aggs}, nil
}

func parseSort(rest string, sch dataset.Schema) (Step, error) {
	sp := strings.LastIndex(rest, " ")
	if sp < 0 {
		return nil, fmt.Errorf("sort: missing direction")
	}
	colName, dir := rest[:sp], rest[sp+1:]
	if dir != "asc" && dir != "desc" {
		return nil, fmt.Errorf("sort: bad direction %q", dir)
	}
	col, ok := sch.ResolveExact(colName)
	if !ok {
		return nil, fmt.Errorf("sort: unknown column %q", colName)
	}
	return SortStep{Column: col, Desc: dir == "desc"}, nil
}

func parseLimit(rest string) (Step, error) {
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("limit: bad count %q", rest)
	}
	return LimitStep{N: n}, nil
}

func parseAggList(s string, sch dataset.Schema) ([]intent.Aggregation, error) {
	var aggs []intent.Aggregation
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		open := strings.Index(part, "(")
		if open < 0 || !strings.HasSuffix(part, ")") {
			return nil, fmt.Errorf("aggregate: bad form %q", part)
		}
		typ, err := parseAggType(part[:open])
		if err != nil {
			return nil, err
		}
		colName := part[open+1 : len(part)-1]
		col, ok := sch.ResolveExact(colName)
		if !ok {
			return nil, fmt.Errorf("aggregate: unknown column %q", colName)
		}
		aggs = append(aggs, intent.Aggregation{Type: typ, Column: col})
	}
	if len(aggs) == 0 {
		return nil, fmt.Errorf("aggregate: empty list")
	}
	return aggs, nil
}

func parseOperator(s string) (intent.Operator, error) {
	switch s {
	case "equals":
		return intent.OpEquals, nil
	case "greater":
		return intent.OpGreater, nil
	case "less":
		return intent.OpLess, nil
	case "like":
		return intent.OpLike, nil
	case "in":
		return intent.OpIn, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

func parseAggType(s string) (intent.AggType, error) {
	switch s {
	case "sum":
		return intent.AggSum, nil
	case "average":
		return intent.AggAverage, nil
	case "count":
		return intent.AggCount, nil
	case "min":
		return intent.AggMin, nil
	case "max":
		return intent.AggMax, nil
	case "std":
		return intent.AggStd, nil
	}
	return 0, fmt.Errorf("unknown aggregation %q", s)
}
