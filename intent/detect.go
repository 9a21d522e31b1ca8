package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/exacta-org/exacta/dataset"
)

// ============================================================================
// DETECTOR — Keyword + proximity translation of questions into Intents
// ============================================================================
// Detect never fails: on total ambiguity it returns an Intent with empty
// components, target columns defaulted to the first numeric columns, and a
// low confidence. No ML model: aggregations are found by keyword families
// with a ±3 token window, grouping and filters by pattern matching, and
// every column token is fuzzy-resolved against the schema so the resulting
// Intent can only reference real columns.
// ============================================================================

const (
	proximityWindow     = 3
	defaultTargetLimit  = 3
	defaultOrderedLimit = 10
)

// Detect parses a natural language question against a schema and a bounded
// sample of rows into a structured Intent.
func Detect(question string, sch dataset.Schema, sampleRows [][]string) Intent {
	lower := strings.ToLower(question)
	tokens := tokenize(lower)

	it := Intent{}
	it.Aggregations = detectAggregations(tokens, sch)
	it.GroupBy = detectGrouping(lower, sch)
	it.Filters = detectFilters(lower, sch, sampleRows)
	it.OrderBy, it.Limit = detectOrdering(lower)
	it.TargetColumns = targetColumns(it.Aggregations, sch)
	it.Confidence = confidence(it)
	return it
}

// ============================================================================
// AGGREGATION DETECTION
// ============================================================================

var aggFamilies = []struct {
	typ      AggType
	keywords []string
}{
	{AggSum, []string{"sum", "total", "totals"}},
	{AggAverage, []string{"average", "mean", "avg"}},
	{AggCount, []string{"count"}},
	{AggMin, []string{"minimum", "min"}},
	{AggMax, []string{"maximum", "max"}},
	{AggStd, []string{"std", "stdev", "deviation", "variance"}},
}

func detectAggregations(tokens []string, sch dataset.Schema) []Aggregation {
	var aggs []Aggregation

	for _, family := range aggFamilies {
		for pos, tok := range tokens {
			if !familyHit(family.typ, family.keywords, tokens, pos, tok) {
				continue
			}
			if col, ok := columnNearby(tokens, pos, sch); ok {
				aggs = append(aggs, Aggregation{Type: family.typ, Column: col})
				break // first match wins for this family
			}
			// Counting needs no column ("how many employees?"); anchor it
			// to the first column, which the reducer ignores.
			if family.typ == AggCount && sch.Len() > 0 {
				aggs = append(aggs, Aggregation{Type: AggCount, Column: 0})
				break
			}
		}
	}
	return aggs
}

func familyHit(typ AggType, keywords []string, tokens []string, pos int, tok string) bool {
	for _, kw := range keywords {
		if tok == kw {
			return true
		}
	}
	// "how many" counts as a count keyword.
	if typ == AggCount && tok == "many" && pos > 0 && tokens[pos-1] == "how" {
		return true
	}
	return false
}

// columnNearby searches ±proximityWindow tokens around pos for a token that
// resolves to a schema column, preferring the closest hit.
func columnNearby(tokens []string, pos int, sch dataset.Schema) (dataset.ColumnID, bool) {
	for dist := 1; dist <= proximityWindow; dist++ {
		for _, i := range []int{pos + dist, pos - dist} {
			if i < 0 || i >= len(tokens) {
				continue
			}
			if col, ok := resolveToken(tokens[i], sch); ok {
				return col, true
			}
		}
	}
	return 0, false
}

// ============================================================================
// GROUPING DETECTION
// ============================================================================

var groupPattern = regexp.MustCompile(
	`(?:grouped\s+by|breakdown\s+(?:by|of)|\beach|\bper|\bby)\s+([a-z0-9_]+(?:\s+[a-z0-9_]+)?)`)

func detectGrouping(lower string, sch dataset.Schema) []dataset.ColumnID {
	var groups []dataset.ColumnID
	seen := make(map[dataset.ColumnID]bool)

	for _, m := range groupPattern.FindAllStringSubmatch(lower, -1) {
		phrase := m[1]
		col, ok := resolveToken(phrase, sch)
		if !ok {
			// Fall back to the first word of a two-word phrase.
			if i := strings.IndexByte(phrase, ' '); i > 0 {
				col, ok = resolveToken(phrase[:i], sch)
			}
		}
		if ok && !seen[col] {
			seen[col] = true
			groups = append(groups, col)
		}
	}
	return groups
}

// ============================================================================
// FILTER DETECTION
// ============================================================================

var filterPatterns = []struct {
	op Operator
	re *regexp.Regexp
}{
	// Comparison values keep commas so "$60,000" survives; leadingNumber
	// strips the separators afterwards.
	{OpGreater, regexp.MustCompile(`([a-z0-9_]+)\s+(?:is\s+)?(?:greater\s+than|more\s+than|above|over|exceeds|>)\s+([^?.;]+)`)},
	{OpLess, regexp.MustCompile(`([a-z0-9_]+)\s+(?:is\s+)?(?:less\s+than|fewer\s+than|below|under|<)\s+([^?.;]+)`)},
	{OpLike, regexp.MustCompile(`([a-z0-9_]+)\s+(?:contains|containing|like)\s+([^,?.;]+)`)},
	{OpIn, regexp.MustCompile(`([a-z0-9_]+)\s+in\s+\(?([^?.;)]+)`)},
	{OpEquals, regexp.MustCompile(`([a-z0-9_]+)\s+(?:is|equals|=)\s+([^,?.;]+)`)},
}

// valueLookupPattern catches "in Pune" / "for Delhi" style constraints where
// the question names a value, never its column. The column is recovered from
// the sample rows.
var valueLookupPattern = regexp.MustCompile(`\b(?:in|for|from)\s+([a-z0-9_]+(?:\s+[a-z0-9_]+)?)`)

func detectFilters(lower string, sch dataset.Schema, sampleRows [][]string) []Filter {
	var filters []Filter
	claimed := make(map[dataset.ColumnID]bool)

	for _, fp := range filterPatterns {
		for _, m := range fp.re.FindAllStringSubmatch(lower, -1) {
			col, ok := resolveToken(m[1], sch)
			if !ok || claimed[col] {
				continue
			}
			value := trimClause(m[2])
			if value == "" {
				continue
			}
			switch fp.op {
			case OpGreater, OpLess:
				num, ok := leadingNumber(value)
				if !ok {
					continue
				}
				value = num
			case OpIn:
				// Membership needs an actual list; "salary in pune" is a
				// value constraint handled by the lookup pass below.
				if !strings.Contains(value, ",") && !strings.Contains(value, " or ") {
					continue
				}
				value = strings.ReplaceAll(value, " or ", ", ")
			case OpEquals:
				// "is greater than"/"is less than" were consumed above;
				// don't let the equals pattern re-capture their tails.
				if strings.HasPrefix(value, "greater ") || strings.HasPrefix(value, "less ") ||
					strings.HasPrefix(value, "more ") || strings.HasPrefix(value, "fewer ") {
					continue
				}
			}
			claimed[col] = true
			filters = append(filters, Filter{Column: col, Op: fp.op, Value: value})
		}
	}

	filters = append(filters, lookupFilters(lower, sch, sampleRows, claimed)...)
	return filters
}

// lookupFilters resolves "in <value>" phrases against the sample rows: a
// phrase that matches a value in some text column becomes an equality filter
// on that column.
func lookupFilters(lower string, sch dataset.Schema, sampleRows [][]string, claimed map[dataset.ColumnID]bool) []Filter {
	var filters []Filter

	for _, m := range valueLookupPattern.FindAllStringSubmatch(lower, -1) {
		phrase := trimClause(m[1])
		if phrase == "" || isStopword(phrase) {
			continue
		}
		if _, ok := resolveToken(phrase, sch); ok {
			continue // names a column, so grouping rather than a value constraint
		}

		candidates := []string{phrase}
		if i := strings.IndexByte(phrase, ' '); i > 0 {
			candidates = append(candidates, phrase[:i])
		}

		for _, cand := range candidates {
			if col, cell, ok := findValueColumn(cand, sch, sampleRows); ok && !claimed[col] {
				claimed[col] = true
				filters = append(filters, Filter{Column: col, Op: OpEquals, Value: cell})
				break
			}
		}
	}
	return filters
}

// findValueColumn scans sample rows for a text column containing the value.
func findValueColumn(value string, sch dataset.Schema, sampleRows [][]string) (dataset.ColumnID, string, bool) {
	for i, c := range sch.Columns() {
		if c.Type != dataset.TypeText {
			continue
		}
		for _, row := range sampleRows {
			if i >= len(row) {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(row[i]), value) {
				return dataset.ColumnID(i), strings.TrimSpace(row[i]), true
			}
		}
	}
	return 0, "", false
}

// ============================================================================
// ORDERING / LIMIT DETECTION
// ============================================================================

var (
	descPattern  = regexp.MustCompile(`\b(?:top|highest|maximum)\b`)
	ascPattern   = regexp.MustCompile(`\b(?:bottom|lowest|minimum)\b`)
	limitPattern = regexp.MustCompile(`\b(?:top|bottom)\s+(\d+)\b`)
)

func detectOrdering(lower string) (*Order, int) {
	var order *Order
	switch {
	case descPattern.MatchString(lower):
		order = &Order{Desc: true}
	case ascPattern.MatchString(lower):
		order = &Order{Desc: false}
	default:
		return nil, 0
	}

	limit := defaultOrderedLimit
	if m := limitPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			limit = n
		}
	}
	return order, limit
}

// ============================================================================
// TARGETS + CONFIDENCE
// ============================================================================

func targetColumns(aggs []Aggregation, sch dataset.Schema) []dataset.ColumnID {
	if len(aggs) > 0 {
		var out []dataset.ColumnID
		seen := make(map[dataset.ColumnID]bool)
		for _, a := range aggs {
			if !seen[a.Column] {
				seen[a.Column] = true
				out = append(out, a.Column)
			}
		}
		return out
	}

	numeric := sch.NumericColumns()
	if len(numeric) > defaultTargetLimit {
		numeric = numeric[:defaultTargetLimit]
	}
	return numeric
}

func confidence(it Intent) float64 {
	components := 0
	if len(it.Aggregations) > 0 {
		components++
	}
	if len(it.Filters) > 0 {
		components++
	}
	if len(it.GroupBy) > 0 {
		components++
	}
	if it.OrderBy != nil {
		components++
	}
	c := 0.3 + 0.2*float64(components)
	if c > 0.95 {
		c = 0.95
	}
	return c
}

// ============================================================================
// TOKEN HELPERS
// ============================================================================

var tokenSplit = regexp.MustCompile(`[^a-z0-9_]+`)

func tokenize(lower string) []string {
	parts := tokenSplit.Split(lower, -1)
	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true, "on": true,
	"is": true, "are": true, "was": true, "what": true, "which": true,
	"how": true, "many": true, "much": true, "per": true, "for": true,
	"each": true, "by": true, "top": true, "bottom": true, "highest": true,
	"lowest": true, "and": true, "or": true, "with": true, "all": true,
}

func isStopword(tok string) bool { return stopwords[tok] }

// clauseBreaks mark where a filter value ends when no punctuation does.
var clauseBreaks = []string{
	" and ", " or ", " with ", " grouped ", " by ", " per ", " for each ",
	" sorted ", " ordered ",
}

// trimClause cuts a captured value at the next clause boundary.
func trimClause(value string) string {
	value = strings.TrimSpace(value)
	for _, brk := range clauseBreaks {
		if i := strings.Index(value+" ", brk); i >= 0 {
			value = value[:i]
		}
	}
	return strings.TrimSpace(strings.Trim(value, `"'`))
}

var numberPattern = regexp.MustCompile(`-?\d[\d,]*\.?\d*`)

// leadingNumber extracts the first numeric token from a value phrase
// ("$50,000 per year" → "50000").
func leadingNumber(value string) (string, bool) {
	m := numberPattern.FindString(value)
	if m == "" {
		return "", false
	}
	return strings.ReplaceAll(m, ",", ""), true
}

// resolveToken is Schema.Resolve guarded against stopwords and very short
// tokens, which otherwise substring-match into unrelated column names.
func resolveToken(tok string, sch dataset.Schema) (dataset.ColumnID, bool) {
	tok = strings.TrimSpace(tok)
	if len(tok) < 3 || isStopword(tok) {
		return 0, false
	}
	return sch.Resolve(tok)
}
