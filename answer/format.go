package answer

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/exacta-org/exacta/dataset"
	"github.com/exacta-org/exacta/intent"
	"github.com/exacta-org/exacta/llm"
)

// ============================================================================
// RESULT FORMATTER — Computed table → natural language
// ============================================================================
// Prose generation is delegated to the LLM collaborator, but the numeric
// content is never negotiable: values passed into the prompt are the exact
// computed values, single-value answers are verified to actually contain
// the value, and any collaborator failure degrades to a deterministic
// rendering of the raw result instead of failing the request.
// ============================================================================

// NoResultsMessage is returned for empty result tables.
const NoResultsMessage = "No results found matching your criteria."

// tableSummaryLimit is the row count above which tables are summarized as
// head + tail instead of serialized in full.
const tableSummaryLimit = 10

// Formatter renders result tables into prose via the LLM collaborator.
type Formatter struct {
	llm llm.Client
}

// New creates a Formatter.
func New(client llm.Client) *Formatter {
	return &Formatter{llm: client}
}

// Format converts a result table into a natural language answer. It never
// returns an error: collaborator failures degrade to a deterministic,
// still-accurate rendering of the computed values.
func (f *Formatter) Format(ctx context.Context, table *dataset.Dataset, it intent.Intent, question string) string {
	if table == nil || table.Len() == 0 {
		return NoResultsMessage
	}

	switch {
	case table.Len() == 1 && table.NumCols() == 1:
		return f.formatScalar(ctx, table, question)
	case table.Len() == 1:
		return f.formatSingleRow(ctx, table, question)
	default:
		return f.formatTable(ctx, table, question)
	}
}

// ============================================================================
// SCALAR — 1 row x 1 column
// ============================================================================

func (f *Formatter) formatScalar(ctx context.Context, table *dataset.Dataset, question string) string {
	raw := table.Cell(0, 0)
	display := raw
	spellings := []string{raw}

	if v, ok := dataset.ParseNumber(raw); ok {
		display = displayNumber(v)
		spellings = numberSpellings(v)
	}

	fallback := fmt.Sprintf("The answer to your question is %s.", display)

	prose, err := f.llm.Complete(ctx, scalarPrompt(question, display, table.Columns()[0].Name))
	if err != nil {
		log.Printf("formatter: collaborator failed, returning raw value: %v", err)
		return fallback
	}

	// The prompt instructs the model to reproduce the exact value; verify it
	// actually did instead of trusting the instruction.
	for _, s := range spellings {
		if strings.Contains(prose, s) {
			return prose
		}
	}
	log.Printf("formatter: collaborator dropped the computed value, returning raw value")
	return fallback
}

// ============================================================================
// SINGLE ROW — 1 row x N columns
// ============================================================================

func (f *Formatter) formatSingleRow(ctx context.Context, table *dataset.Dataset, question string) string {
	pairs := keyValuePairs(table, 0)

	prose, err := f.llm.Complete(ctx, singleRowPrompt(question, pairs))
	if err != nil {
		log.Printf("formatter: collaborator failed, returning raw row: %v", err)
		return pairs
	}
	return prose
}

// ============================================================================
// TABLE — multiple rows
// ============================================================================

func (f *Formatter) formatTable(ctx context.Context, table *dataset.Dataset, question string) string {
	var serialized string
	if table.Len() <= tableSummaryLimit {
		serialized = Serialize(table, 0, 0)
	} else {
		serialized = Serialize(table, 5, 5)
	}

	prose, err := f.llm.Complete(ctx, tablePrompt(question, serialized, table.Len()))
	if err != nil {
		log.Printf("formatter: collaborator failed, returning raw table: %v", err)
		return serialized
	}
	return prose
}

// ============================================================================
// SERIALIZATION
// ============================================================================

// Serialize renders a table as pipe-separated text. With head and tail set,
// only the first head and last tail rows appear, with an omission marker
// between them.
func Serialize(table *dataset.Dataset, head, tail int) string {
	var b strings.Builder

	cols := table.Columns()
	for i, c := range cols {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(c.Name)
	}

	writeRow := func(i int) {
		b.WriteByte('\n')
		row := table.Row(i)
		for j, cell := range row {
			if j > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(cell)
		}
	}

	n := table.Len()
	if head <= 0 || tail <= 0 || head+tail >= n {
		for i := 0; i < n; i++ {
			writeRow(i)
		}
		return b.String()
	}

	for i := 0; i < head; i++ {
		writeRow(i)
	}
	fmt.Fprintf(&b, "\n... %d rows omitted ...", n-head-tail)
	for i := n - tail; i < n; i++ {
		writeRow(i)
	}
	return b.String()
}

func keyValuePairs(table *dataset.Dataset, row int) string {
	cols := table.Columns()
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s: %s", c.Name, table.Cell(row, dataset.ColumnID(i)))
	}
	return strings.Join(parts, ", ")
}

// ============================================================================
// NUMBER RENDERING
// ============================================================================

var englishPrinter = message.NewPrinter(language.English)

// displayNumber rounds to 2 decimal places and drops a trailing ".00" for
// whole values.
func displayNumber(v float64) string {
	rounded := math.Round(v*100) / 100
	if rounded == math.Trunc(rounded) {
		return dataset.FormatNumber(rounded)
	}
	return fmt.Sprintf("%.2f", rounded)
}

// numberSpellings lists the renderings of a value accepted by the
// verification check: plain, trailing-zero, and comma-grouped forms.
func numberSpellings(v float64) []string {
	rounded := math.Round(v*100) / 100
	plain := dataset.FormatNumber(rounded)
	spellings := []string{
		plain,
		fmt.Sprintf("%.2f", rounded),
		englishPrinter.Sprintf("%.2f", rounded),
	}
	if rounded == math.Trunc(rounded) {
		spellings = append(spellings,
			plain+".0",
			englishPrinter.Sprintf("%d", int64(rounded)))
	}
	return spellings
}
