// Package pipeline sequences the exact-answer stages for one question:
// load, detect, compile, execute, format, with a sampled-data LLM fallback
// when the exact path cannot produce a result.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/exacta-org/exacta/answer"
	"github.com/exacta-org/exacta/audit"
	"github.com/exacta-org/exacta/dataset"
	"github.com/exacta-org/exacta/intent"
	"github.com/exacta-org/exacta/llm"
	"github.com/exacta-org/exacta/metrics"
	"github.com/exacta-org/exacta/plan"
	"github.com/exacta-org/exacta/sandbox"
)

// LoadErrorMessage is the fixed user-facing string for an empty or
// unreadable dataset. Loader internals are never surfaced.
const LoadErrorMessage = "Sorry, the dataset could not be read or contains no rows."

// fallbackSampleLimit bounds how many raw rows go into the fallback prompt.
const fallbackSampleLimit = 100

// Loader supplies datasets by reference. Implementations live outside the
// pipeline; a CSV file loader ships with the CLI.
type Loader interface {
	Load(ctx context.Context, ref string) (*dataset.Dataset, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, ref string) (*dataset.Dataset, error)

func (f LoaderFunc) Load(ctx context.Context, ref string) (*dataset.Dataset, error) {
	return f(ctx, ref)
}

// Answer is the result of one pipeline run.
type Answer struct {
	RequestID string
	Text      string

	// Exact is true when the answer came from the computed path. Fallback
	// answers carry no numeric-accuracy guarantee.
	Exact bool

	// Table holds the computed result table on the exact path, nil otherwise.
	Table *dataset.Dataset

	Intent intent.Intent
	Script string
}

// Orchestrator wires the pipeline stages together. Audit and Metrics are
// optional; a nil audit store skips logging and metrics default to Nop.
type Orchestrator struct {
	Loader  Loader
	LLM     llm.Client
	Audit   *audit.Store
	Metrics metrics.Backend
}

// New creates an Orchestrator with a Nop metrics backend.
func New(loader Loader, client llm.Client) *Orchestrator {
	return &Orchestrator{Loader: loader, LLM: client, Metrics: metrics.Nop{}}
}

// Answer runs the full pipeline for one question against one dataset
// reference. Stage failures after a successful load degrade to the fallback
// path instead of erroring; only caller cancellation returns an error.
func (o *Orchestrator) Answer(ctx context.Context, question, ref string) (Answer, error) {
	start := time.Now()
	requestID := uuid.NewString()
	out := Answer{RequestID: requestID}

	log.Printf("[%s] loading dataset %q", requestID, ref)
	ds, err := o.Loader.Load(ctx, ref)
	if err != nil || ds == nil || ds.Len() == 0 {
		if ctx.Err() != nil {
			return Answer{}, ctx.Err()
		}
		log.Printf("[%s] load failed: %v", requestID, err)
		out.Text = LoadErrorMessage
		o.finish(ctx, out, question, ref, audit.OutcomeError, start)
		return out, nil
	}

	sch := ds.Schema()
	sample := ds.Sample(5)

	log.Printf("[%s] detecting intent", requestID)
	it := intent.Detect(question, sch, sample)
	out.Intent = it

	log.Printf("[%s] compiling (confidence %.2f)", requestID, it.Confidence)
	script := plan.Compile(it)
	out.Script = script.Text(sch)

	log.Printf("[%s] executing %d steps", requestID, len(script.Steps))
	table, err := sandbox.Execute(ctx, script, ds)
	if err != nil {
		if ctx.Err() != nil {
			return Answer{}, ctx.Err()
		}
		log.Printf("[%s] execution failed, falling back: %v", requestID, err)
		return o.fallback(ctx, out, question, ref, ds, start)
	}

	log.Printf("[%s] formatting %d-row result", requestID, table.Len())
	formatter := answer.New(o.LLM)
	out.Text = formatter.Format(ctx, table, it, question)
	out.Exact = true
	out.Table = table

	o.finish(ctx, out, question, ref, audit.OutcomeExact, start)
	return out, nil
}

// fallback asks the LLM to answer directly from the schema and a bounded
// row sample. The result is tagged non-exact.
func (o *Orchestrator) fallback(ctx context.Context, out Answer, question, ref string, ds *dataset.Dataset, start time.Time) (Answer, error) {
	prompt := fallbackPrompt(question, ds)

	text, err := o.LLM.Complete(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return Answer{}, ctx.Err()
		}
		log.Printf("[%s] fallback failed: %v", out.RequestID, err)
		out.Text = "Sorry, this question could not be answered from the dataset."
		o.finish(ctx, out, question, ref, audit.OutcomeError, start)
		return out, nil
	}

	out.Text = text
	out.Exact = false
	o.finish(ctx, out, question, ref, audit.OutcomeFallback, start)
	return out, nil
}

// finish emits metrics and writes the audit entry. Both are best-effort.
func (o *Orchestrator) finish(ctx context.Context, out Answer, question, ref string, outcome audit.Outcome, start time.Time) {
	if o.Metrics != nil {
		labels := metrics.Labels{"path": string(outcome)}
		o.Metrics.IncCounter("exacta.questions.total", 1, labels)
		o.Metrics.ObserveDuration("exacta.question.duration_seconds", time.Since(start), labels)
	}

	if o.Audit == nil {
		return
	}
	intentJSON, err := json.Marshal(out.Intent)
	if err != nil {
		intentJSON = []byte("{}")
	}
	entry := audit.Entry{
		RequestID:  out.RequestID,
		SourceRef:  ref,
		Question:   question,
		IntentJSON: string(intentJSON),
		Script:     out.Script,
		Outcome:    outcome,
		Answer:     out.Text,
	}
	if err := o.Audit.Insert(ctx, entry); err != nil {
		log.Printf("[%s] audit insert failed: %v", out.RequestID, err)
	}
}

// Replay re-executes the stored script of a past request against its
// original dataset reference. The stored text is re-validated before
// execution; a script that no longer passes validation is never run.
func (o *Orchestrator) Replay(ctx context.Context, requestID string) (*dataset.Dataset, error) {
	if o.Audit == nil {
		return nil, errors.New("pipeline: replay requires an audit store")
	}

	entry, err := o.Audit.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if entry.Script == "" {
		return nil, fmt.Errorf("pipeline: request %s has no script to replay", requestID)
	}

	ds, err := o.Loader.Load(ctx, entry.SourceRef)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reload %s: %w", entry.SourceRef, err)
	}

	return sandbox.ExecuteText(ctx, entry.Script, ds)
}

// fallbackPrompt serializes the schema and a bounded sample for the
// lower-guarantee direct path.
func fallbackPrompt(question string, ds *dataset.Dataset) string {
	n := ds.Len()
	if n > fallbackSampleLimit {
		n = fallbackSampleLimit
	}

	var cols []string
	for _, c := range ds.Columns() {
		cols = append(cols, fmt.Sprintf("%s (%s)", c.Name, c.Type))
	}

	sample := dataset.New(ds.Columns(), ds.Sample(n))
	return fmt.Sprintf(`Answer the question using only the dataset sample below.

Question: %s

Columns: %v
Sample (%d of %d rows):
%s

Be concise. If the sample is insufficient to answer exactly, say the answer is approximate.`,
		question, cols, n, ds.Len(), answer.Serialize(sample, 0, 0))
}
