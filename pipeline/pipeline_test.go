package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/exacta-org/exacta/audit"
	"github.com/exacta-org/exacta/dataset"
)

// ============================================================================
// ORCHESTRATOR TESTS
// ============================================================================

var salaryCSV = []byte(`Name,City,Salary
Asha,Pune,75000
Ravi,Pune,65000
Meera,Delhi,85000
`)

type fakeLLM struct {
	reply string
	err   error
	calls int
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func csvLoader(data []byte) Loader {
	return LoaderFunc(func(ctx context.Context, ref string) (*dataset.Dataset, error) {
		return dataset.LoadCSV(data)
	})
}

func failingLoader(err error) Loader {
	return LoaderFunc(func(ctx context.Context, ref string) (*dataset.Dataset, error) {
		return nil, err
	})
}

func TestAnswerExactPath(t *testing.T) {
	llm := &fakeLLM{reply: "The average salary in Pune is 70000."}
	orch := New(csvLoader(salaryCSV), llm)

	ans, err := orch.Answer(context.Background(), "What is the average salary in Pune?", "salaries.csv")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !ans.Exact {
		t.Error("expected the exact path")
	}
	if ans.Table == nil || ans.Table.Len() != 1 || ans.Table.Cell(0, 0) != "70000" {
		t.Fatalf("expected computed table with 70000, got %+v", ans.Table)
	}
	if !strings.Contains(ans.Text, "70000") && !strings.Contains(ans.Text, "70,000") {
		t.Errorf("answer text missing the computed value: %q", ans.Text)
	}
	if ans.RequestID == "" {
		t.Error("expected a request id")
	}
	if ans.Script == "" {
		t.Error("expected the executed script text")
	}
}

func TestAnswerEmptyDatasetShortCircuits(t *testing.T) {
	llm := &fakeLLM{reply: "should never be used"}
	orch := New(failingLoader(dataset.ErrEmptyDataset), llm)

	ans, err := orch.Answer(context.Background(), "average salary?", "missing.csv")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if ans.Text != LoadErrorMessage {
		t.Errorf("expected fixed load-error message, got %q", ans.Text)
	}
	if ans.Exact {
		t.Error("load failure must not be tagged exact")
	}
	if llm.calls != 0 {
		t.Errorf("load failure must not reach the collaborator, got %d calls", llm.calls)
	}
}

func TestAnswerFallbackOnExecutionFailure(t *testing.T) {
	// Averaging a text column is a runtime execution failure, which must
	// degrade to the sampled-data path, tagged non-exact.
	llm := &fakeLLM{reply: "Most employees are in Pune."}
	orch := New(csvLoader(salaryCSV), llm)

	ans, err := orch.Answer(context.Background(), "What is the average city?", "salaries.csv")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if ans.Exact {
		t.Error("fallback answer must not be tagged exact")
	}
	if ans.Table != nil {
		t.Error("fallback answer must not carry a computed table")
	}
	if ans.Text != llm.reply {
		t.Errorf("expected the collaborator's fallback text, got %q", ans.Text)
	}
	if llm.calls != 1 {
		t.Errorf("expected exactly one fallback call, got %d", llm.calls)
	}
}

func TestAnswerIdempotent(t *testing.T) {
	llm := &fakeLLM{reply: "Total sales reported: prose may vary."}
	orch := New(csvLoader(salaryCSV), llm)

	first, err := orch.Answer(context.Background(), "total salary by city", "salaries.csv")
	if err != nil {
		t.Fatalf("first Answer failed: %v", err)
	}
	second, err := orch.Answer(context.Background(), "total salary by city", "salaries.csv")
	if err != nil {
		t.Fatalf("second Answer failed: %v", err)
	}

	if first.Table == nil || second.Table == nil {
		t.Fatal("expected computed tables on both runs")
	}
	var a, b [][]string
	for i := 0; i < first.Table.Len(); i++ {
		a = append(a, first.Table.Row(i))
	}
	for i := 0; i < second.Table.Len(); i++ {
		b = append(b, second.Table.Row(i))
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("computed tables differ between runs:\n%v\n%v", a, b)
	}
	if first.Script != second.Script {
		t.Errorf("scripts differ between runs:\n%s\n%s", first.Script, second.Script)
	}
}

func TestAnswerCancellation(t *testing.T) {
	llm := &fakeLLM{reply: "unused"}
	orch := New(csvLoader(salaryCSV), llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := orch.Answer(ctx, "average salary?", "salaries.csv"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// ============================================================================
// AUDIT + REPLAY TESTS
// ============================================================================

func TestAnswerAuditAndReplay(t *testing.T) {
	ctx := context.Background()
	store, err := audit.Open(ctx, filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("audit.Open failed: %v", err)
	}
	defer store.Close()

	llm := &fakeLLM{reply: "The average salary in Pune is 70000."}
	orch := New(csvLoader(salaryCSV), llm)
	orch.Audit = store

	ans, err := orch.Answer(ctx, "What is the average salary in Pune?", "salaries.csv")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	entry, err := store.Get(ctx, ans.RequestID)
	if err != nil {
		t.Fatalf("audit entry missing: %v", err)
	}
	if entry.Outcome != audit.OutcomeExact {
		t.Errorf("expected exact outcome, got %s", entry.Outcome)
	}
	if entry.Script != ans.Script {
		t.Errorf("audited script mismatch:\n%s\n%s", entry.Script, ans.Script)
	}

	table, err := orch.Replay(ctx, ans.RequestID)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if table.Cell(0, 0) != "70000" {
		t.Errorf("replay expected 70000, got %q", table.Cell(0, 0))
	}
}

func TestReplayUnknownRequest(t *testing.T) {
	ctx := context.Background()
	store, err := audit.Open(ctx, filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("audit.Open failed: %v", err)
	}
	defer store.Close()

	orch := New(csvLoader(salaryCSV), &fakeLLM{})
	orch.Audit = store

	if _, err := orch.Replay(ctx, "no-such-id"); !errors.Is(err, audit.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
