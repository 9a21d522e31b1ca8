package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/exacta-org/exacta/audit"
	"github.com/exacta-org/exacta/dataset"
	"github.com/exacta-org/exacta/llm"
	"github.com/exacta-org/exacta/metrics"
	"github.com/exacta-org/exacta/metrics/datadog"
	"github.com/exacta-org/exacta/pipeline"
)

// ============================================================================
// EXACTA CLI — Exact answers for questions about tabular data
// ============================================================================

const version = "0.1.0"

func main() {
	// ── Flags ─────────────────────────────────────────────────────────────
	filePath := flag.String("file", "", "Path to CSV data file (required)")
	question := flag.String("question", "", "Natural language question to answer")
	auditDB := flag.String("audit-db", "", "Path to SQLite audit log (optional)")
	replayID := flag.String("replay", "", "Re-execute the script of a past request id (requires --audit-db)")
	schemaOnly := flag.Bool("schema", false, "Print the inferred schema and exit")
	format := flag.String("format", "text", "Output format: text, json")
	model := flag.String("model", "gemini-2.5-flash-lite", "Gemini model name")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall request timeout")
	ddTags := flag.String("dd-tags", "", "Enable Datadog metrics with these tags, e.g. env:prod")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Exacta — exact answers for questions about tabular data

Usage:
  exacta --file salaries.csv --question "What is the average salary in Pune?"
  exacta --file sales.csv --question "Total sales by region" --format json
  exacta --file data.csv --schema
  exacta --audit-db queries.db --replay <request-id> --file data.csv

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Environment:
  GEMINI_API_KEY    Required for --question (prose generation and fallback)
  DD_API_KEY        Required for --dd-tags
`)
	}

	// .env is optional; missing files are fine.
	_ = godotenv.Load()

	flag.Parse()

	if *showVersion {
		fmt.Printf("exacta %s\n", version)
		os.Exit(0)
	}
	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		flag.Usage()
		os.Exit(1)
	}
	if *question == "" && *replayID == "" && !*schemaOnly {
		fmt.Fprintln(os.Stderr, "Error: one of --question, --replay, or --schema is required")
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	// ── Schema mode ───────────────────────────────────────────────────────
	if *schemaOnly {
		ds := loadCSV(*filePath)
		for _, c := range ds.Columns() {
			fmt.Printf("%s\t%s\n", c.Name, c.Type)
		}
		return
	}

	// ── Collaborators ─────────────────────────────────────────────────────
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" && *replayID == "" {
		fatalf("GEMINI_API_KEY required for --question")
	}

	orch := pipeline.New(
		pipeline.LoaderFunc(func(ctx context.Context, ref string) (*dataset.Dataset, error) {
			data, err := os.ReadFile(ref)
			if err != nil {
				return nil, err
			}
			return dataset.LoadCSV(data)
		}),
		llm.NewGemini(llm.Config{APIKey: apiKey, Model: *model}),
	)

	if *auditDB != "" {
		store, err := audit.Open(ctx, *auditDB)
		if err != nil {
			fatalf("Failed to open audit log: %v", err)
		}
		defer store.Close()
		orch.Audit = store
	}

	if *ddTags != "" {
		backend, err := datadog.NewBackend(ctx, datadog.Options{
			Service: "exacta",
			Tags:    datadog.ParseTagsCSV(*ddTags),
		})
		if err != nil {
			fatalf("Failed to init Datadog metrics: %v", err)
		}
		defer func() {
			if err := backend.Close(); err != nil {
				log.Printf("metrics flush failed: %v", err)
			}
		}()
		orch.Metrics = backend
	} else {
		orch.Metrics = metrics.Nop{}
	}

	// ── Replay mode ───────────────────────────────────────────────────────
	if *replayID != "" {
		table, err := orch.Replay(ctx, *replayID)
		if err != nil {
			fatalf("Replay failed: %v", err)
		}
		writeTable(os.Stdout, table)
		return
	}

	// ── Question mode ─────────────────────────────────────────────────────
	ans, err := orch.Answer(ctx, *question, *filePath)
	if err != nil {
		fatalf("Request failed: %v", err)
	}

	switch *format {
	case "json":
		out := cliOutput{
			Question:  *question,
			RequestID: ans.RequestID,
			Answer:    ans.Text,
			Exact:     ans.Exact,
			Script:    ans.Script,
		}
		if ans.Table != nil {
			out.Table = tableJSON(ans.Table)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fatalf("Failed to marshal output: %v", err)
		}
	default:
		fmt.Println(ans.Text)
		if !ans.Exact {
			fmt.Fprintln(os.Stderr, "(approximate: answered from a data sample, not an exact computation)")
		}
	}
}

// ============================================================================
// OUTPUT
// ============================================================================

type cliOutput struct {
	Question  string     `json:"question"`
	RequestID string     `json:"requestId"`
	Answer    string     `json:"answer"`
	Exact     bool       `json:"exact"`
	Script    string     `json:"script,omitempty"`
	Table     *tableData `json:"table,omitempty"`
}

type tableData struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

func tableJSON(t *dataset.Dataset) *tableData {
	out := &tableData{}
	for _, c := range t.Columns() {
		out.Headers = append(out.Headers, c.Name)
	}
	for i := 0; i < t.Len(); i++ {
		out.Rows = append(out.Rows, t.Row(i))
	}
	return out
}

func writeTable(w *os.File, t *dataset.Dataset) {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	var headers []string
	for _, c := range t.Columns() {
		headers = append(headers, c.Name)
	}
	cw.Write(headers)
	for i := 0; i < t.Len(); i++ {
		cw.Write(t.Row(i))
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func loadCSV(path string) *dataset.Dataset {
	data, err := os.ReadFile(path)
	if err != nil {
		fatalf("Failed to read file: %v", err)
	}
	ds, err := dataset.LoadCSV(data)
	if err != nil {
		fatalf("Failed to load CSV: %v", err)
	}
	return ds
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
