// Package exacta answers natural language questions about tabular datasets
// by computing exact results instead of letting a language model guess numbers.
//
// Usage:
//
//	import "github.com/exacta-org/exacta/pipeline"
//
//	orc := pipeline.New(loader, llmClient)
//	ans, err := orc.Answer(ctx, "What is the average salary in Pune?", "people.csv")
//
// The pipeline detects a structured Intent from the question and schema,
// compiles it into a fixed-vocabulary transformation script, executes the
// script inside a sandbox exposing only tabular primitives, and renders the
// computed table back into prose. The LLM is a black-box collaborator used
// only for phrasing answers and for a last-resort fallback. It never
// computes a number.
package exacta
