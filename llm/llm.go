package llm

import (
	"context"
	"strings"
	"time"
)

// ============================================================================
// LLM COLLABORATOR — Black-box text completion
// ============================================================================
// The pipeline uses the LLM for exactly two things: phrasing a computed
// result in prose, and the last-resort fallback over sampled data. It never
// computes a number. This is the ONLY package that makes external API calls.
// ============================================================================

// Client completes a prompt. Implementations must honor the context; the
// caller bounds the call with a timeout.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds collaborator configuration.
type Config struct {
	APIKey   string        // AI provider API key
	Model    string        // model name (empty = provider default)
	Endpoint string        // API endpoint override (empty = default)
	Timeout  time.Duration // per-call timeout (0 = 30s)
}

// StripFences removes markdown code fences that models like to wrap answers
// in.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
