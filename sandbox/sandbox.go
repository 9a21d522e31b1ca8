package sandbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/exacta-org/exacta/dataset"
	"github.com/exacta-org/exacta/plan"
)

// ============================================================================
// SANDBOX — Confined execution of transformation scripts
// ============================================================================
// The primary guarantee is capability confinement by construction: the
// evaluator below can only interpret the five typed primitives, and nothing
// in its evaluation path can reach the filesystem, network, process table,
// or reflection. The denylist is a defense-in-depth layer for scripts that
// arrive through the textual replay path rather than straight from the
// compiler.
// ============================================================================

// Kind classifies an execution failure.
type Kind int

const (
	// UnsafeOrMalformed: the script failed static validation and was never
	// executed.
	UnsafeOrMalformed Kind = iota
	// Runtime: a valid script failed mid-execution (e.g. aggregating a
	// non-numeric column).
	Runtime
)

// Error is the sandbox's failure type. Reasons are taxonomy-level messages;
// internal state never leaks through them.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	if e.Kind == UnsafeOrMalformed {
		return "script rejected: " + e.Reason
	}
	return "script execution failed: " + e.Reason
}

func unsafeErr(format string, args ...any) *Error {
	return &Error{Kind: UnsafeOrMalformed, Reason: fmt.Sprintf(format, args...)}
}

func runtimeErr(format string, args ...any) *Error {
	return &Error{Kind: Runtime, Reason: fmt.Sprintf(format, args...)}
}

// ============================================================================
// STATIC VALIDATION (textual replay path)
// ============================================================================

// denylist tokens indicate process control, dynamic code evaluation,
// attribute/reflection access, or file/network I/O. None can legitimately
// appear in a script built from the primitive vocabulary.
var denylist = []string{
	"import ", "exec(", "eval(", "compile(", "__",
	"os.", "sys.", "subprocess", "system(", "popen", "fork(",
	"getattr", "setattr", "globals(", "locals(", "reflect.", "unsafe.",
	"syscall", "socket", "open(", "pickle",
	"http://", "https://", "file://",
}

var vocabulary = map[string]bool{
	"filter": true, "aggregate": true, "group": true, "sort": true, "limit": true,
}

// ValidateText statically checks a textual script: denylist scan, operation
// vocabulary, and well-formedness against the schema. Returns an
// UnsafeOrMalformed error on any violation. A script that fails here must
// never be executed.
func ValidateText(text string, sch dataset.Schema) (plan.Script, error) {
	lower := strings.ToLower(text)
	for _, tok := range denylist {
		if strings.Contains(lower, tok) {
			return plan.Script{}, unsafeErr("denylisted token %q", strings.TrimSpace(tok))
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		verb, _, _ := strings.Cut(line, " ")
		if !vocabulary[verb] {
			return plan.Script{}, unsafeErr("operation %q is outside the primitive vocabulary", verb)
		}
	}

	script, err := plan.Parse(text, sch)
	if err != nil {
		return plan.Script{}, unsafeErr("malformed script: %v", err)
	}
	return script, nil
}

// ExecuteText validates a textual script and, only if validation passes,
// executes it. This is the entry point for scripts of less-trusted origin
// (audit replay).
func ExecuteText(ctx context.Context, text string, ds *dataset.Dataset) (*dataset.Dataset, error) {
	script, err := ValidateText(text, ds.Schema())
	if err != nil {
		return nil, err
	}
	return Execute(ctx, script, ds)
}
