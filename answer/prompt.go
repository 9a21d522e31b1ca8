package answer

import "fmt"

// ============================================================================
// PROMPTS
// ============================================================================
// The computed values are inserted verbatim. The instructions forbid the
// model from recomputing or rounding, and formatScalar verifies the value
// survived the trip.
// ============================================================================

func scalarPrompt(question, value, column string) string {
	return fmt.Sprintf(`You are presenting the result of an exact computation over a dataset.

Question: %s
Computed result (%s): %s

Write a single short sentence answering the question with this exact value.
Rules:
- You MUST include the value %s verbatim. Do not recompute, round, or reformat it beyond adding thousands separators.
- Do not add caveats, explanations, or extra numbers.
- Respond with the sentence only, no markdown.`, question, column, value, value)
}

func singleRowPrompt(question, pairs string) string {
	return fmt.Sprintf(`You are presenting the result of an exact computation over a dataset.

Question: %s
Computed result row: %s

Write one or two short sentences answering the question using these values.
Rules:
- Use the values exactly as given. Do not recompute or invent numbers.
- Respond with the sentences only, no markdown.`, question, pairs)
}

func tablePrompt(question, table string, rows int) string {
	return fmt.Sprintf(`You are presenting the result of an exact computation over a dataset.

Question: %s
Computed result (%d rows):
%s

Summarize this result in a few short sentences answering the question.
Rules:
- Every number you mention must appear in the result above, exactly as written there.
- Do not recompute, extrapolate, or invent values.
- Respond with plain prose only, no markdown.`, question, rows, table)
}
