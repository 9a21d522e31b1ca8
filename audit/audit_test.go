package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ============================================================================
// AUDIT STORE TESTS
// ============================================================================

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	in := Entry{
		RequestID:  "req-1",
		AskedAt:    time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		SourceRef:  "salaries.csv",
		Question:   "What is the average salary in Pune?",
		IntentJSON: `{"Confidence":0.7}`,
		Script:     "filter City equals \"Pune\"\naggregate average(Salary)",
		Outcome:    OutcomeExact,
		Answer:     "The average salary in Pune is 70000.",
	}
	require.NoError(t, s.Insert(ctx, in))

	got, err := s.Get(ctx, "req-1")
	require.NoError(t, err)
	require.Equal(t, in.Question, got.Question)
	require.Equal(t, in.Script, got.Script)
	require.Equal(t, OutcomeExact, got.Outcome)
	require.True(t, got.AskedAt.Equal(in.AskedAt), "timestamp mismatch: %v vs %v", got.AskedAt, in.AskedAt)
}

func TestGetUnknownID(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInsertStampsZeroTime(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Insert(ctx, Entry{RequestID: "req-2", Outcome: OutcomeFallback}))

	got, err := s.Get(ctx, "req-2")
	require.NoError(t, err)
	require.False(t, got.AskedAt.IsZero(), "zero AskedAt should be stamped at insert time")
}

func TestRecentOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		e := Entry{
			RequestID: id,
			AskedAt:   base.Add(time.Duration(i) * time.Minute),
			Outcome:   OutcomeExact,
		}
		require.NoError(t, s.Insert(ctx, e))
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "new", got[0].RequestID)
	require.Equal(t, "mid", got[1].RequestID)
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	s1, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s1.Insert(ctx, Entry{RequestID: "r", Outcome: OutcomeExact}))
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s2.Get(ctx, "r")
	require.NoError(t, err, "entry lost across reopen")
}
