package datadog

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/exacta-org/exacta/metrics"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func newTestBackend(t *testing.T, sub *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		Service:    "exacta-test",
		FlushEvery: time.Hour, // flush manually in tests
		submitter:  sub,
		now:        func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatalf("NewBackend failed: %v", err)
	}
	return b
}

func TestFlushSubmitsCountersAndDurations(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter("exacta.questions.total", 1, metrics.Labels{"path": "exact"})
	b.IncCounter("exacta.questions.total", 1, metrics.Labels{"path": "exact"})
	b.IncCounter("exacta.questions.total", 1, metrics.Labels{"path": "fallback"})
	b.ObserveDuration("exacta.question.duration_seconds", 250*time.Millisecond, metrics.Labels{"path": "exact"})

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	payload, ok := sub.last()
	if !ok {
		t.Fatal("expected a submitted payload")
	}

	byMetric := map[string]datadogV2.MetricSeries{}
	for _, s := range payload.Series {
		byMetric[s.Metric] = s
	}

	exact, ok := byMetric["exacta.questions.total"]
	if !ok {
		t.Fatal("counter series missing")
	}
	// Two series share the metric name with different tags; the map keeps
	// one, so check totals across all series instead.
	var total float64
	for _, s := range payload.Series {
		if s.Metric == "exacta.questions.total" {
			total += *s.Points[0].Value
		}
	}
	if total != 3 {
		t.Errorf("expected counter total 3, got %v", total)
	}
	if *exact.Points[0].Timestamp != 1700000000 {
		t.Errorf("expected injected timestamp, got %d", *exact.Points[0].Timestamp)
	}

	if _, ok := byMetric["exacta.question.duration_seconds.p95"]; !ok {
		t.Error("duration percentile series missing")
	}
	if s, ok := byMetric["exacta.question.duration_seconds.samples"]; !ok || *s.Points[0].Value != 1 {
		t.Error("duration sample count series missing or wrong")
	}
}

func TestFlushEmptyIsNoop(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if _, ok := sub.last(); ok {
		t.Error("empty flush must not submit")
	}
	_ = b.Close()
}

func TestFlushResetsBuffers(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)
	defer b.Close()

	b.IncCounter("exacta.questions.total", 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// A second flush with no new points must not resubmit the old ones.
	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush failed: %v", err)
	}
	sub.mu.Lock()
	n := len(sub.payloads)
	sub.mu.Unlock()
	if n != 1 {
		t.Errorf("buffers not reset: %d payloads submitted", n)
	}
}

func TestSeriesKeyRoundTrip(t *testing.T) {
	k := seriesKey("m.total", metrics.Labels{"b": "2", "a": "1"})
	metric, tags := splitSeriesKey(k)
	if metric != "m.total" {
		t.Errorf("metric mismatch: %q", metric)
	}
	if len(tags) != 2 || tags[0] != "a:1" || tags[1] != "b:2" {
		t.Errorf("tags should be sorted: %v", tags)
	}
}

func TestParseTagsCSV(t *testing.T) {
	got := ParseTagsCSV(" env:prod , service:exacta ,, ")
	if len(got) != 2 || got[0] != "env:prod" || got[1] != "service:exacta" {
		t.Errorf("unexpected tags: %v", got)
	}
	if ParseTagsCSV("") != nil {
		t.Error("empty input should yield nil")
	}
}
