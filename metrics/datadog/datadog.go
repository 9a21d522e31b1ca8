// Package datadog implements a Datadog backend for the metrics package.
//
// Points are buffered in memory and submitted on a ticker, with one final
// flush on Close. A process killed before Close loses the last window.
package datadog

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/exacta-org/exacta/metrics"
)

// Options controls backend configuration.
type Options struct {
	// Service becomes tag "service:<name>" on every metric. Defaults to
	// "exacta".
	Service string

	// Tags are extra Datadog tags, e.g. []string{"env:prod"}.
	Tags []string

	// FlushEvery controls submission frequency. Defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets these.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the slice of the Datadog API the backend needs,
// extracted so tests can stub submission.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api      metricsSubmitter
	ctx      context.Context
	baseTags []string

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu       sync.Mutex
	counters map[string]float64   // metric\x00tags -> total
	samples  map[string][]float64 // metric\x00tags -> duration seconds
}

// NewBackend constructs a Datadog backend using the official client and
// starts its flush loop. Credentials come from the environment the way the
// Datadog client expects (DD_API_KEY and friends); network errors surface
// from Flush, not from construction.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	service := opts.Service
	if service == "" {
		service = "exacta"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := append([]string{"service:" + service}, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}
	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		baseTags:   baseTags,
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		now:        nowFn,
		newTicker:  newTicker,
		counters:   make(map[string]float64),
		samples:    make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	k := seriesKey(name, labels)

	b.mu.Lock()
	b.counters[k] += delta
	b.mu.Unlock()
}

// ObserveDuration implements metrics.Backend.
func (b *Backend) ObserveDuration(name string, d time.Duration, labels metrics.Labels) {
	if d < 0 {
		return
	}
	k := seriesKey(name, labels)

	b.mu.Lock()
	b.samples[k] = append(b.samples[k], d.Seconds())
	b.mu.Unlock()
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Close more than
// once panics; the backend is process-lifetime.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// Flush submits buffered points and resets the buffers. Buffers reset even
// when submission fails, so a flaky intake never blocks the pipeline.
func (b *Backend) Flush() error {
	b.mu.Lock()
	counters := b.counters
	samples := b.samples
	b.counters = make(map[string]float64)
	b.samples = make(map[string][]float64)
	b.mu.Unlock()

	if len(counters) == 0 && len(samples) == 0 {
		return nil
	}

	series := b.buildSeries(counters, samples, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries is pure, which keeps it testable without clocks or network.
func (b *Backend) buildSeries(counters map[string]float64, samples map[string][]float64, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(counters)+6*len(samples))

	for k, v := range counters {
		if v == 0 {
			continue
		}
		metric, tags := splitSeriesKey(k)
		series = append(series, pointSeries(metric, datadogV2.METRICINTAKETYPE_COUNT, v, withTags(b.baseTags, tags), nowUnix))
	}

	for k, vals := range samples {
		if len(vals) == 0 {
			continue
		}
		metric, tags := splitSeriesKey(k)
		full := withTags(b.baseTags, tags)

		cp := append([]float64(nil), vals...)
		sort.Float64s(cp)

		series = append(series,
			pointSeries(metric+".p50", datadogV2.METRICINTAKETYPE_GAUGE, percentile(cp, 0.50), full, nowUnix),
			pointSeries(metric+".p95", datadogV2.METRICINTAKETYPE_GAUGE, percentile(cp, 0.95), full, nowUnix),
			pointSeries(metric+".p99", datadogV2.METRICINTAKETYPE_GAUGE, percentile(cp, 0.99), full, nowUnix),
			pointSeries(metric+".max", datadogV2.METRICINTAKETYPE_GAUGE, cp[len(cp)-1], full, nowUnix),
			pointSeries(metric+".samples", datadogV2.METRICINTAKETYPE_GAUGE, float64(len(cp)), full, nowUnix))
	}

	return series
}

func pointSeries(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

// seriesKey encodes metric name plus sorted label tags so identical series
// aggregate into one buffer entry.
func seriesKey(name string, labels metrics.Labels) string {
	if len(labels) == 0 {
		return name
	}
	tags := make([]string, 0, len(labels))
	for k, v := range labels {
		tags = append(tags, k+":"+v)
	}
	sort.Strings(tags)
	return name + "\x00" + strings.Join(tags, "\x00")
}

func splitSeriesKey(k string) (metric string, tags []string) {
	parts := strings.Split(k, "\x00")
	return parts[0], parts[1:]
}

func withTags(base, extras []string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:exacta".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
