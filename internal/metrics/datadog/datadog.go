// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Metrics are buffered in memory per (name, label set) and submitted on
// Flush. A background loop flushes every FlushEvery so long batch runs
// produce a time series, and Close performs a final flush. Histograms are
// reduced locally to quantile gauges.
//
// Names map to Datadog style by turning the first two underscores into
// dots: etl_step_duration_seconds becomes etl.step.duration_seconds.
package datadog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"sparkify/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to "sparkify_etl".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "team:data"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Test seams. Production leaves them nil.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter submitter
}

// submitter is the part of *datadogV2.MetricsApi the backend uses.
type submitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// seriesKey identifies one buffered series. tags holds the sorted "key:value"
// pairs of the labels joined by tagSep.
type seriesKey struct {
	metric string
	tags   string
}

const tagSep = "\x00"

// window is everything recorded since the last flush.
type window struct {
	counts  map[seriesKey]float64
	samples map[seriesKey][]float64
}

func newWindow() window {
	return window{
		counts:  make(map[seriesKey]float64),
		samples: make(map[seriesKey][]float64),
	}
}

func (w window) empty() bool { return len(w.counts) == 0 && len(w.samples) == 0 }

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api submitter
	ctx context.Context

	flushEvery time.Duration
	stop       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu  sync.Mutex
	cur window
}

// envTag picks the env tag from ENV, then DD_ENV.
func envTag() string {
	for _, name := range []string{"ENV", "DD_ENV"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return "env:" + v
		}
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and
// starts its flush loop. Credentials and site come from the DD_API_KEY and
// DD_SITE environment variables, read by the client.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, errors.New("datadog metrics init: nil context")
	}

	job := opts.JobName
	if job == "" {
		job = "sparkify_etl"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = time.Minute
	}

	b := &Backend{
		api:        opts.submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		baseTags:   append([]string{envTag(), "job:" + job}, opts.Tags...),
		now:        opts.now,
		newTicker:  opts.newTicker,
		cur:        newWindow(),
	}
	if b.api == nil {
		b.api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.newTicker == nil {
		b.newTicker = time.NewTicker
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.done)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stop:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Later calls only
// flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stop)
		<-b.done
	})
	return b.Flush()
}

// IncCounter implements metrics.Backend. Non-positive deltas are dropped.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	k := keyFor(name, labels)

	b.mu.Lock()
	b.cur.counts[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend. Negative values are dropped.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || math.IsNaN(value) {
		return
	}
	k := keyFor(name, labels)

	b.mu.Lock()
	b.cur.samples[k] = append(b.cur.samples[k], value)
	b.mu.Unlock()
}

func (b *Backend) swap() window {
	b.mu.Lock()
	defer b.mu.Unlock()
	w := b.cur
	b.cur = newWindow()
	return w
}

// Flush submits buffered metrics and starts a new window, also when the
// submission fails. An empty window submits nothing.
func (b *Backend) Flush() error {
	w := b.swap()
	if w.empty() {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.series(w, b.now().Unix())}
	if _, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters()); err != nil {
		return fmt.Errorf("datadog submit: %w", err)
	}
	return nil
}

// series converts a window to Datadog series at one timestamp, sorted by
// metric name and then tags.
func (b *Backend) series(w window, ts int64) []datadogV2.MetricSeries {
	out := make([]datadogV2.MetricSeries, 0, len(w.counts)+6*len(w.samples))

	for k, v := range w.counts {
		out = append(out, point(k.metric, datadogV2.METRICINTAKETYPE_COUNT, v, b.tagsFor(k), ts))
	}
	for k, s := range w.samples {
		out = append(out, quantileGauges(k.metric, s, b.tagsFor(k), ts)...)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Metric != out[j].Metric {
			return out[i].Metric < out[j].Metric
		}
		return strings.Join(out[i].Tags, ",") < strings.Join(out[j].Tags, ",")
	})
	return out
}

func (b *Backend) tagsFor(k seriesKey) []string {
	tags := make([]string, 0, len(b.baseTags)+4)
	tags = append(tags, b.baseTags...)
	if k.tags != "" {
		tags = append(tags, strings.Split(k.tags, tagSep)...)
	}
	return tags
}

// quantileGauges reduces samples to p50/p90/p95/p99/max/count gauges. The
// input slice is not modified.
func quantileGauges(metric string, samples []float64, tags []string, ts int64) []datadogV2.MetricSeries {
	if len(samples) == 0 {
		return nil
	}
	s := append([]float64(nil), samples...)
	sort.Float64s(s)

	gauge := datadogV2.METRICINTAKETYPE_GAUGE
	return []datadogV2.MetricSeries{
		point(metric+".p50", gauge, quantile(s, 0.50), tags, ts),
		point(metric+".p90", gauge, quantile(s, 0.90), tags, ts),
		point(metric+".p95", gauge, quantile(s, 0.95), tags, ts),
		point(metric+".p99", gauge, quantile(s, 0.99), tags, ts),
		point(metric+".max", gauge, s[len(s)-1], tags, ts),
		point(metric+".count", gauge, float64(len(s)), tags, ts),
	}
}

func point(metric string, typ datadogV2.MetricIntakeType, v float64, tags []string, ts int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{{Timestamp: dd.PtrInt64(ts), Value: dd.PtrFloat64(v)}},
		Tags:   tags,
	}
}

// quantile is the nearest-rank quantile of sorted s.
func quantile(s []float64, p float64) float64 {
	n := len(s)
	switch {
	case n == 0:
		return 0
	case p <= 0:
		return s[0]
	case p >= 1:
		return s[n-1]
	}
	return s[int(math.Ceil(p*float64(n)))-1]
}

// keyFor builds the series key. Empty label values are tagged "unknown".
func keyFor(name string, labels metrics.Labels) seriesKey {
	k := seriesKey{metric: metricName(name)}
	if len(labels) == 0 {
		return k
	}
	pairs := make([]string, 0, len(labels))
	for lk, lv := range labels {
		if lv == "" {
			lv = "unknown"
		}
		pairs = append(pairs, lk+":"+lv)
	}
	sort.Strings(pairs)
	k.tags = strings.Join(pairs, tagSep)
	return k
}

func metricName(name string) string {
	return strings.Replace(name, "_", ".", 2)
}

// ParseTagsCSV parses comma-separated tags like "env:prod,team:data".
func ParseTagsCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var _ metrics.Backend = (*Backend)(nil)
