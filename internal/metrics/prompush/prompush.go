// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package. Metrics live in a private registry and are
// pushed on Flush, which suits a batch job that exits when done.
package prompush

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"sparkify/internal/metrics"
)

const defaultPushTimeout = 10 * time.Second

// Backend implements metrics.Backend on a Prometheus registry.
type Backend struct {
	registry *prometheus.Registry
	pusher   *push.Pusher
	timeout  time.Duration

	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewBackend creates a backend that pushes to the Pushgateway at url under
// job. grouping adds extra grouping labels (e.g. instance, run_id).
func NewBackend(job, url string, grouping map[string]string) (*Backend, error) {
	job = strings.TrimSpace(job)
	url = strings.TrimSpace(url)
	if job == "" {
		return nil, errors.New("prompush: job is required")
	}
	if url == "" {
		return nil, errors.New("prompush: pushgateway url is required")
	}

	b := &Backend{
		registry:   prometheus.NewRegistry(),
		timeout:    defaultPushTimeout,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	b.counters[metrics.StepTotal] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metrics.StepTotal, Help: "Pipeline steps by outcome.",
	}, []string{"step", "status"})
	b.counters[metrics.RecordsTotal] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metrics.RecordsTotal, Help: "Rows written, by kind.",
	}, []string{"kind"})
	b.counters[metrics.BatchesTotal] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metrics.BatchesTotal, Help: "Committed file transactions.",
	}, nil)
	b.counters[metrics.FilesTotal] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metrics.FilesTotal, Help: "Input files processed, by pass and outcome.",
	}, []string{"pass", "status"})

	b.histograms[metrics.StepDurationSeconds] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metrics.StepDurationSeconds,
		Help:    "Pipeline step duration.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"step", "status"})
	b.histograms[metrics.FileDurationSeconds] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metrics.FileDurationSeconds,
		Help:    "Per-file load duration.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"pass"})

	for _, c := range b.counters {
		b.registry.MustRegister(c)
	}
	for _, h := range b.histograms {
		b.registry.MustRegister(h)
	}

	p := push.New(url, job).Gatherer(b.registry)
	for k, v := range grouping {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		p = p.Grouping(k, v)
	}
	b.pusher = p
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names and non-positive
// deltas are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	c, ok := b.counters[name]
	if !ok || delta <= 0 {
		return
	}
	m, err := c.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}
	m.Add(delta)
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	h, ok := b.histograms[name]
	if !ok || value < 0 {
		return
	}
	m, err := h.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}
	m.Observe(value)
}

// Flush pushes the registry, replacing this job's previous push.
func (b *Backend) Flush() error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("prompush: %w", err)
	}
	return nil
}

// Registry exposes the underlying registry for inspection.
func (b *Backend) Registry() *prometheus.Registry { return b.registry }

var _ metrics.Backend = (*Backend)(nil)
