// Package metrics is the engine's in-process metrics tape: histograms and
// counters for dataset-cache opens/downloads and query admission, built on
// prometheus/client_golang. No HTTP exposition endpoint is wired here —
// callers gather the registry directly; in this module only tests do.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FailureKind classifies a dataset-cache fetch failure for the
// cache_fetch_failures_total counter.
type FailureKind string

const (
	FailureNetwork  FailureKind = "network"
	FailureTimeout  FailureKind = "timeout"
	FailureChecksum FailureKind = "checksum"
	FailureOther    FailureKind = "other"
)

// AdmissionClass is one of the three query admission semaphores.
type AdmissionClass string

const (
	AdmissionCheap  AdmissionClass = "cheap"
	AdmissionMedium AdmissionClass = "medium"
	AdmissionHeavy  AdmissionClass = "heavy"
)

// Tape holds every metric the cache and query layers record against.
type Tape struct {
	registry *prometheus.Registry

	OpenLatency       *prometheus.HistogramVec
	DownloadLatency   *prometheus.HistogramVec
	DownloadTTFB      *prometheus.HistogramVec
	DownloadBytes     *prometheus.CounterVec
	FetchFailures     *prometheus.CounterVec
	BreakerOpen       *prometheus.GaugeVec
	VerifyFastPathHit prometheus.Counter
	AdmissionInUse    *prometheus.GaugeVec
	AdmissionRejected *prometheus.CounterVec
}

// NewTape constructs and registers a fresh Tape against a new registry.
func NewTape() *Tape {
	registry := prometheus.NewRegistry()
	t := &Tape{
		registry: registry,
		OpenLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "atlas",
			Subsystem: "cache",
			Name:      "open_latency_seconds",
			Help:      "Latency of DatasetCache.Open, by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		DownloadLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "atlas",
			Subsystem: "cache",
			Name:      "download_latency_seconds",
			Help:      "Latency of a full dataset build/download from the backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"file"}),
		DownloadTTFB: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "atlas",
			Subsystem: "cache",
			Name:      "download_ttfb_seconds",
			Help:      "Time to first byte of a backend fetch.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"file"}),
		DownloadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "cache",
			Name:      "download_bytes_total",
			Help:      "Bytes fetched from the backend, by file kind.",
		}, []string{"file"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "cache",
			Name:      "fetch_failures_total",
			Help:      "Backend fetch failures, by classified kind.",
		}, []string{"kind"}),
		BreakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "atlas",
			Subsystem: "cache",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker is open, 0 otherwise.",
		}, []string{"dataset"}),
		VerifyFastPathHit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "cache",
			Name:      "verify_marker_fast_path_hits_total",
			Help:      "Opens that skipped full digest verification via the in-process fast-path marker.",
		}),
		AdmissionInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "atlas",
			Subsystem: "query",
			Name:      "admission_in_use",
			Help:      "Permits currently held, by admission class.",
		}, []string{"class"}),
		AdmissionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atlas",
			Subsystem: "query",
			Name:      "admission_rejected_total",
			Help:      "Requests shed at admission, by class.",
		}, []string{"class"}),
	}
	registry.MustRegister(
		t.OpenLatency, t.DownloadLatency, t.DownloadTTFB, t.DownloadBytes,
		t.FetchFailures, t.BreakerOpen, t.VerifyFastPathHit,
		t.AdmissionInUse, t.AdmissionRejected,
	)
	return t
}

// Registry returns the Tape's prometheus registry, for gathering in tests.
func (t *Tape) Registry() *prometheus.Registry {
	return t.registry
}

// RecordFetchFailure increments the fetch-failure counter for kind.
func (t *Tape) RecordFetchFailure(kind FailureKind) {
	t.FetchFailures.WithLabelValues(string(kind)).Inc()
}

// SetBreakerOpen records the circuit breaker's state for dataset.
func (t *Tape) SetBreakerOpen(dataset string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	t.BreakerOpen.WithLabelValues(dataset).Set(v)
}

// RecordOpenLatency records one DatasetCache.Open/OpenTable call's
// duration, labeled by outcome ("success", "error"), per spec.md §4.5's
// "every open ... records latency".
func (t *Tape) RecordOpenLatency(outcome string, d time.Duration) {
	t.OpenLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordDownloadLatency records a full backend fetch's duration for one
// file kind ("sqlite", "fasta", "fai", "release_gene_index").
func (t *Tape) RecordDownloadLatency(file string, d time.Duration) {
	t.DownloadLatency.WithLabelValues(file).Observe(d.Seconds())
}

// RecordDownloadTTFB records the time to first byte of a backend fetch.
// The store-backend capability interface (internal/store) returns whole
// files rather than a byte stream, so TTFB and total latency are the same
// measured interval here; the two metrics stay distinct so a future
// streaming backend can narrow TTFB without a metric-shape change.
func (t *Tape) RecordDownloadTTFB(file string, d time.Duration) {
	t.DownloadTTFB.WithLabelValues(file).Observe(d.Seconds())
}

// RecordDownloadBytes adds n bytes to the download-bytes counter for file.
func (t *Tape) RecordDownloadBytes(file string, n int) {
	t.DownloadBytes.WithLabelValues(file).Add(float64(n))
}
