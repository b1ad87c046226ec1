package query

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bijux/atlas-engine/internal/errs"
	"github.com/bijux/atlas-engine/internal/metrics"
)

// AdmissionConfig bounds concurrency per query class and the latency
// threshold that triggers shedding, per spec.md §5.
type AdmissionConfig struct {
	CheapPermits  int
	MediumPermits int
	HeavyPermits  int
	// ShedLatencyP95 is the p95 latency threshold above which non-cheap
	// classes are shed.
	ShedLatencyP95 time.Duration
	ShedMinSamples int
	HeavyBackoffMs int64
}

// DefaultAdmissionConfig matches the teacher's calibration style for
// concurrency knobs: generous headroom for the cheap class, tighter for
// heavy.
func DefaultAdmissionConfig() AdmissionConfig {
	return AdmissionConfig{
		CheapPermits:   256,
		MediumPermits:  64,
		HeavyPermits:   16,
		ShedLatencyP95: 200 * time.Millisecond,
		ShedMinSamples: 20,
		HeavyBackoffMs: 250,
	}
}

// Admission gates query execution behind three class-scoped semaphores,
// tracks a rolling latency sample per class for shedding, and supports a
// draining mode that rejects new admissions while in-flight ones finish.
type Admission struct {
	cfg  AdmissionConfig
	tape *metrics.Tape

	cheap  chan struct{}
	medium chan struct{}
	heavy  chan struct{}

	mu       sync.Mutex
	draining bool
	samples  map[QueryClass][]time.Duration
}

// NewAdmission constructs an Admission with independent semaphores per
// class, each pre-filled to its configured permit count.
func NewAdmission(cfg AdmissionConfig, tape *metrics.Tape) *Admission {
	a := &Admission{
		cfg:     cfg,
		tape:    tape,
		cheap:   make(chan struct{}, cfg.CheapPermits),
		medium:  make(chan struct{}, cfg.MediumPermits),
		heavy:   make(chan struct{}, cfg.HeavyPermits),
		samples: make(map[QueryClass][]time.Duration),
	}
	return a
}

func (a *Admission) semaphoreFor(class QueryClass) chan struct{} {
	switch class {
	case ClassCheap:
		return a.cheap
	case ClassMedium:
		return a.medium
	default:
		return a.heavy
	}
}

func (a *Admission) metricsClass(class QueryClass) metrics.AdmissionClass {
	switch class {
	case ClassCheap:
		return metrics.AdmissionCheap
	case ClassMedium:
		return metrics.AdmissionMedium
	default:
		return metrics.AdmissionHeavy
	}
}

// Drain switches the admission layer into draining mode: Acquire
// immediately rejects new requests while permits already held continue to
// run to completion (there is no forcible cancellation of in-flight work
// here, matching spec.md §5's "new requests are rejected while in-flight
// ones complete").
func (a *Admission) Drain(draining bool) {
	a.mu.Lock()
	a.draining = draining
	a.mu.Unlock()
}

// Release is returned by Acquire; callers must call it exactly once to
// return the permit to its class's semaphore.
type Release func()

// Acquire admits one request of class, returning a Release to call when
// the request completes, or a stable Unavailable error if the class is
// saturated, the layer is draining, or shedding is currently in effect for
// non-cheap classes.
func (a *Admission) Acquire(ctx context.Context, class QueryClass) (Release, error) {
	const op = errs.Op("query.Admission.Acquire")

	a.mu.Lock()
	draining := a.draining
	shed := class != ClassCheap && a.shouldShed(class)
	a.mu.Unlock()

	if draining {
		return nil, errs.E(op, errs.KindUnavailable, "admission layer is draining")
	}
	if shed {
		return nil, errs.E(op, errs.KindUnavailable, fmt.Sprintf("class %s shed due to p95 latency over threshold, retry after %dms", class, a.cfg.HeavyBackoffMs))
	}

	sem := a.semaphoreFor(class)
	select {
	case sem <- struct{}{}:
	default:
		a.tape.AdmissionRejected.WithLabelValues(string(a.metricsClass(class))).Inc()
		return nil, errs.E(op, errs.KindUnavailable, fmt.Sprintf("admission class %s saturated", class))
	}
	a.tape.AdmissionInUse.WithLabelValues(string(a.metricsClass(class))).Inc()

	start := time.Now()
	released := false
	release := Release(func() {
		if released {
			return
		}
		released = true
		a.recordLatency(class, time.Since(start))
		a.tape.AdmissionInUse.WithLabelValues(string(a.metricsClass(class))).Dec()
		<-sem
	})
	return release, nil
}

// recordLatency appends to a bounded rolling window per class, used by
// shouldShed's p95 estimate.
func (a *Admission) recordLatency(class QueryClass, d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	window := a.samples[class]
	window = append(window, d)
	if len(window) > 200 {
		window = window[len(window)-200:]
	}
	a.samples[class] = window
}

// shouldShed reports whether class's observed p95 latency exceeds the
// configured threshold with at least ShedMinSamples observations. Callers
// must hold a.mu.
func (a *Admission) shouldShed(class QueryClass) bool {
	window := a.samples[class]
	if len(window) < a.cfg.ShedMinSamples {
		return false
	}
	p95 := percentile(window, 0.95)
	return p95 > a.cfg.ShedLatencyP95
}

// percentile computes the nearest-rank p-th percentile over samples without
// mutating the caller's slice.
func percentile(samples []time.Duration, p float64) time.Duration {
	sorted := append([]time.Duration(nil), samples...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
