package cache

import (
	"sync"
	"time"
)

// breaker is a per-dataset circuit breaker: after failures reaches
// threshold, Allow refuses new attempts until openFor has elapsed since the
// breaker opened.
type breaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openFor   time.Duration
	openSince time.Time
}

func newBreaker(threshold int, openFor time.Duration) *breaker {
	return &breaker{threshold: threshold, openFor: openFor}
}

// Allow reports whether a new attempt may proceed. It returns false while
// the breaker is open.
func (b *breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return true
	}
	if now.Sub(b.openSince) >= b.openFor {
		b.failures = 0
		return true
	}
	return false
}

// RecordFailure counts a failed attempt, opening the breaker once
// threshold is reached.
func (b *breaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures == b.threshold {
		b.openSince = now
	}
}

// RecordSuccess resets the failure count, closing the breaker.
func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// IsOpen reports the breaker's current state without mutating it, for
// metrics reporting.
func (b *breaker) IsOpen(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return false
	}
	return now.Sub(b.openSince) < b.openFor
}
