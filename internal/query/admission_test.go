package query

import (
	"context"
	"testing"
	"time"

	"github.com/bijux/atlas-engine/internal/errs"
	"github.com/bijux/atlas-engine/internal/metrics"
)

func TestAdmissionAcquireReleaseRoundTrip(t *testing.T) {
	a := NewAdmission(AdmissionConfig{CheapPermits: 1, MediumPermits: 1, HeavyPermits: 1, ShedMinSamples: 1000}, metrics.NewTape())

	release, err := a.Acquire(context.Background(), ClassCheap)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()

	release2, err := a.Acquire(context.Background(), ClassCheap)
	if err != nil {
		t.Fatalf("second Acquire after release: %v", err)
	}
	release2()
}

func TestAdmissionSaturatedClassRejects(t *testing.T) {
	a := NewAdmission(AdmissionConfig{CheapPermits: 1, MediumPermits: 1, HeavyPermits: 1, ShedMinSamples: 1000}, metrics.NewTape())

	release, err := a.Acquire(context.Background(), ClassHeavy)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	_, err = a.Acquire(context.Background(), ClassHeavy)
	if err == nil {
		t.Fatal("expected saturation error on second heavy acquire")
	}
	if errs.KindOf(err) != errs.KindUnavailable {
		t.Errorf("expected KindUnavailable, got %v", errs.KindOf(err))
	}
}

func TestAdmissionDrainingRejectsAllClasses(t *testing.T) {
	a := NewAdmission(DefaultAdmissionConfig(), metrics.NewTape())
	a.Drain(true)

	for _, class := range []QueryClass{ClassCheap, ClassMedium, ClassHeavy} {
		if _, err := a.Acquire(context.Background(), class); err == nil {
			t.Errorf("expected draining to reject class %s", class)
		} else if errs.KindOf(err) != errs.KindUnavailable {
			t.Errorf("class %s: expected KindUnavailable, got %v", class, errs.KindOf(err))
		}
	}

	a.Drain(false)
	release, err := a.Acquire(context.Background(), ClassCheap)
	if err != nil {
		t.Fatalf("Acquire after undraining: %v", err)
	}
	release()
}

func TestAdmissionShedsNonCheapClassAboveP95Threshold(t *testing.T) {
	cfg := AdmissionConfig{
		CheapPermits:   10,
		MediumPermits:  10,
		HeavyPermits:   10,
		ShedLatencyP95: 10 * time.Millisecond,
		ShedMinSamples: 5,
	}
	a := NewAdmission(cfg, metrics.NewTape())

	for i := 0; i < 10; i++ {
		a.recordLatency(ClassMedium, 50*time.Millisecond)
	}

	if _, err := a.Acquire(context.Background(), ClassMedium); err == nil {
		t.Fatal("expected medium class to be shed once p95 exceeds threshold")
	}

	// Cheap is never shed regardless of its own recorded latency.
	for i := 0; i < 10; i++ {
		a.recordLatency(ClassCheap, 50*time.Millisecond)
	}
	release, err := a.Acquire(context.Background(), ClassCheap)
	if err != nil {
		t.Fatalf("cheap class must never be shed: %v", err)
	}
	release()
}

func TestAdmissionShedRequiresMinSamples(t *testing.T) {
	cfg := AdmissionConfig{
		CheapPermits:   10,
		MediumPermits:  10,
		HeavyPermits:   10,
		ShedLatencyP95: 10 * time.Millisecond,
		ShedMinSamples: 20,
	}
	a := NewAdmission(cfg, metrics.NewTape())

	for i := 0; i < 5; i++ {
		a.recordLatency(ClassHeavy, 500*time.Millisecond)
	}

	release, err := a.Acquire(context.Background(), ClassHeavy)
	if err != nil {
		t.Fatalf("expected no shedding below ShedMinSamples, got: %v", err)
	}
	release()
}

func TestPercentileOfSortedSamples(t *testing.T) {
	samples := []time.Duration{
		10 * time.Millisecond,
		50 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		30 * time.Millisecond,
	}
	p95 := percentile(samples, 0.95)
	if p95 != 50*time.Millisecond {
		t.Errorf("expected p95 of 5-sample set to be the max (50ms), got %v", p95)
	}

	// percentile must not mutate the caller's slice ordering.
	if samples[0] != 10*time.Millisecond {
		t.Errorf("percentile mutated caller's slice: %v", samples)
	}
}
