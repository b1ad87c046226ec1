package metrics

import (
	"testing"
	"time"
)

func counterValue(t *testing.T, c *Tape, name string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			var total float64
			for _, m := range f.GetMetric() {
				if m.GetCounter() != nil {
					total += m.GetCounter().GetValue()
				}
			}
			return total
		}
	}
	return 0
}

func TestRecordFetchFailureIncrementsByKind(t *testing.T) {
	tape := NewTape()
	tape.RecordFetchFailure(FailureNetwork)
	tape.RecordFetchFailure(FailureNetwork)
	tape.RecordFetchFailure(FailureChecksum)

	if got := counterValue(t, tape, "atlas_cache_fetch_failures_total"); got != 3 {
		t.Errorf("total fetch failures = %v, want 3", got)
	}
}

func TestSetBreakerOpenTogglesGauge(t *testing.T) {
	tape := NewTape()
	tape.SetBreakerOpen("110/homo_sapiens/GRCh38", true)

	families, err := tape.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() != "atlas_cache_breaker_open" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "dataset" && l.GetValue() == "110/homo_sapiens/GRCh38" {
					found = true
					if m.GetGauge().GetValue() != 1 {
						t.Errorf("breaker_open gauge = %v, want 1", m.GetGauge().GetValue())
					}
				}
			}
		}
	}
	if !found {
		t.Error("expected a breaker_open series for the dataset")
	}
}

func TestVerifyFastPathHitCounter(t *testing.T) {
	tape := NewTape()
	tape.VerifyFastPathHit.Inc()
	tape.VerifyFastPathHit.Inc()

	if got := counterValue(t, tape, "atlas_cache_verify_marker_fast_path_hits_total"); got != 2 {
		t.Errorf("fast path hits = %v, want 2", got)
	}
}

func TestRecordOpenAndDownloadMetrics(t *testing.T) {
	tape := NewTape()
	tape.RecordOpenLatency("hit", 5*time.Millisecond)
	tape.RecordDownloadLatency("sqlite", 40*time.Millisecond)
	tape.RecordDownloadTTFB("sqlite", 10*time.Millisecond)
	tape.RecordDownloadBytes("sqlite", 2048)
	tape.RecordDownloadBytes("sqlite", 1024)

	if got := counterValue(t, tape, "atlas_cache_download_bytes_total"); got != 3072 {
		t.Errorf("download bytes = %v, want 3072", got)
	}

	families, err := tape.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantHist := map[string]bool{"atlas_cache_open_latency_seconds": false, "atlas_cache_download_latency_seconds": false, "atlas_cache_download_ttfb_seconds": false}
	for _, f := range families {
		if _, ok := wantHist[f.GetName()]; !ok {
			continue
		}
		for _, m := range f.GetMetric() {
			if m.GetHistogram().GetSampleCount() > 0 {
				wantHist[f.GetName()] = true
			}
		}
	}
	for name, seen := range wantHist {
		if !seen {
			t.Errorf("expected at least one observation recorded for %s", name)
		}
	}
}
