package metrics

import (
	"math"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestRecorderObserveLookup(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveLookup(LookupSourceTable, "resolved", true, 250*time.Millisecond)

	families := gather(t, rec, "civiq_lookup_requests_total", "civiq_lookup_request_duration_seconds")

	counter := findMetric(t, families["civiq_lookup_requests_total"], map[string]string{
		"source":         "table",
		"outcome":        "resolved",
		"multi_district": "true",
	})
	if counter.GetCounter() == nil {
		t.Fatalf("expected counter metric for lookup requests")
	}
	if got := counter.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected counter value 1, got %v", got)
	}

	histMetric := findMetric(t, families["civiq_lookup_request_duration_seconds"], map[string]string{
		"source":  "table",
		"outcome": "resolved",
	})
	hist := histMetric.GetHistogram()
	if hist == nil {
		t.Fatalf("expected histogram metric for lookup latency")
	}
	if hist.GetSampleCount() != 1 {
		t.Fatalf("expected histogram count 1, got %d", hist.GetSampleCount())
	}
	want := 0.25
	if diff := math.Abs(hist.GetSampleSum() - want); diff > 0.001 {
		t.Fatalf("expected histogram sum near %v, got %v", want, hist.GetSampleSum())
	}
}

func TestRecorderObserveCacheAndUpstream(t *testing.T) {
	rec := NewRecorder(nil)
	rec.ObserveCache(CacheOperationLookup, string(CacheLookupHit))
	rec.ObserveCache(CacheOperationStore, "stored")
	rec.ObserveUpstream("congress", 200, 80*time.Millisecond)
	rec.ObserveUpstream("fec", 0, 5*time.Second)

	families := gather(t, rec, "civiq_cache_operations_total", "civiq_upstream_requests_total")

	hit := findMetric(t, families["civiq_cache_operations_total"], map[string]string{
		"operation": "lookup",
		"result":    "hit",
	})
	if got := hit.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected hit counter 1, got %v", got)
	}

	congress := findMetric(t, families["civiq_upstream_requests_total"], map[string]string{
		"dependency":  "congress",
		"status_code": "200",
	})
	if got := congress.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected congress counter 1, got %v", got)
	}

	fec := findMetric(t, families["civiq_upstream_requests_total"], map[string]string{
		"dependency":  "fec",
		"status_code": "error",
	})
	if got := fec.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected fec error counter 1, got %v", got)
	}
}

func TestRecorderHandler(t *testing.T) {
	rec := NewRecorder(nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)

	rec.Handler().ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200 response, got %d", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("expected response body")
	}
}

func gather(t *testing.T, rec *Recorder, names ...string) map[string][]*dto.Metric {
	t.Helper()
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	families, err := rec.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	collected := make(map[string][]*dto.Metric, len(names))
	for _, mf := range families {
		if !wanted[mf.GetName()] {
			continue
		}
		collected[mf.GetName()] = append(collected[mf.GetName()], mf.GetMetric()...)
	}
	for _, name := range names {
		if len(collected[name]) == 0 {
			t.Fatalf("metric %q not collected", name)
		}
	}
	return collected
}

func findMetric(t *testing.T, metrics []*dto.Metric, labels map[string]string) *dto.Metric {
	t.Helper()
	for _, metric := range metrics {
		if matchLabels(metric, labels) {
			return metric
		}
	}
	t.Fatalf("metric with labels %v not found", labels)
	return nil
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) < len(labels) {
		return false
	}
	for key, expected := range labels {
		found := false
		for _, label := range metric.GetLabel() {
			if label.GetName() == key && label.GetValue() == expected {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
