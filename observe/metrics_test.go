package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_FetchCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	meta := FetchMeta{Version: "v1", Strategy: "asset"}

	m.RecordFetch(ctx, meta, Outcome{Source: "cache", Status: 200}, 5*time.Millisecond, nil)
	m.RecordFetch(ctx, meta, Outcome{}, 5*time.Millisecond, errors.New("no response"))

	rm := collect(t, reader)
	if got := sumValue(t, findMetric(rm, "sw.fetch.total")); got != 2 {
		t.Errorf("sw.fetch.total = %d, want 2", got)
	}
	if got := sumValue(t, findMetric(rm, "sw.fetch.errors")); got != 1 {
		t.Errorf("sw.fetch.errors = %d, want 1", got)
	}

	hist := findMetric(rm, "sw.fetch.duration_ms")
	if hist == nil {
		t.Fatal("sw.fetch.duration_ms not found")
	}
	h, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", hist.Data)
	}
	var count uint64
	for _, dp := range h.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("histogram count = %d, want 2", count)
	}
}

func TestMetrics_FetchLabels(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordFetch(context.Background(), FetchMeta{Version: "v2", Strategy: "navigation"},
		Outcome{Source: "fallback", Status: 200}, time.Millisecond, nil)

	total := findMetric(collect(t, reader), "sw.fetch.total")
	sum := total.Data.(metricdata.Sum[int64])
	attrs := sum.DataPoints[0].Attributes

	want := map[attribute.Key]string{
		"sw.version":  "v2",
		"sw.strategy": "navigation",
		"sw.source":   "fallback",
	}
	for k, v := range want {
		got, ok := attrs.Value(k)
		if !ok || got.AsString() != v {
			t.Errorf("%s = %v, want %q", k, got, v)
		}
	}
}

func TestMetrics_Lifecycle(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLifecycle(ctx, EventInstall, "v1", nil)
	m.RecordLifecycle(ctx, EventInstall, "v2", errors.New("fetch failed"))
	m.RecordLifecycle(ctx, EventActivate, "v1", nil)

	if got := sumValue(t, findMetric(collect(t, reader), "sw.lifecycle.total")); got != 3 {
		t.Errorf("sw.lifecycle.total = %d, want 3", got)
	}
}

func TestMetrics_CacheWriteErrors(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordCacheWriteError(context.Background(), "lph-runtime-v1")
	m.RecordCacheWriteError(context.Background(), "lph-runtime-v1")

	if got := sumValue(t, findMetric(collect(t, reader), "sw.cache.write_errors")); got != 2 {
		t.Errorf("sw.cache.write_errors = %d, want 2", got)
	}
}

func TestNopMetrics(t *testing.T) {
	m := NopMetrics()
	m.RecordFetch(context.Background(), FetchMeta{}, Outcome{}, 0, nil)
	m.RecordLifecycle(context.Background(), EventClaim, "v1", nil)
	m.RecordCacheWriteError(context.Background(), "x")
}
