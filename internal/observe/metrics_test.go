package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
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

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestWakeTriggerCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.WakeTriggers.Add(ctx, 1)
	m.WakeTriggers.Add(ctx, 1)

	rm := collect(t, reader)
	found := findMetric(rm, "fantasma.wake.triggers")
	if found == nil {
		t.Fatal("fantasma.wake.triggers not found")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", found.Data)
	}
	if got := sum.DataPoints[0].Value; got != 2 {
		t.Fatalf("wake triggers = %d, want 2", got)
	}
}

func TestCacheLookupAttributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, false)
	m.RecordCacheLookup(ctx, false)

	rm := collect(t, reader)
	found := findMetric(rm, "fantasma.cache.lookups")
	if found == nil {
		t.Fatal("fantasma.cache.lookups not found")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", found.Data)
	}
	// One data point per result attribute.
	if len(sum.DataPoints) != 2 {
		t.Fatalf("data points = %d, want 2", len(sum.DataPoints))
	}
}

func TestRouteDurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RouteDuration.Record(context.Background(), 0.42)

	rm := collect(t, reader)
	found := findMetric(rm, "fantasma.route.duration")
	if found == nil {
		t.Fatal("fantasma.route.duration not found")
	}
	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", found.Data)
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Fatalf("histogram count = %d, want 1", got)
	}
}
