package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
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

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"parley.synthesis.duration", m.SynthesisDuration},
		{"parley.playback.duration", m.PlaybackDuration},
		{"parley.transcription.duration", m.TranscriptionDuration},
		{"parley.capture.duration", m.CaptureDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			found := findMetric(rm, tc.name)
			if found == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := found.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a float64 histogram", tc.name)
			}
			if len(hist.DataPoints) != 1 {
				t.Fatalf("expected 1 data point, got %d", len(hist.DataPoints))
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("expected count 2, got %d", got)
			}
		})
	}
}

func TestRecordUtterance_Attributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUtterance(ctx, "piper", "played")
	m.RecordUtterance(ctx, "piper", "played")
	m.RecordUtterance(ctx, "openai", "failed")

	rm := collect(t, reader)
	found := findMetric(rm, "parley.utterances")
	if found == nil {
		t.Fatal("parley.utterances not found")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("parley.utterances is not an int64 sum")
	}
	if len(sum.DataPoints) != 2 {
		t.Fatalf("expected 2 attribute sets, got %d", len(sum.DataPoints))
	}
	for _, dp := range sum.DataPoints {
		backend, _ := dp.Attributes.Value(attribute.Key("backend"))
		switch backend.AsString() {
		case "piper":
			if dp.Value != 2 {
				t.Errorf("piper count = %d, want 2", dp.Value)
			}
		case "openai":
			if dp.Value != 1 {
				t.Errorf("openai count = %d, want 1", dp.Value)
			}
		default:
			t.Errorf("unexpected backend attribute %q", backend.AsString())
		}
	}
}

func TestQueueDepth_UpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.QueueDepth.Add(ctx, 3)
	m.QueueDepth.Add(ctx, -2)

	rm := collect(t, reader)
	found := findMetric(rm, "parley.queue.depth")
	if found == nil {
		t.Fatal("parley.queue.depth not found")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("parley.queue.depth is not an int64 sum")
	}
	if len(sum.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(sum.DataPoints))
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("queue depth = %d, want 1", got)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different instances")
	}
}
