package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
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

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
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

// sumFor returns the int64 sum data point whose attributes include kv.
func sumFor(t *testing.T, m *metricdata.Metrics, kv attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: data type = %T, want Sum[int64]", m.Name, m.Data)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(kv.Key); ok && v == kv.Value {
			return dp.Value
		}
	}
	return 0
}

func TestCounters(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCommand(ctx, "scroll", "pattern", "ok")
	m.RecordCommand(ctx, "scroll", "pattern", "ok")
	m.RecordCommand(ctx, "fill", "llm", "withheld")
	m.RecordFallback(ctx, "low_confidence")
	m.RecordProviderError(ctx, "openai", "classify")
	m.RecordBreakerTransition("openai", "open")
	m.RecordEmail(ctx, "rebuilt")
	m.RecordEmailFlush(ctx, "quiet")
	m.RecordRankMiss(ctx, "fill")

	rm := collect(t, reader)

	tests := []struct {
		metric string
		attr   attribute.KeyValue
		want   int64
	}{
		{"voicenav.commands", Attr("intent", "scroll"), 2},
		{"voicenav.commands", Attr("status", "withheld"), 1},
		{"voicenav.llm.fallbacks", Attr("reason", "low_confidence"), 1},
		{"voicenav.provider.errors", Attr("provider", "openai"), 1},
		{"voicenav.breaker.transitions", Attr("state", "open"), 1},
		{"voicenav.email.reconstructions", Attr("outcome", "rebuilt"), 1},
		{"voicenav.email.flushes", Attr("trigger", "quiet"), 1},
		{"voicenav.target.rank.misses", Attr("mode", "fill"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.metric+"/"+string(tt.attr.Key), func(t *testing.T) {
			met := findMetric(rm, tt.metric)
			if met == nil {
				t.Fatalf("metric %s not found", tt.metric)
			}
			if got := sumFor(t, met, tt.attr); got != tt.want {
				t.Errorf("value = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHistograms(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.ClassifyDuration.Record(ctx, 0.2)
	m.LLMDuration.Record(ctx, 1.1)

	rm := collect(t, reader)
	for _, name := range []string{"voicenav.classify.duration", "voicenav.llm.duration"} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("metric %s not found", name)
		}
		hist, ok := met.Data.(metricdata.Histogram[float64])
		if !ok {
			t.Fatalf("%s: data type = %T", name, met.Data)
		}
		if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
			t.Errorf("%s: unexpected data points %+v", name, hist.DataPoints)
		}
	}
}

func TestGauges(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.ActiveSessions.Add(ctx, 3)
	m.ActiveSessions.Add(ctx, -1)

	met := findMetric(collect(t, reader), "voicenav.sessions.active")
	if met == nil {
		t.Fatal("sessions gauge not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
		t.Fatalf("active sessions = %+v, want 2", sum.DataPoints)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Fatal("DefaultMetrics should return the same instance")
	}
}
