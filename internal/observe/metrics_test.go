package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
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

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is %T", m.Name, m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestProviderRecording(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProvider(ctx, 300*time.Millisecond, nil)
	m.RecordProvider(ctx, time.Second, errors.New("quota"))
	m.RecordCandidates(ctx, 3)

	rm := collect(t, reader)
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "textcorrector.provider.errors")))
	assert.Equal(t, int64(3), sumOf(t, findMetric(rm, "textcorrector.candidates.produced")))

	h := findMetric(rm, "textcorrector.provider.duration")
	require.NotNil(t, h)
	hist, ok := h.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

func TestCorrectionCounters(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.CorrectionRequested()
	m.CorrectionRequested()
	m.CorrectionAccepted()
	m.CorrectionRejected("busy")

	rm := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "textcorrector.corrections.requested")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "textcorrector.corrections.accepted")))

	rej := findMetric(rm, "textcorrector.corrections.rejected")
	sum := rej.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	reason, ok := sum.DataPoints[0].Attributes.Value("reason")
	require.True(t, ok)
	assert.Equal(t, "busy", reason.AsString())
}

func TestBridgeAttributes(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordBridge("write", "clipboard", false)
	m.RecordBridge("write", "descendant", true)

	rm := collect(t, reader)
	b := findMetric(rm, "textcorrector.bridge.operations")
	sum := b.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 2)

	want := attribute.NewSet(
		attribute.String("op", "write"),
		attribute.String("strategy", "clipboard"),
		attribute.String("status", "failed"),
	)
	found := false
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			found = true
			assert.Equal(t, int64(1), dp.Value)
		}
	}
	assert.True(t, found)
}
