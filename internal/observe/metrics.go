// Package observe метрики OpenTelemetry для коррекций, провайдера и моста текста.
// Тесты создают Metrics через NewMetrics со своим MeterProvider.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "TextCorrector"

// Metrics все инструменты приложения. Безопасны для конкурентного использования.
type Metrics struct {
	CorrectionsRequested metric.Int64Counter
	CorrectionsAccepted  metric.Int64Counter
	// CorrectionsRejected атрибут reason: busy, empty, read_failed, write_failed, too_long, disabled.
	CorrectionsRejected metric.Int64Counter
	CandidatesProduced  metric.Int64Counter
	ProviderErrors      metric.Int64Counter
	ProviderDuration    metric.Float64Histogram
	// BridgeOperations атрибуты op, strategy, status.
	BridgeOperations metric.Int64Counter
}

var latencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CorrectionsRequested, err = m.Int64Counter("textcorrector.corrections.requested",
		metric.WithDescription("Correction trigger presses that started a request."),
	); err != nil {
		return nil, err
	}
	if met.CorrectionsAccepted, err = m.Int64Counter("textcorrector.corrections.accepted",
		metric.WithDescription("Candidates accepted by the user."),
	); err != nil {
		return nil, err
	}
	if met.CorrectionsRejected, err = m.Int64Counter("textcorrector.corrections.rejected",
		metric.WithDescription("Correction requests that ended without a displayed candidate."),
	); err != nil {
		return nil, err
	}
	if met.CandidatesProduced, err = m.Int64Counter("textcorrector.candidates.produced",
		metric.WithDescription("Non-empty candidates returned by the provider."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("textcorrector.provider.errors",
		metric.WithDescription("Failed provider calls, one per candidate."),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("textcorrector.provider.duration",
		metric.WithDescription("Latency of a single provider call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BridgeOperations, err = m.Int64Counter("textcorrector.bridge.operations",
		metric.WithDescription("Text bridge strategy attempts."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

func (m *Metrics) RecordProvider(ctx context.Context, d time.Duration, err error) {
	m.ProviderDuration.Record(ctx, d.Seconds())
	if err != nil {
		m.ProviderErrors.Add(ctx, 1)
	}
}

func (m *Metrics) RecordCandidates(ctx context.Context, n int) {
	m.CandidatesProduced.Add(ctx, int64(n))
}

// RecordBridge вызывается из потоков моста, своего контекста у них нет.
func (m *Metrics) RecordBridge(op, strategy string, ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.BridgeOperations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("strategy", strategy),
		attribute.String("status", status),
	))
}

func (m *Metrics) CorrectionRequested() {
	m.CorrectionsRequested.Add(context.Background(), 1)
}

func (m *Metrics) CorrectionAccepted() {
	m.CorrectionsAccepted.Add(context.Background(), 1)
}

func (m *Metrics) CorrectionRejected(reason string) {
	m.CorrectionsRejected.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}
