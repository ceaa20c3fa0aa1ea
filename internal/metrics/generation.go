package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("apitestgen")

// Operation names used as the "operation" attribute.
const (
	OpGenerate = "generate"
	OpRefine   = "refine"
	OpHealth   = "health"
)

// GenerationMetrics records gateway round trips. A nil *GenerationMetrics
// is valid and records nothing.
type GenerationMetrics struct {
	requestsCounter   metric.Int64Counter
	failuresCounter   metric.Int64Counter
	durationHistogram metric.Float64Histogram
	promptTokens      metric.Int64Histogram
	activeGauge       metric.Int64UpDownCounter
}

// NewGenerationMetrics registers the instruments on the global meter provider.
func NewGenerationMetrics() (*GenerationMetrics, error) {
	requestsCounter, err := meter.Int64Counter(
		"apitestgen.generation.requests",
		metric.WithDescription("Total number of generation requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	failuresCounter, err := meter.Int64Counter(
		"apitestgen.generation.failures",
		metric.WithDescription("Total number of failed generation requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	durationHistogram, err := meter.Float64Histogram(
		"apitestgen.generation.duration",
		metric.WithDescription("Duration of generation requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	promptTokens, err := meter.Int64Histogram(
		"apitestgen.prompt.tokens",
		metric.WithDescription("Estimated prompt size in tokens"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	activeGauge, err := meter.Int64UpDownCounter(
		"apitestgen.generation.active",
		metric.WithDescription("Number of in-flight generation requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &GenerationMetrics{
		requestsCounter:   requestsCounter,
		failuresCounter:   failuresCounter,
		durationHistogram: durationHistogram,
		promptTokens:      promptTokens,
		activeGauge:       activeGauge,
	}, nil
}

// RecordStarted counts a request and marks it in flight.
func (m *GenerationMetrics) RecordStarted(ctx context.Context, op string, tokens int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation", op))
	m.requestsCounter.Add(ctx, 1, attrs)
	m.activeGauge.Add(ctx, 1, attrs)
	if tokens > 0 {
		m.promptTokens.Record(ctx, int64(tokens), attrs)
	}
}

// RecordCompleted closes a successful request.
func (m *GenerationMetrics) RecordCompleted(ctx context.Context, op string, duration time.Duration) {
	if m == nil {
		return
	}
	m.durationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("status", "completed"),
		),
	)
	m.activeGauge.Add(ctx, -1, metric.WithAttributes(attribute.String("operation", op)))
}

// RecordFailed closes a failed request; errorType is a short class such as
// "gateway" or "empty_result".
func (m *GenerationMetrics) RecordFailed(ctx context.Context, op, errorType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.failuresCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("error.type", errorType),
		),
	)
	m.durationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("status", "failed"),
		),
	)
	m.activeGauge.Add(ctx, -1, metric.WithAttributes(attribute.String("operation", op)))
}
