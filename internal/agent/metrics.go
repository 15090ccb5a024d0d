package agent

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/abhisek/dentai/internal/interpret"
)

const meterName = "github.com/abhisek/dentai/internal/agent"

type turnMetrics struct {
	turns     metric.Int64Counter
	fallbacks metric.Int64Counter
	duration  metric.Float64Histogram
}

func newTurnMetrics(mp metric.MeterProvider) (*turnMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	turns, err := meter.Int64Counter(
		"dentai.turns",
		metric.WithDescription("Learner turns processed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create turn counter: %w", err)
	}

	fallbacks, err := meter.Int64Counter(
		"dentai.interpretation.fallbacks",
		metric.WithDescription("Interpretations served by a degraded path"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fallback counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"dentai.turn.duration",
		metric.WithDescription("End-to-end turn latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &turnMetrics{turns: turns, fallbacks: fallbacks, duration: duration}, nil
}

func (m *turnMetrics) recordTurn(ctx context.Context, res *TurnResult, degraded bool, elapsed time.Duration) {
	status := "ok"
	if degraded {
		status = "degraded"
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", res.Mode.String()),
		attribute.String("intent_type", string(res.Interpretation.IntentType)),
		attribute.String("status", status),
	)
	m.turns.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000.0,
		metric.WithAttributes(attribute.String("mode", res.Mode.String())))
}

func (m *turnMetrics) recordFallback(ctx context.Context, src interpret.Source) {
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(src))))
}
