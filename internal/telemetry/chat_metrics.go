package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// Chat run metrics
	chatRunCounter  metric.Int64Counter
	chatRunDuration metric.Float64Histogram
	chatRunRounds   metric.Int64Histogram

	// Generation fallback metrics
	chatFallbackCounter metric.Int64Counter
)

// InitChatMetrics initializes chat-run metrics
func InitChatMetrics() error {
	meter := otel.Meter("roundtable.chat")

	var err error

	// Chat run counter
	chatRunCounter, err = meter.Int64Counter(
		"chat.run.count",
		metric.WithDescription("Number of chat runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	// Chat run duration
	chatRunDuration, err = meter.Float64Histogram(
		"chat.run.duration",
		metric.WithDescription("Duration of chat runs"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	// Rounds executed per run
	chatRunRounds, err = meter.Int64Histogram(
		"chat.run.rounds",
		metric.WithDescription("Discussion rounds executed per chat run"),
		metric.WithUnit("{round}"),
	)
	if err != nil {
		return err
	}

	// Fallback utterance counter
	chatFallbackCounter, err = meter.Int64Counter(
		"chat.generation.fallbacks",
		metric.WithDescription("Number of generations replaced by a fallback utterance"),
		metric.WithUnit("{generation}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// RecordChatRun records one finished chat run
func RecordChatRun(ctx context.Context, status string, durationMs float64, rounds, coachCount int64) {
	if chatRunCounter != nil {
		chatRunCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", status)),
		)
	}

	if chatRunDuration != nil {
		chatRunDuration.Record(ctx, durationMs,
			metric.WithAttributes(attribute.String("status", status)),
		)
	}

	if chatRunRounds != nil {
		chatRunRounds.Record(ctx, rounds,
			metric.WithAttributes(attribute.Int64("coaches", coachCount)),
		)
	}
}

// RecordChatFallback records a generation replaced by a fallback utterance
func RecordChatFallback(ctx context.Context, phase string) {
	if chatFallbackCounter != nil {
		chatFallbackCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String("phase", phase)),
		)
	}
}
