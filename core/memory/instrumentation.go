package memory

import (
	"context"
	"errors"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/koscakluka/comet-core/core/memory"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	durableErrorCounter, _ = meter.Int64Counter(
		"comet.memory.durable_errors",
		metric.WithDescription("Failed round trips to the durable memory backend"),
	)
)

// traceDurable runs one round trip to the durable backend in its own span.
// A missing key is not an error.
func traceDurable(ctx context.Context, operation, key string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "durable "+operation, trace.WithAttributes(
		attribute.String("memory.operation", operation),
		attribute.String("memory.key", key),
	))
	defer span.End()

	err := fn(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		durableErrorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
	}
	return err
}
