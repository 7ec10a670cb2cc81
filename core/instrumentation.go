package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/comet-core/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	queueDroppedCounter, _ = meter.Int64Counter(
		"comet.queue.dropped",
		metric.WithDescription("Queued requests dropped to make room for newer input"),
	)
)
