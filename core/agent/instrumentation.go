package agent

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/comet-core/core/agent"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	turnCounter, _ = meter.Int64Counter(
		"comet.turns",
		metric.WithDescription("Finished turns by status"),
	)
	turnDuration, _ = meter.Float64Histogram(
		"comet.turn.duration",
		metric.WithDescription("Time from input to finished turn"),
		metric.WithUnit("s"),
	)
)
