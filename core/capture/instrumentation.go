package capture

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/comet-core/core/capture"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	framesDroppedCounter, _ = meter.Int64Counter(
		"comet.capture.frames_dropped",
		metric.WithDescription("Frames discarded because capture was not listening"),
	)
	bufferOverflowCounter, _ = meter.Int64Counter(
		"comet.capture.buffer_overflows",
		metric.WithDescription("Buffered frames evicted because the capture buffer was full"),
	)
)
