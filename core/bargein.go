package orchestration

import (
	"context"

	"github.com/koscakluka/comet-core/core/agent"
	"github.com/koscakluka/comet-core/core/events"
	"github.com/koscakluka/comet-core/core/interruptions"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// bargeIn stops the response being spoken in rt when input arrives. With a
// classifier the decision is made asynchronously from what input means for
// the response. Unclassifiable input stops speech.
func (o *Orchestrator) bargeIn(rt *sessionRuntime, input string) {
	if o.classifier == nil {
		rt.session.StopSpeaking()
		return
	}

	speaking, ok := rt.session.PendingTurn()
	if !ok || rt.session.State() != agent.StateSpeaking {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(o.baseContext, o.turnTimeout)
		defer cancel()
		ctx, span := tracer.Start(ctx, "classify interruption")
		defer span.End()

		classification, err := o.classifier.ClassifyInterruption(ctx, interruptions.Request{
			SessionID: rt.session.ID,
			Input:     input,
			Speaking:  speaking.Response,
			History:   rt.session.History(),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.WarnContext(ctx, "failed to classify interruption", "session_id", rt.session.ID, "error", err)
			classification = interruptions.TypeNewPrompt
		}

		stopped := classification.StopsSpeech() && rt.session.StopSpeaking()
		span.SetAttributes(
			attribute.String("interruption.type", string(classification)),
			attribute.Bool("interruption.stopped_speech", stopped),
		)
		o.onEvent.Emit(events.NewInterruptionClassified(rt.session.ID, input, string(classification), stopped))
	}()
}
