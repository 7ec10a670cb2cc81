package groq

import (
	"context"
	"fmt"
	"strings"

	"github.com/koscakluka/comet-core/core/interruptions"
	"go.opentelemetry.io/otel/attribute"
)

const classifierInstructions = `You decide what a user meant by speaking while the assistant was still talking.
Classify the new input as one of:
- continuation: the user adds to or acknowledges what is being said
- clarification: the user asks about what is being said
- cancellation: the user wants the assistant to stop
- ignorable: filler words or backchannel such as "mhm"
- repetition: the user wants the last answer repeated
- noise: the input is not directed at the assistant
- new prompt: the user moves on to something else`

type classification struct {
	Type string `json:"type" jsonschema:"title=Type,description=The type of interruption,enum=continuation,enum=clarification,enum=cancellation,enum=ignorable,enum=repetition,enum=noise,enum=new prompt"`
}

// ClassifyInterruption classifies input the user spoke over a response with
// the generator's model.
func (g *Generator) ClassifyInterruption(ctx context.Context, request interruptions.Request) (interruptions.Type, error) {
	ctx, span := tracer.Start(ctx, "classify interruption")
	defer span.End()

	messages := []message{{Role: messageRoleSystem, Content: classifierInstructions}}
	for _, turn := range request.History {
		if turn.Input != "" {
			messages = append(messages, message{Role: messageRoleUser, Content: turn.Input})
		}
		if turn.Response != "" && turn.Response != request.Speaking {
			messages = append(messages, message{Role: messageRoleAssistant, Content: turn.Response})
		}
	}
	messages = append(messages, message{
		Role:    messageRoleUser,
		Content: fmt.Sprintf("While you were saying %q I said: %s", request.Speaking, strings.TrimSpace(request.Input)),
	})

	out, err := promptJSONSchema[classification](ctx, g.client, structuredRequest{
		url:      g.url,
		apiKey:   g.apiKey,
		model:    g.model,
		messages: messages,
	})
	if err != nil {
		return "", err
	}

	interruptionType, err := interruptions.ParseType(out.Type)
	if err != nil {
		return "", recordError(span, err)
	}
	span.SetAttributes(attribute.String("interruption.type", string(interruptionType)))
	return interruptionType, nil
}
