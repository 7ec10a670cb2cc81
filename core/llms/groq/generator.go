package groq

import (
	"context"
	"net/http"
	"strings"

	"github.com/koscakluka/comet-core/core/agent"
	"github.com/koscakluka/comet-core/core/memory"
	"github.com/koscakluka/comet-core/internal/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel   = "llama-3.3-70b-versatile"

	DefaultInstructions = `You are a friendly voice assistant. Your replies are spoken aloud, so keep them short, conversational and free of markdown.
Rate how confident you are that you understood the user and answered correctly as a number between 0 and 1.
When the user shares something worth remembering, such as their name or a preference, add it to remember. Mark it persistent when it should be kept beyond this conversation.`
)

// Generator produces replies with a Groq hosted model using structured
// output, so the reply, its confidence and any facts to remember arrive
// together.
type Generator struct {
	apiKey       string
	url          string
	model        string
	instructions string
	temperature  *float64
	client       *http.Client
}

type Option func(*Generator)

func WithBaseURL(url string) Option {
	return func(g *Generator) { g.url = url }
}

func WithModel(model string) Option {
	return func(g *Generator) { g.model = model }
}

func WithInstructions(instructions string) Option {
	return func(g *Generator) { g.instructions = instructions }
}

func WithTemperature(temperature float64) Option {
	return func(g *Generator) { g.temperature = utils.Ptr(utils.Clamp(temperature, 0, 2)) }
}

func WithHTTPClient(client *http.Client) Option {
	return func(g *Generator) { g.client = client }
}

func NewGenerator(apiKey string, opts ...Option) *Generator {
	g := &Generator{
		apiKey:       apiKey,
		url:          DefaultBaseURL,
		model:        DefaultModel,
		instructions: DefaultInstructions,
		client:       &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type reply struct {
	Reply      string  `json:"reply" jsonschema:"description=What to say to the user"`
	Confidence float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	Remember   []fact  `json:"remember"`
}

type fact struct {
	Key        string `json:"key" jsonschema:"description=Short camelCase name of the fact"`
	Value      string `json:"value"`
	Persistent bool   `json:"persistent"`
}

func (g *Generator) Generate(ctx context.Context, c agent.Context) (agent.Response, error) {
	ctx, span := tracer.Start(ctx, "generate reply")
	defer span.End()

	span.SetAttributes(
		attribute.String("session.id", c.SessionID),
		attribute.Int("request.history", len(c.History)),
	)

	out, err := promptJSONSchema[reply](ctx, g.client, structuredRequest{
		url:         g.url,
		apiKey:      g.apiKey,
		model:       g.model,
		temperature: g.temperature,
		messages:    toMessages(g.instructions, c),
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to generate reply", "session_id", c.SessionID, "error", err)
		return agent.Response{}, err
	}

	response := agent.Response{Text: strings.TrimSpace(out.Reply), Confidence: out.Confidence}
	for _, f := range out.Remember {
		key := strings.TrimSpace(f.Key)
		if key == "" {
			continue
		}
		scope := memory.ScopeSession
		if f.Persistent {
			scope = memory.ScopePersistent
		}
		response.Memory = append(response.Memory, agent.MemoryUpdate{Key: key, Value: f.Value, Scope: scope})
	}

	span.SetAttributes(
		attribute.Float64("response.confidence", response.Confidence),
		attribute.Int("response.memory_updates", len(response.Memory)),
	)
	return response, nil
}
