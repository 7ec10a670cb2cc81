package orchestration

import (
	"time"

	"github.com/koscakluka/comet-core/core/agent"
	"github.com/koscakluka/comet-core/core/capture"
	"github.com/koscakluka/comet-core/core/config"
	"github.com/koscakluka/comet-core/core/events"
	"github.com/koscakluka/comet-core/core/interruptions"
	"github.com/koscakluka/comet-core/core/memory"
)

type OrchestratorOption func(*Orchestrator)

// QueuePolicy decides what happens to new input when a session queue is full.
type QueuePolicy int

const (
	// QueueReject refuses new input with [agent.ErrBusy].
	QueueReject QueuePolicy = iota
	// QueueDropOldest resolves the oldest queued request with [ErrDropped]
	// and queues the new one.
	QueueDropOldest
)

func (p QueuePolicy) String() string {
	if p == QueueDropOldest {
		return config.QueuePolicyDropOldest
	}
	return config.QueuePolicyReject
}

const (
	DefaultQueueDepth  = 3
	DefaultTurnTimeout = 5 * time.Second
	DefaultIdleTimeout = 10 * time.Minute
)

func WithGenerator(generator agent.Generator) OrchestratorOption {
	return func(o *Orchestrator) { o.agentOptions = append(o.agentOptions, agent.WithGenerator(generator)) }
}

func WithSynthesizer(synthesizer agent.Synthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.agentOptions = append(o.agentOptions, agent.WithSynthesizer(synthesizer)) }
}

func WithRecognizer(recognizer agent.Recognizer) OrchestratorOption {
	return func(o *Orchestrator) { o.recognizer = recognizer }
}

func WithHistoryWindow(turns int) OrchestratorOption {
	return func(o *Orchestrator) { o.agentOptions = append(o.agentOptions, agent.WithHistoryWindow(turns)) }
}

func WithConfidenceThreshold(threshold float64) OrchestratorOption {
	return func(o *Orchestrator) {
		o.agentOptions = append(o.agentOptions, agent.WithConfidenceThreshold(threshold))
	}
}

func WithClarificationResponse(text string) OrchestratorOption {
	return func(o *Orchestrator) { o.agentOptions = append(o.agentOptions, agent.WithClarificationResponse(text)) }
}

func WithFallbackResponse(text string) OrchestratorOption {
	return func(o *Orchestrator) { o.agentOptions = append(o.agentOptions, agent.WithFallbackResponse(text)) }
}

func WithVoiceProfile(voice agent.VoiceProfile) OrchestratorOption {
	return func(o *Orchestrator) { o.agentOptions = append(o.agentOptions, agent.WithVoiceProfile(voice)) }
}

// WithMemoryStore shares store between sessions. Every session gets its own
// session scope on top of it.
func WithMemoryStore(store *memory.Store) OrchestratorOption {
	return func(o *Orchestrator) { o.memory = store }
}

// WithDurableStore backs persistent memory of the default store with d. It
// has no effect together with [WithMemoryStore].
func WithDurableStore(d memory.DurableStore) OrchestratorOption {
	return func(o *Orchestrator) { o.memoryOptions = append(o.memoryOptions, memory.WithDurableStore(d)) }
}

func WithCaptureSource(source capture.Source) OrchestratorOption {
	return func(o *Orchestrator) { o.captureOptions = append(o.captureOptions, capture.WithSource(source)) }
}

func WithCaptureBufferSize(frames int) OrchestratorOption {
	return func(o *Orchestrator) { o.captureOptions = append(o.captureOptions, capture.WithBufferSize(frames)) }
}

// WithQueueDepth sets how many requests may wait per session while a turn is
// processed. It is at least 1.
func WithQueueDepth(depth int) OrchestratorOption {
	return func(o *Orchestrator) { o.queueDepth = max(1, depth) }
}

func WithQueuePolicy(policy QueuePolicy) OrchestratorOption {
	return func(o *Orchestrator) { o.queuePolicy = policy }
}

// WithTurnTimeout bounds recognition and response generation of each turn.
// Non-positive values are ignored.
func WithTurnTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.turnTimeout = timeout
		}
	}
}

// WithSpeakTimeout bounds how long a single response may be spoken. A turn
// still speaking when it ends is failed with [agent.ErrTimeout]. It defaults
// to the turn timeout. Non-positive values are ignored.
func WithSpeakTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.speakTimeout = timeout
		}
	}
}

// WithIdleTimeout closes sessions without activity for longer than timeout.
// Zero disables closing idle sessions.
func WithIdleTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.idleTimeout = max(0, timeout) }
}

// WithBargeIn controls whether new input stops a response that is being
// spoken. It is enabled by default.
func WithBargeIn(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) { o.bargeInEnabled = enabled }
}

// WithInterruptionClassifier lets classifier decide whether input stops the
// response being spoken. Without one any input stops it.
func WithInterruptionClassifier(classifier interruptions.Classifier) OrchestratorOption {
	return func(o *Orchestrator) { o.classifier = classifier }
}

func WithEventHandler(handler events.Handler) OrchestratorOption {
	return func(o *Orchestrator) { o.onEvent = handler }
}

// WithConfig applies the orchestrator, capture and voice sections of cfg.
// Collaborators are not created from it. A nil config is a no-op.
func WithConfig(cfg *config.Config) OrchestratorOption {
	return func(o *Orchestrator) {
		if cfg == nil {
			return
		}

		c := cfg.Orchestrator
		policy := QueueReject
		if c.QueuePolicy == config.QueuePolicyDropOldest {
			policy = QueueDropOldest
		}
		opts := []OrchestratorOption{
			WithQueueDepth(c.QueueDepth),
			WithQueuePolicy(policy),
			WithTurnTimeout(c.TurnTimeout),
			WithSpeakTimeout(c.SpeakTimeout),
			WithIdleTimeout(c.IdleTimeout),
			WithBargeIn(c.BargeIn),
			WithHistoryWindow(c.HistoryWindow),
			WithConfidenceThreshold(c.ConfidenceThreshold),
			WithCaptureBufferSize(cfg.Capture.BufferSize),
			WithVoiceProfile(agent.VoiceProfile{
				Voice:    cfg.Voice.Voice,
				Language: cfg.Voice.Language,
				Accent:   cfg.Voice.Accent,
			}),
		}
		if c.ClarificationResponse != "" {
			opts = append(opts, WithClarificationResponse(c.ClarificationResponse))
		}
		if c.FallbackResponse != "" {
			opts = append(opts, WithFallbackResponse(c.FallbackResponse))
		}

		for _, opt := range opts {
			opt(o)
		}
	}
}
