// Package agent implements per-session turn taking: it turns recognized
// input into a response using memory and recent history, then hands the
// response to a synthesizer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/koscakluka/comet-core/core/memory"
	"github.com/koscakluka/comet-core/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultHistoryWindow       = 5
	DefaultConfidenceThreshold = 0.5
	DefaultSpeakTimeout        = 30 * time.Second

	DefaultClarificationResponse = "Sorry, I didn't quite catch that. Could you say it again?"
	DefaultFallbackResponse      = "Sorry, something went wrong on my side. Please try again."
)

type Agent struct {
	generator   Generator
	synthesizer Synthesizer

	historyWindow       int
	confidenceThreshold float64
	clarification       string
	fallback            string
	voice               VoiceProfile
	speakTimeout        time.Duration
}

type Option func(*Agent)

func WithGenerator(generator Generator) Option {
	return func(a *Agent) { a.generator = generator }
}

func WithSynthesizer(synthesizer Synthesizer) Option {
	return func(a *Agent) { a.synthesizer = synthesizer }
}

// WithHistoryWindow sets how many previous turns are given to the generator.
func WithHistoryWindow(turns int) Option {
	return func(a *Agent) { a.historyWindow = max(0, turns) }
}

// WithConfidenceThreshold sets the confidence below which the agent asks the
// user to repeat instead of answering.
func WithConfidenceThreshold(threshold float64) Option {
	return func(a *Agent) { a.confidenceThreshold = utils.Clamp(threshold, 0, 1) }
}

func WithClarificationResponse(text string) Option {
	return func(a *Agent) { a.clarification = text }
}

func WithFallbackResponse(text string) Option {
	return func(a *Agent) { a.fallback = text }
}

func WithVoiceProfile(voice VoiceProfile) Option {
	return func(a *Agent) { a.voice = voice }
}

// WithSpeakTimeout bounds how long a response may be spoken. Non-positive
// values are ignored.
func WithSpeakTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout > 0 {
			a.speakTimeout = timeout
		}
	}
}

func New(opts ...Option) *Agent {
	a := &Agent{
		historyWindow:       DefaultHistoryWindow,
		confidenceThreshold: DefaultConfidenceThreshold,
		clarification:       DefaultClarificationResponse,
		fallback:            DefaultFallbackResponse,
		speakTimeout:        DefaultSpeakTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) VoiceProfile() VoiceProfile { return a.voice }

// ProcessVoiceInput runs one turn for sess and blocks until it is finished,
// including speaking the response.
//
// Only ErrEmptyInput, ErrBusy and ErrSessionClosed are returned as errors.
// Any other outcome is reported through the returned turn: a failed turn
// carries the fallback response and an interrupted turn has no response
// unless it was interrupted while being spoken.
func (a *Agent) ProcessVoiceInput(ctx context.Context, sess *Session, in Input) (Turn, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Err == nil {
		return Turn{}, ErrEmptyInput
	}

	turnCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	turn, err := sess.begin(text, utils.Clamp(in.Confidence, 0, 1), cancel)
	if err != nil {
		return Turn{}, err
	}

	ctx, span := tracer.Start(turnCtx, "process turn", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("turn.id", turn.ID),
		attribute.Float64("turn.recognized_confidence", turn.RecognizedConfidence),
	))
	defer span.End()

	turn = a.processTurn(ctx, sess, turn, in.Err)

	span.SetAttributes(
		attribute.String("turn.status", turn.Status.String()),
		attribute.Float64("turn.confidence", turn.Confidence),
	)
	if turn.Status == TurnFailed && turn.Err != nil {
		span.RecordError(turn.Err)
		span.SetStatus(codes.Error, turn.Err.Error())
	}
	logger.InfoContext(ctx, "turn finished",
		"session_id", sess.ID,
		"turn_id", turn.ID,
		"status", turn.Status.String(),
		"code", Code(turn.Err),
		"duration", turn.Duration(),
	)
	return turn, nil
}

func (a *Agent) processTurn(ctx context.Context, sess *Session, turn Turn, recognitionErr error) Turn {
	if recognitionErr != nil {
		return a.deliver(ctx, sess, turn.ID, a.fallback, 0, TurnFailed, fmt.Errorf("%w: %w", ErrRecognition, recognitionErr))
	}
	if turn.RecognizedConfidence < a.confidenceThreshold {
		return a.deliver(ctx, sess, turn.ID, a.clarification, turn.RecognizedConfidence, TurnCompleted, nil)
	}

	if !sess.transition(turn.ID, StateProcessing, nil) {
		return sess.finish(turn.ID, nil)
	}

	response, err := a.generate(ctx, sess, turn)
	switch {
	case err == nil:
	case errors.Is(err, ErrGeneration):
		return a.deliver(ctx, sess, turn.ID, a.fallback, 0, TurnFailed, err)
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return a.deliver(ctx, sess, turn.ID, a.fallback, 0, TurnFailed, ErrTimeout)
	case errors.Is(err, ErrInterrupted), errors.Is(err, ErrSessionClosed):
		return sess.finish(turn.ID, nil)
	default:
		return sess.finish(turn.ID, func(t *Turn) {
			t.Status = TurnInterrupted
			t.Err = fmt.Errorf("%w: %w", ErrInterrupted, err)
		})
	}

	text := strings.TrimSpace(response.Text)
	if text == "" {
		err := fmt.Errorf("%w: generator returned an empty response", ErrGeneration)
		return a.deliver(ctx, sess, turn.ID, a.fallback, 0, TurnFailed, err)
	}

	confidence := utils.Clamp(min(turn.RecognizedConfidence, response.Confidence), 0, 1)
	if confidence < a.confidenceThreshold {
		return a.deliver(ctx, sess, turn.ID, a.clarification, confidence, TurnCompleted, nil)
	}

	if sess.isPending(turn.ID) {
		a.remember(ctx, sess, response.Memory)
	}
	return a.deliver(ctx, sess, turn.ID, text, confidence, TurnCompleted, nil)
}

type generation struct {
	response Response
	err      error
}

// generate waits for the generator or for ctx to end, whichever is first. A
// generator ignoring cancellation is left to finish on its own.
func (a *Agent) generate(ctx context.Context, sess *Session, turn Turn) (Response, error) {
	ctx, span := tracer.Start(ctx, "generate response")
	defer span.End()

	if a.generator == nil {
		return Response{}, fmt.Errorf("%w: no generator configured", ErrGeneration)
	}

	c := Context{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Input:           turn.Input,
		InputConfidence: turn.RecognizedConfidence,
		Memory:          sess.memory.Snapshot(memory.ScopeSession),
		Persistent:      sess.memory.Snapshot(memory.ScopePersistent),
		History:         sess.recent(a.historyWindow),
	}
	span.SetAttributes(
		attribute.Int("generation.history", len(c.History)),
		attribute.Int("generation.memory_entries", len(c.Memory)),
	)

	results := make(chan generation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- generation{err: fmt.Errorf("generator panicked: %v", r)}
			}
		}()
		response, err := a.generator.Generate(ctx, c)
		results <- generation{response: response, err: err}
	}()

	select {
	case result := <-results:
		if result.err == nil {
			return result.response, nil
		}
		if ctx.Err() != nil {
			return Response{}, context.Cause(ctx)
		}
		err := fmt.Errorf("%w: %w", ErrGeneration, result.err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	case <-ctx.Done():
		return Response{}, context.Cause(ctx)
	}
}

func (a *Agent) remember(ctx context.Context, sess *Session, updates []MemoryUpdate) {
	for _, update := range updates {
		if update.Key == "" {
			continue
		}
		if err := sess.memory.Set(ctx, update.Key, update.Value, update.Scope); err != nil {
			logger.WarnContext(ctx, "failed to store memory update",
				"session_id", sess.ID,
				"key", update.Key,
				"scope", update.Scope.String(),
				"error", err,
			)
		}
	}
}

// deliver records the response, speaks it and finishes the turn. Speaking is
// bound by the speak timeout instead of the turn deadline, and stops when the
// caller gives up or the turn is interrupted. A response still being spoken
// when the speak timeout ends fails the turn with ErrTimeout.
func (a *Agent) deliver(ctx context.Context, sess *Session, turnID, text string, confidence float64, status TurnStatus, cause error) Turn {
	recorded := sess.update(turnID, func(t *Turn) {
		t.Response = text
		t.Confidence = confidence
	})
	if !recorded {
		return sess.finish(turnID, nil)
	}

	if a.synthesizer != nil {
		speakCtx, speakCancel := context.WithCancelCause(context.WithoutCancel(ctx))
		defer speakCancel(nil)
		stop := context.AfterFunc(ctx, func() {
			if parentCause := context.Cause(ctx); !errors.Is(parentCause, ErrTimeout) {
				speakCancel(parentCause)
			}
		})
		defer stop()
		if a.speakTimeout > 0 {
			var cancelTimeout context.CancelFunc
			speakCtx, cancelTimeout = context.WithTimeoutCause(speakCtx, a.speakTimeout, ErrTimeout)
			defer cancelTimeout()
		}

		if sess.transition(turnID, StateSpeaking, speakCancel) {
			switch err := a.speak(speakCtx, sess, text); {
			case err == nil, errors.Is(err, ErrInterrupted), errors.Is(err, ErrSessionClosed):
			case errors.Is(err, ErrTimeout):
				logger.WarnContext(ctx, "response still being spoken at speak deadline", "session_id", sess.ID, "turn_id", turnID)
				status = TurnFailed
				if cause == nil {
					cause = fmt.Errorf("%w: response still being spoken", ErrTimeout)
				}
			default:
				status = TurnInterrupted
				cause = fmt.Errorf("%w: %w", ErrInterrupted, err)
			}
		}
	}

	return sess.finish(turnID, func(t *Turn) {
		t.Status = status
		t.Err = cause
	})
}

// speak waits for the synthesizer or for ctx to end, whichever is first, and
// returns the cause when ctx ended. Synthesis failures are only logged. A
// synthesizer ignoring cancellation is left to finish on its own.
func (a *Agent) speak(ctx context.Context, sess *Session, text string) error {
	ctx, span := tracer.Start(ctx, "speak response")
	defer span.End()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("synthesizer panicked: %v", r)
			}
		}()
		done <- a.synthesizer.Speak(ctx, text, a.voice)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSynthesis, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "failed to speak response", "session_id", sess.ID, "error", err)
	}
	return nil
}

func recordTurn(ctx context.Context, turn Turn) {
	attrs := metric.WithAttributes(attribute.String("status", turn.Status.String()))
	turnCounter.Add(ctx, 1, attrs)
	turnDuration.Record(ctx, turn.Duration().Seconds(), attrs)
}
