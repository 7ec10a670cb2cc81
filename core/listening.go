package orchestration

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/koscakluka/comet-core/core/agent"
	"github.com/koscakluka/comet-core/core/audio"
	"github.com/koscakluka/comet-core/core/capture"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const recognitionRetryDelay = 100 * time.Millisecond

type listener struct {
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
}

// StartListening starts capture and feeds every recognized utterance into the
// queue of sessionID until [Orchestrator.StopListening] is called or ctx
// ends. Only one session can listen at a time.
func (o *Orchestrator) StartListening(ctx context.Context, sessionID string) error {
	if o.recognizer == nil {
		return ErrNoRecognizer
	}
	rt, err := o.runtime(sessionID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.listening != nil {
		return capture.ErrAlreadyListening
	}

	listenCtx, cancel := context.WithCancel(ctx)
	if err := o.capture.StartListening(listenCtx); err != nil {
		cancel()
		return err
	}

	l := &listener{sessionID: sessionID, cancel: cancel, done: make(chan struct{})}
	o.listening = l
	go o.listen(listenCtx, rt, l)

	logger.InfoContext(ctx, "listening started", "session_id", sessionID)
	return nil
}

// StopListening stops capture and waits for the utterance in progress to be
// recognized. Calling it while not listening is a no-op.
func (o *Orchestrator) StopListening() error {
	o.mu.Lock()
	l := o.listening
	o.listening = nil
	o.mu.Unlock()

	if l == nil {
		return nil
	}

	err := o.capture.StopListening()
	select {
	case <-l.done:
	case <-time.After(o.turnTimeout):
		logger.Warn("recognition did not finish after capture stopped", "session_id", l.sessionID)
	}
	l.cancel()
	select {
	case <-l.done:
	case <-time.After(o.turnTimeout):
		err = errors.Join(err, fmt.Errorf("failed to wait for listener of session %s", l.sessionID))
	}

	logger.Info("listening stopped", "session_id", l.sessionID)
	return err
}

func (o *Orchestrator) IsListening() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.listening != nil
}

func (o *Orchestrator) listen(ctx context.Context, rt *sessionRuntime, l *listener) {
	defer close(l.done)
	defer o.releaseListener(l)

	for {
		// Ending the utterance context releases a recognizer still ranging
		// over frames after it has returned.
		utteranceCtx, cancel := context.WithCancel(ctx)
		recognition, err := o.recognize(utteranceCtx, rt, o.capture.Frames(utteranceCtx))
		cancel()
		if ctx.Err() != nil {
			return
		}

		switch {
		case err != nil:
			o.submitRecognized(rt, agent.Input{Err: err})
			select {
			case <-ctx.Done():
				return
			case <-time.After(recognitionRetryDelay):
			}
		case strings.TrimSpace(recognition.Text) != "":
			o.submitRecognized(rt, agent.Input{Text: recognition.Text, Confidence: recognition.Confidence})
		}

		if !o.capture.IsListening() && o.capture.Stats().Buffered == 0 {
			return
		}
	}
}

type recognitionResult struct {
	recognition agent.Recognition
	err         error
}

// recognize waits for the recognizer or for ctx to end, whichever is first. A
// recognizer ignoring cancellation is left to finish on its own.
func (o *Orchestrator) recognize(ctx context.Context, rt *sessionRuntime, frames iter.Seq[audio.Frame]) (agent.Recognition, error) {
	ctx, span := tracer.Start(ctx, "recognize utterance")
	defer span.End()

	results := make(chan recognitionResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- recognitionResult{err: fmt.Errorf("recognizer panicked: %v", r)}
			}
		}()
		recognition, err := o.recognizer.Recognize(ctx, frames)
		results <- recognitionResult{recognition: recognition, err: err}
	}()

	var recognition agent.Recognition
	var err error
	select {
	case result := <-results:
		recognition, err = result.recognition, result.err
	case <-ctx.Done():
		return agent.Recognition{}, context.Cause(ctx)
	}
	if err != nil && ctx.Err() == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "failed to recognize utterance", "session_id", rt.session.ID, "error", err)
		return agent.Recognition{}, err
	}

	span.SetAttributes(
		attribute.Float64("recognition.confidence", recognition.Confidence),
		attribute.Int("recognition.length", len(recognition.Text)),
	)
	return recognition, err
}

// submitRecognized queues recognized input without waiting for the turn.
func (o *Orchestrator) submitRecognized(rt *sessionRuntime, input agent.Input) {
	if err := o.enqueue(rt, newTurnRequest(o.baseContext, input)); err != nil {
		msg := "failed to queue recognized input"
		if errors.Is(err, agent.ErrBusy) {
			msg = "session busy, discarding recognized input"
		}
		logger.Warn(msg, "session_id", rt.session.ID, "error", err)
	}
}

func (o *Orchestrator) releaseListener(l *listener) {
	o.mu.Lock()
	owned := o.listening == l
	if owned {
		o.listening = nil
	}
	o.mu.Unlock()

	if owned {
		if err := o.capture.StopListening(); err != nil {
			logger.Warn("failed to stop capture", "session_id", l.sessionID, "error", err)
		}
	}
}
