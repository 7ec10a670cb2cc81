package orchestration

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/comet-core/core/agent"
	"github.com/koscakluka/comet-core/core/capture"
	"github.com/koscakluka/comet-core/core/events"
	"github.com/koscakluka/comet-core/core/interruptions"
	"github.com/koscakluka/comet-core/core/memory"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator runs conversations for any number of sessions. Each session
// processes one turn at a time from a bounded queue while sessions run in
// parallel.
type Orchestrator struct {
	agent          *agent.Agent
	agentOptions   []agent.Option
	recognizer     agent.Recognizer
	capture        *capture.Module
	captureOptions []capture.Option
	memory         *memory.Store
	memoryOptions  []memory.Option

	queueDepth     int
	queuePolicy    QueuePolicy
	turnTimeout    time.Duration
	speakTimeout   time.Duration
	idleTimeout    time.Duration
	bargeInEnabled bool
	classifier     interruptions.Classifier
	onEvent        events.Handler

	baseContext context.Context
	baseCancel  context.CancelFunc

	mu        sync.RWMutex
	sessions  map[string]*sessionRuntime
	listening *listener
	closed    bool

	workers    sync.WaitGroup
	reaperOnce sync.Once
	closeOnce  sync.Once
	stats      statsRecorder
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		queueDepth:     DefaultQueueDepth,
		queuePolicy:    QueueReject,
		turnTimeout:    DefaultTurnTimeout,
		idleTimeout:    DefaultIdleTimeout,
		bargeInEnabled: true,
		sessions:       make(map[string]*sessionRuntime),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.memory == nil {
		o.memory = memory.NewStore(o.memoryOptions...)
	}
	o.agent = agent.New(append(o.agentOptions, agent.WithSpeakTimeout(cmp.Or(o.speakTimeout, o.turnTimeout)))...)
	o.capture = capture.NewModule(append(o.captureOptions, capture.WithEventHandler(o.onEvent))...)
	o.baseContext, o.baseCancel = context.WithCancel(context.Background())

	return o
}

// Memory returns the store shared by all sessions.
func (o *Orchestrator) Memory() *memory.Store { return o.memory }

// Capture returns the capture module feeding the recognition loop.
func (o *Orchestrator) Capture() *capture.Module { return o.capture }

// OpenSession starts a session for userID.
func (o *Orchestrator) OpenSession(userID string) (agent.SessionInfo, error) {
	session := agent.NewSession(userID, o.memory)
	rt := newSessionRuntime(session)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return agent.SessionInfo{}, ErrClosed
	}
	o.sessions[session.ID] = rt
	o.workers.Add(1)
	o.mu.Unlock()

	go o.runSession(rt)
	o.startReaper()

	logger.Info("session opened", "session_id", session.ID, "user_id", userID)
	o.onEvent.Emit(events.NewSessionOpened(session.ID, userID))
	return session.Info(), nil
}

// CloseSession interrupts the session, resolves its queued requests as
// interrupted turns and clears its session memory.
func (o *Orchestrator) CloseSession(ctx context.Context, sessionID string) error {
	o.mu.Lock()
	rt, ok := o.sessions[sessionID]
	if ok {
		delete(o.sessions, sessionID)
	}
	listening := o.listening
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	var errs error
	if listening != nil && listening.sessionID == sessionID {
		errs = errors.Join(errs, o.StopListening())
	}
	errs = errors.Join(errs, o.closeSession(ctx, rt, "closed"))
	return errs
}

func (o *Orchestrator) closeSession(ctx context.Context, rt *sessionRuntime, reason string) error {
	o.flush(rt, rt.close())
	rt.session.Interrupt()

	var errs error
	select {
	case <-rt.done:
	case <-ctx.Done():
		errs = errors.Join(errs, fmt.Errorf("failed to wait for session worker: %w", context.Cause(ctx)))
	}

	if err := rt.session.Close(ctx); err != nil {
		errs = errors.Join(errs, err)
	}

	logger.Info("session closed", "session_id", rt.session.ID, "reason", reason)
	o.onEvent.Emit(events.NewSessionClosed(rt.session.ID, reason))
	return errs
}

// flush resolves requests that never reached the agent as interrupted turns.
func (o *Orchestrator) flush(rt *sessionRuntime, flushed []*turnRequest) {
	for _, req := range flushed {
		turn := rt.session.RecordInterrupted(req.input.Text, req.queuedAt, agent.ErrInterrupted)
		o.stats.record(turn)
		req.resolve(turn, nil)
	}
}

// Session returns a snapshot of a session.
func (o *Orchestrator) Session(sessionID string) (agent.SessionInfo, error) {
	rt, err := o.runtime(sessionID)
	if err != nil {
		return agent.SessionInfo{}, err
	}
	return rt.session.Info(), nil
}

// Sessions returns snapshots of all open sessions ordered by creation time.
func (o *Orchestrator) Sessions() []agent.SessionInfo {
	o.mu.RLock()
	runtimes := slices.Collect(maps.Values(o.sessions))
	o.mu.RUnlock()

	infos := make([]agent.SessionInfo, 0, len(runtimes))
	for _, rt := range runtimes {
		infos = append(infos, rt.session.Info())
	}
	slices.SortFunc(infos, func(a, b agent.SessionInfo) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return infos
}

// History returns the turns of a session in insertion order.
func (o *Orchestrator) History(sessionID string) ([]agent.Turn, error) {
	rt, err := o.runtime(sessionID)
	if err != nil {
		return nil, err
	}
	return rt.session.History(), nil
}

func (o *Orchestrator) runtime(sessionID string) (*sessionRuntime, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return nil, ErrClosed
	}
	rt, ok := o.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return rt, nil
}

func (o *Orchestrator) runtimeForUser(userID string) (*sessionRuntime, error) {
	o.mu.RLock()
	var found *sessionRuntime
	for _, rt := range o.sessions {
		if rt.session.UserID == userID && (found == nil || rt.session.CreatedAt.After(found.session.CreatedAt)) {
			found = rt
		}
	}
	o.mu.RUnlock()

	if found != nil {
		return found, nil
	}
	info, err := o.OpenSession(userID)
	if err != nil {
		return nil, err
	}
	return o.runtime(info.ID)
}

// ProcessVoiceInput queues recognized text for a session and waits for the
// resulting turn.
//
// Blank text fails with [agent.ErrEmptyInput] without being queued. A full
// queue fails with [agent.ErrBusy] or drops the oldest queued request,
// depending on the queue policy. Turn failures are reported through the
// returned turn.
func (o *Orchestrator) ProcessVoiceInput(ctx context.Context, sessionID, text string) (agent.Turn, error) {
	if strings.TrimSpace(text) == "" {
		return agent.Turn{}, agent.ErrEmptyInput
	}

	rt, err := o.runtime(sessionID)
	if err != nil {
		return agent.Turn{}, err
	}
	return o.submit(ctx, rt, agent.Input{Text: text, Confidence: 1})
}

// ProcessUserInput is [Orchestrator.ProcessVoiceInput] for the most recent
// session of userID, opening one when the user has none.
func (o *Orchestrator) ProcessUserInput(ctx context.Context, userID, text string) (agent.Turn, error) {
	if strings.TrimSpace(text) == "" {
		return agent.Turn{}, agent.ErrEmptyInput
	}

	rt, err := o.runtimeForUser(userID)
	if err != nil {
		return agent.Turn{}, err
	}
	return o.submit(ctx, rt, agent.Input{Text: text, Confidence: 1})
}

func (o *Orchestrator) submit(ctx context.Context, rt *sessionRuntime, input agent.Input) (agent.Turn, error) {
	req := newTurnRequest(ctx, input)
	if err := o.enqueue(rt, req); err != nil {
		return agent.Turn{}, err
	}

	select {
	case result := <-req.result:
		return result.turn, result.err
	case <-ctx.Done():
		return agent.Turn{}, context.Cause(ctx)
	}
}

func (o *Orchestrator) enqueue(rt *sessionRuntime, req *turnRequest) error {
	dropped, err := rt.enqueue(req, o.queueDepth, o.queuePolicy)
	if err != nil {
		if errors.Is(err, agent.ErrBusy) {
			o.stats.reject()
		}
		return err
	}

	if dropped != nil {
		o.stats.drop()
		queueDroppedCounter.Add(req.ctx, 1)
		logger.WarnContext(req.ctx, "dropped queued request", "session_id", rt.session.ID)
		o.onEvent.Emit(events.NewRequestDropped(rt.session.ID, dropped.input.Text))
		dropped.resolve(agent.Turn{}, ErrDropped)
	}

	if o.bargeInEnabled {
		o.bargeIn(rt, req.input.Text)
	}
	return nil
}

// Interrupt cancels the pending turn of a session. Queued requests are kept.
func (o *Orchestrator) Interrupt(sessionID string) (bool, error) {
	rt, err := o.runtime(sessionID)
	if err != nil {
		return false, err
	}
	return rt.session.Interrupt(), nil
}

// StopSpeaking interrupts the pending turn of a session only while its
// response is being spoken, such as when the user starts talking over it.
func (o *Orchestrator) StopSpeaking(sessionID string) (bool, error) {
	rt, err := o.runtime(sessionID)
	if err != nil {
		return false, err
	}
	return rt.session.StopSpeaking(), nil
}

// Shutdown stops capture, interrupts every session, resolves queued requests
// as interrupted turns, waits for session workers and clears session memory.
// Only the first call does any work.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var errs error
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		runtimes := slices.Collect(maps.Values(o.sessions))
		o.sessions = make(map[string]*sessionRuntime)
		listening := o.listening
		o.listening = nil
		o.mu.Unlock()

		if listening != nil {
			errs = errors.Join(errs, o.capture.StopListening())
			listening.cancel()
			select {
			case <-listening.done:
			case <-ctx.Done():
				errs = errors.Join(errs, fmt.Errorf("failed to wait for listener: %w", context.Cause(ctx)))
			}
		}
		if err := o.capture.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close capture: %w", err))
		}

		for _, rt := range runtimes {
			o.flush(rt, rt.close())
			rt.session.Interrupt()
		}

		workersDone := make(chan struct{})
		go func() {
			o.workers.Wait()
			close(workersDone)
		}()
		select {
		case <-workersDone:
		case <-ctx.Done():
			errs = errors.Join(errs, fmt.Errorf("failed to wait for session workers: %w", context.Cause(ctx)))
		}

		for _, rt := range runtimes {
			if err := rt.session.Close(ctx); err != nil {
				errs = errors.Join(errs, err)
			}
			o.onEvent.Emit(events.NewSessionClosed(rt.session.ID, "shutdown"))
		}
		o.baseCancel()

		if errs != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(errs)
			span.SetStatus(codes.Error, errs.Error())
		}
		logger.InfoContext(ctx, "orchestrator shut down", "sessions", len(runtimes))
	})
	return errs
}
