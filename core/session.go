package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/comet-core/core/agent"
	"github.com/koscakluka/comet-core/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type turnRequest struct {
	ctx      context.Context
	input    agent.Input
	queuedAt time.Time
	result   chan turnResult
}

type turnResult struct {
	turn agent.Turn
	err  error
}

func newTurnRequest(ctx context.Context, input agent.Input) *turnRequest {
	return &turnRequest{
		ctx:      ctx,
		input:    input,
		queuedAt: time.Now(),
		result:   make(chan turnResult, 1),
	}
}

func (r *turnRequest) resolve(turn agent.Turn, err error) {
	select {
	case r.result <- turnResult{turn: turn, err: err}:
	default:
	}
}

// sessionRuntime owns the request queue of one session and the worker that
// drains it one turn at a time.
type sessionRuntime struct {
	session *agent.Session

	mu      sync.Mutex
	queue   []*turnRequest
	closed  bool
	signal  chan struct{}
	closeCh chan struct{}
	done    chan struct{}
}

func newSessionRuntime(session *agent.Session) *sessionRuntime {
	return &sessionRuntime{
		session: session,
		signal:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// enqueue adds req to the queue. When the queue is full the request is
// rejected or the oldest queued request is dropped, depending on policy. The
// dropped request, if any, is returned unresolved.
func (rt *sessionRuntime) enqueue(req *turnRequest, depth int, policy QueuePolicy) (dropped *turnRequest, err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil, ErrClosed
	}

	if len(rt.queue) >= depth {
		if policy != QueueDropOldest || len(rt.queue) == 0 {
			return nil, agent.ErrBusy
		}
		dropped = rt.queue[0]
		rt.queue[0] = nil
		rt.queue = rt.queue[1:]
	}

	rt.queue = append(rt.queue, req)
	select {
	case rt.signal <- struct{}{}:
	default:
	}
	return dropped, nil
}

func (rt *sessionRuntime) queued() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.queue)
}

// next blocks until a request is queued or the runtime is closed.
func (rt *sessionRuntime) next() (*turnRequest, bool) {
	for {
		rt.mu.Lock()
		if rt.closed {
			rt.mu.Unlock()
			return nil, false
		}
		if len(rt.queue) > 0 {
			req := rt.queue[0]
			rt.queue[0] = nil
			rt.queue = rt.queue[1:]
			rt.mu.Unlock()
			return req, true
		}
		rt.mu.Unlock()

		select {
		case <-rt.signal:
		case <-rt.closeCh:
		}
	}
}

// close stops accepting requests and returns the ones still queued.
func (rt *sessionRuntime) close() []*turnRequest {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return nil
	}
	rt.closed = true
	close(rt.closeCh)

	flushed := rt.queue
	rt.queue = nil
	return flushed
}

func (o *Orchestrator) runSession(rt *sessionRuntime) {
	defer o.workers.Done()
	defer close(rt.done)

	for {
		req, ok := rt.next()
		if !ok {
			return
		}
		o.processRequest(rt, req)
	}
}

func (o *Orchestrator) processRequest(rt *sessionRuntime, req *turnRequest) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("turn processing panicked: %v", r)
			logger.Error("recovered from panic", "session_id", rt.session.ID, "error", err)
			req.resolve(agent.Turn{}, err)
		}
	}()

	if req.ctx.Err() != nil {
		req.resolve(agent.Turn{}, context.Cause(req.ctx))
		return
	}

	turnCtx, cancel := context.WithTimeoutCause(req.ctx, o.turnTimeout, agent.ErrTimeout)
	defer cancel()

	ctx, span := tracer.Start(turnCtx, "handle request")
	defer span.End()

	queuedFor := time.Since(req.queuedAt)
	span.AddEvent("taken out of queue", trace.WithAttributes(attribute.Float64("request.queued_time", queuedFor.Seconds())))
	span.SetAttributes(
		attribute.String("session.id", rt.session.ID),
		attribute.Int("request.queued_behind", rt.queued()),
	)
	o.onEvent.Emit(events.NewTurnStarted(rt.session.ID, req.input.Text, queuedFor))

	turn, err := o.agent.ProcessVoiceInput(ctx, rt.session, req.input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		req.resolve(agent.Turn{}, err)
		return
	}

	o.stats.record(turn)
	o.onEvent.Emit(events.NewTurnFinished(rt.session.ID, turn.ID, turn.Status.String(), turn.Duration()))
	req.resolve(turn, nil)
}
