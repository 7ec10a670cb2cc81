package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/comet-core/core/agent"
	"github.com/koscakluka/comet-core/core/events"
	"github.com/koscakluka/comet-core/core/memory"
	"pgregory.net/rapid"
)

func TestProcessVoiceInputCompletesTurn(t *testing.T) {
	o := NewOrchestrator(WithGenerator(respondWith(func(c agent.Context) agent.Response {
		return agent.Response{Text: "You said: " + c.Input, Confidence: 0.9}
	})))
	defer o.Shutdown(context.Background())

	info, err := o.OpenSession("user")
	if err != nil {
		t.Fatalf("expected session to open, got %v", err)
	}

	turn, err := o.ProcessVoiceInput(context.Background(), info.ID, "hello")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if turn.Status != agent.TurnCompleted || turn.Response != "You said: hello" {
		t.Fatalf("expected completed turn with response, got %s %q", turn.Status, turn.Response)
	}

	history, err := o.History(info.ID)
	if err != nil {
		t.Fatalf("expected history, got %v", err)
	}
	if len(history) != 1 || history[0].ID != turn.ID {
		t.Fatalf("expected turn in history, got %+v", history)
	}

	session, err := o.Session(info.ID)
	if err != nil {
		t.Fatalf("expected session snapshot, got %v", err)
	}
	if session.TurnCount != 1 || session.State != agent.StateIdle || !session.Active {
		t.Fatalf("expected active idle session with one turn, got %+v", session)
	}
}

func TestProcessVoiceInputValidatesInput(t *testing.T) {
	o := NewOrchestrator()
	defer o.Shutdown(context.Background())
	info, _ := o.OpenSession("user")

	if _, err := o.ProcessVoiceInput(context.Background(), info.ID, "  "); !errors.Is(err, agent.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := o.ProcessVoiceInput(context.Background(), "missing", "hello"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if history, _ := o.History(info.ID); len(history) != 0 {
		t.Fatalf("expected rejected input not to create turns, got %d", len(history))
	}
}

func TestProcessUserInputOpensSessionOnFirstInteraction(t *testing.T) {
	o := NewOrchestrator(WithGenerator(respondWith(func(agent.Context) agent.Response {
		return agent.Response{Text: "hi", Confidence: 1}
	})))
	defer o.Shutdown(context.Background())

	if _, err := o.ProcessUserInput(context.Background(), "alice", "hello"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := o.ProcessUserInput(context.Background(), "alice", "again"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	sessions := o.Sessions()
	if len(sessions) != 1 || sessions[0].UserID != "alice" || sessions[0].TurnCount != 2 {
		t.Fatalf("expected one session for alice with two turns, got %+v", sessions)
	}
}

func TestFullQueueRejectsNewInput(t *testing.T) {
	generator := newBlockingGenerator()
	o := NewOrchestrator(WithGenerator(generator), WithQueueDepth(3))
	defer o.Shutdown(context.Background())
	info, _ := o.OpenSession("user")

	results := make(chan submitted, 4)
	go submit(o, info.ID, "processing", results)
	<-generator.started

	for _, text := range []string{"one", "two", "three"} {
		go submit(o, info.ID, text, results)
	}
	waitForCondition(t, time.Second, "three queued requests", func() bool { return queuedRequests(o, info.ID) == 3 })

	if _, err := o.ProcessVoiceInput(context.Background(), info.ID, "four"); !errors.Is(err, agent.ErrBusy) {
		t.Fatalf("expected fourth request to be rejected with ErrBusy, got %v", err)
	}

	close(generator.release)
	for range 4 {
		result := <-results
		if result.err != nil || result.turn.Status != agent.TurnCompleted {
			t.Fatalf("expected %q to complete, got %s %v", result.text, result.turn.Status, result.err)
		}
	}
	if rejected := o.Stats().Rejected; rejected != 1 {
		t.Fatalf("expected 1 rejected request, got %d", rejected)
	}
}

func TestFullQueueDropsOldestRequest(t *testing.T) {
	generator := newBlockingGenerator()
	recorder := &eventRecorder{}
	o := NewOrchestrator(
		WithGenerator(generator),
		WithQueueDepth(3),
		WithQueuePolicy(QueueDropOldest),
		WithEventHandler(recorder.handle),
	)
	defer o.Shutdown(context.Background())
	info, _ := o.OpenSession("user")

	results := make(chan submitted, 5)
	go submit(o, info.ID, "processing", results)
	<-generator.started

	for i, text := range []string{"one", "two", "three"} {
		go submit(o, info.ID, text, results)
		waitForCondition(t, time.Second, "request "+text+" queued", func() bool { return queuedRequests(o, info.ID) == i+1 })
	}

	go submit(o, info.ID, "four", results)

	var dropped submitted
	select {
	case dropped = <-results:
	case <-time.After(time.Second):
		t.Fatalf("expected oldest queued request to be dropped")
	}
	if !errors.Is(dropped.err, ErrDropped) {
		t.Fatalf("expected ErrDropped, got %q %v", dropped.text, dropped.err)
	}

	close(generator.release)
	for range 4 {
		if result := <-results; result.err != nil {
			t.Fatalf("expected %q to complete, got %v", result.text, result.err)
		}
	}

	if got := recorder.count(events.KindRequestDropped); got != 1 {
		t.Fatalf("expected 1 request dropped event, got %d", got)
	}
	if stats := o.Stats(); stats.Dropped != 1 || stats.TotalTurns != 4 {
		t.Fatalf("expected 1 dropped request and 4 turns, got %+v", stats)
	}
}

func TestInterruptCancelsPendingTurn(t *testing.T) {
	generator := newBlockingGenerator()
	o := NewOrchestrator(WithGenerator(generator))
	defer o.Shutdown(context.Background())
	info, _ := o.OpenSession("user")

	results := make(chan submitted, 1)
	go submit(o, info.ID, "long question", results)
	<-generator.started

	interrupted, err := o.Interrupt(info.ID)
	if err != nil || !interrupted {
		t.Fatalf("expected pending turn to be interrupted, got %t %v", interrupted, err)
	}

	select {
	case result := <-results:
		if result.turn.Status != agent.TurnInterrupted {
			t.Fatalf("expected interrupted turn, got %s", result.turn.Status)
		}
	case <-time.After(DefaultTurnTimeout):
		t.Fatalf("expected interrupted turn within the turn deadline")
	}

	if session, _ := o.Session(info.ID); session.State != agent.StateIdle {
		t.Fatalf("expected idle session, got %s", session.State)
	}
}

func TestTurnTimeoutFailsTurn(t *testing.T) {
	generator := newBlockingGenerator()
	generator.ignoreCancellation = true
	o := NewOrchestrator(WithGenerator(generator), WithTurnTimeout(50*time.Millisecond))
	defer o.Shutdown(context.Background())
	defer close(generator.release)
	info, _ := o.OpenSession("user")

	turn, err := o.ProcessVoiceInput(context.Background(), info.ID, "slow")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if turn.Status != agent.TurnFailed || !errors.Is(turn.Err, agent.ErrTimeout) {
		t.Fatalf("expected failed turn with ErrTimeout, got %s %v", turn.Status, turn.Err)
	}
	if turn.Response != agent.DefaultFallbackResponse {
		t.Fatalf("expected fallback response, got %q", turn.Response)
	}
}

func TestSessionMemoryCarriesAcrossTurns(t *testing.T) {
	generator := respondWith(func(c agent.Context) agent.Response {
		if name, ok := strings.CutPrefix(c.Input, "my name is "); ok {
			return agent.Response{
				Text:       "Hi " + name,
				Confidence: 1,
				Memory: []agent.MemoryUpdate{
					{Key: "userName", Value: name, Scope: memory.ScopeSession},
					{Key: "knownUser", Value: true, Scope: memory.ScopePersistent},
				},
			}
		}
		name, _ := c.Memory["userName"].(string)
		return agent.Response{Text: "name=" + name, Confidence: 1}
	})
	o := NewOrchestrator(WithGenerator(generator))
	defer o.Shutdown(context.Background())
	first, _ := o.OpenSession("alice")
	second, _ := o.OpenSession("bob")

	if _, err := o.ProcessVoiceInput(context.Background(), first.ID, "my name is Alice"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	turn, _ := o.ProcessVoiceInput(context.Background(), first.ID, "who am I?")
	if turn.Response != "name=Alice" {
		t.Fatalf("expected session memory in second turn, got %q", turn.Response)
	}

	turn, _ = o.ProcessVoiceInput(context.Background(), second.ID, "who am I?")
	if turn.Response != "name=" {
		t.Fatalf("expected other session not to see session memory, got %q", turn.Response)
	}

	if known, err := memory.Lookup[bool](context.Background(), o.Memory(), "knownUser", memory.ScopePersistent); err != nil || !known {
		t.Fatalf("expected persistent memory to be shared, got %t %v", known, err)
	}
}

func TestAtMostOnePendingTurnPerSession(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		callers := rapid.IntRange(2, 10).Draw(t, "callers")
		generator := &concurrencyGenerator{}
		o := NewOrchestrator(WithGenerator(generator), WithQueueDepth(callers))
		defer o.Shutdown(context.Background())
		info, _ := o.OpenSession("user")

		var violations atomic.Int32
		stopSampling := make(chan struct{})
		sampled := make(chan struct{})
		go func() {
			defer close(sampled)
			for {
				select {
				case <-stopSampling:
					return
				default:
				}
				history, _ := o.History(info.ID)
				pending := 0
				for _, turn := range history {
					if turn.Status == agent.TurnPending {
						pending++
					}
				}
				if pending > 1 {
					violations.Add(1)
				}
			}
		}()

		var wg sync.WaitGroup
		var failures atomic.Int32
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := o.ProcessVoiceInput(context.Background(), info.ID, "hi"); err != nil {
					failures.Add(1)
				}
			}()
		}
		wg.Wait()
		close(stopSampling)
		<-sampled

		if failures.Load() != 0 {
			t.Fatalf("expected every request to be processed, got %d failures", failures.Load())
		}
		if got := generator.maxInFlight.Load(); got != 1 {
			t.Fatalf("expected one generation at a time, got %d", got)
		}
		if violations.Load() != 0 {
			t.Fatalf("observed more than one pending turn %d times", violations.Load())
		}
	})
}

func TestNewInputStopsSpeech(t *testing.T) {
	synthesizer := &blockingSynthesizer{started: make(chan string, 4)}
	o := NewOrchestrator(
		WithGenerator(respondWith(func(c agent.Context) agent.Response {
			return agent.Response{Text: "answer to " + c.Input, Confidence: 1}
		})),
		WithSynthesizer(synthesizer),
	)
	defer o.Shutdown(context.Background())
	info, _ := o.OpenSession("user")

	results := make(chan submitted, 2)
	go submit(o, info.ID, "first", results)
	<-synthesizer.started
	go submit(o, info.ID, "second", results)

	first := <-results
	if first.turn.Status != agent.TurnInterrupted || first.turn.Response != "answer to first" {
		t.Fatalf("expected spoken turn to be interrupted with its response kept, got %s %q", first.turn.Status, first.turn.Response)
	}

	if spoken := <-synthesizer.started; spoken != "answer to second" {
		t.Fatalf("expected second response to be spoken, got %q", spoken)
	}
	if interrupted, _ := o.Interrupt(info.ID); !interrupted {
		t.Fatalf("expected second turn to be interrupted")
	}
	<-results
}

func TestStopSpeakingOnlyInterruptsSpokenResponse(t *testing.T) {
	generator := newBlockingGenerator()
	synthesizer := &blockingSynthesizer{started: make(chan string, 1)}
	o := NewOrchestrator(WithGenerator(generator), WithSynthesizer(synthesizer))
	defer o.Shutdown(context.Background())
	info, _ := o.OpenSession("user")

	results := make(chan submitted, 1)
	go submit(o, info.ID, "hello", results)
	<-generator.started

	if stopped, _ := o.StopSpeaking(info.ID); stopped {
		t.Fatalf("expected turn being generated not to be stopped")
	}

	close(generator.release)
	<-synthesizer.started
	if stopped, _ := o.StopSpeaking(info.ID); !stopped {
		t.Fatalf("expected spoken response to be stopped")
	}

	result := <-results
	if result.turn.Status != agent.TurnInterrupted || result.turn.Response != "done: hello" {
		t.Fatalf("expected interrupted turn with its response, got %s %q", result.turn.Status, result.turn.Response)
	}
}

func TestSpeechContinuesWithoutBargeIn(t *testing.T) {
	synthesizer := &blockingSynthesizer{started: make(chan string, 4)}
	o := NewOrchestrator(
		WithGenerator(respondWith(func(agent.Context) agent.Response { return agent.Response{Text: "ok", Confidence: 1} })),
		WithSynthesizer(synthesizer),
		WithBargeIn(false),
	)
	defer o.Shutdown(context.Background())
	info, _ := o.OpenSession("user")

	results := make(chan submitted, 2)
	go submit(o, info.ID, "first", results)
	<-synthesizer.started
	go submit(o, info.ID, "second", results)
	waitForCondition(t, time.Second, "second request queued", func() bool { return queuedRequests(o, info.ID) == 1 })

	select {
	case result := <-results:
		t.Fatalf("expected first turn to keep speaking, got %q finished", result.text)
	case <-time.After(50 * time.Millisecond):
	}

	_, _ = o.Interrupt(info.ID)
	<-synthesizer.started
	_, _ = o.Interrupt(info.ID)
	<-results
	<-results
}

func TestStalledSpeechFreesSessionAtSpeakDeadline(t *testing.T) {
	synthesizer := &blockingSynthesizer{started: make(chan string, 4)}
	o := NewOrchestrator(
		WithGenerator(respondWith(func(c agent.Context) agent.Response {
			return agent.Response{Text: "answer to " + c.Input, Confidence: 1}
		})),
		WithSynthesizer(synthesizer),
		WithTurnTimeout(100*time.Millisecond),
		WithBargeIn(false),
	)
	defer o.Shutdown(context.Background())
	info, _ := o.OpenSession("user")

	results := make(chan submitted, 2)
	go submit(o, info.ID, "hello", results)
	<-synthesizer.started
	go submit(o, info.ID, "again", results)

	for _, text := range []string{"hello", "again"} {
		select {
		case result := <-results:
			if result.err != nil {
				t.Fatalf("expected no error for %q, got %v", result.text, result.err)
			}
			if result.turn.Status != agent.TurnFailed || !errors.Is(result.turn.Err, agent.ErrTimeout) {
				t.Fatalf("expected %q to fail with ErrTimeout, got %s %v", result.text, result.turn.Status, result.turn.Err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %q to finish at the speak deadline", text)
		}
	}

	history, _ := o.History(info.ID)
	if len(history) != 2 {
		t.Fatalf("expected both turns in history, got %d", len(history))
	}
	for _, turn := range history {
		if turn.Status == agent.TurnPending {
			t.Fatalf("expected no pending turn, got %q pending", turn.Input)
		}
	}
	if info, _ := o.Session(info.ID); info.State != agent.StateIdle {
		t.Fatalf("expected idle session, got %s", info.State)
	}
}

func TestSpeakTimeoutOverridesTurnTimeout(t *testing.T) {
	synthesizer := &blockingSynthesizer{started: make(chan string, 1)}
	o := NewOrchestrator(
		WithGenerator(respondWith(func(agent.Context) agent.Response { return agent.Response{Text: "ok", Confidence: 1} })),
		WithSynthesizer(synthesizer),
		WithTurnTimeout(50*time.Millisecond),
		WithSpeakTimeout(time.Minute),
	)
	defer o.Shutdown(context.Background())
	info, _ := o.OpenSession("user")

	results := make(chan submitted, 1)
	go submit(o, info.ID, "hello", results)
	<-synthesizer.started

	select {
	case result := <-results:
		t.Fatalf("expected response to keep being spoken, got %s", result.turn.Status)
	case <-time.After(150 * time.Millisecond):
	}
	_, _ = o.Interrupt(info.ID)
	if result := <-results; result.turn.Status != agent.TurnInterrupted {
		t.Fatalf("expected interrupted turn, got %s", result.turn.Status)
	}
}

func TestShutdownResolvesQueuedRequestsAsInterrupted(t *testing.T) {
	generator := newBlockingGenerator()
	o := NewOrchestrator(WithGenerator(generator))
	info, _ := o.OpenSession("user")
	ctx := context.Background()

	_ = o.Memory().Set(ctx, "language", "en", memory.ScopePersistent)

	results := make(chan submitted, 3)
	go submit(o, info.ID, "processing", results)
	<-generator.started
	go submit(o, info.ID, "queued one", results)
	go submit(o, info.ID, "queued two", results)
	waitForCondition(t, time.Second, "two queued requests", func() bool { return queuedRequests(o, info.ID) == 2 })

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := o.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}

	for range 3 {
		result := <-results
		if result.err != nil || result.turn.Status != agent.TurnInterrupted {
			t.Fatalf("expected %q to be interrupted, got %s %v", result.text, result.turn.Status, result.err)
		}
	}

	if _, err := o.ProcessVoiceInput(ctx, info.ID, "late"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after shutdown, got %v", err)
	}
	if _, err := o.OpenSession("user"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed when opening a session after shutdown, got %v", err)
	}
	if value, err := o.Memory().Get(ctx, "language", memory.ScopePersistent); err != nil || value != "en" {
		t.Fatalf("expected persistent memory to survive shutdown, got %v %v", value, err)
	}
	if err := o.Shutdown(ctx); err != nil {
		t.Fatalf("expected repeated shutdown to be a no-op, got %v", err)
	}
}

func TestCloseSession(t *testing.T) {
	recorder := &eventRecorder{}
	o := NewOrchestrator(WithEventHandler(recorder.handle))
	defer o.Shutdown(context.Background())
	info, _ := o.OpenSession("user")

	if err := o.CloseSession(context.Background(), info.ID); err != nil {
		t.Fatalf("expected session to close, got %v", err)
	}
	if _, err := o.Session(info.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := o.CloseSession(context.Background(), info.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second close, got %v", err)
	}
	if recorder.count(events.KindSessionOpened) != 1 || recorder.count(events.KindSessionClosed) != 1 {
		t.Fatalf("expected one opened and one closed event")
	}
}

func TestIdleSessionsAreClosed(t *testing.T) {
	o := NewOrchestrator(WithIdleTimeout(time.Hour))
	defer o.Shutdown(context.Background())
	idle, _ := o.OpenSession("idle")

	if reaped := o.reapIdleSessions(time.Now()); reaped != 0 {
		t.Fatalf("expected fresh session to be kept, reaped %d", reaped)
	}
	if reaped := o.reapIdleSessions(time.Now().Add(2 * time.Hour)); reaped != 1 {
		t.Fatalf("expected idle session to be closed, reaped %d", reaped)
	}
	if _, err := o.Session(idle.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected idle session to be gone, got %v", err)
	}
}

func TestStatsSummarizeTurns(t *testing.T) {
	o := NewOrchestrator(WithGenerator(generatorFunc(func(_ context.Context, c agent.Context) (agent.Response, error) {
		if c.Input == "break" {
			return agent.Response{}, errors.New("model unavailable")
		}
		return agent.Response{Text: "ok", Confidence: 1}, nil
	})))
	defer o.Shutdown(context.Background())
	info, _ := o.OpenSession("user")

	_, _ = o.ProcessVoiceInput(context.Background(), info.ID, "hello")
	_, _ = o.ProcessVoiceInput(context.Background(), info.ID, "break")

	stats := o.Stats()
	if stats.TotalTurns != 2 || stats.Completed != 1 || stats.Failed != 1 {
		t.Fatalf("expected one completed and one failed turn, got %+v", stats)
	}
	if stats.SuccessRate != 0.5 {
		t.Fatalf("expected success rate 0.5, got %v", stats.SuccessRate)
	}
	if stats.Sessions != 1 {
		t.Fatalf("expected 1 session, got %d", stats.Sessions)
	}
}

func TestCode(t *testing.T) {
	cases := map[string]error{
		"dropped":           ErrDropped,
		"closed":            ErrClosed,
		"session_not_found": ErrSessionNotFound,
		"busy":              agent.ErrBusy,
		"timeout":           agent.ErrTimeout,
	}
	for want, err := range cases {
		if got := Code(err); got != want {
			t.Fatalf("expected code %q for %v, got %q", want, err, got)
		}
	}
}

type submitted struct {
	text string
	turn agent.Turn
	err  error
}

func submit(o *Orchestrator, sessionID, text string, results chan<- submitted) {
	turn, err := o.ProcessVoiceInput(context.Background(), sessionID, text)
	results <- submitted{text: text, turn: turn, err: err}
}

func queuedRequests(o *Orchestrator, sessionID string) int {
	o.mu.RLock()
	rt, ok := o.sessions[sessionID]
	o.mu.RUnlock()
	if !ok {
		return 0
	}
	return rt.queued()
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

type generatorFunc func(ctx context.Context, c agent.Context) (agent.Response, error)

func (f generatorFunc) Generate(ctx context.Context, c agent.Context) (agent.Response, error) {
	return f(ctx, c)
}

func respondWith(respond func(agent.Context) agent.Response) generatorFunc {
	return func(_ context.Context, c agent.Context) (agent.Response, error) { return respond(c), nil }
}

type blockingGenerator struct {
	started            chan struct{}
	release            chan struct{}
	ignoreCancellation bool
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *blockingGenerator) Generate(ctx context.Context, c agent.Context) (agent.Response, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}

	if g.ignoreCancellation {
		<-g.release
		return agent.Response{Text: "late", Confidence: 1}, nil
	}

	select {
	case <-ctx.Done():
		return agent.Response{}, ctx.Err()
	case <-g.release:
		return agent.Response{Text: "done: " + c.Input, Confidence: 1}, nil
	}
}

type concurrencyGenerator struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (g *concurrencyGenerator) Generate(context.Context, agent.Context) (agent.Response, error) {
	current := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		seen := g.maxInFlight.Load()
		if current <= seen || g.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	return agent.Response{Text: "ok", Confidence: 1}, nil
}

type blockingSynthesizer struct {
	started chan string
}

func (s *blockingSynthesizer) Speak(ctx context.Context, text string, _ agent.VoiceProfile) error {
	s.started <- text
	<-ctx.Done()
	return ctx.Err()
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, event := range r.events {
		if event.Kind() == kind {
			n++
		}
	}
	return n
}
