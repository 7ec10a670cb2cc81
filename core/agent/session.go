package agent

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/comet-core/core/memory"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingInput
	StateProcessing
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session is the conversation state of one user. All methods are safe for
// concurrent use.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	memory *memory.Store

	mu           sync.Mutex
	state        State
	active       bool
	turns        []Turn
	pending      *pendingTurn
	lastActivity time.Time
}

type pendingTurn struct {
	index  int
	cancel context.CancelCauseFunc
}

// SessionInfo is a point-in-time snapshot of a session.
type SessionInfo struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	Active       bool
	TurnCount    int
	State        State
	LastActivity time.Time
}

// NewSession creates a session with its own session scoped partition of
// store. Persistent memory is shared with store. A nil store gets a private
// in-memory one.
func NewSession(userID string, store *memory.Store) *Session {
	if store == nil {
		store = memory.NewStore()
	}
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		CreatedAt:    now,
		memory:       store.NewSession(),
		state:        StateIdle,
		active:       true,
		lastActivity: now,
	}
}

func (s *Session) Memory() *memory.Store { return s.memory }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:           s.ID,
		UserID:       s.UserID,
		CreatedAt:    s.CreatedAt,
		Active:       s.active,
		TurnCount:    len(s.turns),
		State:        s.state,
		LastActivity: s.lastActivity,
	}
}

// History returns a copy of all turns in insertion order.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.turns)
}

// PendingTurn returns the turn in progress, if any.
func (s *Session) PendingTurn() (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Turn{}, false
	}
	return s.turns[s.pending.index], true
}

func (s *Session) recent(n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := len(s.turns)
	if s.pending != nil {
		end = s.pending.index
	}
	start := max(0, end-n)
	return slices.Clone(s.turns[start:end])
}

// Interrupt cancels the pending turn, if any, and returns the session to
// idle. The turn is marked interrupted. It reports whether a turn was
// interrupted.
func (s *Session) Interrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interruptLocked(ErrInterrupted)
}

func (s *Session) interruptLocked(cause error) bool {
	wasSpeaking := s.state == StateSpeaking
	s.state = StateIdle
	if s.pending == nil {
		return false
	}

	pending := s.pending
	s.pending = nil
	pending.cancel(cause)

	turn := &s.turns[pending.index]
	turn.Status = TurnInterrupted
	turn.Err = cause
	turn.CompletedAt = time.Now()
	// A response being spoken was complete and is kept.
	if !wasSpeaking {
		turn.Response = ""
		turn.Confidence = 0
	}
	s.lastActivity = turn.CompletedAt
	recordTurn(context.Background(), *turn)
	return true
}

// StopSpeaking interrupts the pending turn only while its response is being
// spoken.
func (s *Session) StopSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSpeaking {
		return false
	}
	return s.interruptLocked(ErrInterrupted)
}

// Close marks the session inactive, interrupts pending work and clears
// session scoped memory.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.interruptLocked(ErrSessionClosed)
	s.mu.Unlock()

	if err := s.memory.Clear(ctx, memory.ScopeSession); err != nil {
		return fmt.Errorf("failed to clear session memory: %w", err)
	}
	return nil
}

// RecordInterrupted appends a turn for input that was accepted but never
// processed.
func (s *Session) RecordInterrupted(input string, queuedAt time.Time, cause error) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := Turn{
		ID:          uuid.NewString(),
		Input:       input,
		StartedAt:   queuedAt,
		CompletedAt: time.Now(),
		Status:      TurnInterrupted,
		Err:         cause,
	}
	s.turns = append(s.turns, turn)
	recordTurn(context.Background(), turn)
	return turn
}

// begin appends a pending turn. A turn being spoken is interrupted in favour
// of the new input.
func (s *Session) begin(input string, confidence float64, cancel context.CancelCauseFunc) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return Turn{}, ErrSessionClosed
	}
	if s.pending != nil {
		if s.state != StateSpeaking {
			return Turn{}, ErrBusy
		}
		s.interruptLocked(ErrInterrupted)
	}

	now := time.Now()
	turn := Turn{
		ID:                   uuid.NewString(),
		Input:                input,
		RecognizedConfidence: confidence,
		StartedAt:            now,
		Status:               TurnPending,
	}
	s.turns = append(s.turns, turn)
	s.pending = &pendingTurn{index: len(s.turns) - 1, cancel: cancel}
	s.state = StateAwaitingInput
	s.lastActivity = now
	return turn, nil
}

// transition moves the session to state while turnID is still pending.
// A non-nil cancel replaces the cancel function of the pending turn.
func (s *Session) transition(turnID string, state State, cancel context.CancelCauseFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isPendingLocked(turnID) {
		return false
	}
	s.state = state
	if cancel != nil {
		s.pending.cancel = cancel
	}
	return true
}

// update applies fn to the pending turn while turnID is still pending.
func (s *Session) update(turnID string, fn func(*Turn)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isPendingLocked(turnID) {
		return false
	}
	fn(&s.turns[s.pending.index])
	return true
}

// finish applies fn to the pending turn and returns the session to idle. If
// the turn was already finished elsewhere, its recorded state is returned
// unchanged.
func (s *Session) finish(turnID string, fn func(*Turn)) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isPendingLocked(turnID) {
		for i := len(s.turns) - 1; i >= 0; i-- {
			if s.turns[i].ID == turnID {
				return s.turns[i]
			}
		}
		return Turn{}
	}

	turn := &s.turns[s.pending.index]
	if fn != nil {
		fn(turn)
	}
	turn.CompletedAt = time.Now()
	s.pending = nil
	s.state = StateIdle
	s.lastActivity = turn.CompletedAt
	recordTurn(context.Background(), *turn)
	return *turn
}

func (s *Session) isPending(turnID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isPendingLocked(turnID)
}

func (s *Session) isPendingLocked(turnID string) bool {
	return s.pending != nil && s.turns[s.pending.index].ID == turnID
}
