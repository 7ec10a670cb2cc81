package events

import "time"

const (
	// KindTurnStarted identifies a turn becoming pending.
	KindTurnStarted Kind = "turn_state.started"
	// KindTurnFinished identifies a turn reaching a terminal status.
	KindTurnFinished Kind = "turn_state.finished"
)

type TurnStarted struct {
	Base
	SessionID string
	Input     string
	QueuedFor time.Duration
}

func NewTurnStarted(sessionID, input string, queuedFor time.Duration) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), SessionID: sessionID, Input: input, QueuedFor: queuedFor}
}

type TurnFinished struct {
	Base
	SessionID string
	TurnID    string
	Status    string
	Duration  time.Duration
}

func NewTurnFinished(sessionID, turnID, status string, duration time.Duration) TurnFinished {
	return TurnFinished{
		Base:      NewBase(KindTurnFinished),
		SessionID: sessionID,
		TurnID:    turnID,
		Status:    status,
		Duration:  duration,
	}
}
