package agent

import (
	"fmt"
	"time"
)

type TurnStatus int

const (
	TurnPending TurnStatus = iota
	TurnCompleted
	TurnInterrupted
	TurnFailed
)

func (s TurnStatus) String() string {
	switch s {
	case TurnPending:
		return "pending"
	case TurnCompleted:
		return "completed"
	case TurnInterrupted:
		return "interrupted"
	case TurnFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Turn is one utterance and the assistant reply to it.
type Turn struct {
	ID                   string
	Input                string
	RecognizedConfidence float64
	Response             string
	Confidence           float64
	StartedAt            time.Time
	CompletedAt          time.Time
	Status               TurnStatus
	// Err explains a failed or interrupted turn.
	Err error
}

func (t Turn) IsFinished() bool { return t.Status != TurnPending }

// Duration is zero until the turn is finished.
func (t Turn) Duration() time.Duration {
	if t.CompletedAt.IsZero() {
		return 0
	}
	return t.CompletedAt.Sub(t.StartedAt)
}
