package events

import "time"

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.timestamp }

// Handler receives events. A nil Handler discards them.
//
// Handlers are called inline on the emitting path and should not block.
type Handler func(Event)

func (h Handler) Emit(event Event) {
	if h == nil {
		return
	}
	h(event)
}
