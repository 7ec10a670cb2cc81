package events

// KindRequestDropped identifies a queued request coalesced away.
const KindRequestDropped Kind = "queue.request_dropped"

type RequestDropped struct {
	Base
	SessionID string
	Input     string
}

func NewRequestDropped(sessionID, input string) RequestDropped {
	return RequestDropped{Base: NewBase(KindRequestDropped), SessionID: sessionID, Input: input}
}
