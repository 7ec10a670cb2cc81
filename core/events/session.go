package events

const (
	KindSessionOpened Kind = "session.opened"
	KindSessionClosed Kind = "session.closed"
)

type SessionOpened struct {
	Base
	SessionID string
	UserID    string
}

func NewSessionOpened(sessionID, userID string) SessionOpened {
	return SessionOpened{Base: NewBase(KindSessionOpened), SessionID: sessionID, UserID: userID}
}

// SessionClosed carries the reason the session ended, e.g. "closed",
// "shutdown" or "idle".
type SessionClosed struct {
	Base
	SessionID string
	Reason    string
}

func NewSessionClosed(sessionID, reason string) SessionClosed {
	return SessionClosed{Base: NewBase(KindSessionClosed), SessionID: sessionID, Reason: reason}
}
