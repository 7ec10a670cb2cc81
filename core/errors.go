package orchestration

import (
	"errors"

	"github.com/koscakluka/comet-core/core/agent"
)

var (
	// ErrDropped resolves a queued request that was replaced by newer input.
	ErrDropped         = errors.New("request dropped from queue")
	ErrClosed          = errors.New("orchestrator is shut down")
	ErrSessionNotFound = errors.New("session not found")
	ErrNoRecognizer    = errors.New("no speech recognizer configured")
)

// Code returns a stable identifier for err suitable for reporting.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrDropped):
		return "dropped"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrNoRecognizer):
		return "no_recognizer"
	}
	return agent.Code(err)
}
