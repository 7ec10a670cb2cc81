// Package interruptions decides what input arriving while a response is being
// spoken means for that response.
package interruptions

import (
	"context"
	"fmt"

	"github.com/koscakluka/comet-core/core/agent"
)

type Type string

const (
	TypeContinuation  Type = "continuation"
	TypeClarification Type = "clarification"
	TypeCancellation  Type = "cancellation"
	TypeIgnorable     Type = "ignorable"
	TypeRepetition    Type = "repetition"
	TypeNoise         Type = "noise"
	TypeNewPrompt     Type = "new prompt"
)

// Types lists every classification in the order offered to classifiers.
var Types = []Type{
	TypeContinuation,
	TypeClarification,
	TypeCancellation,
	TypeIgnorable,
	TypeRepetition,
	TypeNoise,
	TypeNewPrompt,
}

func ParseType(classification string) (Type, error) {
	for _, t := range Types {
		if string(t) == classification {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown interruption type: %q", classification)
}

// StopsSpeech reports whether the spoken response should be cut off. Input
// that only acknowledges or adds to what is being said lets it finish.
func (t Type) StopsSpeech() bool {
	switch t {
	case TypeContinuation, TypeIgnorable, TypeNoise:
		return false
	default:
		return true
	}
}

// Request describes input received while Speaking was being said.
type Request struct {
	SessionID string
	Input     string
	Speaking  string
	History   []agent.Turn
}

type Classifier interface {
	ClassifyInterruption(ctx context.Context, request Request) (Type, error)
}

// ClassifierFunc adapts a function to [Classifier].
type ClassifierFunc func(ctx context.Context, request Request) (Type, error)

func (f ClassifierFunc) ClassifyInterruption(ctx context.Context, request Request) (Type, error) {
	return f(ctx, request)
}
