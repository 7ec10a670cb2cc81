package agent

import (
	"context"
	"iter"

	"github.com/koscakluka/comet-core/core/audio"
	"github.com/koscakluka/comet-core/core/memory"
)

// Recognizer turns one utterance worth of frames into text. It should return
// once an utterance is complete or frames ends.
type Recognizer interface {
	Recognize(ctx context.Context, frames iter.Seq[audio.Frame]) (Recognition, error)
}

type Recognition struct {
	Text       string
	Confidence float64
}

// Generator produces the assistant response for a turn.
type Generator interface {
	Generate(ctx context.Context, c Context) (Response, error)
}

// Synthesizer speaks a response. Failures are reported but do not fail the
// turn.
type Synthesizer interface {
	Speak(ctx context.Context, text string, voice VoiceProfile) error
}

type VoiceProfile struct {
	Voice    string `yaml:"voice"`
	Language string `yaml:"language"`
	Accent   string `yaml:"accent"`
}

// Input is one recognized utterance handed to the agent.
type Input struct {
	Text       string
	Confidence float64
	// Err is set when recognition of the utterance failed.
	Err error
}

// Context is everything a generator sees for one turn.
type Context struct {
	SessionID       string
	UserID          string
	Input           string
	InputConfidence float64
	// Memory is a detached snapshot of session scoped memory.
	Memory map[string]any
	// Persistent is a detached snapshot of persistent memory.
	Persistent map[string]any
	// History holds the most recent turns, oldest first.
	History []Turn
}

type Response struct {
	Text       string
	Confidence float64
	// Memory lists entries to store before the turn completes.
	Memory []MemoryUpdate
}

type MemoryUpdate struct {
	Key   string
	Value any
	Scope memory.Scope
}
