package agent

import (
	"errors"

	"github.com/koscakluka/comet-core/core/capture"
	"github.com/koscakluka/comet-core/core/memory"
)

var (
	ErrEmptyInput = errors.New("input is empty")
	// ErrBusy is returned when a session already has a pending turn.
	ErrBusy          = errors.New("session is busy")
	ErrSessionClosed = errors.New("session is closed")

	ErrRecognition = errors.New("speech recognition failed")
	ErrGeneration  = errors.New("response generation failed")
	// ErrSynthesis is logged but never fails a turn.
	ErrSynthesis   = errors.New("speech synthesis failed")
	ErrTimeout     = errors.New("turn deadline exceeded")
	ErrInterrupted = errors.New("turn interrupted")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrEmptyInput, "empty_input"},
	{ErrBusy, "busy"},
	{ErrSessionClosed, "session_closed"},
	{ErrRecognition, "recognition_failed"},
	{ErrGeneration, "generation_failed"},
	{ErrSynthesis, "synthesis_failed"},
	{ErrTimeout, "timeout"},
	{ErrInterrupted, "interrupted"},
	{capture.ErrAlreadyListening, "already_listening"},
	{memory.ErrNotFound, "not_found"},
}

// Code returns a stable identifier for err suitable for reporting. It returns
// an empty string for nil and "internal" for errors outside the known set.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, known := range errorCodes {
		if errors.Is(err, known.err) {
			return known.code
		}
	}
	return "internal"
}
