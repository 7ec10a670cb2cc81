package audio

import (
	"bytes"
	"time"
)

// Frame is an immutable chunk of captured samples.
//
// The sample slice is copied on construction and on every read, so a frame
// can be handed across goroutines without further synchronisation.
type Frame struct {
	samples   []byte
	timestamp time.Time
	sequence  uint64
}

func NewFrame(samples []byte, timestamp time.Time) Frame {
	return Frame{samples: bytes.Clone(samples), timestamp: timestamp}
}

// WithSequence returns a copy of the frame carrying sequence number seq.
func (f Frame) WithSequence(seq uint64) Frame {
	f.sequence = seq
	return f
}

func (f Frame) Samples() []byte      { return bytes.Clone(f.samples) }
func (f Frame) Len() int             { return len(f.samples) }
func (f Frame) Timestamp() time.Time { return f.timestamp }
func (f Frame) Sequence() uint64     { return f.sequence }
func (f Frame) IsZero() bool         { return f.samples == nil && f.timestamp.IsZero() }

// Sink consumes synthesized audio, typically a playback device.
type Sink interface {
	EncodingInfo() EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
}
