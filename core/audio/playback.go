package audio

import "sync"

// PlaybackBuffer queues audio for a device that pulls fixed size chunks,
// usually from a realtime callback.
type PlaybackBuffer struct {
	mu      sync.Mutex
	pending []byte
	silence byte
}

func NewPlaybackBuffer(encoding EncodingInfo) *PlaybackBuffer {
	return &PlaybackBuffer{silence: encoding.SilenceValue()}
}

func (b *PlaybackBuffer) Write(audio []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, audio...)
}

func (b *PlaybackBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}

func (b *PlaybackBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Fill copies queued audio into out and pads the rest with silence. It
// returns how many queued bytes were used.
func (b *PlaybackBuffer) Fill(out []byte) int {
	b.mu.Lock()
	n := copy(out, b.pending)
	b.pending = b.pending[n:]
	if len(b.pending) == 0 {
		b.pending = nil
	}
	b.mu.Unlock()

	for i := n; i < len(out); i++ {
		out[i] = b.silence
	}
	return n
}
