package deepgram

import (
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/comet-core/core/agent"
	"github.com/koscakluka/comet-core/core/audio"
)

const (
	silenceChunkDuration = 50 * time.Millisecond
	silencePadding       = time.Second
	keepAliveInterval    = 5 * time.Second
)

type controlMessage struct {
	Type string `json:"type"`
}

// utteranceStream is one websocket session with Deepgram. Writes are
// serialized since the connection supports a single concurrent writer.
type utteranceStream struct {
	conn *websocket.Conn

	connMu    sync.Mutex
	lastAudio time.Time
	lastWrite time.Time

	done     chan struct{}
	doneOnce sync.Once

	mu          sync.Mutex
	segments    []string
	confidences float64
}

func newUtteranceStream(conn *websocket.Conn) *utteranceStream {
	now := time.Now()
	return &utteranceStream{conn: conn, lastAudio: now, lastWrite: now, done: make(chan struct{})}
}

func (s *utteranceStream) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *utteranceStream) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// sendAudio forwards frames until the utterance is done. When frames end
// first, Deepgram is asked to flush what it has and close the stream.
func (s *utteranceStream) sendAudio(frames iter.Seq[audio.Frame]) {
	for frame := range frames {
		if s.isDone() {
			return
		}
		if err := s.write(websocket.BinaryMessage, frame.Samples(), true); err != nil {
			logger.Warn("failed to send audio to deepgram", "error", err)
			return
		}
	}

	if s.isDone() {
		return
	}
	if err := s.writeControl(string(api.TypeCloseStreamResponse)); err != nil {
		logger.Warn("failed to close deepgram stream", "error", err)
	}
}

// padSilence sends silence for a short while after audio stops arriving so
// endpointing can finish, then falls back to keep-alive messages.
func (s *utteranceStream) padSilence(encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	ticker := time.NewTicker(silenceChunkDuration)
	defer ticker.Stop()

	chunk := make([]byte, encoding.Bytes(silenceChunkDuration))
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	state := silenceGeneratorStateWaiting
	var silenceStarted time.Time
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		sinceAudio, sinceWrite := s.idle()
		switch state {
		case silenceGeneratorStateWaiting:
			if sinceAudio > silenceChunkDuration {
				state = silenceGeneratorStateSilence
				silenceStarted = time.Now()
			}

		case silenceGeneratorStateSilence:
			if sinceAudio < silenceChunkDuration {
				state = silenceGeneratorStateWaiting
				continue
			}
			if time.Since(silenceStarted) >= silencePadding {
				state = silenceGeneratorStateKeepAlive
				continue
			}
			if err := s.write(websocket.BinaryMessage, chunk, false); err != nil {
				logger.Warn("failed to send silence to deepgram", "error", err)
			}

		case silenceGeneratorStateKeepAlive:
			if sinceAudio < silenceChunkDuration {
				state = silenceGeneratorStateWaiting
				continue
			}
			if sinceWrite >= keepAliveInterval {
				if err := s.writeControl("KeepAlive"); err != nil {
					logger.Warn("failed to send keep alive to deepgram", "error", err)
				}
			}
		}
	}
}

func (s *utteranceStream) idle() (sinceAudio, sinceWrite time.Duration) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return time.Since(s.lastAudio), time.Since(s.lastWrite)
}

func (s *utteranceStream) write(messageType int, data []byte, isAudio bool) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if err := s.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to write to deepgram websocket: %w", err)
	}
	s.lastWrite = time.Now()
	if isAudio {
		s.lastAudio = s.lastWrite
	}
	return nil
}

func (s *utteranceStream) writeControl(msgType string) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if err := s.conn.WriteJSON(controlMessage{Type: msgType}); err != nil {
		return fmt.Errorf("failed to write %s to deepgram websocket: %w", msgType, err)
	}
	s.lastWrite = time.Now()
	return nil
}

func (s *utteranceStream) addSegment(transcript string, confidence float64) {
	if transcript == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = append(s.segments, transcript)
	s.confidences += confidence
}

func (s *utteranceStream) hasTranscript() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments) > 0
}

func (s *utteranceStream) interim(transcript string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(append(s.segments[:len(s.segments):len(s.segments)], transcript), " ")
}

func (s *utteranceStream) recognition() agent.Recognition {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.segments) == 0 {
		return agent.Recognition{}
	}
	return agent.Recognition{
		Text:       strings.Join(s.segments, " "),
		Confidence: s.confidences / float64(len(s.segments)),
	}
}
