package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/comet-core/core/agent"
	"github.com/koscakluka/comet-core/core/audio"
	"github.com/koscakluka/comet-core/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultBaseURL = "wss://api.deepgram.com/v1/speak"

// Synthesizer speaks responses through the Deepgram streaming API into an
// audio sink.
type Synthesizer struct {
	apiKey  string
	sink    audio.Sink
	options texttospeech.SpeechOptions
	dialer  *websocket.Dialer
}

func NewSynthesizer(apiKey string, sink audio.Sink, opts ...texttospeech.SpeechOption) *Synthesizer {
	options := texttospeech.SpeechOptions{
		BaseURL:            DefaultBaseURL,
		SpeechMarkCallback: func(string) {},
		WaitForPlayback:    true,
	}
	if sink != nil {
		options.EncodingInfo = sink.EncodingInfo()
	}
	if options.EncodingInfo.IsZero() {
		options.EncodingInfo = audio.GetDefaultEncodingInfo()
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Synthesizer{apiKey: apiKey, sink: sink, options: options, dialer: websocket.DefaultDialer}
}

// Speak sends text sentence by sentence and forwards the audio to the sink.
// When ctx ends the connection is dropped and the sink buffer cleared.
func (s *Synthesizer) Speak(ctx context.Context, text string, voice agent.VoiceProfile) error {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	produced, err := s.speak(ctx, text, voice)
	span.SetAttributes(attribute.Int("speech.bytes", produced))
	if err != nil {
		if ctx.Err() != nil && s.sink != nil {
			s.sink.ClearBuffer()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *Synthesizer) speak(ctx context.Context, text string, voice agent.VoiceProfile) (int, error) {
	sentences := texttospeech.SplitSentences(text)
	if len(sentences) == 0 {
		return 0, nil
	}

	model, err := resolveVoice(voice)
	if err != nil {
		return 0, err
	}

	conn, err := s.connect(ctx, model)
	if err != nil {
		return 0, fmt.Errorf("failed to open websocket: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	req := &speechRequest{ws: conn, sentences: sentences}
	started := time.Now()
	if err := req.sendNext(); err != nil {
		return 0, err
	}

	produced := 0
	for !req.isComplete() {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return produced, context.Cause(ctx)
			}
			return produced, fmt.Errorf("failed to read deepgram websocket message: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 || s.sink == nil {
				continue
			}
			if err := s.sink.SendAudio(msg); err != nil {
				return produced, fmt.Errorf("failed to play synthesized audio: %w", err)
			}
			produced += len(msg)

		case websocket.TextMessage:
			var parsedMsg struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				s.options.SpeechMarkCallback(req.flushed())
				if !req.isComplete() {
					if err := req.sendNext(); err != nil {
						return produced, err
					}
				}
			case "Warning":
				logger.WarnContext(ctx, "deepgram warning", "description", parsedMsg.Description)
			case "Error":
				return produced, fmt.Errorf("deepgram error: %s", parsedMsg.Description)
			}
		}
	}

	if err := req.send(closeMsg); err != nil {
		logger.WarnContext(ctx, "failed to close deepgram stream", "error", err)
	}

	if s.options.WaitForPlayback {
		remaining := s.options.EncodingInfo.Duration(produced) - time.Since(started)
		if remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return produced, context.Cause(ctx)
			case <-timer.C:
			}
		}
	}
	return produced, nil
}

func (s *Synthesizer) connect(ctx context.Context, voice deepgramVoice) (*websocket.Conn, error) {
	speakURL, err := url.Parse(s.options.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	urlValues := speakURL.Query()
	urlValues.Set("encoding", s.options.EncodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(s.options.EncodingInfo.SampleRate))
	urlValues.Set("model", string(voice))
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	conn, _, err := s.dialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"token " + s.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

// speechRequest sends one sentence at a time and waits for Deepgram to
// confirm it was flushed before sending the next, since text sent right
// after a flush is sometimes dropped.
type speechRequest struct {
	ws *websocket.Conn
	mu sync.Mutex

	sentences []string
	sent      int
	done      int
}

func (r *speechRequest) sendNext() error {
	sentence := r.sentences[r.sent]
	if err := r.send(sendTextMsg(sentence)); err != nil {
		return fmt.Errorf("failed to send websocket send text message: %w", err)
	}
	if err := r.send(flushMsg); err != nil {
		return fmt.Errorf("failed to send websocket flush message: %w", err)
	}
	r.sent++
	return nil
}

// flushed marks the oldest sent sentence as spoken and returns it.
func (r *speechRequest) flushed() string {
	if r.done >= r.sent {
		return ""
	}
	sentence := r.sentences[r.done]
	r.done++
	return sentence
}

func (r *speechRequest) isComplete() bool { return r.done == len(r.sentences) }

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var (
	sendTextMsg = func(text string) websocketMessage { return websocketMessage{Type: "Speak", Text: text} }
	flushMsg    = websocketMessage{Type: "Flush"}
	closeMsg    = websocketMessage{Type: "Close"}
)

func (r *speechRequest) send(msg websocketMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}
