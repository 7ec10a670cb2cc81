package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/comet-core/core/agent"
	"github.com/koscakluka/comet-core/core/audio"
	"github.com/koscakluka/comet-core/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBaseURL = "wss://api.deepgram.com/v1/listen"
	DefaultModel   = "nova-3"
)

// Recognizer transcribes one utterance per call over the Deepgram streaming
// API.
type Recognizer struct {
	apiKey  string
	options speechtotext.RecognitionOptions
	dialer  *websocket.Dialer
}

func NewRecognizer(apiKey string, opts ...speechtotext.RecognitionOption) *Recognizer {
	options := speechtotext.RecognitionOptions{
		BaseURL:                      DefaultBaseURL,
		Model:                        DefaultModel,
		Language:                     "en-US",
		Endpointing:                  300 * time.Millisecond,
		UtteranceEnd:                 time.Second,
		InterimTranscriptionCallback: func(string) {},
		SpeechStartedCallback:        func() {},
		EncodingInfo:                 audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Recognizer{apiKey: apiKey, options: options, dialer: websocket.DefaultDialer}
}

// Recognize streams frames until Deepgram reports the end of an utterance
// or frames end, and returns the final transcript. Confidence is the mean
// of the final segments.
func (r *Recognizer) Recognize(ctx context.Context, frames iter.Seq[audio.Frame]) (agent.Recognition, error) {
	ctx, span := tracer.Start(ctx, "transcribe utterance")
	defer span.End()

	recognition, err := r.recognize(ctx, frames)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return agent.Recognition{}, err
	}

	span.SetAttributes(
		attribute.Float64("transcription.confidence", recognition.Confidence),
		attribute.Int("transcription.length", len(recognition.Text)),
	)
	return recognition, nil
}

func (r *Recognizer) recognize(ctx context.Context, frames iter.Seq[audio.Frame]) (agent.Recognition, error) {
	encoding, err := convertEncoding(r.options.EncodingInfo)
	if err != nil {
		return agent.Recognition{}, fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := r.connect(ctx, encoding)
	if err != nil {
		return agent.Recognition{}, fmt.Errorf("failed to open websocket: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	stream := newUtteranceStream(conn)
	defer stream.finish()

	go stream.sendAudio(frames)
	go stream.padSilence(r.options.EncodingInfo)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return agent.Recognition{}, context.Cause(ctx)
			}
			if stream.hasTranscript() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return stream.recognition(), nil
			}
			return agent.Recognition{}, fmt.Errorf("failed to read deepgram websocket message: %w", err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		if r.processMessage(ctx, stream, msg) {
			return stream.recognition(), nil
		}
	}
}

func (r *Recognizer) connect(ctx context.Context, encoding *encodingInfo) (*websocket.Conn, error) {
	listenURL, err := url.Parse(r.options.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", r.options.Model)
	queryParams.Set("language", r.options.Language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("vad_events", "true")
	queryParams.Set("endpointing", strconv.FormatInt(r.options.Endpointing.Milliseconds(), 10))
	queryParams.Set("utterance_end_ms", strconv.FormatInt(r.options.UtteranceEnd.Milliseconds(), 10))
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := r.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + r.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

// processMessage applies one server message to stream and reports whether
// the utterance is complete.
func (r *Recognizer) processMessage(ctx context.Context, stream *utteranceStream, msg []byte) bool {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
		return false
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.WarnContext(ctx, "failed to unmarshal deepgram transcript", "error", err)
			return false
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return msgResp.SpeechFinal && stream.hasTranscript()
		}

		alternative := msgResp.Channel.Alternatives[0]
		transcript := strings.TrimSpace(alternative.Transcript)
		if !msgResp.IsFinal {
			if transcript != "" {
				r.options.InterimTranscriptionCallback(stream.interim(transcript))
			}
			return false
		}

		stream.addSegment(transcript, alternative.Confidence)
		return msgResp.SpeechFinal && stream.hasTranscript()

	case api.TypeUtteranceEndResponse:
		return stream.hasTranscript()

	case api.TypeSpeechStartedResponse:
		r.options.SpeechStartedCallback()
	}

	return false
}
