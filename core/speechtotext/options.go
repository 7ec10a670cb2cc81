package speechtotext

import (
	"time"

	"github.com/koscakluka/comet-core/core/audio"
)

type RecognitionOptions struct {
	BaseURL  string
	Model    string
	Language string

	// Endpointing is the trailing silence after which a segment is final.
	Endpointing time.Duration
	// UtteranceEnd is the gap between words after which an utterance ends
	// even if endpointing did not trigger.
	UtteranceEnd time.Duration

	InterimTranscriptionCallback func(transcript string)
	SpeechStartedCallback        func()

	EncodingInfo audio.EncodingInfo
}

type RecognitionOption func(*RecognitionOptions)

func WithBaseURL(url string) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.BaseURL = url
	}
}

func WithModel(model string) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.Model = model
	}
}

func WithLanguage(language string) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.Language = language
	}
}

func WithEndpointing(silence time.Duration) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.Endpointing = silence
	}
}

func WithUtteranceEnd(gap time.Duration) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.UtteranceEnd = gap
	}
}

// WithInterimTranscriptionCallback receives the utterance recognized so far,
// including segments that are not final yet.
func WithInterimTranscriptionCallback(callback func(transcript string)) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) RecognitionOption {
	return func(o *RecognitionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
