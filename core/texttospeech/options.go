package texttospeech

import (
	"strings"
	"unicode"

	"github.com/koscakluka/comet-core/core/audio"
)

type SpeechOptions struct {
	BaseURL string

	// SpeechMarkCallback is called with every sentence once its audio has
	// been produced. Each sentence is reported once.
	SpeechMarkCallback func(sentence string)
	// WaitForPlayback makes speaking last until the produced audio would have
	// finished playing, instead of returning once it is produced.
	WaitForPlayback bool

	EncodingInfo audio.EncodingInfo
}

type SpeechOption func(*SpeechOptions)

func WithBaseURL(url string) SpeechOption {
	return func(o *SpeechOptions) { o.BaseURL = url }
}

func WithSpeechMarkCallback(callback func(sentence string)) SpeechOption {
	return func(o *SpeechOptions) { o.SpeechMarkCallback = callback }
}

func WithPlaybackWait(wait bool) SpeechOption {
	return func(o *SpeechOptions) { o.WaitForPlayback = wait }
}

// WithEncodingInfo overrides the encoding reported by the audio sink. A zero
// encoding is ignored.
func WithEncodingInfo(encodingInfo audio.EncodingInfo) SpeechOption {
	return func(o *SpeechOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}

// SplitSentences cuts text after sentence ending punctuation followed by
// whitespace. Blank sentences are skipped.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentences = appendSentence(sentences, string(runes[start:i+1]))
		start = i + 1
	}
	return appendSentence(sentences, string(runes[start:]))
}

func appendSentence(sentences []string, sentence string) []string {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return sentences
	}
	return append(sentences, sentence)
}
