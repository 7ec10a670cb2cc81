package texttospeech

import (
	"slices"
	"testing"

	"github.com/koscakluka/comet-core/core/audio"
)

func TestSplitSentences(t *testing.T) {
	cases := map[string][]string{
		"":                          nil,
		"  ":                        nil,
		"Hello":                     {"Hello"},
		"Hello there. How are you?": {"Hello there.", "How are you?"},
		"Wait!  Version 1.5 is out": {"Wait!", "Version 1.5 is out"},
		"Done.\nNext?":              {"Done.", "Next?"},
	}
	for text, want := range cases {
		if got := SplitSentences(text); !slices.Equal(got, want) {
			t.Fatalf("expected %q for %q, got %q", want, text, got)
		}
	}
}

func TestWithEncodingInfoIgnoresZeroValue(t *testing.T) {
	options := SpeechOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}

	WithEncodingInfo(audio.EncodingInfo{})(&options)
	if options.EncodingInfo != audio.GetDefaultEncodingInfo() {
		t.Fatalf("expected zero encoding to be ignored, got %+v", options.EncodingInfo)
	}

	mulaw := audio.EncodingInfo{SampleRate: 8000, Format: audio.EncodingMulaw}
	WithEncodingInfo(mulaw)(&options)
	if options.EncodingInfo != mulaw {
		t.Fatalf("expected %+v, got %+v", mulaw, options.EncodingInfo)
	}
}
