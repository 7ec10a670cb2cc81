package deepgram

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/koscakluka/comet-core/core/agent"
)

type deepgramVoice string

const defaultVoice deepgramVoice = "aura-2-asteria-en"

var availableVoices = []deepgramVoice{
	"aura-2-amalthea-en",
	"aura-2-apollo-en",
	"aura-2-arcas-en",
	"aura-2-asteria-en",
	"aura-2-athena-en",
	"aura-2-draco-en",
	"aura-2-helena-en",
	"aura-2-hera-en",
	"aura-2-hyperion-en",
	"aura-2-luna-en",
	"aura-2-orion-en",
	"aura-2-pandora-en",
	"aura-2-thalia-en",
	"aura-2-theia-en",
	"aura-2-zeus-en",
	"aura-2-celeste-es",
	"aura-2-nestor-es",
	"aura-2-agathe-fr",
	"aura-2-hector-fr",
	"aura-2-julius-de",
	"aura-2-viktoria-de",
}

// accentVoices picks a voice when a profile names an accent but no voice.
var accentVoices = map[string]deepgramVoice{
	"american":   "aura-2-asteria-en",
	"british":    "aura-2-pandora-en",
	"australian": "aura-2-theia-en",
	"filipino":   "aura-2-amalthea-en",
}

func GetAvailableVoices() []deepgramVoice {
	return slices.Clone(availableVoices)
}

// resolveVoice maps a profile to a Deepgram model. Voice is either a full
// model name or a short name such as "asteria", combined with Language.
func resolveVoice(profile agent.VoiceProfile) (deepgramVoice, error) {
	language := strings.ToLower(cmp.Or(profile.Language, "en"))
	language, _, _ = strings.Cut(language, "-")

	if profile.Voice == "" {
		if voice, ok := accentVoices[strings.ToLower(profile.Accent)]; ok && language == "en" {
			return voice, nil
		}
		if language == "en" {
			return defaultVoice, nil
		}
		for _, voice := range availableVoices {
			if strings.HasSuffix(string(voice), "-"+language) {
				return voice, nil
			}
		}
		return "", fmt.Errorf("no voice available for language %q", language)
	}

	voice := deepgramVoice(strings.ToLower(profile.Voice))
	if !strings.HasPrefix(string(voice), "aura") {
		voice = deepgramVoice(fmt.Sprintf("aura-2-%s-%s", voice, language))
	}
	if !slices.Contains(availableVoices, voice) {
		return "", fmt.Errorf("invalid voice %q", voice)
	}
	return voice, nil
}
