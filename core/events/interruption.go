package events

// KindInterruptionClassified identifies input received while speaking being
// classified.
const KindInterruptionClassified Kind = "interruption.classified"

type InterruptionClassified struct {
	Base
	SessionID string
	Input     string
	Type      string
	// StoppedSpeech is true when the spoken response was cut off.
	StoppedSpeech bool
}

func NewInterruptionClassified(sessionID, input, classification string, stoppedSpeech bool) InterruptionClassified {
	return InterruptionClassified{
		Base:          NewBase(KindInterruptionClassified),
		SessionID:     sessionID,
		Input:         input,
		Type:          classification,
		StoppedSpeech: stoppedSpeech,
	}
}
