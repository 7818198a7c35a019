package repositories

import "context"

type TextToSpeech interface {
	// ConvertTextToSpeech streams synthesized audio. An empty voiceID selects the default voice.
	ConvertTextToSpeech(ctx context.Context, text, voiceID string) (<-chan []byte, error)
	AvailableVoices(ctx context.Context) ([]Voice, error)
	// ContentType is the MIME type of the produced audio
	ContentType() string
}

// Voice describes a selectable synthesis voice
type Voice struct {
	ID       string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}
