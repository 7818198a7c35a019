package tts

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/jbergloda1/swha-backend/domain/repositories"
)

// MockTextToSpeech is a placeholder implementation for text-to-speech
type MockTextToSpeech struct {
	logger *zap.Logger
}

var _ repositories.TextToSpeech = (*MockTextToSpeech)(nil)

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{
		logger: logger,
	}
}

// ConvertTextToSpeech emits silence-like PCM proportional to the text length
func (t *MockTextToSpeech) ConvertTextToSpeech(ctx context.Context, text, voiceID string) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text cannot be empty")
	}

	t.logger.Debug("Processing mock text-to-speech",
		zap.Int("textLength", len(text)),
		zap.String("voiceID", voiceID))

	// Mock audio data - generate based on text length
	mockAudio := make([]byte, len(text)*100)
	for i := range mockAudio {
		mockAudio[i] = byte(i % 256)
	}

	out := make(chan []byte, 4)
	go func() {
		defer close(out)
		const chunkSize = 1024
		for start := 0; start < len(mockAudio); start += chunkSize {
			end := start + chunkSize
			if end > len(mockAudio) {
				end = len(mockAudio)
			}
			select {
			case out <- mockAudio[start:end]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// AvailableVoices returns a fixed voice list
func (t *MockTextToSpeech) AvailableVoices(ctx context.Context) ([]repositories.Voice, error) {
	return []repositories.Voice{
		{ID: "mock-voice", Name: "Mock Voice", Category: "mock"},
	}, nil
}

func (t *MockTextToSpeech) ContentType() string {
	return "audio/pcm"
}
