package stt

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jbergloda1/swha-backend/domain/repositories"
)

// MockSpeechToText is a placeholder implementation for speech recognition
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(audioData) == 0 {
		return "", errors.New("no audio data received")
	}

	s.logger.Debug("Processing mock speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	// Mock transcription based on audio size
	switch {
	case len(audioData) > 64000:
		return fmt.Sprintf("this is a long stretch of speech of %d bytes", len(audioData)), nil
	case len(audioData) > 16000:
		return "thanks for listening", nil
	case len(audioData) > 1000:
		return "hello there", nil
	default:
		return "hi", nil
	}
}
