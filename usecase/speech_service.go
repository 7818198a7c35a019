package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jbergloda1/swha-backend/domain/repositories"
)

// SpeechService synthesizes speech from text
type SpeechService struct {
	textToSpeech repositories.TextToSpeech
	maxTextChars int
	logger       *zap.Logger
}

// NewSpeechService creates a new speech synthesis service
func NewSpeechService(tts repositories.TextToSpeech, maxTextChars int, logger *zap.Logger) *SpeechService {
	return &SpeechService{textToSpeech: tts, maxTextChars: maxTextChars, logger: logger}
}

// Synthesize returns a stream of audio chunks and their MIME type
func (s *SpeechService) Synthesize(ctx context.Context, text, voiceID string) (<-chan []byte, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, "", fmt.Errorf("%w: text cannot be empty", ErrInvalidInput)
	}
	if s.maxTextChars > 0 && utf8.RuneCountInString(text) > s.maxTextChars {
		return nil, "", fmt.Errorf("%w: text exceeds %d characters", ErrInvalidInput, s.maxTextChars)
	}

	s.logger.Debug("Synthesizing speech",
		zap.Int("textLength", len(text)),
		zap.String("voiceID", voiceID))

	audio, err := s.textToSpeech.ConvertTextToSpeech(ctx, text, voiceID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to synthesize speech: %w", err)
	}
	return audio, s.textToSpeech.ContentType(), nil
}

// Voices lists the voices the provider offers
func (s *SpeechService) Voices(ctx context.Context) ([]repositories.Voice, error) {
	voices, err := s.textToSpeech.AvailableVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}
	return voices, nil
}
