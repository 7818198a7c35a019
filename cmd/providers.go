package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jbergloda1/swha-backend/adapters/llm"
	"github.com/jbergloda1/swha-backend/adapters/memory"
	"github.com/jbergloda1/swha-backend/adapters/mongo"
	"github.com/jbergloda1/swha-backend/adapters/stt"
	"github.com/jbergloda1/swha-backend/adapters/tts"
	"github.com/jbergloda1/swha-backend/domain/repositories"
	"github.com/jbergloda1/swha-backend/internal/config"
)

type providers struct {
	stt         repositories.SpeechToText
	tts         repositories.TextToSpeech
	answerer    repositories.QuestionAnswerer
	users       repositories.UserRepository
	transcripts repositories.TranscriptRepository
	videos      repositories.VideoRepository

	closers []func()
}

func (p *providers) close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// newProviders builds the adapters selected by configuration
func newProviders(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*providers, error) {
	p := &providers{}

	if err := p.initSTT(ctx, cfg.STT, logger); err != nil {
		p.close()
		return nil, err
	}
	if err := p.initTTS(cfg.TTS, logger); err != nil {
		p.close()
		return nil, err
	}
	if err := p.initLLM(ctx, cfg.LLM, logger); err != nil {
		p.close()
		return nil, err
	}
	if err := p.initStorage(ctx, cfg.Storage, logger); err != nil {
		p.close()
		return nil, err
	}
	return p, nil
}

func (p *providers) initSTT(ctx context.Context, cfg config.STTConfig, logger *zap.Logger) error {
	switch cfg.Provider {
	case "google":
		google, err := stt.NewGoogleSpeechToText(ctx, logger)
		if err != nil {
			return err
		}
		p.stt = google
		p.closers = append(p.closers, func() { google.Close() })
	case "whisper":
		whisper, err := stt.NewWhisperSpeechToText(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.WhisperModel, logger)
		if err != nil {
			return err
		}
		p.stt = whisper
	default:
		p.stt = stt.NewMockSpeechToText(logger)
	}
	return nil
}

func (p *providers) initTTS(cfg config.TTSConfig, logger *zap.Logger) error {
	if cfg.Provider != "elevenlabs" {
		p.tts = tts.NewMockTextToSpeech(logger)
		return nil
	}

	elevenLabs, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
		APIKey:       cfg.APIKey,
		APIBaseURL:   cfg.BaseURL,
		VoiceID:      cfg.VoiceID,
		ModelID:      cfg.ModelID,
		OutputFormat: cfg.OutputFormat,
	}, logger)
	if err != nil {
		return err
	}
	p.tts = elevenLabs
	return nil
}

func (p *providers) initLLM(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) error {
	if cfg.Provider != "gemini" {
		p.answerer = llm.NewMockAnswerer()
		return nil
	}

	gemini, err := llm.NewGeminiAnswerer(ctx, llm.GeminiConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
	}, logger)
	if err != nil {
		return err
	}
	p.answerer = gemini
	return nil
}

func (p *providers) initStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) error {
	if cfg.Driver != "mongo" {
		p.users = memory.NewUserRepository()
		p.transcripts = memory.NewTranscriptRepository()
		p.videos = memory.NewVideoRepository()
		return nil
	}

	client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		return err
	}
	p.closers = append(p.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(ctx)
	})

	if err := client.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to prepare MongoDB: %w", err)
	}

	p.users = mongo.NewUserRepository(client.Database)
	p.transcripts = mongo.NewTranscriptRepository(client.Database)
	p.videos = mongo.NewVideoRepository(client.Database)
	return nil
}
