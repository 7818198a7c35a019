package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jbergloda1/swha-backend/domain/repositories"
	"github.com/jbergloda1/swha-backend/internal/streaming"
)

// Config represents the complete gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Streaming StreamingConfig `yaml:"streaming"`
	STT       STTConfig       `yaml:"stt"`
	TTS       TTSConfig       `yaml:"tts"`
	LLM       LLMConfig       `yaml:"llm"`
	Storage   StorageConfig   `yaml:"storage"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            string        `yaml:"port"`
	Env             string        `yaml:"env"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// AuthConfig contains token settings. The secret only comes from the environment.
type AuthConfig struct {
	JWTSecret string        `yaml:"-"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Issuer    string        `yaml:"issuer"`
}

// StreamingConfig bounds real-time transcription sessions
type StreamingConfig struct {
	PartialThresholdBytes int                      `yaml:"partial_threshold_bytes"`
	MaxBufferBytes        int                      `yaml:"max_buffer_bytes"`
	TranscribeTimeout     time.Duration            `yaml:"transcribe_timeout"`
	IdleTimeout           time.Duration            `yaml:"idle_timeout"`
	CleanupInterval       time.Duration            `yaml:"cleanup_interval"`
	Audio                 repositories.AudioConfig `yaml:"audio"`
}

// STTConfig selects and configures the speech recognition provider
type STTConfig struct {
	Provider      string `yaml:"provider"`
	WhisperModel  string `yaml:"whisper_model"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIAPIKey  string `yaml:"-"`
}

// TTSConfig selects and configures the speech synthesis provider
type TTSConfig struct {
	Provider     string `yaml:"provider"`
	VoiceID      string `yaml:"voice_id"`
	ModelID      string `yaml:"model_id"`
	OutputFormat string `yaml:"output_format"`
	BaseURL      string `yaml:"base_url"`
	MaxTextChars int    `yaml:"max_text_chars"`
	APIKey       string `yaml:"-"`
}

// LLMConfig selects and configures the question answering provider
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"-"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver        string `yaml:"driver"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

// Default returns a configuration that runs locally with mock providers
func Default() *Config {
	sc := streaming.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Env:             "development",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  25 << 20,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
			Issuer:   "swha-backend",
		},
		Streaming: StreamingConfig{
			PartialThresholdBytes: sc.PartialThresholdBytes,
			MaxBufferBytes:        sc.MaxBufferBytes,
			TranscribeTimeout:     sc.TranscribeTimeout,
			IdleTimeout:           sc.IdleTimeout,
			CleanupInterval:       30 * time.Second,
			Audio: repositories.AudioConfig{
				SampleRate: 16000,
				Encoding:   "LINEAR16",
				Language:   "en-US",
			},
		},
		STT: STTConfig{
			Provider:     "mock",
			WhisperModel: "whisper-1",
		},
		TTS: TTSConfig{
			Provider:     "mock",
			VoiceID:      "21m00Tcm4TlvDq8ikWAM",
			ModelID:      "eleven_multilingual_v2",
			OutputFormat: "mp3_44100_128",
			BaseURL:      "https://api.elevenlabs.io/v1",
			MaxTextChars: 5000,
		},
		LLM: LLMConfig{
			Provider: "mock",
			Model:    "gemini-2.0-flash",
		},
		Storage: StorageConfig{
			Driver:        "memory",
			MongoDatabase: "swha",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order. A .env file in the working directory is
// loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var firstErr error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", key, err)
				}
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", key, err)
				}
				return
			}
			*dst = d
		}
	}

	str("PORT", &c.Server.Port)
	str("APP_ENV", &c.Server.Env)
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	str("JWT_SECRET", &c.Auth.JWTSecret)
	dur("JWT_TTL", &c.Auth.TokenTTL)

	num("STREAM_PARTIAL_THRESHOLD_BYTES", &c.Streaming.PartialThresholdBytes)
	num("STREAM_MAX_BUFFER_BYTES", &c.Streaming.MaxBufferBytes)
	dur("STREAM_TRANSCRIBE_TIMEOUT", &c.Streaming.TranscribeTimeout)
	dur("STREAM_IDLE_TIMEOUT", &c.Streaming.IdleTimeout)
	num("STREAM_SAMPLE_RATE", &c.Streaming.Audio.SampleRate)
	str("STREAM_ENCODING", &c.Streaming.Audio.Encoding)
	str("STREAM_LANGUAGE", &c.Streaming.Audio.Language)

	str("STT_PROVIDER", &c.STT.Provider)
	str("WHISPER_MODEL", &c.STT.WhisperModel)
	str("OPENAI_BASE_URL", &c.STT.OpenAIBaseURL)
	str("OPENAI_API_KEY", &c.STT.OpenAIAPIKey)

	str("TTS_PROVIDER", &c.TTS.Provider)
	str("ELEVENLABS_API_KEY", &c.TTS.APIKey)
	str("ELEVENLABS_VOICE_ID", &c.TTS.VoiceID)
	str("ELEVENLABS_MODEL_ID", &c.TTS.ModelID)
	str("ELEVENLABS_OUTPUT_FORMAT", &c.TTS.OutputFormat)

	str("LLM_PROVIDER", &c.LLM.Provider)
	str("GEMINI_MODEL", &c.LLM.Model)
	str("GEMINI_API_KEY", &c.LLM.APIKey)

	str("STORAGE", &c.Storage.Driver)
	str("MONGODB_URI", &c.Storage.MongoURI)
	str("MONGODB_DATABASE", &c.Storage.MongoDatabase)

	return firstErr
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port cannot be empty")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", c.Auth.TokenTTL)
	}

	if err := c.Streaming.Session().Validate(); err != nil {
		return fmt.Errorf("streaming config: %w", err)
	}
	if c.Streaming.CleanupInterval <= 0 {
		return errors.New("streaming cleanup interval must be positive")
	}

	if err := oneOf("stt provider", c.STT.Provider, "google", "whisper", "mock"); err != nil {
		return err
	}
	if c.STT.Provider == "whisper" && c.STT.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required for the whisper provider")
	}

	if err := oneOf("tts provider", c.TTS.Provider, "elevenlabs", "mock"); err != nil {
		return err
	}
	if c.TTS.Provider == "elevenlabs" && c.TTS.APIKey == "" {
		return errors.New("ELEVENLABS_API_KEY is required for the elevenlabs provider")
	}

	if err := oneOf("llm provider", c.LLM.Provider, "gemini", "mock"); err != nil {
		return err
	}
	if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
		return errors.New("GEMINI_API_KEY is required for the gemini provider")
	}

	if err := oneOf("storage driver", c.Storage.Driver, "mongo", "memory"); err != nil {
		return err
	}
	if c.Storage.Driver == "mongo" && c.Storage.MongoURI == "" {
		return errors.New("MONGODB_URI is required for mongo storage")
	}

	return nil
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Session converts the streaming section into session limits
func (s StreamingConfig) Session() streaming.Config {
	return streaming.Config{
		PartialThresholdBytes: s.PartialThresholdBytes,
		MaxBufferBytes:        s.MaxBufferBytes,
		TranscribeTimeout:     s.TranscribeTimeout,
		IdleTimeout:           s.IdleTimeout,
	}
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, ", "), value)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
