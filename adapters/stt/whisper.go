package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/jbergloda1/swha-backend/domain/repositories"
)

// WhisperSpeechToText implements SpeechToText on the OpenAI transcription API
type WhisperSpeechToText struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewWhisperSpeechToText creates a Whisper client. An empty baseURL uses the OpenAI default.
func NewWhisperSpeechToText(apiKey, baseURL, model string, logger *zap.Logger) (*WhisperSpeechToText, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return NewWhisperWithConfig(config, model, logger), nil
}

// NewWhisperWithConfig creates a Whisper client from a prepared client config
func NewWhisperWithConfig(config openai.ClientConfig, model string, logger *zap.Logger) *WhisperSpeechToText {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperSpeechToText{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
	}
}

// TranscribeAudio uploads the audio and returns the recognized text.
// Raw PCM is wrapped in a WAV container first since the API needs a file format.
func (w *WhisperSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", errors.New("no audio data received")
	}

	payload, filename, err := containerize(audioData, config)
	if err != nil {
		return "", err
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		Reader:   bytes.NewReader(payload),
		FilePath: filename,
		Language: whisperLanguage(config.Language),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription failed: %w", err)
	}

	w.logger.Debug("Whisper transcription finished",
		zap.Int("audioSize", len(audioData)),
		zap.Int("textLength", len(resp.Text)))
	return strings.TrimSpace(resp.Text), nil
}

func containerize(audioData []byte, config repositories.AudioConfig) ([]byte, string, error) {
	switch strings.ToUpper(config.Encoding) {
	case "LINEAR16", "":
		if config.SampleRate <= 0 {
			return nil, "", fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
		}
		return encodeWAV(audioData, config.SampleRate, 1, 16, wavFormatPCM), "audio.wav", nil
	case "MULAW":
		if config.SampleRate <= 0 {
			return nil, "", fmt.Errorf("sample rate must be positive, got %d", config.SampleRate)
		}
		return encodeWAV(audioData, config.SampleRate, 1, 8, wavFormatMULAW), "audio.wav", nil
	case "WAV":
		return audioData, "audio.wav", nil
	case "FLAC":
		return audioData, "audio.flac", nil
	case "MP3":
		return audioData, "audio.mp3", nil
	case "OGG_OPUS":
		return audioData, "audio.ogg", nil
	case "WEBM_OPUS":
		return audioData, "audio.webm", nil
	default:
		return nil, "", fmt.Errorf("unsupported encoding: %s", config.Encoding)
	}
}

// whisperLanguage reduces a BCP-47 tag such as "en-US" to the ISO-639-1 code Whisper expects
func whisperLanguage(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

const (
	wavFormatPCM   = 1
	wavFormatMULAW = 7
)

// encodeWAV wraps raw samples in a 44-byte RIFF/WAVE header
func encodeWAV(samples []byte, sampleRate, channels, bitsPerSample, format int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(samples)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], uint16(format))
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], samples)

	return buf
}
