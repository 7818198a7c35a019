package stt

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/jbergloda1/swha-backend/domain/repositories"
)

var _ repositories.SpeechToText = &GoogleSpeechToText{}

func TestGetAudioEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    speechpb.RecognitionConfig_AudioEncoding
		wantErr bool
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16, false},
		{"wav", speechpb.RecognitionConfig_LINEAR16, false},
		{"FLAC", speechpb.RecognitionConfig_FLAC, false},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS, false},
		{"webm_opus", speechpb.RecognitionConfig_WEBM_OPUS, false},
		{"AAC", speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, true},
	}

	for _, tt := range tests {
		got, err := getAudioEncoding(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("getAudioEncoding(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestTranscribeRejectsUnsupportedEncoding(t *testing.T) {
	// the encoding is checked before the client is used
	g := &GoogleSpeechToText{}
	_, err := g.TranscribeAudio(context.Background(), []byte{1}, repositories.AudioConfig{Encoding: "MP3"})
	if !errors.Is(err, repositories.ErrUnsupportedEncoding) {
		t.Errorf("Expected ErrUnsupportedEncoding for MP3, got %v", err)
	}
}

func TestRecognitionConfigDefaultsLanguage(t *testing.T) {
	cfg, err := recognitionConfig(repositories.AudioConfig{SampleRate: 16000, Encoding: "LINEAR16"})
	if err != nil {
		t.Fatalf("recognitionConfig() error = %v", err)
	}
	if cfg.LanguageCode != "en-US" || cfg.SampleRateHertz != 16000 {
		t.Errorf("Unexpected config: %v", cfg)
	}
}

func TestExceedsSyncLimit(t *testing.T) {
	linear := repositories.AudioConfig{SampleRate: 16000, Encoding: "LINEAR16"}
	limit := 16000 * 2 * maxSyncSeconds

	if exceedsSyncLimit(limit, linear) {
		t.Error("Audio at the limit should use the synchronous API")
	}
	if !exceedsSyncLimit(limit+1, linear) {
		t.Error("Audio above the limit should be streamed")
	}
	if exceedsSyncLimit(limit*10, repositories.AudioConfig{SampleRate: 16000, Encoding: "FLAC"}) {
		t.Error("Compressed audio size cannot be estimated and should not switch paths")
	}
}
