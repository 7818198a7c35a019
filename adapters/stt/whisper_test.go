package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap/zaptest"

	"github.com/jbergloda1/swha-backend/domain/repositories"
)

var _ repositories.SpeechToText = &WhisperSpeechToText{}

func TestWhisperTranscribeAudio(t *testing.T) {
	var gotFile []byte
	var gotLanguage, gotModel, gotFilename string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm error: %v", err)
		}
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile error: %v", err)
		} else {
			gotFilename = header.Filename
			gotFile, _ = io.ReadAll(file)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "  hello from whisper "})
	}))
	defer server.Close()

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	whisper := NewWhisperWithConfig(config, "", zaptest.NewLogger(t))

	pcm := bytes.Repeat([]byte{0x10, 0x20}, 800)
	text, err := whisper.TranscribeAudio(context.Background(), pcm, repositories.AudioConfig{
		SampleRate: 16000,
		Encoding:   "LINEAR16",
		Language:   "en-US",
	})
	if err != nil {
		t.Fatalf("TranscribeAudio() error = %v", err)
	}

	if text != "hello from whisper" {
		t.Errorf("Expected trimmed text, got %q", text)
	}
	if gotLanguage != "en" || gotModel != openai.Whisper1 || gotFilename != "audio.wav" {
		t.Errorf("Unexpected form: language=%q model=%q file=%q", gotLanguage, gotModel, gotFilename)
	}
	if len(gotFile) != 44+len(pcm) || string(gotFile[:4]) != "RIFF" {
		t.Errorf("Expected WAV upload of %d bytes, got %d", 44+len(pcm), len(gotFile))
	}
}

func TestWhisperPropagatesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "rate limit"}})
	}))
	defer server.Close()

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	whisper := NewWhisperWithConfig(config, "", zaptest.NewLogger(t))

	_, err := whisper.TranscribeAudio(context.Background(), []byte{1, 2}, repositories.AudioConfig{SampleRate: 16000, Encoding: "LINEAR16"})
	if err == nil || !strings.Contains(err.Error(), "whisper transcription failed") {
		t.Errorf("Expected wrapped API error, got %v", err)
	}
}

func TestWhisperRejectsEmptyAudio(t *testing.T) {
	whisper := NewWhisperWithConfig(openai.DefaultConfig("k"), "", zaptest.NewLogger(t))
	if _, err := whisper.TranscribeAudio(context.Background(), nil, repositories.AudioConfig{}); err == nil {
		t.Error("Expected error for empty audio")
	}
}

func TestNewWhisperRequiresKey(t *testing.T) {
	if _, err := NewWhisperSpeechToText("", "", "", zaptest.NewLogger(t)); err == nil {
		t.Error("Expected error for missing api key")
	}
}

func TestContainerize(t *testing.T) {
	tests := []struct {
		encoding string
		wantName string
		wantWAV  bool
		wantErr  bool
	}{
		{"LINEAR16", "audio.wav", true, false},
		{"MULAW", "audio.wav", true, false},
		{"FLAC", "audio.flac", false, false},
		{"WEBM_OPUS", "audio.webm", false, false},
		{"AMR", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			data, name, err := containerize([]byte{1, 2, 3, 4}, repositories.AudioConfig{SampleRate: 8000, Encoding: tt.encoding})
			if (err != nil) != tt.wantErr {
				t.Fatalf("containerize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if name != tt.wantName {
				t.Errorf("Expected filename %q, got %q", tt.wantName, name)
			}
			if tt.wantWAV != (len(data) == 48) {
				t.Errorf("Expected WAV wrapping = %v, got %d bytes", tt.wantWAV, len(data))
			}
		})
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	wav := encodeWAV(make([]byte, 100), 16000, 1, 16, wavFormatPCM)

	if string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatal("Missing RIFF markers")
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Errorf("Expected byte rate 32000, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 100 {
		t.Errorf("Expected data size 100, got %d", got)
	}
}
