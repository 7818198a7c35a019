package usecase

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/jbergloda1/swha-backend/adapters/memory"
	"github.com/jbergloda1/swha-backend/domain/entities"
	"github.com/jbergloda1/swha-backend/domain/repositories"
	"github.com/jbergloda1/swha-backend/internal/streaming"
)

type recordingSTT struct {
	configs []repositories.AudioConfig
	text    string
	err     error
}

func (r *recordingSTT) TranscribeAudio(_ context.Context, _ []byte, config repositories.AudioConfig) (string, error) {
	r.configs = append(r.configs, config)
	return r.text, r.err
}

var streamAudio = repositories.AudioConfig{SampleRate: 16000, Encoding: "LINEAR16", Language: "en-US"}

func newTranscriptionService(t *testing.T, stt repositories.SpeechToText) (*TranscriptionService, *memory.TranscriptRepository) {
	repo := memory.NewTranscriptRepository()
	return NewTranscriptionService(stt, repo, streamAudio, 1024, zaptest.NewLogger(t)), repo
}

func wavHeader(rate uint32) []byte {
	h := make([]byte, 44)
	copy(h[0:4], "RIFF")
	copy(h[8:12], "WAVE")
	binary.LittleEndian.PutUint32(h[24:28], rate)
	return h
}

func TestTranscribeUsesStreamAudioConfig(t *testing.T) {
	stt := &recordingSTT{text: "hello"}
	svc, _ := newTranscriptionService(t, stt)

	text, err := svc.Transcribe(context.Background(), []byte{1, 2})
	if err != nil || text != "hello" {
		t.Fatalf("Transcribe() = %q, %v", text, err)
	}
	if stt.configs[0] != streamAudio {
		t.Errorf("Expected stream audio config, got %+v", stt.configs[0])
	}
}

func TestTranscribeFile(t *testing.T) {
	tests := []struct {
		name         string
		filename     string
		data         []byte
		language     string
		wantEncoding string
		wantRate     int
		wantLanguage string
		wantErr      error
	}{
		{"wav reads header rate", "clip.WAV", wavHeader(8000), "", "WAV", 8000, "en-US", nil},
		{"flac", "clip.flac", []byte{1}, "vi-VN", "FLAC", 0, "vi-VN", nil},
		{"raw uses stream config", "clip.pcm", []byte{1}, "", "LINEAR16", 16000, "en-US", nil},
		{"webm", "clip.webm", []byte{1}, "", "WEBM_OPUS", 0, "en-US", nil},
		{"unknown extension", "clip.txt", []byte{1}, "", "", 0, "", ErrUnsupportedAudio},
		{"empty", "clip.wav", nil, "", "", 0, "", ErrInvalidInput},
		{"too large", "clip.wav", make([]byte, 2048), "", "", 0, "", ErrAudioTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stt := &recordingSTT{text: "ok"}
			svc, _ := newTranscriptionService(t, stt)

			result, err := svc.TranscribeFile(context.Background(), tt.data, tt.filename, tt.language)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				if !IsClientError(err) {
					t.Errorf("Expected %v to be a client error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("TranscribeFile() error = %v", err)
			}

			got := stt.configs[0]
			if got.Encoding != tt.wantEncoding || got.SampleRate != tt.wantRate || got.Language != tt.wantLanguage {
				t.Errorf("Unexpected config %+v", got)
			}
			if result.Text != "ok" || result.Language != tt.wantLanguage {
				t.Errorf("Unexpected result %+v", result)
			}
		})
	}
}

func TestTranscribeFileProviderError(t *testing.T) {
	svc, _ := newTranscriptionService(t, &recordingSTT{err: errors.New("quota")})

	_, err := svc.TranscribeFile(context.Background(), []byte{1}, "a.flac", "")
	if err == nil || IsClientError(err) {
		t.Errorf("Expected provider error, got %v", err)
	}
}

func TestTranscribeFileProviderRejectsEncoding(t *testing.T) {
	stt := &recordingSTT{err: fmt.Errorf("%w: MP3", repositories.ErrUnsupportedEncoding)}
	svc, _ := newTranscriptionService(t, stt)

	_, err := svc.TranscribeFile(context.Background(), []byte{1}, "clip.mp3", "")
	if !errors.Is(err, ErrUnsupportedAudio) || !IsClientError(err) {
		t.Errorf("Expected an unsupported audio client error, got %v", err)
	}
}

func TestFetchAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/small.wav":
			w.Write([]byte("RIFF"))
		case "/big.wav":
			w.Write(make([]byte, 4096))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	svc := NewTranscriptionService(&recordingSTT{}, memory.NewTranscriptRepository(), streamAudio, 1024,
		zaptest.NewLogger(t), WithPrivateNetworks())
	ctx := context.Background()

	data, name, err := svc.FetchAudio(ctx, server.URL+"/small.wav")
	if err != nil || string(data) != "RIFF" || name != "small.wav" {
		t.Errorf("FetchAudio() = %q, %q, %v", data, name, err)
	}

	if _, _, err := svc.FetchAudio(ctx, server.URL+"/big.wav"); !errors.Is(err, ErrAudioTooLarge) {
		t.Errorf("Expected ErrAudioTooLarge, got %v", err)
	}
	if _, _, err := svc.FetchAudio(ctx, server.URL+"/missing.wav"); err == nil {
		t.Error("Expected error for 404")
	}
	if _, _, err := svc.FetchAudio(ctx, "ftp://example.com/a.wav"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for non-http URL, got %v", err)
	}
}

func TestFetchAudioRejectsNonPublicHosts(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("RIFF"))
	}))
	defer server.Close()

	svc, _ := newTranscriptionService(t, &recordingSTT{})

	urls := []string{
		server.URL + "/clip.wav",
		"http://localhost:1/clip.wav",
		"http://169.254.169.254/latest/meta-data",
		"http://10.0.0.1/clip.wav",
		"http://[::1]:1/clip.wav",
	}
	for _, u := range urls {
		_, _, err := svc.FetchAudio(context.Background(), u)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("FetchAudio(%q) = %v; want ErrInvalidInput", u, err)
		}
	}
	if hits != 0 {
		t.Errorf("Expected no request to reach the loopback server, got %d", hits)
	}
}

func TestSaveTranscript(t *testing.T) {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	base := streaming.Summary{
		SessionID:  "s-1",
		Segments:   []string{"hello there", "general kenobi"},
		ChunkCount: 3,
		TotalBytes: 6144,
		StartedAt:  started,
		EndedAt:    started.Add(5 * time.Second),
	}

	tests := []struct {
		reason     streaming.CloseReason
		started    bool
		wantStatus entities.TranscriptStatus
		wantSaved  bool
	}{
		{streaming.ReasonCompleted, true, entities.TranscriptStatusCompleted, true},
		{streaming.ReasonDegraded, true, entities.TranscriptStatusDegraded, true},
		{streaming.ReasonExpired, true, entities.TranscriptStatusExpired, true},
		{streaming.ReasonOverflow, true, entities.TranscriptStatusOverflow, true},
		{streaming.ReasonDisconnected, true, "", false},
		{streaming.ReasonExpired, false, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			svc, repo := newTranscriptionService(t, &recordingSTT{})
			summary := base
			summary.Reason = tt.reason
			if !tt.started {
				summary.StartedAt = time.Time{}
			}

			if err := svc.SaveTranscript(context.Background(), "user-1", summary); err != nil {
				t.Fatalf("SaveTranscript() error = %v", err)
			}

			saved, _ := repo.ListByUser(context.Background(), "user-1", 10)
			if !tt.wantSaved {
				if len(saved) != 0 {
					t.Errorf("Expected nothing saved, got %d", len(saved))
				}
				return
			}
			if len(saved) != 1 {
				t.Fatalf("Expected 1 transcript, got %d", len(saved))
			}
			got := saved[0]
			if got.Status != tt.wantStatus || got.FullText != "hello there general kenobi" {
				t.Errorf("Unexpected transcript %+v", got)
			}
			if got.ChunkCount != 3 || got.AudioBytes != 6144 || got.Duration() != 5*time.Second {
				t.Errorf("Unexpected counters %+v", got)
			}
		})
	}
}

func TestListTranscriptsClampsLimit(t *testing.T) {
	svc, repo := newTranscriptionService(t, &recordingSTT{})
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		repo.Create(ctx, entities.NewTranscript("u", "s", []string{"x"}, entities.TranscriptStatusCompleted))
	}

	got, err := svc.ListTranscripts(ctx, "u", 0)
	if err != nil {
		t.Fatalf("ListTranscripts() error = %v", err)
	}
	if len(got) != 20 {
		t.Errorf("Expected default limit of 20, got %d", len(got))
	}
}
