package entities

import (
	"testing"
	"time"
)

func TestNewTranscript(t *testing.T) {
	segments := []string{"hello", "world"}
	transcript := NewTranscript("user-1", "session-1", segments, TranscriptStatusCompleted)

	if transcript.ID == "" {
		t.Error("Expected transcript ID to be set")
	}

	if transcript.FullText != "hello world" {
		t.Errorf("Expected full text 'hello world', got '%s'", transcript.FullText)
	}

	// The record must not alias the caller's slice
	segments[0] = "changed"
	if transcript.Segments[0] != "hello" {
		t.Errorf("Expected segments to be copied, got %v", transcript.Segments)
	}
}

func TestTranscriptDuration(t *testing.T) {
	transcript := NewTranscript("user-1", "session-1", nil, TranscriptStatusCompleted)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	transcript.StartedAt = base
	transcript.EndedAt = base.Add(3 * time.Second)

	if transcript.Duration() != 3*time.Second {
		t.Errorf("Expected duration of 3s, got %v", transcript.Duration())
	}

	transcript.EndedAt = transcript.StartedAt.Add(-time.Second)
	if transcript.Duration() != 0 {
		t.Errorf("Expected zero duration when ended before started, got %v", transcript.Duration())
	}
}

func TestTranscriptValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Transcript)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Transcript) {}},
		{name: "missing user", mutate: func(tr *Transcript) { tr.UserID = "" }, wantErr: true},
		{name: "missing session", mutate: func(tr *Transcript) { tr.SessionID = "" }, wantErr: true},
		{name: "unknown status", mutate: func(tr *Transcript) { tr.Status = "bogus" }, wantErr: true},
		{name: "expired", mutate: func(tr *Transcript) { tr.Status = TranscriptStatusExpired }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transcript := NewTranscript("user-1", "session-1", []string{"a"}, TranscriptStatusCompleted)
			tt.mutate(transcript)

			err := transcript.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
