package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TranscriptStatus represents how a streaming session ended
type TranscriptStatus string

const (
	TranscriptStatusCompleted TranscriptStatus = "completed"
	TranscriptStatusDegraded  TranscriptStatus = "degraded"
	TranscriptStatusExpired   TranscriptStatus = "expired"
	TranscriptStatusOverflow  TranscriptStatus = "overflow"
)

// Transcript is the persisted result of one streaming transcription session
type Transcript struct {
	ID         string           `json:"id" bson:"_id"`
	UserID     string           `json:"user_id" bson:"user_id"`
	SessionID  string           `json:"session_id" bson:"session_id"`
	Segments   []string         `json:"segments" bson:"segments"`
	FullText   string           `json:"full_text" bson:"full_text"`
	Status     TranscriptStatus `json:"status" bson:"status"`
	Error      string           `json:"error,omitempty" bson:"error,omitempty"`
	ChunkCount int              `json:"chunk_count" bson:"chunk_count"`
	AudioBytes int              `json:"audio_bytes" bson:"audio_bytes"`
	StartedAt  time.Time        `json:"started_at" bson:"started_at"`
	EndedAt    time.Time        `json:"ended_at" bson:"ended_at"`
}

// NewTranscript creates a transcript record for a finished session
func NewTranscript(userID, sessionID string, segments []string, status TranscriptStatus) *Transcript {
	copied := make([]string, len(segments))
	copy(copied, segments)

	now := time.Now()
	return &Transcript{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Segments:  copied,
		FullText:  strings.Join(copied, " "),
		Status:    status,
		StartedAt: now,
		EndedAt:   now,
	}
}

// Duration returns the wall-clock length of the session
func (t *Transcript) Duration() time.Duration {
	if t.EndedAt.Before(t.StartedAt) {
		return 0
	}
	return t.EndedAt.Sub(t.StartedAt)
}

// Validate validates the transcript data
func (t *Transcript) Validate() error {
	if t.UserID == "" {
		return errors.New("user_id is required")
	}

	if t.SessionID == "" {
		return errors.New("session_id is required")
	}

	switch t.Status {
	case TranscriptStatusCompleted, TranscriptStatusDegraded, TranscriptStatusExpired, TranscriptStatusOverflow:
	default:
		return errors.New("invalid transcript status")
	}

	return nil
}
