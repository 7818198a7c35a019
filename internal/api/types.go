package api

import (
	"time"

	"github.com/jbergloda1/swha-backend/domain/entities"
	"github.com/jbergloda1/swha-backend/domain/repositories"
	"github.com/jbergloda1/swha-backend/usecase"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse reports liveness and streaming load
type HealthResponse struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	Version        string `json:"version"`
	ActiveSessions int    `json:"active_sessions"`
}

// RegisterRequest represents the request payload for account creation
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// LoginRequest accepts a username or email in Username
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse represents the response payload for a successful login
type TokenResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        *entities.User `json:"user"`
}

// UpdateProfileRequest leaves absent fields unchanged
type UpdateProfileRequest struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Bio      *string `json:"bio"`
}

// TranscriptListResponse wraps the caller's streaming transcripts
type TranscriptListResponse struct {
	Transcripts []*entities.Transcript `json:"transcripts"`
	Count       int                    `json:"count"`
}

// SynthesizeRequest represents the request payload for text-to-speech
type SynthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

// VoicesResponse lists the available synthesis voices
type VoicesResponse struct {
	Voices []repositories.Voice `json:"voices"`
}

// BatchQuestionRequest represents the request payload for batch answering
type BatchQuestionRequest struct {
	Questions []usecase.Question `json:"questions"`
}

// BatchAnswerResponse carries per-question results in request order
type BatchAnswerResponse struct {
	Results []usecase.QAResult `json:"results"`
}

// MessageResponse acknowledges an action without a body of its own
type MessageResponse struct {
	Message string `json:"message"`
}

// VideoUploadResponse reports one uploaded file
type VideoUploadResponse struct {
	VideoID  string `json:"video_id,omitempty"`
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Error    string `json:"error,omitempty"`
}

// VideoUpdateRequest leaves absent fields unchanged
type VideoUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}
