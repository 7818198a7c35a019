package repositories

import (
	"context"
	"errors"

	"github.com/jbergloda1/swha-backend/domain/entities"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field is already taken
	ErrDuplicate = errors.New("record already exists")
)

// UserRepository defines data access methods for users
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	Update(ctx context.Context, user *entities.User) error
}

// TranscriptRepository stores finished streaming transcripts
type TranscriptRepository interface {
	Create(ctx context.Context, transcript *entities.Transcript) error
	// ListByUser returns the newest transcripts first
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.Transcript, error)
}

// VideoFilter selects a page of videos. Results are ordered newest first.
type VideoFilter struct {
	// OwnerID restricts results to one owner when set
	OwnerID string
	// Search matches title or description, case-insensitively
	Search string
	// PublicOnly hides private videos
	PublicOnly bool
	Offset     int
	Limit      int
}

// VideoRepository stores video metadata together with the uploaded content
type VideoRepository interface {
	Create(ctx context.Context, video *entities.Video, content []byte) error
	GetByID(ctx context.Context, id string) (*entities.Video, error)
	// List returns the requested page and the total number of matches
	List(ctx context.Context, filter VideoFilter) ([]*entities.Video, int64, error)
	Update(ctx context.Context, video *entities.Video) error
	// Delete removes the record and its content
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
	Content(ctx context.Context, id string) ([]byte, error)
}
