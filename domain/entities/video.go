package entities

import (
	"errors"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Video is an uploaded video file and its metadata. The content itself
// lives in the repository's blob store under the video ID.
type Video struct {
	ID               string    `json:"id" bson:"_id"`
	OwnerID          string    `json:"owner_id" bson:"owner_id"`
	Title            string    `json:"title" bson:"title"`
	Description      string    `json:"description,omitempty" bson:"description,omitempty"`
	Filename         string    `json:"filename" bson:"filename"`
	OriginalFilename string    `json:"original_filename" bson:"original_filename"`
	Format           string    `json:"format" bson:"format"`
	ContentType      string    `json:"content_type" bson:"content_type"`
	FileSize         int64     `json:"file_size" bson:"file_size"`
	IsPublic         bool      `json:"is_public" bson:"is_public"`
	ViewsCount       int64     `json:"views_count" bson:"views_count"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" bson:"updated_at"`
}

// NewVideo creates the record for an upload. The stored filename is derived
// from the new ID so it never collides.
func NewVideo(ownerID, title, description, originalFilename string, size int64, public bool) *Video {
	now := time.Now()
	id := uuid.NewString()
	format := strings.TrimPrefix(strings.ToLower(path.Ext(originalFilename)), ".")

	return &Video{
		ID:               id,
		OwnerID:          ownerID,
		Title:            strings.TrimSpace(title),
		Description:      strings.TrimSpace(description),
		Filename:         id + "." + format,
		OriginalFilename: originalFilename,
		Format:           format,
		ContentType:      VideoContentType(format),
		FileSize:         size,
		IsPublic:         public,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// VideoContentType maps a file extension to its MIME type
func VideoContentType(format string) string {
	switch format {
	case "mp4":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "mov":
		return "video/quicktime"
	case "mkv":
		return "video/x-matroska"
	case "avi":
		return "video/x-msvideo"
	default:
		return "application/octet-stream"
	}
}

// VisibleTo reports whether userID may watch the video
func (v *Video) VisibleTo(userID string, admin bool) bool {
	return v.IsPublic || admin || v.OwnerID == userID
}

// Touch bumps the update timestamp
func (v *Video) Touch() {
	v.UpdatedAt = time.Now()
}

// Validate validates the video metadata
func (v *Video) Validate() error {
	if v.OwnerID == "" {
		return errors.New("owner ID is required")
	}
	if v.Title == "" || len(v.Title) > 255 {
		return errors.New("title must be between 1 and 255 characters")
	}
	if v.FileSize <= 0 {
		return errors.New("video file is empty")
	}
	return nil
}
