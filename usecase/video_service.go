package usecase

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/jbergloda1/swha-backend/domain/entities"
	"github.com/jbergloda1/swha-backend/domain/repositories"
)

const (
	defaultVideosPerPage = 10
	maxVideosPerPage     = 100
)

var allowedVideoFormats = map[string]struct{}{
	"mp4": {}, "avi": {}, "mov": {}, "mkv": {}, "webm": {},
}

// VideoService manages uploaded videos and who may see them
type VideoService struct {
	videos        repositories.VideoRepository
	maxVideoBytes int64
	logger        *zap.Logger
}

// NewVideoService creates a new video service
func NewVideoService(videos repositories.VideoRepository, maxVideoBytes int64, logger *zap.Logger) *VideoService {
	return &VideoService{videos: videos, maxVideoBytes: maxVideoBytes, logger: logger}
}

// Viewer is the authenticated user acting on videos
type Viewer struct {
	UserID string
	Admin  bool
}

func (v Viewer) owns(video *entities.Video) bool {
	return v.Admin || video.OwnerID == v.UserID
}

// VideoUpload is a single uploaded file with its metadata
type VideoUpload struct {
	Title       string
	Description string
	Filename    string
	Public      bool
	Data        []byte
}

// UploadOutcome reports one file of a multi-file upload
type UploadOutcome struct {
	Filename string
	Video    *entities.Video
	Err      error
}

// VideoUpdate lists the mutable fields; nil leaves a field unchanged
type VideoUpdate struct {
	Title       *string
	Description *string
	IsPublic    *bool
}

// VideoQuery selects a page of videos
type VideoQuery struct {
	Page    int
	PerPage int
	Search  string
	OwnerID string
}

// VideoPage is one page of a video listing
type VideoPage struct {
	Videos     []*entities.Video `json:"videos"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	TotalPages int               `json:"total_pages"`
}

// Upload stores a new video owned by viewer
func (s *VideoService) Upload(ctx context.Context, viewer Viewer, in VideoUpload) (*entities.Video, error) {
	format := strings.TrimPrefix(strings.ToLower(path.Ext(in.Filename)), ".")
	if _, ok := allowedVideoFormats[format]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVideo, path.Ext(in.Filename))
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: video file is empty", ErrInvalidInput)
	}
	if s.maxVideoBytes > 0 && int64(len(in.Data)) > s.maxVideoBytes {
		return nil, ErrVideoTooLarge
	}

	video := entities.NewVideo(viewer.UserID, in.Title, in.Description, in.Filename, int64(len(in.Data)), in.Public)
	if err := video.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.videos.Create(ctx, video, in.Data); err != nil {
		return nil, fmt.Errorf("failed to store video: %w", err)
	}

	s.logger.Info("Video uploaded",
		zap.String("videoID", video.ID),
		zap.String("ownerID", video.OwnerID),
		zap.Int64("size", video.FileSize))
	return video, nil
}

// UploadMany stores each file independently; one bad file does not stop
// the others.
func (s *VideoService) UploadMany(ctx context.Context, viewer Viewer, uploads []VideoUpload) []UploadOutcome {
	outcomes := make([]UploadOutcome, 0, len(uploads))
	for _, in := range uploads {
		video, err := s.Upload(ctx, viewer, in)
		if err != nil {
			s.logger.Warn("Skipping video upload", zap.String("filename", in.Filename), zap.Error(err))
		}
		outcomes = append(outcomes, UploadOutcome{Filename: in.Filename, Video: video, Err: err})
	}
	return outcomes
}

// List returns a page of the videos viewer may see. Private videos are only
// listed for their owner or an admin.
func (s *VideoService) List(ctx context.Context, viewer Viewer, q VideoQuery) (*VideoPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = defaultVideosPerPage
	}
	if q.PerPage > maxVideosPerPage {
		q.PerPage = maxVideosPerPage
	}

	filter := repositories.VideoFilter{
		OwnerID:    q.OwnerID,
		Search:     strings.TrimSpace(q.Search),
		PublicOnly: !viewer.Admin && (q.OwnerID == "" || q.OwnerID != viewer.UserID),
		Offset:     (q.Page - 1) * q.PerPage,
		Limit:      q.PerPage,
	}

	videos, total, err := s.videos.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}

	return &VideoPage{
		Videos:     videos,
		Total:      total,
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalPages: int((total + int64(q.PerPage) - 1) / int64(q.PerPage)),
	}, nil
}

// Get returns a video viewer may see
func (s *VideoService) Get(ctx context.Context, viewer Viewer, id string) (*entities.Video, error) {
	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	if !video.VisibleTo(viewer.UserID, viewer.Admin) {
		return nil, ErrForbidden
	}
	return video, nil
}

// Update applies the non-nil fields of update to a video viewer owns
func (s *VideoService) Update(ctx context.Context, viewer Viewer, id string, update VideoUpdate) (*entities.Video, error) {
	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	if !viewer.owns(video) {
		return nil, ErrForbidden
	}

	if update.Title != nil {
		video.Title = strings.TrimSpace(*update.Title)
	}
	if update.Description != nil {
		video.Description = strings.TrimSpace(*update.Description)
	}
	if update.IsPublic != nil {
		video.IsPublic = *update.IsPublic
	}
	if err := video.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	video.Touch()

	if err := s.videos.Update(ctx, video); err != nil {
		return nil, fmt.Errorf("failed to update video: %w", err)
	}
	return video, nil
}

// Delete removes a video viewer owns together with its content
func (s *VideoService) Delete(ctx context.Context, viewer Viewer, id string) error {
	video, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get video: %w", err)
	}
	if !viewer.owns(video) {
		return ErrForbidden
	}

	if err := s.videos.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	s.logger.Info("Video deleted", zap.String("videoID", id), zap.String("by", viewer.UserID))
	return nil
}

// Open returns a video and its content for playback and counts the view
func (s *VideoService) Open(ctx context.Context, viewer Viewer, id string) (*entities.Video, []byte, error) {
	video, err := s.Get(ctx, viewer, id)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.videos.Content(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read video: %w", err)
	}

	if err := s.videos.IncrementViews(ctx, id); err != nil {
		s.logger.Warn("Failed to count view", zap.String("videoID", id), zap.Error(err))
	} else {
		video.ViewsCount++
	}
	return video, data, nil
}
