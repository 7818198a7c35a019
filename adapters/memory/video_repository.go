package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/jbergloda1/swha-backend/domain/entities"
	"github.com/jbergloda1/swha-backend/domain/repositories"
)

// VideoRepository keeps video records and their content in memory
type VideoRepository struct {
	mu      sync.RWMutex
	videos  map[string]*entities.Video
	content map[string][]byte
}

var _ repositories.VideoRepository = (*VideoRepository)(nil)

// NewVideoRepository creates an empty in-memory video repository
func NewVideoRepository() *VideoRepository {
	return &VideoRepository{
		videos:  make(map[string]*entities.Video),
		content: make(map[string][]byte),
	}
}

func (r *VideoRepository) Create(ctx context.Context, video *entities.Video, content []byte) error {
	if video == nil || video.ID == "" {
		return errors.New("video ID cannot be empty")
	}
	if err := video.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.videos[video.ID]; exists {
		return repositories.ErrDuplicate
	}
	stored := *video
	r.videos[video.ID] = &stored
	r.content[video.ID] = append([]byte(nil), content...)
	return nil
}

func (r *VideoRepository) GetByID(ctx context.Context, id string) (*entities.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	video, ok := r.videos[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *video
	return &copied, nil
}

func (r *VideoRepository) List(ctx context.Context, filter repositories.VideoFilter) ([]*entities.Video, int64, error) {
	search := strings.ToLower(filter.Search)

	r.mu.RLock()
	matches := make([]*entities.Video, 0)
	for _, v := range r.videos {
		if filter.OwnerID != "" && v.OwnerID != filter.OwnerID {
			continue
		}
		if filter.PublicOnly && !v.IsPublic {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(v.Title), search) &&
			!strings.Contains(strings.ToLower(v.Description), search) {
			continue
		}
		copied := *v
		matches = append(matches, &copied)
	}
	r.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := int64(len(matches))
	if filter.Offset >= len(matches) {
		return []*entities.Video{}, total, nil
	}
	matches = matches[filter.Offset:]
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, total, nil
}

func (r *VideoRepository) Update(ctx context.Context, video *entities.Video) error {
	if video == nil || video.ID == "" {
		return errors.New("video ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.videos[video.ID]; !ok {
		return repositories.ErrNotFound
	}
	stored := *video
	r.videos[video.ID] = &stored
	return nil
}

func (r *VideoRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.videos, id)
	delete(r.content, id)
	return nil
}

func (r *VideoRepository) IncrementViews(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	video, ok := r.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	video.ViewsCount++
	return nil
}

func (r *VideoRepository) Content(ctx context.Context, id string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.content[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}
