package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jbergloda1/swha-backend/domain/entities"
	"github.com/jbergloda1/swha-backend/domain/repositories"
)

// TranscriptRepository keeps finished transcripts in memory, per user
type TranscriptRepository struct {
	mu     sync.RWMutex
	byUser map[string][]*entities.Transcript
}

var _ repositories.TranscriptRepository = (*TranscriptRepository)(nil)

// NewTranscriptRepository creates an empty in-memory transcript repository
func NewTranscriptRepository() *TranscriptRepository {
	return &TranscriptRepository{byUser: make(map[string][]*entities.Transcript)}
}

func (r *TranscriptRepository) Create(ctx context.Context, transcript *entities.Transcript) error {
	if transcript == nil {
		return errors.New("transcript cannot be nil")
	}
	if err := transcript.Validate(); err != nil {
		return err
	}

	stored := *transcript
	stored.Segments = append([]string(nil), transcript.Segments...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[transcript.UserID] = append(r.byUser[transcript.UserID], &stored)
	return nil
}

func (r *TranscriptRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.Transcript, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	r.mu.RLock()
	list := make([]*entities.Transcript, 0, len(r.byUser[userID]))
	for _, t := range r.byUser[userID] {
		copied := *t
		list = append(list, &copied)
	}
	r.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].EndedAt.After(list[j].EndedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
