package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jbergloda1/swha-backend/domain/entities"
	"github.com/jbergloda1/swha-backend/domain/repositories"
)

type TranscriptRepository struct {
	collection *mongo.Collection
}

// NewTranscriptRepository creates a new MongoDB transcript repository
func NewTranscriptRepository(db *mongo.Database) *TranscriptRepository {
	return &TranscriptRepository{
		collection: db.Collection(transcriptsCollection),
	}
}

var _ repositories.TranscriptRepository = (*TranscriptRepository)(nil)

// Create implements repositories.TranscriptRepository
func (r *TranscriptRepository) Create(ctx context.Context, transcript *entities.Transcript) error {
	if transcript == nil {
		return errors.New("transcript cannot be nil")
	}
	if err := transcript.Validate(); err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, transcript); err != nil {
		return fmt.Errorf("failed to create transcript: %w", err)
	}
	return nil
}

// ListByUser implements repositories.TranscriptRepository
func (r *TranscriptRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.Transcript, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	opts := options.Find().SetSort(bson.D{{Key: "ended_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer cursor.Close(ctx)

	transcripts := make([]*entities.Transcript, 0)
	if err := cursor.All(ctx, &transcripts); err != nil {
		return nil, fmt.Errorf("failed to decode transcripts: %w", err)
	}
	return transcripts, nil
}
