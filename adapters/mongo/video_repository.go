package mongo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jbergloda1/swha-backend/domain/entities"
	"github.com/jbergloda1/swha-backend/domain/repositories"
)

// VideoRepository keeps metadata in the videos collection and the file
// content in a GridFS bucket keyed by video ID.
type VideoRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
}

// NewVideoRepository creates a new MongoDB video repository
func NewVideoRepository(db *mongo.Database) *VideoRepository {
	return &VideoRepository{
		db:         db,
		collection: db.Collection(videosCollection),
	}
}

var _ repositories.VideoRepository = (*VideoRepository)(nil)

// bucket opens the content bucket with deadlines taken from ctx. Buckets
// carry their deadlines as state, so each call gets its own.
func (r *VideoRepository) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(r.db, options.GridFSBucket().SetName(videoContentBucket))
	if err != nil {
		return nil, fmt.Errorf("failed to open video bucket: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		bucket.SetReadDeadline(deadline)
		bucket.SetWriteDeadline(deadline)
	}
	return bucket, nil
}

// Create implements repositories.VideoRepository
func (r *VideoRepository) Create(ctx context.Context, video *entities.Video, content []byte) error {
	if video == nil {
		return errors.New("video cannot be nil")
	}
	if err := video.Validate(); err != nil {
		return err
	}

	bucket, err := r.bucket(ctx)
	if err != nil {
		return err
	}
	if err := bucket.UploadFromStreamWithID(video.ID, video.Filename, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("failed to store video content: %w", err)
	}

	if _, err := r.collection.InsertOne(ctx, video); err != nil {
		_ = bucket.DeleteContext(ctx, video.ID)
		if mongo.IsDuplicateKeyError(err) {
			return repositories.ErrDuplicate
		}
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

// GetByID implements repositories.VideoRepository
func (r *VideoRepository) GetByID(ctx context.Context, id string) (*entities.Video, error) {
	var video entities.Video
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&video); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return &video, nil
}

// List implements repositories.VideoRepository
func (r *VideoRepository) List(ctx context.Context, filter repositories.VideoFilter) ([]*entities.Video, int64, error) {
	query := bson.M{}
	if filter.OwnerID != "" {
		query["owner_id"] = filter.OwnerID
	}
	if filter.PublicOnly {
		query["is_public"] = true
	}
	if filter.Search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count videos: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(filter.Offset))
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query videos: %w", err)
	}
	defer cursor.Close(ctx)

	videos := make([]*entities.Video, 0)
	if err := cursor.All(ctx, &videos); err != nil {
		return nil, 0, fmt.Errorf("failed to decode videos: %w", err)
	}
	return videos, total, nil
}

// Update implements repositories.VideoRepository
func (r *VideoRepository) Update(ctx context.Context, video *entities.Video) error {
	if video == nil || video.ID == "" {
		return errors.New("video ID cannot be empty")
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": video.ID}, video)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Delete implements repositories.VideoRepository
func (r *VideoRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if result.DeletedCount == 0 {
		return repositories.ErrNotFound
	}

	bucket, err := r.bucket(ctx)
	if err != nil {
		return err
	}
	if err := bucket.DeleteContext(ctx, id); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return fmt.Errorf("failed to delete video content: %w", err)
	}
	return nil
}

// IncrementViews implements repositories.VideoRepository
func (r *VideoRepository) IncrementViews(ctx context.Context, id string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views_count": 1}})
	if err != nil {
		return fmt.Errorf("failed to count view: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Content implements repositories.VideoRepository
func (r *VideoRepository) Content(ctx context.Context, id string) ([]byte, error) {
	bucket, err := r.bucket(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := bucket.DownloadToStream(id, &buf); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read video content: %w", err)
	}
	return buf.Bytes(), nil
}
