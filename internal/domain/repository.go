package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type upsertFindCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

type insertFindCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

// BenchRepository persists and retrieves benches in MongoDB.
type BenchRepository struct {
	collection upsertFindCollection
}

// NewBenchRepository constructs a BenchRepository.
func NewBenchRepository(collection upsertFindCollection) *BenchRepository {
	return &BenchRepository{collection: collection}
}

// Upsert stores the bench for the given chat, keyed by chat_id. A repeated
// upsert updates the display name and leaves the creation time untouched, so
// the call is idempotent per chat. It reports whether a new bench was created.
func (r *BenchRepository) Upsert(ctx context.Context, chatID int64, displayName string) (bool, error) {
	if r == nil || r.collection == nil {
		return false, errors.New("bench repository is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if chatID == 0 {
		return false, errors.New("chat_id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)

	setFields := bson.M{}
	if name := strings.TrimSpace(displayName); name != "" {
		setFields["display_name"] = name
	}

	update := bson.M{
		"$setOnInsert": bson.M{
			"chat_id":    chatID,
			"created_at": now,
		},
	}
	if len(setFields) > 0 {
		update["$set"] = setFields
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"chat_id": chatID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("upsert bench: %w", err)
	}

	return result != nil && result.UpsertedCount > 0, nil
}

// GetByChatID fetches the bench for a chat.
func (r *BenchRepository) GetByChatID(ctx context.Context, chatID int64) (Bench, error) {
	if r == nil || r.collection == nil {
		return Bench{}, errors.New("bench repository is not initialized")
	}
	if ctx == nil {
		return Bench{}, errors.New("context is required")
	}
	if chatID == 0 {
		return Bench{}, errors.New("chat_id is required")
	}

	result := r.collection.FindOne(ctx, bson.M{"chat_id": chatID})
	if result == nil {
		return Bench{}, errors.New("find bench returned no result")
	}
	if err := result.Err(); err != nil {
		return Bench{}, fmt.Errorf("find bench: %w", err)
	}

	var bench Bench
	if err := result.Decode(&bench); err != nil {
		return Bench{}, fmt.Errorf("decode bench: %w", err)
	}

	return bench, nil
}

// LocationRepository persists and retrieves location records in MongoDB.
type LocationRepository struct {
	collection insertFindCollection
}

// NewLocationRepository constructs a LocationRepository.
func NewLocationRepository(collection insertFindCollection) *LocationRepository {
	return &LocationRepository{collection: collection}
}

// Append inserts a location record, stamping the date with the current server
// time when unset. Records are never updated afterwards.
func (r *LocationRepository) Append(ctx context.Context, record LocationRecord) (LocationRecord, error) {
	if r == nil || r.collection == nil {
		return LocationRecord{}, errors.New("location repository is not initialized")
	}
	if ctx == nil {
		return LocationRecord{}, errors.New("context is required")
	}
	if record.ChatID == 0 {
		return LocationRecord{}, errors.New("chat_id is required")
	}
	if record.UserID == "" {
		return LocationRecord{}, errors.New("user_id is required")
	}

	if record.Date.IsZero() {
		record.Date = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return LocationRecord{}, fmt.Errorf("insert location: %w", err)
	}

	return record, nil
}

// Latest returns the newest location record of a chat by date. When the chat
// has no records yet it reports found=false with a nil error.
func (r *LocationRepository) Latest(ctx context.Context, chatID int64) (LocationRecord, bool, error) {
	if r == nil || r.collection == nil {
		return LocationRecord{}, false, errors.New("location repository is not initialized")
	}
	if ctx == nil {
		return LocationRecord{}, false, errors.New("context is required")
	}
	if chatID == 0 {
		return LocationRecord{}, false, errors.New("chat_id is required")
	}

	result := r.collection.FindOne(ctx,
		bson.M{"chat_id": chatID},
		options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}}),
	)
	if result == nil {
		return LocationRecord{}, false, errors.New("find location returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return LocationRecord{}, false, nil
		}
		return LocationRecord{}, false, fmt.Errorf("find latest location: %w", err)
	}

	var record LocationRecord
	if err := result.Decode(&record); err != nil {
		return LocationRecord{}, false, fmt.Errorf("decode location: %w", err)
	}

	return record, true, nil
}
