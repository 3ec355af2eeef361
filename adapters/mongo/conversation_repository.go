package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lumenlabs/lumen-server/domain/entities"
	"github.com/lumenlabs/lumen-server/domain/repositories"
)

const defaultRecentLimit = 20

// ConversationRepository persists completed conversation entries
type ConversationRepository struct {
	collection *mongo.Collection
}

// NewConversationRepository creates a MongoDB-backed memory service
func NewConversationRepository(db *mongo.Database) repositories.MemoryService {
	return &ConversationRepository{
		collection: db.Collection("conversations"),
	}
}

// SaveConversation implements repositories.MemoryService
func (r *ConversationRepository) SaveConversation(ctx context.Context, entry *entities.ConversationEntry) (string, error) {
	if entry == nil {
		return "", errors.New("entry cannot be nil")
	}
	if err := entry.Validate(); err != nil {
		return "", fmt.Errorf("invalid entry: %w", err)
	}

	doc := bson.M{
		"_id":                entry.ID,
		"timestamp":          entry.Timestamp,
		"user_id":            entry.UserID,
		"question":           entry.Question,
		"response":           entry.Response,
		"has_photo":          entry.HasPhoto,
		"processing_time_ms": entry.ProcessingTimeMs,
		"status":             entry.Status,
		"category":           entry.Category,
		"location":           entry.Location,
	}
	if entry.Photo != nil {
		doc["photo"] = bson.M{
			"mime_type": entry.Photo.MimeType,
			"data":      primitive.Binary{Data: entry.Photo.Data},
		}
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to save conversation: %w", err)
	}
	return entry.ID, nil
}

// Search implements repositories.MemoryService. The query matches the
// question or response text, case-insensitively.
func (r *ConversationRepository) Search(ctx context.Context, userID, query string) ([]*entities.ConversationEntry, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{
		"user_id": userID,
		"$or": []bson.M{
			{"question": pattern},
			{"response": pattern},
		},
	}
	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetLimit(defaultRecentLimit)

	return r.find(ctx, filter, opts)
}

// Recent implements repositories.MemoryService
func (r *ConversationRepository) Recent(ctx context.Context, userID string, limit int) ([]*entities.ConversationEntry, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetLimit(int64(limit))

	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

func (r *ConversationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*entities.ConversationEntry, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*entities.ConversationEntry
	for cursor.Next(ctx) {
		var entry entities.ConversationEntry
		if err := cursor.Decode(&entry); err != nil {
			return nil, fmt.Errorf("failed to decode conversation: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return entries, nil
}
