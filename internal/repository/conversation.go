package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"relay/internal/domain"
	apperrors "relay/pkg/errors"
	"relay/pkg/logger"
)

type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListIDsByParticipant(ctx context.Context, userID string) ([]string, error)
	TouchLastMessage(ctx context.Context, conversationID, messageID string, recipients []string, at time.Time) error
	ResetUnread(ctx context.Context, conversationID, userID string) error
	EnsureIndexes(ctx context.Context) error
}

type conversationRepository struct {
	coll *mongo.Collection
	log  logger.Logger
}

func NewConversationRepository(db *mongo.Database, log logger.Logger) ConversationRepository {
	return &conversationRepository{coll: db.Collection(conversationsCollection), log: log}
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrConversationNotFound
		}
		r.log.Error("Failed to get conversation", "error", err, "conversation_id", id)
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conv, nil
}

func (r *conversationRepository) ListIDsByParticipant(ctx context.Context, userID string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})

	cursor, err := r.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		r.log.Error("Failed to list conversations", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// TouchLastMessage moves the preview pointer and bumps unread counters of
// the recipients in one update.
func (r *conversationRepository) TouchLastMessage(ctx context.Context, conversationID, messageID string, recipients []string, at time.Time) error {
	update := bson.M{
		"$set": bson.M{"lastMessage": messageID, "updatedAt": at},
	}
	if len(recipients) > 0 {
		inc := bson.M{}
		for _, uid := range recipients {
			inc["unreadCounts."+uid] = 1
		}
		update["$inc"] = inc
	}

	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": conversationID}, update); err != nil {
		return fmt.Errorf("failed to update conversation preview: %w", err)
	}
	return nil
}

func (r *conversationRepository) ResetUnread(ctx context.Context, conversationID, userID string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"unreadCounts." + userID: 0}},
	)
	if err != nil {
		return fmt.Errorf("failed to reset unread counter: %w", err)
	}
	return nil
}

func (r *conversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants", Value: 1}}},
		{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create conversation indexes: %w", err)
	}
	return nil
}
