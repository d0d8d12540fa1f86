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

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	FindUnreadFor(ctx context.Context, conversationID, readerID string) ([]string, error)
	MarkRead(ctx context.Context, messageIDs []string, readerID string) error
	SoftDelete(ctx context.Context, messageID, senderID string, at time.Time) (bool, error)
	Edit(ctx context.Context, messageID, senderID, content string, at time.Time) (bool, error)
	EnsureIndexes(ctx context.Context) error
}

type messageRepository struct {
	coll *mongo.Collection
	log  logger.Logger
}

func NewMessageRepository(db *mongo.Database, log logger.Logger) MessageRepository {
	return &messageRepository{coll: db.Collection(messagesCollection), log: log}
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	if message.DeliveredTo == nil {
		message.DeliveredTo = []string{}
	}
	if message.ReadBy == nil {
		message.ReadBy = []string{}
	}

	if _, err := r.coll.InsertOne(ctx, message); err != nil {
		r.log.Error("Failed to create message", "error", err, "conversation_id", message.ConversationID)
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var message domain.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&message)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to get message", "error", err, "message_id", id)
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &message, nil
}

// FindUnreadFor returns ids of visible messages in the conversation that were
// authored by someone else and not yet read by readerID, oldest first.
func (r *messageRepository) FindUnreadFor(ctx context.Context, conversationID, readerID string) ([]string, error) {
	filter := bson.M{
		"conversationId": conversationID,
		"senderId":       bson.M{"$ne": readerID},
		"readBy":         bson.M{"$ne": readerID},
		"isDeleted":      false,
	}
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		r.log.Error("Failed to find unread messages", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("failed to find unread messages: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode unread messages: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, messageIDs []string, readerID string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	_, err := r.coll.UpdateMany(ctx,
		markReadFilter(messageIDs, readerID),
		bson.M{"$addToSet": bson.M{"readBy": readerID}},
	)
	if err != nil {
		r.log.Error("Failed to mark messages read", "error", err, "reader_id", readerID)
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// markReadFilter never matches the reader's own messages or deleted ones.
func markReadFilter(messageIDs []string, readerID string) bson.M {
	return bson.M{
		"_id":       bson.M{"$in": messageIDs},
		"senderId":  bson.M{"$ne": readerID},
		"isDeleted": false,
	}
}

// SoftDelete flags the message as deleted when senderID authored it and it is
// not deleted yet. It reports whether a document changed.
func (r *messageRepository) SoftDelete(ctx context.Context, messageID, senderID string, at time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": messageID, "senderId": senderID, "isDeleted": false},
		bson.M{"$set": bson.M{"isDeleted": true, "deletedAt": at, "updatedAt": at}},
	)
	if err != nil {
		r.log.Error("Failed to delete message", "error", err, "message_id", messageID)
		return false, fmt.Errorf("failed to delete message: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *messageRepository) Edit(ctx context.Context, messageID, senderID, content string, at time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": messageID, "senderId": senderID, "isDeleted": false},
		bson.M{"$set": bson.M{"content": content, "isEdited": true, "editedAt": at, "updatedAt": at}},
	)
	if err != nil {
		r.log.Error("Failed to edit message", "error", err, "message_id", messageID)
		return false, fmt.Errorf("failed to edit message: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *messageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "senderId", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}
	return nil
}
