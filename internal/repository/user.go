package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"relay/internal/domain"
	apperrors "relay/pkg/errors"
	"relay/pkg/logger"
)

// UserRepository is the read side of the user directory. Registration and
// profile edits belong to the CRUD service that owns these collections.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetSession(ctx context.Context, sessionID string) (*domain.UserSession, error)
}

type userRepository struct {
	users    *mongo.Collection
	sessions *mongo.Collection
	log      logger.Logger
}

func NewUserRepository(db *mongo.Database, log logger.Logger) UserRepository {
	return &userRepository{
		users:    db.Collection(usersCollection),
		sessions: db.Collection(sessionsCollection),
		log:      log,
	}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	opts := options.FindOne().SetProjection(bson.M{"password": 0, "passwordResetToken": 0})

	var user domain.User
	err := r.users.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrUserNotFound
		}
		r.log.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *userRepository) GetSession(ctx context.Context, sessionID string) (*domain.UserSession, error) {
	var session domain.UserSession
	err := r.sessions.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrSessionRevoked
		}
		r.log.Error("Failed to get session", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}
