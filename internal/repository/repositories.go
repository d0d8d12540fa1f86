package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"relay/pkg/logger"
)

type Repositories struct {
	User         UserRepository
	Conversation ConversationRepository
	Message      MessageRepository
	Audit        AuditRepository
	RateLimit    RateLimitRepository
}

// NewRepositories wires the stores. db may be nil, in which case audit rows
// are discarded.
func NewRepositories(mongoDB *mongo.Database, db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{
		User:         NewUserRepository(mongoDB, log),
		Conversation: NewConversationRepository(mongoDB, log),
		Message:      NewMessageRepository(mongoDB, log),
		Audit:        NewAuditRepository(db, log),
		RateLimit:    NewRateLimitRepository(redis, log),
	}

	if db == nil {
		log.Warn("Audit log disabled, DATABASE_DSN is empty")
	}

	return repos
}
