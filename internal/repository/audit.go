package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"relay/internal/domain"
	"relay/pkg/logger"
)

type AuditRepository interface {
	CreateLog(ctx context.Context, log *domain.AuditLog) error
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	if db == nil {
		return noopAuditRepository{}
	}
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	payload, err := json.Marshal(auditLog.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_log (event_time, actor_user_id, conversation_id, event_type, payload)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)
		RETURNING id
	`

	err = r.db.QueryRow(ctx, query,
		auditLog.EventTime, auditLog.ActorUserID, auditLog.ConversationID,
		auditLog.EventType, payload,
	).Scan(&auditLog.ID)

	if err != nil {
		r.log.Error("Failed to create audit log", "error", err, "event_type", auditLog.EventType)
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// noopAuditRepository is used when no DATABASE_DSN is configured.
type noopAuditRepository struct{}

func (noopAuditRepository) CreateLog(context.Context, *domain.AuditLog) error { return nil }
