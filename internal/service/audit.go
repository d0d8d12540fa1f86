package service

import (
	"context"
	"time"

	"relay/internal/domain"
	"relay/internal/repository"
	"relay/pkg/logger"
)

type AuditService interface {
	LogEvent(ctx context.Context, actorUserID, conversationID, eventType string, payload map[string]interface{}) error
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actorUserID, conversationID, eventType string, payload map[string]interface{}) error {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	auditLog := &domain.AuditLog{
		EventTime:      time.Now().UTC(),
		ActorUserID:    actorUserID,
		ConversationID: conversationID,
		EventType:      eventType,
		Payload:        payload,
	}

	if err := s.auditRepo.CreateLog(ctx, auditLog); err != nil {
		s.log.Warn("Audit event dropped", "error", err, "event_type", eventType)
		return err
	}
	return nil
}
