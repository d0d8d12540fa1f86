package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"relay/internal/domain"
	"relay/internal/repository"
	apperrors "relay/pkg/errors"
	"relay/pkg/logger"
)

// MembershipService answers which conversations a user belongs to. Every
// room-scoped event goes through Authorize; join-time membership is never
// trusted.
type MembershipService interface {
	Rooms(ctx context.Context, userID string) ([]string, error)
	Authorize(ctx context.Context, conversationID, userID, event string) (*domain.Conversation, error)
}

type membershipService struct {
	convRepo repository.ConversationRepository
	audit    AuditService
	log      logger.Logger
}

func NewMembershipService(convRepo repository.ConversationRepository, audit AuditService, log logger.Logger) MembershipService {
	return &membershipService{
		convRepo: convRepo,
		audit:    audit,
		log:      log,
	}
}

func (s *membershipService) Rooms(ctx context.Context, userID string) ([]string, error) {
	return s.convRepo.ListIDsByParticipant(ctx, userID)
}

// Authorize loads the conversation and checks that userID is currently one of
// its participants. Unknown conversations are reported as ErrForbidden so
// callers cannot enumerate ids.
func (s *membershipService) Authorize(ctx context.Context, conversationID, userID, event string) (*domain.Conversation, error) {
	if !ValidID(conversationID) {
		return nil, apperrors.ErrInvalidID
	}

	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrConversationNotFound) {
			return nil, fmt.Errorf("failed to authorize: %w", err)
		}
		conv = nil
	}

	if conv == nil || !conv.HasParticipant(userID) {
		s.log.Warn("Forbidden realtime event",
			"user_id", userID,
			"conversation_id", conversationID,
			"event", event,
		)
		_ = s.audit.LogEvent(ctx, userID, conversationID, domain.EventTypeForbiddenEvent, map[string]interface{}{
			"event": event,
		})
		return nil, apperrors.ErrForbidden
	}

	return conv, nil
}

// ValidID reports whether id is a well-formed entity id.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
