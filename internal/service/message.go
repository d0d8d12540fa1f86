package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"relay/internal/domain"
	"relay/internal/repository"
	apperrors "relay/pkg/errors"
	"relay/pkg/logger"
)

const MaxContentLength = 10000

type SendRequest struct {
	ConversationID string
	SenderID       string
	Content        string
	Type           string
	Attachments    []domain.Attachment
}

// Normalize trims content, fills the default type and rejects payloads that
// can never be persisted. It does not touch the store.
func (r *SendRequest) Normalize() error {
	r.Content = strings.TrimSpace(r.Content)
	if r.Content == "" {
		return apperrors.ErrEmptyContent
	}
	if len(r.Content) > MaxContentLength {
		return fmt.Errorf("%w: content too long", apperrors.ErrBadRequest)
	}
	if r.Type == "" {
		r.Type = domain.MessageTypeText
	}
	if !domain.IsClientMessageType(r.Type) {
		return fmt.Errorf("%w: unsupported message type %q", apperrors.ErrBadRequest, r.Type)
	}
	if !ValidID(r.ConversationID) {
		return apperrors.ErrInvalidID
	}
	return nil
}

// MessageService owns message persistence and the delivery/read state of a
// message. Callers serialize Create, MarkRead and Delete per conversation.
type MessageService interface {
	Create(ctx context.Context, conv *domain.Conversation, req SendRequest, deliveredTo []string) (*domain.Message, error)
	MarkRead(ctx context.Context, conv *domain.Conversation, readerID string) ([]string, time.Time, error)
	// ConversationOf returns the conversation a message belongs to, so callers
	// can take the conversation lock before Delete.
	ConversationOf(ctx context.Context, messageID string) (string, error)
	Delete(ctx context.Context, messageID, requesterID string) (*domain.Message, *domain.Conversation, error)
	Edit(ctx context.Context, messageID, requesterID, content string) (*domain.Message, *domain.Conversation, error)
}

type messageService struct {
	msgRepo    repository.MessageRepository
	convRepo   repository.ConversationRepository
	membership MembershipService
	audit      AuditService
	log        logger.Logger
}

func NewMessageService(
	msgRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
	membership MembershipService,
	audit AuditService,
	log logger.Logger,
) MessageService {
	return &messageService{
		msgRepo:    msgRepo,
		convRepo:   convRepo,
		membership: membership,
		audit:      audit,
		log:        log,
	}
}

func (s *messageService) Create(ctx context.Context, conv *domain.Conversation, req SendRequest, deliveredTo []string) (*domain.Message, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	if conv == nil || conv.ID != req.ConversationID || !conv.HasParticipant(req.SenderID) {
		return nil, apperrors.ErrForbidden
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	message := &domain.Message{
		ID:             id.String(),
		ConversationID: conv.ID,
		SenderID:       req.SenderID,
		Content:        req.Content,
		Type:           req.Type,
		Attachments:    req.Attachments,
		DeliveredTo:    recipientsOnly(conv, req.SenderID, deliveredTo),
		ReadBy:         []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.msgRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	if err := s.convRepo.TouchLastMessage(ctx, conv.ID, message.ID, conv.OtherParticipants(req.SenderID), now); err != nil {
		s.log.Warn("Failed to update conversation preview", "error", err, "conversation_id", conv.ID)
	}

	return message, nil
}

// MarkRead adds readerID to readBy of every unread message in the
// conversation and returns the ids it touched. An empty result means there
// was nothing to mark.
func (s *messageService) MarkRead(ctx context.Context, conv *domain.Conversation, readerID string) ([]string, time.Time, error) {
	if conv == nil || !conv.HasParticipant(readerID) {
		return nil, time.Time{}, apperrors.ErrForbidden
	}

	ids, err := s.msgRepo.FindUnreadFor(ctx, conv.ID, readerID)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(ids) == 0 {
		return nil, time.Time{}, nil
	}

	if err := s.msgRepo.MarkRead(ctx, ids, readerID); err != nil {
		return nil, time.Time{}, err
	}

	if err := s.convRepo.ResetUnread(ctx, conv.ID, readerID); err != nil {
		s.log.Warn("Failed to reset unread counter", "error", err, "conversation_id", conv.ID)
	}

	return ids, time.Now().UTC(), nil
}

func (s *messageService) ConversationOf(ctx context.Context, messageID string) (string, error) {
	if !ValidID(messageID) {
		return "", apperrors.ErrInvalidID
	}

	message, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, apperrors.ErrMessageNotFound) {
			return "", apperrors.ErrForbidden
		}
		return "", err
	}
	return message.ConversationID, nil
}

// Delete soft-deletes a message on behalf of its sender. Anything else
// (unknown message, foreign message, already deleted) is ErrForbidden.
func (s *messageService) Delete(ctx context.Context, messageID, requesterID string) (*domain.Message, *domain.Conversation, error) {
	message, conv, err := s.ownMessage(ctx, messageID, requesterID, domain.EventMessageDelete)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	ok, err := s.msgRepo.SoftDelete(ctx, message.ID, requesterID, now)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperrors.ErrForbidden
	}

	message.IsDeleted = true
	message.DeletedAt = &now
	message.UpdatedAt = now

	_ = s.audit.LogEvent(ctx, requesterID, conv.ID, domain.EventTypeMessageDeleted, map[string]interface{}{
		"message_id": message.ID,
	})

	return message, conv, nil
}

func (s *messageService) Edit(ctx context.Context, messageID, requesterID, content string) (*domain.Message, *domain.Conversation, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, apperrors.ErrEmptyContent
	}
	if len(content) > MaxContentLength {
		return nil, nil, fmt.Errorf("%w: content too long", apperrors.ErrBadRequest)
	}

	message, conv, err := s.ownMessage(ctx, messageID, requesterID, domain.EventMessageEdit)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	ok, err := s.msgRepo.Edit(ctx, message.ID, requesterID, content, now)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperrors.ErrForbidden
	}

	message.Content = content
	message.IsEdited = true
	message.EditedAt = &now
	message.UpdatedAt = now

	return message, conv, nil
}

// ownMessage loads a live message authored by requesterID and re-checks the
// requester's membership of its conversation.
func (s *messageService) ownMessage(ctx context.Context, messageID, requesterID, event string) (*domain.Message, *domain.Conversation, error) {
	if !ValidID(messageID) {
		return nil, nil, apperrors.ErrInvalidID
	}

	message, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, apperrors.ErrMessageNotFound) {
			return nil, nil, apperrors.ErrForbidden
		}
		return nil, nil, err
	}
	if message.SenderID != requesterID || message.IsDeleted {
		return nil, nil, apperrors.ErrForbidden
	}

	conv, err := s.membership.Authorize(ctx, message.ConversationID, requesterID, event)
	if err != nil {
		return nil, nil, err
	}
	return message, conv, nil
}

// recipientsOnly keeps the ids that are current participants other than the
// sender, without duplicates.
func recipientsOnly(conv *domain.Conversation, senderID string, ids []string) []string {
	members := conv.ParticipantSet()
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == senderID {
			continue
		}
		if _, ok := members[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
