package ws

import (
	"context"
	"sort"
	"sync"
	"time"

	"relay/internal/domain"
	apperrors "relay/pkg/errors"
)

type memConversations struct {
	mu      sync.Mutex
	convs   map[string]*domain.Conversation
	listErr error
}

func newMemConversations() *memConversations {
	return &memConversations{convs: make(map[string]*domain.Conversation)}
}

func (m *memConversations) put(conv *domain.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *conv
	cp.Participants = append([]string(nil), conv.Participants...)
	m.convs[conv.ID] = &cp
}

func (m *memConversations) setParticipants(id string, participants ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[id].Participants = participants
}

func (m *memConversations) GetByID(_ context.Context, id string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[id]
	if !ok {
		return nil, apperrors.ErrConversationNotFound
	}
	cp := *conv
	cp.Participants = append([]string(nil), conv.Participants...)
	return &cp, nil
}

func (m *memConversations) ListIDsByParticipant(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var ids []string
	for id, conv := range m.convs {
		if conv.HasParticipant(userID) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memConversations) TouchLastMessage(_ context.Context, conversationID, messageID string, recipients []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv := m.convs[conversationID]
	conv.LastMessageID = messageID
	conv.UpdatedAt = at
	if conv.UnreadCounts == nil {
		conv.UnreadCounts = make(map[string]int)
	}
	for _, uid := range recipients {
		conv.UnreadCounts[uid]++
	}
	return nil
}

func (m *memConversations) ResetUnread(_ context.Context, conversationID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv := m.convs[conversationID]; conv.UnreadCounts != nil {
		conv.UnreadCounts[userID] = 0
	}
	return nil
}

func (m *memConversations) EnsureIndexes(context.Context) error { return nil }

type memMessages struct {
	mu    sync.Mutex
	order []string
	msgs  map[string]*domain.Message
}

func newMemMessages() *memMessages {
	return &memMessages{msgs: make(map[string]*domain.Message)}
}

func (m *memMessages) Create(_ context.Context, message *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *message
	m.msgs[message.ID] = &cp
	m.order = append(m.order, message.ID)
	return nil
}

func (m *memMessages) GetByID(_ context.Context, id string) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok {
		return nil, apperrors.ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *memMessages) FindUnreadFor(_ context.Context, conversationID, readerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, id := range m.order {
		msg := m.msgs[id]
		if msg.ConversationID != conversationID || msg.SenderID == readerID || msg.IsDeleted || contains(msg.ReadBy, readerID) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memMessages) MarkRead(_ context.Context, messageIDs []string, readerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range messageIDs {
		msg := m.msgs[id]
		if msg.SenderID != readerID && !msg.IsDeleted && !contains(msg.ReadBy, readerID) {
			msg.ReadBy = append(msg.ReadBy, readerID)
		}
	}
	return nil
}

func (m *memMessages) SoftDelete(_ context.Context, messageID, senderID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[messageID]
	if !ok || msg.SenderID != senderID || msg.IsDeleted {
		return false, nil
	}
	msg.IsDeleted = true
	msg.DeletedAt = &at
	return true, nil
}

func (m *memMessages) Edit(_ context.Context, messageID, senderID, content string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[messageID]
	if !ok || msg.SenderID != senderID || msg.IsDeleted {
		return false, nil
	}
	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = &at
	return true, nil
}

func (m *memMessages) EnsureIndexes(context.Context) error { return nil }

func (m *memMessages) all() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Message, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.msgs[id])
	}
	return out
}

type memAudit struct {
	mu   sync.Mutex
	logs []domain.AuditLog
}

func (m *memAudit) CreateLog(_ context.Context, log *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *log)
	return nil
}

func (m *memAudit) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l.EventType)
	}
	return out
}

type memRateLimit struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (m *memRateLimit) CheckLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key] < int64(limit), nil
}

func (m *memRateLimit) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	m.counts[key]++
	return m.counts[key], nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
