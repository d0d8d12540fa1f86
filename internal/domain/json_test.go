package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Entities share the camelCase naming used by realtime payloads.
func TestEntityJSONKeys(t *testing.T) {
	now := time.Now().UTC()
	revoked := now

	tests := []struct {
		name   string
		entity any
		keys   []string
	}{
		{
			name: "conversation",
			entity: Conversation{
				ID: "c1", Type: ConversationTypeGroup, Participants: []string{"a"}, Name: "team",
				CreatedBy: "a", LastMessageID: "m1", UnreadCounts: map[string]int{"a": 1},
				CreatedAt: now, UpdatedAt: now,
			},
			keys: []string{"id", "type", "participants", "name", "createdBy", "lastMessageId", "unreadCounts", "createdAt", "updatedAt"},
		},
		{
			name:   "message",
			entity: Message{ID: "m1", ConversationID: "c1", SenderID: "a", Content: "hi", Type: MessageTypeText, CreatedAt: now, UpdatedAt: now},
			keys:   []string{"id", "conversationId", "senderId", "content", "type", "deliveredTo", "readBy", "isEdited", "isDeleted", "createdAt", "updatedAt"},
		},
		{
			name:   "user",
			entity: User{ID: "a", Username: "alice", Email: "a@example.com", AvatarURL: "x.png", CreatedAt: now},
			keys:   []string{"id", "username", "avatar", "createdAt"},
		},
		{
			name:   "session",
			entity: UserSession{ID: "s1", UserID: "a", IsRevoked: true, UserAgent: "ua", CreatedAt: now, RevokedAt: &revoked},
			keys:   []string{"id", "userId", "isRevoked", "userAgent", "createdAt", "revokedAt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.entity)
			require.NoError(t, err)

			var fields map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(raw, &fields))

			got := make([]string, 0, len(fields))
			for k := range fields {
				got = append(got, k)
			}
			assert.ElementsMatch(t, tt.keys, got)
		})
	}
}
