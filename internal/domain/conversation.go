package domain

import (
	"time"
)

const (
	ConversationTypeDirect = "direct"
	ConversationTypeGroup  = "group"
)

type Conversation struct {
	ID            string         `bson:"_id" json:"id"`
	Type          string         `bson:"type" json:"type"`
	Participants  []string       `bson:"participants" json:"participants"`
	Name          string         `bson:"name,omitempty" json:"name,omitempty"`
	CreatedBy     string         `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	LastMessageID string         `bson:"lastMessage,omitempty" json:"lastMessageId,omitempty"`
	UnreadCounts  map[string]int `bson:"unreadCounts,omitempty" json:"unreadCounts,omitempty"`
	CreatedAt     time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time      `bson:"updatedAt" json:"updatedAt"`
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns every participant except userID.
func (c *Conversation) OtherParticipants(userID string) []string {
	others := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

// ParticipantSet is used to filter room fanout by current membership.
func (c *Conversation) ParticipantSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Participants))
	for _, p := range c.Participants {
		set[p] = struct{}{}
	}
	return set
}
