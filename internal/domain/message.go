package domain

import (
	"time"
)

const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

type Attachment struct {
	Name     string `bson:"name" json:"name"`
	MimeType string `bson:"mimeType" json:"mimeType"`
	Size     int64  `bson:"size" json:"size"`
	URL      string `bson:"url" json:"url"`
}

// Message is stored in the messages collection. DeliveredTo and ReadBy never
// contain the sender or a non-participant.
type Message struct {
	ID             string       `bson:"_id" json:"id"`
	ConversationID string       `bson:"conversationId" json:"conversationId"`
	SenderID       string       `bson:"senderId" json:"senderId"`
	Content        string       `bson:"content" json:"content"`
	Type           string       `bson:"type" json:"type"`
	Attachments    []Attachment `bson:"attachments,omitempty" json:"attachments,omitempty"`
	DeliveredTo    []string     `bson:"deliveredTo" json:"deliveredTo"`
	ReadBy         []string     `bson:"readBy" json:"readBy"`
	IsEdited       bool         `bson:"isEdited" json:"isEdited"`
	EditedAt       *time.Time   `bson:"editedAt,omitempty" json:"editedAt,omitempty"`
	IsDeleted      bool         `bson:"isDeleted" json:"isDeleted"`
	DeletedAt      *time.Time   `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt      time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// IsClientMessageType reports whether a client may send messages of type t.
// System messages are produced by the server only.
func IsClientMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	default:
		return false
	}
}
