package domain

import (
	"encoding/json"
	"time"
)

// Outbound realtime events.
const (
	EventUserOnline       = "user:online"
	EventUserOffline      = "user:offline"
	EventPresenceInit     = "presence:init"
	EventMessageNew       = "message:new"
	EventMessageSent      = "message:sent"
	EventMessageDelivered = "message:delivered"
	EventMessageRead      = "message:read"
	EventMessageDeleted   = "message:deleted"
	EventMessageEdited    = "message:edited"
	EventMessageFailed    = "message:failed"
	EventTypingStart      = "typing:start"
	EventTypingStop       = "typing:stop"
	EventCallIncoming     = "call:incoming"
	EventCallAccepted     = "call:accepted"
	EventCallBusy         = "call:busy"
	EventCallFailed       = "call:failed"
	EventCallEnded        = "call:ended"
	EventCallSignal       = "call:signal"
)

// Inbound client events.
const (
	EventMessageSend      = "message:send"
	EventMessageDelete    = "message:delete"
	EventMessageEdit      = "message:edit"
	EventConversationRead = "conversation:read"
	EventCallInitiate     = "call:initiate"
	EventCallAccept       = "call:accept"
	EventCallReject       = "call:reject"
	EventCallEnd          = "call:end"
)

// message:failed reasons. SEND_FAILED is the generic one; internal detail
// never reaches the client.
const (
	FailureInvalidPayload = "INVALID_PAYLOAD"
	FailureEmptyMessage   = "EMPTY_MESSAGE"
	FailureForbidden      = "FORBIDDEN"
	FailureRateLimited    = "RATE_LIMITED"
	FailureSendFailed     = "SEND_FAILED"
	FailureUserOffline    = "USER_OFFLINE"
)

const (
	CallMediaAudio = "audio"
	CallMediaVideo = "video"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

/* ---------- inbound payloads ---------- */

type SendMessagePayload struct {
	ConversationID string       `json:"conversationId"`
	Content        string       `json:"content"`
	TempID         string       `json:"tempId,omitempty"`
	Type           string       `json:"type,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
}

type DeleteMessagePayload struct {
	MessageID string `json:"messageId"`
}

type EditMessagePayload struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type CallInitiatePayload struct {
	ToUserID string `json:"toUserId"`
	Type     string `json:"type"`
}

type CallPeerPayload struct {
	ToUserID string `json:"toUserId"`
}

type CallSignalPayload struct {
	ToUserID string          `json:"toUserId"`
	Signal   json.RawMessage `json:"signal"`
}

/* ---------- outbound payloads ---------- */

type UserPresenceEvent struct {
	UserID string `json:"userId"`
}

type PresenceInitEvent struct {
	OnlineUsers []string `json:"onlineUsers"`
}

type MessageNewEvent struct {
	ID             string       `json:"id"`
	TempID         string       `json:"tempId,omitempty"`
	ConversationID string       `json:"conversationId"`
	SenderID       string       `json:"senderId"`
	Content        string       `json:"content"`
	Type           string       `json:"type"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

type MessageSentEvent struct {
	TempID         string    `json:"tempId,omitempty"`
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	CreatedAt      time.Time `json:"createdAt"`
}

type MessageDeliveredEvent struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	DeliveredAt    time.Time `json:"deliveredAt"`
}

type MessageReadEvent struct {
	ConversationID string    `json:"conversationId"`
	MessageIDs     []string  `json:"messageIds"`
	ReaderID       string    `json:"readerId"`
	ReadAt         time.Time `json:"readAt"`
}

type MessageDeletedEvent struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	DeletedAt      time.Time `json:"deletedAt"`
}

type MessageEditedEvent struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	Content        string    `json:"content"`
	EditedAt       time.Time `json:"editedAt"`
}

type MessageFailedEvent struct {
	TempID string `json:"tempId,omitempty"`
	Reason string `json:"reason"`
}

type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
}

type CallIncomingEvent struct {
	FromUserID string `json:"fromUserId"`
	CallerName string `json:"callerName,omitempty"`
	Type       string `json:"type"`
}

type CallPeerEvent struct {
	FromUserID string `json:"fromUserId"`
}

type CallBusyEvent struct {
	ToUserID string `json:"toUserId"`
}

type CallFailedEvent struct {
	ToUserID string `json:"toUserId"`
	Reason   string `json:"reason"`
}

type CallSignalEvent struct {
	FromUserID string          `json:"fromUserId"`
	Signal     json.RawMessage `json:"signal"`
}
