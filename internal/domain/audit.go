package domain

import (
	"time"
)

type AuditLog struct {
	ID             int64                  `json:"id"`
	EventTime      time.Time              `json:"event_time"`
	ActorUserID    string                 `json:"actor_user_id,omitempty"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	EventType      string                 `json:"event_type"`
	Payload        map[string]interface{} `json:"payload"`
}

const (
	EventTypeConnectionRejected = "CONNECTION_REJECTED"
	EventTypeForbiddenEvent     = "FORBIDDEN_EVENT"
	EventTypeCallStarted        = "CALL_STARTED"
	EventTypeCallEnded          = "CALL_ENDED"
	EventTypeMessageDeleted     = "MESSAGE_DELETED"
)
