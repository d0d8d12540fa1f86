package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"relay/internal/service"
)

// ConnectionCounter reports live websocket connections.
type ConnectionCounter interface {
	ClientCount() int
}

type HealthHandler struct {
	connections ConnectionCounter
	presence    service.PresenceRegistry
	calls       service.CallRegistry
}

func NewHealthHandler(connections ConnectionCounter, presence service.PresenceRegistry, calls service.CallRegistry) *HealthHandler {
	return &HealthHandler{
		connections: connections,
		presence:    presence,
		calls:       calls,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"service":      "relay",
		"connections":  h.connections.ClientCount(),
		"online_users": len(h.presence.Online()),
		"active_calls": h.calls.Active(),
	})
}
