package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"relay/internal/domain"
	"relay/internal/middleware"
	apperrors "relay/pkg/errors"
	"relay/pkg/logger"
)

// RealtimeGateway takes ownership of an upgraded connection.
type RealtimeGateway interface {
	Serve(ctx context.Context, conn *websocket.Conn, user *domain.User)
}

type WebSocketHandler struct {
	gateway  RealtimeGateway
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewWebSocketHandler(gateway RealtimeGateway, allowedOrigins []string, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

// Connect upgrades an authenticated request and blocks until the
// connection closes. It must run behind AuthMiddleware.RequireAuth.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		c.Abort()
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response
		h.log.Warn("Failed to upgrade connection", "error", err, "user_id", user.ID)
		return
	}

	h.gateway.Serve(context.WithoutCancel(c.Request.Context()), conn, user)
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	if middleware.AllowsAnyOrigin(allowedOrigins) {
		return func(r *http.Request) bool { return true }
	}

	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// non-browser clients
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
