package handler

import (
	"relay/internal/config"
	"relay/internal/service"
	"relay/internal/ws"
	"relay/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, hub *ws.Hub, gateway *ws.Gateway, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(hub, services.Presence, services.Calls),
		WebSocket: NewWebSocketHandler(gateway, cfg.Server.AllowedOrigins, log),
	}
}
