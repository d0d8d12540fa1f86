package service

import (
	"relay/internal/config"
	"relay/internal/repository"
	"relay/pkg/logger"
)

type Services struct {
	Auth       AuthService
	Membership MembershipService
	Message    MessageService
	Presence   PresenceRegistry
	Calls      CallRegistry
	RateLimit  RateLimitService
	Audit      AuditService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)
	membership := NewMembershipService(repos.Conversation, audit, log)

	return &Services{
		Auth:       NewAuthService(repos.User, cfg.JWT, log),
		Membership: membership,
		Message:    NewMessageService(repos.Message, repos.Conversation, membership, audit, log),
		Presence:   NewPresenceRegistry(),
		Calls:      NewCallRegistry(),
		RateLimit:  NewRateLimitService(repos.RateLimit, log),
		Audit:      audit,
	}
}
