package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"relay/internal/config"
	"relay/internal/domain"
	"relay/internal/repository"
	apperrors "relay/pkg/errors"
	"relay/pkg/jwt"
	"relay/pkg/logger"
)

// AuthService resolves a session credential into the identity bound to a
// realtime connection.
type AuthService interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

type authService struct {
	userRepo repository.UserRepository
	jwtCfg   config.JWTConfig
	log      logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		jwtCfg:   jwtCfg,
		log:      log,
	}
}

func (s *authService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}

	claims, err := jwt.ValidateToken(token, s.jwtCfg.Secret, s.jwtCfg.Issuer)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%w: malformed user id", apperrors.ErrInvalidToken)
	}

	if claims.SessionID != "" {
		if err := s.checkSession(ctx, claims.SessionID, claims.UserID); err != nil {
			return nil, err
		}
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, err
		}
		s.log.Error("Failed to resolve user", "error", err, "user_id", claims.UserID)
		return nil, fmt.Errorf("%w: user lookup failed", apperrors.ErrUnauthorized)
	}

	if user.IsDisabled {
		return nil, fmt.Errorf("%w: account disabled", apperrors.ErrUnauthorized)
	}

	return user, nil
}

func (s *authService) checkSession(ctx context.Context, sessionID, userID string) error {
	session, err := s.userRepo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionRevoked) {
			return err
		}
		s.log.Error("Failed to resolve session", "error", err, "session_id", sessionID)
		return fmt.Errorf("%w: session lookup failed", apperrors.ErrUnauthorized)
	}

	if session.UserID != userID || session.IsRevoked {
		return apperrors.ErrSessionRevoked
	}
	return nil
}
