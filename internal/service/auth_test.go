package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"relay/internal/config"
	"relay/internal/domain"
	"relay/internal/repository/mocks"
	apperrors "relay/pkg/errors"
	"relay/pkg/jwt"
	"relay/pkg/logger"
)

const testSecret = "test-secret"

func mustToken(t *testing.T, userID, sessionID, secret string, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.GenerateSessionToken(userID, sessionID, secret, "relay", ttl)
	require.NoError(t, err)
	return token
}

func TestAuthService_Authenticate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userRepo := mocks.NewMockUserRepository(ctrl)
	svc := NewAuthService(userRepo, config.JWTConfig{Secret: testSecret, Issuer: "relay"}, logger.Nop())

	userID := uuid.NewString()
	sessionID := uuid.NewString()
	user := &domain.User{ID: userID, Username: "alice"}

	tests := []struct {
		name      string
		token     func() string
		mockSetup func()
		wantErr   error
	}{
		{
			name:  "valid token without session",
			token: func() string { return mustToken(t, userID, "", testSecret, time.Hour) },
			mockSetup: func() {
				userRepo.EXPECT().GetByID(gomock.Any(), userID).Return(user, nil)
			},
		},
		{
			name:  "valid token with live session",
			token: func() string { return mustToken(t, userID, sessionID, testSecret, time.Hour) },
			mockSetup: func() {
				userRepo.EXPECT().GetSession(gomock.Any(), sessionID).
					Return(&domain.UserSession{ID: sessionID, UserID: userID}, nil)
				userRepo.EXPECT().GetByID(gomock.Any(), userID).Return(user, nil)
			},
		},
		{
			name:      "missing credential",
			token:     func() string { return "  " },
			mockSetup: func() {},
			wantErr:   apperrors.ErrUnauthorized,
		},
		{
			name:      "expired token",
			token:     func() string { return mustToken(t, userID, "", testSecret, -time.Minute) },
			mockSetup: func() {},
			wantErr:   apperrors.ErrTokenExpired,
		},
		{
			name:      "wrong signature",
			token:     func() string { return mustToken(t, userID, "", "other-secret", time.Hour) },
			mockSetup: func() {},
			wantErr:   apperrors.ErrInvalidToken,
		},
		{
			name:      "garbage token",
			token:     func() string { return "not.a.jwt" },
			mockSetup: func() {},
			wantErr:   apperrors.ErrInvalidToken,
		},
		{
			name:      "malformed user id",
			token:     func() string { return mustToken(t, "42", "", testSecret, time.Hour) },
			mockSetup: func() {},
			wantErr:   apperrors.ErrInvalidToken,
		},
		{
			name:  "revoked session",
			token: func() string { return mustToken(t, userID, sessionID, testSecret, time.Hour) },
			mockSetup: func() {
				userRepo.EXPECT().GetSession(gomock.Any(), sessionID).
					Return(&domain.UserSession{ID: sessionID, UserID: userID, IsRevoked: true}, nil)
			},
			wantErr: apperrors.ErrSessionRevoked,
		},
		{
			name:  "session of another user",
			token: func() string { return mustToken(t, userID, sessionID, testSecret, time.Hour) },
			mockSetup: func() {
				userRepo.EXPECT().GetSession(gomock.Any(), sessionID).
					Return(&domain.UserSession{ID: sessionID, UserID: uuid.NewString()}, nil)
			},
			wantErr: apperrors.ErrSessionRevoked,
		},
		{
			name:  "unknown session",
			token: func() string { return mustToken(t, userID, sessionID, testSecret, time.Hour) },
			mockSetup: func() {
				userRepo.EXPECT().GetSession(gomock.Any(), sessionID).Return(nil, apperrors.ErrSessionRevoked)
			},
			wantErr: apperrors.ErrSessionRevoked,
		},
		{
			name:  "unknown user",
			token: func() string { return mustToken(t, userID, "", testSecret, time.Hour) },
			mockSetup: func() {
				userRepo.EXPECT().GetByID(gomock.Any(), userID).Return(nil, apperrors.ErrUserNotFound)
			},
			wantErr: apperrors.ErrUserNotFound,
		},
		{
			name:  "disabled user",
			token: func() string { return mustToken(t, userID, "", testSecret, time.Hour) },
			mockSetup: func() {
				userRepo.EXPECT().GetByID(gomock.Any(), userID).
					Return(&domain.User{ID: userID, IsDisabled: true}, nil)
			},
			wantErr: apperrors.ErrUnauthorized,
		},
		{
			name:  "directory unavailable",
			token: func() string { return mustToken(t, userID, "", testSecret, time.Hour) },
			mockSetup: func() {
				userRepo.EXPECT().GetByID(gomock.Any(), userID).Return(nil, errors.New("connection refused"))
			},
			wantErr: apperrors.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			got, err := svc.Authenticate(context.Background(), tt.token())

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, apperrors.IsAuthFailure(err))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, got.ID)
		})
	}
}
