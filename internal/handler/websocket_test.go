package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"relay/internal/domain"
	"relay/internal/middleware"
	"relay/internal/service/mocks"
	apperrors "relay/pkg/errors"
	"relay/pkg/logger"
)

// greetingGateway answers every connection with the user id and hangs up.
type greetingGateway struct{}

func (greetingGateway) Serve(ctx context.Context, conn *websocket.Conn, user *domain.User) {
	defer conn.Close()
	_ = conn.WriteMessage(websocket.TextMessage, []byte(user.ID))
}

func newTestServer(t *testing.T, allowed []string, mockSetup func(auth *mocks.MockAuthService, audit *mocks.MockAuditService)) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctrl := gomock.NewController(t)
	auth := mocks.NewMockAuthService(ctrl)
	audit := mocks.NewMockAuditService(ctrl)
	mockSetup(auth, audit)

	authMiddleware := middleware.NewAuthMiddleware(auth, audit, "relay_token", logger.Nop())
	h := NewWebSocketHandler(greetingGateway{}, allowed, logger.Nop())

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.GET("/ws", authMiddleware.RequireAuth(), h.Connect)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWebSocketHandler_Connect(t *testing.T) {
	user := &domain.User{ID: "0190a5a8-7c3e-7b3a-9d2e-4f1a2b3c4d5e", Username: "alice"}

	t.Run("authenticated upgrade hands the connection to the gateway", func(t *testing.T) {
		srv := newTestServer(t, []string{"https://app.example"}, func(auth *mocks.MockAuthService, audit *mocks.MockAuditService) {
			auth.EXPECT().Authenticate(gomock.Any(), "good").Return(user, nil)
		})

		header := http.Header{}
		header.Set("Origin", "https://app.example")
		header.Set("Cookie", "relay_token=good")

		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
		require.NoError(t, err)
		defer conn.Close()
		assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, user.ID, string(msg))
	})

	t.Run("bad credential never upgrades", func(t *testing.T) {
		srv := newTestServer(t, []string{"*"}, func(auth *mocks.MockAuthService, audit *mocks.MockAuditService) {
			auth.EXPECT().Authenticate(gomock.Any(), "expired").Return(nil, apperrors.ErrTokenExpired)
			audit.EXPECT().LogEvent(gomock.Any(), "", "", domain.EventTypeConnectionRejected, gomock.Any()).Return(nil)
		})

		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token=expired", nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Nil(t, conn)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("foreign origin is refused", func(t *testing.T) {
		srv := newTestServer(t, []string{"https://app.example"}, func(auth *mocks.MockAuthService, audit *mocks.MockAuditService) {
			auth.EXPECT().Authenticate(gomock.Any(), "good").Return(user, nil)
		})

		header := http.Header{}
		header.Set("Origin", "https://evil.example")

		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token=good", header)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("missing user in context", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		h := NewWebSocketHandler(greetingGateway{}, []string{"*"}, logger.Nop())
		router := gin.New()
		router.Use(middleware.ErrorHandler())
		router.GET("/ws", h.Connect)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "listed", allowed: []string{"https://a.example"}, origin: "https://a.example", want: true},
		{name: "unlisted", allowed: []string{"https://a.example"}, origin: "https://b.example", want: false},
		{name: "no origin header", allowed: []string{"https://a.example"}, origin: "", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://b.example", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(r))
		})
	}
}
