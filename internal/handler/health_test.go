package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/domain"
	"relay/internal/service"
)

type fixedCounter int

func (f fixedCounter) ClientCount() int { return int(f) }

func TestHealthHandler_Check(t *testing.T) {
	gin.SetMode(gin.TestMode)

	presence := service.NewPresenceRegistry()
	presence.Connect("u1", nil)
	presence.Connect("u1", nil)
	presence.Connect("u2", nil)

	calls := service.NewCallRegistry()
	_, err := calls.Initiate("u1", "u2", domain.CallMediaAudio)
	require.NoError(t, err)

	h := NewHealthHandler(fixedCounter(3), presence, calls)
	router := gin.New()
	router.GET("/health", h.Check)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["connections"])
	assert.EqualValues(t, 2, body["online_users"])
	assert.EqualValues(t, 1, body["active_calls"])
}
