package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:8081"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "relay", cfg.Mongo.Database)
	assert.Equal(t, "relay_token", cfg.JWT.CookieName)
	assert.Equal(t, 256, cfg.Realtime.SendBuffer)
	assert.Equal(t, 54*time.Second, cfg.Realtime.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.Realtime.PongWait)
	assert.False(t, cfg.AuditEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MONGO_URI", "mongodb://mongo:27017")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("DATABASE_DSN", "postgres://u:p@db:5432/audit")
	t.Setenv("WS_EVENT_RATE_LIMIT", "5")
	t.Setenv("WS_EVENT_RATE_WINDOW", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.AuditEnabled())
	assert.Equal(t, 5, cfg.Realtime.EventRateLimit)
	assert.Equal(t, 2*time.Second, cfg.Realtime.EventRateWindow)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{
			name:   "missing jwt secret",
			env:    map[string]string{"MONGO_URI": "mongodb://localhost"},
			errMsg: "JWT_SECRET",
		},
		{
			name:   "missing mongo uri",
			env:    map[string]string{"JWT_SECRET": "s"},
			errMsg: "MONGO_URI",
		},
		{
			name: "ping slower than pong wait",
			env: map[string]string{
				"JWT_SECRET":       "s",
				"MONGO_URI":        "mongodb://localhost",
				"WS_PING_INTERVAL": "70s",
			},
			errMsg: "WS_PING_INTERVAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			t.Setenv("MONGO_URI", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
