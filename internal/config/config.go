package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Mongo       MongoConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Realtime    RealtimeConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port           int
	Host           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// DatabaseConfig points at the Postgres audit log. An empty DSN disables auditing.
type DatabaseConfig struct {
	DSN            string
	MaxConnections int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	CookieName string
}

type RealtimeConfig struct {
	SendBuffer      int
	MaxMessageSize  int64
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	EventRateLimit  int
	EventRateWindow time.Duration
	UpgradeLimit    int
	UpgradeWindow   time.Duration
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	// Загрузка .env файла (если существует)
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:8081"}),
		},
		Mongo: MongoConfig{
			URI:            getEnv("MONGO_URI", ""),
			Database:       getEnv("MONGO_DATABASE", "relay"),
			ConnectTimeout: getEnvAsDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			DSN:            getEnv("DATABASE_DSN", ""),
			MaxConnections: getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Issuer:     getEnv("JWT_ISSUER", ""),
			CookieName: getEnv("JWT_COOKIE_NAME", "relay_token"),
		},
		Realtime: RealtimeConfig{
			SendBuffer:      getEnvAsInt("WS_SEND_BUFFER", 256),
			MaxMessageSize:  int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 64*1024)),
			PingInterval:    getEnvAsDuration("WS_PING_INTERVAL", 54*time.Second),
			PongWait:        getEnvAsDuration("WS_PONG_WAIT", 60*time.Second),
			WriteWait:       getEnvAsDuration("WS_WRITE_WAIT", 10*time.Second),
			EventRateLimit:  getEnvAsInt("WS_EVENT_RATE_LIMIT", 30),
			EventRateWindow: getEnvAsDuration("WS_EVENT_RATE_WINDOW", 10*time.Second),
			UpgradeLimit:    getEnvAsInt("WS_UPGRADE_LIMIT", 60),
			UpgradeWindow:   getEnvAsDuration("WS_UPGRADE_WINDOW", time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("MONGO_URI must be set")
	}
	if c.Realtime.PingInterval >= c.Realtime.PongWait {
		return fmt.Errorf("WS_PING_INTERVAL must be shorter than WS_PONG_WAIT")
	}
	if c.Realtime.SendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AuditEnabled reports whether a Postgres DSN was configured.
func (c *Config) AuditEnabled() bool {
	return c.Database.DSN != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
