package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relay/internal/config"
	"relay/internal/handler"
	"relay/internal/middleware"
	"relay/internal/repository"
	"relay/internal/service"
	"relay/internal/ws"
	"relay/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)
	if cfg.IsProduction() {
		appLogger = logger.NewJSON(cfg.Log.Level)
	}

	// MongoDB: users, sessions, conversations, messages
	mongoClient, err := repository.NewMongoConnection(context.Background(), cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.ConnectTimeout)
	if err != nil {
		appLogger.Fatal("Failed to connect to MongoDB", "error", err)
	}
	appLogger.Info("MongoDB connection established", "database", cfg.Mongo.Database)

	// PostgreSQL хранит только журнал аудита
	var dbPool *pgxpool.Pool
	if cfg.AuditEnabled() {
		dbPool, err = newPostgresPool(cfg.Database)
		if err != nil {
			appLogger.Fatal("Failed to connect to database", "error", err)
		}
		appLogger.Info("Database connection established")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	repos := repository.NewRepositories(mongoClient.Database, dbPool, rdb, appLogger)

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
	if err := repos.Conversation.EnsureIndexes(indexCtx); err != nil {
		appLogger.Warn("Failed to ensure conversation indexes", "error", err)
	}
	if err := repos.Message.EnsureIndexes(indexCtx); err != nil {
		appLogger.Warn("Failed to ensure message indexes", "error", err)
	}
	cancelIndexes()

	services := service.NewServices(repos, cfg, appLogger)

	hub := ws.NewHub(appLogger)
	gateway := ws.NewGateway(hub, services, cfg.Realtime, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, services.Audit, cfg.JWT.CookieName, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, cfg.Realtime.UpgradeLimit, cfg.Realtime.UpgradeWindow, appLogger)

	handlers := handler.NewHandlers(services, hub, gateway, cfg, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ожидание сигнала для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown does not wait for hijacked connections; the hub drains them.
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}
	if err := hub.Shutdown(ctx); err != nil {
		appLogger.Error("Realtime connections did not drain", "error", err)
	}

	if err := mongoClient.Close(ctx); err != nil {
		appLogger.Error("Failed to disconnect MongoDB", "error", err)
	}
	if dbPool != nil {
		dbPool.Close()
	}
	if err := rdb.Close(); err != nil {
		appLogger.Error("Failed to close Redis client", "error", err)
	}

	appLogger.Info("Server exited")
}

func newPostgresPool(cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_DSN: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)

	router.GET("/ws",
		rateLimitMiddleware.Limit("ws:upgrade"),
		authMiddleware.RequireAuth(),
		handlers.WebSocket.Connect,
	)

	return router
}
