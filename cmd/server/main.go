// Command server runs the directchat HTTP API and realtime notifier.
package main

import (
	"context"
	"directchat/backend/internal/account"
	"directchat/backend/internal/api/handler"
	"directchat/backend/internal/chathub"
	"directchat/backend/internal/config"
	"directchat/backend/internal/directory"
	"directchat/backend/internal/identity"
	"directchat/backend/internal/localization"
	"directchat/backend/internal/logging"
	"directchat/backend/internal/messaging"
	"directchat/backend/internal/ratelimit"
	"directchat/backend/internal/storage"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. PostgreSQL + migrations
	db, err := storage.Open(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	if err := storage.Migrate(ctx, db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to get sql db", zap.Error(err))
	}
	defer sqlDB.Close()
	store := storage.NewStorageService(db, logger.Named("storage"))

	// 2. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	limiter, err := ratelimit.NewSlidingWindow(rdb, config.RateLimitKeyPrefix, config.SendRateLimit, config.SendRateWindow)
	if err != nil {
		logger.Fatal("failed to build rate limiter", zap.Error(err))
	}

	// 3. Services
	gateway := identity.NewService(store, cfg.JWTSecret, cfg.TokenTTL, cfg.AvatarURLTemplate)
	loc, err := localization.New()
	if err != nil {
		logger.Fatal("failed to load translations", zap.Error(err))
	}

	// 4. Realtime: pg NOTIFY -> feed -> hub -> websocket clients
	feed, err := chathub.NewPGFeed(cfg.DatabaseDSN, config.ChatMessagesChannel, logger.Named("feed"))
	if err != nil {
		logger.Fatal("failed to listen for chat changes", zap.Error(err))
	}
	defer feed.Close()
	feed.Start(ctx)

	hub := chathub.NewManagerService(store, logger.Named("hub"))
	go hub.Run(ctx, feed.Events())

	h := &handler.Handler{
		Accounts:       account.NewService(store, logger.Named("account")),
		Directory:      directory.NewService(store, gateway, logger.Named("directory")),
		Messages:       messaging.NewService(store, gateway, limiter, logger.Named("messaging")),
		Identity:       gateway,
		Tokens:         gateway,
		Hub:            hub,
		Localizer:      loc,
		Log:            logger.Named("http"),
		Dev:            cfg.Dev,
		AllowedOrigins: cfg.AllowedOrigins,
		HealthChecks: map[string]handler.HealthCheck{
			"postgres": sqlDB.PingContext,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.Bool("dev", cfg.Dev))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	}
}
