package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/auth-api/internal/client"
	"github.com/kube-rca/auth-api/internal/config"
	"github.com/kube-rca/auth-api/internal/db"
	"github.com/kube-rca/auth-api/internal/handler"
	"github.com/kube-rca/auth-api/internal/logger"
	"github.com/kube-rca/auth-api/internal/ratelimit"
	"github.com/kube-rca/auth-api/internal/service"
	"go.uber.org/zap"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 사용자 저장소 연결 (USER_STORE)
	store, closeStore, err := openStore(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to open user store", zap.String("store", cfg.Store), zap.Error(err))
	}
	defer closeStore()

	tokens, err := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn)
	if err != nil {
		zlog.Fatal("failed to init token service", zap.Error(err))
	}
	hasher := service.NewPasswordHasher(cfg.Auth.HashConcurrency)
	authService, err := service.NewAuthService(store, hasher, tokens, cfg.Auth.PasswordMinLength)
	if err != nil {
		zlog.Fatal("failed to init auth service", zap.Error(err))
	}

	limiter, err := openLimiter(ctx, cfg.RateLimit, zlog)
	if err != nil {
		zlog.Fatal("failed to init rate limiter", zap.Error(err))
	}

	router, err := handler.NewRouter(handler.RouterDeps{
		Server:    cfg.Server,
		Auth:      authService,
		Store:     store,
		StoreName: cfg.Store,
		Limiter:   limiter,
		Logger:    zlog,
	})
	if err != nil {
		zlog.Fatal("failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zlog.Info("API server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.Store),
			zap.Duration("token_ttl", tokens.TTL()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server shutdown failed", zap.Error(err))
		return
	}
	zlog.Info("server stopped gracefully")
}

func openStore(ctx context.Context, cfg config.Config, zlog *zap.Logger) (service.UserStore, func(), error) {
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	switch cfg.Store {
	case config.StoreMongo:
		mongoClient, err := db.NewMongoClient(startCtx, cfg.Mongo, zlog)
		if err != nil {
			return nil, nil, err
		}
		store := db.NewMongoUserStore(mongoClient, cfg.Mongo.Database)
		if err := store.EnsureIndexes(startCtx); err != nil {
			zlog.Warn("failed to ensure mongodb indexes", zap.Error(err))
		}
		return store, func() { _ = store.Close(context.Background()) }, nil

	case config.StorePostgres:
		pool, err := db.NewPostgresPool(startCtx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store := db.NewPostgresUserStore(pool)
		if err := store.EnsureSchema(startCtx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	default:
		zlog.Warn("using in-memory user store; users are lost on restart")
		return db.NewMemoryUserStore(), func() {}, nil
	}
}

// openLimiter prefers Redis when configured so limits hold across instances.
func openLimiter(ctx context.Context, cfg config.RateLimitConfig, zlog *zap.Logger) (ratelimit.Limiter, error) {
	window := time.Duration(cfg.WindowMS) * time.Millisecond

	if cfg.RedisURL != "" {
		redisClient, err := client.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		zlog.Info("rate limiter backed by redis", zap.Int("max", cfg.Max), zap.Duration("window", window))
		return ratelimit.NewRedis(redisClient, "", cfg.Max, window), nil
	}

	limiter := ratelimit.NewMemory(cfg.Max, window)
	go limiter.RunJanitor(ctx, limiter.Window())
	zlog.Info("rate limiter in memory", zap.Int("max", cfg.Max), zap.Duration("window", window))
	return limiter, nil
}
