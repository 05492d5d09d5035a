package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/auth-api/internal/config"
	"github.com/kube-rca/auth-api/internal/ratelimit"
	"github.com/kube-rca/auth-api/internal/service"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Server    config.ServerConfig
	Auth      *service.AuthService
	Store     Pinger
	StoreName string
	Limiter   ratelimit.Limiter
	Logger    *zap.Logger
}

func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(deps.Logger))

	// 비어 있으면 프록시 헤더 무시 (RemoteAddr 기준 ClientIP)
	if err := r.SetTrustedProxies(deps.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	if mw := CORSMiddleware(deps.Server.CORSAllowedOrigins); mw != nil {
		r.Use(mw)
	}

	health := NewHealthHandler(deps.Store, deps.StoreName, deps.Logger)
	r.GET("/", Root)
	r.GET("/favicon.ico", Favicon)
	r.GET("/openapi.json", OpenAPIDoc)
	r.GET("/healthz", health.Healthz)
	r.GET("/db/healthz", health.DBHealthz)
	r.GET("/readyz", health.DBHealthz)
	r.GET("/api/users/:id", EchoUser)
	r.GET("/api/posts/:postId/comments/:commentId", EchoComment)

	authHandler := NewAuthHandler(deps.Auth, deps.Logger)
	limited := r.Group("/auth", RateLimit(deps.Limiter, deps.Logger))
	limited.POST("/register", authHandler.Register)
	limited.POST("/login", authHandler.Login)
	limited.GET("/me", AuthMiddleware(deps.Auth), authHandler.Me)

	return r, nil
}
