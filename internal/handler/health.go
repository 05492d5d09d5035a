package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/auth-api/internal/db"
	"github.com/kube-rca/auth-api/internal/model"
	"go.uber.org/zap"
)

const (
	dbHealthTimeout = 10 * time.Second
	tlsHint         = "TLS/SSL error: check MONGODB_TLS_ALLOW_INVALID_CERTIFICATES, MONGODB_TLS_ALLOW_INVALID_HOSTNAMES, and MONGODB_TLS_CA_FILE env vars"
)

// Pinger is the readiness probe of a user store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store     Pinger
	storeName string
	started   time.Time
	log       *zap.Logger
}

func NewHealthHandler(store Pinger, storeName string, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		store:     store,
		storeName: storeName,
		started:   time.Now(),
		log:       log,
	}
}

// 헬스체크 엔드포인트
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		OK:      true,
		Service: "api",
		Uptime:  time.Since(h.started).Seconds(),
	})
}

// DB 헬스체크 엔드포인트 (/db/healthz, /readyz)
func (h *HealthHandler) DBHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbHealthTimeout)
	defer cancel()

	err := h.store.Ping(ctx)
	if err == nil {
		c.JSON(http.StatusOK, model.DBHealthResponse{OK: true, DB: h.storeName})
		return
	}

	tlsErr := db.IsTLSError(err)
	h.log.Error("[GET /db/healthz] DB health check failed",
		zap.String("db", h.storeName),
		zap.Bool("tls_error", tlsErr),
		zap.Error(err),
	)

	body := model.DBHealthResponse{
		OK:    false,
		DB:    h.storeName,
		Error: err.Error(),
		Code:  db.ErrorCode(err),
	}
	if tlsErr {
		body.Hint = tlsHint
	}
	c.JSON(http.StatusServiceUnavailable, body)
}

func Favicon(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// 루트 엔드포인트
func Root(c *gin.Context) {
	c.String(http.StatusOK, "Hello from auth-api!")
}

func EchoUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
}

func EchoComment(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"postId":    c.Param("postId"),
		"commentId": c.Param("commentId"),
	})
}
