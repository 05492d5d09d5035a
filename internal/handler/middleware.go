package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kube-rca/auth-api/internal/model"
	"github.com/kube-rca/auth-api/internal/service"
	"go.uber.org/zap"
)

const (
	authClaimsKey = "auth_claims"
	bearerPrefix  = "Bearer "
)

// AuthMiddleware only checks the token. It never touches the user store.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Missing bearer token"))
			return
		}

		claims, err := authService.ParseAccessToken(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(err.Error()))
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

func GetAuthClaims(c *gin.Context) *model.AuthClaims {
	if value, ok := c.Get(authClaimsKey); ok {
		if claims, ok := value.(*model.AuthClaims); ok {
			return claims
		}
	}
	return nil
}

// RequestLogger writes one line per request after the handler chain ran.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// CORSMiddleware returns nil when no origins are configured.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	if len(allowedOrigins) == 0 {
		return nil
	}
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = allowedOrigins
	cfg.AllowHeaders = []string{"Authorization", "Content-Type"}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.ExposeHeaders = []string{"RateLimit", "RateLimit-Policy", "Retry-After"}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}

func errorBody(message string) model.ErrorResponse {
	return model.ErrorResponse{OK: false, Error: message}
}
