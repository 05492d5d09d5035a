package handler

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/auth-api/internal/ratelimit"
	"go.uber.org/zap"
)

const tooManyRequests = "Too many requests, try again later"

// RateLimit counts every request per client IP and rejects with 429 once the
// window ceiling is exceeded. Limiter failures let the request through.
func RateLimit(limiter ratelimit.Limiter, log *zap.Logger) gin.HandlerFunc {
	policyWindow := int64(math.Ceil(limiter.Window().Seconds()))

	return func(c *gin.Context) {
		key := c.ClientIP()
		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter unavailable, allowing request",
				zap.String("client_ip", key),
				zap.Error(err),
			)
			c.Next()
			return
		}

		reset := ceilSeconds(res.RetryAfter(time.Now()))
		c.Header("RateLimit-Policy", fmt.Sprintf("%d;w=%d", res.Limit, policyWindow))
		c.Header("RateLimit", fmt.Sprintf("limit=%d, remaining=%d, reset=%d", res.Limit, res.Remaining, reset))

		if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(reset, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody(tooManyRequests))
			return
		}
		c.Next()
	}
}

func ceilSeconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}
