package middleware

import (
	"net/http"
	"strconv"

	"seha-backend/internal/redis"
	"seha-backend/internal/services"
	"seha-backend/internal/transport/httpdto"
	"seha-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// HelpRateLimit applies the redis limiter to the help endpoints, keyed by
// user id when authenticated and client IP otherwise. Rejections carry a
// Retry-After hint so the widget can back off instead of erroring.
func HelpRateLimit(limiter *redis.RateLimiter, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if identity, ok := services.IdentityFromContext(c.Request.Context()); ok {
			key = identity.UserID
		}

		result, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// Fail open: a limiter outage should not take the chat down.
			if log != nil {
				log.Errorf("rate limit check: %v", err)
			}
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("Too many requests"))
			c.Abort()
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
