package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/storefront-api/pkg/errors"
)

// RateLimit caps requests per client IP. The limiter store decides whether
// counters are process-local or shared through Redis.
func RateLimit(instance *limiter.Limiter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if instance == nil {
			c.Next()
			return
		}
		ctx, err := instance.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			// fail open
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(ctx.Reset, 10))

		if ctx.Reached {
			abort(c, appErrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}
