package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/storefront-api/pkg/events"
)

// Audit publishes an admin.action event after every successful request it wraps.
func Audit(publisher events.Publisher, action string, logger *zap.Logger) gin.HandlerFunc {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var actor string
		if claims := Claims(c); claims != nil {
			actor = claims.UserID()
		}
		attrs := map[string]string{
			"action":  action,
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  strconv.Itoa(c.Writer.Status()),
			"latency": strconv.FormatInt(time.Since(start).Milliseconds(), 10),
			"ip":      c.ClientIP(),
		}
		if id := c.Param("id"); id != "" {
			attrs["target"] = id
		}

		event := events.Event{Type: events.TypeAdminAction, UserID: actor, OccurredAt: start, Attributes: attrs}
		if err := publisher.Publish(c.Request.Context(), event); err != nil {
			logger.Warn("failed to publish audit event", zap.String("action", action), zap.Error(err))
		}
	}
}
