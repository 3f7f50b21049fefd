package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sichatlabs/sichat-deploy/pkg/telemetry/correlation"
)

// RequestID attaches a correlation ID to every request, honoring one
// supplied by the caller.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if id == "" {
			id = correlation.NewID()
		}
		c.Set("request_id", id)
		c.Request = c.Request.WithContext(correlation.ContextWithCorrelationID(c.Request.Context(), id))
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
