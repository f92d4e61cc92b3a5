package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/kitchen-assistant/backend/internal/logger"
	"github.com/pageza/kitchen-assistant/backend/internal/metrics"
)

// Recovery turns a handler panic into the in-band failure body
// {"success": false, "error": message} and logs the panic value.
func Recovery(l *slog.Logger, message string) gin.HandlerFunc {
	l = logger.OrDefault(l)
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				metrics.PanicRecoveries.Inc()
				var errMsg string
				switch v := err.(type) {
				case error:
					errMsg = v.Error()
				default:
					errMsg = fmt.Sprintf("%v", v)
				}
				l.ErrorContext(c.Request.Context(), "panic recovered",
					"error", errMsg,
					"request_id", RequestIDFrom(c),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusOK, gin.H{"success": false, "error": message})
			}
		}()
		c.Next()
	}
}
