package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// skipLoggingKey is set by NoiseFilter for requests not worth a log line
const skipLoggingKey = "skip_logging"

// Logging writes one line per request. Server errors are logged at error
// level and client errors at warn level.
func Logging(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		if c.GetBool(skipLoggingKey) {
			return
		}

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		attrs := []any{
			"component", "api",
			"request_id", c.GetString(RequestIDKey),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"bytes", c.Writer.Size(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if route := c.FullPath(); route != "" {
			attrs = append(attrs, "route", route)
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			attrs = append(attrs, "error", errs)
		}

		logger.Log(c.Request.Context(), level, "HTTP request", attrs...)
	}
}
