package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RequestLogger writes one structured log line per request. Server
// errors log at error level, client errors at warn.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path += "?" + c.Request.URL.RawQuery
		}

		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("correlation_id", c.GetString(CorrelationIDKey)).
			Int("size", c.Writer.Size()).
			Msg("request")

		if len(c.Errors) > 0 {
			logger.Error().
				Str("correlation_id", c.GetString(CorrelationIDKey)).
				Str("errors", c.Errors.String()).
				Msg("request errors")
		}
	}
}
