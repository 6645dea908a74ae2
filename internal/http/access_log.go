package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashvest/minerdash/internal/util"
	log "github.com/sirupsen/logrus"
)

// AccessLogMiddleware logs one line per request with credential-like query values masked.
func AccessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Microsecond).String(),
			"client":  c.ClientIP(),
		})
		if raw := c.Request.URL.RawQuery; raw != "" {
			entry = entry.WithField("query", util.MaskSensitiveQuery(raw))
		}
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Warn("http: request failed")
		case c.Request.URL.Path == "/healthz":
			entry.Debug("http: request")
		default:
			entry.Info("http: request")
		}
	}
}
