package middlewares

import (
	"time"

	"astra/logger"

	"github.com/gin-gonic/gin"
)

// Logger はリクエストごとに1行ログを出す
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= 500:
			logger.Error("request", args...)
		case status >= 400:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}
	}
}
