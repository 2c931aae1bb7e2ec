package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"astra/errs"
	"astra/models"

	"github.com/gin-gonic/gin"
)

// CORS はどのオリジンからの呼び出しも許可する
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// APIKey は X-API-Key か Bearer トークンを確認する。key が空なら何もしない
func APIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		got := c.GetHeader("X-API-Key")
		if got == "" {
			got = strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		}
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			err := errs.WithMessage(errs.ErrInvalidAPIKey, "invalid or missing api key")
			c.AbortWithStatusJSON(err.HttpStatusCode, models.ErrorResponse{Success: false, Error: err.PublicMessage()})
			return
		}
		c.Next()
	}
}
