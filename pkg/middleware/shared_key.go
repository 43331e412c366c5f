package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/logging"
	"storefront/pkg/utils"
)

const (
	AdminKeyHeader = "X-Admin-Key"
	TestKeyHeader  = "X-Test-Key"
)

// RequireSharedKey guards a route with a static secret sent in header.
// An empty key locks the route entirely.
func RequireSharedKey(header, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			logging.From(c).Warn("protected route called but no key is configured", "header", header)
			utils.RespondErrorCode(c, http.StatusUnauthorized, utils.ErrUnauthorized, "key not configured on server")
			c.Abort()
			return
		}

		got := c.GetHeader(header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			logging.From(c).Warn("shared key rejected", "header", header, "remote", c.ClientIP(), "security", true)
			utils.RespondErrorCode(c, http.StatusUnauthorized, utils.ErrUnauthorized, nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
