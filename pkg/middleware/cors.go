package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS echoes allowed origins. In development any localhost origin is accepted.
func CORS(origins []string, development bool) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	wildcard := false
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}

	isAllowed := func(origin string) bool {
		if wildcard || allowed[origin] {
			return true
		}
		if development {
			if u, err := url.Parse(origin); err == nil {
				h := u.Hostname()
				return h == "localhost" || h == "127.0.0.1"
			}
		}
		return false
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && isAllowed(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+AdminKeyHeader+", "+TestKeyHeader+", "+TraceHeader)
			h.Set("Access-Control-Expose-Headers", TraceHeader)
			h.Set("Access-Control-Max-Age", "600")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
