package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/logging"
)

const reqBodyLimit = 8 * 1024

var redactedKeys = map[string]bool{
	"password":      true,
	"newpassword":   true,
	"authorization": true,
	"token":         true,
	"s":             true,
	"signature":     true,
	"secret":        true,
	"apikey":        true,
}

func redactJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	var m any
	if err := json.Unmarshal(raw, &m); err != nil {
		return raw
	}
	var scrub func(any) any
	scrub = func(x any) any {
		switch v := x.(type) {
		case map[string]any:
			for k, val := range v {
				if redactedKeys[strings.ToLower(k)] {
					v[k] = "***redacted***"
					continue
				}
				v[k] = scrub(val)
			}
			return v
		case []any:
			for i := range v {
				v[i] = scrub(v[i])
			}
			return v
		default:
			return v
		}
	}
	b, err := json.Marshal(scrub(m))
	if err != nil {
		return raw
	}
	return b
}

func redactForm(raw []byte) []byte {
	vals, err := url.ParseQuery(string(raw))
	if err != nil {
		return []byte("***unparseable form***")
	}
	for k := range vals {
		if redactedKeys[strings.ToLower(k)] {
			vals.Set(k, "***redacted***")
		}
	}
	return []byte(vals.Encode())
}

func readCapped(rc io.ReadCloser, n int) (body []byte, truncated bool) {
	defer rc.Close()
	var buf bytes.Buffer
	_, _ = io.CopyN(&buf, rc, int64(n+1))
	b := buf.Bytes()
	if len(b) > n {
		return b[:n], true
	}
	return b, false
}

// Logging logs one line per request and injects a request-scoped slog.Logger.
// Must run after TraceIDMiddleware.
func Logging(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		l := base.With(
			"trace_id", c.GetString("trace_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"remote", c.ClientIP(),
		)
		logging.With(c, l)

		var reqBodyLogged string
		ct := c.GetHeader("Content-Type")
		isJSON := strings.Contains(ct, "application/json")
		isForm := strings.Contains(ct, "application/x-www-form-urlencoded")
		if (isJSON || isForm) && c.Request.Body != nil {
			body, truncated := readCapped(c.Request.Body, reqBodyLimit)
			// handlers get the original bytes, the log gets the scrubbed copy
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
			if isJSON {
				reqBodyLogged = string(redactJSON(body))
			} else {
				reqBodyLogged = string(redactForm(body))
			}
			if truncated {
				reqBodyLogged += "...truncated..."
			}
		}

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"route", c.FullPath(),
			"status", status,
			"dur_ms", time.Since(start).Milliseconds(),
			"resp_bytes", c.Writer.Size(),
		}
		if reqBodyLogged != "" {
			attrs = append(attrs, "req_body", reqBodyLogged)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			l.Error("http_request", attrs...)
		case status >= http.StatusBadRequest:
			l.Warn("http_request", attrs...)
		default:
			l.Info("http_request", attrs...)
		}
	}
}
