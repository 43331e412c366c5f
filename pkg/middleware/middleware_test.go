package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) { c.String(http.StatusOK, "ok") }

func TestTraceIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(TraceIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("trace_id")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, w.Body.String(), w.Header().Get(TraceHeader))

	incoming := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, incoming)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "not a uuid\r\ninjected")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotContains(t, w.Body.String(), "injected")
}

func TestRequireSharedKey(t *testing.T) {
	r := gin.New()
	r.GET("/admin", RequireSharedKey(AdminKeyHeader, "s3cret"), okHandler)
	r.GET("/locked", RequireSharedKey(TestKeyHeader, ""), okHandler)

	cases := []struct {
		path, header, key string
		want              int
	}{
		{"/admin", AdminKeyHeader, "s3cret", http.StatusOK},
		{"/admin", AdminKeyHeader, "wrong", http.StatusUnauthorized},
		{"/admin", AdminKeyHeader, "", http.StatusUnauthorized},
		{"/locked", TestKeyHeader, "", http.StatusUnauthorized},
		{"/locked", TestKeyHeader, "anything", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.key != "" {
			req.Header.Set(tc.header, tc.key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "%s with %q", tc.path, tc.key)
	}
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := NewRateLimiter("webhook", 2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/flow/confirm", rl.Middleware(), okHandler)

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/flow/confirm", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2"))

	// one token refills every window/limit
	now = now.Add(31 * time.Second)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, rl.Cleanup())
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://shop.example.com/"}, false))
	r.GET("/", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	dev := gin.New()
	dev.Use(CORS(nil, true))
	dev.GET("/", okHandler)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w = httptest.NewRecorder()
	dev.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogging_RedactsSecretsAndKeepsBody(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(TraceIDMiddleware(), Logging(base))
	r.POST("/flow/confirm", func(c *gin.Context) {
		c.String(http.StatusOK, c.PostForm("token"))
	})
	r.POST("/api/reset-password", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		c.Data(http.StatusOK, "application/json", b)
	})

	req := httptest.NewRequest(http.MethodPost, "/flow/confirm", strings.NewReader("token=tok_abc&s=deadbeef"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "tok_abc", w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/reset-password", strings.NewReader(`{"token":"t1","newPassword":"hunter22"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), "hunter22")

	logged := buf.String()
	assert.NotContains(t, logged, "tok_abc")
	assert.NotContains(t, logged, "deadbeef")
	assert.NotContains(t, logged, "hunter22")
	assert.Contains(t, logged, "redacted")

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.SplitN(logged, "\n", 2)[0]), &first))
	assert.Equal(t, "http_request", first["msg"])
	assert.Equal(t, "/flow/confirm", first["route"])
	assert.NotEmpty(t, first["trace_id"])
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/health", okHandler)

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
}
