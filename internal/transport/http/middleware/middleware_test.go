package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/logging"
	"docchat/internal/pkg/jwtutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthJWT(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthJWT("secret"), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", CurrentUserID(c))
	})

	valid, err := jwtutil.GenerateToken("secret", time.Hour, 42, "alice")
	require.NoError(t, err)
	foreign, err := jwtutil.GenerateToken("other", time.Hour, 42, "alice")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "42", w.Body.String())
			}
		})
	}
}

func TestRateLimiterPerUser(t *testing.T) {
	rl, stop := NewRateLimiter(0, 2)
	defer stop()

	r := gin.New()
	r.POST("/ask", func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid == "1" {
			c.Set(ContextUserIDKey, uint(1))
		} else {
			c.Set(ContextUserIDKey, uint(2))
		}
		c.Next()
	}, rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	ask := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ask", nil)
		req.Header.Set("X-Test-User", user)
		return serve(r, req)
	}

	assert.Equal(t, http.StatusNoContent, ask("1").Code)
	assert.Equal(t, http.StatusNoContent, ask("1").Code)
	limited := ask("1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	// another user has their own bucket
	assert.Equal(t, http.StatusNoContent, ask("2").Code)
}

func TestRateLimiterEvictsIdleEntries(t *testing.T) {
	rl, stop := NewRateLimiter(1, 1)
	defer stop()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.limiterFor("user:1")
	now = now.Add(limiterIdleTTL / 2)
	rl.limiterFor("user:2")

	now = now.Add(limiterIdleTTL/2 + time.Second)
	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.limiters, "user:1")
	assert.Contains(t, rl.limiters, "user:2")
}

func TestRequestLoggerPropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(logging.NewWithWriter(&buf, "info", "json")))
	r.GET("/ping", func(c *gin.Context) {
		logging.FromContext(c.Request.Context()).Info("inside handler")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := serve(r, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte(`"request_id":"req-123"`)))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}
