package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
)

func newRateLimitRouter(limit int, now func() time.Time) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{HTTPRateLimit: config.HTTPRateLimitConfig{
		RequestsPerMinute: limit,
		CacheSize:         10,
		CacheTTLSeconds:   120,
	}}
	router := gin.New()
	router.Use(rateLimit(cfg, now))
	router.GET("/api/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func doRequest(router *gin.Engine, path string, remoteAddr string, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRateLimit(t *testing.T) {
	current := time.Date(2025, 5, 1, 10, 0, 15, 0, time.UTC)
	router := newRateLimitRouter(1, func() time.Time { return current })

	first := doRequest(router, "/api/test", "1.2.3.4:1234", "")
	if first.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", first.Code)
	}
	if first.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected remaining header: %q", first.Header().Get("X-RateLimit-Remaining"))
	}

	second := doRequest(router, "/api/test", "1.2.3.4:1234", "")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") != "45" {
		t.Fatalf("unexpected retry-after: %q", second.Header().Get("Retry-After"))
	}

	other := doRequest(router, "/api/test", "5.6.7.8:1234", "")
	if other.Code != http.StatusOK {
		t.Fatalf("other client should have its own budget, got %d", other.Code)
	}

	current = current.Add(time.Minute)
	next := doRequest(router, "/api/test", "1.2.3.4:1234", "")
	if next.Code != http.StatusOK {
		t.Fatalf("new window should reset the budget, got %d", next.Code)
	}
}

func TestRateLimitIdentityByAPIKey(t *testing.T) {
	current := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	router := newRateLimitRouter(1, func() time.Time { return current })

	if resp := doRequest(router, "/api/test", "1.2.3.4:1", "key-a"); resp.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", resp.Code)
	}
	if resp := doRequest(router, "/api/test", "1.2.3.4:1", "key-b"); resp.Code != http.StatusOK {
		t.Fatalf("different key should not share a budget, got %d", resp.Code)
	}
	if resp := doRequest(router, "/api/test", "9.9.9.9:1", "key-a"); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("same key from another ip should share a budget, got %d", resp.Code)
	}
}

func TestRateLimitSkipsPublicAndDisabled(t *testing.T) {
	current := time.Now()
	router := newRateLimitRouter(1, func() time.Time { return current })
	for i := 0; i < 3; i++ {
		if resp := doRequest(router, "/health", "1.2.3.4:1", ""); resp.Code != http.StatusOK {
			t.Fatalf("health should not be limited, got %d", resp.Code)
		}
	}

	disabled := newRateLimitRouter(0, func() time.Time { return current })
	for i := 0; i < 3; i++ {
		if resp := doRequest(disabled, "/api/test", "1.2.3.4:1", ""); resp.Code != http.StatusOK {
			t.Fatalf("limit 0 disables limiting, got %d", resp.Code)
		}
	}
}

func TestHashKey(t *testing.T) {
	if got := hashKey("secret"); len(got) != 16 || got == hashKey("other") {
		t.Fatalf("unexpected hash: %q", got)
	}
}
