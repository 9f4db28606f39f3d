package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/lemon", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	h := RateLimit(1, 2)(okHandler())

	for i := range 2 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestFrom("10.0.0.1:1234"))
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.0.0.1:5678"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestRateLimit_PerClient(t *testing.T) {
	h := RateLimit(1, 1)(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.0.0.1:1"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.0.0.2:1"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_IgnoresForwardedFor(t *testing.T) {
	h := RateLimit(1, 1)(okHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.0.0.1:1"))
	assert.Equal(t, http.StatusOK, w.Code)

	req := requestFrom("10.0.0.1:2")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(0, 0)(okHandler())

	for range 20 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestFrom("10.0.0.1:1"))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestIPLimiters_SweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := &ipLimiters{
		rps:     1,
		burst:   1,
		clients: make(map[string]*clientLimiter),
		now:     func() time.Time { return now },
	}

	l.get("10.0.0.1")
	now = now.Add(limiterIdleTTL + limiterSweepGap + time.Second)
	l.get("10.0.0.2")

	assert.NotContains(t, l.clients, "10.0.0.1")
	assert.Contains(t, l.clients, "10.0.0.2")
}
