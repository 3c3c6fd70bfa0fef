package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tharamac2/Tharamac/internal/clock"
)

func TestRateLimiter_SlidingWindow(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(10*time.Minute, 3, clk)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("phone:9876543210"))
		clk.Advance(time.Minute)
	}
	assert.False(t, rl.Allow("phone:9876543210"))
	assert.True(t, rl.Allow("phone:1112223333"), "keys are independent")

	// The first request leaves the window after 10 minutes.
	clk.Advance(7*time.Minute + time.Second)
	assert.True(t, rl.Allow("phone:9876543210"))
	assert.False(t, rl.Allow("phone:9876543210"))
}

func TestRateLimiter_Sweep(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(time.Minute, 1, clk)
	defer rl.Stop()

	rl.Allow("ip:10.0.0.1")
	clk.Advance(2 * time.Minute)
	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.requests)
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 1, clock.New())
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(time.Minute, 1, clock.New())
	defer rl.Stop()
	h := RateLimitMiddleware(rl, GetIPKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/request", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Same host, different source port.
	req.RemoteAddr = "10.0.0.1:6666"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"rate_limited"`)
}

func TestGetIPKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:1234"
	assert.Equal(t, "ip:192.168.1.9", GetIPKey(req))
	req.RemoteAddr = "192.168.1.9"
	assert.Equal(t, "ip:192.168.1.9", GetIPKey(req))
	assert.Equal(t, "phone:9876543210", GetPhoneKey("9876543210"))
}
