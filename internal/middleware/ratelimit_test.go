package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitedHandler(cfg RateLimitConfig) http.Handler {
	return RateLimiter(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	handler := rateLimitedHandler(RateLimitConfig{RequestsPerSecond: 100, Burst: 10})

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	handler := rateLimitedHandler(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Throttling", body.Error.Code)
	assert.NotEmpty(t, body.Error.Message)
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	handler := rateLimitedHandler(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})

	send := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// Client A exhausts its burst; the port must not split the bucket.
	require.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	require.Equal(t, http.StatusOK, send("10.0.0.1:2345"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5678"))

	// Client B still has a full bucket.
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234"))
}

func TestLimiterPool_ReusesBucketPerKey(t *testing.T) {
	pool := newLimiterPool(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	a := pool.get("10.0.0.1")
	b := pool.get("10.0.0.1")
	c := pool.get("10.0.0.2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, pool.size())
}

func TestLimiterPool_EvictsIdleClients(t *testing.T) {
	pool := newLimiterPool(RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             1,
		IdleTTL:           time.Nanosecond,
		SweepEvery:        time.Nanosecond,
	})

	pool.get("10.0.0.1")
	require.Equal(t, 1, pool.size())

	time.Sleep(time.Millisecond)

	// The next lookup sweeps the idle bucket and registers its own.
	pool.get("10.0.0.2")
	assert.Equal(t, 1, pool.size())
}

func TestLimiterPool_Defaults(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, Burst: 1}.withDefaults()
	assert.Equal(t, 10*time.Minute, cfg.IdleTTL)
	assert.Equal(t, 5*time.Minute, cfg.SweepEvery)
}

func TestClientIP_ExtractsHost(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{
			name:       "IPv4 with port",
			remoteAddr: "192.168.1.1:12345",
			want:       "192.168.1.1",
		},
		{
			name:       "IPv6 with port",
			remoteAddr: "[::1]:12345",
			want:       "::1",
		},
		{
			name:       "spoofed X-Forwarded-For is ignored",
			remoteAddr: "10.0.0.1:1234",
			xff:        "203.0.113.50",
			want:       "10.0.0.1",
		},
		{
			name:       "spoofed X-Forwarded-For chain is ignored",
			remoteAddr: "10.0.0.1:1234",
			xff:        "203.0.113.50, 70.41.3.18, 150.172.238.178",
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
