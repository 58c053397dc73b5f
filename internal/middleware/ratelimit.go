package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig tunes the per-client token buckets.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate (tokens added per second).
	RequestsPerSecond float64
	// Burst is the bucket size.
	Burst int
	// IdleTTL evicts a client's bucket after this much inactivity.
	// Zero means 10 minutes.
	IdleTTL time.Duration
	// SweepEvery bounds how often eviction runs. Zero means 5 minutes.
	SweepEvery time.Duration
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.IdleTTL <= 0 {
		c.IdleTTL = 10 * time.Minute
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 5 * time.Minute
	}
	return c
}

// limiterPool hands out one token bucket per client key. Eviction runs
// inline on lookup, so the pool needs no background goroutine and dies
// with the router that owns it.
type limiterPool struct {
	cfg RateLimitConfig

	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterPool(cfg RateLimitConfig) *limiterPool {
	return &limiterPool{
		cfg:       cfg.withDefaults(),
		clients:   make(map[string]*clientBucket),
		lastSweep: time.Now(),
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if now.Sub(p.lastSweep) >= p.cfg.SweepEvery {
		for k, b := range p.clients {
			if now.Sub(b.lastSeen) > p.cfg.IdleTTL {
				delete(p.clients, k)
			}
		}
		p.lastSweep = now
	}

	if b, ok := p.clients[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	b := &clientBucket{
		limiter:  rate.NewLimiter(rate.Limit(p.cfg.RequestsPerSecond), p.cfg.Burst),
		lastSeen: now,
	}
	p.clients[key] = b
	return b.limiter
}

// size reports the live bucket count.
func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// RateLimiter enforces a per-client token-bucket limit, answering 429 with
// the throttling envelope and rate-limit headers when a client runs dry.
func RateLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	pool := newLimiterPool(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := pool.get(clientIP(r))

			reservation := limiter.Reserve()
			if !reservation.OK() {
				writeTooManyRequests(w, 0)
				return
			}

			if delay := reservation.Delay(); delay > 0 {
				reservation.Cancel()
				writeTooManyRequests(w, int(delay.Seconds())+1)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(pool.cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr. X-Forwarded-For is untrusted
// and ignored; honoring it would let clients pick their own bucket.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "Throttling", "message": "rate of requests exceeded"},
	})
}
