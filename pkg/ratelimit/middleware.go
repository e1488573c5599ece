package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Config holds login throttling configuration
type Config struct {
	Capacity   int           // max burst per client IP
	RefillRate float64       // requests per second per client IP
	BucketTTL  time.Duration // how long to keep idle buckets
}

// DefaultConfig allows 10 attempts per minute per client IP
func DefaultConfig() Config {
	return Config{
		Capacity:   10,
		RefillRate: 10.0 / 60.0,
		BucketTTL:  time.Hour,
	}
}

// Middleware throttles requests per client IP. It sits in front of the
// login endpoint so password-guessing bursts are cut off before they
// reach the hashing path.
type Middleware struct {
	limiter *KeyedLimiter
}

// NewMiddleware creates a new throttling middleware
func NewMiddleware(config Config) *Middleware {
	return &Middleware{
		limiter: NewKeyedLimiter(config.Capacity, config.RefillRate, config.BucketTTL),
	}
}

// Handler returns the throttling middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !m.limiter.Allow(ip) {
			slog.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"type":"rate_limit_exceeded","message":"Too many requests. Please try again later."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the client IP address from the request. X-Forwarded-For
// may carry a proxy chain; only the first hop is the client.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
