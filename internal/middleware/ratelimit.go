// Package middleware holds HTTP middleware shared by every route.
package middleware

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"

	"github.com/nicolemoreira12/PROYECTO-AUTONOMO/internal/httputil"
)

const (
	cleanupInterval = time.Minute
	staleAfter      = 3 * time.Minute
)

// ipLimiter holds a rate limiter and the last time it was used, in unix
// nanoseconds.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// rateLimiterStore manages per-IP rate limiters.
type rateLimiterStore struct {
	limiters *xsync.MapOf[string, *ipLimiter]
	rps      float64
	burst    int
}

func newRateLimiterStore(rps float64, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters: xsync.NewMapOf[string, *ipLimiter](),
		rps:      rps,
		burst:    burst,
	}
}

// getLimiter returns the rate limiter for the given IP, creating one if needed.
func (s *rateLimiterStore) getLimiter(ip string, now time.Time) *rate.Limiter {
	entry, _ := s.limiters.LoadOrCompute(ip, func() *ipLimiter {
		return &ipLimiter{limiter: rate.NewLimiter(rate.Limit(s.rps), s.burst)}
	})
	entry.lastSeen.Store(now.UnixNano())
	return entry.limiter
}

// evictStale removes entries not used since before cutoff.
func (s *rateLimiterStore) evictStale(cutoff time.Time) {
	s.limiters.Range(func(ip string, entry *ipLimiter) bool {
		if entry.lastSeen.Load() < cutoff.UnixNano() {
			s.limiters.Delete(ip)
		}
		return true
	})
}

// cleanup evicts stale entries every minute until ctx is cancelled.
func (s *rateLimiterStore) cleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.evictStale(now.Add(-staleAfter))
		case <-ctx.Done():
			return
		}
	}
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is ignored so
// clients cannot pick their own bucket.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port.
		return r.RemoteAddr
	}
	return ip
}

// RateLimitMiddleware returns a gorilla/mux middleware that enforces per-IP
// rate limiting using a token bucket algorithm. rps is the sustained
// requests-per-second rate and burst is the maximum burst size; rps <= 0
// disables limiting. Idle limiters are dropped until ctx is cancelled.
func RateLimitMiddleware(ctx context.Context, rps float64, burst int) mux.MiddlewareFunc {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	store := newRateLimiterStore(rps, max(burst, 1))
	go store.cleanup(ctx)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := store.getLimiter(clientIP(r), time.Now())

			if !limiter.Allow() {
				httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
