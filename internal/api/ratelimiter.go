package api

import (
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

type rateLimiter interface {
	Allow() bool
}

// RateLimiter is a token bucket whose rate and burst can change while requests are
// served. A non-positive rate or burst disables it.
type RateLimiter struct {
	mu sync.Mutex
	// current is nil while the limiter is disabled.
	current atomic.Pointer[rate.Limiter]
}

// NewRateLimiter creates a limiter allowing rps requests per second with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	l := &RateLimiter{}
	l.Update(rps, burst)
	return l
}

// Allow reports whether a request may proceed now.
func (l *RateLimiter) Allow() bool {
	lim := l.current.Load()
	return lim == nil || lim.Allow()
}

// Update applies a new rate and burst and reports whether anything changed.
// Tokens already in the bucket are kept, capped at the new burst.
func (l *RateLimiter) Update(rps float64, burst int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim := l.current.Load()
	if rps <= 0 || burst <= 0 {
		l.current.Store(nil)
		return lim != nil
	}
	if lim == nil {
		l.current.Store(rate.NewLimiter(rate.Limit(rps), burst))
		return true
	}
	if lim.Limit() == rate.Limit(rps) && lim.Burst() == burst {
		return false
	}
	lim.SetBurst(burst)
	lim.SetLimit(rate.Limit(rps))
	return true
}

// Limits returns the active rate and burst, or zeros when disabled.
func (l *RateLimiter) Limits() (float64, int) {
	lim := l.current.Load()
	if lim == nil {
		return 0, 0
	}
	return float64(lim.Limit()), lim.Burst()
}

func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow() {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}
