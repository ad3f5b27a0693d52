package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// rateWindow tracks one client's requests in the current fixed window.
type rateWindow struct {
	count int
	start time.Time
}

// rateLimiter is a per-IP fixed-window counter held in memory. Expired
// windows are swept lazily, at most once per window length.
type rateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	clients   map[string]*rateWindow
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

// allow records a request from ip. It returns false and the time until the
// window resets when ip is over its limit.
func (l *rateLimiter) allow(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.window {
		for k, w := range l.clients {
			if now.Sub(w.start) > l.window {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	w, ok := l.clients[ip]
	if !ok || now.Sub(w.start) > l.window {
		l.clients[ip] = &rateWindow{count: 1, start: now}
		return true, 0
	}

	w.count++
	if w.count > l.limit {
		return false, w.start.Add(l.window).Sub(now)
	}
	return true, 0
}

// RateLimit allows maxRequests per client IP per window. Excess requests
// get 429 with a Retry-After header and the usual error result body.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	limiter := newRateLimiter(maxRequests, window)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, retryAfter := limiter.allow(c.RealIP())
			if ok {
				return next(c)
			}
			seconds := int(retryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(seconds))
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"status":  "error",
				"message": "Rate limit exceeded. Please try again later.",
			})
		}
	}
}
