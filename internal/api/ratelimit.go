package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter caps requests per client for the one endpoint whose
// response scales with the whole population. Fixed window per client,
// tracked in memory.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*clientWindow
	limit   int
	span    time.Duration
}

type clientWindow struct {
	remaining int
	opened    time.Time
}

// NewRateLimiter allows limit requests per client within each span.
func NewRateLimiter(limit int, span time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*clientWindow),
		limit:   limit,
		span:    span,
	}
}

// Allow reports whether the client may proceed and, when it may not,
// how long until its window reopens.
func (rl *RateLimiter) Allow(client string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[client]
	if !ok || now.Sub(w.opened) >= rl.span {
		rl.sweep(now)
		rl.windows[client] = &clientWindow{remaining: rl.limit - 1, opened: now}
		return true, 0
	}
	if w.remaining > 0 {
		w.remaining--
		return true, 0
	}
	return false, rl.span - now.Sub(w.opened)
}

// sweep drops clients whose window lapsed long ago. Called under mu
// whenever a window is opened, which bounds the map to active clients.
func (rl *RateLimiter) sweep(now time.Time) {
	for client, w := range rl.windows {
		if now.Sub(w.opened) >= 2*rl.span {
			delete(rl.windows, client)
		}
	}
}

// RateLimitMiddleware rejects over-limit clients with 429 and a
// Retry-After hint. Clients are keyed by remote host.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := r.RemoteAddr
		if host, _, err := net.SplitHostPort(client); err == nil {
			client = host
		}
		ok, retry := rl.Allow(client)
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
