// Package ratelimit throttles the state-changing endpoints per client.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter allows a fixed number of requests per client in each window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type window struct {
	start    time.Time
	requests int
}

// Config holds rate limiter configuration
type Config struct {
	Requests        int
	Period          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig allows 30 requests per client and minute.
func DefaultConfig() Config {
	return Config{
		Requests:        30,
		Period:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter creates a limiter. A positive CleanupInterval starts a goroutine
// that forgets idle clients until Stop is called.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.Requests <= 0 {
		config.Requests = def.Requests
	}
	if config.Period <= 0 {
		config.Period = def.Period
	}
	l := &Limiter{
		clients:     make(map[string]*window),
		limit:       config.Requests,
		period:      config.Period,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go l.cleanupLoop(config.CleanupInterval)
	}
	return l
}

// WithClock replaces the time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records a request from client and reports whether it is within the limit.
func (l *Limiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[client]
	if !ok || now.Sub(w.start) >= l.period {
		l.clients[client] = &window{start: now, requests: 1}
		return true
	}
	w.requests++
	return w.requests <= l.limit
}

// retryAfter is the time until client's window resets.
func (l *Limiter) retryAfter(client string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.clients[client]; ok {
		if d := l.period - l.now().Sub(w.start); d > 0 {
			return d
		}
	}
	return 0
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Forget()
		case <-l.stopCleanup:
			return
		}
	}
}

// Forget drops clients whose window has expired and returns how many remain.
func (l *Limiter) Forget() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for client, w := range l.clients {
		if now.Sub(w.start) >= l.period {
			delete(l.clients, client)
		}
	}
	return len(l.clients)
}

// Stop gracefully shuts down the cleanup goroutine
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() { close(l.stopCleanup) })
}

// Middleware rejects requests over the limit with 429. Safe methods pass.
func (l *Limiter) Middleware(extractIP func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			client := extractIP(r)
			if !l.Allow(client) {
				secs := int(l.retryAfter(client).Round(time.Second) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
