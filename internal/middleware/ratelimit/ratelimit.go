// Package ratelimit throttles clients per key with a fixed one-minute window.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	window    = time.Minute
	staleTime = 10 * time.Minute
)

// Decision is the outcome of one Allow call. RetryAfter is the time until
// the client's window resets.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1.
func (d Decision) RetryAfterSeconds() int {
	s := int(math.Ceil(d.RetryAfter.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

type Limiter struct {
	mu       sync.Mutex
	clients  map[string]*bucket
	stop     chan struct{}
	stopOnce sync.Once
	rejected atomic.Int64

	perMinute  int
	sweepEvery time.Duration
	now        func() time.Time
}

type bucket struct {
	start time.Time
	last  time.Time
	count int
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter starts a sweeper that drops idle clients. Call Stop to end it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		clients:    make(map[string]*bucket),
		stop:       make(chan struct{}),
		perMinute:  config.RequestsPerMinute,
		sweepEvery: config.CleanupInterval,
		now:        time.Now,
	}
	go rl.sweepLoop()
	return rl
}

// Allow counts one request for key. The window starts at the client's first
// request and is not extended by later ones.
func (rl *Limiter) Allow(key string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.clients[key]
	if !ok || now.Sub(b.start) >= window {
		if !ok {
			b = &bucket{}
			rl.clients[key] = b
		}
		b.start, b.count = now, 0
	}
	b.last = now
	b.count++

	d := Decision{
		Allowed:    b.count <= rl.perMinute,
		Limit:      rl.perMinute,
		Remaining:  max(rl.perMinute-b.count, 0),
		RetryAfter: b.start.Add(window).Sub(now),
	}
	if !d.Allowed {
		rl.rejected.Add(1)
	}
	return d
}

func (rl *Limiter) sweepLoop() {
	ticker := time.NewTicker(rl.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

func (rl *Limiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	cutoff := rl.now().Add(-staleTime)
	for key, b := range rl.clients {
		if b.last.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of tracked keys.
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Rejected returns how many requests have been refused.
func (rl *Limiter) Rejected() int64 {
	return rl.rejected.Load()
}

func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Middleware limits the requests selected by apply; the rest pass through
// uncounted. Counted requests get X-RateLimit-Limit and
// X-RateLimit-Remaining headers. onLimit writes the rejection; nil sends a
// plain 429 with Retry-After.
func (rl *Limiter) Middleware(key func(*http.Request) string, apply func(*http.Request) bool, onLimit func(http.ResponseWriter, *http.Request, Decision)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apply != nil && !apply(r) {
				next.ServeHTTP(w, r)
				return
			}

			d := rl.Allow(key(r))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if onLimit != nil {
				onLimit(w, r, d)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		})
	}
}
