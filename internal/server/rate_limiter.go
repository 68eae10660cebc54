// Package server implements token bucket rate limiting for per-connection
// and per-remote throttling that protects the core from abuse.
package server

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type rateLimiter struct {
	limiter *rate.Limiter
}

// newRateLimiter allows bursts of capacity events, refilled in full every interval.
func newRateLimiter(capacity int, interval time.Duration) *rateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	every := interval / time.Duration(capacity)
	if every <= 0 {
		every = time.Nanosecond
	}

	return &rateLimiter{
		limiter: rate.NewLimiter(rate.Every(every), capacity),
	}
}

func (rl *rateLimiter) allow() bool {
	return rl.limiter.Allow()
}

type limiterEntry struct {
	limiter  *rateLimiter
	lastSeen time.Time
}

// limiterPool hands out one limiter per key and forgets keys that have been
// idle for longer than ttl.
type limiterPool struct {
	mu       sync.Mutex
	entries  map[string]*limiterEntry
	cfg      RateLimitConfig
	ttl      time.Duration
	now      func() time.Time
	lastScan time.Time
}

func newLimiterPool(cfg RateLimitConfig, ttl time.Duration) *limiterPool {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &limiterPool{
		entries: make(map[string]*limiterEntry),
		cfg:     cfg,
		ttl:     ttl,
		now:     time.Now,
	}
}

// allow reports whether the next event for key fits in its budget.
func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	now := p.now()
	p.evictLocked(now)

	e, ok := p.entries[key]
	if !ok {
		e = &limiterEntry{limiter: newRateLimiter(p.cfg.Burst, p.cfg.RefillInterval)}
		p.entries[key] = e
	}
	e.lastSeen = now
	p.mu.Unlock()

	return e.limiter.allow()
}

// evictLocked drops idle entries at most once per ttl.
func (p *limiterPool) evictLocked(now time.Time) {
	if now.Sub(p.lastScan) < p.ttl {
		return
	}
	p.lastScan = now

	cutoff := now.Add(-p.ttl)
	for key, e := range p.entries {
		if e.lastSeen.Before(cutoff) {
			delete(p.entries, key)
		}
	}
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// remoteHost strips the port from a RemoteAddr.
func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
