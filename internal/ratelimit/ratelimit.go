// Package ratelimit enforces per-client request quotas per route.
//
// The key is the caller's network address for the whole process; quotas do
// not shift when a session authenticates, so a client's effective budget is
// stable across login. Sensitive routes carry stricter overrides.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether a request may proceed. Implementations other than
// the local one (a shared-counter backend for multi-instance deployments)
// can be swapped in without changing this contract.
type Limiter interface {
	// Allow reports whether the request identified by (key, route) is
	// within quota. When it is not, the returned duration hints how long
	// the caller should wait before retrying.
	Allow(key, route string) (bool, time.Duration)
}

// Config holds quota configuration for the local limiter.
type Config struct {
	// Default is the per-key quota per window for routes without an
	// override.
	Default int

	// Window is the quota accounting interval.
	Window time.Duration

	// Overrides maps a route to a stricter quota per window.
	Overrides map[string]int

	// MaxKeys caps the number of tracked (key, route) pairs. When the
	// table grows past the cap it is reset; long-lived keys re-enter with
	// a fresh budget, which is acceptable for an in-process limiter.
	MaxKeys int
}

// Local is an in-process Limiter backed by token buckets.
//
// Each (key, route) pair gets a bucket with burst equal to the quota and a
// refill rate of quota per window: a key may spend its whole window budget
// at once, then is throttled until tokens return. Expired windows therefore
// reset the budget gradually rather than on a hard boundary.
type Local struct {
	config Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLocal creates a local limiter from the given config.
func NewLocal(config Config) *Local {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 10000
	}
	return &Local{
		config:   config,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow implements Limiter.
func (l *Local) Allow(key, route string) (bool, time.Duration) {
	lim := l.limiter(key, route)
	if lim.Allow() {
		return true, 0
	}

	// Reserve to learn the wait, then put the token back.
	r := lim.Reserve()
	delay := r.Delay()
	r.Cancel()
	return false, delay
}

// quotaFor returns the quota for a route, honoring overrides.
func (l *Local) quotaFor(route string) int {
	if q, ok := l.config.Overrides[route]; ok {
		return q
	}
	return l.config.Default
}

func (l *Local) limiter(key, route string) *rate.Limiter {
	mapKey := key + "|" + route

	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[mapKey]; ok {
		return lim
	}

	// Bound memory: drop the whole table when it grows past the cap.
	if len(l.limiters) >= l.config.MaxKeys {
		l.limiters = make(map[string]*rate.Limiter)
	}

	quota := l.quotaFor(route)
	lim := rate.NewLimiter(rate.Limit(float64(quota)/l.config.Window.Seconds()), quota)
	l.limiters[mapKey] = lim
	return lim
}
