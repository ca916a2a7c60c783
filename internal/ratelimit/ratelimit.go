// Package ratelimit bounds how often a given caller may mint a
// challenge (spec.md §4.C, §4.G). It is grounded on the teacher's
// bootstrap/main.go BootstrapService, which keyed a map of
// golang.org/x/time/rate limiters by client IP and allocated one lazily
// per key on first use; here the key is the caller's peer address
// (GetChallenge carries no identity of its own to key on).
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// PerIdentity hands out one rate.Limiter per key, created lazily with the
// configured rate/burst the first time that key is seen.
type PerIdentity struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPerIdentity builds a limiter pool issuing `limit` events per second
// with the given burst to each distinct key.
func NewPerIdentity(limit rate.Limit, burst int) *PerIdentity {
	return &PerIdentity{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (p *PerIdentity) limiterFor(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[key] = l
	}
	return l
}

// Allow reports whether the caller identified by key may proceed now,
// consuming one token from its bucket if so.
func (p *PerIdentity) Allow(key string) bool {
	return p.limiterFor(key).Allow()
}

// Count reports how many distinct keys currently hold a limiter. Limiters
// are never evicted, so this only grows as new keys are seen.
func (p *PerIdentity) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.limiters)
}
