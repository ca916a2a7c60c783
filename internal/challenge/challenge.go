// Package challenge implements the single-use nonce service of spec.md
// §4.C: mint a fresh 32-byte CSPRNG challenge, consume it exactly once on
// a matching signed request. It is grounded on the teacher's
// bootstrap/main.go TokenRegistry, which pairs a guarded map with a TTL
// sweep — adopted here to satisfy spec.md §9's redesign flag that the
// challenge set must not grow without bound.
package challenge

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/yutiansut/bastionlab/internal/errs"
)

// Size is the byte length of every minted challenge (spec.md §4.C).
const Size = 32

// DefaultTTL bounds how long an unconsumed challenge stays valid, the
// time-based expiry spec.md §9 recommends in place of an unbounded set.
const DefaultTTL = 5 * time.Minute

// Service is the challenge set: all operations hold a single exclusive
// lock, since mint and consume both mutate the same map and neither is
// frequent enough to warrant read/write splitting.
type Service struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]time.Time
}

// New constructs a Service with the given TTL. A non-positive ttl
// disables expiry, matching spec.md's literal (unbounded) reading.
func New(ttl time.Duration) *Service {
	return &Service{ttl: ttl, pending: make(map[string]time.Time)}
}

// Mint draws Size fresh random bytes, retrying on collision with a still
// pending challenge, and records it with the current time.
func (s *Service) Mint() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		buf := make([]byte, Size)
		if _, err := rand.Read(buf); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "failed to draw challenge bytes")
		}
		key := hex.EncodeToString(buf)
		if _, exists := s.pending[key]; exists {
			continue
		}
		s.pending[key] = time.Now()
		return buf, nil
	}
}

// Consume removes challenge from the pending set if present (expired or
// not) and succeeds only if it had not yet expired, returning
// PermissionDenied otherwise — covering both an
// unknown challenge and a replayed one, since both must fail identically
// per spec.md §4.C ("every consume after the first fails").
func (s *Service) Consume(challenge []byte) error {
	key := hex.EncodeToString(challenge)

	s.mu.Lock()
	defer s.mu.Unlock()

	mintedAt, ok := s.pending[key]
	if !ok {
		return errs.New(errs.PermissionDenied, "Invalid or reused challenge")
	}
	delete(s.pending, key)
	if s.ttl > 0 && time.Since(mintedAt) > s.ttl {
		return errs.New(errs.PermissionDenied, "Invalid or reused challenge")
	}
	return nil
}

// Sweep removes every pending challenge older than the configured TTL.
// Call it periodically (e.g. from a background goroutine) to bound
// memory held by challenges a client minted but never used.
func (s *Service) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, t := range s.pending {
		if t.Before(cutoff) {
			delete(s.pending, k)
			removed++
		}
	}
	return removed
}

// Count reports the number of challenges currently outstanding.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Run sweeps expired challenges on interval until stop is closed. Intended
// to be launched as a background goroutine from cmd/server/main.go.
func (s *Service) Run(stop <-chan struct{}, interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
