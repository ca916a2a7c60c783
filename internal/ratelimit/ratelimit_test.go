package ratelimit

import (
	"testing"

	"golang.org/x/time/rate"
)

func TestAllowConsumesBurstThenDenies(t *testing.T) {
	p := NewPerIdentity(rate.Limit(1), 2)

	if !p.Allow("client-a") {
		t.Error("expected the first request to be allowed")
	}
	if !p.Allow("client-a") {
		t.Error("expected the second request (within burst) to be allowed")
	}
	if p.Allow("client-a") {
		t.Error("expected the third request to be denied once the burst is exhausted")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	p := NewPerIdentity(rate.Limit(1), 1)

	if !p.Allow("client-a") {
		t.Fatal("expected client-a's first request to be allowed")
	}
	if p.Allow("client-a") {
		t.Fatal("expected client-a's second request to be denied")
	}
	if !p.Allow("client-b") {
		t.Error("expected client-b to have its own independent bucket")
	}
}

func TestCountTracksDistinctKeys(t *testing.T) {
	p := NewPerIdentity(rate.Limit(5), 5)
	if p.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 before any requests", p.Count())
	}

	p.Allow("a")
	p.Allow("b")
	p.Allow("a")
	if p.Count() != 2 {
		t.Errorf("Count() = %d, want 2 distinct keys", p.Count())
	}
}
