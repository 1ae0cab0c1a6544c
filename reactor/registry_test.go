// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

package reactor

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-dcp/api"
)

func TestRegistryPeekDoesNotConsume(t *testing.T) {
	r := newRegistry()
	if r.peek() != 1 || r.peek() != 1 {
		t.Fatalf("peek must be stable, got %v", r.peek())
	}
	r.commit(r.peek(), 10, api.InterestReadable)
	if r.peek() != 2 {
		t.Fatalf("expected next token 2, got %v", r.peek())
	}
}

func TestRegistryLifecycle(t *testing.T) {
	r := newRegistry()
	a := r.peek()
	r.commit(a, 3, api.InterestReadable)
	b := r.peek()
	r.commit(b, 4, api.InterestBoth)

	if tok, ok := r.tokenOf(4); !ok || tok != b {
		t.Fatalf("tokenOf(4) = %v, %v", tok, ok)
	}
	r.setInterest(a, api.InterestWritable)
	if reg, _ := r.lookup(a); reg.interest != api.InterestWritable || reg.fd != 3 {
		t.Fatalf("unexpected registration %+v", reg)
	}
	r.remove(a)
	if _, ok := r.lookup(a); ok {
		t.Fatal("removed token still present")
	}
	if _, ok := r.tokenOf(3); ok {
		t.Fatal("removed fd still mapped")
	}
	// Tokens are never reused after removal.
	c := r.peek()
	r.commit(c, 3, api.InterestReadable)
	if c <= b {
		t.Fatalf("token reused: %v <= %v", c, b)
	}
	if r.len() != 2 {
		t.Fatalf("expected 2 registrations, got %d", r.len())
	}
}

func TestNotFoundError(t *testing.T) {
	err := notFound("modify", 42)
	if !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{}.normalize()
	if cfg.MaxEvents != DefaultMaxEvents || cfg.Logger == nil {
		t.Fatalf("unexpected normalized config %+v", cfg)
	}
	def := DefaultConfig()
	if def.MaxEvents != 1024 || !def.PreferIOUring {
		t.Fatalf("unexpected default config %+v", def)
	}
}

func TestRegistryDisplacedToken(t *testing.T) {
	r := newRegistry()
	old := r.peek()
	if _, displaced := r.commitIdent(old, 7, api.InterestReadable, fdIdent{dev: 1, ino: 10}); displaced {
		t.Fatal("first binding reported a displaced token")
	}
	fresh := r.peek()
	prev, displaced := r.commitIdent(fresh, 7, api.InterestReadable, fdIdent{dev: 1, ino: 11})
	if !displaced || prev != old {
		t.Fatalf("expected %v displaced, got %v %v", old, prev, displaced)
	}
	if r.current(old) || !r.current(fresh) {
		t.Fatal("binding not moved to the newer token")
	}
	if _, ok := r.lookup(old); !ok {
		t.Fatal("stale token dropped before deregistration")
	}

	r.remove(old)
	if tok, ok := r.tokenOf(7); !ok || tok != fresh {
		t.Fatalf("removing the stale token unbound fd 7: %v %v", tok, ok)
	}
	if err := staleToken("modify", old, 7); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("stale token error %v", err)
	}
}
