package middleware

import (
	"testing"
	"time"

	"github.com/groupkeeper-tgbot-go/internal/config"
	"github.com/groupkeeper-tgbot-go/pkg/logger"
)

type floodCounter int

func (c *floodCounter) RecordFloodExceeded() { *c++ }

func newTestGuard(now *time.Time) *FloodGuard {
	g := NewFloodGuard(&config.FloodConfig{Enabled: true, IdleTimeout: time.Minute}, logger.Discard())
	g.now = func() time.Time { return *now }
	return g
}

func TestFloodGuardLimitsBurst(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGuard(&now)
	var exceeded floodCounter
	g.SetRecorder(&exceeded)

	for i := 0; i < 5; i++ {
		if !g.Allow(1, 2, 5, 10*time.Second) {
			t.Fatalf("message %d rejected inside the limit", i+1)
		}
	}
	if g.Allow(1, 2, 5, 10*time.Second) {
		t.Fatal("sixth message inside the window was allowed")
	}
	if exceeded != 1 {
		t.Errorf("recorded %d floods, want 1", exceeded)
	}

	// another member and another chat have their own buckets
	if !g.Allow(1, 3, 5, 10*time.Second) || !g.Allow(9, 2, 5, 10*time.Second) {
		t.Error("independent member was limited")
	}

	// one token refills every window/limit
	now = now.Add(2 * time.Second)
	if !g.Allow(1, 2, 5, 10*time.Second) {
		t.Error("token did not refill")
	}
}

func TestFloodGuardResetAndSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGuard(&now)

	g.Allow(1, 2, 1, time.Minute)
	g.Allow(1, 3, 1, time.Minute)
	g.Allow(2, 2, 1, time.Minute)
	if g.Allow(1, 2, 1, time.Minute) {
		t.Fatal("limit of 1 allowed two messages")
	}

	g.ResetChat(1)
	if g.size() != 1 {
		t.Errorf("size after reset = %d, want 1", g.size())
	}
	if !g.Allow(1, 2, 1, time.Minute) {
		t.Error("reset chat still limited")
	}

	now = now.Add(2 * time.Minute)
	g.Allow(3, 3, 1, time.Minute)
	if removed := g.sweep(); removed != 2 {
		t.Errorf("sweep removed %d, want 2", removed)
	}
}

func TestFloodGuardDisabled(t *testing.T) {
	g := NewFloodGuard(&config.FloodConfig{Enabled: false}, logger.Discard())
	for i := 0; i < 100; i++ {
		if !g.Allow(1, 1, 1, time.Hour) {
			t.Fatal("disabled guard rejected a message")
		}
	}
}
