package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/groupkeeper-tgbot-go/internal/config"
	"github.com/groupkeeper-tgbot-go/pkg/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// FloodLimiter decides whether a member may post another message.
type FloodLimiter interface {
	Allow(chatID, userID int64, limit int, window time.Duration) bool
	ResetChat(chatID int64)
}

type floodKey struct {
	chatID int64
	userID int64
}

type floodEntry struct {
	limiter  *rate.Limiter
	limit    int
	window   time.Duration
	lastSeen time.Time
}

// FloodGuard implements per-(chat, user) flood control with token buckets
// sized from each chat's flood_limit and flood_window.
type FloodGuard struct {
	enabled         bool
	entries         map[floodKey]*floodEntry
	mu              sync.Mutex
	logger          *logrus.Logger
	cleanupInterval time.Duration
	idleTimeout     time.Duration
	now             func() time.Time
	recorder        FloodRecorder
}

// FloodRecorder counts rejected messages; Metrics implements it.
type FloodRecorder interface {
	RecordFloodExceeded()
}

// NewFloodGuard creates a flood guard. A disabled guard allows everything.
func NewFloodGuard(cfg *config.FloodConfig, logger *logrus.Logger) *FloodGuard {
	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &FloodGuard{
		enabled:         cfg.Enabled,
		entries:         make(map[floodKey]*floodEntry),
		logger:          logger,
		cleanupInterval: cleanup,
		idleTimeout:     idle,
		now:             time.Now,
	}
}

// SetRecorder installs a metrics sink.
func (g *FloodGuard) SetRecorder(r FloodRecorder) {
	g.recorder = r
}

// Allow consumes one token for the member. limit messages are allowed per window.
func (g *FloodGuard) Allow(chatID, userID int64, limit int, window time.Duration) bool {
	if !g.enabled || limit <= 0 || window <= 0 {
		return true
	}

	now := g.now()
	key := floodKey{chatID: chatID, userID: userID}

	g.mu.Lock()
	entry, exists := g.entries[key]
	if !exists || entry.limit != limit || entry.window != window {
		// Refill rate spreads limit tokens evenly across the window.
		every := rate.Every(window / time.Duration(limit))
		entry = &floodEntry{
			limiter: rate.NewLimiter(every, limit),
			limit:   limit,
			window:  window,
		}
		g.entries[key] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)
	g.mu.Unlock()

	if !allowed {
		logger.WithChat(g.logger, chatID, userID).Warn("Flood limit exceeded")
		if g.recorder != nil {
			g.recorder.RecordFloodExceeded()
		}
	}
	return allowed
}

// ResetChat drops every limiter of a chat, e.g. after its flood options changed.
func (g *FloodGuard) ResetChat(chatID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key := range g.entries {
		if key.chatID == chatID {
			delete(g.entries, key)
		}
	}
}

// Run removes idle limiters until ctx is done.
func (g *FloodGuard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.sweep(); n > 0 {
				g.logger.WithField("removed", n).Debug("Removed idle flood limiters")
			}
		}
	}
}

func (g *FloodGuard) sweep() int {
	cutoff := g.now().Add(-g.idleTimeout)
	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for key, entry := range g.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(g.entries, key)
			removed++
		}
	}
	return removed
}

func (g *FloodGuard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
