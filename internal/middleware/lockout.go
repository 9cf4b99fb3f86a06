package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	lockoutMaxAttempts = 5
	lockoutWindow      = 15 * time.Minute
	lockoutDuration    = 5 * time.Minute
	lockoutCleanup     = 60 * time.Second
	lockoutMaxRecords  = 10000
)

type failureRecord struct {
	attempts  int
	firstFail time.Time
	lockedAt  time.Time
}

// LockoutGuard blocks clients that fail authentication too often within
// a tracking window.
type LockoutGuard struct {
	mu      sync.Mutex
	records map[string]*failureRecord
	log     *logrus.Logger
	now     func() time.Time
}

// NewLockoutGuard creates a guard whose cleanup loop stops when ctx is cancelled.
func NewLockoutGuard(ctx context.Context, log *logrus.Logger) *LockoutGuard {
	g := &LockoutGuard{
		records: make(map[string]*failureRecord),
		log:     log,
		now:     time.Now,
	}
	go g.cleanupLoop(ctx)
	return g
}

// Blocked reports whether client is currently locked out.
func (g *LockoutGuard) Blocked(client string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[client]
	return ok && !rec.lockedAt.IsZero() && g.now().Sub(rec.lockedAt) < lockoutDuration
}

// RecordFailure counts a failed attempt and locks the client at the threshold.
func (g *LockoutGuard) RecordFailure(client string) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[client]
	if !ok || now.Sub(rec.firstFail) > lockoutWindow {
		if !ok && len(g.records) >= lockoutMaxRecords {
			g.evictOldest()
		}
		g.records[client] = &failureRecord{attempts: 1, firstFail: now}
		return
	}

	rec.attempts++
	if rec.attempts >= lockoutMaxAttempts && rec.lockedAt.IsZero() {
		rec.lockedAt = now
		g.log.WithField("client_ip", client).Warn("client locked out after repeated auth failures")
	}
}

// Reset clears tracking for client after a successful authentication.
func (g *LockoutGuard) Reset(client string) {
	g.mu.Lock()
	delete(g.records, client)
	g.mu.Unlock()
}

func (g *LockoutGuard) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(lockoutCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

func (g *LockoutGuard) sweep() {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for k, rec := range g.records {
		expired := !rec.lockedAt.IsZero() && now.Sub(rec.lockedAt) >= lockoutDuration
		if expired || (rec.lockedAt.IsZero() && now.Sub(rec.firstFail) >= lockoutWindow) {
			delete(g.records, k)
		}
	}
}

// evictOldest drops the record with the oldest first failure. Caller holds g.mu.
func (g *LockoutGuard) evictOldest() {
	var oldest string
	var at time.Time
	for k, rec := range g.records {
		if oldest == "" || rec.firstFail.Before(at) {
			oldest, at = k, rec.firstFail
		}
	}
	delete(g.records, oldest)
}
