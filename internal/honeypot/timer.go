package honeypot

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dipanshu-saikia/agentic-honeypot/internal/ratelimit"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/session"
)

// Timer is the cleanup scheduler. On each tick it evicts expired session
// records and tears down rate-limiter state for sessions the store no longer
// tracks, so limiter entries cannot leak past their session.
type Timer struct {
	store    *session.Store
	limiter  *ratelimit.Limiter
	interval time.Duration
	ttl      time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

// NewTimer creates a cleanup scheduler sweeping every interval, evicting
// records idle longer than ttl.
func NewTimer(store *session.Store, limiter *ratelimit.Limiter, interval, ttl time.Duration, logger *slog.Logger) *Timer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Timer{
		store:    store,
		limiter:  limiter,
		interval: interval,
		ttl:      ttl,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the sweep loop is active.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the sweep loop. Call in a goroutine; exits when ctx is done
// or Stop is called.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.safeSweep()
		}
	}
}

// Stop terminates the sweep loop. Safe to call more than once.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// safeSweep runs one sweep, recovering from panics so a bad sweep cannot
// take the loop down.
func (t *Timer) safeSweep() {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("cleanup sweep panicked", "panic", r)
		}
	}()
	t.sweep(time.Now())
}

// sweep evicts expired sessions and prunes orphaned rate-limit entries.
func (t *Timer) sweep(now time.Time) (evicted, pruned int) {
	ids := t.store.EvictExpired(now, t.ttl)
	evicted = len(ids)
	if evicted > 0 {
		t.limiter.Remove(ids...)
	}

	// Capacity evictions bypass the TTL path, so sessions can vanish from
	// the store between sweeps without passing through EvictExpired.
	// Reconcile against the live key set.
	pruned = t.limiter.PruneExcept(t.store.ActiveIDs())

	if evicted > 0 || pruned > 0 {
		t.logger.Info("cleanup sweep finished",
			"expired_sessions", evicted,
			"pruned_rate_entries", pruned,
		)
	}
	return evicted, pruned
}
