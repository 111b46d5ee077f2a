// Package ratelimit provides per-session sliding-window admission control.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultLimit is the max admissions per session within the window.
	DefaultLimit = 10
	// DefaultWindow is the trailing window length.
	DefaultWindow = 60 * time.Second
)

type entry struct {
	// timestamps of admitted requests, oldest first. Pruned from the front
	// on each check, so the slice stays bounded by the limit.
	timestamps []time.Time
}

// Limiter tracks admission timestamps per session and admits a request only
// while fewer than limit admissions fall inside the trailing window.
// Rejections are not recorded.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
}

// New creates a sliding-window limiter.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
	}
}

// Allow checks whether a request for the given session is within rate limits
// at time now, recording now on admission. The caller supplies now so the
// window math stays testable.
func (rl *Limiter) Allow(sessionID string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[sessionID]
	if !ok {
		e = &entry{}
		rl.entries[sessionID] = e
	}

	// Drop timestamps that have slid out of the window. Admissions are
	// appended in order, so a front scan is enough.
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(e.timestamps) && !e.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		e.timestamps = append(e.timestamps[:0], e.timestamps[i:]...)
	}

	if len(e.timestamps) >= rl.limit {
		return false
	}

	e.timestamps = append(e.timestamps, now)
	return true
}

// Remove deletes rate limit state for the given sessions.
// Called when the session store evicts records so limiter state cannot
// outlive its session.
func (rl *Limiter) Remove(sessionIDs ...string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for _, id := range sessionIDs {
		delete(rl.entries, id)
	}
}

// PruneExcept drops every tracked session not present in live.
// Called by the cleanup scheduler with the session store's current key set.
//
// Accepted race: admission for a brand-new session records its timestamp
// before the store creates the record, so a sweep landing between the two
// can prune that fresh entry. The window then undercounts that session by
// one request until its next message; it never overcounts or rejects.
func (rl *Limiter) PruneExcept(live map[string]struct{}) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for id := range rl.entries {
		if _, ok := live[id]; !ok {
			delete(rl.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the current number of tracked sessions.
func (rl *Limiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}
