package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "honeypot",
		Subsystem: "store",
		Name:      "active_sessions",
		Help:      "Number of sessions currently held in the store.",
	})

	sessionsEvictedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "honeypot",
		Subsystem: "store",
		Name:      "sessions_evicted_total",
		Help:      "Total sessions evicted from the store by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(activeSessions, sessionsEvictedTotal)
}

// DefaultMaxSessions bounds the store when no capacity is configured.
const DefaultMaxSessions = 500

// DefaultMaxHistory bounds per-session conversation history.
const DefaultMaxHistory = 10

// lockedRecord pairs a Record with its lock. The lock order everywhere is
// store mutex first, then record mutex; the store mutex is never re-acquired
// while a record mutex is held.
type lockedRecord struct {
	mu  sync.Mutex
	rec Record
}

// Store is a bounded concurrent map of session records. Structural changes
// (insert, evict) happen under the store mutex; record mutation happens under
// the per-record mutex, so scoring updates for unrelated sessions never
// contend. A record being mutated cannot be evicted mid-update: eviction
// takes the same record lock first.
type Store struct {
	mu          sync.Mutex
	index       map[string]*list.Element // sessionID → element; element value is *lockedRecord
	order       *list.List               // front = most recently used
	maxSessions int
	maxHistory  int
}

// New creates a session store bounded at maxSessions records, each holding at
// most maxHistory conversation exchanges.
func New(maxSessions, maxHistory int) *Store {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		index:       make(map[string]*list.Element),
		order:       list.New(),
		maxSessions: maxSessions,
		maxHistory:  maxHistory,
	}
}

// Update applies fn to the record for sessionID, creating it (zeroed, with
// fresh timestamps) if absent, and marks it most recently used. Creation at
// capacity silently evicts the least recently used record first. The mutation
// runs under the record lock and is linearizable with concurrent updates to
// the same session. Returns a deep snapshot taken after fn ran.
func (s *Store) Update(sessionID string, fn func(*Record)) Snapshot {
	now := time.Now()

	s.mu.Lock()
	el, ok := s.index[sessionID]
	if !ok {
		if s.order.Len() >= s.maxSessions {
			s.evictOldestLocked()
		}
		lr := &lockedRecord{rec: Record{
			ID:             sessionID,
			CreatedAt:      now,
			LastAccessedAt: now,
			KeywordCounts:  make(map[string]int),
		}}
		el = s.order.PushFront(lr)
		s.index[sessionID] = el
		activeSessions.Set(float64(s.order.Len()))
	} else {
		s.order.MoveToFront(el)
	}
	lr := el.Value.(*lockedRecord)
	lr.mu.Lock()
	s.mu.Unlock()

	lr.rec.LastAccessedAt = now
	if fn != nil {
		fn(&lr.rec)
	}
	s.clampLocked(&lr.rec)
	snap := lr.rec.snapshot()
	lr.mu.Unlock()

	return snap
}

// clampLocked enforces record invariants after a mutator ran: non-negative
// score, history capped at maxHistory with the oldest exchanges dropped.
// Caller must hold the record lock.
func (s *Store) clampLocked(r *Record) {
	if r.ScamScore < 0 {
		r.ScamScore = 0
	}
	if excess := len(r.History) - s.maxHistory; excess > 0 {
		r.History = append(r.History[:0], r.History[excess:]...)
	}
}

// UpdateExisting is like Update but never creates the record. It reports
// whether the session was present. Used by completion paths that must not
// resurrect an evicted session.
func (s *Store) UpdateExisting(sessionID string, fn func(*Record)) (Snapshot, bool) {
	s.mu.Lock()
	el, ok := s.index[sessionID]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, false
	}
	s.order.MoveToFront(el)
	lr := el.Value.(*lockedRecord)
	lr.mu.Lock()
	s.mu.Unlock()

	lr.rec.LastAccessedAt = time.Now()
	if fn != nil {
		fn(&lr.rec)
	}
	s.clampLocked(&lr.rec)
	snap := lr.rec.snapshot()
	lr.mu.Unlock()
	return snap, true
}

// Get returns a snapshot of the record for sessionID without creating it or
// touching its LRU position.
func (s *Store) Get(sessionID string) (Snapshot, bool) {
	s.mu.Lock()
	el, ok := s.index[sessionID]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, false
	}
	lr := el.Value.(*lockedRecord)
	lr.mu.Lock()
	s.mu.Unlock()

	snap := lr.rec.snapshot()
	lr.mu.Unlock()
	return snap, true
}

// EvictExpired removes every record whose LastAccessedAt is older than ttl
// relative to now, and returns the evicted session IDs so the caller can tear
// down associated state (rate-limiter entries). Run by the cleanup scheduler.
func (s *Store) EvictExpired(now time.Time, ttl time.Duration) []string {
	cutoff := now.Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	// Walk from the back: least recently used records expire first.
	for el := s.order.Back(); el != nil; {
		prev := el.Prev()
		lr := el.Value.(*lockedRecord)

		lr.mu.Lock()
		// Re-check under the record lock: an update that started before this
		// sweep may have refreshed the access time.
		if lr.rec.LastAccessedAt.Before(cutoff) {
			s.order.Remove(el)
			delete(s.index, lr.rec.ID)
			evicted = append(evicted, lr.rec.ID)
			sessionsEvictedTotal.WithLabelValues("ttl").Inc()
		}
		lr.mu.Unlock()

		el = prev
	}

	activeSessions.Set(float64(s.order.Len()))
	return evicted
}

// evictOldestLocked removes the least recently used record.
// Caller must hold s.mu. Partial intelligence on the evicted record is
// dropped, not flushed: a lossy bound is the accepted tradeoff.
func (s *Store) evictOldestLocked() {
	el := s.order.Back()
	if el == nil {
		return
	}
	lr := el.Value.(*lockedRecord)

	// Wait out any in-flight mutation before tearing the record down.
	lr.mu.Lock()
	s.order.Remove(el)
	delete(s.index, lr.rec.ID)
	lr.mu.Unlock()

	sessionsEvictedTotal.WithLabelValues("capacity").Inc()
}

// Len returns the number of records currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// ActiveIDs returns the set of session IDs currently held. The result is a
// point-in-time copy, not a live view.
func (s *Store) ActiveIDs() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{}, len(s.index))
	for id := range s.index {
		ids[id] = struct{}{}
	}
	return ids
}

// AverageScore returns the mean scam score across all records. The read is
// approximate: records are sampled without freezing the store.
func (s *Store) AverageScore() float64 {
	s.mu.Lock()
	lrs := make([]*lockedRecord, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		lrs = append(lrs, el.Value.(*lockedRecord))
	}
	s.mu.Unlock()

	if len(lrs) == 0 {
		return 0
	}
	total := 0
	for _, lr := range lrs {
		lr.mu.Lock()
		total += lr.rec.ScamScore
		lr.mu.Unlock()
	}
	return float64(total) / float64(len(lrs))
}
