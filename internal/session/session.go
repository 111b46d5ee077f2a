// Package session provides a bounded concurrent store of honeypot session
// records with LRU capacity eviction and TTL expiry.
package session

import (
	"time"

	"github.com/Dipanshu-saikia/agentic-honeypot/internal/intel"
)

// Exchange is one scammer message paired with the agent's reply.
type Exchange struct {
	Scammer string `json:"scammer"`
	Agent   string `json:"agent"`
}

// Record is the mutable per-session state. It is owned by the Store and must
// only be mutated inside a Store.Update mutator, which holds the record lock.
type Record struct {
	ID                   string
	CreatedAt            time.Time
	LastAccessedAt       time.Time
	InteractionCount     int
	History              []Exchange
	KeywordCounts        map[string]int // cumulative, never decremented
	ScamScore            int            // cumulative, non-negative
	Extracted            []intel.Item   // raw items, duplicates permitted
	LastResponseCategory string
	CallbackSent         bool
	DispatchInFlight     bool // single-flight guard for the dispatcher
}

// Snapshot is a deep copy of a Record, safe to read after the record lock is
// released.
type Snapshot struct {
	ID                   string
	CreatedAt            time.Time
	LastAccessedAt       time.Time
	InteractionCount     int
	History              []Exchange
	KeywordCounts        map[string]int
	ScamScore            int
	Extracted            []intel.Item
	LastResponseCategory string
	CallbackSent         bool
	DispatchInFlight     bool
}

func (r *Record) snapshot() Snapshot {
	s := Snapshot{
		ID:                   r.ID,
		CreatedAt:            r.CreatedAt,
		LastAccessedAt:       r.LastAccessedAt,
		InteractionCount:     r.InteractionCount,
		ScamScore:            r.ScamScore,
		LastResponseCategory: r.LastResponseCategory,
		CallbackSent:         r.CallbackSent,
		DispatchInFlight:     r.DispatchInFlight,
	}
	if len(r.History) > 0 {
		s.History = make([]Exchange, len(r.History))
		copy(s.History, r.History)
	}
	if len(r.KeywordCounts) > 0 {
		s.KeywordCounts = make(map[string]int, len(r.KeywordCounts))
		for k, v := range r.KeywordCounts {
			s.KeywordCounts[k] = v
		}
	}
	if len(r.Extracted) > 0 {
		s.Extracted = make([]intel.Item, len(r.Extracted))
		copy(s.Extracted, r.Extracted)
	}
	return s
}

// TotalKeywordOccurrences sums the cumulative keyword counts.
func (s Snapshot) TotalKeywordOccurrences() int {
	total := 0
	for _, c := range s.KeywordCounts {
		total += c
	}
	return total
}
