// Package callback delivers session intelligence reports to the external
// sink, with retry, circuit breaking, and a single-flight guarantee per
// session.
package callback

import (
	"sort"
	"sync"
	"time"

	"github.com/Dipanshu-saikia/agentic-honeypot/internal/idgen"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/session"
)

// Report is the JSON body posted to the callback sink.
type Report struct {
	ID                    string    `json:"id"`
	SessionID             string    `json:"sessionId"`
	InteractionCount      int       `json:"interactionCount"`
	ScamScore             int       `json:"scamScore"`
	ExtractedIntelligence []string  `json:"extractedIntelligence"`
	SuspiciousKeywords    []string  `json:"suspiciousKeywords"`
	Timestamp             time.Time `json:"timestamp"`
}

// BuildReport assembles a report from a session snapshot. Extracted items are
// deduplicated here, and only here: the session record keeps every raw match.
// First-seen order is preserved.
func BuildReport(snap session.Snapshot) Report {
	var items []string
	seen := make(map[string]struct{}, len(snap.Extracted))
	for _, it := range snap.Extracted {
		if _, dup := seen[it.Value]; dup {
			continue
		}
		seen[it.Value] = struct{}{}
		items = append(items, it.Value)
	}

	keywords := make([]string, 0, len(snap.KeywordCounts))
	for kw := range snap.KeywordCounts {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	return Report{
		ID:                    idgen.WithPrefix("rpt_"),
		SessionID:             snap.ID,
		InteractionCount:      snap.InteractionCount,
		ScamScore:             snap.ScamScore,
		ExtractedIntelligence: items,
		SuspiciousKeywords:    keywords,
		Timestamp:             time.Now().UTC(),
	}
}

// DefaultQueueCapacity bounds the failed-callback queue.
const DefaultQueueCapacity = 100

// FailedQueue is a bounded FIFO of undelivered reports, oldest dropped on
// overflow. Diagnostic only: nothing re-reads it for retry.
type FailedQueue struct {
	mu       sync.Mutex
	items    []Report
	capacity int
}

// NewFailedQueue creates a queue bounded at capacity reports.
func NewFailedQueue(capacity int) *FailedQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &FailedQueue{capacity: capacity}
}

// Push appends a report, dropping the oldest when full.
func (q *FailedQueue) Push(rep Report) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		q.items = append(q.items[:0], q.items[1:]...)
	}
	q.items = append(q.items, rep)
}

// Len returns the number of queued reports.
func (q *FailedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the queued reports, oldest first.
func (q *FailedQueue) Items() []Report {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Report, len(q.items))
	copy(out, q.items)
	return out
}
