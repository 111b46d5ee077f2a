// Package honeypot implements the message-handling core: admission, scoring,
// session accounting, and dispatch triggering.
package honeypot

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Dipanshu-saikia/agentic-honeypot/internal/callback"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/circuitbreaker"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/intel"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/logging"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/metrics"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/ratelimit"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/session"
)

// ErrRateLimited is returned when a session exceeds its admission window.
// The message is not scored and the session record is untouched.
var ErrRateLimited = errors.New("rate limit exceeded")

// Responder produces the agent's reply text. Reply generation is a
// collaborator, not core logic: anything deterministic or LLM-backed can sit
// behind this interface. Respond is called with no locks held, so a slow
// implementation delays only its own session's reply.
type Responder interface {
	// Respond returns a reply and its category given the session's
	// interaction count and the previously used category. May block.
	Respond(interactionCount int, lastCategory string) (reply, category string)
}

// Result is handed back to the caller after a message is processed.
type Result struct {
	Reply            string             `json:"reply"`
	ResponseCategory string             `json:"responseCategory"`
	ScoreDelta       int                `json:"scoreDelta"`
	MatchedKeywords  map[string]int     `json:"matchedKeywords"`
	InteractionCount int                `json:"interactionCount"`
	History          []session.Exchange `json:"history"`
}

// Stats is the operator-facing read surface.
type Stats struct {
	ActiveSessions           int     `json:"activeSessions"`
	TotalCallbacksSent       int64   `json:"totalCallbacksSent"`
	TotalCallbacksFailed     int64   `json:"totalCallbacksFailed"`
	TotalRequests            int64   `json:"totalRequests"`
	AverageScamScore         float64 `json:"averageScamScore"`
	CircuitBreakerState      string  `json:"circuitBreakerState"`
	FailedCallbacksQueued    int     `json:"failedCallbacksQueued"`
	RateLimitTrackedSessions int     `json:"rateLimitTrackedSessions"`
}

// Service wires admission control, scoring, the session store, and the
// dispatcher into the per-message flow.
type Service struct {
	store      *session.Store
	limiter    *ratelimit.Limiter
	scorer     *intel.Scorer
	dispatcher *callback.Dispatcher
	breaker    *circuitbreaker.Breaker
	responder  Responder
	logger     *slog.Logger

	totalRequests atomic.Int64
}

// NewService creates the message-handling service.
func NewService(
	store *session.Store,
	limiter *ratelimit.Limiter,
	scorer *intel.Scorer,
	dispatcher *callback.Dispatcher,
	breaker *circuitbreaker.Breaker,
	responder Responder,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:      store,
		limiter:    limiter,
		scorer:     scorer,
		dispatcher: dispatcher,
		breaker:    breaker,
		responder:  responder,
		logger:     logger,
	}
}

// HandleMessage processes one validated (sessionID, text) event: admission,
// scoring, session update, reply selection, and dispatch trigger evaluation.
// Dispatch runs asynchronously; this call never waits on delivery.
func (s *Service) HandleMessage(ctx context.Context, sessionID, text string) (*Result, error) {
	s.totalRequests.Add(1)

	if !s.limiter.Allow(sessionID, time.Now()) {
		metrics.MessagesTotal.WithLabelValues("rate_limited").Inc()
		logging.L(ctx).Warn("rate limit exceeded", "session_id", sessionID)
		return nil, ErrRateLimited
	}

	scored := s.scorer.Score(text)
	for _, it := range scored.Extracted {
		metrics.IntelExtractedTotal.WithLabelValues(it.Kind).Inc()
	}

	snap := s.store.Update(sessionID, func(r *session.Record) {
		r.InteractionCount++
		r.ScamScore += scored.Delta
		for kw, count := range scored.Matched {
			r.KeywordCounts[kw] += count
		}
		r.Extracted = append(r.Extracted, scored.Extracted...)
	})

	// Reply generation happens outside the store mutator: Respond may block,
	// and a held record lock would stall the cleanup sweep behind it.
	reply, category := s.responder.Respond(snap.InteractionCount, snap.LastResponseCategory)

	if final, ok := s.store.UpdateExisting(sessionID, func(r *session.Record) {
		r.LastResponseCategory = category
		r.History = append(r.History, session.Exchange{Scammer: text, Agent: reply})
	}); ok {
		snap = final
	}

	metrics.MessagesTotal.WithLabelValues("scored").Inc()

	if scored.Delta > 0 {
		logging.L(ctx).Info("message scored",
			"session_id", sessionID,
			"delta", scored.Delta,
			"score", snap.ScamScore,
			"extracted", len(scored.Extracted),
		)
	}

	s.dispatcher.MaybeDispatch(sessionID)

	return &Result{
		Reply:            reply,
		ResponseCategory: category,
		ScoreDelta:       scored.Delta,
		MatchedKeywords:  scored.Matched,
		InteractionCount: snap.InteractionCount,
		History:          snap.History,
	}, nil
}

// Stats assembles the operator surface. Reads are approximate snapshots of
// each component's counters.
func (s *Service) Stats() Stats {
	return Stats{
		ActiveSessions:           s.store.Len(),
		TotalCallbacksSent:       s.dispatcher.Sent(),
		TotalCallbacksFailed:     s.dispatcher.Failed(),
		TotalRequests:            s.totalRequests.Load(),
		AverageScamScore:         s.store.AverageScore(),
		CircuitBreakerState:      s.breaker.State().String(),
		FailedCallbacksQueued:    s.dispatcher.QueuedFailures(),
		RateLimitTrackedSessions: s.limiter.Len(),
	}
}
