// Package health reports the liveness of the honeypot's fixed subsystems:
// the session store, the callback sink's circuit breaker, and the cleanup
// timer.
package health

import (
	"fmt"

	"github.com/Dipanshu-saikia/agentic-honeypot/internal/circuitbreaker"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/session"
)

// Subsystem names as they appear on /health.
const (
	SubsystemStore   = "session_store"
	SubsystemSink    = "callback_sink"
	SubsystemCleanup = "cleanup_timer"
)

// Status is the per-subsystem result.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Runner reports whether a background loop is active. Satisfied by the
// cleanup timer.
type Runner interface {
	Running() bool
}

// Checker evaluates the fixed subsystem set on demand.
type Checker struct {
	store       *session.Store
	breaker     *circuitbreaker.Breaker
	cleanup     Runner
	maxSessions int
}

// NewChecker wires the three subsystems the service reports on.
func NewChecker(store *session.Store, breaker *circuitbreaker.Breaker, cleanup Runner, maxSessions int) *Checker {
	return &Checker{
		store:       store,
		breaker:     breaker,
		cleanup:     cleanup,
		maxSessions: maxSessions,
	}
}

// Check runs every subsystem check. The aggregate is healthy only when all
// subsystems are.
func (c *Checker) Check() (healthy bool, statuses []Status) {
	statuses = []Status{
		c.storeStatus(),
		c.sinkStatus(),
		c.cleanupStatus(),
	}
	healthy = true
	for _, st := range statuses {
		if !st.Healthy {
			healthy = false
		}
	}
	return healthy, statuses
}

// storeStatus reports occupancy. The store evicts at capacity, so a count
// above the bound means the eviction invariant broke.
func (c *Checker) storeStatus() Status {
	n := c.store.Len()
	return Status{
		Name:    SubsystemStore,
		Healthy: n <= c.maxSessions,
		Detail:  fmt.Sprintf("%d/%d sessions", n, c.maxSessions),
	}
}

// sinkStatus reports degraded while the breaker is open: intelligence reports
// are being queued instead of delivered.
func (c *Checker) sinkStatus() Status {
	state := c.breaker.State()
	return Status{
		Name:    SubsystemSink,
		Healthy: state != circuitbreaker.StateOpen,
		Detail:  state.String(),
	}
}

func (c *Checker) cleanupStatus() Status {
	running := c.cleanup.Running()
	detail := "running"
	if !running {
		detail = "stopped"
	}
	return Status{
		Name:    SubsystemCleanup,
		Healthy: running,
		Detail:  detail,
	}
}
