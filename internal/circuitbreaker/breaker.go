// Package circuitbreaker provides a single shared circuit breaker with
// closed → open → half-open state transitions guarding the callback sink.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal: deliveries flow through
	StateOpen                  // Tripped: deliveries are rejected
	StateHalfOpen              // Probing: one delivery allowed to test recovery
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var cbStateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "honeypot",
	Subsystem: "circuitbreaker",
	Name:      "state_transitions_total",
	Help:      "Circuit breaker state transitions by from-state and to-state.",
}, []string{"from_state", "to_state"})

func init() {
	prometheus.MustRegister(cbStateTransitions)
}

// Breaker guards the single external callback sink. It trips open after
// threshold consecutive failures, stays open for the cooldown, then allows
// exactly one probe in half-open. The sink is one endpoint, so failure
// tracking is global rather than per-session.
type Breaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	openedAt     time.Time
	threshold    int
	cooldown     time.Duration
	onTransition func(from, to State) // optional callback for metrics
}

// New creates a circuit breaker that opens after threshold consecutive
// failures and stays open for cooldown before probing.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 300 * time.Second
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// OnTransition sets a callback invoked on state changes (for metrics).
func (b *Breaker) OnTransition(fn func(from, to State)) {
	b.mu.Lock()
	b.onTransition = fn
	b.mu.Unlock()
}

// Allow returns true if a delivery attempt should proceed.
// If the circuit is open and the cooldown has elapsed, the attempt
// transitions the breaker to half-open and goes through as the probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.cooldown {
			b.transition(StateHalfOpen)
			return true // Allow one probe
		}
		return false
	case StateHalfOpen:
		return false // Probe already in flight — reject until it completes
	default:
		return true
	}
}

// RecordSuccess records a successful delivery. Resets the failure count and
// closes the circuit if it was half-open.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
	b.failures = 0
}

// RecordFailure records a failed delivery. Consecutive failures at or above
// the threshold trip the circuit open; a failed half-open probe reopens it
// and restarts the cooldown.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++

	if b.state == StateHalfOpen {
		// Probe failed — back to open, cooldown restarts.
		b.openedAt = time.Now()
		b.transition(StateOpen)
		return
	}

	if b.state == StateClosed && b.failures >= b.threshold {
		b.openedAt = time.Now()
		b.transition(StateOpen)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// transition changes state and fires the callback if set.
// Caller must hold b.mu.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	cbStateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	if b.onTransition != nil {
		fn := b.onTransition
		go fn(from, to)
	}
}
