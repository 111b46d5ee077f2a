package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dipanshu-saikia/agentic-honeypot/internal/circuitbreaker"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/retry"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/session"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/traces"
)

var callbackDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "honeypot",
	Subsystem: "callback",
	Name:      "deliveries_total",
	Help:      "Total callback deliveries by result.",
}, []string{"result"})

func init() {
	prometheus.MustRegister(callbackDeliveriesTotal)
}

// Config holds dispatcher settings.
type Config struct {
	URL                  string
	Timeout              time.Duration // per-attempt
	MaxAttempts          int
	BaseDelay            time.Duration
	ScoreThreshold       int
	InteractionThreshold int
	QueueCapacity        int
}

// Dispatcher evaluates trigger conditions after each scoring update and, when
// they hold, delivers a report asynchronously. At most one delivery per
// session is in flight at a time; the caller's request cycle never waits on
// delivery.
type Dispatcher struct {
	store   *session.Store
	breaker *circuitbreaker.Breaker
	queue   *FailedQueue
	client  *http.Client
	logger  *slog.Logger
	cfg     Config

	wg     sync.WaitGroup
	sent   atomic.Int64
	failed atomic.Int64
}

// NewDispatcher creates a dispatcher. The HTTP client keeps idle connections
// to the sink so repeated deliveries reuse the same connection.
func NewDispatcher(store *session.Store, breaker *circuitbreaker.Breaker, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = 3
	}
	if cfg.InteractionThreshold <= 0 {
		cfg.InteractionThreshold = 15
	}
	return &Dispatcher{
		store:   store,
		breaker: breaker,
		queue:   NewFailedQueue(cfg.QueueCapacity),
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
		cfg:    cfg,
	}
}

// triggered reports whether the record meets the dispatch condition.
func (d *Dispatcher) triggered(r *session.Record) bool {
	if r.InteractionCount >= d.cfg.InteractionThreshold {
		return true
	}
	return r.ScamScore >= d.cfg.ScoreThreshold && len(r.Extracted) > 0
}

// MaybeDispatch checks the trigger for sessionID and starts an asynchronous
// delivery if it holds and no delivery for this session is already in flight.
// Returns true if a delivery was launched.
func (d *Dispatcher) MaybeDispatch(sessionID string) bool {
	launched := false
	snap, ok := d.store.UpdateExisting(sessionID, func(r *session.Record) {
		if r.CallbackSent || r.DispatchInFlight {
			return
		}
		if !d.triggered(r) {
			return
		}
		r.DispatchInFlight = true
		launched = true
	})
	if !ok || !launched {
		return false
	}

	rep := BuildReport(snap)
	d.logger.Info("callback triggered",
		"session_id", sessionID,
		"report_id", rep.ID,
		"score", rep.ScamScore,
		"interactions", rep.InteractionCount,
	)

	d.wg.Add(1)
	go d.deliver(rep)
	return true
}

// deliver runs one full delivery cycle for a report and clears the in-flight
// guard when done, whatever the outcome.
func (d *Dispatcher) deliver(rep Report) {
	defer d.wg.Done()

	ctx, span := traces.StartSpan(context.Background(), "callback.deliver",
		traces.SessionID(rep.SessionID),
		traces.ReportID(rep.ID),
	)
	defer span.End()

	ok := d.send(ctx, rep)

	d.store.UpdateExisting(rep.SessionID, func(r *session.Record) {
		r.DispatchInFlight = false
		if ok {
			r.CallbackSent = true
		}
	})
}

// send performs the breaker-gated, retried delivery. Returns true on success.
func (d *Dispatcher) send(ctx context.Context, rep Report) bool {
	if !d.breaker.Allow() {
		// Open circuit: no network call is attempted.
		d.logger.Warn("circuit breaker open, skipping callback",
			"session_id", rep.SessionID, "report_id", rep.ID)
		callbackDeliveriesTotal.WithLabelValues("breaker_open").Inc()
		d.failed.Add(1)
		d.queue.Push(rep)
		return false
	}

	err := retry.Do(ctx, d.cfg.MaxAttempts, d.cfg.BaseDelay, func() error {
		return d.post(ctx, rep)
	})
	if err != nil {
		d.logger.Error("callback delivery failed",
			"session_id", rep.SessionID, "report_id", rep.ID, "error", err)
		callbackDeliveriesTotal.WithLabelValues("failure").Inc()
		d.breaker.RecordFailure()
		d.failed.Add(1)
		d.queue.Push(rep)
		return false
	}

	d.logger.Info("callback delivered", "session_id", rep.SessionID, "report_id", rep.ID)
	callbackDeliveriesTotal.WithLabelValues("success").Inc()
	d.breaker.RecordSuccess()
	d.sent.Add(1)
	return true
}

// post performs a single delivery attempt with its own timeout.
func (d *Dispatcher) post(ctx context.Context, rep Report) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal report: %w", err))
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Honeypot-Report", rep.ID)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection goes back to the pool.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}

// Drain waits for outstanding deliveries, bounded by ctx. Used on shutdown.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sent returns the number of successful deliveries.
func (d *Dispatcher) Sent() int64 { return d.sent.Load() }

// Failed returns the number of failed deliveries (including breaker skips).
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }

// QueuedFailures returns the number of reports in the failed queue.
func (d *Dispatcher) QueuedFailures() int { return d.queue.Len() }

// FailedReports returns a copy of the failed queue for diagnostics.
func (d *Dispatcher) FailedReports() []Report { return d.queue.Items() }
