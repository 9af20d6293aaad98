// Package healing decides when a failing integration may be synced again
// and when the user has to be asked to intervene.
package healing

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State describes the gate an integration's sync is currently behind.
type State string

const (
	// StateClosed means syncs run normally.
	StateClosed State = "closed"

	// StateOpenBackoff means recent failures delay the next attempt.
	StateOpenBackoff State = "open_backoff"

	// StateCircuitOpen means repeated failures suspended syncs for a
	// fixed window.
	StateCircuitOpen State = "circuit_open"
)

// Skip reasons reported when an attempt is gated.
const (
	SkipReasonBackoff     = "backoff"
	SkipReasonCircuitOpen = "circuit_open"
)

// PolicyConfig holds the backoff and circuit parameters for one integration.
type PolicyConfig struct {
	// BackoffBase is the delay after the first consecutive failure.
	BackoffBase time.Duration

	// BackoffMax caps the exponential backoff delay.
	BackoffMax time.Duration

	// CircuitThreshold is the consecutive-failure count that opens the
	// circuit.
	CircuitThreshold int

	// CircuitOpenFor is how long an opened circuit suspends attempts.
	// The window is fixed: failures while open do not extend it.
	CircuitOpenFor time.Duration
}

// Status is a point-in-time snapshot of a policy for display.
type Status struct {
	State               State      `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	NextAttemptAt       *time.Time `json:"next_attempt_at,omitempty"`
	CircuitOpenUntil    *time.Time `json:"circuit_open_until,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	LastAttemptAt       *time.Time `json:"last_attempt_at,omitempty"`
	Skips               int        `json:"skips"`
}

// Policy is the per-integration auto-healing gate. A policy starts closed;
// failures push it into backoff and, past the threshold, open the circuit.
// Any success snaps it back to closed. Safe for concurrent use.
type Policy struct {
	mu  sync.Mutex
	cfg PolicyConfig
	log *zap.Logger
	now func() time.Time

	state        State
	failures     int
	nextAttempt  time.Time
	circuitUntil time.Time
	lastError    string
	lastAttempt  time.Time
	skips        int
}

// NewPolicy returns a closed policy with the given parameters.
func NewPolicy(cfg PolicyConfig, log *zap.Logger) *Policy {
	if log == nil {
		log = zap.NewNop()
	}
	return &Policy{
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		state: StateClosed,
	}
}

// CanAttempt reports whether a sync may run now. When gated, the returned
// reason names why (backoff or circuit_open).
func (p *Policy) CanAttempt() (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	switch p.state {
	case StateOpenBackoff:
		if now.Before(p.nextAttempt) {
			return false, SkipReasonBackoff
		}
	case StateCircuitOpen:
		if now.Before(p.circuitUntil) {
			return false, SkipReasonCircuitOpen
		}
	}
	return true, ""
}

// RecordSuccess resets the policy to closed.
func (p *Policy) RecordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastAttempt = p.now()
	if p.state != StateClosed {
		p.log.Info("integration recovered",
			zap.String("previous_state", string(p.state)),
			zap.Int("failures", p.failures))
	}
	p.state = StateClosed
	p.failures = 0
	p.nextAttempt = time.Time{}
	p.circuitUntil = time.Time{}
	p.lastError = ""
}

// RecordFailure registers a failed attempt and advances the gate: backoff
// grows exponentially with consecutive failures, and once the threshold is
// reached the circuit opens for a fixed window.
func (p *Policy) RecordFailure(errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.lastAttempt = now
	p.failures++
	p.lastError = errMsg

	if p.failures >= p.cfg.CircuitThreshold {
		// Failures while the circuit is already open never extend the window.
		if p.state != StateCircuitOpen || !now.Before(p.circuitUntil) {
			p.circuitUntil = now.Add(p.cfg.CircuitOpenFor)
			p.log.Warn("circuit opened",
				zap.Int("failures", p.failures),
				zap.Time("until", p.circuitUntil))
		}
		p.state = StateCircuitOpen
		p.nextAttempt = time.Time{}
		return
	}

	delay := p.backoff(p.failures)
	p.state = StateOpenBackoff
	p.nextAttempt = now.Add(delay)
	p.log.Info("backing off after failure",
		zap.Int("failures", p.failures),
		zap.Duration("delay", delay),
		zap.String("error", errMsg))
}

// RecordSkip notes that an attempt was suppressed by the gate. Skips are
// counted for observability only and never change the state.
func (p *Policy) RecordSkip(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skips++
	p.log.Debug("sync attempt skipped", zap.String("reason", reason))
}

// Status returns a snapshot of the current gate for display.
func (p *Policy) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Status{
		State:               p.state,
		ConsecutiveFailures: p.failures,
		LastError:           p.lastError,
		Skips:               p.skips,
	}
	if !p.nextAttempt.IsZero() {
		t := p.nextAttempt
		s.NextAttemptAt = &t
	}
	if !p.circuitUntil.IsZero() {
		t := p.circuitUntil
		s.CircuitOpenUntil = &t
	}
	if !p.lastAttempt.IsZero() {
		t := p.lastAttempt
		s.LastAttemptAt = &t
	}
	return s
}

// backoff returns base*2^(n-1) capped at the configured maximum.
func (p *Policy) backoff(n int) time.Duration {
	d := p.cfg.BackoffBase
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.cfg.BackoffMax {
			return p.cfg.BackoffMax
		}
	}
	if d > p.cfg.BackoffMax {
		return p.cfg.BackoffMax
	}
	return d
}
