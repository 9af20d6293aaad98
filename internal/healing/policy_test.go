package healing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPolicy(cfg PolicyConfig, start time.Time) (*Policy, *time.Time) {
	p := NewPolicy(cfg, zap.NewNop())
	clock := start
	p.now = func() time.Time { return clock }
	return p, &clock
}

func TestPolicyStartsClosed(t *testing.T) {
	p, _ := testPolicy(PolicyConfig{
		BackoffBase:      30 * time.Second,
		BackoffMax:       30 * time.Minute,
		CircuitThreshold: 5,
		CircuitOpenFor:   time.Hour,
	}, time.Now())

	ok, reason := p.CanAttempt()
	assert.True(t, ok)
	assert.Empty(t, reason)
	assert.Equal(t, StateClosed, p.Status().State)
}

func TestPolicyBackoffGrowsAndCaps(t *testing.T) {
	base := 30 * time.Second
	max := 30 * time.Minute
	start := time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC)
	p, _ := testPolicy(PolicyConfig{
		BackoffBase:      base,
		BackoffMax:       max,
		CircuitThreshold: 100,
		CircuitOpenFor:   time.Hour,
	}, start)

	want := []time.Duration{
		30 * time.Second,
		60 * time.Second,
		120 * time.Second,
		240 * time.Second,
		480 * time.Second,
		960 * time.Second,
		30 * time.Minute,
		30 * time.Minute,
	}

	prev := time.Duration(0)
	for i, w := range want {
		p.RecordFailure("status 503 from provider")
		st := p.Status()
		require.NotNil(t, st.NextAttemptAt, "failure %d", i+1)
		delay := st.NextAttemptAt.Sub(start)
		assert.Equal(t, w, delay, "failure %d", i+1)
		assert.GreaterOrEqual(t, delay, prev, "backoff must never shrink")
		assert.LessOrEqual(t, delay, max)
		prev = delay
	}
}

func TestPolicyGatesDuringBackoff(t *testing.T) {
	start := time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC)
	p, clock := testPolicy(PolicyConfig{
		BackoffBase:      time.Minute,
		BackoffMax:       time.Hour,
		CircuitThreshold: 5,
		CircuitOpenFor:   time.Hour,
	}, start)

	p.RecordFailure("i/o timeout")

	ok, reason := p.CanAttempt()
	assert.False(t, ok)
	assert.Equal(t, SkipReasonBackoff, reason)

	*clock = start.Add(61 * time.Second)
	ok, _ = p.CanAttempt()
	assert.True(t, ok)
}

func TestPolicyCircuitOpensAtThreshold(t *testing.T) {
	start := time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC)
	p, clock := testPolicy(PolicyConfig{
		BackoffBase:      time.Second,
		BackoffMax:       time.Minute,
		CircuitThreshold: 5,
		CircuitOpenFor:   time.Hour,
	}, start)

	for i := 0; i < 4; i++ {
		p.RecordFailure("status 500")
	}
	assert.Equal(t, StateOpenBackoff, p.Status().State, "below threshold stays in backoff")

	p.RecordFailure("status 500")
	st := p.Status()
	assert.Equal(t, StateCircuitOpen, st.State)
	require.NotNil(t, st.CircuitOpenUntil)
	assert.Equal(t, start.Add(time.Hour), *st.CircuitOpenUntil)

	ok, reason := p.CanAttempt()
	assert.False(t, ok)
	assert.Equal(t, SkipReasonCircuitOpen, reason)

	*clock = start.Add(time.Hour + time.Second)
	ok, _ = p.CanAttempt()
	assert.True(t, ok, "attempts resume once the window elapses")
}

func TestPolicyCircuitWindowNotExtended(t *testing.T) {
	start := time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC)
	p, clock := testPolicy(PolicyConfig{
		BackoffBase:      time.Second,
		BackoffMax:       time.Minute,
		CircuitThreshold: 3,
		CircuitOpenFor:   time.Hour,
	}, start)

	for i := 0; i < 3; i++ {
		p.RecordFailure("status 502")
	}
	openedUntil := p.Status().CircuitOpenUntil
	require.NotNil(t, openedUntil)

	// A failure recorded mid-window must not push the window out.
	*clock = start.Add(30 * time.Minute)
	p.RecordFailure("status 502")
	assert.Equal(t, *openedUntil, *p.Status().CircuitOpenUntil)

	// After the window, a failed probe opens a fresh window.
	*clock = start.Add(2 * time.Hour)
	p.RecordFailure("status 502")
	assert.Equal(t, start.Add(3*time.Hour), *p.Status().CircuitOpenUntil)
}

func TestPolicySuccessResets(t *testing.T) {
	p, _ := testPolicy(PolicyConfig{
		BackoffBase:      time.Second,
		BackoffMax:       time.Minute,
		CircuitThreshold: 3,
		CircuitOpenFor:   time.Hour,
	}, time.Now())

	for i := 0; i < 3; i++ {
		p.RecordFailure("status 503")
	}
	require.Equal(t, StateCircuitOpen, p.Status().State)

	p.RecordSuccess()
	st := p.Status()
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, 0, st.ConsecutiveFailures)
	assert.Nil(t, st.NextAttemptAt)
	assert.Nil(t, st.CircuitOpenUntil)
	assert.Empty(t, st.LastError)

	ok, _ := p.CanAttempt()
	assert.True(t, ok)
}

func TestPolicySkipDoesNotChangeState(t *testing.T) {
	p, _ := testPolicy(PolicyConfig{
		BackoffBase:      time.Minute,
		BackoffMax:       time.Hour,
		CircuitThreshold: 5,
		CircuitOpenFor:   time.Hour,
	}, time.Now())

	p.RecordFailure("status 500")
	before := p.Status()

	p.RecordSkip(SkipReasonBackoff)
	p.RecordSkip(SkipReasonBackoff)

	after := p.Status()
	assert.Equal(t, before.State, after.State)
	assert.Equal(t, before.ConsecutiveFailures, after.ConsecutiveFailures)
	assert.Equal(t, before.NextAttemptAt, after.NextAttemptAt)
	assert.Equal(t, 2, after.Skips)
}
