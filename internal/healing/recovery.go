package healing

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studvik/companion/internal/model"
)

// Root-cause buckets for failed sync attempts.
const (
	CauseAuth       = "auth"
	CauseRateLimit  = "rate_limit"
	CauseNetwork    = "network"
	CauseValidation = "validation"
	CauseProvider   = "provider"
	CauseUnknown    = "unknown"
)

// classifiers are checked in order; the first match wins.
var classifiers = []struct {
	cause string
	re    *regexp.Regexp
}{
	{CauseAuth, regexp.MustCompile(`(?i)(status 401|status 403|unauthorized|forbidden|invalid[ _]?token|token expired|expired token|authentication|credential)`)},
	{CauseRateLimit, regexp.MustCompile(`(?i)(status 429|rate limit|too many requests)`)},
	{CauseNetwork, regexp.MustCompile(`(?i)(connection refused|connection reset|no such host|network is unreachable|dial tcp|i/o timeout|deadline exceeded|tls handshake|unexpected eof|broken pipe)`)},
	{CauseValidation, regexp.MustCompile(`(?i)(status 400|status 422|bad request|unprocessable|validation|unmarshal|parse|decode)`)},
	{CauseProvider, regexp.MustCompile(`(?i)(status 5[0-9]{2}|internal server error|bad gateway|service unavailable|gateway timeout)`)},
}

// ClassifyRootCause maps a failure message to its root-cause bucket.
func ClassifyRootCause(errMsg string) string {
	for _, c := range classifiers {
		if c.re.MatchString(errMsg) {
			return c.cause
		}
	}
	return CauseUnknown
}

// SeverityFor returns the notification priority for a root-cause bucket.
// Causes the user can fix (auth) and sustained provider outages rank high;
// transient network and throttling issues rank medium.
func SeverityFor(cause string) model.Priority {
	switch cause {
	case CauseAuth, CauseProvider:
		return model.PriorityHigh
	case CauseNetwork, CauseRateLimit, CauseValidation:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// TrackerConfig holds the recovery prompt parameters.
type TrackerConfig struct {
	// PromptThreshold is the consecutive-failure count that triggers a
	// prompt asking the user to intervene.
	PromptThreshold int

	// PromptCooldown is the minimum gap between prompts for the same
	// integration.
	PromptCooldown time.Duration
}

// Prompt asks the user to take action on a persistently failing integration.
type Prompt struct {
	Integration model.Integration
	Cause       string
	Severity    model.Priority
	Message     string
}

// IntegrationFailures is a snapshot of one integration's recent failures.
type IntegrationFailures struct {
	Integration         model.Integration `json:"integration"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	LastError           string            `json:"last_error,omitempty"`
	LastCause           string            `json:"last_cause,omitempty"`
	LastFailureAt       *time.Time        `json:"last_failure_at,omitempty"`
	LastPromptAt        *time.Time        `json:"last_prompt_at,omitempty"`
}

type trackerState struct {
	failures      int
	lastError     string
	lastCause     string
	lastFailureAt time.Time
	lastPromptAt  time.Time
}

// Tracker counts consecutive failures across all integrations and decides
// when to raise a recovery prompt. Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	cfg    TrackerConfig
	log    *zap.Logger
	now    func() time.Time
	states map[model.Integration]*trackerState
}

// NewTracker returns an empty tracker.
func NewTracker(cfg TrackerConfig, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		states: make(map[model.Integration]*trackerState),
	}
}

// RecordFailure classifies the failure, advances the integration's counter
// and returns the root cause plus a prompt when the threshold is reached.
// Prompts for the same integration are rate limited by the cooldown.
func (t *Tracker) RecordFailure(integration model.Integration, errMsg string) (string, *Prompt) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cause := ClassifyRootCause(errMsg)

	st := t.states[integration]
	if st == nil {
		st = &trackerState{}
		t.states[integration] = st
	}
	st.failures++
	st.lastError = errMsg
	st.lastCause = cause
	st.lastFailureAt = now

	t.log.Debug("sync failure recorded",
		zap.String("integration", string(integration)),
		zap.String("cause", cause),
		zap.Int("consecutive", st.failures))

	if st.failures < t.cfg.PromptThreshold {
		return cause, nil
	}
	if !st.lastPromptAt.IsZero() && now.Sub(st.lastPromptAt) < t.cfg.PromptCooldown {
		return cause, nil
	}
	st.lastPromptAt = now

	return cause, &Prompt{
		Integration: integration,
		Cause:       cause,
		Severity:    SeverityFor(cause),
		Message:     promptMessage(integration, cause, st.failures),
	}
}

// RecordSuccess resets the integration's consecutive-failure counter.
// The prompt cooldown is kept so a flapping integration cannot spam
// prompts by briefly recovering.
func (t *Tracker) RecordSuccess(integration model.Integration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.states[integration]
	if st == nil {
		return
	}
	st.failures = 0
	st.lastError = ""
	st.lastCause = ""
}

// Snapshot returns the current failure counts, ordered by integration name.
func (t *Tracker) Snapshot() []IntegrationFailures {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]IntegrationFailures, 0, len(t.states))
	for integration, st := range t.states {
		f := IntegrationFailures{
			Integration:         integration,
			ConsecutiveFailures: st.failures,
			LastError:           st.lastError,
			LastCause:           st.lastCause,
		}
		if !st.lastFailureAt.IsZero() {
			ts := st.lastFailureAt
			f.LastFailureAt = &ts
		}
		if !st.lastPromptAt.IsZero() {
			ts := st.lastPromptAt
			f.LastPromptAt = &ts
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Integration < out[j].Integration })
	return out
}

// integrationLabels maps integration tags to display names for prompt text.
var integrationLabels = map[model.Integration]string{
	model.IntegrationCanvas:     "Canvas",
	model.IntegrationBlackboard: "Blackboard",
	model.IntegrationTeams:      "Teams",
	model.IntegrationGitHub:     "GitHub",
	model.IntegrationTP:         "TP",
	model.IntegrationTimeEdit:   "TimeEdit",
}

func promptMessage(integration model.Integration, cause string, failures int) string {
	label := integrationLabels[integration]
	if label == "" {
		label = string(integration)
	}

	var hint string
	switch cause {
	case CauseAuth:
		hint = "Your connection looks expired. Reconnect the account to resume syncing."
	case CauseRateLimit:
		hint = "The service is limiting requests. Syncing will resume automatically."
	case CauseNetwork:
		hint = "The service could not be reached. Check your network connection."
	case CauseValidation:
		hint = "The service returned data that could not be processed."
	case CauseProvider:
		hint = "The service appears to be having problems. Syncing will retry later."
	default:
		hint = "Check the integration settings."
	}

	return fmt.Sprintf("%s sync has failed %d times in a row. %s", label, failures, hint)
}
