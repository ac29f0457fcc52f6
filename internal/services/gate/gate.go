// Package gate implements the human-verification gate that blocks the rest of
// the site until a challenge widget reports success.
package gate

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"cybergrid/internal/domain"
)

var (
	ErrBypassDisabled  = errors.New("verification bypass is disabled")
	ErrEmptyToken      = errors.New("empty challenge token")
	ErrRetryNotAllowed = errors.New("challenge has not failed")
)

type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseUnverified Phase = "unverified"
	PhaseVerified   Phase = "verified"
)

// Policy bounds automatic re-arming of a failed challenge.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultPolicy() Policy { return Policy{MaxAttempts: 3, Delay: 2 * time.Second} }

// backoff allows MaxAttempts-1 re-arms: the failure that reaches MaxAttempts
// is the terminal one.
func (p Policy) backoff() retry.Backoff {
	rearms := p.MaxAttempts - 1
	if rearms < 0 {
		rearms = 0
	}
	delay := p.Delay
	if delay <= 0 {
		delay = time.Millisecond
	}
	return retry.WithMaxRetries(uint64(rearms), retry.NewConstant(delay))
}

type Snapshot struct {
	domain.VerificationState
	Phase         Phase
	Retrying      bool
	Terminal      bool
	BypassAllowed bool
}

// Gate is the per-session verification state machine. It is safe for
// concurrent use by request handlers and its own retry timer.
type Gate struct {
	mu          sync.Mutex
	policy      Policy
	clock       clockwork.Clock
	log         logrus.FieldLogger
	allowBypass bool

	phase   Phase
	state   domain.VerificationState
	backoff retry.Backoff
	pending clockwork.Timer
	gen     uint64
}

type Option func(*Gate)

func WithClock(c clockwork.Clock) Option { return func(g *Gate) { g.clock = c } }

func WithLogger(l logrus.FieldLogger) Option { return func(g *Gate) { g.log = l } }

// WithBypass enables the development-only escape hatch.
func WithBypass(allow bool) Option { return func(g *Gate) { g.allowBypass = allow } }

func New(policy Policy, opts ...Option) *Gate {
	g := &Gate{
		policy: policy,
		clock:  clockwork.NewRealClock(),
		log:    logrus.StandardLogger(),
		phase:  PhaseLoading,
	}
	for _, o := range opts {
		o(g)
	}
	g.backoff = policy.backoff()
	return g
}

// Ready ends the loading phase once the theme preference has been read.
func (g *Gate) Ready() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == PhaseLoading {
		g.phase = PhaseUnverified
	}
}

// ChallengeLoaded records that the widget rendered.
func (g *Gate) ChallengeLoaded() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == PhaseVerified {
		return
	}
	g.cancelPendingLocked()
	g.state.ChallengeLoaded = true
	g.state.ChallengeFailed = false
}

// ChallengeFailed records a widget load or runtime error and schedules an
// automatic re-arm while the policy allows one.
func (g *Gate) ChallengeFailed() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == PhaseVerified || g.state.ChallengeFailed {
		return
	}
	g.state.ChallengeFailed = true
	g.state.ChallengeLoaded = true
	if g.state.RetryCount < g.policy.MaxAttempts {
		g.state.RetryCount++
	}

	delay, stop := g.backoff.Next()
	if stop || g.state.RetryCount >= g.policy.MaxAttempts {
		g.log.WithField("retry_count", g.state.RetryCount).Warn("challenge failed; automatic retries exhausted")
		return
	}
	g.gen++
	gen := g.gen
	g.pending = g.clock.AfterFunc(delay, func() { g.rearm(gen) })
	g.log.WithFields(logrus.Fields{"retry_count": g.state.RetryCount, "delay": delay}).Info("challenge failed; retry scheduled")
}

func (g *Gate) rearm(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen || g.phase == PhaseVerified || !g.state.ChallengeFailed {
		return
	}
	g.pending = nil
	g.state.ChallengeFailed = false
	g.state.ChallengeLoaded = false
}

// ChallengeSucceeded verifies the session on a non-empty token.
func (g *Gate) ChallengeSucceeded(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyLocked()
	return nil
}

// Retry is the manual "Try Again" control.
func (g *Gate) Retry() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == PhaseVerified {
		return nil
	}
	if !g.state.ChallengeFailed {
		return ErrRetryNotAllowed
	}
	g.cancelPendingLocked()
	g.state.ChallengeFailed = false
	g.state.ChallengeLoaded = false
	g.state.RetryCount = 0
	g.backoff = g.policy.backoff()
	return nil
}

// Bypass marks the session verified without a challenge. Development only.
func (g *Gate) Bypass() error {
	if !g.allowBypass {
		return ErrBypassDisabled
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.log.Warn("verification bypassed")
	g.verifyLocked()
	return nil
}

func (g *Gate) Verified() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase == PhaseVerified
}

func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	terminal := g.state.ChallengeFailed && g.state.RetryCount >= g.policy.MaxAttempts
	return Snapshot{
		VerificationState: g.state,
		Phase:             g.phase,
		Retrying:          g.state.ChallengeFailed && !terminal,
		Terminal:          terminal,
		BypassAllowed:     g.allowBypass && g.phase != PhaseVerified,
	}
}

// Close stops any pending retry timer.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelPendingLocked()
}

func (g *Gate) verifyLocked() {
	g.cancelPendingLocked()
	g.phase = PhaseVerified
	g.state.Verified = true
	g.state.ChallengeFailed = false
	g.state.RetryCount = 0
}

func (g *Gate) cancelPendingLocked() {
	g.gen++
	if g.pending != nil {
		g.pending.Stop()
		g.pending = nil
	}
}
