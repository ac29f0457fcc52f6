package gate

import (
	"io"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type GateSuite struct {
	suite.Suite
	clock *clockwork.FakeClock
	gate  *Gate
}

func TestGate(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (suite *GateSuite) SetupTest() {
	suite.clock = clockwork.NewFakeClock()
	suite.gate = New(DefaultPolicy(), WithClock(suite.clock), WithLogger(quietLogger()))
	suite.gate.Ready()
}

func (suite *GateSuite) TearDownTest() {
	suite.gate.Close()
}

// failAndRearm reports a widget error and lets the auto-retry fire.
func (suite *GateSuite) failAndRearm() {
	suite.gate.ChallengeFailed()
	suite.Require().True(suite.gate.Snapshot().Retrying)
	suite.clock.Advance(2 * time.Second)
	suite.Require().Eventually(func() bool {
		return !suite.gate.Snapshot().ChallengeFailed
	}, time.Second, 5*time.Millisecond)
}

func (suite *GateSuite) TestStartsLoadingUntilReady() {
	g := New(DefaultPolicy(), WithClock(suite.clock), WithLogger(quietLogger()))
	suite.Equal(PhaseLoading, g.Snapshot().Phase)
	g.Ready()
	suite.Equal(PhaseUnverified, g.Snapshot().Phase)
}

func (suite *GateSuite) TestFirstLoadThenTokenVerifies() {
	suite.gate.ChallengeLoaded()
	suite.True(suite.gate.Snapshot().ChallengeLoaded)

	suite.NoError(suite.gate.ChallengeSucceeded("token"))

	snap := suite.gate.Snapshot()
	suite.True(snap.Verified)
	suite.Equal(PhaseVerified, snap.Phase)
	suite.False(snap.ChallengeFailed)
	suite.True(suite.gate.Verified())
}

func (suite *GateSuite) TestEmptyTokenIsIgnored() {
	suite.ErrorIs(suite.gate.ChallengeSucceeded(""), ErrEmptyToken)
	suite.False(suite.gate.Verified())
}

func (suite *GateSuite) TestRetryCountTracksConsecutiveFailures() {
	suite.failAndRearm()
	suite.Equal(1, suite.gate.Snapshot().RetryCount)

	suite.failAndRearm()
	suite.Equal(2, suite.gate.Snapshot().RetryCount)

	suite.gate.ChallengeFailed()
	snap := suite.gate.Snapshot()
	suite.Equal(3, snap.RetryCount)
	suite.True(snap.ChallengeFailed)
	suite.True(snap.Terminal)
	suite.False(snap.Retrying)
}

func (suite *GateSuite) TestAutoRetryStopsAtCap() {
	suite.failAndRearm()
	suite.failAndRearm()
	suite.gate.ChallengeFailed()

	suite.clock.Advance(time.Minute)
	suite.Never(func() bool {
		return !suite.gate.Snapshot().ChallengeFailed
	}, 50*time.Millisecond, 5*time.Millisecond)

	// Further errors while terminal do not move the count past the cap.
	suite.gate.ChallengeFailed()
	suite.Equal(3, suite.gate.Snapshot().RetryCount)
}

func (suite *GateSuite) TestAutoRetryWaitsForFullDelay() {
	suite.gate.ChallengeFailed()
	suite.clock.Advance(1999 * time.Millisecond)
	suite.Never(func() bool {
		return !suite.gate.Snapshot().ChallengeFailed
	}, 30*time.Millisecond, 5*time.Millisecond)

	suite.clock.Advance(time.Millisecond)
	suite.Eventually(func() bool {
		snap := suite.gate.Snapshot()
		return !snap.ChallengeFailed && !snap.ChallengeLoaded
	}, time.Second, 5*time.Millisecond)
}

func (suite *GateSuite) TestSuccessAfterFailuresClearsFailure() {
	suite.failAndRearm()
	suite.gate.ChallengeFailed()

	suite.NoError(suite.gate.ChallengeSucceeded("token"))
	snap := suite.gate.Snapshot()
	suite.True(snap.Verified)
	suite.False(snap.ChallengeFailed)
	suite.Equal(0, snap.RetryCount)

	// The pending re-arm must not touch a verified gate.
	suite.clock.Advance(2 * time.Second)
	suite.Never(func() bool {
		return !suite.gate.Snapshot().Verified
	}, 30*time.Millisecond, 5*time.Millisecond)
}

func (suite *GateSuite) TestVerifiedNeverReverts() {
	suite.NoError(suite.gate.ChallengeSucceeded("token"))

	suite.gate.ChallengeFailed()
	suite.gate.ChallengeLoaded()
	suite.NoError(suite.gate.Retry())

	snap := suite.gate.Snapshot()
	suite.True(snap.Verified)
	suite.False(snap.ChallengeFailed)
	suite.Equal(PhaseVerified, snap.Phase)
}

func (suite *GateSuite) TestManualRetryReArms() {
	suite.failAndRearm()
	suite.failAndRearm()
	suite.gate.ChallengeFailed()
	suite.Require().True(suite.gate.Snapshot().Terminal)

	suite.NoError(suite.gate.Retry())
	snap := suite.gate.Snapshot()
	suite.Equal(0, snap.RetryCount)
	suite.False(snap.ChallengeFailed)
	suite.False(snap.ChallengeLoaded)

	// The policy is re-armed, so the next failure retries automatically again.
	suite.gate.ChallengeFailed()
	snap = suite.gate.Snapshot()
	suite.Equal(1, snap.RetryCount)
	suite.True(snap.Retrying)
}

func (suite *GateSuite) TestManualRetryRequiresFailure() {
	suite.ErrorIs(suite.gate.Retry(), ErrRetryNotAllowed)
}

func (suite *GateSuite) TestBypass() {
	suite.ErrorIs(suite.gate.Bypass(), ErrBypassDisabled)
	suite.False(suite.gate.Verified())
	suite.False(suite.gate.Snapshot().BypassAllowed)

	dev := New(DefaultPolicy(), WithClock(suite.clock), WithLogger(quietLogger()), WithBypass(true))
	dev.Ready()
	suite.True(dev.Snapshot().BypassAllowed)
	suite.NoError(dev.Bypass())
	suite.True(dev.Verified())
	suite.False(dev.Snapshot().BypassAllowed)
}

func TestPolicyOfOneAttemptIsImmediatelyTerminal(t *testing.T) {
	g := New(Policy{MaxAttempts: 1, Delay: time.Second}, WithClock(clockwork.NewFakeClock()), WithLogger(quietLogger()))
	g.Ready()
	g.ChallengeFailed()

	snap := g.Snapshot()
	if !snap.Terminal || snap.RetryCount != 1 {
		t.Fatalf("expected terminal state with one failure, got %+v", snap)
	}
}
