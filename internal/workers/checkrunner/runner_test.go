package checkrunner

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cybergrid/internal/adapters/memory"
	"cybergrid/internal/domain"
	"cybergrid/internal/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockClassifier struct{ mock.Mock }

func (m *mockClassifier) Classify(ctx context.Context, req domain.CheckRequest) (domain.Verdict, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Verdict), args.Error(1)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func seed(t *testing.T, checks *memory.Checks, session, id string) {
	t.Helper()
	req := domain.NewCheckRequest(id, domain.KindURL, "https://example.com")
	require.NoError(t, req.Begin(time.Now()))
	require.NoError(t, checks.Replace(context.Background(), session, req))
}

func TestSimulatedProcessorWaitsForDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock := clockwork.NewFakeClock()
	checks := memory.NewChecks(clock)
	seed(t, checks, "s1", "c1")

	classifier := &mockClassifier{}
	classifier.On("Classify", mock.Anything, mock.MatchedBy(func(r domain.CheckRequest) bool {
		return r.ID == "c1"
	})).Return(domain.VerdictSafe, nil).Once()

	p := SimulatedProcessor{Checks: checks, Classifier: classifier, Clock: clock, Delay: 1500 * time.Millisecond}
	errCh := make(chan error, 1)
	go func() { errCh <- p.Process(ctx, "c1") }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(1499 * time.Millisecond)
	got, err := checks.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzing, got.Status)

	clock.Advance(time.Millisecond)
	require.NoError(t, <-errCh)

	got, err = checks.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, got.Status)
	assert.Equal(t, domain.VerdictSafe, got.Verdict)
	classifier.AssertExpectations(t)
}

func TestSimulatedProcessorDiscardedCheck(t *testing.T) {
	checks := memory.NewChecks(nil)
	p := SimulatedProcessor{Checks: checks, Classifier: &mockClassifier{}, Delay: 0}
	err := p.Process(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSimulatedProcessorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checks := memory.NewChecks(nil)
	seed(t, checks, "s1", "c1")
	p := SimulatedProcessor{Checks: checks, Classifier: &mockClassifier{}, Clock: clockwork.NewFakeClock(), Delay: time.Hour}
	assert.ErrorIs(t, p.Process(ctx, "c1"), context.Canceled)
}

func TestSimulatedProcessorReleasedWhenSuperseded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	clock := clockwork.NewFakeClock()
	checks := memory.NewChecks(clock)
	seed(t, checks, "s1", "old")

	classifier := &mockClassifier{}
	p := SimulatedProcessor{Checks: checks, Classifier: classifier, Clock: clock, Delay: time.Hour}
	errCh := make(chan error, 1)
	go func() { errCh <- p.Process(ctx, "old") }()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	seed(t, checks, "s1", "new")
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ports.ErrNotFound)
	case <-time.After(time.Second):
		t.Fatal("worker still waiting on a superseded check")
	}
	classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestRunDrainsQueue(t *testing.T) {
	ctx := context.Background()
	checks := memory.NewChecks(nil)
	queue := memory.NewQueue(8)
	classifier := &mockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything).Return(domain.VerdictPhishing, nil)

	ids := []string{"a", "b", "c", "d", "e"}
	for i, id := range ids {
		// distinct sessions so nothing is discarded
		seed(t, checks, "s"+string(rune('0'+i)), id)
		require.NoError(t, queue.Enqueue(ctx, ports.CheckJob{CheckID: id}))
	}
	queue.Close()

	p := SimulatedProcessor{Checks: checks, Classifier: classifier, Delay: time.Millisecond}
	Run(ctx, queue, p, 3, quietLogger())

	for _, id := range ids {
		got, err := checks.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDone, got.Status, id)
		assert.Equal(t, domain.VerdictPhishing, got.Verdict, id)
	}
	classifier.AssertNumberOfCalls(t, "Classify", len(ids))
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	queue := memory.NewQueue(1)
	done := make(chan struct{})
	go func() {
		Run(ctx, queue, SimulatedProcessor{}, 2, quietLogger())
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after cancel")
	}
}

func TestRunWithoutWorkersReturns(t *testing.T) {
	Run(context.Background(), memory.NewQueue(1), SimulatedProcessor{}, 0, quietLogger())
}
