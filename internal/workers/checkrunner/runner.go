package checkrunner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"cybergrid/internal/ports"
)

// CheckProcessor performs the analysis for a check id.
type CheckProcessor interface {
	Process(ctx context.Context, checkID string) error
}

// SimulatedProcessor waits a fixed delay and then asks the classifier for a
// verdict. There is no real analysis behind it. A check replaced or dropped
// during the wait releases the worker at once.
type SimulatedProcessor struct {
	Checks     ports.CheckRepository
	Classifier ports.Classifier
	Clock      clockwork.Clock
	Delay      time.Duration
}

func (p SimulatedProcessor) Process(ctx context.Context, checkID string) error {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	discarded, err := p.Checks.Discarded(ctx, checkID)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-discarded:
		return ports.ErrNotFound
	case <-clock.After(p.Delay):
	}

	req, err := p.Checks.Get(ctx, checkID)
	if err != nil {
		return err
	}
	verdict, err := p.Classifier.Classify(ctx, req)
	if err != nil {
		return err
	}
	return p.Checks.Complete(ctx, checkID, verdict)
}

// Run starts concurrency workers draining queue and blocks until they have
// all stopped: either ctx is done or the queue was closed and drained.
func Run(ctx context.Context, queue ports.JobQueue, processor CheckProcessor, concurrency int, log logrus.FieldLogger) {
	if concurrency < 1 {
		return
	}
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-queue.Jobs():
					if !ok {
						return
					}
					handle(ctx, processor, job, idx, log)
				}
			}
		}(i)
	}
	wg.Wait()
}

func handle(ctx context.Context, processor CheckProcessor, job ports.CheckJob, idx int, log logrus.FieldLogger) {
	entry := log.WithFields(logrus.Fields{"worker": idx, "check_id": job.CheckID})
	err := processor.Process(ctx, job.CheckID)
	switch {
	case err == nil:
		entry.Debug("check completed")
	case errors.Is(err, ports.ErrNotFound):
		// superseded by a newer submission
		entry.Debug("check discarded before completion")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		entry.WithError(err).Info("check abandoned")
	default:
		entry.WithError(err).Error("check failed")
	}
}

// ProcessInline runs the same processor synchronously for one check.
func ProcessInline(ctx context.Context, processor CheckProcessor, checkID string) error {
	return processor.Process(ctx, checkID)
}
