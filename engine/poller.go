package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// DefaultBatchSize bounds how many due executions one poll claims.
const DefaultBatchSize = 50

// Poller is the executor's entry point. It is invoked on a timer (or via
// the manual trigger endpoint), claims a bounded batch of due executions
// and drives the dispatcher over each one sequentially.
type Poller struct {
	store      Store
	dispatcher *Dispatcher
	batchSize  int
	now        func() time.Time
	log        *logrus.Entry
}

func NewPoller(store Store, dispatcher *Dispatcher, batchSize int) *Poller {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Poller{
		store:      store,
		dispatcher: dispatcher,
		batchSize:  batchSize,
		now:        time.Now,
		log:        logrus.WithField("component", "poller"),
	}
}

// ProcessDue claims and processes every due execution up to the batch
// size, returning how many were claimed. Overlapping invocations are
// safe: the claim is an atomic pending-to-claimed transition, so two
// pollers never process the same row. A handler failure is persisted on
// its execution and never aborts the batch; only store-level errors
// propagate, leaving the remaining rows pending for the next invocation.
func (p *Poller) ProcessDue(ctx context.Context) (int, error) {
	due, err := p.store.DueExecutions(ctx, p.now(), p.batchSize)
	if err != nil {
		sentry.CaptureException(err)
		return 0, fmt.Errorf("querying due executions: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	processed := 0
	for _, exec := range due {
		claimed, err := p.store.ClaimExecution(ctx, exec.ID)
		if err != nil {
			sentry.CaptureException(err)
			return processed, fmt.Errorf("claiming execution %d: %w", exec.ID, err)
		}
		if !claimed {
			// Lost the race to a concurrent poller.
			continue
		}
		processed++

		if err := p.dispatcher.Dispatch(ctx, exec); err != nil {
			p.log.WithFields(logrus.Fields{
				"execution_id":  exec.ID,
				"enrollment_id": exec.EnrollmentID,
			}).WithError(err).Error("dispatch failed")
			sentry.CaptureException(err)
			return processed, err
		}
	}

	p.log.WithField("processed", processed).Debug("poll complete")
	return processed, nil
}
