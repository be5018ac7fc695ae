package worker

import (
	"context"
	"log"
	"time"

	"leadflow/engine"
)

// SequenceWorker hosts the poller on a fixed interval. Each tick runs one
// synchronous poll to completion; there is no in-process scheduler state,
// so overlapping deploys or a parallel cron trigger stay safe behind the
// store's claim guard.
type SequenceWorker struct {
	Poller   *engine.Poller
	Interval time.Duration
	Logger   *log.Logger
}

func NewSequenceWorker(poller *engine.Poller, interval time.Duration, logger *log.Logger) *SequenceWorker {
	return &SequenceWorker{
		Poller:   poller,
		Interval: interval,
		Logger:   logger,
	}
}

func (sw *SequenceWorker) Start(ctx context.Context) {
	sw.Logger.Println("Sequence worker started")

	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.Logger.Println("Sequence worker shutting down...")
			return
		case <-ticker.C:
			processed, err := sw.Poller.ProcessDue(ctx)
			if err != nil {
				// The next tick retries the still-pending rows.
				sw.Logger.Printf("Error processing due executions: %v", err)
				continue
			}
			if processed > 0 {
				sw.Logger.Printf("Processed %d executions", processed)
			}
		}
	}
}
