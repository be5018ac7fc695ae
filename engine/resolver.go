package engine

import (
	"context"
	"errors"
	"time"

	"leadflow/models"
)

// resolveNext decides what the enrollment does after the current step:
// an explicit branch target when one was chosen, otherwise the step with
// the next order position, otherwise completion. This is the only code
// path that creates execution rows, which is what keeps the
// one-active-execution-per-step invariant intact.
func resolveNext(ctx context.Context, tx Store, enrollment *models.Enrollment, current *models.SequenceStep, explicitNext *uint, delay time.Duration, now time.Time) error {
	var next *models.SequenceStep

	if explicitNext != nil {
		step, err := tx.GetStep(ctx, *explicitNext)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		// A branch target pointing at a deleted step falls through to
		// order-based resolution instead of stranding the enrollment.
		next = step
	}

	if next == nil {
		step, err := tx.NextStepAfter(ctx, current.SequenceID, current.OrderPosition)
		if err != nil {
			return err
		}
		next = step
	}

	if next == nil {
		completedAt := now
		return tx.UpdateEnrollmentStatus(ctx, enrollment.ID, models.EnrollmentStatusCompleted, &completedAt)
	}

	active, err := tx.HasActiveExecution(ctx, enrollment.ID, next.ID)
	if err != nil {
		return err
	}
	if active {
		// Already scheduled; never double-schedule the same step.
		return nil
	}

	return tx.CreateExecution(ctx, &models.StepExecution{
		EnrollmentID: enrollment.ID,
		StepID:       next.ID,
		Status:       models.ExecutionStatusPending,
		ScheduledAt:  now.Add(delay),
	})
}
