package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"leadflow/models"
)

// stepResult is the outcome a handler hands back to the dispatcher.
// Expected failures are values here, never panics or sentinel errors.
type stepResult struct {
	// failure, when non-nil, is the terminal failure for this execution.
	// A KindSystem failure is not persisted; it propagates instead.
	failure *StepError

	// pauseEnrollment stops further automated contact (reply detected).
	pauseEnrollment bool

	// sendRecord is persisted alongside the sent status when an email
	// actually went out.
	sendRecord *models.EmailSendRecord

	// explicitNext overrides order-based resolution when set. A nil
	// value falls through to the next step by order position.
	explicitNext *uint

	// delay offsets the next execution's scheduled time from now.
	delay time.Duration
}

// Dispatcher routes a claimed execution to the handler for its step kind
// and persists the terminal status together with whatever follow-up the
// resolver produces, in a single transaction.
type Dispatcher struct {
	store       Store
	mailer      Mailer
	sendTimeout time.Duration
	now         func() time.Time
	log         *logrus.Entry
}

func NewDispatcher(store Store, mailer Mailer, sendTimeout time.Duration) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &Dispatcher{
		store:       store,
		mailer:      mailer,
		sendTimeout: sendTimeout,
		now:         time.Now,
		log:         logrus.WithField("component", "dispatcher"),
	}
}

// Dispatch processes one claimed execution to a terminal status. It
// returns an error only for system-level failures (store unreachable);
// per-item failures are persisted on the execution and return nil.
func (d *Dispatcher) Dispatch(ctx context.Context, exec models.StepExecution) error {
	step, err := d.store.GetStep(ctx, exec.StepID)
	if errors.Is(err, ErrNotFound) {
		return d.failExecution(ctx, exec.ID, "missing step configuration")
	}
	if err != nil {
		return fmt.Errorf("loading step %d: %w", exec.StepID, err)
	}

	enrollment, err := d.store.GetEnrollment(ctx, exec.EnrollmentID)
	if errors.Is(err, ErrNotFound) {
		return d.failExecution(ctx, exec.ID, "missing enrollment record")
	}
	if err != nil {
		return fmt.Errorf("loading enrollment %d: %w", exec.EnrollmentID, err)
	}

	var res stepResult
	switch step.Kind {
	case models.StepKindEmail:
		res = d.runEmail(ctx, enrollment, step)
	case models.StepKindWait:
		res = d.runWait(step)
	case models.StepKindCondition:
		res = d.runCondition(ctx, enrollment, step)
	default:
		res = stepResult{failure: validationErr("missing step configuration")}
	}

	if res.failure != nil {
		if res.failure.Kind == KindSystem {
			return fmt.Errorf("processing execution %d: %s", exec.ID, res.failure.Message)
		}
		d.log.WithFields(logrus.Fields{
			"execution_id":  exec.ID,
			"enrollment_id": exec.EnrollmentID,
			"step_kind":     step.Kind,
			"error":         res.failure.Message,
		}).Warn("step execution failed")
		return d.failExecution(ctx, exec.ID, res.failure.Message)
	}

	// Terminal status, send record, enrollment mutation and the next
	// execution all land in one transaction so a crash mid-step never
	// leaves a half-advanced enrollment behind.
	return d.store.Transact(ctx, func(tx Store) error {
		now := d.now()
		if err := tx.MarkExecutionSent(ctx, exec.ID, now); err != nil {
			return err
		}
		if res.sendRecord != nil {
			res.sendRecord.ExecutionID = exec.ID
			if err := tx.CreateSendRecord(ctx, res.sendRecord); err != nil {
				return err
			}
		}
		if res.pauseEnrollment {
			if err := tx.UpdateEnrollmentStatus(ctx, enrollment.ID, models.EnrollmentStatusPaused, nil); err != nil {
				return err
			}
		}
		return resolveNext(ctx, tx, enrollment, step, res.explicitNext, res.delay, now)
	})
}

func (d *Dispatcher) failExecution(ctx context.Context, executionID uint, message string) error {
	if err := d.store.MarkExecutionFailed(ctx, executionID, message, d.now()); err != nil {
		return fmt.Errorf("marking execution %d failed: %w", executionID, err)
	}
	return nil
}
