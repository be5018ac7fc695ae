package engine

import (
	"context"
	"time"

	"leadflow/models"
)

// replyLookback is the trailing window the "replied" predicate inspects.
const replyLookback = 7 * 24 * time.Hour

// runCondition evaluates the step's predicate and picks a branch target.
// A detected reply pauses the enrollment so no further automated contact
// goes out until an operator resumes it. Branch targets are scheduled
// with zero delay; an absent target falls through to the default
// order-based resolution.
func (d *Dispatcher) runCondition(ctx context.Context, enrollment *models.Enrollment, step *models.SequenceStep) stepResult {
	matched, serr := d.evaluatePredicate(ctx, step.ConditionType, enrollment)
	if serr != nil {
		return stepResult{failure: serr}
	}

	if matched {
		return stepResult{
			pauseEnrollment: true,
			explicitNext:    step.TrueNextStepID,
		}
	}
	return stepResult{explicitNext: step.FalseNextStepID}
}

// evaluatePredicate runs the named predicate over the enrollment's lead
// context. An unrecognized predicate fails the execution rather than
// defaulting to true, so a typo in a step definition cannot silently
// route every lead down the true branch.
func (d *Dispatcher) evaluatePredicate(ctx context.Context, predicate string, enrollment *models.Enrollment) (bool, *StepError) {
	switch predicate {
	case models.ConditionReplied:
		since := d.now().Add(-replyLookback)
		replied, err := d.store.HasReplySince(ctx, enrollment.LeadID, since)
		if err != nil {
			return false, systemErr(err)
		}
		return replied, nil
	default:
		return false, validationErr("unknown condition predicate: %q", predicate)
	}
}
