package engine

import (
	"time"

	"leadflow/models"
)

// defaultWaitHours applies when a wait step has no duration or unit
// configured (5 days).
const defaultWaitHours = 120

// runWait computes the absolute resume delay for a wait step. The step
// itself has no external side effect; it is marked sent immediately and
// the next step is scheduled at now + delay.
func (d *Dispatcher) runWait(step *models.SequenceStep) stepResult {
	hours := defaultWaitHours
	if step.WaitDuration != nil && step.WaitUnit != "" {
		switch step.WaitUnit {
		case models.WaitUnitHours:
			hours = *step.WaitDuration
		case models.WaitUnitDays:
			hours = *step.WaitDuration * 24
		case models.WaitUnitWeeks:
			hours = *step.WaitDuration * 168
		default:
			hours = defaultWaitHours
		}
	}
	return stepResult{delay: time.Duration(hours) * time.Hour}
}
