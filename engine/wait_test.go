package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/models"
)

func TestWaitDelayComputation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		duration *int
		unit     string
		want     time.Duration
	}{
		{"hours", intPtr(6), models.WaitUnitHours, 6 * time.Hour},
		{"days", intPtr(2), models.WaitUnitDays, 48 * time.Hour},
		{"weeks", intPtr(1), models.WaitUnitWeeks, 168 * time.Hour},
		{"missing duration", nil, models.WaitUnitDays, 120 * time.Hour},
		{"missing unit", intPtr(3), "", 120 * time.Hour},
		{"unknown unit", intPtr(3), "fortnights", 120 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := &models.SequenceStep{
				Kind:         models.StepKindWait,
				WaitDuration: tt.duration,
				WaitUnit:     tt.unit,
			}
			res := env.dispatcher.runWait(step)
			require.Nil(t, res.failure)
			assert.Equal(t, tt.want, res.delay)
		})
	}
}

func TestWaitStepSchedulesNextAtResumeTime(t *testing.T) {
	env := newTestEnv(t)
	step1 := env.waitStep(1, intPtr(2), models.WaitUnitDays)
	step2 := env.emailStep(2, "Follow-up", "Hi again")
	lead := env.lead("Ada Lovelace", "ada@example.com")
	enrollment, execution := env.enroll(lead, step1)

	require.Equal(t, 1, env.drain())

	// The wait execution itself has no side effect and is sent right away.
	done := env.store.execution(execution.ID)
	assert.Equal(t, models.ExecutionStatusSent, done.Status)
	assert.Equal(t, 0, env.mailer.sentCount())

	next := env.pendingFor(enrollment.ID, step2.ID)
	assert.Equal(t, env.now.Add(48*time.Hour), next.ScheduledAt)
}

func TestWaitStepDefaultDelay(t *testing.T) {
	env := newTestEnv(t)
	step1 := env.waitStep(1, nil, "")
	step2 := env.emailStep(2, "Follow-up", "Hi again")
	lead := env.lead("Ada Lovelace", "ada@example.com")
	enrollment, _ := env.enroll(lead, step1)

	require.Equal(t, 1, env.drain())

	next := env.pendingFor(enrollment.ID, step2.ID)
	assert.Equal(t, env.now.Add(120*time.Hour), next.ScheduledAt)
}
