package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/models"
)

func TestResolverCompletesEnrollmentWhenNoNextStep(t *testing.T) {
	env := newTestEnv(t)
	lastStep := env.emailStep(1, "Only step", "Hello")
	lead := env.lead("Ada Lovelace", "ada@example.com")
	enrollment, _ := env.enroll(lead, lastStep)

	require.Equal(t, 1, env.drain())

	done := env.store.enrollment(enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, env.now, *done.CompletedAt)
}

func TestResolverSchedulesExplicitTarget(t *testing.T) {
	env := newTestEnv(t)
	current := env.emailStep(1, "Hello", "Hi")
	target := env.emailStep(7, "Jump target", "Hi")
	lead := env.lead("Ada Lovelace", "ada@example.com")
	enrollment, _ := env.enroll(lead, current)

	err := resolveNext(context.Background(), env.store, enrollment, current, uintPtr(target.ID), 3*time.Hour, env.now)
	require.NoError(t, err)

	next := env.pendingFor(enrollment.ID, target.ID)
	assert.Equal(t, env.now.Add(3*time.Hour), next.ScheduledAt)
}

func TestResolverMissingExplicitTargetFallsThrough(t *testing.T) {
	env := newTestEnv(t)
	current := env.emailStep(1, "Hello", "Hi")
	successor := env.emailStep(2, "Next", "Hi")
	lead := env.lead("Ada Lovelace", "ada@example.com")
	enrollment, _ := env.enroll(lead, current)

	err := resolveNext(context.Background(), env.store, enrollment, current, uintPtr(9999), 0, env.now)
	require.NoError(t, err)

	env.pendingFor(enrollment.ID, successor.ID)
}

func TestResolverNeverDoubleSchedules(t *testing.T) {
	env := newTestEnv(t)
	current := env.emailStep(1, "Hello", "Hi")
	successor := env.emailStep(2, "Next", "Hi")
	lead := env.lead("Ada Lovelace", "ada@example.com")
	enrollment, _ := env.enroll(lead, current)

	// A pending execution for the successor already exists.
	env.store.addExecution(models.StepExecution{
		EnrollmentID: enrollment.ID,
		StepID:       successor.ID,
		ScheduledAt:  env.now.Add(time.Hour),
	})

	err := resolveNext(context.Background(), env.store, enrollment, current, nil, 0, env.now)
	require.NoError(t, err)

	assert.Len(t, env.store.executionsForStep(enrollment.ID, successor.ID), 1)
}

func TestResolverPicksSmallestGreaterPosition(t *testing.T) {
	env := newTestEnv(t)
	current := env.emailStep(2, "Hello", "Hi")
	env.emailStep(1, "Earlier", "Hi")
	nearest := env.emailStep(4, "Nearest successor", "Hi")
	env.emailStep(9, "Far successor", "Hi")
	lead := env.lead("Ada Lovelace", "ada@example.com")
	enrollment, _ := env.enroll(lead, current)

	err := resolveNext(context.Background(), env.store, enrollment, current, nil, 0, env.now)
	require.NoError(t, err)

	env.pendingFor(enrollment.ID, nearest.ID)
}
