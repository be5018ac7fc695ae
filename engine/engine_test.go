package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"leadflow/models"
	"leadflow/utils"
)

const testSequenceID uint = 1

// testEnv wires a dispatcher and poller over the in-memory store with a
// controllable clock.
type testEnv struct {
	t          *testing.T
	store      *memStore
	mailer     *fakeMailer
	dispatcher *Dispatcher
	poller     *Poller
	now        time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	env := &testEnv{
		t:      t,
		store:  newMemStore(),
		mailer: &fakeMailer{},
		now:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	env.dispatcher = NewDispatcher(env.store, env.mailer, time.Second)
	env.dispatcher.now = func() time.Time { return env.now }
	env.poller = NewPoller(env.store, env.dispatcher, DefaultBatchSize)
	env.poller.now = env.dispatcher.now
	return env
}

// drain polls until no work is due and returns the total processed.
func (env *testEnv) drain() int {
	env.t.Helper()
	total := 0
	for i := 0; i < 20; i++ {
		n, err := env.poller.ProcessDue(context.Background())
		require.NoError(env.t, err)
		if n == 0 {
			return total
		}
		total += n
	}
	env.t.Fatal("poller did not drain")
	return total
}

func (env *testEnv) emailStep(pos int, subject, body string) *models.SequenceStep {
	return env.store.addStep(models.SequenceStep{
		SequenceID:    testSequenceID,
		OrderPosition: pos,
		Kind:          models.StepKindEmail,
		EmailSubject:  subject,
		EmailBody:     body,
	})
}

func (env *testEnv) waitStep(pos int, duration *int, unit string) *models.SequenceStep {
	return env.store.addStep(models.SequenceStep{
		SequenceID:    testSequenceID,
		OrderPosition: pos,
		Kind:          models.StepKindWait,
		WaitDuration:  duration,
		WaitUnit:      unit,
	})
}

func (env *testEnv) conditionStep(pos int, predicate string, trueNext, falseNext *uint) *models.SequenceStep {
	return env.store.addStep(models.SequenceStep{
		SequenceID:      testSequenceID,
		OrderPosition:   pos,
		Kind:            models.StepKindCondition,
		ConditionType:   predicate,
		TrueNextStepID:  trueNext,
		FalseNextStepID: falseNext,
	})
}

// enroll creates an active enrollment for the lead with a due execution
// for the given step.
func (env *testEnv) enroll(lead *models.Lead, step *models.SequenceStep) (*models.Enrollment, *models.StepExecution) {
	enrollment := env.store.addEnrollment(models.Enrollment{
		SequenceID: testSequenceID,
		LeadID:     lead.ID,
	})
	execution := env.store.addExecution(models.StepExecution{
		EnrollmentID: enrollment.ID,
		StepID:       step.ID,
		ScheduledAt:  env.now,
	})
	return enrollment, execution
}

func (env *testEnv) lead(name, email string) *models.Lead {
	return env.store.addLead(models.Lead{Name: name, Email: email})
}

// pendingFor returns the single pending execution for the step, failing
// the test when there is none or more than one.
func (env *testEnv) pendingFor(enrollmentID, stepID uint) models.StepExecution {
	env.t.Helper()
	var pending []models.StepExecution
	for _, e := range env.store.executionsForStep(enrollmentID, stepID) {
		if e.Status == models.ExecutionStatusPending {
			pending = append(pending, e)
		}
	}
	require.Len(env.t, pending, 1, "expected exactly one pending execution for step %d", stepID)
	return pending[0]
}

func intPtr(v int) *int    { return utils.Pointer(v) }
func uintPtr(v uint) *uint { return utils.Pointer(v) }
