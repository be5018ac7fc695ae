package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"leadflow/models"
)

// memStore is an in-memory Store for engine tests. The gorm-backed store
// mirrors the same contract against Postgres.
type memStore struct {
	mu sync.Mutex

	steps       map[uint]*models.SequenceStep
	enrollments map[uint]*models.Enrollment
	leads       map[uint]*models.Lead
	executions  map[uint]*models.StepExecution
	sendRecords []*models.EmailSendRecord
	replies     map[uint][]time.Time

	nextID uint

	dueErr error // simulates a store outage
}

func newMemStore() *memStore {
	return &memStore{
		steps:       make(map[uint]*models.SequenceStep),
		enrollments: make(map[uint]*models.Enrollment),
		leads:       make(map[uint]*models.Lead),
		executions:  make(map[uint]*models.StepExecution),
		replies:     make(map[uint][]time.Time),
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) addLead(lead models.Lead) *models.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead.ID = m.id()
	m.leads[lead.ID] = &lead
	return &lead
}

func (m *memStore) addStep(step models.SequenceStep) *models.SequenceStep {
	m.mu.Lock()
	defer m.mu.Unlock()
	step.ID = m.id()
	m.steps[step.ID] = &step
	return &step
}

func (m *memStore) addEnrollment(enrollment models.Enrollment) *models.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	enrollment.ID = m.id()
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	m.enrollments[enrollment.ID] = &enrollment
	return &enrollment
}

func (m *memStore) addExecution(execution models.StepExecution) *models.StepExecution {
	m.mu.Lock()
	defer m.mu.Unlock()
	execution.ID = m.id()
	if execution.Status == "" {
		execution.Status = models.ExecutionStatusPending
	}
	m.executions[execution.ID] = &execution
	return &execution
}

func (m *memStore) addReply(leadID uint, receivedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[leadID] = append(m.replies[leadID], receivedAt)
}

func (m *memStore) execution(id uint) models.StepExecution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.executions[id]
}

func (m *memStore) enrollment(id uint) models.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.enrollments[id]
}

// executionsForStep returns all executions for the (enrollment, step)
// pair, any status.
func (m *memStore) executionsForStep(enrollmentID, stepID uint) []models.StepExecution {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StepExecution
	for _, e := range m.executions {
		if e.EnrollmentID == enrollmentID && e.StepID == stepID {
			out = append(out, *e)
		}
	}
	return out
}

// Store implementation

func (m *memStore) DueExecutions(ctx context.Context, now time.Time, limit int) ([]models.StepExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dueErr != nil {
		return nil, m.dueErr
	}

	var due []models.StepExecution
	for _, e := range m.executions {
		if e.Status != models.ExecutionStatusPending || e.ScheduledAt.After(now) {
			continue
		}
		enrollment, ok := m.enrollments[e.EnrollmentID]
		if !ok || enrollment.Status != models.EnrollmentStatusActive {
			continue
		}
		due = append(due, *e)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *memStore) ClaimExecution(ctx context.Context, executionID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[executionID]
	if !ok || e.Status != models.ExecutionStatusPending {
		return false, nil
	}
	e.Status = models.ExecutionStatusClaimed
	return true, nil
}

func (m *memStore) Transact(ctx context.Context, fn func(tx Store) error) error {
	return fn(m)
}

func (m *memStore) GetStep(ctx context.Context, stepID uint) (*models.SequenceStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	step, ok := m.steps[stepID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *step
	return &copied, nil
}

func (m *memStore) GetEnrollment(ctx context.Context, enrollmentID uint) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	enrollment, ok := m.enrollments[enrollmentID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *enrollment
	return &copied, nil
}

func (m *memStore) GetLead(ctx context.Context, leadID uint) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[leadID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *lead
	return &copied, nil
}

func (m *memStore) NextStepAfter(ctx context.Context, sequenceID uint, orderPosition int) (*models.SequenceStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next *models.SequenceStep
	for _, s := range m.steps {
		if s.SequenceID != sequenceID || s.OrderPosition <= orderPosition {
			continue
		}
		if next == nil || s.OrderPosition < next.OrderPosition {
			next = s
		}
	}
	if next == nil {
		return nil, nil
	}
	copied := *next
	return &copied, nil
}

func (m *memStore) MarkExecutionSent(ctx context.Context, executionID uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[executionID]
	if !ok {
		return fmt.Errorf("execution %d: %w", executionID, ErrNotFound)
	}
	e.Status = models.ExecutionStatusSent
	e.ExecutedAt = &at
	return nil
}

func (m *memStore) MarkExecutionFailed(ctx context.Context, executionID uint, message string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[executionID]
	if !ok {
		return fmt.Errorf("execution %d: %w", executionID, ErrNotFound)
	}
	e.Status = models.ExecutionStatusFailed
	e.ExecutedAt = &at
	e.ErrorMessage = message
	return nil
}

func (m *memStore) CreateExecution(ctx context.Context, execution *models.StepExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	execution.ID = m.id()
	copied := *execution
	m.executions[execution.ID] = &copied
	return nil
}

func (m *memStore) HasActiveExecution(ctx context.Context, enrollmentID, stepID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.executions {
		if e.EnrollmentID == enrollmentID && e.StepID == stepID &&
			(e.Status == models.ExecutionStatusPending || e.Status == models.ExecutionStatusClaimed) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UpdateEnrollmentStatus(ctx context.Context, enrollmentID uint, status string, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	enrollment, ok := m.enrollments[enrollmentID]
	if !ok {
		return fmt.Errorf("enrollment %d: %w", enrollmentID, ErrNotFound)
	}
	enrollment.Status = status
	enrollment.CompletedAt = completedAt
	return nil
}

func (m *memStore) CreateSendRecord(ctx context.Context, record *models.EmailSendRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *record
	m.sendRecords = append(m.sendRecords, &copied)
	return nil
}

func (m *memStore) HasReplySince(ctx context.Context, leadID uint, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, at := range m.replies[leadID] {
		if !at.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

var _ Store = (*memStore)(nil)

// fakeMailer records sends and can be told to fail.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

type sentMail struct {
	to      string
	subject string
	body    string
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return fmt.Sprintf("provider-msg-%d", len(f.sent)), nil
}

func (f *fakeMailer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var errProviderDown = errors.New("550 relay rejected the message")
