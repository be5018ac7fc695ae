package engine

import (
	"context"
	"time"

	"leadflow/models"
)

// Store is the repository interface the executor runs against. The engine
// owns no state of its own; everything it reads or writes goes through
// here, which keeps the scheduling logic storage-agnostic and testable
// without a live database.
type Store interface {
	// DueExecutions returns up to limit pending executions whose
	// scheduled_at is at or before now, belonging to active enrollments,
	// ordered by scheduled_at ascending.
	DueExecutions(ctx context.Context, now time.Time, limit int) ([]models.StepExecution, error)

	// ClaimExecution atomically transitions an execution from pending to
	// claimed. Returns false when the row was no longer pending, which
	// means another poller got there first.
	ClaimExecution(ctx context.Context, executionID uint) (bool, error)

	// Transact runs fn against a transactional view of the store. All
	// writes inside fn commit or roll back together.
	Transact(ctx context.Context, fn func(tx Store) error) error

	GetStep(ctx context.Context, stepID uint) (*models.SequenceStep, error)
	GetEnrollment(ctx context.Context, enrollmentID uint) (*models.Enrollment, error)
	GetLead(ctx context.Context, leadID uint) (*models.Lead, error)

	// NextStepAfter returns the step in the sequence with the smallest
	// order position greater than the given one, or nil when no such
	// step exists.
	NextStepAfter(ctx context.Context, sequenceID uint, orderPosition int) (*models.SequenceStep, error)

	MarkExecutionSent(ctx context.Context, executionID uint, at time.Time) error
	MarkExecutionFailed(ctx context.Context, executionID uint, message string, at time.Time) error

	// CreateExecution persists a new pending execution. Only the
	// next-step resolver calls this.
	CreateExecution(ctx context.Context, execution *models.StepExecution) error

	// HasActiveExecution reports whether a pending or claimed execution
	// already exists for the (enrollment, step) pair.
	HasActiveExecution(ctx context.Context, enrollmentID, stepID uint) (bool, error)

	UpdateEnrollmentStatus(ctx context.Context, enrollmentID uint, status string, completedAt *time.Time) error

	CreateSendRecord(ctx context.Context, record *models.EmailSendRecord) error

	// HasReplySince reports whether a reply from the lead was received at
	// or after the given time.
	HasReplySince(ctx context.Context, leadID uint, since time.Time) (bool, error)
}

// Mailer is the external mail-sending capability. Implementations must
// respect ctx cancellation; the dispatcher bounds every send with a
// timeout and treats expiry as a provider failure.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) (providerMessageID string, err error)
}
