package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"leadflow/engine"
	"leadflow/models"
)

// GormStore is the Postgres-backed engine.Store. The claim operation is
// a conditional UPDATE guarded by the current status, which is what makes
// overlapping poller invocations safe.
type GormStore struct {
	db *gorm.DB
}

var _ engine.Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) DueExecutions(ctx context.Context, now time.Time, limit int) ([]models.StepExecution, error) {
	var execs []models.StepExecution
	err := s.db.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.id = step_executions.enrollment_id").
		Where("step_executions.status = ? AND step_executions.scheduled_at <= ?", models.ExecutionStatusPending, now).
		Where("enrollments.status = ? AND enrollments.deleted_at IS NULL", models.EnrollmentStatusActive).
		Order("step_executions.scheduled_at ASC").
		Limit(limit).
		Find(&execs).Error
	if err != nil {
		return nil, err
	}
	return execs, nil
}

func (s *GormStore) ClaimExecution(ctx context.Context, executionID uint) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.StepExecution{}).
		Where("id = ? AND status = ?", executionID, models.ExecutionStatusPending).
		Update("status", models.ExecutionStatusClaimed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) Transact(ctx context.Context, fn func(tx engine.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) GetStep(ctx context.Context, stepID uint) (*models.SequenceStep, error) {
	var step models.SequenceStep
	if err := s.db.WithContext(ctx).First(&step, stepID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &step, nil
}

func (s *GormStore) GetEnrollment(ctx context.Context, enrollmentID uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := s.db.WithContext(ctx).First(&enrollment, enrollmentID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &enrollment, nil
}

func (s *GormStore) GetLead(ctx context.Context, leadID uint) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).First(&lead, leadID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &lead, nil
}

func (s *GormStore) NextStepAfter(ctx context.Context, sequenceID uint, orderPosition int) (*models.SequenceStep, error) {
	var step models.SequenceStep
	err := s.db.WithContext(ctx).
		Where("sequence_id = ? AND order_position > ?", sequenceID, orderPosition).
		Order("order_position ASC").
		First(&step).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &step, nil
}

func (s *GormStore) MarkExecutionSent(ctx context.Context, executionID uint, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.StepExecution{}).
		Where("id = ?", executionID).
		Updates(map[string]interface{}{
			"status":      models.ExecutionStatusSent,
			"executed_at": at,
		}).Error
}

func (s *GormStore) MarkExecutionFailed(ctx context.Context, executionID uint, message string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.StepExecution{}).
		Where("id = ?", executionID).
		Updates(map[string]interface{}{
			"status":        models.ExecutionStatusFailed,
			"executed_at":   at,
			"error_message": message,
		}).Error
}

func (s *GormStore) CreateExecution(ctx context.Context, execution *models.StepExecution) error {
	return s.db.WithContext(ctx).Create(execution).Error
}

func (s *GormStore) HasActiveExecution(ctx context.Context, enrollmentID, stepID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.StepExecution{}).
		Where("enrollment_id = ? AND step_id = ? AND status IN ?",
			enrollmentID, stepID,
			[]string{models.ExecutionStatusPending, models.ExecutionStatusClaimed}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) UpdateEnrollmentStatus(ctx context.Context, enrollmentID uint, status string, completedAt *time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("id = ?", enrollmentID).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": completedAt,
		}).Error
}

func (s *GormStore) CreateSendRecord(ctx context.Context, record *models.EmailSendRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *GormStore) HasReplySince(ctx context.Context, leadID uint, since time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.LeadReply{}).
		Where("lead_id = ? AND received_at >= ?", leadID, since).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.ErrNotFound
	}
	return err
}
