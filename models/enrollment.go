package models

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment statuses
const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusPaused    = "paused"
	EnrollmentStatusCompleted = "completed"
	EnrollmentStatusFailed    = "failed"
)

// Execution statuses
const (
	ExecutionStatusPending = "pending"
	ExecutionStatusClaimed = "claimed"
	ExecutionStatusSent    = "sent"
	ExecutionStatusFailed  = "failed"
)

// Enrollment is a lead's run through a Sequence. Status transitions are
// made by the executor; external operators may pause or re-activate.
type Enrollment struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`
	LeadID     uint `gorm:"not null;index" json:"lead_id"`

	Status      string     `gorm:"not null;default:'active';index" json:"status"` // active, paused, completed, failed
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Relations
	Sequence   Sequence        `json:"-"`
	Lead       Lead            `json:"-"`
	Executions []StepExecution `gorm:"foreignKey:EnrollmentID" json:"executions,omitempty"`
}

// StepExecution is one scheduled or occurred attempt of a Step for an
// Enrollment. Rows are never deleted; they are the audit trail. At most
// one execution per (enrollment, step) may be pending or claimed at a time.
type StepExecution struct {
	gorm.Model
	EnrollmentID uint `gorm:"not null;index" json:"enrollment_id"`
	StepID       uint `gorm:"not null;index" json:"step_id"`

	Status       string     `gorm:"not null;default:'pending';index" json:"status"` // pending, claimed, sent, failed
	ScheduledAt  time.Time  `gorm:"not null;index" json:"scheduled_at"`
	ExecutedAt   *time.Time `json:"executed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// EmailSendRecord captures a successful delivery to the mail provider.
type EmailSendRecord struct {
	gorm.Model
	ExecutionID uint `gorm:"not null;index" json:"execution_id"`
	LeadID      uint `gorm:"not null;index" json:"lead_id"`

	Recipient         string    `gorm:"not null" json:"recipient"`
	Subject           string    `json:"subject"`
	ProviderMessageID string    `gorm:"index" json:"provider_message_id"`
	SentAt            time.Time `gorm:"not null" json:"sent_at"`
}
