package models

import "gorm.io/gorm"

// Sequence statuses
const (
	SequenceStatusDraft    = "draft"
	SequenceStatusActive   = "active"
	SequenceStatusArchived = "archived"
)

// Step kinds
const (
	StepKindEmail     = "email"
	StepKindWait      = "wait"
	StepKindCondition = "condition"
)

// Wait units
const (
	WaitUnitHours = "hours"
	WaitUnitDays  = "days"
	WaitUnitWeeks = "weeks"
)

// Condition predicates
const (
	ConditionReplied = "replied"
)

// Sequence represents an ordered outreach program
type Sequence struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Status      string `gorm:"default:'draft'" json:"status"` // draft, active, archived

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

// SequenceStep represents one unit of a Sequence. Steps are treated as
// immutable once any execution references them; edits should version,
// not mutate, so the execution audit trail stays intact.
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`

	// OrderPosition is unique and strictly increasing within a sequence.
	OrderPosition int    `gorm:"not null;index" json:"order_position"`
	Kind          string `gorm:"not null" json:"kind"` // email, wait, condition

	// Email step fields
	EmailSubject string `json:"email_subject,omitempty"`
	EmailBody    string `gorm:"type:text" json:"email_body,omitempty"`

	// Wait step fields
	WaitDuration *int   `json:"wait_duration,omitempty"`
	WaitUnit     string `json:"wait_unit,omitempty"` // hours, days, weeks

	// Condition step fields. A nil branch target means "fall through to
	// the next step by order position".
	ConditionType   string `json:"condition_type,omitempty"` // replied
	TrueNextStepID  *uint  `json:"true_next_step_id,omitempty"`
	FalseNextStepID *uint  `json:"false_next_step_id,omitempty"`
}
