package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Lead represents a single contact the executor reaches out to.
type Lead struct {
	gorm.Model
	UserID uint `gorm:"index" json:"user_id"`

	Name    string `json:"name"`
	Email   string `gorm:"index" json:"email"`
	Company string `json:"company"`
	Phone   string `json:"phone"`

	// Relations
	Replies []LeadReply `gorm:"foreignKey:LeadID" json:"replies,omitempty"`
}

// FirstName returns the first token of the lead's name, or "there" when
// no name is on record. Used as the {name} substitution default.
func (l *Lead) FirstName() string {
	fields := strings.Fields(l.Name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

// LeadReply records an inbound reply matched to a lead, as ingested by
// the reply worker. The "replied" condition predicate reads these rows.
type LeadReply struct {
	gorm.Model
	LeadID uint `gorm:"not null;index" json:"lead_id"`

	FromAddress string    `gorm:"not null" json:"from_address"`
	MessageID   string    `gorm:"index" json:"message_id"`
	Subject     string    `json:"subject"`
	Snippet     string    `gorm:"type:text" json:"snippet"`
	ReceivedAt  time.Time `gorm:"not null;index" json:"received_at"`
}
