package models

import "time"

// Severity grades an issue.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Issue is a defect logged when a form or an audit is rejected. Exactly one of
// FormID and AuditID is set.
type Issue struct {
	ID                uint               `json:"id" gorm:"primaryKey"`
	FormID            *uint              `json:"form_id,omitempty" gorm:"index"`
	AuditID           *uint              `json:"audit_id,omitempty" gorm:"index"`
	Description       string             `json:"description" gorm:"type:text"`
	Severity          Severity           `json:"severity" gorm:"index"`
	DueDate           time.Time          `json:"due_date"`
	StatusID          uint               `json:"status_id" gorm:"index"`
	CreatedBy         uint               `json:"created_by"`
	CorrectiveActions []CorrectiveAction `json:"corrective_actions,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// IsOpen is true until the issue has been resolved.
func (i *Issue) IsOpen() bool {
	return i.StatusID != IssueStatusResolved
}

// CorrectiveAction records the remediation an outlet took for an issue.
type CorrectiveAction struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	IssueID          uint       `json:"issue_id" gorm:"index"`
	Description      string     `json:"description" gorm:"type:text"`
	CompletionDate   *time.Time `json:"completion_date,omitempty"`
	VerificationDate *time.Time `json:"verification_date,omitempty"`
	StatusID         uint       `json:"status_id"`
	CreatedBy        uint       `json:"created_by"`
	VerifiedBy       *uint      `json:"verified_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
