package models

import "time"

// Audit is one version of an outlet's fulfilment of a compliance requirement.
// All versions of the same obligation share OriginalAuditID; version 1 points
// at itself. Versions are never deleted, only superseded.
type Audit struct {
	ID                      uint                   `json:"id" gorm:"primaryKey"`
	OriginalAuditID         uint                   `json:"original_audit_id" gorm:"uniqueIndex:idx_audit_chain_version;not null"`
	AuditVersion            int                    `json:"audit_version" gorm:"uniqueIndex:idx_audit_chain_version;not null"`
	OutletID                uint                   `json:"outlet_id" gorm:"index"`
	Outlet                  *Outlet                `json:"outlet,omitempty"`
	ComplianceRequirementID uint                   `json:"compliance_requirement_id" gorm:"index"`
	ComplianceRequirement   *ComplianceRequirement `json:"compliance_requirement,omitempty"`
	StatusID                uint                   `json:"status_id" gorm:"index"`
	StartDate               time.Time              `json:"start_date" gorm:"index"`
	DueDate                 time.Time              `json:"due_date"`
	SubmittedBy             *uint                  `json:"submitted_by,omitempty"`
	SubmissionDate          *time.Time             `json:"submission_date,omitempty"`
	ActionDate              *time.Time             `json:"last_action_date,omitempty"`
	LockVersion             int                    `json:"lock_version" gorm:"not null;default:0"`
	Forms                   []Form                 `json:"forms,omitempty"`
	Issues                  []Issue                `json:"issues,omitempty"`
	CreatedAt               time.Time              `json:"created_at"`
	UpdatedAt               time.Time              `json:"updated_at"`
}

// LastActionDisplay falls back from the last review action to the submission
// date, and to "-" when neither is set.
func (a *Audit) LastActionDisplay() string {
	switch {
	case a.ActionDate != nil:
		return a.ActionDate.Format("2006-01-02")
	case a.SubmissionDate != nil:
		return a.SubmissionDate.Format("2006-01-02")
	default:
		return "-"
	}
}
