package services

import "errors"

var (
	ErrAuditNotFound            = errors.New("audit not found")
	ErrFormNotFound             = errors.New("form not found")
	ErrIssueNotFound            = errors.New("issue not found")
	ErrCorrectiveActionNotFound = errors.New("corrective action not found")
	ErrFormTemplateNotFound     = errors.New("form template not found")
	ErrOutletNotFound           = errors.New("outlet not found")

	ErrForbidden = errors.New("you do not have access to this record")

	// Review workflow
	ErrInvalidStatus     = errors.New("status cannot be set by a reviewer")
	ErrNotEligible       = errors.New("status cannot be changed while the outlet is drafting or revising")
	ErrNotCurrentVersion = errors.New("only the current audit version can be changed")
	ErrIssueRequired     = errors.New("description, severity and due date are required when rejecting")
	ErrInvalidSeverity   = errors.New("severity must be one of Low, Medium, High, Critical")
	ErrInvalidDueDate    = errors.New("due date must be a date (YYYY-MM-DD)")
	ErrDueDateNotFuture  = errors.New("due date must be after today")
	ErrNoRejectedForms   = errors.New("audit cannot be rejected until at least one of its forms is rejected")
	ErrConflict          = errors.New("record was changed by someone else; reload and try again")

	// Issues
	ErrIssueFrozen     = errors.New("issue has corrective actions and can no longer be changed")
	ErrIssueNotCurrent = errors.New("issue belongs to a superseded audit version")
	ErrIssueResolved   = errors.New("issue is already resolved")
	ErrActionVerified  = errors.New("corrective action is already verified")

	// Outlet lifecycle
	ErrFormNotEditable     = errors.New("form can only be edited while it is not submitted")
	ErrInvalidContent      = errors.New("form content does not match its structure")
	ErrAuditNotSubmittable = errors.New("audit can only be submitted from draft or revising once every form is submitted")
	ErrAuditNotRevisable   = errors.New("only the current version of a rejected audit can be revised")
	ErrInvalidAudit        = errors.New("outlet, compliance requirement, start date and at least one form template are required")

	// Reports
	ErrUnknownReportType = errors.New("unknown report type")
	ErrInvalidDateRange  = errors.New("date range requires from <= to")

	// Auth
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

var ErrInvalidCorrectiveAction = errors.New("corrective action description is required")

var ErrNotificationNotFound = errors.New("notification not found")

var ErrReportGeneration = errors.New("failed to generate report")
