package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nexuscomply/backend/internal/logger"
	"github.com/nexuscomply/backend/internal/metrics"
	"github.com/nexuscomply/backend/internal/models"
	"github.com/nexuscomply/backend/internal/util"
)

// ReviewService applies manager/admin status decisions to forms and audits.
type ReviewService struct {
	db       *gorm.DB
	notifier *NotificationService
	now      func() time.Time
}

func NewReviewService(db *gorm.DB, notifier *NotificationService) *ReviewService {
	return &ReviewService{db: db, notifier: notifier, now: time.Now}
}

// IssueInput is the issue payload that must accompany a rejection.
type IssueInput struct {
	Description string          `json:"description"`
	Severity    models.Severity `json:"severity"`
	DueDate     string          `json:"due_date"`
}

// StatusChangeRequest is the body of POST /{role}/forms/:id/status and
// POST /{role}/audits/:id/status.
type StatusChangeRequest struct {
	StatusID            uint        `json:"status_id"`
	ExpectedLockVersion *int        `json:"expected_lock_version,omitempty"`
	Reason              string      `json:"reason,omitempty"`
	Issue               *IssueInput `json:"issue,omitempty"`
}

// StatusChangeResult reports the entity's new state and, for rejections, the
// issue created with it.
type StatusChangeResult struct {
	EntityType  string        `json:"entity_type"`
	EntityID    uint          `json:"entity_id"`
	StatusID    uint          `json:"status_id"`
	Status      string        `json:"status"`
	LockVersion int           `json:"lock_version"`
	Issue       *models.Issue `json:"issue,omitempty"`
}

// newIssue validates a rejection payload. Nothing is written when it fails.
func newIssue(in *IssueInput, actorID uint, now time.Time) (*models.Issue, error) {
	if in == nil || strings.TrimSpace(in.Description) == "" || in.Severity == "" || strings.TrimSpace(in.DueDate) == "" {
		return nil, ErrIssueRequired
	}
	if !in.Severity.Valid() {
		return nil, ErrInvalidSeverity
	}
	due, err := parseDate(in.DueDate)
	if err != nil {
		return nil, ErrInvalidDueDate
	}
	if !isFutureDay(due, now) {
		return nil, ErrDueDateNotFuture
	}
	return &models.Issue{
		Description: strings.TrimSpace(in.Description),
		Severity:    in.Severity,
		DueDate:     due,
		StatusID:    models.IssueStatusOpen,
		CreatedBy:   actorID,
	}, nil
}

// prepare validates the parts of a request that do not need the database.
func (s *ReviewService) prepare(actor Actor, req StatusChangeRequest) (*models.Issue, error) {
	if !actor.IsReviewer() {
		return nil, ErrForbidden
	}
	if !models.ReviewerSettable(req.StatusID) {
		return nil, ErrInvalidStatus
	}
	if req.StatusID != models.StatusRejected {
		return nil, nil
	}
	return newIssue(req.Issue, actor.UserID, s.now())
}

func checkLock(current int, expected *int) error {
	if expected != nil && *expected != current {
		return ErrConflict
	}
	return nil
}

// SetFormStatus moves a form of the current audit version to Pending,
// Approved or Rejected. A rejection creates its issue in the same transaction.
func (s *ReviewService) SetFormStatus(ctx context.Context, actor Actor, formID uint, req StatusChangeRequest) (*StatusChangeResult, error) {
	issue, err := s.prepare(actor, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		result *StatusChangeResult
		outlet *models.Outlet
		from   uint
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		form, err := findForm(tx, formID)
		if err != nil {
			return err
		}
		audit, err := findAudit(tx.Preload("Outlet"), form.AuditID)
		if err != nil {
			return err
		}
		outlet = audit.Outlet
		if !actor.canReview(outlet) {
			return ErrForbidden
		}
		current, err := isCurrent(tx, audit)
		if err != nil {
			return err
		}
		if !current {
			return ErrNotCurrentVersion
		}
		if !models.ReviewerEligible(form.StatusID) || !models.ReviewerEligible(audit.StatusID) {
			return ErrNotEligible
		}
		if err := checkLock(form.LockVersion, req.ExpectedLockVersion); err != nil {
			return err
		}

		res := tx.Model(&models.Form{}).
			Where("id = ? AND lock_version = ?", form.ID, form.LockVersion).
			Updates(map[string]interface{}{
				"status_id":    req.StatusID,
				"lock_version": gorm.Expr("lock_version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		if err := tx.Model(&models.Audit{}).Where("id = ?", audit.ID).UpdateColumn("action_date", now).Error; err != nil {
			return err
		}

		if issue != nil {
			issue.FormID = &form.ID
			if err := tx.Create(issue).Error; err != nil {
				return err
			}
		}
		from = form.StatusID
		if err := recordStatusChange(tx, models.EntityForm, form.ID, from, req.StatusID, actor.UserID, req.Reason); err != nil {
			return err
		}

		result = &StatusChangeResult{
			EntityType:  models.EntityForm,
			EntityID:    form.ID,
			StatusID:    req.StatusID,
			Status:      models.FormStatusName(req.StatusID),
			LockVersion: form.LockVersion + 1,
			Issue:       issue,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(result, outlet, from, fmt.Sprintf("Form #%d", formID))
	return result, nil
}

// SetAuditStatus applies a reviewer decision to the current version of an
// audit. Rejecting requires at least one rejected form; the audit is never
// rejected implicitly.
func (s *ReviewService) SetAuditStatus(ctx context.Context, actor Actor, auditID uint, req StatusChangeRequest) (*StatusChangeResult, error) {
	issue, err := s.prepare(actor, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		result *StatusChangeResult
		outlet *models.Outlet
		from   uint
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		audit, err := findAudit(tx.Preload("Outlet"), auditID)
		if err != nil {
			return err
		}
		outlet = audit.Outlet
		if !actor.canReview(outlet) {
			return ErrForbidden
		}
		current, err := isCurrent(tx, audit)
		if err != nil {
			return err
		}
		if !current {
			return ErrNotCurrentVersion
		}
		if !models.ReviewerEligible(audit.StatusID) {
			return ErrNotEligible
		}
		if err := checkLock(audit.LockVersion, req.ExpectedLockVersion); err != nil {
			return err
		}
		if req.StatusID == models.StatusRejected {
			rejected, err := countRejectedForms(tx, audit.ID)
			if err != nil {
				return err
			}
			if rejected == 0 {
				return ErrNoRejectedForms
			}
		}

		updates := map[string]interface{}{
			"status_id":    req.StatusID,
			"lock_version": gorm.Expr("lock_version + 1"),
			"action_date":  now,
		}
		res := tx.Model(&models.Audit{}).
			Where("id = ? AND lock_version = ?", audit.ID, audit.LockVersion).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		if issue != nil {
			issue.AuditID = &audit.ID
			if err := tx.Create(issue).Error; err != nil {
				return err
			}
		}
		from = audit.StatusID
		if err := recordStatusChange(tx, models.EntityAudit, audit.ID, from, req.StatusID, actor.UserID, req.Reason); err != nil {
			return err
		}

		result = &StatusChangeResult{
			EntityType:  models.EntityAudit,
			EntityID:    audit.ID,
			StatusID:    req.StatusID,
			Status:      models.StatusName(req.StatusID),
			LockVersion: audit.LockVersion + 1,
			Issue:       issue,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(result, outlet, from, fmt.Sprintf("Audit #%d", auditID))
	return result, nil
}

// RejectWithIssue is the single entry point for a rejection: status change and
// issue creation commit together or not at all.
func (s *ReviewService) RejectWithIssue(ctx context.Context, actor Actor, entityType string, entityID uint, issue IssueInput) (*StatusChangeResult, error) {
	req := StatusChangeRequest{StatusID: models.StatusRejected, Issue: &issue}
	switch entityType {
	case models.EntityForm:
		return s.SetFormStatus(ctx, actor, entityID, req)
	case models.EntityAudit:
		return s.SetAuditStatus(ctx, actor, entityID, req)
	}
	return nil, fmt.Errorf("unknown entity type %q", entityType)
}

func (s *ReviewService) afterTransition(result *StatusChangeResult, outlet *models.Outlet, from uint, subject string) {
	metrics.IncStatusTransition(result.EntityType, models.StatusName(result.StatusID))
	entry := logger.Log().WithField("entity", result.EntityType).
		WithField("entity_id", result.EntityID).
		WithField("from_status", models.StatusName(from)).
		WithField("to_status", models.StatusName(result.StatusID))
	if result.Issue != nil {
		metrics.IncIssueCreated(string(result.Issue.Severity))
		entry = entry.WithField("issue_id", result.Issue.ID)
	}
	entry.Info("status changed")

	if s.notifier == nil || outlet == nil {
		return
	}
	title := fmt.Sprintf("%s %s", subject, strings.ToLower(result.Status))
	message := fmt.Sprintf("%s at %s is now %s.", subject, outlet.Name, result.Status)
	nType := models.NotificationTypeInfo
	switch result.StatusID {
	case models.StatusApproved:
		nType = models.NotificationTypeSuccess
	case models.StatusRejected:
		nType = models.NotificationTypeWarning
		if result.Issue != nil {
			message = fmt.Sprintf("%s Issue (%s): %s. Due %s.", message, result.Issue.Severity,
				util.Truncate(result.Issue.Description, 200), result.Issue.DueDate.Format(dateLayout))
		}
	}
	s.notifier.NotifyOutlet(outlet.ID, nType, title, message)
	s.notifier.SendExternal("review", title, message)
}
