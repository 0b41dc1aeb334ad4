package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nexuscomply/backend/internal/logger"
	"github.com/nexuscomply/backend/internal/metrics"
	"github.com/nexuscomply/backend/internal/models"
)

// Issue version labels.
const (
	IssueVersionCurrent  = "current"
	IssueVersionPrevious = "previous"
)

// IssueService manages issues raised by rejections and the corrective actions
// outlets record against them.
type IssueService struct {
	db       *gorm.DB
	notifier *NotificationService
	now      func() time.Time
}

func NewIssueService(db *gorm.DB, notifier *NotificationService) *IssueService {
	return &IssueService{db: db, notifier: notifier, now: time.Now}
}

// IssueView decorates an issue with what the review UI needs to decide
// whether edit and delete controls are enabled.
type IssueView struct {
	models.Issue
	Status                string `json:"status"`
	CorrectiveActionCount int64  `json:"corrective_action_count"`
	Version               string `json:"version"`
	AuditVersion          int    `json:"audit_version"`
	Editable              bool   `json:"editable"`
}

// IssueUpdate carries the editable fields; nil fields are left unchanged.
type IssueUpdate struct {
	Description *string          `json:"description"`
	Severity    *models.Severity `json:"severity"`
	DueDate     *string          `json:"due_date"`
}

// CorrectiveActionInput is submitted by an outlet against an issue.
type CorrectiveActionInput struct {
	Description    string `json:"description"`
	CompletionDate string `json:"completion_date"`
}

// VerifyResult reports the verified action and the resulting issue status.
type VerifyResult struct {
	Action        *models.CorrectiveAction `json:"corrective_action"`
	IssueStatusID uint                     `json:"issue_status_id"`
	IssueStatus   string                   `json:"issue_status"`
}

// OverdueIssue is an issue the overdue sweep just flagged.
type OverdueIssue struct {
	IssueID     uint
	OutletID    uint
	Severity    models.Severity
	Description string
	DueDate     time.Time
}

func findIssue(tx *gorm.DB, id uint) (*models.Issue, error) {
	var issue models.Issue
	if err := tx.First(&issue, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIssueNotFound
		}
		return nil, err
	}
	return &issue, nil
}

// issueAudit returns the audit version an issue was raised against.
func issueAudit(tx *gorm.DB, issue *models.Issue) (*models.Audit, error) {
	if issue.AuditID != nil {
		return findAudit(tx, *issue.AuditID)
	}
	if issue.FormID == nil {
		return nil, ErrAuditNotFound
	}
	form, err := findForm(tx, *issue.FormID)
	if err != nil {
		return nil, err
	}
	return findAudit(tx, form.AuditID)
}

func actionCounts(tx *gorm.DB, ids []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(ids))
	for _, id := range ids {
		counts[id] = 0
	}
	if len(ids) == 0 {
		return counts, nil
	}
	var rows []struct {
		IssueID uint
		Total   int64
	}
	if err := tx.Model(&models.CorrectiveAction{}).
		Select("issue_id, COUNT(*) AS total").
		Where("issue_id IN ?", ids).
		Group("issue_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.IssueID] = r.Total
	}
	return counts, nil
}

func buildViews(tx *gorm.DB, issues []models.Issue, audit *models.Audit, current bool) ([]IssueView, error) {
	ids := make([]uint, 0, len(issues))
	for _, i := range issues {
		ids = append(ids, i.ID)
	}
	counts, err := actionCounts(tx, ids)
	if err != nil {
		return nil, err
	}
	version := IssueVersionPrevious
	if current {
		version = IssueVersionCurrent
	}
	views := make([]IssueView, 0, len(issues))
	for _, i := range issues {
		views = append(views, IssueView{
			Issue:                 i,
			Status:                models.IssueStatusName(i.StatusID),
			CorrectiveActionCount: counts[i.ID],
			Version:               version,
			AuditVersion:          audit.AuditVersion,
			Editable:              current && counts[i.ID] == 0,
		})
	}
	return views, nil
}

// Get returns one issue with its edit eligibility.
func (s *IssueService) Get(ctx context.Context, actor Actor, id uint) (*IssueView, error) {
	db := s.db.WithContext(ctx)
	issue, err := findIssue(db, id)
	if err != nil {
		return nil, err
	}
	audit, err := issueAudit(db, issue)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(db, actor, audit); err != nil {
		return nil, err
	}
	current, err := isCurrent(db, audit)
	if err != nil {
		return nil, err
	}
	views, err := buildViews(db, []models.Issue{*issue}, audit, current)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// formWithAudit loads a form and its audit, enforcing read access.
func formWithAudit(tx *gorm.DB, actor Actor, formID uint) (*models.Form, *models.Audit, error) {
	form, err := findForm(tx, formID)
	if err != nil {
		return nil, nil, err
	}
	audit, err := findAudit(tx, form.AuditID)
	if err != nil {
		return nil, nil, err
	}
	if err := authorizeView(tx, actor, audit); err != nil {
		return nil, nil, err
	}
	return form, audit, nil
}

// ListForForm returns the issues raised against this form version.
func (s *IssueService) ListForForm(ctx context.Context, actor Actor, formID uint) ([]IssueView, error) {
	db := s.db.WithContext(ctx)
	form, audit, err := formWithAudit(db, actor, formID)
	if err != nil {
		return nil, err
	}
	current, err := isCurrent(db, audit)
	if err != nil {
		return nil, err
	}
	var issues []models.Issue
	if err := db.Where("form_id = ?", form.ID).Order("created_at, id").Find(&issues).Error; err != nil {
		return nil, err
	}
	return buildViews(db, issues, audit, current)
}

// ListPreviousForForm returns the issues of the same form in the immediately
// preceding audit version. Issues are never merged across versions.
func (s *IssueService) ListPreviousForForm(ctx context.Context, actor Actor, formID uint) ([]IssueView, error) {
	db := s.db.WithContext(ctx)
	form, audit, err := formWithAudit(db, actor, formID)
	if err != nil {
		return nil, err
	}
	if audit.AuditVersion <= 1 {
		return []IssueView{}, nil
	}

	var prevAudit models.Audit
	err = db.Where("original_audit_id = ? AND audit_version = ?", audit.OriginalAuditID, audit.AuditVersion-1).
		First(&prevAudit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []IssueView{}, nil
	}
	if err != nil {
		return nil, err
	}

	var prevForm models.Form
	err = db.Where("audit_id = ? AND form_template_id = ?", prevAudit.ID, form.FormTemplateID).
		Order("id").
		First(&prevForm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []IssueView{}, nil
	}
	if err != nil {
		return nil, err
	}

	var issues []models.Issue
	if err := db.Where("form_id = ?", prevForm.ID).Order("created_at, id").Find(&issues).Error; err != nil {
		return nil, err
	}
	return buildViews(db, issues, &prevAudit, false)
}

// loadEditable loads an issue the reviewer may still edit or delete: it must
// have no corrective actions and belong to the current audit version.
func loadEditable(tx *gorm.DB, actor Actor, id uint) (*models.Issue, error) {
	issue, err := findIssue(tx, id)
	if err != nil {
		return nil, err
	}
	audit, err := issueAudit(tx, issue)
	if err != nil {
		return nil, err
	}
	var outlet models.Outlet
	if err := tx.First(&outlet, audit.OutletID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if !actor.canReview(&outlet) {
		return nil, ErrForbidden
	}

	counts, err := actionCounts(tx, []uint{issue.ID})
	if err != nil {
		return nil, err
	}
	if counts[issue.ID] > 0 {
		return nil, ErrIssueFrozen
	}
	current, err := isCurrent(tx, audit)
	if err != nil {
		return nil, err
	}
	if !current {
		return nil, ErrIssueNotCurrent
	}
	return issue, nil
}

// Update edits description, severity or due date of an unfrozen issue.
func (s *IssueService) Update(ctx context.Context, actor Actor, id uint, in IssueUpdate) (*IssueView, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		issue, err := loadEditable(tx, actor, id)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if in.Description != nil {
			desc := strings.TrimSpace(*in.Description)
			if desc == "" {
				return ErrIssueRequired
			}
			updates["description"] = desc
		}
		if in.Severity != nil {
			if !in.Severity.Valid() {
				return ErrInvalidSeverity
			}
			updates["severity"] = *in.Severity
		}
		if in.DueDate != nil {
			due, err := parseDate(*in.DueDate)
			if err != nil {
				return ErrInvalidDueDate
			}
			if !isFutureDay(due, s.now()) {
				return ErrDueDateNotFuture
			}
			updates["due_date"] = due
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(issue).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, id)
}

// Delete removes an unfrozen issue.
func (s *IssueService) Delete(ctx context.Context, actor Actor, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		issue, err := loadEditable(tx, actor, id)
		if err != nil {
			return err
		}
		return tx.Delete(&models.Issue{}, issue.ID).Error
	})
}

// CorrectiveActionCounts returns the number of corrective actions for every
// requested issue in a single query. Ids without actions, and ids the actor
// cannot view, map to 0.
func (s *IssueService) CorrectiveActionCounts(ctx context.Context, actor Actor, ids []uint) (map[uint]int64, error) {
	db := s.db.WithContext(ctx)
	visible, err := visibleIssueIDs(db, actor, ids)
	if err != nil {
		return nil, err
	}
	counts, err := actionCounts(db, visible)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := counts[id]; !ok {
			counts[id] = 0
		}
	}
	return counts, nil
}

// visibleIssueIDs keeps the ids of existing issues whose audit the actor may
// view. Audits are checked once each.
func visibleIssueIDs(tx *gorm.DB, actor Actor, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var issues []models.Issue
	if err := tx.Where("id IN ?", ids).Find(&issues).Error; err != nil {
		return nil, err
	}
	allowed := make(map[uint]bool)
	visible := make([]uint, 0, len(issues))
	for i := range issues {
		audit, err := issueAudit(tx, &issues[i])
		if errors.Is(err, ErrAuditNotFound) || errors.Is(err, ErrFormNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ok, seen := allowed[audit.ID]
		if !seen {
			err := authorizeView(tx, actor, audit)
			switch {
			case err == nil:
				ok = true
			case errors.Is(err, ErrForbidden), errors.Is(err, ErrOutletNotFound):
				ok = false
			default:
				return nil, err
			}
			allowed[audit.ID] = ok
		}
		if ok {
			visible = append(visible, issues[i].ID)
		}
	}
	return visible, nil
}

// ListCorrectiveActions returns the actions recorded for an issue, oldest first.
func (s *IssueService) ListCorrectiveActions(ctx context.Context, actor Actor, issueID uint) ([]models.CorrectiveAction, error) {
	db := s.db.WithContext(ctx)
	issue, err := findIssue(db, issueID)
	if err != nil {
		return nil, err
	}
	audit, err := issueAudit(db, issue)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(db, actor, audit); err != nil {
		return nil, err
	}
	actions := []models.CorrectiveAction{}
	if err := db.Where("issue_id = ?", issue.ID).Order("created_at, id").Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

// AddCorrectiveAction records remediation by the outlet that owns the issue.
// From then on the issue is frozen for reviewers.
func (s *IssueService) AddCorrectiveAction(ctx context.Context, actor Actor, issueID uint, in CorrectiveActionInput) (*models.CorrectiveAction, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, ErrInvalidCorrectiveAction
	}
	action := &models.CorrectiveAction{
		IssueID:     issueID,
		Description: description,
		StatusID:    models.ActionStatusPending,
		CreatedBy:   actor.UserID,
	}
	if strings.TrimSpace(in.CompletionDate) != "" {
		completed, err := parseDate(in.CompletionDate)
		if err != nil {
			return nil, ErrInvalidDueDate
		}
		action.CompletionDate = &completed
		action.StatusID = models.ActionStatusCompleted
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		issue, err := findIssue(tx, issueID)
		if err != nil {
			return err
		}
		audit, err := issueAudit(tx, issue)
		if err != nil {
			return err
		}
		if !actor.ownsOutlet(audit.OutletID) {
			return ErrForbidden
		}
		if !issue.IsOpen() {
			return ErrIssueResolved
		}
		if err := tx.Create(action).Error; err != nil {
			return err
		}
		if issue.StatusID == models.IssueStatusOpen {
			return tx.Model(issue).Update("status_id", models.IssueStatusInProgress).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

// VerifyCorrectiveAction is the reviewer's sign-off on an action. Once every
// action of the issue is verified the issue is resolved.
func (s *IssueService) VerifyCorrectiveAction(ctx context.Context, actor Actor, actionID uint) (*VerifyResult, error) {
	now := s.now()
	result := &VerifyResult{}
	var outletID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var action models.CorrectiveAction
		if err := tx.First(&action, actionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCorrectiveActionNotFound
			}
			return err
		}
		if action.StatusID == models.ActionStatusVerified {
			return ErrActionVerified
		}
		issue, err := findIssue(tx, action.IssueID)
		if err != nil {
			return err
		}
		audit, err := issueAudit(tx, issue)
		if err != nil {
			return err
		}
		var outlet models.Outlet
		if err := tx.First(&outlet, audit.OutletID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if !actor.canReview(&outlet) {
			return ErrForbidden
		}
		outletID = audit.OutletID

		updates := map[string]interface{}{
			"status_id":         models.ActionStatusVerified,
			"verification_date": now,
			"verified_by":       actor.UserID,
		}
		if action.CompletionDate == nil {
			updates["completion_date"] = now
		}
		if err := tx.Model(&action).Updates(updates).Error; err != nil {
			return err
		}
		action.StatusID = models.ActionStatusVerified
		action.VerificationDate = &now
		action.VerifiedBy = &actor.UserID
		if action.CompletionDate == nil {
			action.CompletionDate = &now
		}

		var unverified int64
		if err := tx.Model(&models.CorrectiveAction{}).
			Where("issue_id = ? AND status_id <> ?", issue.ID, models.ActionStatusVerified).
			Count(&unverified).Error; err != nil {
			return err
		}
		if unverified == 0 {
			if err := tx.Model(issue).Update("status_id", models.IssueStatusResolved).Error; err != nil {
				return err
			}
			issue.StatusID = models.IssueStatusResolved
		}
		result.Action = &action
		result.IssueStatusID = issue.StatusID
		result.IssueStatus = models.IssueStatusName(issue.StatusID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyOutlet(outletID, models.NotificationTypeSuccess, "Corrective action verified",
		fmt.Sprintf("Corrective action #%d was verified; issue #%d is %s.", actionID, result.Action.IssueID, result.IssueStatus))
	return result, nil
}

// MarkOverdue flags open and in-progress issues whose due date has passed.
func (s *IssueService) MarkOverdue(ctx context.Context) ([]OverdueIssue, error) {
	today := dateOnly(s.now())
	var overdue []OverdueIssue
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table("issues").
			Select("issues.id AS issue_id, audits.outlet_id AS outlet_id, issues.severity, issues.description, issues.due_date").
			Joins("LEFT JOIN forms ON forms.id = issues.form_id").
			Joins("JOIN audits ON audits.id = COALESCE(issues.audit_id, forms.audit_id)").
			Where("issues.status_id IN ? AND issues.due_date < ?",
				[]uint{models.IssueStatusOpen, models.IssueStatusInProgress}, today).
			Order("issues.id").
			Scan(&overdue).Error; err != nil {
			return err
		}
		if len(overdue) == 0 {
			return nil
		}
		ids := make([]uint, 0, len(overdue))
		for _, o := range overdue {
			ids = append(ids, o.IssueID)
		}
		return tx.Model(&models.Issue{}).Where("id IN ?", ids).Update("status_id", models.IssueStatusOverdue).Error
	})
	if err != nil {
		return nil, err
	}

	if len(overdue) > 0 {
		logger.Log().WithField("count", len(overdue)).Info("issues marked overdue")
	}
	total, err := s.CountOverdue(ctx)
	if err == nil {
		metrics.SetOverdueIssues(float64(total))
	}
	return overdue, nil
}

// CountOverdue returns the number of issues currently flagged overdue.
func (s *IssueService) CountOverdue(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Issue{}).Where("status_id = ?", models.IssueStatusOverdue).Count(&n).Error
	return n, err
}
