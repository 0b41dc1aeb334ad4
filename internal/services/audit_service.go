package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nexuscomply/backend/internal/logger"
	"github.com/nexuscomply/backend/internal/metrics"
	"github.com/nexuscomply/backend/internal/models"
)

// AuditService owns the audit version chain: creation, submission, revision
// and history resolution.
type AuditService struct {
	db       *gorm.DB
	notifier *NotificationService
	now      func() time.Time
}

func NewAuditService(db *gorm.DB, notifier *NotificationService) *AuditService {
	return &AuditService{db: db, notifier: notifier, now: time.Now}
}

// CreateAuditInput starts a new compliance cycle for an outlet.
type CreateAuditInput struct {
	OutletID                uint   `json:"outlet_id"`
	ComplianceRequirementID uint   `json:"compliance_requirement_id"`
	StartDate               string `json:"start_date"`
	DueDate                 string `json:"due_date"`
	FormTemplateIDs         []uint `json:"form_template_ids"`
}

// FormSummary is the row shown for each form in audit details.
type FormSummary struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	FormTemplateID uint      `json:"form_template_id"`
	StatusID       uint      `json:"status_id"`
	Status         string    `json:"status"`
	LockVersion    int       `json:"lock_version"`
	IssueCount     int64     `json:"issue_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// VersionSummary is one entry of an audit's version chain.
type VersionSummary struct {
	AuditID        uint       `json:"audit_id"`
	AuditVersion   int        `json:"audit_version"`
	StatusID       uint       `json:"status_id"`
	Status         string     `json:"status"`
	SubmissionDate *time.Time `json:"submission_date,omitempty"`
	IsCurrent      bool       `json:"is_current"`
}

// AuditDetails is the payload of GET /{role}/audits/:id/details.
type AuditDetails struct {
	Audit                  *models.Audit    `json:"audit"`
	Status                 string           `json:"status"`
	CurrentStatus          string           `json:"current_status"`
	IsCurrentVersion       bool             `json:"is_current_version"`
	LatestVersion          int              `json:"latest_version"`
	LastActionDate         string           `json:"last_action_date"`
	ReviewerActionsAllowed bool             `json:"reviewer_actions_allowed"`
	Forms                  []FormSummary    `json:"forms"`
	Issues                 []models.Issue   `json:"issues"`
	Versions               []VersionSummary `json:"versions"`
}

// HistoryEntry is one audit version with the forms and issues recorded
// against that version only.
type HistoryEntry struct {
	Audit     models.Audit `json:"audit"`
	Status    string       `json:"status"`
	IsCurrent bool         `json:"is_current"`
}

// AuditFilter narrows List.
type AuditFilter struct {
	OutletID  *uint
	StatusID  *uint
	ManagerID *uint
}

// AuditGroup is one compliance obligation represented by its current version.
type AuditGroup struct {
	OriginalAuditID uint      `json:"original_audit_id"`
	CurrentAuditID  uint      `json:"current_audit_id"`
	CurrentVersion  int       `json:"current_version"`
	CurrentStatusID uint      `json:"current_status_id"`
	CurrentStatus   string    `json:"current_status"`
	OutletID        uint      `json:"outlet_id"`
	OutletName      string    `json:"outlet_name"`
	Requirement     string    `json:"compliance_requirement"`
	Category        string    `json:"category"`
	StartDate       time.Time `json:"start_date"`
	DueDate         time.Time `json:"due_date"`
	LastActionDate  string    `json:"last_action_date"`
}

// Create opens version 1 of a new audit with one draft form per template.
func (s *AuditService) Create(ctx context.Context, actor Actor, in CreateAuditInput) (*models.Audit, error) {
	if in.OutletID == 0 && actor.OutletID != nil {
		in.OutletID = *actor.OutletID
	}
	if in.OutletID == 0 || in.ComplianceRequirementID == 0 || len(in.FormTemplateIDs) == 0 {
		return nil, ErrInvalidAudit
	}
	if !actor.ownsOutlet(in.OutletID) {
		return nil, ErrForbidden
	}
	start, err := parseDate(in.StartDate)
	if err != nil {
		return nil, ErrInvalidAudit
	}
	due := start.AddDate(0, 1, 0)
	if in.DueDate != "" {
		if due, err = parseDate(in.DueDate); err != nil || due.Before(start) {
			return nil, ErrInvalidAudit
		}
	}

	var audit *models.Audit
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Outlet{}, in.OutletID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOutletNotFound
			}
			return err
		}
		if err := tx.First(&models.ComplianceRequirement{}, in.ComplianceRequirementID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidAudit
			}
			return err
		}

		templates, err := loadTemplates(tx, in.FormTemplateIDs)
		if err != nil {
			return err
		}

		audit = &models.Audit{
			AuditVersion:            1,
			OutletID:                in.OutletID,
			ComplianceRequirementID: in.ComplianceRequirementID,
			StatusID:                models.StatusDraft,
			StartDate:               start,
			DueDate:                 due,
		}
		if err := tx.Create(audit).Error; err != nil {
			return err
		}
		// Version 1 anchors the chain.
		if err := tx.Model(audit).Update("original_audit_id", audit.ID).Error; err != nil {
			return err
		}
		audit.OriginalAuditID = audit.ID

		forms := make([]models.Form, 0, len(templates))
		for _, t := range templates {
			forms = append(forms, models.Form{
				AuditID:        audit.ID,
				FormTemplateID: t.ID,
				Name:           t.Name,
				Structure:      t.Structure,
				Content:        datatypes.JSONMap{},
				StatusID:       models.StatusDraft,
			})
		}
		if err := tx.Create(&forms).Error; err != nil {
			return err
		}
		audit.Forms = forms
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log().WithField("audit_id", audit.ID).WithField("outlet_id", audit.OutletID).Info("audit created")
	return audit, nil
}

// loadTemplates returns the templates in the order the ids were given,
// ignoring duplicates.
func loadTemplates(tx *gorm.DB, ids []uint) ([]models.FormTemplate, error) {
	var found []models.FormTemplate
	if err := tx.Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.FormTemplate, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	seen := make(map[uint]bool, len(ids))
	ordered := make([]models.FormTemplate, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrFormTemplateNotFound, id)
		}
		ordered = append(ordered, t)
	}
	return ordered, nil
}

// GetByID loads one audit version with its outlet and requirement.
func (s *AuditService) GetByID(ctx context.Context, id uint) (*models.Audit, error) {
	return findAudit(s.db.WithContext(ctx).Preload("Outlet").Preload("ComplianceRequirement"), id)
}

// Authorize checks that actor may read the audit: admins always, managers for
// outlets they manage, outlet users for their own outlet.
func (s *AuditService) Authorize(ctx context.Context, actor Actor, auditID uint) error {
	db := s.db.WithContext(ctx)
	audit, err := findAudit(db, auditID)
	if err != nil {
		return err
	}
	return authorizeView(db, actor, audit)
}

func authorizeView(tx *gorm.DB, actor Actor, audit *models.Audit) error {
	if actor.Role == models.RoleAdmin || actor.ownsOutlet(audit.OutletID) {
		return nil
	}
	if actor.Role != models.RoleManager {
		return ErrForbidden
	}
	var outlet models.Outlet
	if err := tx.First(&outlet, audit.OutletID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOutletNotFound
		}
		return err
	}
	if !actor.canReview(&outlet) {
		return ErrForbidden
	}
	return nil
}

func findAudit(tx *gorm.DB, id uint) (*models.Audit, error) {
	var audit models.Audit
	if err := tx.First(&audit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuditNotFound
		}
		return nil, err
	}
	return &audit, nil
}

// latestVersion returns the highest audit_version in a chain, or 0 when the
// chain does not exist.
func latestVersion(tx *gorm.DB, originalAuditID uint) (int, error) {
	var v int
	err := tx.Model(&models.Audit{}).
		Where("original_audit_id = ?", originalAuditID).
		Select("COALESCE(MAX(audit_version), 0)").
		Scan(&v).Error
	return v, err
}

// isCurrent reports whether audit is the highest version of its chain.
func isCurrent(tx *gorm.DB, audit *models.Audit) (bool, error) {
	latest, err := latestVersion(tx, audit.OriginalAuditID)
	if err != nil {
		return false, err
	}
	return audit.AuditVersion == latest, nil
}

// currentVersionsOnly restricts an audits query to the highest version of
// every chain.
func currentVersionsOnly(db *gorm.DB) *gorm.DB {
	latest := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.Audit{}).
		Select("original_audit_id, MAX(audit_version) AS max_version").
		Group("original_audit_id")
	return db.Joins("JOIN (?) AS latest ON latest.original_audit_id = audits.original_audit_id AND latest.max_version = audits.audit_version", latest)
}

// GetDetails returns an audit version with its forms, audit-level issues and
// the summary of its version chain.
func (s *AuditService) GetDetails(ctx context.Context, id uint) (*AuditDetails, error) {
	db := s.db.WithContext(ctx)
	audit, err := findAudit(db.Preload("Outlet").Preload("ComplianceRequirement"), id)
	if err != nil {
		return nil, err
	}

	var forms []models.Form
	if err := db.Where("audit_id = ?", audit.ID).Order("id").Find(&forms).Error; err != nil {
		return nil, err
	}
	issueCounts, err := formIssueCounts(db, forms)
	if err != nil {
		return nil, err
	}

	var issues []models.Issue
	if err := db.Where("audit_id = ?", audit.ID).Order("created_at, id").Find(&issues).Error; err != nil {
		return nil, err
	}

	var chain []models.Audit
	if err := db.Select("id", "audit_version", "status_id", "submission_date").
		Where("original_audit_id = ?", audit.OriginalAuditID).
		Order("audit_version").
		Find(&chain).Error; err != nil {
		return nil, err
	}

	details := &AuditDetails{
		Audit:          audit,
		Status:         models.StatusName(audit.StatusID),
		LastActionDate: audit.LastActionDisplay(),
		Forms:          make([]FormSummary, 0, len(forms)),
		Issues:         issues,
		Versions:       make([]VersionSummary, 0, len(chain)),
	}
	if details.Issues == nil {
		details.Issues = []models.Issue{}
	}
	for _, f := range forms {
		details.Forms = append(details.Forms, FormSummary{
			ID:             f.ID,
			Name:           f.Name,
			FormTemplateID: f.FormTemplateID,
			StatusID:       f.StatusID,
			Status:         models.FormStatusName(f.StatusID),
			LockVersion:    f.LockVersion,
			IssueCount:     issueCounts[f.ID],
			UpdatedAt:      f.UpdatedAt,
		})
	}
	for i, v := range chain {
		last := i == len(chain)-1
		details.Versions = append(details.Versions, VersionSummary{
			AuditID:        v.ID,
			AuditVersion:   v.AuditVersion,
			StatusID:       v.StatusID,
			Status:         models.StatusName(v.StatusID),
			SubmissionDate: v.SubmissionDate,
			IsCurrent:      last,
		})
		if last {
			details.LatestVersion = v.AuditVersion
			details.CurrentStatus = models.StatusName(v.StatusID)
		}
	}
	details.IsCurrentVersion = details.LatestVersion == audit.AuditVersion
	details.ReviewerActionsAllowed = details.IsCurrentVersion && models.ReviewerEligible(audit.StatusID)
	return details, nil
}

func formIssueCounts(db *gorm.DB, forms []models.Form) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(forms))
	if len(forms) == 0 {
		return counts, nil
	}
	ids := make([]uint, 0, len(forms))
	for _, f := range forms {
		ids = append(ids, f.ID)
	}
	var rows []struct {
		FormID uint
		Total  int64
	}
	if err := db.Model(&models.Issue{}).
		Select("form_id, COUNT(*) AS total").
		Where("form_id IN ?", ids).
		Group("form_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.FormID] = r.Total
	}
	return counts, nil
}

// ResolveHistory returns every version of the chain in ascending order, each
// carrying only the forms and issues recorded against that version.
func (s *AuditService) ResolveHistory(ctx context.Context, originalAuditID uint) ([]HistoryEntry, error) {
	var audits []models.Audit
	err := s.db.WithContext(ctx).
		Where("original_audit_id = ?", originalAuditID).
		Order("audit_version").
		Preload("Forms", func(db *gorm.DB) *gorm.DB { return db.Order("forms.id") }).
		Preload("Forms.Issues", func(db *gorm.DB) *gorm.DB { return db.Order("issues.id") }).
		Preload("Issues", func(db *gorm.DB) *gorm.DB { return db.Order("issues.id") }).
		Find(&audits).Error
	if err != nil {
		return nil, err
	}
	if len(audits) == 0 {
		return nil, ErrAuditNotFound
	}

	entries := make([]HistoryEntry, 0, len(audits))
	for i, a := range audits {
		entries = append(entries, HistoryEntry{
			Audit:     a,
			Status:    models.StatusName(a.StatusID),
			IsCurrent: i == len(audits)-1,
		})
	}
	return entries, nil
}

// HistoryFor resolves the chain that the given audit version belongs to.
func (s *AuditService) HistoryFor(ctx context.Context, auditID uint) ([]HistoryEntry, error) {
	audit, err := findAudit(s.db.WithContext(ctx), auditID)
	if err != nil {
		return nil, err
	}
	return s.ResolveHistory(ctx, audit.OriginalAuditID)
}

// CurrentVersion returns the highest version of a chain.
func (s *AuditService) CurrentVersion(ctx context.Context, originalAuditID uint) (*models.Audit, error) {
	var audit models.Audit
	err := s.db.WithContext(ctx).
		Where("original_audit_id = ?", originalAuditID).
		Order("audit_version DESC").
		First(&audit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuditNotFound
		}
		return nil, err
	}
	return &audit, nil
}

// List returns one group per chain, represented by its current version.
// Managers only see outlets they manage; outlet users only their own outlet.
func (s *AuditService) List(ctx context.Context, actor Actor, filter AuditFilter) ([]AuditGroup, error) {
	q := currentVersionsOnly(s.db.WithContext(ctx).Model(&models.Audit{})).
		Select("audits.*").
		Preload("Outlet").
		Preload("ComplianceRequirement")

	if actor.Role == models.RoleOutlet {
		if actor.OutletID == nil {
			return []AuditGroup{}, nil
		}
		filter.OutletID = actor.OutletID
	}
	if scope := actor.managerScope(); scope != nil {
		filter.ManagerID = scope
	}
	if filter.OutletID != nil {
		q = q.Where("audits.outlet_id = ?", *filter.OutletID)
	}
	if filter.StatusID != nil {
		q = q.Where("audits.status_id = ?", *filter.StatusID)
	}
	if filter.ManagerID != nil {
		q = q.Joins("JOIN outlets ON outlets.id = audits.outlet_id").
			Where("outlets.manager_id = ?", *filter.ManagerID)
	}

	var audits []models.Audit
	if err := q.Order("audits.start_date DESC, audits.original_audit_id DESC").Find(&audits).Error; err != nil {
		return nil, err
	}

	groups := make([]AuditGroup, 0, len(audits))
	for _, a := range audits {
		g := AuditGroup{
			OriginalAuditID: a.OriginalAuditID,
			CurrentAuditID:  a.ID,
			CurrentVersion:  a.AuditVersion,
			CurrentStatusID: a.StatusID,
			CurrentStatus:   models.StatusName(a.StatusID),
			OutletID:        a.OutletID,
			StartDate:       a.StartDate,
			DueDate:         a.DueDate,
			LastActionDate:  a.LastActionDisplay(),
		}
		if a.Outlet != nil {
			g.OutletName = a.Outlet.Name
		}
		if a.ComplianceRequirement != nil {
			g.Requirement = a.ComplianceRequirement.Title
			g.Category = a.ComplianceRequirement.Category
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// HasRejectedForms counts the forms of an audit version that are Rejected.
func (s *AuditService) HasRejectedForms(ctx context.Context, auditID uint) (int64, error) {
	db := s.db.WithContext(ctx)
	if _, err := findAudit(db, auditID); err != nil {
		return 0, err
	}
	return countRejectedForms(db, auditID)
}

func countRejectedForms(tx *gorm.DB, auditID uint) (int64, error) {
	var n int64
	err := tx.Model(&models.Form{}).
		Where("audit_id = ? AND status_id = ?", auditID, models.StatusRejected).
		Count(&n).Error
	return n, err
}

// Submit hands a drafted or revised audit to reviewers. Every form must have
// been submitted first.
func (s *AuditService) Submit(ctx context.Context, actor Actor, auditID uint) (*models.Audit, error) {
	var audit *models.Audit
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if audit, err = findAudit(tx.Preload("Outlet"), auditID); err != nil {
			return err
		}
		if !actor.ownsOutlet(audit.OutletID) {
			return ErrForbidden
		}
		current, err := isCurrent(tx, audit)
		if err != nil {
			return err
		}
		if !current {
			return ErrNotCurrentVersion
		}
		if audit.StatusID != models.StatusDraft && audit.StatusID != models.StatusRevising {
			return ErrAuditNotSubmittable
		}

		var total, drafts int64
		if err := tx.Model(&models.Form{}).Where("audit_id = ?", audit.ID).Count(&total).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Form{}).Where("audit_id = ? AND status_id = ?", audit.ID, models.StatusDraft).Count(&drafts).Error; err != nil {
			return err
		}
		if total == 0 || drafts > 0 {
			return ErrAuditNotSubmittable
		}

		from := audit.StatusID
		res := tx.Model(&models.Audit{}).
			Where("id = ? AND lock_version = ?", audit.ID, audit.LockVersion).
			Updates(map[string]interface{}{
				"status_id":       models.StatusPending,
				"submitted_by":    actor.UserID,
				"submission_date": now,
				"lock_version":    gorm.Expr("lock_version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		audit.StatusID = models.StatusPending
		audit.SubmittedBy = &actor.UserID
		audit.SubmissionDate = &now
		audit.LockVersion++
		return recordStatusChange(tx, models.EntityAudit, audit.ID, from, models.StatusPending, actor.UserID, "")
	})
	if err != nil {
		return nil, err
	}

	metrics.IncStatusTransition(models.EntityAudit, models.StatusName(models.StatusPending))
	if s.notifier != nil && audit.Outlet != nil && audit.Outlet.ManagerID != nil {
		s.notifier.NotifyUser(*audit.Outlet.ManagerID, models.NotificationTypeInfo,
			"Audit submitted for review",
			fmt.Sprintf("%s submitted audit #%d (version %d).", audit.Outlet.Name, audit.OriginalAuditID, audit.AuditVersion))
	}
	return audit, nil
}

// Revise opens the next version of a rejected audit. Approved forms carry
// over as approved; every other form is copied back to draft with its content.
func (s *AuditService) Revise(ctx context.Context, actor Actor, auditID uint) (*models.Audit, error) {
	var next *models.Audit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, err := findAudit(tx, auditID)
		if err != nil {
			return err
		}
		if !actor.ownsOutlet(prev.OutletID) {
			return ErrForbidden
		}
		latest, err := latestVersion(tx, prev.OriginalAuditID)
		if err != nil {
			return err
		}
		if prev.AuditVersion != latest || prev.StatusID != models.StatusRejected {
			return ErrAuditNotRevisable
		}

		next = &models.Audit{
			OriginalAuditID:         prev.OriginalAuditID,
			AuditVersion:            latest + 1,
			OutletID:                prev.OutletID,
			ComplianceRequirementID: prev.ComplianceRequirementID,
			StatusID:                models.StatusRevising,
			StartDate:               prev.StartDate,
			DueDate:                 prev.DueDate,
		}
		if err := tx.Create(next).Error; err != nil {
			return err
		}

		var forms []models.Form
		if err := tx.Where("audit_id = ?", prev.ID).Order("id").Find(&forms).Error; err != nil {
			return err
		}
		copies := make([]models.Form, 0, len(forms))
		for _, f := range forms {
			status := models.StatusDraft
			if f.StatusID == models.StatusApproved {
				status = models.StatusApproved
			}
			content := datatypes.JSONMap{}
			for k, v := range f.Content {
				content[k] = v
			}
			copies = append(copies, models.Form{
				AuditID:        next.ID,
				FormTemplateID: f.FormTemplateID,
				Name:           f.Name,
				Structure:      f.Structure,
				Content:        content,
				StatusID:       status,
			})
		}
		if len(copies) > 0 {
			if err := tx.Create(&copies).Error; err != nil {
				return err
			}
		}
		next.Forms = copies
		return recordStatusChange(tx, models.EntityAudit, next.ID, prev.StatusID, models.StatusRevising, actor.UserID,
			fmt.Sprintf("revision of version %d", prev.AuditVersion))
	})
	if err != nil {
		return nil, err
	}

	metrics.IncStatusTransition(models.EntityAudit, models.StatusName(models.StatusRevising))
	logger.Log().WithField("original_audit_id", next.OriginalAuditID).
		WithField("audit_version", next.AuditVersion).
		Info("audit revision opened")
	return next, nil
}

// StatusHistory lists the transitions recorded for an audit version and its
// forms, oldest first.
func (s *AuditService) StatusHistory(ctx context.Context, auditID uint) ([]models.StatusChange, error) {
	db := s.db.WithContext(ctx)
	if _, err := findAudit(db, auditID); err != nil {
		return nil, err
	}
	var formIDs []uint
	if err := db.Model(&models.Form{}).Where("audit_id = ?", auditID).Pluck("id", &formIDs).Error; err != nil {
		return nil, err
	}

	q := db.Where("entity_type = ? AND entity_id = ?", models.EntityAudit, auditID)
	if len(formIDs) > 0 {
		q = q.Or("entity_type = ? AND entity_id IN ?", models.EntityForm, formIDs)
	}
	changes := []models.StatusChange{}
	if err := q.Order("created_at, id").Find(&changes).Error; err != nil {
		return nil, err
	}
	return changes, nil
}

func recordStatusChange(tx *gorm.DB, entityType string, entityID, from, to, actorID uint, reason string) error {
	return tx.Create(&models.StatusChange{
		EntityType:   entityType,
		EntityID:     entityID,
		FromStatusID: from,
		ToStatusID:   to,
		ActorID:      actorID,
		Reason:       reason,
	}).Error
}
