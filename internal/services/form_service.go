package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nexuscomply/backend/internal/metrics"
	"github.com/nexuscomply/backend/internal/models"
)

// FormService serves form details to reviewers and lets outlets fill and
// submit drafts.
type FormService struct {
	db *gorm.DB
}

func NewFormService(db *gorm.DB) *FormService {
	return &FormService{db: db}
}

// FormDetails is the payload of GET /{role}/forms/:id/details.
type FormDetails struct {
	Form                   *models.Form             `json:"form"`
	Status                 string                   `json:"status"`
	Fields                 []models.FieldDefinition `json:"fields"`
	AuditID                uint                     `json:"audit_id"`
	OriginalAuditID        uint                     `json:"original_audit_id"`
	AuditVersion           int                      `json:"audit_version"`
	IsCurrentVersion       bool                     `json:"is_current_version"`
	Reviewable             bool                     `json:"reviewable"`
	ReviewerActionsAllowed bool                     `json:"reviewer_actions_allowed"`
}

func findForm(tx *gorm.DB, id uint) (*models.Form, error) {
	var form models.Form
	if err := tx.First(&form, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	return &form, nil
}

// GetDetails returns a form with its ordered structure. Draft forms carry no
// reviewable content, so their content is withheld from reviewers.
func (s *FormService) GetDetails(ctx context.Context, actor Actor, id uint) (*FormDetails, error) {
	db := s.db.WithContext(ctx)
	form, err := findForm(db, id)
	if err != nil {
		return nil, err
	}
	audit, err := findAudit(db, form.AuditID)
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

	reviewable := form.StatusID != models.StatusDraft
	if !reviewable && actor.IsReviewer() {
		form.Content = datatypes.JSONMap{}
	}
	return &FormDetails{
		Form:                   form,
		Status:                 models.FormStatusName(form.StatusID),
		Fields:                 form.OrderedFields(),
		AuditID:                audit.ID,
		OriginalAuditID:        audit.OriginalAuditID,
		AuditVersion:           audit.AuditVersion,
		IsCurrentVersion:       current,
		Reviewable:             reviewable,
		ReviewerActionsAllowed: current && models.ReviewerEligible(form.StatusID),
	}, nil
}

// loadOwnedDraft loads a form the outlet may still edit.
func loadOwnedDraft(tx *gorm.DB, actor Actor, formID uint) (*models.Form, *models.Audit, error) {
	form, err := findForm(tx, formID)
	if err != nil {
		return nil, nil, err
	}
	audit, err := findAudit(tx, form.AuditID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.ownsOutlet(audit.OutletID) {
		return nil, nil, ErrForbidden
	}
	current, err := isCurrent(tx, audit)
	if err != nil {
		return nil, nil, err
	}
	if !current {
		return nil, nil, ErrNotCurrentVersion
	}
	if form.StatusID != models.StatusDraft {
		return nil, nil, ErrFormNotEditable
	}
	return form, audit, nil
}

// SaveContent replaces the content of a draft form. Keys must be field ids of
// the form's structure.
func (s *FormService) SaveContent(ctx context.Context, actor Actor, formID uint, content map[string]interface{}) (*models.Form, error) {
	var form *models.Form
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if form, _, err = loadOwnedDraft(tx, actor, formID); err != nil {
			return err
		}
		if unknown := models.UnknownContentKeys(form.Structure, content); len(unknown) > 0 {
			return fmt.Errorf("%w: unknown fields %s", ErrInvalidContent, strings.Join(unknown, ", "))
		}

		newContent := datatypes.JSONMap(content)
		if newContent == nil {
			newContent = datatypes.JSONMap{}
		}
		res := tx.Model(&models.Form{}).
			Where("id = ? AND lock_version = ?", form.ID, form.LockVersion).
			Updates(map[string]interface{}{
				"content":      newContent,
				"lock_version": gorm.Expr("lock_version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		form.Content = newContent
		form.LockVersion++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return form, nil
}

// Submit validates a draft form against its structure and moves it to
// Pending.
func (s *FormService) Submit(ctx context.Context, actor Actor, formID uint) (*models.Form, error) {
	var form *models.Form
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if form, _, err = loadOwnedDraft(tx, actor, formID); err != nil {
			return err
		}
		if err := validateContent(form); err != nil {
			return err
		}

		res := tx.Model(&models.Form{}).
			Where("id = ? AND lock_version = ?", form.ID, form.LockVersion).
			Updates(map[string]interface{}{
				"status_id":    models.StatusPending,
				"lock_version": gorm.Expr("lock_version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		from := form.StatusID
		form.StatusID = models.StatusPending
		form.LockVersion++
		return recordStatusChange(tx, models.EntityForm, form.ID, from, models.StatusPending, actor.UserID, "")
	})
	if err != nil {
		return nil, err
	}
	metrics.IncStatusTransition(models.EntityForm, models.StatusName(models.StatusPending))
	return form, nil
}

func validateContent(form *models.Form) error {
	if unknown := models.UnknownContentKeys(form.Structure, form.Content); len(unknown) > 0 {
		return fmt.Errorf("%w: unknown fields %s", ErrInvalidContent, strings.Join(unknown, ", "))
	}
	for _, field := range form.OrderedFields() {
		value, present := form.Content[field.ID]
		if err := models.ValidateField(field, value, present); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidContent, err)
		}
	}
	return nil
}
