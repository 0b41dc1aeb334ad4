package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nexuscomply/backend/internal/database"
	"github.com/nexuscomply/backend/internal/models"
)

var testNow = time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// fixture is one outlet with its manager, an unrelated manager, an admin and
// two templates.
type fixture struct {
	db           *gorm.DB
	admin        models.User
	manager      models.User
	otherManager models.User
	outletUser   models.User
	outlet       models.Outlet
	requirement  models.ComplianceRequirement
	templates    []models.FormTemplate

	notifier *NotificationService
	audits   *AuditService
	forms    *FormService
	reviews  *ReviewService
	issues   *IssueService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	f := &fixture{db: db}

	f.admin = models.User{Email: "admin@nexus.test", Name: "Admin", Role: models.RoleAdmin, Enabled: true}
	f.manager = models.User{Email: "aisha@nexus.test", Name: "Aisha", Role: models.RoleManager, Enabled: true}
	f.otherManager = models.User{Email: "ben@nexus.test", Name: "Ben", Role: models.RoleManager, Enabled: true}
	for _, u := range []*models.User{&f.admin, &f.manager, &f.otherManager} {
		require.NoError(t, u.SetPassword("password123"))
		require.NoError(t, db.Create(u).Error)
	}

	f.outlet = models.Outlet{Name: "Kuala Lumpur Central", State: "Selangor", ManagerID: &f.manager.ID}
	require.NoError(t, db.Create(&f.outlet).Error)
	f.outletUser = models.User{Email: "klc@nexus.test", Name: "KLC", Role: models.RoleOutlet, OutletID: &f.outlet.ID, Enabled: true}
	require.NoError(t, f.outletUser.SetPassword("password123"))
	require.NoError(t, db.Create(&f.outletUser).Error)

	f.requirement = models.ComplianceRequirement{Title: "Monthly hygiene", Category: "Food Safety", Frequency: "monthly"}
	require.NoError(t, db.Create(&f.requirement).Error)

	f.templates = []models.FormTemplate{
		{Name: "Kitchen", Structure: datatypes.JSONSlice[models.FieldDefinition]{
			{ID: "clean", Type: models.FieldCheckbox, Label: "Surfaces clean", Order: 1, Required: true},
			{ID: "temp", Type: models.FieldNumber, Label: "Fridge temperature", Order: 2},
		}},
		{Name: "Storage", Structure: datatypes.JSONSlice[models.FieldDefinition]{
			{ID: "labelled", Type: models.FieldSelect, Label: "Labelled", Options: []string{"yes", "no"}, Order: 1, Required: true},
		}},
	}
	require.NoError(t, db.Create(&f.templates).Error)

	clock := func() time.Time { return testNow }
	f.notifier = NewNotificationService(db, nil)
	f.audits = NewAuditService(db, f.notifier)
	f.audits.now = clock
	f.forms = NewFormService(db)
	f.reviews = NewReviewService(db, f.notifier)
	f.reviews.now = clock
	f.issues = NewIssueService(db, f.notifier)
	f.issues.now = clock
	return f
}

func (f *fixture) adminActor() Actor   { return Actor{UserID: f.admin.ID, Role: models.RoleAdmin} }
func (f *fixture) managerActor() Actor { return Actor{UserID: f.manager.ID, Role: models.RoleManager} }
func (f *fixture) outletActor() Actor {
	return Actor{UserID: f.outletUser.ID, Role: models.RoleOutlet, OutletID: &f.outlet.ID}
}

func (f *fixture) templateIDs() []uint {
	ids := make([]uint, 0, len(f.templates))
	for _, t := range f.templates {
		ids = append(ids, t.ID)
	}
	return ids
}

var validContent = map[string]map[string]interface{}{
	"Kitchen": {"clean": true, "temp": 4.0},
	"Storage": {"labelled": "yes"},
}

// submittedAudit creates an audit, fills and submits every form and submits
// the audit, leaving it Pending for review.
func (f *fixture) submittedAudit(t *testing.T) *models.Audit {
	t.Helper()
	ctx := context.Background()
	audit, err := f.audits.Create(ctx, f.outletActor(), CreateAuditInput{
		ComplianceRequirementID: f.requirement.ID,
		StartDate:               "2026-10-01",
		FormTemplateIDs:         f.templateIDs(),
	})
	require.NoError(t, err)
	return f.submitForms(t, audit)
}

func (f *fixture) submitForms(t *testing.T, audit *models.Audit) *models.Audit {
	t.Helper()
	ctx := context.Background()
	var forms []models.Form
	require.NoError(t, f.db.Where("audit_id = ?", audit.ID).Order("id").Find(&forms).Error)
	for _, form := range forms {
		if form.StatusID != models.StatusDraft {
			continue
		}
		_, err := f.forms.SaveContent(ctx, f.outletActor(), form.ID, validContent[form.Name])
		require.NoError(t, err)
		_, err = f.forms.Submit(ctx, f.outletActor(), form.ID)
		require.NoError(t, err)
	}
	submitted, err := f.audits.Submit(ctx, f.outletActor(), audit.ID)
	require.NoError(t, err)
	return submitted
}

func (f *fixture) formsOf(t *testing.T, auditID uint) []models.Form {
	t.Helper()
	var forms []models.Form
	require.NoError(t, f.db.Where("audit_id = ?", auditID).Order("id").Find(&forms).Error)
	return forms
}

func validIssue() *IssueInput {
	return &IssueInput{Description: "Fridge above 5C", Severity: models.SeverityHigh, DueDate: testNow.AddDate(0, 0, 7).Format("2006-01-02")}
}

func uintPtr(v uint) *uint { return &v }
