package main

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nexuscomply/backend/internal/config"
	"github.com/nexuscomply/backend/internal/database"
	"github.com/nexuscomply/backend/internal/logger"
	"github.com/nexuscomply/backend/internal/models"
	"github.com/nexuscomply/backend/internal/services"
)

const demoPassword = "changeme123"

func main() {
	logger.Init(false, nil)
	log := logger.Log()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("migrate database")
	}

	var existing int64
	db.Model(&models.User{}).Where("email = ?", "admin@nexuscomply.local").Count(&existing)
	if existing > 0 {
		log.Info("demo data already present, nothing to do")
		return
	}

	svc := services.New(db, cfg)
	if err := seed(context.Background(), db, svc, log); err != nil {
		log.WithError(err).Fatal("seed demo data")
	}
	log.WithField("password", demoPassword).Info("demo data seeded")
}

type outletSeed struct {
	name    string
	state   string
	manager int
	email   string
}

func seed(ctx context.Context, db *gorm.DB, svc *services.Services, log *logrus.Entry) error {
	admin := models.User{Email: "admin@nexuscomply.local", Name: "Administrator", Role: models.RoleAdmin, Enabled: true}
	managers := []models.User{
		{Email: "aisha@nexuscomply.local", Name: "Aisha Rahman", Role: models.RoleManager, Enabled: true},
		{Email: "daniel@nexuscomply.local", Name: "Daniel Tan", Role: models.RoleManager, Enabled: true},
	}
	for _, u := range append([]*models.User{&admin}, &managers[0], &managers[1]) {
		if err := u.SetPassword(demoPassword); err != nil {
			return err
		}
		if err := db.Create(u).Error; err != nil {
			return err
		}
	}

	requirements := []models.ComplianceRequirement{
		{Title: "Monthly Food Safety Inspection", Category: "Food Safety", Frequency: "monthly"},
		{Title: "Quarterly Fire Safety Check", Category: "Fire Safety", Frequency: "quarterly"},
	}
	if err := db.Create(&requirements).Error; err != nil {
		return err
	}

	templates := []models.FormTemplate{
		{Name: "Kitchen Hygiene", Structure: datatypes.JSONSlice[models.FieldDefinition]{
			{ID: "surfaces_clean", Type: models.FieldCheckbox, Label: "Food contact surfaces sanitised", Order: 1, Required: true},
			{ID: "chiller_temp", Type: models.FieldNumber, Label: "Chiller temperature (C)", Order: 2, Required: true},
			{ID: "notes", Type: models.FieldTextarea, Label: "Notes", Order: 3},
		}},
		{Name: "Storage & Labelling", Structure: datatypes.JSONSlice[models.FieldDefinition]{
			{ID: "labelled", Type: models.FieldSelect, Label: "All stock labelled", Options: []string{"yes", "partially", "no"}, Order: 1, Required: true},
			{ID: "fifo", Type: models.FieldRadio, Label: "FIFO followed", Options: []string{"yes", "no"}, Order: 2, Required: true},
		}},
	}
	if err := db.Create(&templates).Error; err != nil {
		return err
	}
	content := map[string]map[string]interface{}{
		"Kitchen Hygiene":     {"surfaces_clean": true, "chiller_temp": 4.0, "notes": "Checked at opening"},
		"Storage & Labelling": {"labelled": "yes", "fifo": "yes"},
	}

	outlets := []outletSeed{
		{name: "Kuala Lumpur Central", state: "Selangor", manager: 0, email: "klc@nexuscomply.local"},
		{name: "Penang Gurney", state: "Penang", manager: 1, email: "gurney@nexuscomply.local"},
		{name: "Johor Bahru City", state: "Johor", manager: 1, email: "jb@nexuscomply.local"},
	}

	start := time.Now().Format("2006-01-02")
	due := time.Now().AddDate(0, 0, 14).Format("2006-01-02")
	for i, o := range outlets {
		outlet := models.Outlet{Name: o.name, State: o.state, ManagerID: &managers[o.manager].ID}
		if err := db.Create(&outlet).Error; err != nil {
			return err
		}
		user := models.User{Email: o.email, Name: o.name, Role: models.RoleOutlet, OutletID: &outlet.ID, Enabled: true}
		if err := user.SetPassword(demoPassword); err != nil {
			return err
		}
		if err := db.Create(&user).Error; err != nil {
			return err
		}

		outletActor := services.Actor{UserID: user.ID, Role: models.RoleOutlet, OutletID: &outlet.ID}
		reviewer := services.Actor{UserID: managers[o.manager].ID, Role: models.RoleManager}

		audit, err := svc.Audits.Create(ctx, outletActor, services.CreateAuditInput{
			OutletID:                outlet.ID,
			ComplianceRequirementID: requirements[i%len(requirements)].ID,
			StartDate:               start,
			FormTemplateIDs:         []uint{templates[0].ID, templates[1].ID},
		})
		if err != nil {
			return err
		}
		if err := fillAndSubmit(ctx, db, svc, outletActor, audit.ID, content); err != nil {
			return err
		}

		var forms []models.Form
		if err := db.Where("audit_id = ?", audit.ID).Order("id").Find(&forms).Error; err != nil {
			return err
		}

		switch i {
		case 0:
			// Rejected once, revised and awaiting corrective action.
			res, err := svc.Reviews.RejectWithIssue(ctx, reviewer, models.EntityForm, forms[0].ID, services.IssueInput{
				Description: "Chiller running above 5C during inspection",
				Severity:    models.SeverityHigh,
				DueDate:     due,
			})
			if err != nil {
				return err
			}
			if _, err := svc.Reviews.RejectWithIssue(ctx, reviewer, models.EntityAudit, audit.ID, services.IssueInput{
				Description: "Kitchen hygiene form must be redone",
				Severity:    models.SeverityMedium,
				DueDate:     due,
			}); err != nil {
				return err
			}
			if _, err := svc.Issues.AddCorrectiveAction(ctx, outletActor, res.Issue.ID, services.CorrectiveActionInput{
				Description: "Chiller serviced and thermostat replaced",
			}); err != nil {
				return err
			}
			if _, err := svc.Audits.Revise(ctx, outletActor, audit.ID); err != nil {
				return err
			}
		case 1:
			for _, f := range forms {
				if _, err := svc.Reviews.SetFormStatus(ctx, reviewer, f.ID, services.StatusChangeRequest{StatusID: models.StatusApproved}); err != nil {
					return err
				}
			}
			if _, err := svc.Reviews.SetAuditStatus(ctx, reviewer, audit.ID, services.StatusChangeRequest{StatusID: models.StatusApproved}); err != nil {
				return err
			}
		}
		log.WithField("outlet", o.name).WithField("audit_id", audit.ID).Info("seeded outlet")
	}
	return nil
}

func fillAndSubmit(ctx context.Context, db *gorm.DB, svc *services.Services, actor services.Actor, auditID uint, content map[string]map[string]interface{}) error {
	var forms []models.Form
	if err := db.Where("audit_id = ?", auditID).Order("id").Find(&forms).Error; err != nil {
		return err
	}
	for _, f := range forms {
		values, ok := content[f.Name]
		if !ok {
			return errors.New("no demo content for form " + f.Name)
		}
		if _, err := svc.Forms.SaveContent(ctx, actor, f.ID, values); err != nil {
			return err
		}
		if _, err := svc.Forms.Submit(ctx, actor, f.ID); err != nil {
			return err
		}
	}
	_, err := svc.Audits.Submit(ctx, actor, auditID)
	return err
}
