package services

import (
	"path/filepath"

	"gorm.io/gorm"

	"github.com/nexuscomply/backend/internal/config"
	"github.com/nexuscomply/backend/internal/report"
)

// Services bundles the application services sharing one database handle.
type Services struct {
	Audits        *AuditService
	Forms         *FormService
	Reviews       *ReviewService
	Issues        *IssueService
	Reports       *ReportService
	Notifications *NotificationService
	Auth          *AuthService
}

func New(db *gorm.DB, cfg config.Config) *Services {
	notifier := NewNotificationService(db, cfg.NotifyURLs)
	store := report.NewStore(filepath.Clean(cfg.ReportDir), cfg.JWTSecret, cfg.ReportURLTTL)
	return &Services{
		Audits:        NewAuditService(db, notifier),
		Forms:         NewFormService(db),
		Reviews:       NewReviewService(db, notifier),
		Issues:        NewIssueService(db, notifier),
		Reports:       NewReportService(db, report.NewGenerator(nil), store),
		Notifications: notifier,
		Auth:          NewAuthService(db, cfg),
	}
}
