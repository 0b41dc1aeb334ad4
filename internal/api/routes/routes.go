package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nexuscomply/backend/internal/api/handlers"
	"github.com/nexuscomply/backend/internal/api/middleware"
	"github.com/nexuscomply/backend/internal/metrics"
	"github.com/nexuscomply/backend/internal/models"
	"github.com/nexuscomply/backend/internal/services"
)

// Register wires up the versioned API, health and metrics endpoints.
func Register(router *gin.Engine, db *gorm.DB, svc *services.Services) {
	router.GET("/api/v1/health", handlers.HealthHandler(db))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api/v1")

	authHandler := handlers.NewAuthHandler(svc.Auth)
	auditHandler := handlers.NewAuditHandler(svc.Audits, svc.Reviews)
	formHandler := handlers.NewFormHandler(svc.Forms, svc.Reviews, svc.Issues)
	issueHandler := handlers.NewIssueHandler(svc.Issues)
	reportHandler := handlers.NewReportHandler(svc.Reports)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)

	api.POST("/auth/login", authHandler.Login)
	// The signed token is the credential for downloads.
	api.GET("/reports/download", reportHandler.Download)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(svc.Auth))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.GET("/notifications", notificationHandler.List)
		protected.POST("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.POST("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	registerReviewer(admin, auditHandler, formHandler, issueHandler, reportHandler)

	manager := protected.Group("/manager")
	manager.Use(middleware.RequireRole(models.RoleManager, models.RoleAdmin))
	registerReviewer(manager, auditHandler, formHandler, issueHandler, reportHandler)

	outlet := protected.Group("/outlet")
	outlet.Use(middleware.RequireRole(models.RoleOutlet))
	{
		outlet.GET("/audits", auditHandler.List)
		outlet.POST("/audits", auditHandler.Create)
		outlet.GET("/audits/:id/details", auditHandler.Details)
		outlet.GET("/audits/:id/history", auditHandler.History)
		outlet.POST("/audits/:id/submit", auditHandler.Submit)
		outlet.POST("/audits/:id/revise", auditHandler.Revise)

		outlet.GET("/forms/:id/details", formHandler.Details)
		outlet.GET("/forms/:id/issues", formHandler.Issues)
		outlet.GET("/forms/:id/previous-issues", formHandler.PreviousIssues)
		outlet.PUT("/forms/:id/content", formHandler.SaveContent)
		outlet.POST("/forms/:id/submit", formHandler.Submit)

		outlet.GET("/issues/:id/corrective-actions", issueHandler.ListCorrectiveActions)
		outlet.POST("/issues/:id/corrective-actions", issueHandler.AddCorrectiveAction)
	}
}

// registerReviewer mounts the review surface shared by admins and managers.
func registerReviewer(g *gin.RouterGroup, audits *handlers.AuditHandler, forms *handlers.FormHandler, issues *handlers.IssueHandler, reports *handlers.ReportHandler) {
	g.GET("/audits", audits.List)
	g.GET("/audits/:id/details", audits.Details)
	g.GET("/audits/:id/history", audits.History)
	g.GET("/audits/:id/status-history", audits.StatusHistory)
	g.GET("/audits/:id/rejected-forms-check", audits.RejectedFormsCheck)
	g.POST("/audits/:id/status", audits.SetStatus)

	g.GET("/forms/:id/details", forms.Details)
	g.GET("/forms/:id/issues", forms.Issues)
	g.GET("/forms/:id/previous-issues", forms.PreviousIssues)
	g.POST("/forms/:id/status", forms.SetStatus)

	g.GET("/issues/corrective-actions-count", issues.CorrectiveActionCounts)
	g.GET("/issues/:id", issues.Get)
	g.PUT("/issues/:id", issues.Update)
	g.DELETE("/issues/:id", issues.Delete)
	g.GET("/issues/:id/corrective-actions", issues.ListCorrectiveActions)
	g.POST("/corrective-actions/:id/verify", issues.VerifyCorrectiveAction)

	g.POST("/reports/data", reports.Data)
	g.POST("/reports/generate", reports.Generate)
}
