package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/nexuscomply/backend/internal/logger"
	"github.com/nexuscomply/backend/internal/metrics"
	"github.com/nexuscomply/backend/internal/models"
	"github.com/nexuscomply/backend/internal/report"
)

// ReportService aggregates audit outcomes and renders compliance reports.
// It never mutates workflow state.
type ReportService struct {
	db        *gorm.DB
	generator *report.Generator
	store     *report.Store
	now       func() time.Time
}

func NewReportService(db *gorm.DB, generator *report.Generator, store *report.Store) *ReportService {
	return &ReportService{db: db, generator: generator, store: store, now: time.Now}
}

// GeneratedReport is a rendered document, plus its download link when it
// was persisted.
type GeneratedReport struct {
	Name      string
	Content   []byte
	Key       string
	Token     string
	ExpiresAt time.Time
}

func (s *ReportService) normalize(actor Actor, req report.Request) (report.Request, error) {
	if !actor.IsReviewer() {
		return req, ErrForbidden
	}
	if !req.Type.Valid() {
		return req, ErrUnknownReportType
	}
	if req.From.IsZero() || req.To.IsZero() || req.To.Before(req.From) {
		return req, ErrInvalidDateRange
	}
	req.From = dateOnly(req.From)
	req.To = dateOnly(req.To)
	if scope := actor.managerScope(); scope != nil {
		req.Filter.ManagerID = scope
	}
	return req, nil
}

// filtered applies the date range and filter to a query that already joins
// outlets and compliance_requirements.
func filtered(q *gorm.DB, req report.Request) *gorm.DB {
	q = q.Where("audits.start_date >= ? AND audits.start_date < ?", req.From, req.To.AddDate(0, 0, 1))
	f := req.Filter
	if f.State != "" {
		q = q.Where("outlets.state = ?", f.State)
	}
	if f.OutletID != nil {
		q = q.Where("audits.outlet_id = ?", *f.OutletID)
	}
	if f.ManagerID != nil {
		q = q.Where("outlets.manager_id = ?", *f.ManagerID)
	}
	if f.Category != "" {
		q = q.Where("compliance_requirements.category = ?", f.Category)
	}
	return q
}

func (s *ReportService) loadFacts(ctx context.Context, req report.Request) ([]report.AuditFact, error) {
	var facts []report.AuditFact
	q := currentVersionsOnly(s.db.WithContext(ctx).Table("audits")).
		Select(`audits.id AS audit_id, audits.original_audit_id, audits.outlet_id,
			COALESCE(outlets.name, '') AS outlet_name, COALESCE(outlets.state, '') AS state,
			outlets.manager_id, COALESCE(users.name, '') AS manager_name,
			COALESCE(compliance_requirements.category, '') AS category,
			audits.start_date, audits.status_id`).
		Joins("LEFT JOIN outlets ON outlets.id = audits.outlet_id").
		Joins("LEFT JOIN users ON users.id = outlets.manager_id").
		Joins("LEFT JOIN compliance_requirements ON compliance_requirements.id = audits.compliance_requirement_id")
	err := filtered(q, req).Order("audits.start_date, audits.id").Scan(&facts).Error
	return facts, err
}

// loadIssueStats counts issues raised on any version of the audit chains in
// range, per outlet, severity and status.
func (s *ReportService) loadIssueStats(ctx context.Context, req report.Request) ([]report.IssueStat, error) {
	var rows []struct {
		OutletID uint
		Severity string
		StatusID uint
		Total    int
	}
	q := s.db.WithContext(ctx).Table("issues").
		Select("audits.outlet_id, issues.severity, issues.status_id, COUNT(*) AS total").
		Joins("LEFT JOIN forms ON forms.id = issues.form_id").
		Joins("JOIN audits ON audits.id = COALESCE(issues.audit_id, forms.audit_id)").
		Joins("LEFT JOIN outlets ON outlets.id = audits.outlet_id").
		Joins("LEFT JOIN compliance_requirements ON compliance_requirements.id = audits.compliance_requirement_id")
	if err := filtered(q, req).Group("audits.outlet_id, issues.severity, issues.status_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	stats := make([]report.IssueStat, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, report.IssueStat{
			OutletID: r.OutletID,
			Severity: r.Severity,
			Open:     r.StatusID != models.IssueStatusResolved,
			Count:    r.Total,
		})
	}
	return stats, nil
}

// BuildData loads and aggregates the report dataset. An empty period yields
// Data with NoData set rather than an error.
func (s *ReportService) BuildData(ctx context.Context, actor Actor, req report.Request) (*report.Data, error) {
	req, err := s.normalize(actor, req)
	if err != nil {
		return nil, err
	}

	var (
		facts  []report.AuditFact
		issues []report.IssueStat
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		facts, err = s.loadFacts(gctx, req)
		return err
	})
	g.Go(func() error {
		var err error
		issues, err = s.loadIssueStats(gctx, req)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report.Aggregate(req, facts, issues, s.now()), nil
}

// Generate builds the PDF for req. With persist set the document is stored
// and a signed download token is returned alongside it.
func (s *ReportService) Generate(ctx context.Context, actor Actor, req report.Request, persist bool) (*GeneratedReport, error) {
	start := s.now()
	data, err := s.BuildData(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	if data.NoData {
		metrics.ObserveReport(string(req.Type), "no_data", s.now().Sub(start))
		return nil, report.ErrNoData
	}

	content, err := s.generator.Generate(ctx, data)
	if err != nil {
		metrics.ObserveReport(string(req.Type), "error", s.now().Sub(start))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger.Log().WithError(err).WithField("report_type", req.Type).Error("report generation failed")
		return nil, ErrReportGeneration
	}

	out := &GeneratedReport{Name: report.FileName(data.Type, data.GeneratedAt), Content: content}
	if persist {
		key, err := s.store.Save(out.Name, content)
		if err != nil {
			logger.Log().WithError(err).WithField("report_type", req.Type).Error("report storage failed")
			return nil, ErrReportGeneration
		}
		token, expires, err := s.store.SignedToken(key)
		if err != nil {
			return nil, err
		}
		out.Key, out.Token, out.ExpiresAt = key, token, expires
	}

	metrics.ObserveReport(string(req.Type), "ok", s.now().Sub(start))
	logger.Log().WithField("report_type", req.Type).WithField("rows", len(data.TableRows)).Info("report generated")
	return out, nil
}

// Resolve maps a download token to the stored file and its download name.
func (s *ReportService) Resolve(token string) (string, string, error) {
	return s.store.Resolve(token)
}
