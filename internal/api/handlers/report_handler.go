package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nexuscomply/backend/internal/api/middleware"
	"github.com/nexuscomply/backend/internal/report"
	"github.com/nexuscomply/backend/internal/services"
)

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// reportBody is the request body of the report endpoints. Dates are
// YYYY-MM-DD and inclusive.
type reportBody struct {
	ReportType string        `json:"report_type" binding:"required"`
	From       string        `json:"from"`
	To         string        `json:"to"`
	Filter     report.Filter `json:"filter"`
}

func parseDay(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}

// bindReport reads the body into a report.Request. It writes a 400 on
// malformed input.
func bindReport(c *gin.Context) (report.Request, bool) {
	var body reportBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return report.Request{}, false
	}
	from, err := parseDay(body.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be a date (YYYY-MM-DD)"})
		return report.Request{}, false
	}
	to, err := parseDay(body.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be a date (YYYY-MM-DD)"})
		return report.Request{}, false
	}
	return report.Request{Type: report.Type(body.ReportType), From: from, To: to, Filter: body.Filter}, true
}

// Data returns the aggregated report data without rendering it.
func (h *ReportHandler) Data(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	req, ok := bindReport(c)
	if !ok {
		return
	}
	data, err := h.reports.BuildData(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Generate renders the PDF. With ?store=true the document is kept on disk and
// a time-limited download link is returned instead of the bytes.
func (h *ReportHandler) Generate(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	req, ok := bindReport(c)
	if !ok {
		return
	}
	persist := c.Query("store") == "true"
	out, err := h.reports.Generate(c.Request.Context(), actor, req, persist)
	if err != nil {
		respondError(c, err)
		return
	}
	if persist {
		c.JSON(http.StatusCreated, gin.H{
			"name":         out.Name,
			"download_url": "/api/v1/reports/download?token=" + url.QueryEscape(out.Token),
			"expires_at":   out.ExpiresAt,
		})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+out.Name+`"`)
	c.Data(http.StatusOK, "application/pdf", out.Content)
}

// Download serves a stored report to anyone holding a valid link.
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	path, name, err := h.reports.Resolve(token)
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).Info("report download refused")
		respondError(c, err)
		return
	}
	c.FileAttachment(path, name)
}
