package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscomply/backend/internal/api/handlers"
	"github.com/nexuscomply/backend/internal/models"
	"github.com/nexuscomply/backend/internal/services"
)

func reviewerRouter(e *env, actor services.Actor) *gin.Engine {
	audits := handlers.NewAuditHandler(e.svc.Audits, e.svc.Reviews)
	forms := handlers.NewFormHandler(e.svc.Forms, e.svc.Reviews, e.svc.Issues)
	r := gin.New()
	r.Use(as(actor))
	r.GET("/audits", audits.List)
	r.GET("/audits/:id/details", audits.Details)
	r.GET("/audits/:id/history", audits.History)
	r.GET("/audits/:id/status-history", audits.StatusHistory)
	r.GET("/audits/:id/rejected-forms-check", audits.RejectedFormsCheck)
	r.POST("/audits/:id/status", audits.SetStatus)
	r.GET("/forms/:id/details", forms.Details)
	r.GET("/forms/:id/issues", forms.Issues)
	r.GET("/forms/:id/previous-issues", forms.PreviousIssues)
	r.POST("/forms/:id/status", forms.SetStatus)
	return r
}

func outletRouter(e *env) *gin.Engine {
	audits := handlers.NewAuditHandler(e.svc.Audits, e.svc.Reviews)
	forms := handlers.NewFormHandler(e.svc.Forms, e.svc.Reviews, e.svc.Issues)
	r := gin.New()
	r.Use(as(e.outletActor()))
	r.POST("/audits", audits.Create)
	r.POST("/audits/:id/submit", audits.Submit)
	r.POST("/audits/:id/revise", audits.Revise)
	r.PUT("/forms/:id/content", forms.SaveContent)
	r.POST("/forms/:id/submit", forms.Submit)
	return r
}

func TestAuditHandler_InvalidIDs(t *testing.T) {
	e := newEnv(t)
	r := reviewerRouter(e, e.adminActor())

	for _, path := range []string{"/audits/abc/details", "/audits/0/history", "/audits/-1/status-history", "/forms/x/details"} {
		w := doJSON(t, r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
	w := doJSON(t, r, http.MethodPost, "/audits/nope/status", map[string]interface{}{"status_id": models.StatusApproved})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditHandler_NotFoundAndForbidden(t *testing.T) {
	e := newEnv(t)
	audit, _ := e.pendingAudit(t)

	w := doJSON(t, reviewerRouter(e, e.adminActor()), http.MethodGet, "/audits/4242/details", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, reviewerRouter(e, e.otherManagerActor()), http.MethodGet, fmt.Sprintf("/audits/%d/details", audit.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuditHandler_RejectReviseFlow(t *testing.T) {
	e := newEnv(t)
	outlet := outletRouter(e)
	reviewer := reviewerRouter(e, e.managerActor())

	// outlet creates and submits
	w := doJSON(t, outlet, http.MethodPost, "/audits", map[string]interface{}{
		"compliance_requirement_id": e.requirement.ID,
		"start_date":                today(),
		"form_template_ids":         []uint{e.template.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var audit models.Audit
	decode(t, w, &audit)
	assert.Equal(t, 1, audit.AuditVersion)
	assert.Equal(t, audit.ID, audit.OriginalAuditID)

	var form models.Form
	require.NoError(t, e.db.Where("audit_id = ?", audit.ID).First(&form).Error)

	w = doJSON(t, outlet, http.MethodPut, fmt.Sprintf("/forms/%d/content", form.ID), map[string]interface{}{"content": map[string]interface{}{"bogus": 1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(t, outlet, http.MethodPut, fmt.Sprintf("/forms/%d/content", form.ID), map[string]interface{}{"content": map[string]interface{}{"clean": true}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(t, outlet, http.MethodPost, fmt.Sprintf("/forms/%d/submit", form.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(t, outlet, http.MethodPost, fmt.Sprintf("/audits/%d/submit", audit.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// audit cannot be rejected before a form is
	w = doJSON(t, reviewer, http.MethodGet, fmt.Sprintf("/audits/%d/rejected-forms-check", audit.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"has_rejected_forms":false`)
	w = doJSON(t, reviewer, http.MethodPost, fmt.Sprintf("/audits/%d/status", audit.ID), map[string]interface{}{
		"status_id": models.StatusRejected,
		"issue":     map[string]interface{}{"description": "Redo", "severity": "Low", "due_date": nextWeek()},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// form rejection without a complete issue writes nothing
	w = doJSON(t, reviewer, http.MethodPost, fmt.Sprintf("/forms/%d/status", form.ID), map[string]interface{}{
		"status_id": models.StatusRejected,
		"issue":     map[string]interface{}{"description": "Dirty", "severity": "High"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(t, reviewer, http.MethodPost, fmt.Sprintf("/forms/%d/status", form.ID), map[string]interface{}{
		"status_id": models.StatusRejected,
		"issue":     map[string]interface{}{"description": "Dirty", "severity": "High", "due_date": today()},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, reviewer, http.MethodPost, fmt.Sprintf("/forms/%d/status", form.ID), map[string]interface{}{
		"status_id": models.StatusRejected,
		"issue":     map[string]interface{}{"description": "Dirty", "severity": "High", "due_date": nextWeek()},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result services.StatusChangeResult
	decode(t, w, &result)
	assert.Equal(t, "Rejected", result.Status)
	require.NotNil(t, result.Issue)
	assert.Equal(t, models.IssueStatusOpen, result.Issue.StatusID)

	w = doJSON(t, reviewer, http.MethodPost, fmt.Sprintf("/audits/%d/status", audit.ID), map[string]interface{}{
		"status_id": models.StatusRejected,
		"issue":     map[string]interface{}{"description": "Redo kitchen", "severity": "Medium", "due_date": nextWeek()},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// outlet revises, creating version 2
	w = doJSON(t, outlet, http.MethodPost, fmt.Sprintf("/audits/%d/revise", audit.ID), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var next models.Audit
	decode(t, w, &next)
	assert.Equal(t, 2, next.AuditVersion)
	assert.Equal(t, audit.ID, next.OriginalAuditID)

	w = doJSON(t, reviewer, http.MethodGet, fmt.Sprintf("/audits/%d/history", next.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []services.HistoryEntry
	decode(t, w, &history)
	require.Len(t, history, 2)
	assert.False(t, history[0].IsCurrent)
	assert.True(t, history[1].IsCurrent)

	// the superseded version no longer accepts reviewer decisions
	w = doJSON(t, reviewer, http.MethodPost, fmt.Sprintf("/audits/%d/status", audit.ID), map[string]interface{}{"status_id": models.StatusApproved})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// the list shows one group with the current status
	w = doJSON(t, reviewer, http.MethodGet, "/audits", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var groups []services.AuditGroup
	decode(t, w, &groups)
	require.Len(t, groups, 1)
	assert.Equal(t, next.ID, groups[0].CurrentAuditID)
	assert.Equal(t, "Revising", groups[0].CurrentStatus)

	// previous issues of the revised form come from version 1
	var revisedForm models.Form
	require.NoError(t, e.db.Where("audit_id = ?", next.ID).First(&revisedForm).Error)
	w = doJSON(t, reviewer, http.MethodGet, fmt.Sprintf("/forms/%d/previous-issues", revisedForm.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var previous []services.IssueView
	decode(t, w, &previous)
	require.Len(t, previous, 1)
	assert.Equal(t, "Dirty", previous[0].Description)
	assert.False(t, previous[0].Editable)
}

func TestAuditHandler_StaleLockVersion(t *testing.T) {
	e := newEnv(t)
	_, form := e.pendingAudit(t)
	r := reviewerRouter(e, e.managerActor())

	stale := form.LockVersion
	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/forms/%d/status", form.ID), map[string]interface{}{
		"status_id":             models.StatusApproved,
		"expected_lock_version": stale,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/forms/%d/status", form.ID), map[string]interface{}{
		"status_id":             models.StatusPending,
		"expected_lock_version": stale,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuditHandler_InvalidStatus(t *testing.T) {
	e := newEnv(t)
	audit, _ := e.pendingAudit(t)
	r := reviewerRouter(e, e.adminActor())

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/audits/%d/status", audit.ID), map[string]interface{}{"status_id": models.StatusDraft})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/audits/%d/status-history", audit.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var changes []models.StatusChange
	decode(t, w, &changes)
	assert.Len(t, changes, 2)
}
