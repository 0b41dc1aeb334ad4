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

func issueRouter(e *env, actor services.Actor) *gin.Engine {
	h := handlers.NewIssueHandler(e.svc.Issues)
	r := gin.New()
	r.Use(as(actor))
	r.GET("/issues/corrective-actions-count", h.CorrectiveActionCounts)
	r.GET("/issues/:id", h.Get)
	r.PUT("/issues/:id", h.Update)
	r.DELETE("/issues/:id", h.Delete)
	r.GET("/issues/:id/corrective-actions", h.ListCorrectiveActions)
	r.POST("/issues/:id/corrective-actions", h.AddCorrectiveAction)
	r.POST("/corrective-actions/:id/verify", h.VerifyCorrectiveAction)
	return r
}

// rejectedIssue rejects the form of a pending audit and returns its issue.
func (e *env) rejectedIssue(t *testing.T) *models.Issue {
	t.Helper()
	_, form := e.pendingAudit(t)
	res, err := e.svc.Reviews.RejectWithIssue(t.Context(), e.managerActor(), models.EntityForm, form.ID, services.IssueInput{
		Description: "Fridge above 5C",
		Severity:    models.SeverityHigh,
		DueDate:     nextWeek(),
	})
	require.NoError(t, err)
	return res.Issue
}

func TestIssueHandler_GetAndUpdate(t *testing.T) {
	e := newEnv(t)
	issue := e.rejectedIssue(t)
	r := issueRouter(e, e.managerActor())

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/issues/%d", issue.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view services.IssueView
	decode(t, w, &view)
	assert.True(t, view.Editable)
	assert.Equal(t, "Open", view.Status)

	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/issues/%d", issue.ID), map[string]interface{}{"severity": "Extreme"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/issues/%d", issue.ID), map[string]interface{}{"due_date": yesterday()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/issues/%d", issue.ID), map[string]interface{}{"description": "Fridge at 8C"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &view)
	assert.Equal(t, "Fridge at 8C", view.Description)

	w = doJSON(t, issueRouter(e, e.otherManagerActor()), http.MethodGet, fmt.Sprintf("/issues/%d", issue.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(t, r, http.MethodGet, "/issues/999999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, r, http.MethodGet, "/issues/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssueHandler_CorrectiveActionLifecycle(t *testing.T) {
	e := newEnv(t)
	issue := e.rejectedIssue(t)
	outlet := issueRouter(e, e.outletActor())
	reviewer := issueRouter(e, e.managerActor())

	w := doJSON(t, outlet, http.MethodPost, fmt.Sprintf("/issues/%d/corrective-actions", issue.ID), map[string]interface{}{"description": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, outlet, http.MethodPost, fmt.Sprintf("/issues/%d/corrective-actions", issue.ID), map[string]interface{}{"description": "Replaced thermostat"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var action models.CorrectiveAction
	decode(t, w, &action)

	// frozen for reviewers from now on
	w = doJSON(t, reviewer, http.MethodPut, fmt.Sprintf("/issues/%d", issue.ID), map[string]interface{}{"description": "changed"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = doJSON(t, reviewer, http.MethodDelete, fmt.Sprintf("/issues/%d", issue.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, reviewer, http.MethodGet, fmt.Sprintf("/issues/corrective-actions-count?issueIds=%d,%d", issue.ID, issue.ID+100), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var counts map[string]int64
	decode(t, w, &counts)
	assert.Equal(t, int64(1), counts[fmt.Sprint(issue.ID)])
	assert.Equal(t, int64(0), counts[fmt.Sprint(issue.ID+100)])

	w = doJSON(t, issueRouter(e, e.otherManagerActor()), http.MethodGet, fmt.Sprintf("/issues/corrective-actions-count?issueIds=%d", issue.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	counts = nil
	decode(t, w, &counts)
	assert.Equal(t, map[string]int64{fmt.Sprint(issue.ID): 0}, counts)

	w = doJSON(t, outlet, http.MethodPost, fmt.Sprintf("/corrective-actions/%d/verify", action.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(t, reviewer, http.MethodPost, fmt.Sprintf("/corrective-actions/%d/verify", action.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result services.VerifyResult
	decode(t, w, &result)
	assert.Equal(t, models.IssueStatusResolved, result.IssueStatusID)

	w = doJSON(t, reviewer, http.MethodPost, fmt.Sprintf("/corrective-actions/%d/verify", action.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, outlet, http.MethodGet, fmt.Sprintf("/issues/%d/corrective-actions", issue.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var actions []models.CorrectiveAction
	decode(t, w, &actions)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionStatusVerified, actions[0].StatusID)
}

func TestIssueHandler_CountsRejectsBadIDs(t *testing.T) {
	e := newEnv(t)
	r := issueRouter(e, e.adminActor())

	w := doJSON(t, r, http.MethodGet, "/issues/corrective-actions-count?issueIds=1,abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/issues/corrective-actions-count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
}

func TestIssueHandler_Delete(t *testing.T) {
	e := newEnv(t)
	issue := e.rejectedIssue(t)
	r := issueRouter(e, e.adminActor())

	w := doJSON(t, r, http.MethodDelete, fmt.Sprintf("/issues/%d", issue.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/issues/%d", issue.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
