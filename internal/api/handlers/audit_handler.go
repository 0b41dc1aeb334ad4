package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nexuscomply/backend/internal/services"
)

type AuditHandler struct {
	audits  *services.AuditService
	reviews *services.ReviewService
}

func NewAuditHandler(audits *services.AuditService, reviews *services.ReviewService) *AuditHandler {
	return &AuditHandler{audits: audits, reviews: reviews}
}

// optionalUint reads an optional numeric query parameter.
func optionalUint(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return nil, false
	}
	id := uint(v)
	return &id, true
}

// List returns one entry per audit group with its current status.
func (h *AuditHandler) List(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var filter services.AuditFilter
	if filter.OutletID, ok = optionalUint(c, "outlet_id"); !ok {
		return
	}
	if filter.StatusID, ok = optionalUint(c, "status_id"); !ok {
		return
	}
	if filter.ManagerID, ok = optionalUint(c, "manager_id"); !ok {
		return
	}
	groups, err := h.audits.List(c.Request.Context(), actor, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// authorized resolves :id and checks the caller may read that audit.
func (h *AuditHandler) authorized(c *gin.Context) (uint, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		return 0, false
	}
	id, ok := parseID(c, "id")
	if !ok {
		return 0, false
	}
	if err := h.audits.Authorize(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return 0, false
	}
	return id, true
}

func (h *AuditHandler) Details(c *gin.Context) {
	id, ok := h.authorized(c)
	if !ok {
		return
	}
	details, err := h.audits.GetDetails(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// History returns every version of the chain the audit belongs to.
func (h *AuditHandler) History(c *gin.Context) {
	id, ok := h.authorized(c)
	if !ok {
		return
	}
	history, err := h.audits.HistoryFor(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *AuditHandler) StatusHistory(c *gin.Context) {
	id, ok := h.authorized(c)
	if !ok {
		return
	}
	changes, err := h.audits.StatusHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, changes)
}

// RejectedFormsCheck tells the reviewer whether the audit may be rejected.
func (h *AuditHandler) RejectedFormsCheck(c *gin.Context) {
	id, ok := h.authorized(c)
	if !ok {
		return
	}
	n, err := h.audits.HasRejectedForms(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"has_rejected_forms": n > 0, "rejected_form_count": n})
}

// SetStatus applies a reviewer decision. Rejections carry the issue payload.
func (h *AuditHandler) SetStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.StatusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.reviews.SetAuditStatus(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AuditHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var in services.CreateAuditInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	audit, err := h.audits.Create(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, audit)
}

func (h *AuditHandler) Submit(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	audit, err := h.audits.Submit(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

// Revise opens the next version of a rejected audit.
func (h *AuditHandler) Revise(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	audit, err := h.audits.Revise(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, audit)
}
