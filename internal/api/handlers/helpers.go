package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nexuscomply/backend/internal/api/middleware"
	"github.com/nexuscomply/backend/internal/report"
	"github.com/nexuscomply/backend/internal/services"
)

// parseID reads a positive numeric path parameter. It writes a 400 and
// returns false when the value is missing or malformed.
func parseID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if raw == "" || err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// parseIDList parses a comma separated list such as "1,2,3".
func parseIDList(raw string) ([]uint, error) {
	ids := []uint{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil || id == 0 {
			return nil, errors.New("issueIds must be a comma separated list of ids")
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// actorFrom returns the authenticated caller or writes a 401.
func actorFrom(c *gin.Context) (services.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
	return actor, ok
}

var badRequestErrors = []error{
	services.ErrIssueRequired,
	services.ErrInvalidSeverity,
	services.ErrInvalidDueDate,
	services.ErrDueDateNotFuture,
	services.ErrInvalidStatus,
	services.ErrInvalidContent,
	services.ErrInvalidAudit,
	services.ErrInvalidCorrectiveAction,
	services.ErrUnknownReportType,
	services.ErrInvalidDateRange,
	report.ErrUnknownType,
}

var notFoundErrors = []error{
	services.ErrAuditNotFound,
	services.ErrFormNotFound,
	services.ErrIssueNotFound,
	services.ErrCorrectiveActionNotFound,
	services.ErrFormTemplateNotFound,
	services.ErrOutletNotFound,
	services.ErrNotificationNotFound,
	report.ErrReportNotFound,
}

var unprocessableErrors = []error{
	services.ErrNotEligible,
	services.ErrNotCurrentVersion,
	services.ErrNoRejectedForms,
	services.ErrIssueFrozen,
	services.ErrIssueNotCurrent,
	services.ErrIssueResolved,
	services.ErrActionVerified,
	services.ErrFormNotEditable,
	services.ErrAuditNotSubmittable,
	services.ErrAuditNotRevisable,
	report.ErrNoData,
}

func matches(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case matches(err, badRequestErrors):
		return http.StatusBadRequest
	case matches(err, notFoundErrors):
		return http.StatusNotFound
	case matches(err, unprocessableErrors):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken), errors.Is(err, report.ErrInvalidLink):
		return http.StatusUnauthorized
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": ...}. Unexpected errors are logged and
// hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		middleware.GetRequestLogger(c).WithError(err).Error("request failed")
		msg := "internal server error"
		if errors.Is(err, services.ErrReportGeneration) {
			msg = services.ErrReportGeneration.Error()
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
