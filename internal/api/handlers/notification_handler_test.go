package handlers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscomply/backend/internal/api/handlers"
	"github.com/nexuscomply/backend/internal/models"
)

func TestNotificationHandler_ListAndRead(t *testing.T) {
	e := newEnv(t)
	first, err := e.svc.Notifications.Create(&e.outlet.ID, nil, models.NotificationTypeInfo, "Form rejected", "Kitchen needs work")
	require.NoError(t, err)
	_, err = e.svc.Notifications.Create(&e.outlet.ID, nil, models.NotificationTypeInfo, "Audit rejected", "Please revise")
	require.NoError(t, err)
	_, err = e.svc.Notifications.Create(nil, &e.manager.ID, models.NotificationTypeInfo, "Audit submitted", "for the manager")
	require.NoError(t, err)

	h := handlers.NewNotificationHandler(e.svc.Notifications)
	r := gin.New()
	r.Use(as(e.outletActor()))
	r.GET("/notifications", h.List)
	r.POST("/notifications/:id/read", h.MarkAsRead)
	r.POST("/notifications/read-all", h.MarkAllAsRead)

	w := doJSON(t, r, http.MethodGet, "/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Notification
	decode(t, w, &list)
	assert.Len(t, list, 2, "managers' notifications are not visible to the outlet")

	w = doJSON(t, r, http.MethodPost, "/notifications/"+first.ID+"/read", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	assert.Len(t, list, 1)

	w = doJSON(t, r, http.MethodPost, "/notifications/does-not-exist/read", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodGet, "/notifications?unread=true", nil)
	decode(t, w, &list)
	assert.Empty(t, list)
}
