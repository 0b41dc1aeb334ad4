package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nexuscomply/backend/internal/api/handlers"
	"github.com/nexuscomply/backend/internal/api/middleware"
	"github.com/nexuscomply/backend/internal/config"
	"github.com/nexuscomply/backend/internal/models"
	"github.com/nexuscomply/backend/internal/services"
)

// env is one outlet with its manager, an unrelated manager and an admin,
// wired to real services over an in-memory database.
type env struct {
	db           *gorm.DB
	svc          *services.Services
	admin        models.User
	manager      models.User
	otherManager models.User
	outletUser   models.User
	outlet       models.Outlet
	requirement  models.ComplianceRequirement
	template     models.FormTemplate
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := handlers.OpenTestDB(t)
	e := &env{db: db}

	e.admin = models.User{Email: "admin@nexus.test", Name: "Admin", Role: models.RoleAdmin, Enabled: true}
	e.manager = models.User{Email: "aisha@nexus.test", Name: "Aisha", Role: models.RoleManager, Enabled: true}
	e.otherManager = models.User{Email: "ben@nexus.test", Name: "Ben", Role: models.RoleManager, Enabled: true}
	for _, u := range []*models.User{&e.admin, &e.manager, &e.otherManager} {
		require.NoError(t, u.SetPassword("password123"))
		require.NoError(t, db.Create(u).Error)
	}
	e.outlet = models.Outlet{Name: "Kuala Lumpur Central", State: "Selangor", ManagerID: &e.manager.ID}
	require.NoError(t, db.Create(&e.outlet).Error)
	e.outletUser = models.User{Email: "klc@nexus.test", Name: "KLC", Role: models.RoleOutlet, OutletID: &e.outlet.ID, Enabled: true}
	require.NoError(t, e.outletUser.SetPassword("password123"))
	require.NoError(t, db.Create(&e.outletUser).Error)

	e.requirement = models.ComplianceRequirement{Title: "Monthly hygiene", Category: "Food Safety", Frequency: "monthly"}
	require.NoError(t, db.Create(&e.requirement).Error)
	e.template = models.FormTemplate{Name: "Kitchen", Structure: datatypes.JSONSlice[models.FieldDefinition]{
		{ID: "clean", Type: models.FieldCheckbox, Label: "Surfaces clean", Order: 1, Required: true},
	}}
	require.NoError(t, db.Create(&e.template).Error)

	cfg := config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour, ReportDir: t.TempDir(), ReportURLTTL: time.Hour}
	e.svc = services.New(db, cfg)
	return e
}

func (e *env) adminActor() services.Actor {
	return services.Actor{UserID: e.admin.ID, Role: models.RoleAdmin}
}

func (e *env) managerActor() services.Actor {
	return services.Actor{UserID: e.manager.ID, Role: models.RoleManager}
}

func (e *env) otherManagerActor() services.Actor {
	return services.Actor{UserID: e.otherManager.ID, Role: models.RoleManager}
}

func (e *env) outletActor() services.Actor {
	return services.Actor{UserID: e.outletUser.ID, Role: models.RoleOutlet, OutletID: &e.outlet.ID}
}

// as authenticates every request of the router as actor.
func as(actor services.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetActor(c, actor)
		c.Next()
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func today() string     { return time.Now().Format("2006-01-02") }
func nextWeek() string  { return time.Now().AddDate(0, 0, 7).Format("2006-01-02") }
func yesterday() string { return time.Now().AddDate(0, 0, -1).Format("2006-01-02") }

// pendingAudit creates an audit for the outlet, fills and submits its form
// and submits the audit.
func (e *env) pendingAudit(t *testing.T) (*models.Audit, models.Form) {
	t.Helper()
	ctx := t.Context()
	audit, err := e.svc.Audits.Create(ctx, e.outletActor(), services.CreateAuditInput{
		ComplianceRequirementID: e.requirement.ID,
		StartDate:               today(),
		FormTemplateIDs:         []uint{e.template.ID},
	})
	require.NoError(t, err)
	var form models.Form
	require.NoError(t, e.db.Where("audit_id = ?", audit.ID).First(&form).Error)
	_, err = e.svc.Forms.SaveContent(ctx, e.outletActor(), form.ID, map[string]interface{}{"clean": true})
	require.NoError(t, err)
	_, err = e.svc.Forms.Submit(ctx, e.outletActor(), form.ID)
	require.NoError(t, err)
	audit, err = e.svc.Audits.Submit(ctx, e.outletActor(), audit.ID)
	require.NoError(t, err)
	require.NoError(t, e.db.First(&form, form.ID).Error)
	return audit, form
}

func doRequest(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
