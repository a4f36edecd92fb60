package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"tenantdb/internal/database"
	"tenantdb/internal/models"
	apperrors "tenantdb/pkg/errors"
	"tenantdb/pkg/response"
	"tenantdb/pkg/secret"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingDirectory struct {
	tenants map[string]*models.Tenant
	calls   atomic.Int32
}

func (d *countingDirectory) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	d.calls.Add(1)
	if t, ok := d.tenants[id]; ok {
		return t, nil
	}
	return nil, apperrors.ErrTenantNotFound
}

func (d *countingDirectory) FindByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	d.calls.Add(1)
	for _, t := range d.tenants {
		for _, dm := range t.Domains {
			if dm.Domain == domain {
				return t, nil
			}
		}
	}
	return nil, apperrors.ErrTenantNotFound
}

func newTenantRouter(t *testing.T) (*gin.Engine, *countingDirectory, *database.Registry) {
	t.Helper()
	box, err := secret.NewBox("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	registry, err := database.NewRegistry(database.RegistryConfig{Driver: database.DriverSQLite}, box, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })

	dir := &countingDirectory{tenants: map[string]*models.Tenant{}}
	tm := NewTenantMiddleware(dir, registry, "X-Tenant-Id")

	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/probe", tm.InitializeTenancy(), func(c *gin.Context) {
		scope, ok := CurrentScope(c)
		if !ok {
			response.ServerError(c, "no scope")
			return
		}
		c.JSON(http.StatusOK, gin.H{"tenant_id": scope.TenantID()})
	})
	r.GET("/explode", tm.InitializeTenancy(), func(c *gin.Context) {
		panic("handler failure")
	})
	return r, dir, registry
}

func addTenant(t *testing.T, dir *countingDirectory, active bool, domain string) *models.Tenant {
	id := uuid.NewString()
	tenant := &models.Tenant{
		ID:       id,
		Status:   active,
		Database: models.TenantDatabase{Name: models.DatabaseNameFor(id), Host: t.TempDir()},
	}
	if domain != "" {
		tenant.Domains = []models.Domain{{Domain: domain, TenantID: id}}
	}
	dir.tenants[id] = tenant
	return tenant
}

func get(r http.Handler, path, tenant string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if tenant != "" {
		req.Header.Set("X-Tenant-Id", tenant)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestMissingTenantHeader(t *testing.T) {
	r, dir, registry := newTenantRouter(t)

	w := get(r, "/probe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Tenant ID is required", body["error"])
	assert.NotEmpty(t, body["message"])

	assert.Zero(t, dir.calls.Load())
	assert.Zero(t, registry.Len())
}

func TestUnknownAndInactiveTenants(t *testing.T) {
	r, dir, _ := newTenantRouter(t)
	inactive := addTenant(t, dir, false, "")

	for _, key := range []string{uuid.NewString(), "nowhere.test", inactive.ID} {
		w := get(r, "/probe", key)
		assert.Equal(t, http.StatusNotFound, w.Code, key)
		assert.Equal(t, "Invalid tenant", decode(t, w)["error"])
	}
}

func TestTenantConnectionFailure(t *testing.T) {
	r, dir, registry := newTenantRouter(t)
	broken := addTenant(t, dir, true, "")
	broken.Database.Name = "bad name"

	w := get(r, "/probe", broken.ID)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, apperrors.ErrTenantConnection.Message, decode(t, w)["error"])
	assert.Zero(t, registry.Len())
}

func TestTenantScopeIsBound(t *testing.T) {
	r, dir, registry := newTenantRouter(t)
	tenant := addTenant(t, dir, true, "acme.test")

	w := get(r, "/probe", tenant.ID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenant.ID, decode(t, w)["tenant_id"])

	w = get(r, "/probe", "acme.test")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenant.ID, decode(t, w)["tenant_id"])
	assert.Equal(t, 1, registry.Len())
}

func TestPanicStillDeactivates(t *testing.T) {
	r, dir, registry := newTenantRouter(t)
	tenant := addTenant(t, dir, true, "")

	w := get(r, "/explode", tenant.ID)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// the lease was released, so the idle connection can be swept
	assert.Equal(t, 1, registry.Len())
	require.NoError(t, registry.Close())
	assert.Zero(t, registry.Len())
}
