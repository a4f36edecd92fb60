package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tenantdb/internal/database"
	"tenantdb/internal/models"
	"tenantdb/internal/services"
	"tenantdb/internal/tenancy"
	"tenantdb/pkg/cache"
	"tenantdb/pkg/config"
	"tenantdb/pkg/jwt"
	"tenantdb/pkg/secret"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "X-Tenant-Id"

type fixture struct {
	router   *gin.Engine
	registry *database.Registry
	tenants  *services.TenantService
	provider *services.ProvisionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	dir := t.TempDir()

	central, err := database.Open(ctx, database.ConnParams{Driver: database.DriverSQLite, Host: dir, Name: "central"}, database.PoolConfig{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(central))
	require.NoError(t, database.SeedMasterPermissions(central))
	t.Cleanup(func() {
		if sqlDB, err := central.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	box, err := secret.NewBox("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	registry, err := database.NewRegistry(database.RegistryConfig{Driver: database.DriverSQLite}, box, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := cache.NewRedisStoreWithClient(client, "test")

	tenants := services.NewTenantService(central, box).WithCache(store, time.Minute)
	cfg := &config.Config{
		Tenancy: config.TenancyConfig{Header: header},
		CORS: config.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Content-Type", "Authorization"},
		},
	}

	router := SetupRouter(Dependencies{
		Config:    cfg,
		Central:   central,
		Registry:  registry,
		Tenants:   tenants,
		Auth:      services.NewAuthService(jwt.NewJWTManager("test-secret", "tenantdb", time.Hour, 24*time.Hour), store),
		Companies: services.NewCompanyService(),
	})
	return &fixture{
		router:   router,
		registry: registry,
		tenants:  tenants,
		provider: services.NewProvisionService(central, tenants, registry, database.ConnParams{Driver: database.DriverSQLite, Host: dir}),
	}
}

// tenant provisions a tenant with a default company and returns both ids.
func (f *fixture) tenant(t *testing.T, name, domain string) (string, string) {
	t.Helper()
	report, err := f.provider.Provision(context.Background(),
		services.CreateTenantInput{Name: name, Email: "owner@" + name + ".test", Domain: domain},
		services.ProvisionOptions{Migrate: true, SeedPermissions: true, CompanyName: name + " Inc", CompanyEmail: "info@" + name + ".test"})
	require.NoError(t, err)
	require.Empty(t, report.Failures())

	var companyID string
	f.inTenant(t, report.Tenant.ID, func(scope *tenancy.Scope) {
		var company models.Company
		require.NoError(t, scope.DB.First(&company).Error)
		companyID = company.ID
	})
	return report.Tenant.ID, companyID
}

func (f *fixture) inTenant(t *testing.T, tenantID string, fn func(scope *tenancy.Scope)) {
	t.Helper()
	err := tenancy.NewManager(f.tenants, f.registry).Run(context.Background(), tenantID,
		func(ctx context.Context, scope *tenancy.Scope) error {
			fn(scope)
			return nil
		})
	require.NoError(t, err)
}

func (f *fixture) user(t *testing.T, tenantID, companyID, email string) {
	t.Helper()
	f.inTenant(t, tenantID, func(scope *tenancy.Scope) {
		user := &models.User{CompanyID: companyID, Name: "Jane", Email: email, Status: true}
		require.NoError(t, user.SetPassword("password123"))
		require.NoError(t, scope.DB.Create(user).Error)
	})
}

func (f *fixture) do(t *testing.T, method, path, tenant, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set(header, tenant)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func (f *fixture) login(t *testing.T, tenant, email string) string {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/api/login", tenant, "", gin.H{"email": email, "password": "password123"})
	require.Equal(t, http.StatusOK, status, body)
	return body["access_token"].(string)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/health", "", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["tenant_connections"])
}

func TestTenantHeaderRequired(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/login", "", "", gin.H{"email": "a@b.test", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Tenant ID is required", body["error"])
	assert.Zero(t, f.registry.Len())
}

func TestUnknownTenant(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/login", "00000000-0000-0000-0000-000000000000", "", gin.H{"email": "a@b.test", "password": "x"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Invalid tenant", body["error"])
}

func TestInactiveTenant(t *testing.T) {
	f := newFixture(t)
	tenantID, _ := f.tenant(t, "acme", "")
	require.NoError(t, f.tenants.SetStatus(context.Background(), tenantID, false))

	status, body := f.do(t, http.MethodPost, "/api/login", tenantID, "", gin.H{"email": "a@b.test", "password": "x"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Invalid tenant", body["error"])
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	tenantID, companyID := f.tenant(t, "acme", "acme.test")
	f.user(t, tenantID, companyID, "jane@acme.test")

	status, body := f.do(t, http.MethodPost, "/api/login", tenantID, "", gin.H{"email": "jane@acme.test", "password": "password123"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, tenantID, body["tenant_id"])
	assert.Equal(t, companyID, body["company_id"])
	assert.NotEmpty(t, body["access_token"])

	// the domain resolves to the same tenant
	status, _ = f.do(t, http.MethodPost, "/api/login", "acme.test", "", gin.H{"email": "jane@acme.test", "password": "password123"})
	assert.Equal(t, http.StatusOK, status)

	status, body = f.do(t, http.MethodPost, "/api/login", tenantID, "", gin.H{"email": "jane@acme.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["error"])

	status, body = f.do(t, http.MethodPost, "/api/login", tenantID, "", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body["errors"], "email")
	assert.Contains(t, body["errors"], "password")
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	tenantID, companyID := f.tenant(t, "acme", "")

	input := gin.H{
		"name":                  "Joe",
		"email":                 "joe@acme.test",
		"password":              "password123",
		"password_confirmation": "password123",
		"company_id":            companyID,
	}
	status, body := f.do(t, http.MethodPost, "/api/register", tenantID, "", input)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, companyID, body["company_id"])

	status, body = f.do(t, http.MethodPost, "/api/register", tenantID, "", input)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body["errors"], "email")

	input["email"] = "other@acme.test"
	input["password_confirmation"] = "mismatch1"
	status, _ = f.do(t, http.MethodPost, "/api/register", tenantID, "", input)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestTokenIsBoundToTenant(t *testing.T) {
	f := newFixture(t)
	acme, acmeCompany := f.tenant(t, "acme", "")
	globex, globexCompany := f.tenant(t, "globex", "")
	f.user(t, acme, acmeCompany, "jane@acme.test")
	f.user(t, globex, globexCompany, "jane@globex.test")
	token := f.login(t, acme, "jane@acme.test")

	status, body := f.do(t, http.MethodGet, "/api/me", acme, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, acme, body["tenant_id"])

	status, _ = f.do(t, http.MethodGet, "/api/me", globex, token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = f.do(t, http.MethodGet, "/api/dashboard", globex, token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	tenantID, companyID := f.tenant(t, "acme", "")
	f.user(t, tenantID, companyID, "jane@acme.test")

	status, _ := f.do(t, http.MethodGet, "/api/me", tenantID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	token := f.login(t, tenantID, "jane@acme.test")
	status, body := f.do(t, http.MethodGet, "/api/me", tenantID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "jane@acme.test", body["user"].(map[string]interface{})["email"])
	assert.NotNil(t, body["company"])
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	tenantID, companyID := f.tenant(t, "acme", "")
	f.user(t, tenantID, companyID, "jane@acme.test")
	token := f.login(t, tenantID, "jane@acme.test")

	status, body := f.do(t, http.MethodGet, "/api/dashboard", tenantID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Welcome to acme Inc dashboard", body["message"])
	assert.Equal(t, tenantID, body["tenant_id"])

	f.inTenant(t, tenantID, func(scope *tenancy.Scope) {
		require.NoError(t, scope.DB.Model(&models.Company{}).Where("id = ?", companyID).Update("status", false).Error)
	})
	status, body = f.do(t, http.MethodGet, "/api/dashboard", tenantID, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Company not found or inactive", body["error"])
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	tenantID, companyID := f.tenant(t, "acme", "")
	f.user(t, tenantID, companyID, "jane@acme.test")
	token := f.login(t, tenantID, "jane@acme.test")

	status, body := f.do(t, http.MethodPost, "/api/logout", tenantID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Successfully logged out", body["message"])

	status, _ = f.do(t, http.MethodGet, "/api/me", tenantID, token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = f.do(t, http.MethodPost, "/api/refresh", tenantID, token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	tenantID, companyID := f.tenant(t, "acme", "")
	f.user(t, tenantID, companyID, "jane@acme.test")
	token := f.login(t, tenantID, "jane@acme.test")

	status, _ := f.do(t, http.MethodPost, "/api/refresh", tenantID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := f.do(t, http.MethodPost, "/api/refresh", tenantID, token, nil)
	require.Equal(t, http.StatusOK, status)
	fresh := body["access_token"].(string)
	assert.NotEqual(t, token, fresh)

	status, _ = f.do(t, http.MethodGet, "/api/me", tenantID, fresh, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodGet, "/api/me", tenantID, token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
