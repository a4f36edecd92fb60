package services

import (
	"context"
	"testing"

	"tenantdb/internal/database"
	"tenantdb/internal/models"
	"tenantdb/internal/tenancy"
	"tenantdb/pkg/cache"
	"tenantdb/pkg/secret"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testKey = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	dir       string
	central   *gorm.DB
	box       *secret.Box
	registry  *database.Registry
	tenants   *TenantService
	provision *ProvisionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
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

	box, err := secret.NewBox(testKey)
	require.NoError(t, err)
	registry, err := database.NewRegistry(database.RegistryConfig{Driver: database.DriverSQLite}, box, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })

	tenants := NewTenantService(central, box)
	return &testEnv{
		dir:       dir,
		central:   central,
		box:       box,
		registry:  registry,
		tenants:   tenants,
		provision: NewProvisionService(central, tenants, registry, database.ConnParams{Driver: database.DriverSQLite, Host: dir}),
	}
}

func newTestStore(t *testing.T) (*cache.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisStoreWithClient(client, "test"), mr
}

// migratedTenant provisions a tenant with its schema and permissions.
func (e *testEnv) migratedTenant(t *testing.T, name string) *models.Tenant {
	t.Helper()
	report, err := e.provision.Provision(context.Background(),
		CreateTenantInput{Name: name, Email: "owner@" + name + ".test"},
		ProvisionOptions{Migrate: true, SeedPermissions: true})
	require.NoError(t, err)
	require.Empty(t, report.Failures())
	return report.Tenant
}

// scope activates tenantID for the rest of the test.
func (e *testEnv) scope(t *testing.T, tenantID string) *tenancy.Scope {
	t.Helper()
	m := tenancy.NewManager(e.tenants, e.registry)
	ctx, err := m.Activate(context.Background(), tenantID)
	require.NoError(t, err)
	t.Cleanup(m.Deactivate)
	return tenancy.MustFromContext(ctx)
}

func createCompany(t *testing.T, scope *tenancy.Scope, active bool) *models.Company {
	t.Helper()
	company := &models.Company{Name: "Acme", Email: "info@acme.test", Status: active}
	require.NoError(t, scope.DB.Create(company).Error)
	return company
}

func createUser(t *testing.T, scope *tenancy.Scope, companyID, email, password string, active bool) *models.User {
	t.Helper()
	user := &models.User{CompanyID: companyID, Name: "Jane", Email: email, Status: active}
	require.NoError(t, user.SetPassword(password))
	require.NoError(t, scope.DB.Create(user).Error)
	return user
}
