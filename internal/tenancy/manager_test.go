package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"tenantdb/internal/database"
	"tenantdb/internal/models"
	apperrors "tenantdb/pkg/errors"
	"tenantdb/pkg/secret"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDirectory struct {
	tenants map[string]*models.Tenant
	mu      sync.Mutex
}

func (d *memDirectory) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.tenants[id]; ok {
		return t, nil
	}
	return nil, apperrors.ErrTenantNotFound
}

func (d *memDirectory) FindByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tenants {
		if hasDomain(t, domain) {
			return t, nil
		}
	}
	return nil, apperrors.ErrTenantNotFound
}

type fixture struct {
	dir      *memDirectory
	registry *database.Registry
	path     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	box, err := secret.NewBox("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	registry, err := database.NewRegistry(database.RegistryConfig{Driver: database.DriverSQLite}, box, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })

	return &fixture{
		dir:      &memDirectory{tenants: map[string]*models.Tenant{}},
		registry: registry,
		path:     t.TempDir(),
	}
}

func (f *fixture) addTenant(active bool, domains ...string) *models.Tenant {
	id := uuid.NewString()
	tenant := &models.Tenant{
		ID:     id,
		Name:   "tenant " + id[:8],
		Status: active,
		Database: models.TenantDatabase{
			Name: models.DatabaseNameFor(id),
			Host: f.path,
		},
	}
	for _, d := range domains {
		tenant.Domains = append(tenant.Domains, models.Domain{Domain: d, TenantID: id})
	}
	f.dir.tenants[id] = tenant
	return tenant
}

func (f *fixture) manager() *Manager {
	return NewManager(f.dir, f.registry)
}

func TestActivateAndDeactivate(t *testing.T) {
	f := newFixture(t)
	tenant := f.addTenant(true)
	m := f.manager()
	assert.Equal(t, Inert, m.State())

	ctx, err := m.Activate(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, Active, m.State())

	scope, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, tenant.ID, scope.TenantID())
	assert.Same(t, scope, m.Current())
	require.NoError(t, scope.DB.Exec("CREATE TABLE probe (id INTEGER)").Error)

	m.Deactivate()
	assert.Equal(t, Inert, m.State())
	assert.Nil(t, m.Current())

	m.Deactivate()
	assert.Equal(t, Inert, m.State())
}

func TestActivateByDomain(t *testing.T) {
	f := newFixture(t)
	tenant := f.addTenant(true, "acme.example.com")
	m := f.manager()
	defer m.Deactivate()

	ctx, err := m.Activate(context.Background(), "ACME.example.com")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, MustFromContext(ctx).TenantID())
}

func TestActivateAcceptsNonCanonicalIDs(t *testing.T) {
	f := newFixture(t)
	tenant := f.addTenant(true)

	for _, key := range []string{
		strings.ToUpper(tenant.ID),
		"{" + tenant.ID + "}",
		"urn:uuid:" + tenant.ID,
	} {
		m := f.manager()
		ctx, err := m.Activate(context.Background(), key)
		require.NoError(t, err, key)
		assert.Equal(t, tenant.ID, MustFromContext(ctx).TenantID())

		// the same tenant in another spelling is not a different scope
		_, err = m.Activate(context.Background(), tenant.ID)
		assert.NoError(t, err, key)
		m.Deactivate()
	}
}

func TestActivateFailuresLeaveManagerInert(t *testing.T) {
	f := newFixture(t)
	inactive := f.addTenant(false)
	broken := f.addTenant(true)
	broken.Database.Name = "not a database name"

	tests := []struct {
		name string
		key  string
		want error
	}{
		{"empty key", " ", apperrors.ErrTenantRequired},
		{"unknown id", uuid.NewString(), apperrors.ErrTenantNotFound},
		{"unknown domain", "nowhere.test", apperrors.ErrTenantNotFound},
		{"inactive", inactive.ID, apperrors.ErrTenantInactive},
		{"connection", broken.ID, apperrors.ErrTenantConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := f.manager()
			ctx, err := m.Activate(context.Background(), tt.key)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, Inert, m.State())
			_, ok := FromContext(ctx)
			assert.False(t, ok)
		})
	}
}

func TestActivateCancelledContext(t *testing.T) {
	f := newFixture(t)
	tenant := f.addTenant(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := f.manager()
	_, err := m.Activate(ctx, tenant.ID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Inert, m.State())
	assert.Equal(t, 0, f.registry.Len())
}

func TestActivateWhileActive(t *testing.T) {
	f := newFixture(t)
	a := f.addTenant(true)
	b := f.addTenant(true)
	m := f.manager()
	defer m.Deactivate()

	_, err := m.Activate(context.Background(), a.ID)
	require.NoError(t, err)

	ctx, err := m.Activate(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, MustFromContext(ctx).TenantID())

	_, err = m.Activate(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrScopeBusy)
	assert.Equal(t, a.ID, m.Current().TenantID())
}

func TestRunDeactivatesOnError(t *testing.T) {
	f := newFixture(t)
	tenant := f.addTenant(true)
	m := f.manager()
	boom := errors.New("boom")

	err := m.Run(context.Background(), tenant.ID, func(ctx context.Context, scope *Scope) error {
		assert.Equal(t, Active, m.State())
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Inert, m.State())
}

func TestRunDeactivatesOnPanic(t *testing.T) {
	f := newFixture(t)
	tenant := f.addTenant(true)
	m := f.manager()

	assert.Panics(t, func() {
		_ = m.Run(context.Background(), tenant.ID, func(ctx context.Context, scope *Scope) error {
			panic("midway")
		})
	})
	assert.Equal(t, Inert, m.State())
	assert.Nil(t, m.Current())
}

func TestRunNestedKeepsOuterScope(t *testing.T) {
	f := newFixture(t)
	tenant := f.addTenant(true)
	m := f.manager()
	defer m.Deactivate()

	_, err := m.Activate(context.Background(), tenant.ID)
	require.NoError(t, err)
	require.NoError(t, m.Run(context.Background(), tenant.ID, func(ctx context.Context, scope *Scope) error {
		return nil
	}))
	assert.Equal(t, Active, m.State())
}

func TestConcurrentScopesAreIsolated(t *testing.T) {
	f := newFixture(t)
	tenants := []*models.Tenant{f.addTenant(true), f.addTenant(true)}

	for _, tenant := range tenants {
		require.NoError(t, f.manager().Run(context.Background(), tenant.ID, func(ctx context.Context, scope *Scope) error {
			if err := scope.DB.Exec("CREATE TABLE owner (tenant_id TEXT)").Error; err != nil {
				return err
			}
			return scope.DB.Exec("INSERT INTO owner (tenant_id) VALUES (?)", scope.TenantID()).Error
		}))
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		tenant := tenants[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := f.manager()
			err := m.Run(context.Background(), tenant.ID, func(ctx context.Context, scope *Scope) error {
				if scope.TenantID() != tenant.ID {
					return fmt.Errorf("bound to %s", scope.TenantID())
				}
				var owner string
				if err := scope.DB.Raw("SELECT tenant_id FROM owner").Scan(&owner).Error; err != nil {
					return err
				}
				if owner != tenant.ID {
					return fmt.Errorf("read data of %s", owner)
				}
				return nil
			})
			assert.NoError(t, err)
			assert.Equal(t, Inert, m.State())
		}()
	}
	wg.Wait()
}

func TestMustFromContextPanicsOutsideScope(t *testing.T) {
	assert.Panics(t, func() { MustFromContext(context.Background()) })
}
