package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"tenantdb/internal/database"
	"tenantdb/internal/models"
	apperrors "tenantdb/pkg/errors"
	"tenantdb/pkg/logger"

	"github.com/google/uuid"
)

// ErrScopeBusy is returned when a manager that is not inert is asked to
// bind another tenant.
var ErrScopeBusy = errors.New("tenancy: manager is bound to another tenant")

// Directory looks tenants up in the central database.
type Directory interface {
	FindByID(ctx context.Context, id string) (*models.Tenant, error)
	FindByDomain(ctx context.Context, domain string) (*models.Tenant, error)
}

// ConnectionSource hands out leases on tenant databases.
type ConnectionSource interface {
	Acquire(ctx context.Context, tenant *models.Tenant) (*database.Lease, error)
}

// Manager binds one execution (a request or a CLI step) to one tenant at a
// time. It is not shared between executions; create one per execution.
type Manager struct {
	dir   Directory
	conns ConnectionSource

	mu    sync.Mutex
	state State
	scope *Scope
	lease *database.Lease
}

// NewManager returns an inert manager resolving tenants through dir and
// leasing their databases from conns.
func NewManager(dir Directory, conns ConnectionSource) *Manager {
	return &Manager{dir: dir, conns: conns}
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the active scope, or nil when not active.
func (m *Manager) Current() *Scope {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Active {
		return nil
	}
	return m.scope
}

// Activate resolves key (a tenant id or one of its domains), leases the
// tenant database and returns ctx carrying the new scope. Activating the
// tenant that is already active returns the existing scope. On any failure
// the manager is left inert.
func (m *Manager) Activate(ctx context.Context, key string) (context.Context, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return ctx, apperrors.ErrTenantRequired
	}

	m.mu.Lock()
	switch m.state {
	case Inert:
	case Active:
		scope := m.scope
		m.mu.Unlock()
		if scope.Tenant.ID == canonicalID(key) || hasDomain(scope.Tenant, key) {
			return WithScope(ctx, scope), nil
		}
		return ctx, ErrScopeBusy
	default:
		m.mu.Unlock()
		return ctx, ErrScopeBusy
	}
	m.state = Activating
	m.mu.Unlock()

	scope, lease, err := m.bind(ctx, key)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = Inert
		return ctx, err
	}
	m.scope = scope
	m.lease = lease
	m.state = Active
	logger.WithTenant(scope.Tenant.ID).Debug("Tenancy activated")
	return WithScope(ctx, scope), nil
}

func (m *Manager) bind(ctx context.Context, key string) (*Scope, *database.Lease, error) {
	tenant, err := m.lookup(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if !tenant.IsActive() {
		return nil, nil, apperrors.ErrTenantInactive
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrTenantConnection, err)
	}

	lease, err := m.conns.Acquire(ctx, tenant)
	if err != nil {
		return nil, nil, err
	}
	return &Scope{Tenant: tenant, DB: lease.DB().WithContext(ctx)}, lease, nil
}

func (m *Manager) lookup(ctx context.Context, key string) (*models.Tenant, error) {
	if id, err := uuid.Parse(key); err == nil {
		// ids are stored in canonical lowercase form
		return m.dir.FindByID(ctx, id.String())
	}
	return m.dir.FindByDomain(ctx, strings.ToLower(key))
}

// Deactivate releases the tenant database and returns the manager to inert.
// It is safe to call in any state and more than once.
func (m *Manager) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Inert {
		return
	}

	m.state = Deactivating
	if m.lease != nil {
		m.lease.Release()
	}
	if m.scope != nil {
		logger.WithTenant(m.scope.Tenant.ID).Debug("Tenancy deactivated")
	}
	m.lease = nil
	m.scope = nil
	m.state = Inert
}

// Run executes fn inside key's scope and always deactivates afterwards, also
// when fn fails or panics. A scope that was already active is left active.
func (m *Manager) Run(ctx context.Context, key string, fn func(ctx context.Context, scope *Scope) error) error {
	nested := m.State() == Active
	scoped, err := m.Activate(ctx, key)
	if err != nil {
		return err
	}
	if !nested {
		defer m.Deactivate()
	}

	scope, _ := FromContext(scoped)
	if err := fn(scoped, scope); err != nil {
		return fmt.Errorf("tenant %s: %w", scope.Tenant.ID, err)
	}
	return nil
}

func canonicalID(key string) string {
	if id, err := uuid.Parse(key); err == nil {
		return id.String()
	}
	return key
}

func hasDomain(t *models.Tenant, domain string) bool {
	for _, d := range t.Domains {
		if strings.EqualFold(d.Domain, domain) {
			return true
		}
	}
	return false
}
