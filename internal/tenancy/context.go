package tenancy

import (
	"context"

	"tenantdb/internal/models"

	"gorm.io/gorm"
)

// Scope is the tenant binding of one execution. DB is already bound to the
// tenant database and to the execution's context.
type Scope struct {
	Tenant *models.Tenant
	DB     *gorm.DB
}

// TenantID returns the id of the bound tenant.
func (s *Scope) TenantID() string {
	return s.Tenant.ID
}

type scopeKey struct{}

// WithScope returns a copy of ctx carrying scope.
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// FromContext returns the scope carried by ctx, if any.
func FromContext(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(*Scope)
	return scope, ok && scope != nil
}

// MustFromContext is FromContext for code that only runs inside an active
// scope. It panics otherwise.
func MustFromContext(ctx context.Context) *Scope {
	scope, ok := FromContext(ctx)
	if !ok {
		panic("tenancy: no tenant scope in context")
	}
	return scope
}
