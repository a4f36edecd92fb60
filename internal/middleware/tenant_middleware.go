package middleware

import (
	"strings"

	"tenantdb/internal/tenancy"
	"tenantdb/pkg/errors"
	"tenantdb/pkg/response"

	"github.com/gin-gonic/gin"
)

const tenantIDKey = "tenant_id"

// TenantMiddleware binds every request to the tenant named in its header.
type TenantMiddleware struct {
	dir    tenancy.Directory
	conns  tenancy.ConnectionSource
	header string
}

// NewTenantMiddleware reads the tenant key from header, "X-Tenant-Id" when empty.
func NewTenantMiddleware(dir tenancy.Directory, conns tenancy.ConnectionSource, header string) *TenantMiddleware {
	if header == "" {
		header = "X-Tenant-Id"
	}
	return &TenantMiddleware{dir: dir, conns: conns, header: header}
}

// InitializeTenancy rejects requests without the tenant header before any
// database access, activates the tenant for the rest of the chain and
// deactivates it once the chain returns, also after a panic.
func (m *TenantMiddleware) InitializeTenancy() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(m.header))
		if key == "" {
			response.BadRequest(c, "Tenant ID is required", "Please provide the "+m.header+" header")
			c.Abort()
			return
		}

		manager := tenancy.NewManager(m.dir, m.conns)
		ctx, err := manager.Activate(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, errors.ErrTenantNotFound) || errors.Is(err, errors.ErrTenantInactive) {
				response.NotFound(c, "Invalid tenant", "The provided tenant ID is invalid or inactive")
			} else {
				response.FromError(c, err)
			}
			c.Abort()
			return
		}
		defer manager.Deactivate()

		scope := tenancy.MustFromContext(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Set(tenantIDKey, scope.TenantID())
		c.Next()
	}
}

// CurrentScope returns the tenant scope of the request.
func CurrentScope(c *gin.Context) (*tenancy.Scope, bool) {
	return tenancy.FromContext(c.Request.Context())
}
