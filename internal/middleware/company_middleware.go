package middleware

import (
	"tenantdb/internal/models"
	"tenantdb/internal/services"
	"tenantdb/pkg/response"

	"github.com/gin-gonic/gin"
)

const companyKey = "company"

// CompanyMiddleware gates company scoped routes.
type CompanyMiddleware struct {
	companies *services.CompanyService
}

// NewCompanyMiddleware creates the company gate.
func NewCompanyMiddleware(companies *services.CompanyService) *CompanyMiddleware {
	return &CompanyMiddleware{companies: companies}
}

// RequireCompany must run after RequireLogin. It re-checks the company claim
// against the tenant database and stores the company for handlers.
func (m *CompanyMiddleware) RequireCompany() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Unauthorized(c, "Missing bearer token")
			c.Abort()
			return
		}
		scope, ok := CurrentScope(c)
		if !ok {
			response.ServerError(c, "Tenancy is not initialized")
			c.Abort()
			return
		}

		company, err := m.companies.Authorize(c.Request.Context(), scope, claims)
		if err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}

		c.Set(companyKey, company)
		c.Next()
	}
}

// CurrentCompany returns the company resolved by RequireCompany.
func CurrentCompany(c *gin.Context) (*models.Company, bool) {
	v, ok := c.Get(companyKey)
	if !ok {
		return nil, false
	}
	company, ok := v.(*models.Company)
	return company, ok
}
