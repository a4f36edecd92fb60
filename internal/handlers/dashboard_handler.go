package handlers

import (
	"tenantdb/internal/middleware"
	"tenantdb/pkg/response"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct{}

func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// Show GET /api/dashboard, company scoped.
func (h *DashboardHandler) Show(c *gin.Context) {
	company, ok := middleware.CurrentCompany(c)
	if !ok {
		response.ServerError(c, "Company is not resolved")
		return
	}
	scope, _ := middleware.CurrentScope(c)

	response.OK(c, gin.H{
		"message":   "Welcome to " + company.Name + " dashboard",
		"company":   company,
		"tenant_id": scope.TenantID(),
	})
}
