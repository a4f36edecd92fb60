package handlers

import (
	"context"
	"net/http"
	"time"

	"tenantdb/internal/database"
	"tenantdb/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SystemHandler struct {
	central  *gorm.DB
	registry *database.Registry
}

// NewSystemHandler creates the health handler.
func NewSystemHandler(central *gorm.DB, registry *database.Registry) *SystemHandler {
	return &SystemHandler{central: central, registry: registry}
}

// Health GET /api/health, outside tenancy.
func (h *SystemHandler) Health(c *gin.Context) {
	data := gin.H{
		"status":             "ok",
		"timestamp":          time.Now(),
		"service":            "tenantdb",
		"tenant_connections": h.registry.Len(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := pingCentral(ctx, h.central); err != nil {
		data["status"] = "degraded"
		data["central_database"] = err.Error()
		response.JSON(c, http.StatusServiceUnavailable, data)
		return
	}
	response.OK(c, data)
}

func pingCentral(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
