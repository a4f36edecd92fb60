package router

import (
	"tenantdb/internal/database"
	"tenantdb/internal/handlers"
	"tenantdb/internal/middleware"
	"tenantdb/internal/services"
	"tenantdb/pkg/config"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies are the long lived services the routes are built from.
type Dependencies struct {
	Config    *config.Config
	Central   *gorm.DB
	Registry  *database.Registry
	Tenants   *services.TenantService
	Auth      *services.AuthService
	Companies *services.CompanyService
}

// SetupRouter builds the engine.
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS(deps.Config))

	registerRoutes(router, deps)
	return router
}

func registerRoutes(router *gin.Engine, deps Dependencies) {
	tenant := middleware.NewTenantMiddleware(deps.Tenants, deps.Registry, deps.Config.Tenancy.Header)
	auth := middleware.NewAuthMiddleware(deps.Auth)
	company := middleware.NewCompanyMiddleware(deps.Companies)

	systemHandler := handlers.NewSystemHandler(deps.Central, deps.Registry)
	authHandler := handlers.NewAuthHandler(deps.Auth)
	dashboardHandler := handlers.NewDashboardHandler()

	api := router.Group("/api")
	api.GET("/health", systemHandler.Health)

	// everything below runs inside a tenant scope
	scoped := api.Group("", tenant.InitializeTenancy())
	{
		scoped.POST("/login", authHandler.Login)
		scoped.POST("/register", authHandler.Register)
		scoped.POST("/refresh", authHandler.Refresh)

		scoped.GET("/me", auth.RequireLogin(), authHandler.Me)
		scoped.POST("/logout", auth.RequireLogin(), authHandler.Logout)

		scoped.GET("/dashboard", auth.RequireLogin(), company.RequireCompany(), dashboardHandler.Show)
	}
}
