// Package app assembles the shared services of the server and the CLI.
package app

import (
	"fmt"

	"tenantdb/internal/database"
	"tenantdb/internal/services"
	"tenantdb/pkg/cache"
	"tenantdb/pkg/config"
	"tenantdb/pkg/logger"
	"tenantdb/pkg/secret"

	"gorm.io/gorm"
)

// App holds the services shared by the server and the CLI.
type App struct {
	Config    *config.Config
	Central   *gorm.DB
	Registry  *database.Registry
	Redis     *cache.RedisStore // nil when disabled
	Tenants   *services.TenantService
	Provision *services.ProvisionService
}

// New connects to the central database, migrates and seeds it, and builds
// the tenant registry and directory.
func New(cfg *config.Config) (*App, error) {
	if err := database.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("initialize central database: %w", err)
	}
	central := database.GetDB()

	if err := database.Migrate(central); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrate central database: %w", err)
	}
	if err := database.SeedMasterPermissions(central); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("seed master permissions: %w", err)
	}

	box, err := secret.NewBox(cfg.Credential.EncryptionKey)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("credential encryption: %w", err)
	}

	registry, err := database.NewRegistry(database.RegistryConfig{
		Driver:         cfg.Database.Driver,
		SSLMode:        cfg.Database.SSLMode,
		Capacity:       cfg.Tenancy.ConnCacheSize,
		IdleTTL:        cfg.Tenancy.ConnIdleTTL,
		ConnectTimeout: cfg.Tenancy.ConnectTimeout,
		SweepSpec:      cfg.Tenancy.ConnSweep,
		Pool: database.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxIdleTime: cfg.Tenancy.ConnIdleTTL,
		},
	}, box, nil)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("tenant connection registry: %w", err)
	}

	store := database.OpenRedisStore(cfg)
	tenants := services.NewTenantService(central, box).WithCache(store, cfg.Tenancy.CacheTTL)

	// tenant databases default to the central server
	defaults := database.CentralParams(cfg).WithName("")

	return &App{
		Config:    cfg,
		Central:   central,
		Registry:  registry,
		Redis:     store,
		Tenants:   tenants,
		Provision: services.NewProvisionService(central, tenants, registry, defaults),
	}, nil
}

// Close releases every connection. Errors are logged.
func (a *App) Close() {
	appLogger := logger.GetLogger()
	if err := a.Registry.Close(); err != nil {
		appLogger.Errorf("Failed to close tenant connections: %v", err)
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			appLogger.Errorf("Failed to close Redis: %v", err)
		}
	}
	if err := database.Close(); err != nil {
		appLogger.Errorf("Failed to close database: %v", err)
	}
}
