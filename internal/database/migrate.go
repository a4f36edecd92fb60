package database

import (
	"context"

	"tenantdb/internal/models"
	"tenantdb/pkg/logger"

	"gorm.io/gorm"
)

// Migrate migrates the central database.
func Migrate(db *gorm.DB) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting central database migration...")

	err := db.AutoMigrate(
		&models.Tenant{},
		&models.Domain{},
		&models.MasterPermission{},
	)
	if err != nil {
		appLogger.Errorf("Central database migration failed: %v", err)
		return err
	}

	appLogger.Info("Central database migration completed successfully")
	return nil
}

// MigrateTenant migrates one tenant database.
func MigrateTenant(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&models.Company{},
		&models.User{},
		&models.Permission{},
		&models.Role{},
		&models.RolePermission{},
		&models.UserRole{},
	)
}
