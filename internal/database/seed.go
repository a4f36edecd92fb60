package database

import (
	"fmt"

	"tenantdb/internal/models"
	"tenantdb/pkg/logger"

	"gorm.io/gorm"
)

// DefaultMasterPermissions is the baseline catalog copied into tenants.
var DefaultMasterPermissions = []models.MasterPermission{
	{Name: "company.view", GuardName: models.GuardAPI, Category: models.CategoryCompany, Description: "View company profile"},
	{Name: "company.update", GuardName: models.GuardAPI, Category: models.CategoryCompany, Description: "Update company profile"},
	{Name: "user.view", GuardName: models.GuardAPI, Category: models.CategoryUser, Description: "View users"},
	{Name: "user.create", GuardName: models.GuardAPI, Category: models.CategoryUser, Description: "Create users"},
	{Name: "user.update", GuardName: models.GuardAPI, Category: models.CategoryUser, Description: "Update users"},
	{Name: "user.delete", GuardName: models.GuardAPI, Category: models.CategoryUser, Description: "Delete users"},
	{Name: "role.view", GuardName: models.GuardAPI, Category: models.CategoryRole, Description: "View roles"},
	{Name: "role.assign", GuardName: models.GuardAPI, Category: models.CategoryRole, Description: "Assign roles to users"},
}

// SeedMasterPermissions inserts missing catalog entries. Existing rows,
// including ones an operator deactivated, are left alone.
func SeedMasterPermissions(db *gorm.DB) error {
	created := 0
	for _, perm := range DefaultMasterPermissions {
		var count int64
		if err := db.Model(&models.MasterPermission{}).
			Where("name = ? AND guard_name = ?", perm.Name, perm.GuardName).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		perm.IsActive = true
		if err := db.Create(&perm).Error; err != nil {
			return fmt.Errorf("seed master permission %s: %w", perm.Name, err)
		}
		created++
	}

	if created > 0 {
		logger.GetLogger().Infof("Seeded %d master permissions", created)
	}
	return nil
}
