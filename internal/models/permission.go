package models

// MasterPermission is the central permission catalog copied into tenants.
type MasterPermission struct {
	BaseModel
	Name        string `json:"name" gorm:"size:125;not null;uniqueIndex:idx_master_permissions_name_guard"`
	GuardName   string `json:"guard_name" gorm:"size:125;not null;uniqueIndex:idx_master_permissions_name_guard"`
	Category    string `json:"category" gorm:"size:50"`
	Description string `json:"description" gorm:"size:255"`
	IsActive    bool   `json:"is_active" gorm:"not null"`
}

func (p *MasterPermission) TableName() string {
	return "master_permissions"
}

// Permission is the tenant-local copy of a master permission.
type Permission struct {
	BaseModel
	Name        string `json:"name" gorm:"size:125;not null;uniqueIndex:idx_permissions_name_guard"`
	GuardName   string `json:"guard_name" gorm:"size:125;not null;uniqueIndex:idx_permissions_name_guard"`
	Category    string `json:"category" gorm:"size:50"`
	Description string `json:"description" gorm:"size:255"`
}

func (p *Permission) TableName() string {
	return "permissions"
}

// GuardAPI is the guard every seeded permission belongs to.
const GuardAPI = "api"

// permission categories
const (
	CategoryCompany = "company"
	CategoryUser    = "user"
	CategoryRole    = "role"
)
