package models

// Role groups tenant permissions.
type Role struct {
	BaseModel
	Name      string `json:"name" gorm:"size:125;not null;uniqueIndex:idx_roles_name_guard"`
	GuardName string `json:"guard_name" gorm:"size:125;not null;uniqueIndex:idx_roles_name_guard"`
}

func (r *Role) TableName() string {
	return "roles"
}

// RolePermission is the role_has_permissions join row.
type RolePermission struct {
	RoleID       uint `gorm:"primaryKey"`
	PermissionID uint `gorm:"primaryKey"`
}

func (RolePermission) TableName() string {
	return "role_has_permissions"
}

// UserRole is the model_has_roles join row.
type UserRole struct {
	UserID string `gorm:"primaryKey;size:36"`
	RoleID uint   `gorm:"primaryKey"`
}

func (UserRole) TableName() string {
	return "model_has_roles"
}
