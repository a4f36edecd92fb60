package models

import "gorm.io/datatypes"

// Company lives inside a tenant database.
type Company struct {
	UUIDModel
	Name     string            `json:"name" gorm:"size:255;not null"`
	Email    string            `json:"email" gorm:"size:255;not null"`
	Phone    *string           `json:"phone" gorm:"size:50"`
	Address  *string           `json:"address" gorm:"type:text"`
	Logo     *string           `json:"logo" gorm:"size:255"`
	Status   bool              `json:"status" gorm:"not null;index"`
	Settings datatypes.JSONMap `json:"settings"`
}

func (c *Company) TableName() string {
	return "companies"
}

func (c *Company) IsActive() bool {
	return c.Status
}
