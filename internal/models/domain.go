package models

import "time"

// Domain maps a hostname alias onto a tenant.
type Domain struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Domain    string    `json:"domain" gorm:"size:255;not null;uniqueIndex"`
	TenantID  string    `json:"tenant_id" gorm:"size:36;not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *Domain) TableName() string {
	return "domains"
}
