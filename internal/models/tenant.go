package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// DatabaseNamePrefix prefixes every tenant database name.
const DatabaseNamePrefix = "tenant_"

// Tenant is a customer account registered in the central database. Business
// fields are serialized freely; connection credentials live in Database and
// never leave the process.
type Tenant struct {
	ID         string            `json:"id" gorm:"primaryKey;size:36"`
	Name       string            `json:"name" gorm:"not null;size:255"`
	Email      string            `json:"email" gorm:"not null;size:255"`
	Phone      *string           `json:"phone" gorm:"size:50"`
	Address    *string           `json:"address" gorm:"type:text"`
	Status     bool              `json:"status" gorm:"not null;index"`
	Attributes datatypes.JSONMap `json:"attributes,omitempty"`

	Database     TenantDatabase `json:"-" gorm:"embedded;embeddedPrefix:tenancy_db_"`
	Provisioning ProvisionState `json:"provisioning" gorm:"embedded;embeddedPrefix:provision_"`

	Domains []Domain `json:"domains,omitempty" gorm:"foreignKey:TenantID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Tenant) TableName() string {
	return "tenants"
}

// TenantDatabase holds the connection parameters of the tenant database.
// Password is AES-GCM ciphertext, see pkg/secret.
type TenantDatabase struct {
	Name     string `gorm:"size:64;not null"`
	Host     string `gorm:"size:255"`
	Port     string `gorm:"size:10"`
	User     string `gorm:"size:255"`
	Password string `gorm:"type:text"`
}

// ProvisionState records which provisioning steps completed, so an operator
// can see and resume a half provisioned tenant.
type ProvisionState struct {
	DatabaseCreatedAt   *time.Time `json:"database_created_at"`
	MigratedAt          *time.Time `json:"migrated_at"`
	PermissionsSyncedAt *time.Time `json:"permissions_synced_at"`
	CompanyCreatedAt    *time.Time `json:"company_created_at"`
	LastError           *string    `json:"last_error" gorm:"type:text"`
}

// DatabaseNameFor derives the tenant database name from its id.
func DatabaseNameFor(id string) string {
	return DatabaseNamePrefix + strings.ReplaceAll(id, "-", "")
}

func (t *Tenant) IsActive() bool {
	return t.Status
}

// PrimaryDomain returns the first registered domain, or "".
func (t *Tenant) PrimaryDomain() string {
	if len(t.Domains) == 0 {
		return ""
	}
	return t.Domains[0].Domain
}
