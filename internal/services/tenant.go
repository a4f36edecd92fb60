package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"tenantdb/internal/models"
	"tenantdb/pkg/cache"
	apperrors "tenantdb/pkg/errors"
	"tenantdb/pkg/logger"
	"tenantdb/pkg/pagination"
	"tenantdb/pkg/secret"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TenantService is the tenant directory kept in the central database.
type TenantService struct {
	db       *gorm.DB
	box      *secret.Box
	cache    *cache.RedisStore
	cacheTTL time.Duration
}

// CreateTenantInput describes a new tenant. Database holds plaintext
// connection parameters; the password is encrypted before it is stored.
type CreateTenantInput struct {
	ID         string                 `validate:"omitempty,uuid"`
	Name       string                 `validate:"required,max=255"`
	Email      string                 `validate:"required,email,max=255"`
	Phone      *string                `validate:"omitempty,max=50"`
	Address    *string                `validate:"omitempty"`
	Domain     string                 `validate:"omitempty,max=255,hostname_rfc1123"`
	Attributes map[string]interface{} `validate:"-"`

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
}

// ProvisionStep names a persisted provisioning step.
type ProvisionStep string

const (
	StepDatabase    ProvisionStep = "database"
	StepMigrate     ProvisionStep = "migrate"
	StepCompany     ProvisionStep = "company"
	StepPermissions ProvisionStep = "permissions"
)

var stepColumns = map[ProvisionStep]string{
	StepDatabase:    "provision_database_created_at",
	StepMigrate:     "provision_migrated_at",
	StepCompany:     "provision_company_created_at",
	StepPermissions: "provision_permissions_synced_at",
}

// cachedTenant keeps the connection parameters that Tenant hides from JSON.
type cachedTenant struct {
	Tenant   *models.Tenant        `json:"tenant"`
	Database models.TenantDatabase `json:"database"`
}

// NewTenantService creates the directory over the central database. box
// seals tenant database passwords.
func NewTenantService(db *gorm.DB, box *secret.Box) *TenantService {
	return &TenantService{db: db, box: box}
}

// WithCache enables the read-through Redis cache for lookups.
func (s *TenantService) WithCache(store *cache.RedisStore, ttl time.Duration) *TenantService {
	if store != nil && ttl > 0 {
		s.cache = store
		s.cacheTTL = ttl
	}
	return s
}

// Validate checks input without touching the database.
func (s *TenantService) Validate(input *CreateTenantInput) error {
	return ValidateTenantInput(input)
}

// ValidateTenantInput normalizes and checks input. It needs no database.
func ValidateTenantInput(input *CreateTenantInput) error {
	input.Domain = normalizeDomain(input.Domain)
	input.Email = strings.TrimSpace(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	return validateInput(input)
}

// Create persists the tenant and its optional domain in one transaction. No
// tenant database is created here.
func (s *TenantService) Create(ctx context.Context, input CreateTenantInput) (*models.Tenant, error) {
	if err := s.Validate(&input); err != nil {
		return nil, err
	}

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	password, err := s.box.Seal(input.DBPassword)
	if err != nil {
		return nil, err
	}

	tenant := &models.Tenant{
		ID:         id,
		Name:       input.Name,
		Email:      input.Email,
		Phone:      input.Phone,
		Address:    input.Address,
		Status:     true,
		Attributes: input.Attributes,
		Database: models.TenantDatabase{
			Name:     models.DatabaseNameFor(id),
			Host:     input.DBHost,
			Port:     input.DBPort,
			User:     input.DBUser,
			Password: password,
		},
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.Domain != "" {
			var count int64
			if err := tx.Model(&models.Domain{}).Where("domain = ?", input.Domain).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return apperrors.ErrDomainTaken
			}
		}

		if err := tx.Omit("Domains").Create(tenant).Error; err != nil {
			return err
		}
		if input.Domain == "" {
			return nil
		}
		// a concurrent create may claim the domain after the check above
		domain := models.Domain{Domain: input.Domain, TenantID: id}
		if err := tx.Create(&domain).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrDomainTaken
			}
			return err
		}
		tenant.Domains = []models.Domain{domain}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithTenant(id).Infof("Tenant %s registered", tenant.Name)
	return tenant, nil
}

// FindByID returns the tenant, inactive ones included.
func (s *TenantService) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	if id == "" {
		return nil, apperrors.ErrTenantNotFound
	}
	if tenant, ok := s.cached(ctx, idKey(id)); ok {
		return tenant, nil
	}

	var tenant models.Tenant
	err := s.db.WithContext(ctx).Preload("Domains").First(&tenant, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}

	s.store(ctx, &tenant)
	return &tenant, nil
}

// FindByDomain resolves a domain alias to its tenant.
func (s *TenantService) FindByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return nil, apperrors.ErrTenantNotFound
	}

	if s.cache != nil {
		var id string
		if err := s.cache.GetJSON(ctx, domainKey(domain), &id); err == nil {
			return s.FindByID(ctx, id)
		}
	}

	var d models.Domain
	err := s.db.WithContext(ctx).Where("domain = ?", domain).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, domainKey(domain), d.TenantID, s.cacheTTL); err != nil {
			logger.GetLogger().WithError(err).Warn("Failed to cache tenant domain")
		}
	}
	return s.FindByID(ctx, d.TenantID)
}

// List returns every tenant ordered by creation time.
func (s *TenantService) List(ctx context.Context) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	err := s.db.WithContext(ctx).Preload("Domains").Order("created_at ASC").Find(&tenants).Error
	return tenants, err
}

// ListActive returns the active tenants ordered by creation time.
func (s *TenantService) ListActive(ctx context.Context) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	err := s.db.WithContext(ctx).Preload("Domains").
		Where("status = ?", true).
		Order("created_at ASC").
		Find(&tenants).Error
	return tenants, err
}

// Page lists one page of tenants ordered by creation time.
func (s *TenantService) Page(ctx context.Context, activeOnly bool, params pagination.PageParams) ([]*models.Tenant, *pagination.PageInfo, error) {
	params = params.Normalize()
	query := s.db.WithContext(ctx).Model(&models.Tenant{})
	if activeOnly {
		query = query.Where("status = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var tenants []*models.Tenant
	err := query.Preload("Domains").
		Order("created_at ASC").
		Offset(params.Offset()).
		Limit(params.Limit()).
		Find(&tenants).Error
	if err != nil {
		return nil, nil, err
	}
	return tenants, pagination.NewPageInfo(params.Page, params.PageSize, total), nil
}

// SetStatus activates or deactivates a tenant.
func (s *TenantService) SetStatus(ctx context.Context, id string, active bool) error {
	result := s.db.WithContext(ctx).Model(&models.Tenant{}).Where("id = ?", id).Update("status", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrTenantNotFound
	}
	s.invalidate(ctx, id)
	return nil
}

// MarkStep records the outcome of a provisioning step. A nil stepErr stamps
// the step as completed and clears the last error.
func (s *TenantService) MarkStep(ctx context.Context, id string, step ProvisionStep, stepErr error) error {
	column, ok := stepColumns[step]
	if !ok {
		return errors.New("unknown provisioning step " + string(step))
	}

	updates := map[string]interface{}{}
	if stepErr == nil {
		updates[column] = time.Now()
		updates["provision_last_error"] = nil
	} else {
		updates["provision_last_error"] = string(step) + ": " + stepErr.Error()
	}

	if err := s.db.WithContext(ctx).Model(&models.Tenant{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *TenantService) cached(ctx context.Context, key string) (*models.Tenant, bool) {
	if s.cache == nil {
		return nil, false
	}
	var entry cachedTenant
	if err := s.cache.GetJSON(ctx, key, &entry); err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logger.GetLogger().WithError(err).Warn("Tenant cache read failed")
		}
		return nil, false
	}
	if entry.Tenant == nil {
		return nil, false
	}
	entry.Tenant.Database = entry.Database
	return entry.Tenant, true
}

func (s *TenantService) store(ctx context.Context, tenant *models.Tenant) {
	if s.cache == nil {
		return
	}
	entry := cachedTenant{Tenant: tenant, Database: tenant.Database}
	if err := s.cache.SetJSON(ctx, idKey(tenant.ID), entry, s.cacheTTL); err != nil {
		logger.GetLogger().WithError(err).Warn("Failed to cache tenant")
	}
}

func (s *TenantService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	keys := []string{idKey(id)}
	var domains []string
	if err := s.db.WithContext(ctx).Model(&models.Domain{}).Where("tenant_id = ?", id).Pluck("domain", &domains).Error; err == nil {
		for _, d := range domains {
			keys = append(keys, domainKey(d))
		}
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logger.WithTenant(id).WithError(err).Warn("Failed to invalidate tenant cache")
	}
}

func idKey(id string) string {
	return "tenants:id:" + id
}

func domainKey(domain string) string {
	return "tenants:domain:" + domain
}

func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
