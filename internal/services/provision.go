package services

import (
	"context"
	"fmt"
	"time"

	"tenantdb/internal/database"
	"tenantdb/internal/models"
	"tenantdb/internal/tenancy"
	apperrors "tenantdb/pkg/errors"
	"tenantdb/pkg/logger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProvisionOptions selects the optional provisioning steps.
type ProvisionOptions struct {
	Migrate         bool
	SeedPermissions bool
	CompanyName     string `validate:"omitempty,max=255"`
	CompanyEmail    string `validate:"omitempty,email,max=255"`
}

// StepStatus is the outcome of one provisioning step.
type StepStatus string

const (
	StepDone    StepStatus = "done"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// StepResult is the outcome of one provisioning step.
type StepResult struct {
	Step   ProvisionStep
	Status StepStatus
	Detail string
	Err    error
}

// ProvisionReport lists what happened to a tenant during one run. Steps
// that failed after the database was created are reported, not returned.
type ProvisionReport struct {
	Tenant *models.Tenant
	Steps  []StepResult
}

func (r *ProvisionReport) add(step ProvisionStep, status StepStatus, detail string, err error) {
	r.Steps = append(r.Steps, StepResult{Step: step, Status: status, Detail: detail, Err: err})
}

// Failures returns the failed steps.
func (r *ProvisionReport) Failures() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			failed = append(failed, s)
		}
	}
	return failed
}

// ProvisionService creates tenants and brings their databases up to date.
type ProvisionService struct {
	central  *gorm.DB
	tenants  *TenantService
	registry *database.Registry
	defaults database.ConnParams
}

// NewProvisionService wires the workflow. defaults supplies the tenant
// database server when the caller does not override it.
func NewProvisionService(central *gorm.DB, tenants *TenantService, registry *database.Registry, defaults database.ConnParams) *ProvisionService {
	return &ProvisionService{
		central:  central,
		tenants:  tenants,
		registry: registry,
		defaults: defaults,
	}
}

// ValidateProvision checks a create request and its options before any
// database is opened.
func ValidateProvision(input *CreateTenantInput, opts ProvisionOptions) error {
	if err := ValidateOptions(opts); err != nil {
		return err
	}
	return ValidateTenantInput(input)
}

// ValidateOptions checks that the selected steps can run together.
func ValidateOptions(opts ProvisionOptions) error {
	if err := validateInput(&opts); err != nil {
		return err
	}
	if !opts.Migrate && (opts.CompanyName != "" || opts.CompanyEmail != "") {
		return apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Errorf("company options require --migrate"))
	}
	if !opts.Migrate && opts.SeedPermissions {
		return apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Errorf("--seed-permissions requires --migrate"))
	}
	if opts.CompanyEmail != "" && opts.CompanyName == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Errorf("--company-email requires --company-name"))
	}
	return nil
}

// Provision registers a tenant and creates its database, then runs the
// optional steps. Invalid input fails before anything is written. A returned
// error means a hard failure; the report is non-nil once the tenant exists.
func (s *ProvisionService) Provision(ctx context.Context, input CreateTenantInput, opts ProvisionOptions) (*ProvisionReport, error) {
	if err := ValidateProvision(&input, opts); err != nil {
		return nil, err
	}

	if input.DBHost == "" {
		input.DBHost = s.defaults.Host
	}
	if input.DBPort == "" {
		input.DBPort = s.defaults.Port
	}
	if input.DBUser == "" {
		input.DBUser = s.defaults.User
	}
	if input.DBPassword == "" {
		input.DBPassword = s.defaults.Password
	}

	tenant, err := s.tenants.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	report := &ProvisionReport{Tenant: tenant}
	return report, s.run(ctx, report, opts)
}

// Resume reruns database creation and the selected steps for an existing
// tenant. Every step is idempotent.
func (s *ProvisionService) Resume(ctx context.Context, tenantID string, opts ProvisionOptions) (*ProvisionReport, error) {
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	report := &ProvisionReport{Tenant: tenant}
	return report, s.run(ctx, report, opts)
}

func (s *ProvisionService) run(ctx context.Context, report *ProvisionReport, opts ProvisionOptions) error {
	tenant := report.Tenant
	log := logger.WithTenant(tenant.ID)

	if err := s.createDatabase(ctx, tenant); err != nil {
		s.mark(ctx, tenant.ID, StepDatabase, err)
		report.add(StepDatabase, StepFailed, tenant.Database.Name, err)
		log.WithError(err).Error("Tenant database creation failed")
		return err
	}
	s.mark(ctx, tenant.ID, StepDatabase, nil)
	report.add(StepDatabase, StepDone, tenant.Database.Name, nil)

	defer s.reload(ctx, report)

	if !opts.Migrate {
		report.add(StepMigrate, StepSkipped, "", nil)
		report.add(StepPermissions, StepSkipped, "", nil)
		return nil
	}

	if err := s.Migrate(ctx, tenant.ID); err != nil {
		report.add(StepMigrate, StepFailed, "", err)
		if opts.CompanyName != "" {
			report.add(StepCompany, StepSkipped, "migration failed", nil)
		}
		report.add(StepPermissions, StepSkipped, "migration failed", nil)
		return nil
	}
	report.add(StepMigrate, StepDone, "", nil)

	if opts.CompanyName != "" {
		company, err := s.createCompany(ctx, tenant, opts)
		switch {
		case err != nil:
			report.add(StepCompany, StepFailed, "", err)
			log.WithError(err).Warn("Default company creation failed")
		case company == nil:
			report.add(StepCompany, StepSkipped, "already created", nil)
		default:
			report.add(StepCompany, StepDone, company.ID, nil)
		}
	}

	if !opts.SeedPermissions {
		report.add(StepPermissions, StepSkipped, "", nil)
		return nil
	}
	n, err := s.SyncPermissions(ctx, tenant.ID)
	if err != nil {
		report.add(StepPermissions, StepFailed, "", err)
		return nil
	}
	report.add(StepPermissions, StepDone, fmt.Sprintf("%d permissions", n), nil)
	return nil
}

func (s *ProvisionService) createDatabase(ctx context.Context, tenant *models.Tenant) error {
	params, err := s.registry.ParamsFor(tenant)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseProvision, err)
	}
	return s.registry.CreateDatabase(ctx, params, tenant.Database.Name)
}

// Migrate runs the tenant schema migrations inside the tenant's scope.
func (s *ProvisionService) Migrate(ctx context.Context, tenantID string) error {
	err := tenancy.NewManager(s.tenants, s.registry).Run(ctx, tenantID, func(ctx context.Context, scope *tenancy.Scope) error {
		return database.MigrateTenant(ctx, scope.DB)
	})
	if err != nil {
		err = apperrors.Wrap(apperrors.ErrMigration, err)
		logger.WithTenant(tenantID).WithError(err).Error("Tenant migration failed")
	}
	s.mark(ctx, tenantID, StepMigrate, err)
	return err
}

// SyncPermissions copies every active master permission into the tenant,
// inserting missing rows and refreshing updated_at on existing ones.
func (s *ProvisionService) SyncPermissions(ctx context.Context, tenantID string) (int, error) {
	var masters []models.MasterPermission
	if err := s.central.WithContext(ctx).Where("is_active = ?", true).Order("id").Find(&masters).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrPermissionSync, err)
	}

	err := tenancy.NewManager(s.tenants, s.registry).Run(ctx, tenantID, func(ctx context.Context, scope *tenancy.Scope) error {
		if len(masters) == 0 {
			return nil
		}
		perms := make([]models.Permission, len(masters))
		for i, m := range masters {
			perms[i] = models.Permission{
				Name:        m.Name,
				GuardName:   m.GuardName,
				Category:    m.Category,
				Description: m.Description,
			}
		}
		return scope.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}, {Name: "guard_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"category", "description", "updated_at"}),
		}).Create(&perms).Error
	})
	if err != nil {
		err = apperrors.Wrap(apperrors.ErrPermissionSync, err)
		logger.WithTenant(tenantID).WithError(err).Error("Permission sync failed")
		s.mark(ctx, tenantID, StepPermissions, err)
		return 0, err
	}

	s.mark(ctx, tenantID, StepPermissions, nil)
	logger.WithTenant(tenantID).Infof("Synced %d permissions", len(masters))
	return len(masters), nil
}

// createCompany returns nil without error when the company already exists.
func (s *ProvisionService) createCompany(ctx context.Context, tenant *models.Tenant, opts ProvisionOptions) (*models.Company, error) {
	if tenant.Provisioning.CompanyCreatedAt != nil {
		return nil, nil
	}
	email := opts.CompanyEmail
	if email == "" {
		email = tenant.Email
	}

	var company *models.Company
	err := tenancy.NewManager(s.tenants, s.registry).Run(ctx, tenant.ID, func(ctx context.Context, scope *tenancy.Scope) error {
		company = &models.Company{
			Name:    opts.CompanyName,
			Email:   email,
			Phone:   tenant.Phone,
			Address: tenant.Address,
			Status:  true,
			Settings: datatypes.JSONMap{
				"is_default":        true,
				"created_by_system": true,
			},
		}
		return scope.DB.Create(company).Error
	})
	s.mark(ctx, tenant.ID, StepCompany, err)
	if err != nil {
		return nil, err
	}
	return company, nil
}

func (s *ProvisionService) mark(ctx context.Context, tenantID string, step ProvisionStep, stepErr error) {
	// a cancelled command still records where it stopped
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.tenants.MarkStep(ctx, tenantID, step, stepErr); err != nil {
		logger.WithTenant(tenantID).WithError(err).Warn("Failed to record provisioning step")
	}
}

func (s *ProvisionService) reload(ctx context.Context, report *ProvisionReport) {
	tenant, err := s.tenants.FindByID(context.WithoutCancel(ctx), report.Tenant.ID)
	if err == nil {
		report.Tenant = tenant
	}
}
