package services

import (
	"context"
	"errors"

	"tenantdb/internal/models"
	"tenantdb/internal/tenancy"
	apperrors "tenantdb/pkg/errors"
	"tenantdb/pkg/jwt"

	"gorm.io/gorm"
)

// CompanyService re-checks company claims against the tenant database.
type CompanyService struct{}

// NewCompanyService creates the company authorization gate.
func NewCompanyService() *CompanyService {
	return &CompanyService{}
}

// Authorize resolves the company named by the token and verifies that the
// user still belongs to it and that it is still active.
func (s *CompanyService) Authorize(ctx context.Context, scope *tenancy.Scope, claims *jwt.Claims) (*models.Company, error) {
	if claims.CompanyID == "" {
		return nil, apperrors.ErrCompanyClaimMissing
	}
	db := scope.DB.WithContext(ctx)

	var user models.User
	err := db.First(&user, "id = ?", claims.UserID()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	var company models.Company
	err = db.First(&company, "id = ?", claims.CompanyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !company.IsActive()) {
		return nil, apperrors.ErrCompanyNotFound
	}
	if err != nil {
		return nil, err
	}

	if user.CompanyID != company.ID {
		return nil, apperrors.ErrCompanyMismatch
	}
	return &company, nil
}
