package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"tenantdb/internal/models"
	"tenantdb/internal/tenancy"
	"tenantdb/pkg/cache"
	apperrors "tenantdb/pkg/errors"
	"tenantdb/pkg/jwt"
	"tenantdb/pkg/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// dummyHash is compared against when the email is unknown so a miss costs
// the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("tenantdb-dummy-password"), bcrypt.DefaultCost)

// AuthService authenticates users of the active tenant and issues tokens.
type AuthService struct {
	jwt      *jwt.JWTManager
	denylist *cache.RedisStore
}

// NewAuthService builds the gateway. A nil denylist disables logout
// revocation; tokens then stay valid until they expire.
func NewAuthService(manager *jwt.JWTManager, denylist *cache.RedisStore) *AuthService {
	return &AuthService{jwt: manager, denylist: denylist}
}

// UserView is the public part of a user.
type UserView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CompanyID string `json:"company_id"`
	Status    bool   `json:"status"`
}

// NewUserView strips u down to its public fields.
func NewUserView(u *models.User) UserView {
	return UserView{ID: u.ID, Name: u.Name, Email: u.Email, CompanyID: u.CompanyID, Status: u.Status}
}

// TokenEnvelope is returned by login, register and refresh.
type TokenEnvelope struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int64    `json:"expires_in"`
	User        UserView `json:"user"`
	TenantID    string   `json:"tenant_id"`
	CompanyID   string   `json:"company_id"`
}

// RegisterInput is the body of POST /api/register.
type RegisterInput struct {
	Name                 string `json:"name" binding:"required,max=255"`
	Email                string `json:"email" binding:"required,email,max=255"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
	CompanyID            string `json:"company_id" binding:"required,uuid"`
}

// Profile is the current user with company, roles and permissions.
type Profile struct {
	User        UserView        `json:"user"`
	TenantID    string          `json:"tenant_id"`
	Company     *models.Company `json:"company"`
	Permissions []string        `json:"permissions"`
	Roles       []string        `json:"roles"`
}

// Login checks credentials against the tenant database.
func (s *AuthService) Login(ctx context.Context, scope *tenancy.Scope, email, password string) (*TokenEnvelope, error) {
	db := scope.DB.WithContext(ctx)

	var user models.User
	err := db.Where("email = ?", strings.TrimSpace(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, apperrors.ErrAccountInactive
	}

	var company models.Company
	err = db.First(&company, "id = ?", user.CompanyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !company.IsActive()) {
		return nil, apperrors.ErrCompanyInactive
	}
	if err != nil {
		return nil, err
	}

	return s.issue(&user, scope.TenantID())
}

// Register creates an active user in an active company and logs it in.
func (s *AuthService) Register(ctx context.Context, scope *tenancy.Scope, input RegisterInput) (*TokenEnvelope, error) {
	db := scope.DB.WithContext(ctx)

	var company models.Company
	err := db.First(&company, "id = ?", input.CompanyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !company.IsActive()) {
		return nil, apperrors.ErrCompanyNotFound
	}
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(input.Email)
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperrors.ErrEmailTaken
	}

	user := &models.User{
		CompanyID: company.ID,
		Name:      strings.TrimSpace(input.Name),
		Email:     email,
		Status:    true,
	}
	if err := user.SetPassword(input.Password); err != nil {
		return nil, err
	}
	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrEmailTaken
		}
		return nil, err
	}

	logger.WithTenant(scope.TenantID()).WithField("user_id", user.ID).Info("User registered")
	return s.issue(user, scope.TenantID())
}

// Validate checks signature, expiry and revocation. It never touches a
// database; status checks belong to the authorization gate.
func (s *AuthService) Validate(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.jwt.VerifyToken(token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidToken, err)
	}
	if s.revoked(ctx, claims) {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// Refresh reissues token for the same user and claims. Expired tokens are
// accepted inside the refresh window; the old token is revoked.
func (s *AuthService) Refresh(ctx context.Context, scope *tenancy.Scope, token string) (*TokenEnvelope, error) {
	claims, err := s.jwt.VerifyForRefresh(token)
	if errors.Is(err, jwt.ErrRefreshWindowExceeded) {
		return nil, apperrors.ErrTokenExpiredBeyondGrace
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidToken, err)
	}
	if s.revoked(ctx, claims) {
		return nil, apperrors.ErrInvalidToken
	}
	if claims.TenantID != scope.TenantID() {
		return nil, apperrors.ErrTenantMismatch
	}

	var user models.User
	err = scope.DB.WithContext(ctx).First(&user, "id = ?", claims.UserID()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, apperrors.ErrAccountInactive
	}

	envelope, err := s.issueWithCompany(&user, claims.CompanyID, claims.TenantID)
	if err != nil {
		return nil, err
	}
	if err := s.revoke(ctx, claims); err != nil {
		logger.WithTenant(claims.TenantID).WithError(err).Warn("Failed to revoke refreshed token")
	}
	return envelope, nil
}

// Logout revokes the token until it can no longer be refreshed.
func (s *AuthService) Logout(ctx context.Context, claims *jwt.Claims) error {
	return s.revoke(ctx, claims)
}

// CurrentUser loads the authenticated user with company, roles and
// permissions.
func (s *AuthService) CurrentUser(ctx context.Context, scope *tenancy.Scope, claims *jwt.Claims) (*Profile, error) {
	db := scope.DB.WithContext(ctx)

	var user models.User
	err := db.Preload("Company").First(&user, "id = ?", claims.UserID()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	roles := []string{}
	if err := db.Model(&models.Role{}).
		Joins("JOIN model_has_roles ON model_has_roles.role_id = roles.id").
		Where("model_has_roles.user_id = ?", user.ID).
		Order("roles.name").
		Pluck("roles.name", &roles).Error; err != nil {
		return nil, err
	}

	permissions := []string{}
	if err := db.Model(&models.Permission{}).
		Distinct("permissions.name").
		Joins("JOIN role_has_permissions ON role_has_permissions.permission_id = permissions.id").
		Joins("JOIN model_has_roles ON model_has_roles.role_id = role_has_permissions.role_id").
		Where("model_has_roles.user_id = ?", user.ID).
		Order("permissions.name").
		Pluck("permissions.name", &permissions).Error; err != nil {
		return nil, err
	}

	return &Profile{
		User:        NewUserView(&user),
		TenantID:    scope.TenantID(),
		Company:     user.Company,
		Permissions: permissions,
		Roles:       roles,
	}, nil
}

func (s *AuthService) issue(user *models.User, tenantID string) (*TokenEnvelope, error) {
	return s.issueWithCompany(user, user.CompanyID, tenantID)
}

func (s *AuthService) issueWithCompany(user *models.User, companyID, tenantID string) (*TokenEnvelope, error) {
	token, _, err := s.jwt.GenerateToken(user.ID, companyID, tenantID)
	if err != nil {
		return nil, err
	}
	return &TokenEnvelope{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.jwt.GetTokenDuration().Seconds()),
		User:        NewUserView(user),
		TenantID:    tenantID,
		CompanyID:   companyID,
	}, nil
}

func denylistKey(jti string) string {
	return "jwt:denylist:" + jti
}

func (s *AuthService) revoke(ctx context.Context, claims *jwt.Claims) error {
	if s.denylist == nil || claims.ID == "" {
		return nil
	}
	until := time.Now().Add(s.jwt.GetTokenDuration())
	if claims.IssuedAt != nil {
		until = claims.IssuedAt.Add(s.jwt.GetRefreshWindow())
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.After(until) {
		until = claims.ExpiresAt.Time
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return s.denylist.SetFlag(ctx, denylistKey(claims.ID), ttl)
}

// revoked fails open when Redis is unreachable.
func (s *AuthService) revoked(ctx context.Context, claims *jwt.Claims) bool {
	if s.denylist == nil || claims.ID == "" {
		return false
	}
	found, err := s.denylist.Exists(ctx, denylistKey(claims.ID))
	if err != nil {
		logger.GetLogger().WithError(err).Warn("Token denylist unavailable")
		return false
	}
	return found
}
