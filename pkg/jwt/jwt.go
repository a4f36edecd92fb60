package jwt

import (
	"errors"
	"time"

	"tenantdb/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrRefreshWindowExceeded means the token is too old to be refreshed.
var ErrRefreshWindowExceeded = errors.New("token is outside the refresh window")

// Claims are the custom claims carried by every access token. The subject is
// the user id.
type Claims struct {
	CompanyID string `json:"company_id"`
	TenantID  string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// JWTManager signs and verifies access tokens.
type JWTManager struct {
	secretKey     []byte
	issuer        string
	tokenDuration time.Duration
	refreshWindow time.Duration
	now           func() time.Time
}

// NewJWTManager creates a manager. refreshWindow counts from issuance.
func NewJWTManager(secretKey, issuer string, tokenDuration, refreshWindow time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		issuer:        issuer,
		tokenDuration: tokenDuration,
		refreshWindow: refreshWindow,
		now:           time.Now,
	}
}

// GenerateToken signs a new token for userID carrying the company and tenant claims.
func (m *JWTManager) GenerateToken(userID, companyID, tenantID string) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		CompanyID: companyID,
		TenantID:  tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// VerifyToken checks signature, issuer and expiry.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	return m.parse(tokenString,
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
}

// VerifyForRefresh checks the signature only and accepts expired tokens as
// long as they were issued within the refresh window.
func (m *JWTManager) VerifyForRefresh(tokenString string) (*Claims, error) {
	claims, err := m.parse(tokenString, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if claims.Issuer != m.issuer || claims.IssuedAt == nil {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if m.now().After(claims.IssuedAt.Add(m.refreshWindow)) {
		return nil, ErrRefreshWindowExceeded
	}
	return claims, nil
}

func (m *JWTManager) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secretKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (m *JWTManager) GetTokenDuration() time.Duration {
	return m.tokenDuration
}

// GetRefreshWindow is how long after issuance a token may be refreshed.
func (m *JWTManager) GetRefreshWindow() time.Duration {
	return m.refreshWindow
}

// FromConfig builds a manager from the JWT settings. Unparsable durations
// fall back to one hour and fourteen days.
func FromConfig(cfg *config.Config) *JWTManager {
	tokenDuration, err := config.ParseDuration(cfg.JWT.TokenDuration)
	if err != nil {
		tokenDuration = time.Hour
	}
	refreshWindow, err := config.ParseDuration(cfg.JWT.RefreshDuration)
	if err != nil {
		refreshWindow = 14 * 24 * time.Hour
	}
	return NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Issuer, tokenDuration, refreshWindow)
}
