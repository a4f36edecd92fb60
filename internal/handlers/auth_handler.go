package handlers

import (
	"tenantdb/internal/middleware"
	"tenantdb/internal/services"
	"tenantdb/pkg/errors"
	"tenantdb/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler creates the authentication handler.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Validation(c, err)
		return
	}
	scope, ok := middleware.CurrentScope(c)
	if !ok {
		response.ServerError(c, "Tenancy is not initialized")
		return
	}

	envelope, err := h.auth.Login(c.Request.Context(), scope, req.Email, req.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, envelope)
}

// Register POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Validation(c, err)
		return
	}
	scope, ok := middleware.CurrentScope(c)
	if !ok {
		response.ServerError(c, "Tenancy is not initialized")
		return
	}

	envelope, err := h.auth.Register(c.Request.Context(), scope, req)
	if err != nil {
		if errors.Is(err, errors.ErrEmailTaken) {
			response.FieldError(c, "email", err.Error())
			return
		}
		response.FromError(c, err, "Registration failed")
		return
	}
	response.Created(c, envelope)
}

// Me GET /api/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims, _ := middleware.CurrentClaims(c)
	scope, _ := middleware.CurrentScope(c)

	profile, err := h.auth.CurrentUser(c.Request.Context(), scope, claims)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, profile)
}

// Logout POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, _ := middleware.CurrentClaims(c)
	if err := h.auth.Logout(c.Request.Context(), claims); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Successfully logged out"})
}

// Refresh POST /api/refresh. Expired tokens are accepted within the refresh
// window, so this route does not sit behind RequireLogin.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		response.Unauthorized(c, "Missing bearer token")
		return
	}
	scope, ok := middleware.CurrentScope(c)
	if !ok {
		response.ServerError(c, "Tenancy is not initialized")
		return
	}

	envelope, err := h.auth.Refresh(c.Request.Context(), scope, token)
	if err != nil {
		if errors.KindOf(err) == errors.KindUnknown {
			response.FromError(c, err)
			return
		}
		response.Unauthorized(c, errors.Public(err, "Could not refresh token"))
		return
	}
	response.OK(c, envelope)
}
