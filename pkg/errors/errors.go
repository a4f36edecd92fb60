package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindBadRequest
	KindNotFound
	KindInactive
	KindForbidden
	KindAuth
	KindConnection
	KindProvision
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindInactive:
		return "inactive"
	case KindForbidden:
		return "forbidden"
	case KindAuth:
		return "auth"
	case KindConnection:
		return "connection"
	case KindProvision:
		return "provision"
	default:
		return "unknown"
	}
}

// Error is a classified error. Message is the short string rendered as the
// "error" field of HTTP responses.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap annotates err with a sentinel so both remain matchable with errors.Is.
func Wrap(sentinel *Error, err error) error {
	if err == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

var (
	ErrInvalidInput = New(KindValidation, "Invalid input")
	ErrDomainTaken  = New(KindValidation, "Domain already taken")
	ErrEmailTaken   = New(KindValidation, "The email has already been taken")

	ErrTenantRequired      = New(KindBadRequest, "Tenant ID is required")
	ErrCompanyClaimMissing = New(KindBadRequest, "Company ID not found in token")

	ErrTenantNotFound  = New(KindNotFound, "Invalid tenant")
	ErrUserNotFound    = New(KindNotFound, "User not found")
	ErrCompanyNotFound = New(KindNotFound, "Company not found or inactive")

	ErrTenantInactive  = New(KindInactive, "Invalid tenant")
	ErrAccountInactive = New(KindInactive, "User account is inactive")
	ErrCompanyInactive = New(KindInactive, "Company is inactive")

	ErrCompanyMismatch = New(KindForbidden, "User does not belong to this company")

	ErrInvalidCredentials      = New(KindAuth, "Invalid credentials")
	ErrInvalidToken            = New(KindAuth, "Unauthorized")
	ErrTokenExpiredBeyondGrace = New(KindAuth, "Token expired beyond refresh window")
	ErrTenantMismatch          = New(KindAuth, "Token was not issued for this tenant")

	ErrTenantConnection  = New(KindConnection, "Tenant database unavailable")
	ErrDatabaseProvision = New(KindProvision, "Failed to create tenant database")
	ErrMigration         = New(KindProvision, "Tenant migration failed")
	ErrPermissionSync    = New(KindProvision, "Permission sync failed")
)

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Public returns the classified error's message, or fallback for
// unclassified errors whose text must not leak to clients.
func Public(err error, fallback string) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return fallback
}

// HTTPStatus maps err onto a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInactive, KindForbidden:
		return http.StatusForbidden
	case KindAuth:
		return http.StatusUnauthorized
	case KindConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Is and As re-export the standard helpers so callers need one import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
