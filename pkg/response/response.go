package response

import (
	"net/http"
	"strings"

	"tenantdb/pkg/errors"
	"tenantdb/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error   string              `json:"error"`
	Message string              `json:"message,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// ========== success ==========

func JSON(c *gin.Context, status int, body interface{}) {
	c.JSON(status, body)
}

func OK(c *gin.Context, body interface{}) {
	c.JSON(http.StatusOK, body)
}

func Created(c *gin.Context, body interface{}) {
	c.JSON(http.StatusCreated, body)
}

// ========== errors ==========

// Error writes an error body with an explicit status.
func Error(c *gin.Context, status int, errMsg, message string) {
	c.JSON(status, ErrorBody{Error: errMsg, Message: message})
}

// FromError renders err with the status of its kind. Unclassified errors are
// logged and rendered as a generic server error.
func FromError(c *gin.Context, err error, message ...string) {
	status := errors.HTTPStatus(err)
	if errors.KindOf(err) == errors.KindUnknown {
		logger.GetLogger().WithError(err).WithField("path", c.FullPath()).Error("unhandled request error")
	}
	body := ErrorBody{Error: errors.Public(err, "Server error")}
	if len(message) > 0 {
		body.Message = message[0]
	}
	c.JSON(status, body)
}

// Validation renders binding errors as 422 with per-field messages.
func Validation(c *gin.Context, err error) {
	body := ErrorBody{Error: "Validation failed", Errors: map[string][]string{}}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			field := toSnake(fe.Field())
			body.Errors[field] = append(body.Errors[field], fieldMessage(field, fe))
		}
	} else {
		body.Message = err.Error()
	}
	c.JSON(http.StatusUnprocessableEntity, body)
}

// FieldError renders a single field failure detected after binding.
func FieldError(c *gin.Context, field, message string) {
	c.JSON(http.StatusUnprocessableEntity, ErrorBody{
		Error:  "Validation failed",
		Errors: map[string][]string{field: {message}},
	})
}

func BadRequest(c *gin.Context, errMsg, message string) {
	Error(c, http.StatusBadRequest, errMsg, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, "Unauthorized", message)
}

func NotFound(c *gin.Context, errMsg, message string) {
	Error(c, http.StatusNotFound, errMsg, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, "Server error", message)
}

func fieldMessage(field string, fe validator.FieldError) string {
	name := strings.ReplaceAll(field, "_", " ")
	switch fe.Tag() {
	case "required":
		return "The " + name + " field is required."
	case "email":
		return "The " + name + " must be a valid email address."
	case "min":
		return "The " + name + " must be at least " + fe.Param() + " characters."
	case "max":
		return "The " + name + " may not be greater than " + fe.Param() + " characters."
	case "eqfield":
		return "The " + name + " confirmation does not match."
	case "uuid":
		return "The " + name + " must be a valid UUID."
	default:
		return "The " + name + " is invalid."
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
