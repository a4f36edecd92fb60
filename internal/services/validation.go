package services

import (
	"fmt"
	"strings"

	apperrors "tenantdb/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateInput runs struct validation and folds failures into one
// ErrInvalidInput listing the offending fields.
func validateInput(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !apperrors.As(err, &verrs) {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Errorf("invalid fields: %s", strings.Join(fields, ", ")))
}
