package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/pollreminder/reminder-api/internal/models"
)

// ParseValidationErrors converts validator errors to user-friendly format
func ParseValidationErrors(err error) []models.FieldError {
	var fieldErrors []models.FieldError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   fieldError.Field(),
				Message: getErrorMessage(fieldError),
			})
		}
	}

	return fieldErrors
}

func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must not exceed " + fe.Param() + " characters"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
