package signupform

import (
	"fmt"
	"strings"

	apperrors "github.com/pollreminder/reminder-api/pkg/errors"
)

var (
	ErrUnknownField       = apperrors.InvalidInputError("field", "not an editable form field")
	ErrInvalidMessageType = apperrors.InvalidInputError("messageType", "must be WhatsApp or Sms")
	ErrEmptyPostcode      = apperrors.InvalidInputError("postcode", "enter a postcode to verify")
	ErrUnknownCandidate   = apperrors.InvalidInputError("slug", "not one of the offered addresses")

	ErrPostcodeLocked       = apperrors.ConflictError("postcode is being checked")
	ErrVerifyUnavailable    = apperrors.ConflictError("postcode verification is not available now")
	ErrSelectionUnavailable = apperrors.ConflictError("there are no addresses to choose from")
	ErrCancelUnavailable    = apperrors.ConflictError("there is no postcode verification to cancel")
	ErrAlreadySubmitted     = apperrors.ConflictError("form already submitted")

	ErrLookupFailed = apperrors.UnavailableError("postcode lookup", nil)
	ErrSubmitFailed = apperrors.UnavailableError("signup submission", nil)
)

// User-facing notices
const (
	NotFoundMessage     = "Postcode has not been found"
	LookupFailedMessage = "We could not check your postcode right now. Please try again."
	SubmitFailedMessage = "We could not save your reminder right now. Please try again."
	IncompleteMessage   = "Please complete the highlighted fields"
)

// Fields a submission can be missing, in display order
const (
	FieldName     = "name"
	FieldPhone    = "phone"
	FieldPostcode = "postcode"
)

var missingFieldMessages = map[string]string{
	FieldName:     "Please enter your name",
	FieldPhone:    "Please enter your phone number",
	FieldPostcode: "Please verify your postcode",
}

// ValidationError lists every field that blocks a submission
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// MissingFieldMessage returns the user-facing hint for a missing field
func MissingFieldMessage(field string) string {
	if msg, ok := missingFieldMessages[field]; ok {
		return msg
	}
	return field + " is required"
}
