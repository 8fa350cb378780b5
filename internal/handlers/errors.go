package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pollreminder/reminder-api/internal/models"
	"github.com/pollreminder/reminder-api/internal/services"
	"github.com/pollreminder/reminder-api/internal/signupform"
	apperrors "github.com/pollreminder/reminder-api/pkg/errors"
)

// attachError attaches err to the gin context so the observability middleware
// can include the reason in the request log. c.Error() returns *gin.Error (not
// the error interface), so we suppress errcheck here intentionally.
func attachError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err) //nolint:errcheck
	}
}

// respondError sends an error JSON response and attaches the error to the gin context
func respondError(c *gin.Context, status int, message string, err error) {
	attachError(c, err)
	c.JSON(status, gin.H{"error": message})
}

// respondForm sends the form view with the status and message err maps to
func respondForm(c *gin.Context, view models.FormView, err error) {
	if err == nil {
		c.JSON(http.StatusOK, models.FormResponse{Form: view})
		return
	}

	attachError(c, err)
	status, message := classifyError(err, view)
	resp := models.FormResponse{Form: view, Error: message}

	var validationErr *signupform.ValidationError
	if errors.As(err, &validationErr) {
		for _, field := range validationErr.Missing {
			resp.Details = append(resp.Details, models.FieldError{
				Field:   field,
				Message: signupform.MissingFieldMessage(field),
			})
		}
	}

	c.JSON(status, resp)
}

// respondInvalidRequest reports a body that failed binding, alongside the unchanged view
func respondInvalidRequest(c *gin.Context, view models.FormView, err error) {
	attachError(c, err)
	c.JSON(http.StatusBadRequest, models.FormResponse{
		Form:    view,
		Error:   "Invalid request",
		Details: ParseValidationErrors(err),
	})
}

func classifyError(err error, view models.FormView) (int, string) {
	var validationErr *signupform.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, signupform.IncompleteMessage
	case errors.Is(err, services.ErrCaptchaFailed):
		return http.StatusBadRequest, "Captcha verification failed"
	case errors.Is(err, signupform.ErrEmptyPostcode):
		return http.StatusBadRequest, "Please enter a postcode"
	case errors.Is(err, signupform.ErrUnknownCandidate):
		return http.StatusBadRequest, "Please choose one of the listed addresses"
	case errors.Is(err, signupform.ErrInvalidMessageType):
		return http.StatusBadRequest, "Please choose WhatsApp or SMS"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, signupform.ErrAlreadySubmitted):
		return http.StatusConflict, "This form has already been submitted"
	case errors.Is(err, signupform.ErrPostcodeLocked):
		return http.StatusConflict, "Please wait while we check your postcode"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "This action is not available right now"
	case errors.Is(err, signupform.ErrLookupFailed):
		return http.StatusBadGateway, signupform.LookupFailedMessage
	case errors.Is(err, signupform.ErrSubmitFailed):
		return http.StatusBadGateway, signupform.SubmitFailedMessage
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
