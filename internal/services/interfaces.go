package services

import (
	"context"

	"github.com/pollreminder/reminder-api/internal/models"
)

// SignupServiceInterface defines the form commands available to a browser session.
// Every method returns the form view after the command, including on error.
type SignupServiceInterface interface {
	View(ctx context.Context, sessionID string) (models.FormView, error)
	UpdateField(ctx context.Context, sessionID, field, value string) (models.FormView, error)
	UpdatePhone(ctx context.Context, sessionID, phone string) (models.FormView, error)
	VerifyPostcode(ctx context.Context, sessionID string) (models.FormView, error)
	SelectAddress(ctx context.Context, sessionID, slug string) (models.FormView, error)
	Cancel(ctx context.Context, sessionID string) (models.FormView, error)
	Submit(ctx context.Context, sessionID, recaptchaToken string) (models.FormView, error)
	ActiveSessions() int
}
