package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pollreminder/reminder-api/internal/middleware"
	"github.com/pollreminder/reminder-api/internal/models"
	"github.com/pollreminder/reminder-api/internal/services"
)

// FormHandler exposes the signup form commands of the caller's session
type FormHandler struct {
	service services.SignupServiceInterface
}

func NewFormHandler(service services.SignupServiceInterface) *FormHandler {
	return &FormHandler{service: service}
}

// GetForm returns the current form view
func (h *FormHandler) GetForm(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	view, err := h.service.View(c.Request.Context(), sessionID)
	respondForm(c, view, err)
}

// UpdateField sets one form field
func (h *FormHandler) UpdateField(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req models.UpdateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalidRequest(c, sessionID, err)
		return
	}

	view, err := h.service.UpdateField(c.Request.Context(), sessionID, req.Field, req.Value)
	respondForm(c, view, err)
}

// UpdatePhone stores the phone number, normalised to E.164
func (h *FormHandler) UpdatePhone(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req models.UpdatePhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalidRequest(c, sessionID, err)
		return
	}

	view, err := h.service.UpdatePhone(c.Request.Context(), sessionID, req.Phone)
	respondForm(c, view, err)
}

// VerifyPostcode looks up the form's postcode
func (h *FormHandler) VerifyPostcode(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	view, err := h.service.VerifyPostcode(c.Request.Context(), sessionID)
	respondForm(c, view, err)
}

// SelectAddress picks one of the offered polling-station addresses
func (h *FormHandler) SelectAddress(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req models.SelectAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalidRequest(c, sessionID, err)
		return
	}

	view, err := h.service.SelectAddress(c.Request.Context(), sessionID, req.Slug)
	respondForm(c, view, err)
}

// Cancel drops the current postcode verification
func (h *FormHandler) Cancel(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	view, err := h.service.Cancel(c.Request.Context(), sessionID)
	respondForm(c, view, err)
}

// Submit finalises the signup. The body is optional.
func (h *FormHandler) Submit(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req models.SubmitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.invalidRequest(c, sessionID, err)
		return
	}

	view, err := h.service.Submit(c.Request.Context(), sessionID, req.RecaptchaToken)
	respondForm(c, view, err)
}

func (h *FormHandler) sessionID(c *gin.Context) (string, bool) {
	sessionID, err := middleware.GetFormSessionID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Session required", err)
		return "", false
	}
	return sessionID, true
}

func (h *FormHandler) invalidRequest(c *gin.Context, sessionID string, err error) {
	view, viewErr := h.service.View(c.Request.Context(), sessionID)
	if viewErr != nil {
		respondForm(c, view, viewErr)
		return
	}
	respondInvalidRequest(c, view, err)
}
