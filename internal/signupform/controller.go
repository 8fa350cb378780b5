// Package signupform holds the poll-reminder signup form state machine.
package signupform

import (
	"context"
	"fmt"
	"strings"

	"github.com/pollreminder/reminder-api/internal/models"
)

// PostcodeLookup resolves a postcode to polling-station addresses
type PostcodeLookup interface {
	LookupPostcode(ctx context.Context, postcode string) (*models.PostcodeLookupResult, error)
}

// SignupSubmitter stores a completed signup
type SignupSubmitter interface {
	SubmitSignup(ctx context.Context, form models.FormData) error
}

// PollAPI is the upstream the controller talks to
type PollAPI interface {
	PostcodeLookup
	SignupSubmitter
}

// PhoneNormalizer formats the phone input before it is stored
type PhoneNormalizer interface {
	NormalizeE164(input string) string
}

// Controller owns one signup form. It is not safe for concurrent use;
// callers serialise commands per form.
type Controller struct {
	api   PollAPI
	phone PhoneNormalizer

	form       models.FormData
	phase      Phase
	candidates []models.AddressCandidate
	selected   *models.AddressCandidate

	submitErr   string
	submitted   bool
	onSubmitted func()
}

// New creates a controller for an empty form. phone may be nil, in which
// case phone input is stored trimmed.
func New(api PollAPI, phone PhoneNormalizer) *Controller {
	return &Controller{
		api:   api,
		phone: phone,
		form:  models.NewFormData(),
		phase: PhaseIdle,
	}
}

// OnSubmitted registers the callback run once after a successful submission
func (c *Controller) OnSubmitted(fn func()) {
	c.onSubmitted = fn
}

// Phase returns the current verification phase
func (c *Controller) Phase() Phase {
	return c.phase
}

// Form returns a snapshot of the form data
func (c *Controller) Form() models.FormData {
	return c.form
}

// Submitted reports whether the form has been submitted
func (c *Controller) Submitted() bool {
	return c.submitted
}

// SetField updates one user-editable field. addressSlug is bound only
// through verification and cannot be set here.
func (c *Controller) SetField(field, value string) error {
	if c.submitted {
		return ErrAlreadySubmitted
	}

	next := c.form
	switch field {
	case "name":
		next.Name = value
	case "phone":
		next.Phone = c.normalizePhone(value)
	case "postcode":
		if c.phase == PhaseChecking {
			return ErrPostcodeLocked
		}
		next.Postcode = value
	case "messageType":
		mt := models.MessageType(value)
		if !mt.Valid() {
			return ErrInvalidMessageType
		}
		next.MessageType = mt
	default:
		return fmt.Errorf("%q: %w", field, ErrUnknownField)
	}

	c.form = next
	c.submitErr = ""
	if field == "postcode" {
		c.resetVerification()
	}
	return nil
}

// SetPhone stores the phone input normalised to E.164
func (c *Controller) SetPhone(raw string) error {
	return c.SetField("phone", raw)
}

// StartVerification looks the postcode up and moves to the phase the
// response selects. Lookup failures land in PhaseLookupFailed.
func (c *Controller) StartVerification(ctx context.Context) error {
	if c.submitted {
		return ErrAlreadySubmitted
	}
	if !c.phase.canVerify() {
		return ErrVerifyUnavailable
	}

	postcode := strings.TrimSpace(c.form.Postcode)
	if postcode == "" {
		return ErrEmptyPostcode
	}

	c.phase = PhaseChecking
	c.clearAddress()

	result, err := c.api.LookupPostcode(ctx, postcode)
	if err != nil {
		c.phase = PhaseLookupFailed
		return fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}

	c.applyLookup(result)
	return nil
}

func (c *Controller) applyLookup(result *models.PostcodeLookupResult) {
	if result == nil {
		result = &models.PostcodeLookupResult{}
	}
	stations := result.PollingStations

	switch {
	case result.PollingStationFound:
		c.phase = PhaseVerified
		if len(stations) == 1 {
			c.bind(stations[0])
		}
	case len(stations) == 1:
		c.bind(stations[0])
		c.phase = PhaseVerified
	case len(stations) > 1:
		c.candidates = append([]models.AddressCandidate(nil), stations...)
		c.phase = PhaseAwaitingSelection
	default:
		c.phase = PhaseNotFound
	}
}

// SelectCandidate binds one of the offered addresses by slug
func (c *Controller) SelectCandidate(slug string) error {
	if c.submitted {
		return ErrAlreadySubmitted
	}
	if c.phase != PhaseAwaitingSelection {
		return ErrSelectionUnavailable
	}

	for _, candidate := range c.candidates {
		if candidate.Slug == slug {
			c.candidates = nil
			c.bind(candidate)
			c.phase = PhaseVerified
			return nil
		}
	}
	return fmt.Errorf("%q: %w", slug, ErrUnknownCandidate)
}

// Cancel drops the current verification and returns to PhaseIdle
func (c *Controller) Cancel() error {
	if c.submitted {
		return ErrAlreadySubmitted
	}
	if !c.phase.canCancel() {
		return ErrCancelUnavailable
	}
	c.clearAddress()
	c.phase = PhaseIdle
	return nil
}

// Submit sends the form upstream. Missing fields are reported before any
// network call; an upstream failure leaves the form editable.
func (c *Controller) Submit(ctx context.Context) error {
	if c.submitted {
		return ErrAlreadySubmitted
	}

	if missing := c.missingFields(); len(missing) > 0 {
		c.submitErr = IncompleteMessage
		return &ValidationError{Missing: missing}
	}

	if err := c.api.SubmitSignup(ctx, c.form); err != nil {
		c.submitErr = SubmitFailedMessage
		return fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	c.submitErr = ""
	c.submitted = true
	if c.onSubmitted != nil {
		c.onSubmitted()
	}
	return nil
}

func (c *Controller) missingFields() []string {
	var missing []string
	if strings.TrimSpace(c.form.Name) == "" {
		missing = append(missing, FieldName)
	}
	if strings.TrimSpace(c.form.Phone) == "" {
		missing = append(missing, FieldPhone)
	}
	if c.phase != PhaseVerified {
		missing = append(missing, FieldPostcode)
	}
	return missing
}

// resetVerification invalidates a verification that belonged to the old postcode
func (c *Controller) resetVerification() {
	if c.phase == PhaseVerified || c.phase == PhaseAwaitingSelection {
		c.clearAddress()
		c.phase = PhaseIdle
	}
}

func (c *Controller) bind(candidate models.AddressCandidate) {
	c.selected = &candidate
	c.form.AddressSlug = candidate.Slug
}

func (c *Controller) clearAddress() {
	c.candidates = nil
	c.selected = nil
	c.form.AddressSlug = ""
}

func (c *Controller) normalizePhone(raw string) string {
	if c.phone == nil {
		return strings.TrimSpace(raw)
	}
	return c.phone.NormalizeE164(raw)
}
