package services

import (
	"context"
	"errors"

	"github.com/pollreminder/reminder-api/config"
	"github.com/pollreminder/reminder-api/internal/cache"
	"github.com/pollreminder/reminder-api/internal/models"
	"github.com/pollreminder/reminder-api/internal/signupform"
	apperrors "github.com/pollreminder/reminder-api/pkg/errors"
	"github.com/pollreminder/reminder-api/pkg/httpclient"
	"github.com/pollreminder/reminder-api/pkg/logger"
	"github.com/pollreminder/reminder-api/pkg/metrics"
	"github.com/pollreminder/reminder-api/pkg/recaptcha"
	"github.com/pollreminder/reminder-api/pkg/trigger"
	"go.uber.org/zap"
)

// ErrCaptchaFailed is returned when the submit token does not pass reCAPTCHA
var ErrCaptchaFailed = apperrors.InvalidInputError("recaptchaToken", "Captcha verification failed")

// CaptchaVerifier checks a reCAPTCHA token
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) error
}

// SignupService runs form commands for browser sessions
type SignupService struct {
	sessions   *cache.FormSessionCache
	config     *config.Config
	httpClient httpclient.Client
	captcha    CaptchaVerifier
}

// NewSignupService creates a new signup service instance. reCAPTCHA is
// checked on submit only when a secret key is configured.
func NewSignupService(sessions *cache.FormSessionCache, cfg *config.Config, httpClient httpclient.Client) *SignupService {
	s := &SignupService{
		sessions:   sessions,
		config:     cfg,
		httpClient: httpClient,
	}
	if cfg.RecaptchaEnabled() {
		s.captcha = recaptcha.NewVerifier(cfg.ReCAPTCHA.SecretKey, httpClient)
	}
	return s
}

// WithCaptchaVerifier replaces the reCAPTCHA verifier
func (s *SignupService) WithCaptchaVerifier(v CaptchaVerifier) *SignupService {
	s.captcha = v
	return s
}

// ActiveSessions returns the number of open forms
func (s *SignupService) ActiveSessions() int {
	return s.sessions.Count()
}

func (s *SignupService) View(ctx context.Context, sessionID string) (models.FormView, error) {
	return s.run(sessionID, func(*signupform.Controller) error { return nil })
}

func (s *SignupService) UpdateField(ctx context.Context, sessionID, field, value string) (models.FormView, error) {
	return s.run(sessionID, func(c *signupform.Controller) error {
		return c.SetField(field, value)
	})
}

func (s *SignupService) UpdatePhone(ctx context.Context, sessionID, phone string) (models.FormView, error) {
	return s.run(sessionID, func(c *signupform.Controller) error {
		return c.SetPhone(phone)
	})
}

// VerifyPostcode looks up the form's postcode. The session stays locked
// for the whole lookup so no other command interleaves with it.
func (s *SignupService) VerifyPostcode(ctx context.Context, sessionID string) (models.FormView, error) {
	return s.run(sessionID, func(c *signupform.Controller) error {
		err := c.StartVerification(ctx)

		outcome := c.Phase().String()
		if err != nil && !errors.Is(err, signupform.ErrLookupFailed) {
			outcome = "rejected"
		}
		metrics.PostcodeLookups.WithLabelValues(outcome).Inc()

		if errors.Is(err, signupform.ErrLookupFailed) {
			logger.Warn("Postcode lookup failed",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
		return err
	})
}

func (s *SignupService) SelectAddress(ctx context.Context, sessionID, slug string) (models.FormView, error) {
	return s.run(sessionID, func(c *signupform.Controller) error {
		return c.SelectCandidate(slug)
	})
}

func (s *SignupService) Cancel(ctx context.Context, sessionID string) (models.FormView, error) {
	return s.run(sessionID, func(c *signupform.Controller) error {
		return c.Cancel()
	})
}

// Submit sends the signup upstream. The captcha is only checked once the
// form itself is complete, so a token is not spent on an incomplete form.
func (s *SignupService) Submit(ctx context.Context, sessionID, recaptchaToken string) (models.FormView, error) {
	return s.run(sessionID, func(c *signupform.Controller) error {
		if s.captcha != nil && c.View().CanSubmit {
			if err := s.captcha.Verify(ctx, recaptchaToken); err != nil {
				metrics.SignupSubmissions.WithLabelValues("captcha_failed").Inc()
				logger.Warn("ReCAPTCHA verification failed", zap.Error(err))
				return ErrCaptchaFailed
			}
		}

		err := c.Submit(ctx)
		metrics.SignupSubmissions.WithLabelValues(submitStatus(err)).Inc()
		if errors.Is(err, signupform.ErrSubmitFailed) {
			logger.Error("Failed to submit signup",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
		return err
	})
}

// run serialises fn with every other command for the session and returns
// the view as it stands afterwards, including on error.
func (s *SignupService) run(sessionID string, fn func(*signupform.Controller) error) (models.FormView, error) {
	session, _ := s.sessions.GetOrCreate(sessionID)

	session.Lock()
	defer session.Unlock()

	ctrl := session.Controller
	ctrl.OnSubmitted(func() {
		s.signupCreated(sessionID, ctrl.Form().MessageType)
	})

	err := fn(ctrl)
	return ctrl.View(), err
}

func (s *SignupService) signupCreated(sessionID string, messageType models.MessageType) {
	logger.Info("Reminder signup created",
		zap.String("session_id", sessionID),
		zap.String("message_type", string(messageType)))

	trigger.CallAsync(s.config.EventTriggers.SignupCreatedTriggerURL, trigger.Event{
		Type:        "signup.created",
		SessionID:   sessionID,
		MessageType: string(messageType),
	}, s.httpClient)
}

func submitStatus(err error) string {
	var validationErr *signupform.ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &validationErr):
		return "validation_failed"
	case errors.Is(err, signupform.ErrSubmitFailed):
		return "error"
	default:
		return "rejected"
	}
}
