package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pollreminder/reminder-api/pkg/jwt"
	"github.com/pollreminder/reminder-api/pkg/logger"
	"go.uber.org/zap"
)

// FormSessionContextKey is the key used to store the session ID in context
const FormSessionContextKey = "form_session_id"

var (
	ErrSessionNotFound = errors.New("session not found in context")
	ErrInvalidSession  = errors.New("invalid session type")
)

// FormSessionConfig controls the signed session cookie
type FormSessionConfig struct {
	CookieName   string
	CookieDomain string
	CookieSecure bool
	// IdleTTL is how long the server keeps an untouched form. A token is
	// re-issued once less than IdleTTL of its lifetime is left, so the
	// cookie always outlives the form it points at.
	IdleTTL time.Duration
}

// FormSessionMiddleware binds each browser to one signup form. A missing,
// expired or tampered cookie starts a new session instead of failing the
// request. Tokens close enough to expiry to die before the form does are
// re-issued.
func FormSessionMiddleware(tokenManager *jwt.TokenManager, cfg FormSessionConfig) gin.HandlerFunc {
	ttl := tokenManager.GetExpirationTime()
	reissueAfter := reissueAge(ttl, cfg.IdleTTL)

	return func(c *gin.Context) {
		sessionID := ""
		reissue := true

		if cookie, err := c.Cookie(cfg.CookieName); err == nil && cookie != "" {
			claims, err := tokenManager.ValidateToken(cookie)
			switch {
			case err == nil:
				sessionID = claims.SessionID
				reissue = claims.IssuedAt == nil || time.Since(claims.IssuedAt.Time) > reissueAfter
			case errors.Is(err, jwt.ErrExpiredToken):
				logger.Debug("Form session expired, starting a new one")
			default:
				_ = c.Error(fmt.Errorf("invalid session token: %w", err)) //nolint:errcheck
				logger.Warn("Rejected form session token", zap.Error(err))
			}
		}

		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		if reissue {
			token, err := tokenManager.GenerateToken(sessionID)
			if err != nil {
				_ = c.Error(err) //nolint:errcheck
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
				c.Abort()
				return
			}
			SetFormSessionCookie(c, cfg, token, int(ttl.Seconds()))
		}

		c.Set(FormSessionContextKey, sessionID)
		c.Next()
	}
}

// reissueAge is the token age after which the remaining lifetime may be
// shorter than one idle period
func reissueAge(lifetime, idleTTL time.Duration) time.Duration {
	if idleTTL <= 0 {
		return lifetime / 2
	}
	if idleTTL >= lifetime {
		return 0
	}
	return lifetime - idleTTL
}

// GetFormSessionID extracts the session ID from context
func GetFormSessionID(c *gin.Context) (string, error) {
	val, exists := c.Get(FormSessionContextKey)
	if !exists {
		return "", ErrSessionNotFound
	}

	sessionID, ok := val.(string)
	if !ok || sessionID == "" {
		return "", ErrInvalidSession
	}

	return sessionID, nil
}

// SetFormSessionCookie sets the form session cookie. Secure cookies use
// SameSite=None so the widget can be embedded on another site.
func SetFormSessionCookie(c *gin.Context, cfg FormSessionConfig, token string, maxAgeSeconds int) {
	if cfg.CookieSecure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(
		cfg.CookieName,
		token,
		maxAgeSeconds,
		"/",
		cfg.CookieDomain,
		cfg.CookieSecure,
		true, // HttpOnly
	)
}
