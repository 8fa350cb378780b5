package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/pollreminder/reminder-api/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret-key-at-least-32-characters-long"

var testSessionConfig = FormSessionConfig{CookieName: "signup_session"}

func newSessionRouter(tm *jwt.TokenManager) (*gin.Engine, *string) {
	return newSessionRouterWithConfig(tm, testSessionConfig)
}

func newSessionRouterWithConfig(tm *jwt.TokenManager, cfg FormSessionConfig) (*gin.Engine, *string) {
	var seen string
	router := gin.New()
	router.Use(FormSessionMiddleware(tm, cfg))
	router.GET("/form", func(c *gin.Context) {
		seen, _ = GetFormSessionID(c)
		c.Status(http.StatusOK)
	})
	return router, &seen
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == testSessionConfig.CookieName {
			return cookie
		}
	}
	return nil
}

func TestFormSessionMiddleware_IssuesSession(t *testing.T) {
	tm := jwt.NewTokenManager(testSecret, "test", 30*time.Minute)
	router, seen := newSessionRouter(tm)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/form", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, *seen)
	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	claims, err := tm.ValidateToken(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, *seen, claims.SessionID)
}

func TestFormSessionMiddleware_KeepsValidSession(t *testing.T) {
	tm := jwt.NewTokenManager(testSecret, "test", 30*time.Minute)
	router, seen := newSessionRouter(tm)
	token, err := tm.GenerateToken("existing-session")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/form", http.NoBody)
	req.AddCookie(&http.Cookie{Name: testSessionConfig.CookieName, Value: token})
	router.ServeHTTP(w, req)

	assert.Equal(t, "existing-session", *seen)
	assert.Nil(t, sessionCookie(w), "fresh token should not be re-issued")
}

func TestFormSessionMiddleware_TamperedTokenStartsNewSession(t *testing.T) {
	tm := jwt.NewTokenManager(testSecret, "test", 30*time.Minute)
	other := jwt.NewTokenManager("another-secret-key-at-least-32-characters", "test", 30*time.Minute)
	router, seen := newSessionRouter(tm)
	forged, err := other.GenerateToken("victim-session")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/form", http.NoBody)
	req.AddCookie(&http.Cookie{Name: testSessionConfig.CookieName, Value: forged})
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, "victim-session", *seen)
	assert.NotEmpty(t, *seen)
	require.NotNil(t, sessionCookie(w))
}

// signedAt signs a token for sessionID as if it had been issued age ago
func signedAt(t *testing.T, sessionID string, age, lifetime time.Duration) string {
	t.Helper()
	issued := time.Now().Add(-age)
	claims := jwt.SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(issued.Add(lifetime)),
			IssuedAt:  gojwt.NewNumericDate(issued),
			Issuer:    "test",
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestFormSessionMiddleware_ReissuesBeforeIdleWindowOutlivesToken(t *testing.T) {
	tm := jwt.NewTokenManager(testSecret, "test", time.Hour)
	cfg := testSessionConfig
	cfg.IdleTTL = 30 * time.Minute

	tests := []struct {
		name    string
		age     time.Duration
		reissue bool
	}{
		{"plenty of lifetime left", 20 * time.Minute, false},
		{"less than one idle period left", 31 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, seen := newSessionRouterWithConfig(tm, cfg)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/form", http.NoBody)
			req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: signedAt(t, "long-form", tt.age, time.Hour)})
			router.ServeHTTP(w, req)

			assert.Equal(t, "long-form", *seen)
			cookie := sessionCookie(w)
			if !tt.reissue {
				assert.Nil(t, cookie)
				return
			}
			require.NotNil(t, cookie)
			assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)
			claims, err := tm.ValidateToken(cookie.Value)
			require.NoError(t, err)
			assert.Equal(t, "long-form", claims.SessionID)
			assert.True(t, claims.ExpiresAt.Time.After(time.Now().Add(cfg.IdleTTL)))
		})
	}
}

func TestReissueAge(t *testing.T) {
	assert.Equal(t, 30*time.Minute, reissueAge(time.Hour, 30*time.Minute))
	assert.Equal(t, 30*time.Minute, reissueAge(time.Hour, 0))
	assert.Equal(t, time.Duration(0), reissueAge(30*time.Minute, 30*time.Minute))
}

func TestGetFormSessionID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, err := GetFormSessionID(c)

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, 2)

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))
		codes[i] = w.Code
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestBodySizeLimitMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(BodySizeLimitMiddleware(16))
	router.POST("/test", func(c *gin.Context) {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name":"a very long value indeed"}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestObservabilityMiddleware_RequestID(t *testing.T) {
	router := gin.New()
	router.Use(ObservabilityMiddleware())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(RequestIDHeader, "abc-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeadersMiddleware())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
}
