package services_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pollreminder/reminder-api/config"
	"github.com/pollreminder/reminder-api/internal/cache"
	"github.com/pollreminder/reminder-api/internal/models"
	"github.com/pollreminder/reminder-api/internal/services"
	"github.com/pollreminder/reminder-api/internal/signupform"
	"github.com/pollreminder/reminder-api/pkg/httpclient"
	"github.com/pollreminder/reminder-api/pkg/phone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newService(api *MockPollAPI, cfg *config.Config) *services.SignupService {
	sessions := cache.NewFormSessionCache(time.Minute, func() *signupform.Controller {
		return signupform.New(api, phone.NewNormalizer("GB"))
	})
	return services.NewSignupService(sessions, cfg, httpclient.NewStandardClient(time.Second))
}

func devConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{AppEnv: "development"},
	}
}

// fillVerifiedForm completes every field and verifies the postcode
func fillVerifiedForm(t *testing.T, svc *services.SignupService, api *MockPollAPI, sessionID string) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.UpdateField(ctx, sessionID, "name", "Ada")
	require.NoError(t, err)
	_, err = svc.UpdatePhone(ctx, sessionID, "07912 345678")
	require.NoError(t, err)
	_, err = svc.UpdateField(ctx, sessionID, "postcode", "SW1A 2AA")
	require.NoError(t, err)

	api.On("LookupPostcode", mock.Anything, "SW1A 2AA").
		Return(&models.PostcodeLookupResult{PollingStationFound: true}, nil).Once()
	view, err := svc.VerifyPostcode(ctx, sessionID)
	require.NoError(t, err)
	require.True(t, view.CanSubmit)
}

func TestSignupService_SessionsAreIsolated(t *testing.T) {
	svc := newService(new(MockPollAPI), devConfig())
	ctx := context.Background()

	_, err := svc.UpdateField(ctx, "session-a", "name", "Ada")
	require.NoError(t, err)

	viewA, err := svc.View(ctx, "session-a")
	require.NoError(t, err)
	viewB, err := svc.View(ctx, "session-b")
	require.NoError(t, err)

	assert.Equal(t, "Ada", viewA.Form.Name)
	assert.Empty(t, viewB.Form.Name)
	assert.Equal(t, 2, svc.ActiveSessions())
}

func TestSignupService_ErrorStillReturnsView(t *testing.T) {
	svc := newService(new(MockPollAPI), devConfig())

	view, err := svc.Cancel(context.Background(), "s")

	assert.ErrorIs(t, err, signupform.ErrCancelUnavailable)
	assert.Equal(t, "idle", view.Phase)
}

func TestSignupService_VerifyPostcodeLookupFailure(t *testing.T) {
	api := new(MockPollAPI)
	svc := newService(api, devConfig())
	ctx := context.Background()
	_, err := svc.UpdateField(ctx, "s", "postcode", "SW1A 2AA")
	require.NoError(t, err)
	api.On("LookupPostcode", mock.Anything, "SW1A 2AA").Return(nil, errors.New("timeout")).Once()

	view, err := svc.VerifyPostcode(ctx, "s")

	assert.ErrorIs(t, err, signupform.ErrLookupFailed)
	assert.Equal(t, "lookup_failed", view.Phase)
	assert.Equal(t, signupform.LookupFailedMessage, view.Message)
	assert.False(t, view.VerifyButton.Disabled)
}

func TestSignupService_SubmitRunsCallbackTrigger(t *testing.T) {
	var received int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
	}))
	defer hook.Close()

	cfg := devConfig()
	cfg.EventTriggers.SignupCreatedTriggerURL = hook.URL
	api := new(MockPollAPI)
	svc := newService(api, cfg)
	fillVerifiedForm(t, svc, api, "s")
	api.On("SubmitSignup", mock.Anything, mock.MatchedBy(func(f models.FormData) bool {
		return f.Name == "Ada" && f.Phone == "+447912345678" && f.Postcode == "SW1A 2AA"
	})).Return(nil).Once()

	view, err := svc.Submit(context.Background(), "s", "")

	require.NoError(t, err)
	assert.True(t, view.Submitted)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&received) == 1 }, time.Second, 10*time.Millisecond)

	_, err = svc.Submit(context.Background(), "s", "")
	assert.ErrorIs(t, err, signupform.ErrAlreadySubmitted)
	api.AssertExpectations(t)
}

func TestSignupService_SubmitChecksCaptcha(t *testing.T) {
	api := new(MockPollAPI)
	captcha := new(MockCaptchaVerifier)
	svc := newService(api, devConfig()).WithCaptchaVerifier(captcha)
	fillVerifiedForm(t, svc, api, "s")
	captcha.On("Verify", mock.Anything, "bad").Return(errors.New("invalid")).Once()

	view, err := svc.Submit(context.Background(), "s", "bad")

	assert.ErrorIs(t, err, services.ErrCaptchaFailed)
	assert.False(t, view.Submitted)
	api.AssertNotCalled(t, "SubmitSignup", mock.Anything, mock.Anything)

	captcha.On("Verify", mock.Anything, "good").Return(nil).Once()
	api.On("SubmitSignup", mock.Anything, mock.Anything).Return(nil).Once()

	view, err = svc.Submit(context.Background(), "s", "good")
	require.NoError(t, err)
	assert.True(t, view.Submitted)
	captcha.AssertExpectations(t)
}

func TestSignupService_IncompleteFormSkipsCaptcha(t *testing.T) {
	api := new(MockPollAPI)
	captcha := new(MockCaptchaVerifier)
	svc := newService(api, devConfig()).WithCaptchaVerifier(captcha)

	_, err := svc.Submit(context.Background(), "s", "token")

	var vErr *signupform.ValidationError
	require.ErrorAs(t, err, &vErr)
	captcha.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "SubmitSignup", mock.Anything, mock.Anything)
}

func TestSignupService_CommandsForOneSessionDoNotInterleave(t *testing.T) {
	api := new(MockPollAPI)
	svc := newService(api, devConfig())
	ctx := context.Background()
	_, err := svc.UpdateField(ctx, "s", "postcode", "SW1A 2AA")
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	api.On("LookupPostcode", mock.Anything, "SW1A 2AA").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&models.PostcodeLookupResult{PollingStationFound: true}, nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = svc.VerifyPostcode(ctx, "s")
	}()
	<-started

	editDone := make(chan error, 1)
	go func() {
		_, err := svc.UpdateField(ctx, "s", "postcode", "E1 6AN")
		editDone <- err
	}()

	select {
	case <-editDone:
		t.Fatal("postcode edit ran while the lookup was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	wg.Wait()

	// the edit runs after the lookup and invalidates it
	require.NoError(t, <-editDone)
	view, err := svc.View(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "idle", view.Phase)
	assert.Equal(t, "E1 6AN", view.Form.Postcode)
}
