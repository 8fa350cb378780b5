package services_test

import (
	"context"

	"github.com/pollreminder/reminder-api/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockPollAPI is a mock implementation of signupform.PollAPI
type MockPollAPI struct {
	mock.Mock
}

func (m *MockPollAPI) LookupPostcode(ctx context.Context, postcode string) (*models.PostcodeLookupResult, error) {
	args := m.Called(ctx, postcode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PostcodeLookupResult), args.Error(1)
}

func (m *MockPollAPI) SubmitSignup(ctx context.Context, form models.FormData) error {
	args := m.Called(ctx, form)
	return args.Error(0)
}

// MockCaptchaVerifier is a mock implementation of services.CaptchaVerifier
type MockCaptchaVerifier struct {
	mock.Mock
}

func (m *MockCaptchaVerifier) Verify(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}
