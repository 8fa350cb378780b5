// Package pollclient calls the poll API that resolves postcodes and stores signups.
package pollclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pollreminder/reminder-api/internal/models"
	"github.com/pollreminder/reminder-api/pkg/circuitbreaker"
	"github.com/pollreminder/reminder-api/pkg/httpclient"
	"github.com/pollreminder/reminder-api/pkg/logger"
	"github.com/pollreminder/reminder-api/pkg/metrics"
	"github.com/pollreminder/reminder-api/pkg/retry"
	"github.com/pollreminder/reminder-api/pkg/tracing"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	serviceName = "poll_api"

	operationLookup = "lookupPostcode"
	operationSubmit = "submitSignup"

	maxResponseBytes = 1 << 20
)

// ErrUpstreamStatus marks a non-2xx answer from the poll API
var ErrUpstreamStatus = errors.New("unexpected poll API status")

// StatusError carries the status code of a non-2xx response
type StatusError struct {
	Operation  string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s %d", e.Operation, ErrUpstreamStatus, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstreamStatus
}

// Client talks to the poll API with circuit breaker protection
type Client struct {
	baseURL        string
	httpClient     httpclient.Client
	circuitBreaker *gobreaker.CircuitBreaker
	lookupRetry    retry.Config
}

// NewClient creates a poll API client. baseURL must not end with a slash.
func NewClient(baseURL string, httpClient httpclient.Client, lookupRetries int) *Client {
	cbConfig := circuitbreaker.DefaultConfig(serviceName)
	cbConfig.IsSuccessful = isBreakerSuccess

	lookupRetry := retry.UpstreamConfig(lookupRetries)
	lookupRetry.RetryableErrors = isRetryable

	logger.Info("Poll API client initialized",
		zap.String("base_url", baseURL),
		zap.Int("lookup_retries", lookupRetries))

	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     httpClient,
		circuitBreaker: circuitbreaker.NewCircuitBreaker(cbConfig),
		lookupRetry:    lookupRetry,
	}
}

// BreakerState returns the circuit breaker state
func (c *Client) BreakerState() string {
	return circuitbreaker.GetState(c.circuitBreaker)
}

// BreakerStatus returns the circuit breaker state and counts for health reporting
func (c *Client) BreakerStatus() circuitbreaker.Status {
	return circuitbreaker.Snapshot(c.circuitBreaker)
}

// LookupPostcode posts the raw postcode to {base}/postcode and decodes the stations found
func (c *Client) LookupPostcode(ctx context.Context, postcode string) (*models.PostcodeLookupResult, error) {
	ctx, span := tracing.StartSpan(ctx, "pollapi.lookupPostcode",
		attribute.String("poll_api.operation", operationLookup))
	start := time.Now()

	result, err := circuitbreaker.Execute(c.circuitBreaker, func() (*models.PostcodeLookupResult, error) {
		found, lookupErr := retry.DoWithResult(ctx, c.lookupRetry, operationLookup, func() (*models.PostcodeLookupResult, error) {
			return c.lookup(ctx, postcode)
		})
		return found, markCallerAbort(ctx, lookupErr)
	})

	c.record(operationLookup, start, err)
	if err == nil {
		span.SetAttributes(
			attribute.Bool("poll_api.station_found", result.PollingStationFound),
			attribute.Int("poll_api.station_count", len(result.PollingStations)))
	}
	tracing.EndSpan(span, err)

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) lookup(ctx context.Context, postcode string) (*models.PostcodeLookupResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/postcode", strings.NewReader(postcode))
	if err != nil {
		return nil, fmt.Errorf("failed to build postcode request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	body, err := c.do(req, operationLookup)
	if err != nil {
		return nil, err
	}

	var result models.PostcodeLookupResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode postcode response: %w", err)
	}
	return &result, nil
}

// SubmitSignup posts the form as JSON to {base}/submit. It is never retried.
func (c *Client) SubmitSignup(ctx context.Context, form models.FormData) error {
	ctx, span := tracing.StartSpan(ctx, "pollapi.submitSignup",
		attribute.String("poll_api.operation", operationSubmit),
		attribute.String("poll_api.message_type", string(form.MessageType)))
	start := time.Now()

	_, err := circuitbreaker.Execute(c.circuitBreaker, func() (struct{}, error) {
		return struct{}{}, markCallerAbort(ctx, c.submit(ctx, form))
	})

	c.record(operationSubmit, start, err)
	tracing.EndSpan(span, err)
	return err
}

func (c *Client) submit(ctx context.Context, form models.FormData) error {
	payload, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("failed to encode signup: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req, operationSubmit)
	return err
}

// do sends req and returns the body of a 2xx response
func (c *Client) do(req *http.Request, operation string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Operation: operation, StatusCode: resp.StatusCode}
	}
	return body, nil
}

func (c *Client) record(operation string, start time.Time, err error) {
	duration := metrics.MeasureDuration(start)
	status := "success"
	fields := []zap.Field{}
	if err != nil {
		status = "error"
		fields = append(fields, zap.Error(err))
	}

	metrics.UpstreamRequestDuration.WithLabelValues(operation, status).Observe(duration)
	metrics.UpstreamRequestTotal.WithLabelValues(operation, status).Inc()
	logger.LogAPICall(serviceName, operation, status, duration, fields...)
}

// isRetryable retries transport failures and 5xx answers. Client errors
// and cancelled contexts are final.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return true
}

// callerAbortError marks a call that ended because the caller's own
// context was cancelled or ran out, not because the poll API failed.
type callerAbortError struct {
	err error
}

func (e *callerAbortError) Error() string { return e.err.Error() }

func (e *callerAbortError) Unwrap() error { return e.err }

func markCallerAbort(ctx context.Context, err error) error {
	if err == nil || ctx.Err() == nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &callerAbortError{err: err}
	}
	return err
}

// isBreakerSuccess keeps 4xx answers and abandoned calls from tripping the
// shared breaker
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var abortErr *callerAbortError
	if errors.As(err, &abortErr) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < 500
	}
	return false
}
