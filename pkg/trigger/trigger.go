package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pollreminder/reminder-api/pkg/httpclient"
	"github.com/pollreminder/reminder-api/pkg/logger"
	"go.uber.org/zap"
)

const callTimeout = 10 * time.Second

// Event is the JSON body posted to a trigger URL
type Event struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId"`
	MessageType string `json:"messageType,omitempty"`
	OccurredAt  string `json:"occurredAt"`
}

// CallAsync posts event to triggerURL in the background.
// Failures are logged but never reach the caller.
func CallAsync(triggerURL string, event Event, httpClient httpclient.Client) {
	if triggerURL == "" {
		return
	}

	go Call(context.Background(), triggerURL, event, httpClient)
}

// Call posts event to triggerURL and reports whether the hook accepted it.
func Call(ctx context.Context, triggerURL string, event Event, httpClient httpclient.Client) bool {
	if event.OccurredAt == "" {
		event.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}

	fields := []zap.Field{
		zap.String("url", triggerURL),
		zap.String("event", event.Type),
		zap.String("session_id", event.SessionID),
	}

	body, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to encode trigger event", append(fields, zap.Error(err))...)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, triggerURL, bytes.NewReader(body))
	if err != nil {
		logger.Error("Failed to build trigger request", append(fields, zap.Error(err))...)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		logger.Error("Failed to call trigger URL", append(fields, zap.Error(err))...)
		return false
	}
	defer resp.Body.Close()

	fields = append(fields, zap.Int("status_code", resp.StatusCode))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		logger.Info("Trigger URL called successfully", fields...)
		return true
	}

	logger.Warn("Trigger URL returned non-success status", fields...)
	return false
}
