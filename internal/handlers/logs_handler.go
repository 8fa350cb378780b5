package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/pollreminder/reminder-api/pkg/logger"
	"github.com/pollreminder/reminder-api/pkg/metrics"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogsHandler struct {
	out io.Writer
	mu  sync.Mutex
}

type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message" binding:"max=2000"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

type LogBatchRequest struct {
	Logs []LogEntry `json:"logs" binding:"required,max=100,dive"`
}

var knownLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// NewLogsHandler writes widget logs to a rotated frontend.log under logDir.
// With no logDir the entries go through the application logger instead.
func NewLogsHandler(logDir string) *LogsHandler {
	if logDir == "" {
		return &LogsHandler{}
	}
	return &LogsHandler{
		out: &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "frontend.log"),
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// NewLogsHandlerWithWriter writes entries as JSON lines to out
func NewLogsHandlerWithWriter(out io.Writer) *LogsHandler {
	return &LogsHandler{out: out}
}

func (h *LogsHandler) ReceiveFrontendLogs(c *gin.Context) {
	var req LogBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if len(req.Logs) == 0 {
		respondError(c, http.StatusBadRequest, "No logs provided", nil)
		return
	}

	for i := range req.Logs {
		req.Logs[i].Level = normalizeLevel(req.Logs[i].Level)
		metrics.FrontendLogEntries.WithLabelValues(req.Logs[i].Level).Inc()
	}

	if err := h.write(req.Logs); err != nil {
		logger.Error("Failed to write frontend logs", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to write logs", err)
		return
	}

	logger.Debug("Received frontend logs", zap.Int("count", len(req.Logs)))
	c.JSON(http.StatusOK, gin.H{"success": true, "received": len(req.Logs)})
}

func (h *LogsHandler) write(logs []LogEntry) error {
	if h.out == nil {
		for _, entry := range logs {
			logFrontendEntry(entry)
		}
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	encoder := json.NewEncoder(h.out)
	for _, entry := range logs {
		logLine := map[string]interface{}{}
		for k, v := range entry.Context {
			logLine[k] = v
		}
		logLine["ts"] = entry.Timestamp
		logLine["level"] = entry.Level
		logLine["msg"] = entry.Message
		logLine["service"] = "signup-widget"

		if err := encoder.Encode(logLine); err != nil {
			return fmt.Errorf("failed to encode log entry: %w", err)
		}
	}

	return nil
}

func logFrontendEntry(entry LogEntry) {
	fields := []zap.Field{
		zap.String("source", "signup-widget"),
		zap.String("client_ts", entry.Timestamp),
	}
	if len(entry.Context) > 0 {
		fields = append(fields, zap.Any("context", entry.Context))
	}

	switch entry.Level {
	case "error":
		logger.Error(entry.Message, fields...)
	case "warn":
		logger.Warn(entry.Message, fields...)
	case "debug":
		logger.Debug(entry.Message, fields...)
	default:
		logger.Info(entry.Message, fields...)
	}
}

func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	if !knownLevels[level] {
		return "info"
	}
	return level
}
