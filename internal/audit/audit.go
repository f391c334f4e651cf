package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of auditable event
type EventType string

const (
	EventSessionStarted   EventType = "SESSION_STARTED"
	EventSessionDisposed  EventType = "SESSION_DISPOSED"
	EventViolationRaised  EventType = "VIOLATION_RAISED"
	EventDetectorFailed   EventType = "DETECTOR_FAILED"
	EventViolationIgnored EventType = "VIOLATION_IGNORED"
)

// Event is one entry of the local proctoring trail. It survives a collector
// outage because it never leaves the agent.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	SessionID  uuid.UUID         `json:"session_id"`
	SessionKey string            `json:"session_key"`
	EventType  EventType         `json:"event_type"`
	Detector   string            `json:"detector,omitempty"`
	Violation  string            `json:"violation,omitempty"`
	Sequence   uint64            `json:"sequence,omitempty"`
	Delivered  bool              `json:"delivered"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// SlogLogger implements Logger using slog
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a new audit logger using slog
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{
		logger: logger.With("component", "audit"),
	}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to marshal audit event",
			slog.String("error", err.Error()),
			slog.String("event_type", string(event.EventType)),
		)
		return err
	}

	l.logger.InfoContext(ctx, "audit_event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.EventType)),
		slog.String("session_id", event.SessionID.String()),
		slog.String("session_key", event.SessionKey),
		slog.Bool("delivered", event.Delivered),
		slog.String("event_data", string(eventJSON)),
	)

	return nil
}

// NoOpLogger is a logger that does nothing (for testing or when audit is disabled)
type NoOpLogger struct{}

// Log does nothing and returns nil
func (l *NoOpLogger) Log(_ context.Context, _ Event) error {
	return nil
}
