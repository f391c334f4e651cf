package alert

import (
	"log/slog"

	"github.com/saturnino-fabrica-de-software/proctor/internal/webhook"
	"github.com/saturnino-fabrica-de-software/proctor/internal/ws"
)

// EventViolationAlert is the webhook event type of an Alert
const EventViolationAlert = "violation.alert"

type Broadcaster interface {
	BroadcastToSession(sessionKey string, eventType ws.EventType, data interface{})
}

type Enqueuer interface {
	Enqueue(event webhook.EventPayload) bool
}

// Notifier pushes alerts to the session's watchers and, when configured,
// to the webhook worker.
type Notifier struct {
	hub     Broadcaster
	webhook Enqueuer
	logger  *slog.Logger
}

func NewNotifier(hub Broadcaster, webhook Enqueuer, logger *slog.Logger) *Notifier {
	return &Notifier{
		hub:     hub,
		webhook: webhook,
		logger:  logger.With("component", "alert_notifier"),
	}
}

func (n *Notifier) Notify(a Alert) {
	n.logger.Info("violation alert",
		"session_key", a.SessionKey,
		"candidate_email", a.CandidateEmail,
		"metric", a.Rule.Metric,
		"threshold", a.Rule.Threshold,
		"severity", a.Rule.Severity,
		"value", a.Value,
	)

	if n.hub != nil {
		n.hub.BroadcastToSession(a.SessionKey, ws.EventViolationAlert, a)
	}

	if n.webhook != nil {
		n.webhook.Enqueue(webhook.EventPayload{
			Type:      EventViolationAlert,
			Data:      a,
			Timestamp: a.TriggeredAt,
		})
	}
}
