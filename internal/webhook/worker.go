package webhook

import (
	"context"
	"log/slog"
)

// Sender delivers one event
type Sender interface {
	Send(ctx context.Context, event EventPayload) error
}

// Worker delivers queued events in the background so ingestion never waits
// on the endpoint. The queue is bounded; Enqueue drops when it is full.
type Worker struct {
	sender Sender
	queue  chan EventPayload
	logger *slog.Logger
}

func NewWorker(sender Sender, size int, logger *slog.Logger) *Worker {
	if size <= 0 {
		size = 64
	}
	return &Worker{
		sender: sender,
		queue:  make(chan EventPayload, size),
		logger: logger.With("component", "webhook_worker"),
	}
}

// Enqueue queues event and reports whether there was room
func (w *Worker) Enqueue(event EventPayload) bool {
	select {
	case w.queue <- event:
		return true
	default:
		w.logger.Warn("webhook queue full, event dropped", "event_type", event.Type)
		return false
	}
}

// Run delivers until ctx is done. Events still queued at that point are
// dropped.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("webhook worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("webhook worker stopped", "dropped", len(w.queue))
			return
		case event := <-w.queue:
			if err := w.sender.Send(ctx, event); err != nil {
				w.logger.Error("webhook delivery failed", "event_type", event.Type, "error", err)
			}
		}
	}
}
