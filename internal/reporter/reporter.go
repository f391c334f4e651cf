// Package reporter is the façade a host mounts for one exam session. It owns
// the detectors, stamps their violations with the session identity and hands
// them to the shared channel and to the host's local warning callback.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/channel"
	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

var ErrNoChannel = errors.New("reporter requires a channel")

// WarningFunc receives every raised violation for immediate UI feedback.
type WarningFunc func(violation.Type)

// Option customizes a Reporter.
type Option func(*Reporter)

func WithClock(clock clockwork.Clock) Option {
	return func(r *Reporter) { r.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) { r.logger = logger }
}

func WithAudit(logger audit.Logger) Option {
	return func(r *Reporter) { r.audit = logger }
}

// WithSessionID fixes the instance id recorded in the audit trail.
func WithSessionID(id uuid.UUID) Option {
	return func(r *Reporter) { r.sessionID = id }
}

// Reporter is one mounted proctoring session. The identity is bound at
// construction and never changes.
type Reporter struct {
	identity  violation.Identity
	channel   channel.Channel
	detectors []detector.Detector
	clock     clockwork.Clock
	logger    *slog.Logger
	audit     audit.Logger
	sessionID uuid.UUID

	sequence atomic.Uint64

	mu       sync.Mutex
	disposed bool
	warn     WarningFunc
	inflight sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New binds identity to the given detectors and starts them in order. A
// detector that fails to start is logged and left out; the others keep
// running.
func New(identity violation.Identity, ch channel.Channel, detectors []detector.Detector, opts ...Option) (*Reporter, error) {
	if err := identity.Validate(); err != nil {
		return nil, fmt.Errorf("create reporter: %w", err)
	}
	if ch == nil {
		return nil, ErrNoChannel
	}

	r := &Reporter{
		identity:  identity,
		channel:   ch,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
		audit:     &audit.NoOpLogger{},
		sessionID: uuid.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(
		"component", "reporter",
		"session_id", r.sessionID.String(),
		"session_key", identity.SessionKey(),
	)
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.record(audit.Event{
		EventType: audit.EventSessionStarted,
		Metadata:  map[string]string{"mode": identity.Mode().String()},
	})

	for _, d := range detectors {
		if err := d.Start(r.ctx, r.reporterFor(d.Name())); err != nil {
			r.logger.Error("detector failed to start",
				slog.String("detector", d.Name()),
				slog.String("error", err.Error()),
			)
			r.record(audit.Event{
				EventType: audit.EventDetectorFailed,
				Detector:  d.Name(),
				Error:     err.Error(),
			})
			continue
		}
		r.detectors = append(r.detectors, d)
	}

	r.logger.Info("proctoring session started", slog.Int("detectors", len(r.detectors)))
	return r, nil
}

// Identity returns the bound session identity.
func (r *Reporter) Identity() violation.Identity { return r.identity }

// SessionID returns the audit instance id of this reporter.
func (r *Reporter) SessionID() uuid.UUID { return r.sessionID }

// Detectors returns the names of the running detectors in start order.
func (r *Reporter) Detectors() []string {
	names := make([]string, len(r.detectors))
	for i, d := range r.detectors {
		names[i] = d.Name()
	}
	return names
}

// OnLocalWarning registers the host callback, replacing any previous one.
// A nil callback unregisters it.
func (r *Reporter) OnLocalWarning(fn WarningFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warn = fn
}

func (r *Reporter) reporterFor(name string) detector.Report {
	return func(t violation.Type) { r.raise(name, t) }
}

func (r *Reporter) raise(source string, t violation.Type) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		r.record(audit.Event{
			EventType: audit.EventViolationIgnored,
			Detector:  source,
			Violation: t.String(),
		})
		return
	}
	warn := r.warn
	r.inflight.Add(1)
	r.mu.Unlock()
	defer r.inflight.Done()

	event := violation.Event{
		Sequence:  r.sequence.Add(1),
		Type:      t,
		Timestamp: r.clock.Now().UTC(),
		Identity:  r.identity,
	}

	entry := audit.Event{
		EventType: audit.EventViolationRaised,
		Detector:  source,
		Violation: t.String(),
		Sequence:  event.Sequence,
		Delivered: true,
	}
	if err := r.channel.Report(event); err != nil {
		entry.Delivered = false
		entry.Error = err.Error()
		r.logger.Warn("violation not delivered",
			slog.String("violation", t.String()),
			slog.Uint64("sequence", event.Sequence),
			slog.String("error", err.Error()),
		)
	}
	r.record(entry)

	if warn != nil {
		r.notify(warn, t)
	}
}

func (r *Reporter) notify(warn WarningFunc, t violation.Type) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("local warning callback panicked",
				slog.String("violation", t.String()),
				slog.Any("panic", p),
			)
		}
	}()
	warn(t)
}

func (r *Reporter) record(event audit.Event) {
	event.SessionID = r.sessionID
	event.SessionKey = r.identity.SessionKey()
	if err := r.audit.Log(r.ctx, event); err != nil {
		r.logger.Warn("audit log failed", slog.String("error", err.Error()))
	}
}

// Dispose stops every detector in reverse start order and waits for
// violations already being delivered, so nothing reaches the channel or the
// warning callback once it returns. Calls after the first are no-ops. It
// must not be called from the warning callback.
func (r *Reporter) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	r.mu.Unlock()

	for i := len(r.detectors) - 1; i >= 0; i-- {
		r.detectors[i].Stop()
	}
	r.inflight.Wait()

	r.record(audit.Event{EventType: audit.EventSessionDisposed})
	r.cancel()
	r.logger.Info("proctoring session disposed")
}
