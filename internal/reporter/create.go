package reporter

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/channel"
	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
	"github.com/saturnino-fabrica-de-software/proctor/internal/face"
	"github.com/saturnino-fabrica-de-software/proctor/internal/signal"
	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

var ErrNoSource = errors.New("reporter requires a signal source")

// Config selects and tunes the standard detector set.
type Config struct {
	IdleThreshold time.Duration
	Policies      detector.Policies

	FaceEnabled          bool
	FaceThreshold        float64
	FaceReReportInterval time.Duration
}

// DefaultConfig returns the documented defaults with face monitoring on.
func DefaultConfig() Config {
	return Config{
		IdleThreshold: detector.DefaultIdleThreshold,
		Policies:      detector.DefaultPolicies(),
		FaceEnabled:   true,
		FaceThreshold: face.DefaultThreshold,
	}
}

// ConfigFromAgent maps the agent configuration onto a reporter Config.
func ConfigFromAgent(cfg *config.AgentConfig, policies detector.Policies) Config {
	return Config{
		IdleThreshold:        cfg.IdleThreshold,
		Policies:             policies,
		FaceEnabled:          cfg.FaceEnabled,
		FaceThreshold:        cfg.FaceThreshold,
		FaceReReportInterval: cfg.FaceReReportInterval,
	}
}

// Deps are the host-supplied collaborators of a session.
type Deps struct {
	Source  signal.Source
	Channel channel.Channel

	// FaceLoader and Devices are only needed when face monitoring is enabled.
	FaceLoader face.Loader
	Devices    face.MediaDevices

	Clock  clockwork.Clock
	Logger *slog.Logger
	Audit  audit.Logger
}

// Create builds the standard detectors (idle, focus, clipboard, context
// menu and, when enabled, face presence) and starts a Reporter over them.
func Create(identity violation.Identity, cfg Config, deps Deps) (*Reporter, error) {
	if deps.Source == nil {
		return nil, ErrNoSource
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	detectors := []detector.Detector{
		detector.NewIdleTracker(deps.Source, cfg.IdleThreshold, deps.Clock),
		detector.NewFocusTracker(deps.Source),
		detector.NewClipboardGuard(deps.Source, cfg.Policies),
		detector.NewContextMenuGuard(deps.Source, cfg.Policies),
	}
	if cfg.FaceEnabled {
		detectors = append(detectors, face.NewMonitor(deps.FaceLoader, deps.Devices, face.Config{
			Threshold:        cfg.FaceThreshold,
			ReReportInterval: cfg.FaceReReportInterval,
			Clock:            deps.Clock,
			Logger:           deps.Logger,
		}))
	}

	opts := []Option{WithClock(deps.Clock), WithLogger(deps.Logger)}
	if deps.Audit != nil {
		opts = append(opts, WithAudit(deps.Audit))
	}
	return New(identity, deps.Channel, detectors, opts...)
}
