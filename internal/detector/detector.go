// Package detector implements the browser-signal detectors: idleness, focus
// loss, clipboard gestures and the context menu. Every detector, including the
// face monitor in package face, satisfies Detector so the reporter can hold
// them as an opaque set.
package detector

import (
	"context"
	"errors"

	"github.com/saturnino-fabrica-de-software/proctor/internal/violation"
)

// Report is the single upward callback a detector uses to raise a violation.
type Report func(violation.Type)

// Detector watches one signal source and reports violations until stopped.
// Stop must be idempotent and safe to call before or without Start.
type Detector interface {
	Name() string
	Start(ctx context.Context, report Report) error
	Stop()
}

var (
	// ErrNoSource is returned by Start when a detector was built without a signal source.
	ErrNoSource = errors.New("detector has no signal source")

	// ErrAlreadyStarted is returned when Start is called twice without Stop.
	ErrAlreadyStarted = errors.New("detector already started")
)
