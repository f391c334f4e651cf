// Package face watches the candidate's camera and reports face_not_visible
// when no sufficiently confident face is found in a frame.
package face

import (
	"context"
	"time"
)

// BoundingBox is the detected face region in frame coordinates.
type BoundingBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Prediction is one face found by a Capability.
type Prediction struct {
	BoundingBox BoundingBox
	// Confidence is nil when the capability does not score detections.
	Confidence *float64
}

// Frame is one encoded video frame.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

// Capability runs face-presence inference. Estimate must honour ctx.
type Capability interface {
	Estimate(ctx context.Context, frame Frame) ([]Prediction, error)
}

// Loader produces a Capability. Loading may be slow and is done once.
type Loader interface {
	Load(ctx context.Context) (Capability, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (Capability, error)

func (f LoaderFunc) Load(ctx context.Context) (Capability, error) { return f(ctx) }

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, frame Frame) ([]Prediction, error)

func (f CapabilityFunc) Estimate(ctx context.Context, frame Frame) ([]Prediction, error) {
	return f(ctx, frame)
}

// Constraints selects which tracks to acquire.
type Constraints struct {
	Video bool
	Audio bool
}

// Track is one acquired media track.
type Track interface {
	Stop()
}

// MediaStream delivers frames from an acquired camera. Frames is closed when
// the stream ends.
type MediaStream interface {
	Frames() <-chan Frame
	// Ready reports whether the stream is producing real frames yet.
	Ready() bool
	Tracks() []Track
}

// MediaDevices acquires camera streams from the host.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, c Constraints) (MediaStream, error)
}

// Absent reports whether predictions mean nobody is in front of the camera:
// no faces at all, or a top prediction scored strictly below threshold. An
// unscored face counts as present.
func Absent(predictions []Prediction, threshold float64) bool {
	if len(predictions) == 0 {
		return true
	}
	top := predictions[0].Confidence
	return top != nil && *top < threshold
}
