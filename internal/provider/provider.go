package provider

import "context"

// FaceProvider detects faces in an encoded image (JPEG or PNG).
type FaceProvider interface {
	// DetectFaces returns every face found, best first. No face is an empty
	// slice, not an error.
	DetectFaces(ctx context.Context, image []byte) ([]DetectedFace, error)
}

// Pinger is implemented by providers that can check their backend is usable
// before the first frame arrives.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DetectedFace represents a detected face in the image
type DetectedFace struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	// Confidence is in [0, 1]; nil when the backend does not score detections.
	Confidence *float64 `json:"confidence,omitempty"`
}

// BoundingBox represents the face area in the image
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Score is a convenience for building a DetectedFace confidence.
func Score(v float64) *float64 {
	return &v
}
