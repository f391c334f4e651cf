package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/saturnino-fabrica-de-software/proctor/internal/provider"
)

// ErrEmptyImage is returned for a zero-length frame.
var ErrEmptyImage = errors.New("empty image")

// Step is one scripted DetectFaces result.
type Step struct {
	Faces []provider.DetectedFace
	Err   error
}

// Present is a step with one face scored at confidence.
func Present(confidence float64) Step {
	return Step{Faces: []provider.DetectedFace{{
		BoundingBox: provider.BoundingBox{X: 0.1, Y: 0.1, Width: 0.8, Height: 0.8},
		Confidence:  provider.Score(confidence),
	}}}
}

// Unscored is a step with one face and no confidence.
func Unscored() Step {
	return Step{Faces: []provider.DetectedFace{{
		BoundingBox: provider.BoundingBox{X: 0.1, Y: 0.1, Width: 0.8, Height: 0.8},
	}}}
}

// Absent is a step with no faces.
func Absent() Step {
	return Step{Faces: []provider.DetectedFace{}}
}

// Provider replays a script of results, repeating the last step once the
// script runs out. An empty script always finds one confident face.
type Provider struct {
	mu     sync.Mutex
	script []Step
	calls  int
}

func New(script ...Step) *Provider {
	return &Provider{script: script}
}

// DetectFaces returns the next scripted step.
func (p *Provider) DetectFaces(ctx context.Context, image []byte) ([]provider.DetectedFace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if len(p.script) == 0 {
		return Present(0.99).Faces, nil
	}

	i := p.calls - 1
	if i >= len(p.script) {
		i = len(p.script) - 1
	}
	step := p.script[i]
	return step.Faces, step.Err
}

// Calls returns how many times DetectFaces reached the script.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var _ provider.FaceProvider = (*Provider)(nil)
