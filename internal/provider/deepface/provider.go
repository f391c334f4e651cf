package deepface

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"

	"github.com/saturnino-fabrica-de-software/proctor/internal/provider"
)

// Provider implements provider.FaceProvider using DeepFace API
type Provider struct {
	client *Client
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
	}
}

// DetectFaces detects faces in the image. Regions are ordered by confidence,
// unscored regions last.
func (p *Provider) DetectFaces(ctx context.Context, image []byte) ([]provider.DetectedFace, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	resp, err := p.client.Represent(ctx, dataURI(image))
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	faces := make([]provider.DetectedFace, 0, len(resp.Results))
	for _, result := range resp.Results {
		faces = append(faces, provider.DetectedFace{
			BoundingBox: provider.BoundingBox{
				X:      float64(result.FacialArea.X),
				Y:      float64(result.FacialArea.Y),
				Width:  float64(result.FacialArea.W),
				Height: float64(result.FacialArea.H),
			},
			Confidence: result.FaceConfidence,
		})
	}

	sort.SliceStable(faces, func(i, j int) bool {
		ci, cj := faces[i].Confidence, faces[j].Confidence
		switch {
		case ci == nil:
			return false
		case cj == nil:
			return true
		default:
			return *ci > *cj
		}
	})

	return faces, nil
}

// Ping reports whether the deepface API is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Health(ctx)
}

func dataURI(image []byte) string {
	return "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
}

var (
	_ provider.FaceProvider = (*Provider)(nil)
	_ provider.Pinger       = (*Provider)(nil)
)
