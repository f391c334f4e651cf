package rekognition

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/proctor/internal/provider"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100
)

// Provider implements provider.FaceProvider using AWS Rekognition DetectFaces.
// Rekognition scores detections in percent; the provider reports [0, 1].
type Provider struct {
	api DetectFacesAPI
}

// Ensure Provider implements provider.FaceProvider interface at compile time
var _ provider.FaceProvider = (*Provider)(nil)

// NewProvider creates a provider backed by a real Rekognition client.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}
	return NewProviderWithAPI(client), nil
}

// NewProviderWithAPI wraps any DetectFacesAPI, typically a test double.
func NewProviderWithAPI(api DetectFacesAPI) *Provider {
	return &Provider{api: api}
}

// validateImage checks if image data is valid for Rekognition processing
func validateImage(image []byte) error {
	if len(image) == 0 {
		return ErrInvalidImage
	}
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrInvalidImage, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(image), maxImageSize)
	}
	return nil
}

// DetectFaces detects faces in an image using AWS Rekognition DetectFaces API
// Returns an empty slice if no faces are detected (not an error)
func (p *Provider) DetectFaces(ctx context.Context, image []byte) ([]provider.DetectedFace, error) {
	if err := validateImage(image); err != nil {
		return nil, err
	}

	output, err := p.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: image},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", classifyError(err))
	}

	faces := make([]provider.DetectedFace, 0, len(output.FaceDetails))
	for _, detail := range output.FaceDetails {
		face := provider.DetectedFace{}
		if box := detail.BoundingBox; box != nil {
			face.BoundingBox = provider.BoundingBox{
				X:      float64(deref(box.Left)),
				Y:      float64(deref(box.Top)),
				Width:  float64(deref(box.Width)),
				Height: float64(deref(box.Height)),
			}
		}
		if detail.Confidence != nil {
			face.Confidence = provider.Score(float64(*detail.Confidence) / 100)
		}
		faces = append(faces, face)
	}

	sort.SliceStable(faces, func(i, j int) bool {
		return confidence(faces[i]) > confidence(faces[j])
	})

	return faces, nil
}

func confidence(f provider.DetectedFace) float64 {
	if f.Confidence == nil {
		return -1
	}
	return *f.Confidence
}

func deref(v *float32) float32 {
	if v == nil {
		return 0
	}
	return *v
}
