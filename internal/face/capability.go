package face

import (
	"context"

	"github.com/saturnino-fabrica-de-software/proctor/internal/provider"
)

// ProviderCapability runs inference through a provider.FaceProvider.
type ProviderCapability struct {
	Provider provider.FaceProvider
}

// Estimate sends the encoded frame to the provider.
func (c ProviderCapability) Estimate(ctx context.Context, frame Frame) ([]Prediction, error) {
	faces, err := c.Provider.DetectFaces(ctx, frame.Data)
	if err != nil {
		return nil, err
	}

	predictions := make([]Prediction, len(faces))
	for i, f := range faces {
		predictions[i] = Prediction{
			BoundingBox: BoundingBox{
				X:      f.BoundingBox.X,
				Y:      f.BoundingBox.Y,
				Width:  f.BoundingBox.Width,
				Height: f.BoundingBox.Height,
			},
			Confidence: f.Confidence,
		}
	}
	return predictions, nil
}

var _ Capability = ProviderCapability{}
