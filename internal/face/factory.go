package face

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider/rekognition"
)

// ProviderType defines supported face inference backends
type ProviderType string

const (
	// ProviderTypeDeepFace is the DeepFace HTTP API (self-hosted)
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeRekognition is AWS Rekognition DetectFaces
	ProviderTypeRekognition ProviderType = "rekognition"
	// ProviderTypeMock always finds a confident face (demos and tests)
	ProviderTypeMock ProviderType = "mock"
)

// NewProviderLoader returns a Loader for the configured backend. Building the
// provider and probing it happen in Load, so a slow or unavailable backend
// only affects the face monitor.
//
// Environment variables:
//   - FACE_PROVIDER: "deepface", "rekognition" or "mock" (default: "deepface")
//   - DEEPFACE_URL: DeepFace API URL (default: "http://localhost:5005")
//   - AWS_REGION: AWS region for Rekognition (default: "us-east-1")
//   - AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY: via the AWS SDK credential chain
func NewProviderLoader(cfg *config.AgentConfig) (Loader, error) {
	var build func(ctx context.Context) (provider.FaceProvider, error)

	switch ProviderType(cfg.FaceProvider) {
	case ProviderTypeDeepFace, "":
		build = func(context.Context) (provider.FaceProvider, error) {
			return createDeepFaceProvider(cfg), nil
		}

	case ProviderTypeRekognition:
		build = func(ctx context.Context) (provider.FaceProvider, error) {
			return createRekognitionProvider(ctx, cfg)
		}

	case ProviderTypeMock:
		build = func(context.Context) (provider.FaceProvider, error) {
			return mock.New(), nil
		}

	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s, %s)",
			cfg.FaceProvider, ProviderTypeDeepFace, ProviderTypeRekognition, ProviderTypeMock)
	}

	return LoaderFunc(func(ctx context.Context) (Capability, error) {
		p, err := build(ctx)
		if err != nil {
			return nil, err
		}
		if pinger, ok := p.(provider.Pinger); ok {
			if err := pinger.Ping(ctx); err != nil {
				return nil, fmt.Errorf("ping %s provider: %w", cfg.FaceProvider, err)
			}
		}
		return ProviderCapability{Provider: p}, nil
	}), nil
}

// createRekognitionProvider creates an AWS Rekognition provider instance
func createRekognitionProvider(ctx context.Context, cfg *config.AgentConfig) (provider.FaceProvider, error) {
	rekogConfig := rekognition.DefaultConfig()
	if cfg.AWSRegion != "" {
		rekogConfig.Region = cfg.AWSRegion
	}

	prov, err := rekognition.NewProvider(ctx, rekogConfig)
	if err != nil {
		return nil, fmt.Errorf("create rekognition provider: %w", err)
	}

	return prov, nil
}

// createDeepFaceProvider creates a DeepFace provider instance
func createDeepFaceProvider(cfg *config.AgentConfig) provider.FaceProvider {
	deepfaceConfig := deepface.DefaultConfig()

	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceDetector != "" {
		deepfaceConfig.Detector = cfg.DeepFaceDetector
	}
	if cfg.DeepFaceTimeout > 0 {
		deepfaceConfig.Timeout = cfg.DeepFaceTimeout
	}
	if cfg.DeepFaceRetryCount >= 0 {
		deepfaceConfig.RetryCount = cfg.DeepFaceRetryCount
	}

	return deepface.NewProvider(deepfaceConfig)
}
