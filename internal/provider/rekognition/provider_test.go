package rekognition

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func fakeImageData() []byte {
	return make([]byte, 2048)
}

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	assert.Equal(t, "us-east-1", DefaultConfig().Region)
}

func TestDetectFaces_NormalizesAndOrders(t *testing.T) {
	mock := &mockRekognitionAPI{
		detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			require.NotNil(t, params.Image)
			assert.Len(t, params.Image.Bytes, 2048)
			assert.Equal(t, []types.Attribute{types.AttributeDefault}, params.Attributes)

			return &rekognition.DetectFacesOutput{
				FaceDetails: []types.FaceDetail{
					{
						BoundingBox: &types.BoundingBox{Left: ptr(float32(0.5)), Top: ptr(float32(0.1)), Width: ptr(float32(0.2)), Height: ptr(float32(0.3))},
						Confidence:  ptr(float32(42)),
					},
					{
						BoundingBox: &types.BoundingBox{Left: ptr(float32(0.1)), Top: ptr(float32(0.1)), Width: ptr(float32(0.4)), Height: ptr(float32(0.5))},
						Confidence:  ptr(float32(99.5)),
					},
				},
			}, nil
		},
	}

	faces, err := NewProviderWithAPI(mock).DetectFaces(context.Background(), fakeImageData())

	require.NoError(t, err)
	require.Len(t, faces, 2)
	require.NotNil(t, faces[0].Confidence)
	assert.InDelta(t, 0.995, *faces[0].Confidence, 1e-6)
	assert.InDelta(t, 0.1, faces[0].BoundingBox.X, 1e-6)
	assert.InDelta(t, 0.4, faces[0].BoundingBox.Width, 1e-6)
	assert.InDelta(t, 0.42, *faces[1].Confidence, 1e-6)
}

func TestDetectFaces_NoFaces(t *testing.T) {
	faces, err := NewProviderWithAPI(&mockRekognitionAPI{}).DetectFaces(context.Background(), fakeImageData())

	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestDetectFaces_MissingFields(t *testing.T) {
	mock := &mockRekognitionAPI{
		detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			return &rekognition.DetectFacesOutput{FaceDetails: []types.FaceDetail{{}}}, nil
		},
	}

	faces, err := NewProviderWithAPI(mock).DetectFaces(context.Background(), fakeImageData())

	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Nil(t, faces[0].Confidence)
	assert.Zero(t, faces[0].BoundingBox.Width)
}

func TestDetectFaces_APIErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{
			name:    "access denied",
			err:     &smithy.GenericAPIError{Code: errCodeAccessDenied, Message: "denied"},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "bad image",
			err:     &smithy.GenericAPIError{Code: errCodeInvalidImageFormat, Message: "not an image"},
			wantErr: ErrInvalidImage,
		},
		{
			name:    "throttled",
			err:     &smithy.GenericAPIError{Code: errCodeThrottling, Message: "slow down"},
			wantErr: ErrThrottled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockRekognitionAPI{
				detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
					return nil, tt.err
				},
			}

			_, err := NewProviderWithAPI(mock).DetectFaces(context.Background(), fakeImageData())

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDetectFaces_UnknownErrorPassesThrough(t *testing.T) {
	boom := errors.New("connection reset")
	mock := &mockRekognitionAPI{
		detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
			return nil, boom
		},
	}

	_, err := NewProviderWithAPI(mock).DetectFaces(context.Background(), fakeImageData())

	assert.ErrorIs(t, err, boom)
}

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name        string
		image       []byte
		wantContain string
	}{
		{"empty", []byte{}, ""},
		{"too small", make([]byte, 50), "too small"},
		{"too large", make([]byte, 6*1024*1024), "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockRekognitionAPI{}

			_, err := NewProviderWithAPI(mock).DetectFaces(context.Background(), tt.image)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidImage)
			assert.Contains(t, err.Error(), tt.wantContain)
			assert.Zero(t, mock.calls)
		})
	}
}
