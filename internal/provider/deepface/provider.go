package deepface

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
)

// Provider implements provider.Embedder using DeepFace API
type Provider struct {
	client        *Client
	minConfidence float64
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	return &Provider{
		client:        NewClient(config),
		minConfidence: config.MinConfidence,
	}
}

// Extract returns one detection per face DeepFace found. Results below the
// configured face confidence are the whole-image placeholders DeepFace emits
// when enforce_detection is off, so they are dropped.
func (p *Provider) Extract(ctx context.Context, image []byte) ([]provider.Detection, error) {
	imageBase64 := base64.StdEncoding.EncodeToString(image)

	resp, err := p.client.Represent(ctx, imageBase64)
	if err != nil {
		return nil, mapError(err)
	}

	detections := make([]provider.Detection, 0, len(resp.Results))
	for _, result := range resp.Results {
		if result.FaceConfidence < p.minConfidence {
			continue
		}
		if len(result.Embedding) == 0 {
			return nil, domain.ErrProviderUnavailable.WithError(
				fmt.Errorf("%w: result without embedding", ErrInvalidResponse))
		}

		detections = append(detections, provider.Detection{
			Embedding: result.Embedding,
			Box: provider.BoundingBox{
				X:      float64(result.FacialArea.X),
				Y:      float64(result.FacialArea.Y),
				Width:  float64(result.FacialArea.W),
				Height: float64(result.FacialArea.H),
			},
			Confidence: result.FaceConfidence,
		})
	}

	return detections, nil
}

// Ping checks that the DeepFace API answers.
func (p *Provider) Ping(ctx context.Context) error {
	if err := p.client.Health(ctx); err != nil {
		return domain.ErrProviderUnavailable.WithError(err)
	}
	return nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidImageFormat):
		return domain.ErrInvalidImage.WithError(err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return domain.ErrProviderUnavailable.WithError(err)
	}
}

var (
	_ provider.Embedder      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
)
