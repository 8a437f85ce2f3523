package face

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/facestream/internal/config"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider/dlib"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider/mock"
)

// ProviderType defines supported embedding provider types
type ProviderType string

const (
	// ProviderTypeDeepFace is a DeepFace REST backend
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeDlib runs dlib in-process (requires -tags dlib)
	ProviderTypeDlib ProviderType = "dlib"
	// ProviderTypeMock is the deterministic hash-based embedder for development
	ProviderTypeMock ProviderType = "mock"
)

// NewEmbedder creates the Embedding Gateway selected by PROVIDER_TYPE.
//
// With PROVIDER_STARTUP_CHECK enabled, embedders that implement
// provider.HealthChecker are probed once; a failing probe is fatal.
func NewEmbedder(ctx context.Context, cfg *config.Config) (provider.Embedder, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.ProviderStartupCheck {
		if hc, ok := embedder.(provider.HealthChecker); ok {
			pingCtx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
			defer cancel()
			if err := hc.Ping(pingCtx); err != nil {
				return nil, fmt.Errorf("%s provider startup check: %w", cfg.ProviderType, err)
			}
		}
	}

	return embedder, nil
}

func newEmbedder(cfg *config.Config) (provider.Embedder, error) {
	switch ProviderType(cfg.ProviderType) {
	case ProviderTypeDeepFace, "":
		return createDeepFaceProvider(cfg), nil

	case ProviderTypeDlib:
		p, err := dlib.New(cfg.DlibModelsDir, cfg.ProviderTimeout)
		if err != nil {
			return nil, fmt.Errorf("create dlib provider: %w", err)
		}
		return p, nil

	case ProviderTypeMock:
		return mock.New(cfg.EmbeddingDimension), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s, %s)",
			cfg.ProviderType, ProviderTypeDeepFace, ProviderTypeDlib, ProviderTypeMock)
	}
}

// createDeepFaceProvider creates a DeepFace provider instance
func createDeepFaceProvider(cfg *config.Config) *deepface.Provider {
	deepfaceConfig := deepface.DefaultConfig()

	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceModel != "" {
		deepfaceConfig.Model = cfg.DeepFaceModel
	}
	if cfg.DeepFaceDetector != "" {
		deepfaceConfig.Detector = cfg.DeepFaceDetector
	}
	if cfg.ProviderTimeout > 0 {
		deepfaceConfig.Timeout = cfg.ProviderTimeout
	}
	if cfg.ProviderRetryBackoff > 0 {
		deepfaceConfig.RetryBackoff = cfg.ProviderRetryBackoff
	}
	deepfaceConfig.RetryCount = cfg.ProviderRetryCount
	deepfaceConfig.MinConfidence = cfg.MinFaceConfidence

	return deepface.NewProvider(deepfaceConfig)
}
