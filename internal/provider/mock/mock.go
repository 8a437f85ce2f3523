package mock

import (
	"context"
	"crypto/sha256"
	"math"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
)

// DefaultDimension matches the embedding size of dlib's ResNet model.
const DefaultDimension = 128

// minImageSize abaixo disso a imagem é tratada como inválida
const minImageSize = 64

// Provider implementa provider.Embedder para testes e desenvolvimento.
// Cada imagem produz exatamente uma face com embedding derivado do hash,
// então a mesma imagem sempre casa consigo mesma.
type Provider struct {
	dimension int
}

// New cria uma nova instância do MockProvider
func New(dimension int) *Provider {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Provider{dimension: dimension}
}

// Extract gera uma detecção determinística baseada no hash da imagem
func (p *Provider) Extract(ctx context.Context, image []byte) ([]provider.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(image) < minImageSize {
		return nil, domain.ErrInvalidImage
	}

	return []provider.Detection{
		{
			Embedding: generateEmbedding(image, p.dimension),
			Box: provider.BoundingBox{
				X:      10,
				Y:      10,
				Width:  100,
				Height: 100,
			},
			Confidence: 0.99,
		},
	}, nil
}

// Ping always succeeds.
func (p *Provider) Ping(ctx context.Context) error {
	return nil
}

// generateEmbedding gera embedding determinístico baseado no hash da imagem
func generateEmbedding(image []byte, dimension int) []float64 {
	hash := sha256.Sum256(image)
	embedding := make([]float64, dimension)
	hashLen := len(hash)

	for i := 0; i < dimension; i++ {
		idx := i % hashLen
		//nolint:gosec // idx is always < hashLen due to modulo operation
		embedding[i] = (float64(hash[idx])/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return embedding
	}

	for i := range embedding {
		embedding[i] /= norm
	}

	return embedding
}

var (
	_ provider.Embedder      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
)
