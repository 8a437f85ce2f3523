package provider

import (
	"context"
	"math"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// Embedder é o Embedding Gateway: extrai um embedding por face detectada.
//
// Extract returns zero, one or many detections; "no face" is an empty slice,
// never an error. Failures wrap domain.ErrInvalidImage when the backend
// rejects the bitmap and domain.ErrProviderUnavailable when it is
// unreachable, times out or answers with a malformed body. Implementations
// bound their own call duration.
type Embedder interface {
	Extract(ctx context.Context, image []byte) ([]Detection, error)
}

// HealthChecker is implemented by embedders backed by a remote service.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Detection is one face found in an image.
type Detection struct {
	Embedding  []float64   `json:"embedding"`
	Box        BoundingBox `json:"bounding_box"`
	Confidence float64     `json:"confidence"`
}

// BoundingBox represents the face area in the image
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ToBox converts the box to top/right/bottom/left pixel edges.
func (b BoundingBox) ToBox() domain.Box {
	return domain.Box{
		Top:    int(math.Round(b.Y)),
		Right:  int(math.Round(b.X + b.Width)),
		Bottom: int(math.Round(b.Y + b.Height)),
		Left:   int(math.Round(b.X)),
	}
}
