package registrysync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// maxRegistryBody caps the registry payload read from the backend.
const maxRegistryBody = 64 << 20

// registrationDTO is one entry of the web backend's
// GET /api/face/registered response.
type registrationDTO struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	FaceEncoding []float64 `json:"faceEncoding"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// HTTPSource pulls registrations from the web backend.
type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// FetchIdentities returns the backend's registrations oldest first; the
// backend itself lists them newest first.
func (s *HTTPSource) FetchIdentities(ctx context.Context) ([]domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch registrations: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("registry backend returned status %d: %s", resp.StatusCode, string(body))
	}

	var dtos []registrationDTO
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRegistryBody)).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("decode registrations: %w", err)
	}

	sort.SliceStable(dtos, func(i, j int) bool {
		return dtos[i].RegisteredAt.Before(dtos[j].RegisteredAt)
	})

	identities := make([]domain.Identity, 0, len(dtos))
	for _, dto := range dtos {
		identities = append(identities, domain.Identity{
			ID:           dto.ID,
			Name:         dto.Name,
			Embedding:    dto.FaceEncoding,
			RegisteredAt: dto.RegisteredAt,
		})
	}
	return identities, nil
}
