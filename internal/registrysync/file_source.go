package registrysync

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// FileSource reads a YAML seed file:
//
//	identities:
//	  - name: Alice
//	    registered_at: 2024-05-01T12:00:00Z
//	    embedding: [0.12, -0.03, ...]
type FileSource struct {
	path string
}

type seedFile struct {
	Identities []seedIdentity `yaml:"identities"`
}

type seedIdentity struct {
	ID           string    `yaml:"id"`
	Name         string    `yaml:"name"`
	Embedding    []float64 `yaml:"embedding"`
	RegisteredAt time.Time `yaml:"registered_at"`
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// FetchIdentities re-reads the file on every call, in file order.
func (s *FileSource) FetchIdentities(ctx context.Context) ([]domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse registry file %s: %w", s.path, err)
	}

	identities := make([]domain.Identity, 0, len(seed.Identities))
	for _, in := range seed.Identities {
		identities = append(identities, domain.Identity{
			ID:           in.ID,
			Name:         in.Name,
			Embedding:    in.Embedding,
			RegisteredAt: in.RegisteredAt,
		})
	}
	return identities, nil
}
