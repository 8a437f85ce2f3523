package registry

import (
	"sort"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// Snapshot is an immutable, versioned view of the registry. Templates are
// kept in registration order, which is the Matcher's tie-break order.
// Embeddings returned by At and Identities are shared and must not be modified.
type Snapshot struct {
	version    uint64
	identities []domain.Identity
	dimension  int
}

func (s *Snapshot) Version() uint64 { return s.version }

// Len is the number of templates.
func (s *Snapshot) Len() int { return len(s.identities) }

func (s *Snapshot) IsEmpty() bool { return len(s.identities) == 0 }

// Dimension is the expected embedding length, 0 while still unpinned.
func (s *Snapshot) Dimension() int { return s.dimension }

// At returns the i-th template.
func (s *Snapshot) At(i int) domain.Identity { return s.identities[i] }

// Identities returns the templates in registration order.
func (s *Snapshot) Identities() []domain.Identity {
	out := make([]domain.Identity, len(s.identities))
	copy(out, s.identities)
	return out
}

// TemplatesFor counts the templates stored under name.
func (s *Snapshot) TemplatesFor(name string) int {
	n := 0
	for i := range s.identities {
		if s.identities[i].Name == name {
			n++
		}
	}
	return n
}

// Summaries groups templates by name, most recently registered first.
func (s *Snapshot) Summaries() []domain.IdentitySummary {
	index := make(map[string]int)
	summaries := make([]domain.IdentitySummary, 0)

	for _, id := range s.identities {
		i, ok := index[id.Name]
		if !ok {
			index[id.Name] = len(summaries)
			summaries = append(summaries, domain.IdentitySummary{
				Name:         id.Name,
				Templates:    1,
				RegisteredAt: id.RegisteredAt,
			})
			continue
		}
		summaries[i].Templates++
		if id.RegisteredAt.After(summaries[i].RegisteredAt) {
			summaries[i].RegisteredAt = id.RegisteredAt
		}
	}

	sort.SliceStable(summaries, func(a, b int) bool {
		return summaries[a].RegisteredAt.After(summaries[b].RegisteredAt)
	})
	return summaries
}
