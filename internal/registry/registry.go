// Package registry holds the in-memory Identity Registry.
//
// Readers take an immutable Snapshot with a single atomic load and never
// block. Writers (Register, ReplaceAll) are serialized by a mutex and publish
// a new Snapshot when they finish, so a reader sees either the old or the new
// set of identities in full.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

var (
	ErrEmptyName      = errors.New("name is required")
	ErrEmptyEmbedding = errors.New("embedding is empty")
)

// Outcome describes a successful registration.
type Outcome struct {
	Identity domain.Identity
	// Templates is how many templates the name owns after this registration.
	Templates int
	Version   uint64
}

// ReplaceResult describes a ReplaceAll call.
type ReplaceResult struct {
	Accepted  int
	Skipped   int
	Version   uint64
	Dimension int
}

type Registry struct {
	mu        sync.Mutex
	current   atomic.Pointer[Snapshot]
	dimension int
	now       func() time.Time
}

// New creates an empty registry. A dimension of 0 pins the expected
// embedding length to the first template stored.
func New(dimension int) *Registry {
	r := &Registry{
		dimension: dimension,
		now:       time.Now,
	}
	r.current.Store(&Snapshot{dimension: dimension})
	return r
}

// Snapshot returns the current immutable view. O(1).
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Register stores a new template under name.
//
// Re-registering an existing name APPENDS a template; it never replaces the
// earlier ones, and the Matcher scores an identity by its best template.
// The embedding is copied, so callers may reuse their slice.
func (r *Registry) Register(name string, embedding []float64) (Outcome, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Outcome{}, domain.ErrValidationFailed.WithError(ErrEmptyName)
	}
	if len(embedding) == 0 {
		return Outcome{}, domain.ErrValidationFailed.WithError(ErrEmptyEmbedding)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	dimension := cur.dimension
	if dimension == 0 {
		dimension = len(embedding)
	}
	if len(embedding) != dimension {
		return Outcome{}, domain.ErrDimensionMismatch.WithError(
			fmt.Errorf("got %d values, registry expects %d", len(embedding), dimension))
	}

	identity := domain.Identity{
		ID:           uuid.NewString(),
		Name:         name,
		Embedding:    slices.Clone(embedding),
		RegisteredAt: r.now().UTC(),
	}

	// Older snapshots keep their own length, so appending into spare
	// capacity of the shared backing array is invisible to them.
	next := &Snapshot{
		version:    cur.version + 1,
		identities: append(cur.identities, identity),
		dimension:  dimension,
	}
	r.current.Store(next)

	return Outcome{
		Identity:  identity,
		Templates: next.TemplatesFor(name),
		Version:   next.version,
	}, nil
}

// ReplaceAll atomically swaps in a freshly fetched identity set. Records
// without a name or embedding, or whose length disagrees with the expected
// dimension, are skipped. The input order becomes the iteration order.
func (r *Registry) ReplaceAll(identities []domain.Identity) ReplaceResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	dimension := r.dimension
	accepted := make([]domain.Identity, 0, len(identities))
	for _, in := range identities {
		name := strings.TrimSpace(in.Name)
		if name == "" || len(in.Embedding) == 0 {
			continue
		}
		if dimension == 0 {
			dimension = len(in.Embedding)
		}
		if len(in.Embedding) != dimension {
			continue
		}

		id := in.ID
		if id == "" {
			id = uuid.NewString()
		}
		accepted = append(accepted, domain.Identity{
			ID:           id,
			Name:         name,
			Embedding:    slices.Clone(in.Embedding),
			RegisteredAt: in.RegisteredAt,
		})
	}

	next := &Snapshot{
		version:    r.current.Load().version + 1,
		identities: accepted,
		dimension:  dimension,
	}
	r.current.Store(next)

	return ReplaceResult{
		Accepted:  len(accepted),
		Skipped:   len(identities) - len(accepted),
		Version:   next.version,
		Dimension: dimension,
	}
}
