// Package matcher resolves a query embedding to the nearest registered identity.
package matcher

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registry"
)

// DefaultThreshold is the cosine distance calibrated for VGG-Face.
const DefaultThreshold = 0.3

// Result is the outcome of matching one query embedding.
type Result struct {
	Name       string
	IdentityID string
	// Distance to the best template, MaxDistance when the snapshot is empty.
	Distance   float64
	Confidence float64
	// Template is the snapshot index of the winning template, -1 if none.
	Template int
}

func (r Result) Known() bool {
	return r.Name != domain.UnknownName
}

// Match scans every template in snap and accepts the nearest one when its
// distance is strictly below threshold. An identity scores as its best
// template; exact ties go to the template registered first.
func Match(query []float64, snap *registry.Snapshot, threshold float64) Result {
	best, bestDist := -1, MaxDistance
	if snap != nil {
		for i := 0; i < snap.Len(); i++ {
			if d := CosineDistance(query, snap.At(i).Embedding); d < bestDist {
				best, bestDist = i, d
			}
		}
	}
	return decide(snap, best, bestDist, threshold)
}

func decide(snap *registry.Snapshot, best int, dist, threshold float64) Result {
	if best < 0 || dist >= threshold {
		return Result{
			Name:     domain.UnknownName,
			Distance: dist,
			Template: best,
		}
	}

	identity := snap.At(best)
	return Result{
		Name:       identity.Name,
		IdentityID: identity.ID,
		Distance:   dist,
		Confidence: 1 - dist,
		Template:   best,
	}
}

type Mode string

const (
	ModeLinear Mode = "linear"
	ModeHNSW   Mode = "hnsw"
)

type Options struct {
	Threshold float64
	Mode      Mode
	// IndexMinTemplates is the registry size from which the HNSW index is used.
	IndexMinTemplates int
}

// Matcher applies a fixed threshold and, in ModeHNSW, narrows large
// snapshots through an approximate index before rescoring exactly.
type Matcher struct {
	opts   Options
	logger *slog.Logger

	index    atomic.Pointer[Index]
	building sync.Mutex
}

func New(opts Options, logger *slog.Logger) *Matcher {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Mode == "" {
		opts.Mode = ModeLinear
	}
	return &Matcher{opts: opts, logger: logger}
}

func (m *Matcher) Threshold() float64 {
	return m.opts.Threshold
}

// Match resolves query against snap. When the index for snap is not built
// yet, a build starts in the background and this call falls back to the
// exact linear scan. An index answer of Unknown is always confirmed by the
// exact scan, so the index can only speed up acceptance, never reject.
func (m *Matcher) Match(query []float64, snap *registry.Snapshot) Result {
	if !m.useIndex(snap) {
		return Match(query, snap, m.opts.Threshold)
	}

	idx := m.index.Load()
	if idx == nil || idx.Version() != snap.Version() {
		go m.buildInBackground(snap)
		return Match(query, snap, m.opts.Threshold)
	}

	best, dist := idx.Nearest(query)
	if result := decide(snap, best, dist, m.opts.Threshold); result.Known() {
		return result
	}
	return Match(query, snap, m.opts.Threshold)
}

func (m *Matcher) buildInBackground(snap *registry.Snapshot) {
	defer func() {
		if r := recover(); r != nil && m.logger != nil {
			m.logger.Error("match index build panicked",
				slog.Any("panic", r),
				slog.Uint64("version", snap.Version()),
			)
		}
	}()
	m.BuildIndex(snap)
}

// BuildIndex builds and publishes the index for snap. Concurrent calls for
// the same version build it once.
func (m *Matcher) BuildIndex(snap *registry.Snapshot) {
	if !m.building.TryLock() {
		return
	}
	defer m.building.Unlock()

	if idx := m.index.Load(); idx != nil && idx.Version() >= snap.Version() {
		return
	}

	idx := NewIndex(snap)
	m.index.Store(idx)
	if m.logger != nil {
		m.logger.Debug("match index built",
			slog.Uint64("version", snap.Version()),
			slog.Int("templates", idx.Len()),
		)
	}
}

func (m *Matcher) useIndex(snap *registry.Snapshot) bool {
	return m.opts.Mode == ModeHNSW && snap != nil && snap.Len() >= m.opts.IndexMinTemplates && snap.Len() > 0
}
