package matcher

import (
	"math/rand"

	"github.com/coder/hnsw"

	"github.com/saturnino-fabrica-de-software/facestream/internal/registry"
)

const (
	// indexMaxNeighbors (M) is the maximum number of neighbors per node.
	indexMaxNeighbors = 16
	// indexEfSearch is the search candidate pool size.
	indexEfSearch = 200
	// indexCandidates are rescored exactly after the approximate search.
	indexCandidates = 64
)

// Index is an HNSW graph over one snapshot version. Keys are template
// indexes in the snapshot, so exact rescoring and tie-breaks use the
// snapshot's own ordering.
type Index struct {
	snap  *registry.Snapshot
	graph *hnsw.Graph[int]
	size  int
}

// NewIndex builds the graph. Zero-norm templates are left out; they can
// never match anyway. Node levels are drawn from a generator seeded with the
// snapshot version instead of the clock.
//
// The graph search is greedy and may miss the true nearest template. Callers
// must not treat a miss as a rejection (see Matcher.Match).
func NewIndex(snap *registry.Snapshot) *Index {
	g := hnsw.NewGraph[int]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.EfSearch = indexEfSearch
	g.Distance = hnsw.CosineDistance
	//nolint:gosec // level assignment, not security sensitive
	g.Rng = rand.New(rand.NewSource(int64(snap.Version())))

	size := 0
	for i := 0; i < snap.Len(); i++ {
		embedding := snap.At(i).Embedding
		if len(embedding) == 0 || isZero(embedding) {
			continue
		}
		g.Add(hnsw.MakeNode(i, toFloat32(embedding)))
		size++
	}

	return &Index{snap: snap, graph: g, size: size}
}

func (x *Index) Version() uint64 { return x.snap.Version() }

func (x *Index) Len() int { return x.size }

// Nearest returns the snapshot index and exact distance of the closest
// candidate, or -1 and MaxDistance.
func (x *Index) Nearest(query []float64) (int, float64) {
	best, bestDist := -1, MaxDistance
	if x.size == 0 || len(query) != x.snap.Dimension() || isZero(query) {
		return best, bestDist
	}

	for _, n := range x.graph.Search(toFloat32(query), indexCandidates) {
		d := CosineDistance(query, x.snap.At(n.Key).Embedding)
		if d < bestDist || (d == bestDist && n.Key < best) {
			best, bestDist = n.Key, d
		}
	}
	return best, bestDist
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
