// Package similarity implements the in-memory cluster-representative index
// for near-duplicate detection. Each new vector is compared against cluster
// representatives only, bounding cost to O(N*K) where K is the cluster count.
package similarity

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/corpustools/dedup/internal/core/domain"
)

type representative struct {
	position int64
	vector   []float32
}

// Index holds one L2-normalized anchor vector per cluster. Assign must stay
// serialized across callers: creating a cluster changes what later documents
// are compared against, so assignment is order-sensitive by design. The
// internal mutex makes concurrent use safe, not reordering-safe.
type Index struct {
	threshold float64

	mu   sync.Mutex
	reps []representative
}

func NewIndex(threshold float64) *Index {
	return &Index{threshold: threshold}
}

// Assign compares vector against every representative and either joins the
// best cluster at or above the threshold or founds a new one. Ties between
// equally similar clusters resolve to the lowest cluster id, which is the
// earliest-founded cluster.
func (x *Index) Assign(_ context.Context, position int64, vector []float32) (domain.Assignment, error) {
	unit, err := normalizeL2(vector)
	if err != nil {
		return domain.Assignment{}, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	best := -1
	bestSim := math.Inf(-1)
	for i, rep := range x.reps {
		sim := dot(unit, rep.vector)
		if sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	comparisons := len(x.reps)

	if best >= 0 && bestSim >= x.threshold {
		return domain.Assignment{
			ClusterID:   best,
			Similarity:  clamp01(bestSim),
			Comparisons: comparisons,
		}, nil
	}

	x.reps = append(x.reps, representative{position: position, vector: unit})
	return domain.Assignment{
		ClusterID:   len(x.reps) - 1,
		Similarity:  1.0,
		Founded:     true,
		Comparisons: comparisons,
	}, nil
}

// Len returns the current cluster count.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.reps)
}

// normalizeL2 scales the vector to unit length once on insertion so that
// cosine similarity reduces to a dot product afterwards.
func normalizeL2(vector []float32) ([]float32, error) {
	if len(vector) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingProvider, "normalize vector", fmt.Errorf("empty vector"))
	}
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingProvider, "normalize vector", fmt.Errorf("zero vector"))
	}
	norm := math.Sqrt(sum)
	unit := make([]float32, len(vector))
	for i, v := range vector {
		unit[i] = float32(float64(v) / norm)
	}
	return unit, nil
}

func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(-1)
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
