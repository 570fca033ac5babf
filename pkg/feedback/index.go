package feedback

import (
	"sort"
	"sync"

	"github.com/casetutor/casetutor/pkg/errors"
)

// Hit is one nearest-neighbor search result.
type Hit[T any] struct {
	Payload  T
	Distance float64
}

// Index is an in-memory nearest-neighbor index over fixed-dimension
// vectors with opaque payloads. The distance metric is squared Euclidean
// over the raw vectors.
//
// The index is rebuilt wholesale, never mutated in place: Build assembles a
// complete immutable snapshot and swaps it in atomically, so concurrent
// Search calls never observe a half-built index and row ids never drift.
type Index[T any] struct {
	mu   sync.RWMutex
	snap *snapshot[T]
}

type snapshot[T any] struct {
	dim      int
	vectors  [][]float32
	payloads []T
}

// NewIndex creates an empty index.
func NewIndex[T any]() *Index[T] {
	return &Index[T]{}
}

// Build replaces the entire index. It fails with a Validation error when
// vector and payload counts differ or vectors have inconsistent lengths;
// on failure the previous contents remain live.
func (idx *Index[T]) Build(vectors [][]float32, payloads []T) error {
	if len(vectors) != len(payloads) {
		return errors.WithFields(
			errors.New(errors.Validation, "vector and payload counts differ"),
			errors.Fields{"vectors": len(vectors), "payloads": len(payloads)},
		)
	}

	snap := &snapshot[T]{
		vectors:  make([][]float32, len(vectors)),
		payloads: make([]T, len(payloads)),
	}
	for i, v := range vectors {
		if i == 0 {
			snap.dim = len(v)
		} else if len(v) != snap.dim {
			return errors.WithFields(
				errors.New(errors.Validation, "inconsistent vector dimension"),
				errors.Fields{"row": i, "want": snap.dim, "got": len(v)},
			)
		}
		vc := make([]float32, len(v))
		copy(vc, v)
		snap.vectors[i] = vc
	}
	copy(snap.payloads, payloads)

	idx.mu.Lock()
	idx.snap = snap
	idx.mu.Unlock()
	return nil
}

// Search returns up to k nearest payloads to query, closest first. Ties in
// distance break by ascending row id, so repeated queries against an
// unchanged index are reproducible. A never-built or empty index, a
// non-positive k, or a query of the wrong dimension all yield an empty
// result, never an error.
func (idx *Index[T]) Search(query []float32, k int) []Hit[T] {
	idx.mu.RLock()
	snap := idx.snap
	idx.mu.RUnlock()

	if snap == nil || len(snap.vectors) == 0 || k <= 0 || len(query) != snap.dim {
		return nil
	}

	rows := make([]int, len(snap.vectors))
	dists := make([]float64, len(snap.vectors))
	for i, v := range snap.vectors {
		rows[i] = i
		dists[i] = squaredEuclidean(query, v)
	}
	sort.SliceStable(rows, func(a, b int) bool {
		ra, rb := rows[a], rows[b]
		if dists[ra] != dists[rb] {
			return dists[ra] < dists[rb]
		}
		return ra < rb
	})

	if k > len(rows) {
		k = len(rows)
	}
	hits := make([]Hit[T], k)
	for i := 0; i < k; i++ {
		hits[i] = Hit[T]{Payload: snap.payloads[rows[i]], Distance: dists[rows[i]]}
	}
	return hits
}

// Len returns the number of indexed rows.
func (idx *Index[T]) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.snap == nil {
		return 0
	}
	return len(idx.snap.vectors)
}

func squaredEuclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
