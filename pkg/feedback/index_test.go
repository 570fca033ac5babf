package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetutor/casetutor/pkg/errors"
)

func TestIndexSearchNearest(t *testing.T) {
	idx := NewIndex[string]()
	require.NoError(t, idx.Build([][]float32{
		{0, 0},
		{1, 0},
		{0, 3},
	}, []string{"origin", "right", "up"}))

	hits := idx.Search([]float32{0.1, 0}, 2)
	require.Len(t, hits, 2)
	assert.Equal(t, "origin", hits[0].Payload)
	assert.Equal(t, "right", hits[1].Payload)
	assert.Less(t, hits[0].Distance, hits[1].Distance)
}

func TestIndexSelfMatchAtZeroDistance(t *testing.T) {
	idx := NewIndex[string]()
	require.NoError(t, idx.Build([][]float32{{1, 2, 3}}, []string{"a"}))

	hits := idx.Search([]float32{1, 2, 3}, 1)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].Payload)
	assert.Zero(t, hits[0].Distance)
}

func TestIndexEmptySafe(t *testing.T) {
	idx := NewIndex[string]()
	assert.Nil(t, idx.Search([]float32{1, 2}, 3))
	assert.Zero(t, idx.Len())

	require.NoError(t, idx.Build(nil, nil))
	assert.Nil(t, idx.Search([]float32{1, 2}, 3))
}

func TestIndexTieBreaksByRowID(t *testing.T) {
	idx := NewIndex[string]()
	// Two rows equidistant from the query.
	require.NoError(t, idx.Build([][]float32{
		{1, 0},
		{-1, 0},
		{5, 5},
	}, []string{"first", "second", "far"}))

	for i := 0; i < 10; i++ {
		hits := idx.Search([]float32{0, 0}, 2)
		require.Len(t, hits, 2)
		assert.Equal(t, "first", hits[0].Payload)
		assert.Equal(t, "second", hits[1].Payload)
	}
}

func TestIndexKClamped(t *testing.T) {
	idx := NewIndex[int]()
	require.NoError(t, idx.Build([][]float32{{1}, {2}}, []int{10, 20}))

	assert.Len(t, idx.Search([]float32{0}, 100), 2)
	assert.Nil(t, idx.Search([]float32{0}, 0))
	assert.Nil(t, idx.Search([]float32{0}, -1))
}

func TestIndexDimensionMismatch(t *testing.T) {
	idx := NewIndex[string]()
	require.NoError(t, idx.Build([][]float32{{1, 2}}, []string{"a"}))

	assert.Nil(t, idx.Search([]float32{1, 2, 3}, 1))
}

func TestIndexBuildValidation(t *testing.T) {
	idx := NewIndex[string]()

	err := idx.Build([][]float32{{1}}, []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, errors.Validation, errors.CodeOf(err))

	err = idx.Build([][]float32{{1, 2}, {1}}, []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, errors.Validation, errors.CodeOf(err))
}

func TestIndexBuildReplacesAndFailureKeepsOld(t *testing.T) {
	idx := NewIndex[string]()
	require.NoError(t, idx.Build([][]float32{{0}}, []string{"old"}))

	// A failed build leaves the previous contents live.
	require.Error(t, idx.Build([][]float32{{0}, {1, 2}}, []string{"x", "y"}))
	hits := idx.Search([]float32{0}, 1)
	require.Len(t, hits, 1)
	assert.Equal(t, "old", hits[0].Payload)

	require.NoError(t, idx.Build([][]float32{{0}}, []string{"new"}))
	hits = idx.Search([]float32{0}, 1)
	require.Len(t, hits, 1)
	assert.Equal(t, "new", hits[0].Payload)
}

func TestIndexCopiesVectors(t *testing.T) {
	idx := NewIndex[string]()
	vec := []float32{1, 1}
	require.NoError(t, idx.Build([][]float32{vec}, []string{"a"}))

	// Mutating the caller's slice must not affect the snapshot.
	vec[0] = 100
	hits := idx.Search([]float32{1, 1}, 1)
	require.Len(t, hits, 1)
	assert.Zero(t, hits[0].Distance)
}
