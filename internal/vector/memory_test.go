package vector

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T, dim int, entries map[string][]float64, order ...string) *MemoryIndex {
	t.Helper()
	idx, err := NewMemoryIndex(dim)
	require.NoError(t, err)
	for _, id := range order {
		require.NoError(t, idx.Insert(id, entries[id]))
	}
	return idx
}

// storedIDs returns the ids in insertion order.
func storedIDs(m *MemoryIndex) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ids...)
}

// cached reports whether the dense matrix is currently built.
func cached(m *MemoryIndex) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matrix != nil
}

func TestNewMemoryIndex_InvalidDimension(t *testing.T) {
	_, err := NewMemoryIndex(0)
	assert.Error(t, err)
}

func TestMemoryIndex_InsertSearch(t *testing.T) {
	idx := newIndex(t, 3, map[string][]float64{
		"a": {1, 0, 0},
		"b": {0.9, 0.1, 0},
		"c": {0, 1, 0},
	}, "a", "b", "c")
	assert.Equal(t, 3, idx.Size())

	results, err := idx.Search(context.Background(), []float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestMemoryIndex_EmptySearch(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	results, err := idx.Search(context.Background(), []float64{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryIndex_EmptySearchIgnoresQueryLength(t *testing.T) {
	idx, _ := NewMemoryIndex(4)
	results, err := idx.Search(context.Background(), []float64{1, 0}, 3)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	results, err = idx.Search(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryIndex_TopKBound(t *testing.T) {
	idx := newIndex(t, 2, map[string][]float64{
		"a": {1, 0}, "b": {0, 1}, "c": {1, 1},
	}, "a", "b", "c")
	ctx := context.Background()

	for k := 0; k <= 5; k++ {
		results, err := idx.Search(ctx, []float64{1, 0}, k)
		require.NoError(t, err)
		want := k
		if want > 3 {
			want = 3
		}
		assert.Len(t, results, want, "k=%d", k)
	}
}

func TestMemoryIndex_ScoresNonIncreasingAndDeterministic(t *testing.T) {
	idx := newIndex(t, 3, map[string][]float64{
		"a": {0.2, 0.5, 0.1},
		"b": {1, 0, 0},
		"c": {0.4, 0.4, 0.4},
		"d": {0, 0, 1},
		"e": {0.7, 0.1, 0.9},
	}, "a", "b", "c", "d", "e")
	ctx := context.Background()
	q := []float64{0.3, 0.2, 0.6}

	first, err := idx.Search(ctx, q, 5)
	require.NoError(t, err)
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].Score, first[i].Score)
	}
	for i := 0; i < 3; i++ {
		again, err := idx.Search(ctx, q, 5)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMemoryIndex_TieBreakByInsertionOrder(t *testing.T) {
	idx := newIndex(t, 2, map[string][]float64{
		"z": {1, 0},
		"y": {2, 0},
		"x": {0, 1},
		"w": {3, 0},
	}, "z", "y", "x", "w")

	results, err := idx.Search(context.Background(), []float64{1, 0}, 4)
	require.NoError(t, err)
	ids := []string{results[0].ID, results[1].ID, results[2].ID, results[3].ID}
	assert.Equal(t, []string{"z", "y", "w", "x"}, ids)
}

func TestMemoryIndex_ScaleInvarianceAndZeroVector(t *testing.T) {
	ctx := context.Background()
	q := []float64{1, 2}

	base := newIndex(t, 2, map[string][]float64{
		"a": {1, 1}, "b": {1, 3}, "zero": {0, 0},
	}, "a", "b", "zero")
	scaled := newIndex(t, 2, map[string][]float64{
		"a": {1, 1}, "b": {100, 300}, "zero": {0, 0},
	}, "a", "b", "zero")

	r1, err := base.Search(ctx, q, 3)
	require.NoError(t, err)
	r2, err := scaled.Search(ctx, q, 3)
	require.NoError(t, err)
	for i := range r1 {
		assert.Equal(t, r1[i].ID, r2[i].ID)
		assert.InDelta(t, r1[i].Score, r2[i].Score, 1e-9)
	}
	assert.Equal(t, "zero", r1[2].ID)
	assert.Equal(t, 0.0, r1[2].Score)

	// a zero query scores every row 0
	zq, err := base.Search(ctx, []float64{0, 0}, 3)
	require.NoError(t, err)
	for _, r := range zq {
		assert.False(t, math.IsNaN(r.Score))
		assert.Equal(t, 0.0, r.Score)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx := newIndex(t, 3, map[string][]float64{"a": {1, 0, 0}}, "a")

	err := idx.Insert("b", []float64{1, 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	var dimErr *DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.Got)
	assert.Equal(t, 3, dimErr.Expected)

	assert.Equal(t, 1, idx.Size())
	_, ok := idx.Get("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, storedIDs(idx))

	_, err = idx.Search(context.Background(), []float64{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMemoryIndex_ReinsertUpdatesInPlace(t *testing.T) {
	idx := newIndex(t, 2, map[string][]float64{"a": {1, 0}, "b": {0, 1}}, "a", "b")
	require.NoError(t, idx.Insert("a", []float64{0, 1}))

	assert.Equal(t, 2, idx.Size())
	assert.Equal(t, []string{"a", "b"}, storedIDs(idx))
	vec, ok := idx.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1}, vec)

	// a and b now tie; a was inserted first
	results, err := idx.Search(context.Background(), []float64{0, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
}

func TestMemoryIndex_CacheInvalidation(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t, 2, map[string][]float64{"a": {1, 0}}, "a")

	_, err := idx.Search(ctx, []float64{0, 1}, 5)
	require.NoError(t, err)
	assert.True(t, cached(idx))

	require.NoError(t, idx.Insert("b", []float64{0, 1}))
	assert.False(t, cached(idx))

	results, err := idx.Search(ctx, []float64{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].ID)
	assert.True(t, cached(idx))
}

func TestMemoryIndex_StoresCopies(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	vec := []float64{1, 0}
	require.NoError(t, idx.Insert("a", vec))
	vec[0] = 0

	got, _ := idx.Get("a")
	assert.Equal(t, []float64{1, 0}, got)
	got[1] = 5
	again, _ := idx.Get("a")
	assert.Equal(t, []float64{1, 0}, again)
}

func TestMemoryIndex_CancelledContext(t *testing.T) {
	idx := newIndex(t, 2, map[string][]float64{"a": {1, 0}}, "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := idx.Search(ctx, []float64{1, 0}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
