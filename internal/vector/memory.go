package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/mise/pkg/utils"
)

// MemoryIndex maps ids to fixed-length vectors and answers top-k queries by brute-force
// cosine similarity. The dense matrix used for search is built lazily and dropped on
// every insert.
type MemoryIndex struct {
	dimension int
	entries   map[string][]float64
	ids       []string

	// matrix[i] is entries[ids[i]] and norms[i] its L2 norm; both nil when stale.
	matrix [][]float64
	norms  []float64

	mu sync.Mutex
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
func NewMemoryIndex(dimension int) (*MemoryIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	return &MemoryIndex{
		dimension: dimension,
		entries:   make(map[string][]float64),
		ids:       make([]string, 0),
	}, nil
}

// Dimension returns the fixed vector length of the index.
func (m *MemoryIndex) Dimension() int {
	return m.dimension
}

// Insert stores a copy of vec under id. An existing id keeps its position in
// insertion order and has its vector replaced. On a length mismatch the index is
// left unchanged.
func (m *MemoryIndex) Insert(id string, vec []float64) error {
	if len(vec) != m.dimension {
		return &DimensionError{Got: len(vec), Expected: m.dimension}
	}
	stored := make([]float64, len(vec))
	copy(stored, vec)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		m.ids = append(m.ids, id)
	}
	m.entries[id] = stored
	m.matrix, m.norms = nil, nil
	return nil
}

// Get returns a copy of the vector stored under id.
func (m *MemoryIndex) Get(id string) ([]float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vec, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(vec))
	copy(out, vec)
	return out, true
}

// Size returns the number of stored vectors.
func (m *MemoryIndex) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}

// Search returns up to k entries ranked by cosine similarity to query, highest first.
// Entries with equal scores keep their insertion order. Zero vectors score 0.
// An empty index returns no results for any query, whatever its length.
func (m *MemoryIndex) Search(ctx context.Context, query []float64, k int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if k <= 0 || len(m.ids) == 0 {
		return []Result{}, nil
	}
	if len(query) != m.dimension {
		return nil, &DimensionError{Got: len(query), Expected: m.dimension}
	}
	matrix, norms := m.matrixLocked()

	q := make([]float64, len(query))
	copy(q, query)
	utils.NormalizeL2(q)

	scores := make([]float64, len(matrix))
	for i, row := range matrix {
		if norms[i] == 0 {
			continue
		}
		scores[i] = utils.Dot(q, row) / norms[i]
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		sa, sb := scores[order[a]], scores[order[b]]
		if sa != sb {
			return sa > sb
		}
		return order[a] < order[b]
	})

	if k > len(order) {
		k = len(order)
	}
	results := make([]Result, k)
	for i := 0; i < k; i++ {
		results[i] = Result{ID: m.ids[order[i]], Score: scores[order[i]]}
	}
	return results, nil
}

func (m *MemoryIndex) matrixLocked() ([][]float64, []float64) {
	if m.matrix != nil {
		return m.matrix, m.norms
	}
	matrix := make([][]float64, len(m.ids))
	norms := make([]float64, len(m.ids))
	for i, id := range m.ids {
		matrix[i] = m.entries[id]
		norms[i] = utils.L2Norm(matrix[i])
	}
	m.matrix, m.norms = matrix, norms
	return matrix, norms
}
