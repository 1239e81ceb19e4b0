package vector

import (
	"context"
	"fmt"
	"testing"
)

func benchIndex(b *testing.B, n, dim int) *MemoryIndex {
	b.Helper()
	idx, err := NewMemoryIndex(dim)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < n; i++ {
		vec := make([]float64, dim)
		vec[i%dim] = 1
		vec[(i+1)%dim] = float64(i) / float64(n)
		if err := idx.Insert(fmt.Sprintf("p%d", i), vec); err != nil {
			b.Fatal(err)
		}
	}
	return idx
}

func BenchmarkMemoryIndexSearch(b *testing.B) {
	idx := benchIndex(b, 1000, 384)
	ctx := context.Background()
	query := make([]float64, 384)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 10)
	}
}

// BenchmarkMemoryIndexSearchAfterInsert measures the matrix rebuild that follows every write.
func BenchmarkMemoryIndexSearchAfterInsert(b *testing.B) {
	idx := benchIndex(b, 1000, 384)
	ctx := context.Background()
	query := make([]float64, 384)
	query[0] = 1.0
	vec := make([]float64, 384)
	vec[1] = 1
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.Insert("hot", vec)
		_, _ = idx.Search(ctx, query, 10)
	}
}
