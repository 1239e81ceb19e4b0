package search

import (
	"context"
	"fmt"

	"github.com/hyperjump/mise/internal/embedding"
	"github.com/hyperjump/mise/internal/vector"
)

// FitOptions selects the corpus the vectorizer is fitted on before indexing.
type FitOptions struct {
	// SeedTexts are always part of the corpus.
	SeedTexts []string
	// SampleSize is the number of leading catalog products added to the seeds.
	SampleSize int
	// FullCatalog fits on every product instead of a sample.
	FullCatalog bool
}

// FitCorpus returns the seed texts followed by the surrogate texts of the selected products.
func FitCorpus(catalog Catalog, opts FitOptions) []string {
	products := catalog.Products()
	n := len(products)
	if !opts.FullCatalog && opts.SampleSize < n {
		n = opts.SampleSize
	}
	if n < 0 {
		n = 0
	}
	corpus := make([]string, 0, len(opts.SeedTexts)+n)
	corpus = append(corpus, opts.SeedTexts...)
	for _, p := range products[:n] {
		corpus = append(corpus, embedding.ProductText(p))
	}
	return corpus
}

// Build fits vectorizer (unless already fitted), creates an index of matching
// dimension, and returns an engine with every catalog product indexed.
func Build(ctx context.Context, catalog Catalog, vectorizer *embedding.Vectorizer, fit FitOptions, opts ...EngineOption) (*Engine, error) {
	if !vectorizer.IsFitted() {
		if err := vectorizer.Fit(FitCorpus(catalog, fit)); err != nil {
			return nil, fmt.Errorf("fit vectorizer: %w", err)
		}
	}
	index, err := vector.NewMemoryIndex(vectorizer.Dimension())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	engine := NewEngine(catalog, index, vectorizer, opts...)
	if _, err := engine.IndexProducts(ctx); err != nil {
		return nil, err
	}
	return engine, nil
}
