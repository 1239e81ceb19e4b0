// Package search implements query retrieval: filter extraction, catalog filtering and
// similarity ranking over the product vector index.
package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/mise/internal/embedding"
	"github.com/hyperjump/mise/internal/models"
	"github.com/hyperjump/mise/internal/vector"
	"github.com/hyperjump/mise/pkg/utils"
)

// ErrUninitialized is returned when retrieval is requested before an engine is built.
var ErrUninitialized = errors.New("retriever not initialized")

// Engine answers free-text product queries.
type Engine struct {
	catalog     Catalog
	index       *vector.MemoryIndex
	vectorizer  *embedding.Vectorizer
	extractor   *FilterExtractor
	logger      *zap.Logger
	defaultTopK int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = utils.OrNop(l) }
}

// WithExtractor replaces the default filter extractor.
func WithExtractor(x *FilterExtractor) EngineOption {
	return func(e *Engine) {
		if x != nil {
			e.extractor = x
		}
	}
}

// WithDefaultTopK sets the result count used when a caller passes top_k <= 0.
func WithDefaultTopK(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.defaultTopK = k
		}
	}
}

// NewEngine creates an engine over the given catalog, index and vectorizer.
// IndexProducts must run before Retrieve returns anything useful.
func NewEngine(catalog Catalog, index *vector.MemoryIndex, vectorizer *embedding.Vectorizer, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog:     catalog,
		index:       index,
		vectorizer:  vectorizer,
		extractor:   NewFilterExtractor(),
		logger:      zap.NewNop(),
		defaultTopK: models.DefaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IndexProducts embeds every catalog product and stores it in the index under its id.
// It returns the number of products indexed.
func (e *Engine) IndexProducts(ctx context.Context) (int, error) {
	products := e.catalog.Products()
	vecs, err := e.vectorizer.EmbedProducts(products)
	if err != nil {
		return 0, fmt.Errorf("embed products: %w", err)
	}
	n := 0
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		vec, ok := vecs[p.ID]
		if !ok {
			continue
		}
		if err := e.index.Insert(p.ID, vec); err != nil {
			return n, fmt.Errorf("index product %s: %w", p.ID, err)
		}
		n++
	}
	e.logger.Info("products indexed",
		zap.Int("count", n),
		zap.Int("dimension", e.index.Dimension()),
	)
	return n, nil
}

// Retrieve returns up to topK products for query together with an explanation.
//
// Filters extracted from the query are completed with extra (extracted values win)
// and applied to the catalog. When any filter is set only the matching products are
// ranked, and no match means no results. Without filters the whole index is ranked.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int, extra *models.FilterCriteria) ([]*models.Product, *models.RetrievalExplanation, error) {
	if topK <= 0 {
		topK = e.defaultTopK
	}
	criteria := e.extractor.Extract(query).Merge(extra)

	var filtered []*models.Product
	if !criteria.IsEmpty() {
		filtered = e.catalog.FilterProducts(criteria)
	}

	queryVec, err := e.vectorizer.Transform(query)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}

	var (
		hits  []vector.Result
		scope string
	)
	switch {
	case criteria.IsEmpty():
		scope = models.ScopeFull
		hits, err = e.index.Search(ctx, queryVec, topK)
		if err != nil {
			return nil, nil, fmt.Errorf("search index: %w", err)
		}
	case len(filtered) > 0:
		scope = models.ScopeFiltered
		hits, err = e.searchScoped(ctx, filtered, queryVec, topK)
		if err != nil {
			return nil, nil, err
		}
	default:
		scope = models.ScopeNone
	}

	products := make([]*models.Product, 0, len(hits))
	matches := make([]models.Match, 0, len(hits))
	for _, hit := range hits {
		p, ok := e.catalog.GetProduct(hit.ID)
		if !ok {
			e.logger.Warn("indexed product missing from catalog", zap.String("id", hit.ID))
			continue
		}
		products = append(products, p)
		matches = append(matches, models.Match{ID: p.ID, Score: hit.Score, Rank: len(matches) + 1})
	}

	explanation := explain(query, criteria, scope, matches)
	e.logger.Debug("retrieve",
		zap.String("query", query),
		zap.String("scope", scope),
		zap.Int("filtered", len(filtered)),
		zap.Int("results", len(products)),
	)
	return products, explanation, nil
}

// searchScoped ranks only the given products by copying their vectors from the main
// index into a transient one. Products that were never indexed are skipped.
func (e *Engine) searchScoped(ctx context.Context, products []*models.Product, queryVec []float64, topK int) ([]vector.Result, error) {
	scoped, err := vector.NewMemoryIndex(len(queryVec))
	if err != nil {
		return nil, fmt.Errorf("scoped index: %w", err)
	}
	for _, p := range products {
		vec, ok := e.index.Get(p.ID)
		if !ok {
			continue
		}
		if err := scoped.Insert(p.ID, vec); err != nil {
			return nil, fmt.Errorf("scoped index: %w", err)
		}
	}
	hits, err := scoped.Search(ctx, queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("search scoped index: %w", err)
	}
	return hits, nil
}

// Stats describes the state of an engine.
type Stats struct {
	Products         int  `json:"products_loaded"`
	IndexSize        int  `json:"vector_index_size"`
	Dimension        int  `json:"embedding_dimensions"`
	VectorizerFitted bool `json:"vectorizer_fitted"`
}

// Stats returns the current catalog, index and vectorizer figures.
func (e *Engine) Stats() Stats {
	return Stats{
		Products:         len(e.catalog.Products()),
		IndexSize:        e.index.Size(),
		Dimension:        e.index.Dimension(),
		VectorizerFitted: e.vectorizer.IsFitted(),
	}
}
