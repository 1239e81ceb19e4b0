package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/mise/internal/catalog"
	"github.com/hyperjump/mise/internal/embedding"
	"github.com/hyperjump/mise/internal/models"
	"github.com/hyperjump/mise/internal/vector"
)

func testProducts() []*models.Product {
	return []*models.Product{
		{ID: "p1", Name: "Red Running Shoes", Brand: "Acme", Category: "Footwear >> Sports", DiscountedPrice: 450, Description: "lightweight running shoes"},
		{ID: "p2", Name: "Blue Running Shoes", Brand: "Acme", Category: "Footwear >> Sports", DiscountedPrice: 800, Description: "cushioned running shoes"},
		{ID: "p3", Name: "Red Leather Wallet", Brand: "Hidesmith", Category: "Accessories >> Wallets", DiscountedPrice: 700, Description: "genuine leather wallet"},
		{ID: "p4", Name: "Green Cotton Shirt", Brand: "Weave", Category: "Clothing >> Shirts", DiscountedPrice: 300, Description: "casual cotton shirt"},
	}
}

func buildEngine(t *testing.T) *Engine {
	t.Helper()
	cat := catalog.New(testProducts())
	engine, err := Build(context.Background(), cat, embedding.NewVectorizer(), FitOptions{FullCatalog: true})
	require.NoError(t, err)
	return engine
}

func productIDs(products []*models.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestEngine_IndexProducts(t *testing.T) {
	engine := buildEngine(t)
	stats := engine.Stats()
	assert.Equal(t, 4, stats.Products)
	assert.Equal(t, 4, stats.IndexSize)
	assert.True(t, stats.VectorizerFitted)
	assert.Greater(t, stats.Dimension, 0)
}

func TestEngine_RetrieveWithFilters(t *testing.T) {
	engine := buildEngine(t)
	products, explanation, err := engine.Retrieve(context.Background(), "red shoes under 500", 5, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"p1"}, productIDs(products))
	require.NotNil(t, explanation.FilterDescription)
	assert.Equal(t, "price under 500.0 and color red", *explanation.FilterDescription)
	assert.Equal(t, "Found 1 products matching your criteria", explanation.ResultsSummary)
	assert.Equal(t, 1, explanation.NumResults)
	assert.Equal(t, "red shoes under 500", explanation.Query)
	assert.Equal(t, models.ScopeFiltered, explanation.SearchScope)
	require.NotNil(t, explanation.FiltersApplied.MaxPrice)
	assert.Equal(t, 500.0, *explanation.FiltersApplied.MaxPrice)
	assert.Equal(t, "red", explanation.FiltersApplied.Color)
	require.Len(t, explanation.Matches, 1)
	assert.Equal(t, 1, explanation.Matches[0].Rank)
}

func TestEngine_RetrieveNoFallbackWhenFilterMatchesNothing(t *testing.T) {
	engine := buildEngine(t)
	products, explanation, err := engine.Retrieve(context.Background(), "shoes under 1", 5, nil)
	require.NoError(t, err)

	assert.Empty(t, products)
	assert.Equal(t, 0, explanation.NumResults)
	assert.Equal(t, "No matching products found", explanation.ResultsSummary)
	assert.Equal(t, models.ScopeNone, explanation.SearchScope)
	require.NotNil(t, explanation.FilterDescription)
	assert.Equal(t, "price under 1.0", *explanation.FilterDescription)
}

func TestEngine_RetrieveWithoutFiltersSearchesFullIndex(t *testing.T) {
	engine := buildEngine(t)
	products, explanation, err := engine.Retrieve(context.Background(), "running shoes", 2, nil)
	require.NoError(t, err)

	assert.Nil(t, explanation.FilterDescription)
	assert.Equal(t, models.ScopeFull, explanation.SearchScope)
	require.Len(t, products, 2)
	assert.ElementsMatch(t, []string{"p1", "p2"}, productIDs(products))
	assert.GreaterOrEqual(t, explanation.Matches[0].Score, explanation.Matches[1].Score)
}

func TestEngine_RetrieveDefaultTopK(t *testing.T) {
	engine := NewEngine(catalog.New(nil), mustIndex(t, 1), embedding.NewVectorizer(), WithDefaultTopK(2))
	assert.Equal(t, 2, engine.defaultTopK)

	full := buildEngine(t)
	products, _, err := full.Retrieve(context.Background(), "shoes wallet shirt", 0, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(products), models.DefaultTopK)
}

func TestEngine_RetrieveMergesExtraFilters(t *testing.T) {
	engine := buildEngine(t)
	products, explanation, err := engine.Retrieve(context.Background(), "running shoes over 500", 5,
		&models.FilterCriteria{MinPrice: models.Float(10), Brand: "acme"})
	require.NoError(t, err)

	assert.Equal(t, []string{"p2"}, productIDs(products))
	require.NotNil(t, explanation.FilterDescription)
	assert.Equal(t, "price over 500.0 and brand acme", *explanation.FilterDescription)
}

func TestEngine_ScopedSearchSkipsUnindexedProducts(t *testing.T) {
	cat := catalog.New(testProducts())
	vectorizer := embedding.NewVectorizer()
	require.NoError(t, vectorizer.Fit(FitCorpus(cat, FitOptions{FullCatalog: true})))
	index := mustIndex(t, vectorizer.Dimension())

	vec, err := vectorizer.Transform(embedding.ProductText(testProducts()[2]))
	require.NoError(t, err)
	require.NoError(t, index.Insert("p3", vec))

	engine := NewEngine(cat, index, vectorizer)
	products, _, err := engine.Retrieve(context.Background(), "red", 5, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, productIDs(products))
}

func TestEngine_DropsIDsMissingFromCatalog(t *testing.T) {
	engine := buildEngine(t)
	ghost := make([]float64, engine.index.Dimension())
	ghost[0] = 1
	require.NoError(t, engine.index.Insert("ghost", ghost))

	products, explanation, err := engine.Retrieve(context.Background(), "shoes wallet shirt", 10, nil)
	require.NoError(t, err)
	assert.NotContains(t, productIDs(products), "ghost")
	assert.Equal(t, len(products), explanation.NumResults)
}

func TestEngine_EmptyIndexReturnsNothing(t *testing.T) {
	cat := catalog.New(testProducts())
	vectorizer := embedding.NewVectorizer()
	require.NoError(t, vectorizer.Fit([]string{"running shoes"}))
	engine := NewEngine(cat, mustIndex(t, vectorizer.Dimension()), vectorizer)

	products, explanation, err := engine.Retrieve(context.Background(), "running shoes", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, "No matching products found", explanation.ResultsSummary)
}

func TestEngine_RetrieveBeforeIndexingReturnsNothing(t *testing.T) {
	idx, err := vector.NewMemoryIndex(16)
	require.NoError(t, err)
	engine := NewEngine(catalog.New(testProducts()), idx, embedding.NewVectorizer())

	products, explanation, err := engine.Retrieve(context.Background(), "running shoes", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, models.ScopeFull, explanation.SearchScope)
	assert.Equal(t, 0, explanation.NumResults)
}

func TestEngine_DimensionMismatchAfterRefit(t *testing.T) {
	engine := buildEngine(t)
	require.NoError(t, engine.vectorizer.Fit([]string{"entirely different vocabulary here"}))

	_, _, err := engine.Retrieve(context.Background(), "running shoes", 5, nil)
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)

	_, _, err = engine.Retrieve(context.Background(), "red shoes", 5, nil)
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
}

func TestFitCorpus(t *testing.T) {
	cat := catalog.New(testProducts())
	corpus := FitCorpus(cat, FitOptions{SeedTexts: []string{"seed one", "seed two"}, SampleSize: 1})
	require.Len(t, corpus, 3)
	assert.Equal(t, "seed one", corpus[0])
	assert.Equal(t, embedding.ProductText(testProducts()[0]), corpus[2])

	assert.Len(t, FitCorpus(cat, FitOptions{SampleSize: 100}), 4)
	assert.Len(t, FitCorpus(cat, FitOptions{FullCatalog: true}), 4)
}

func TestBuild_EmptyCatalogFails(t *testing.T) {
	_, err := Build(context.Background(), catalog.New(nil), embedding.NewVectorizer(), FitOptions{})
	assert.ErrorIs(t, err, embedding.ErrEmptyCorpus)
}

func mustIndex(t *testing.T, dim int) *vector.MemoryIndex {
	t.Helper()
	idx, err := vector.NewMemoryIndex(dim)
	require.NoError(t, err)
	return idx
}
