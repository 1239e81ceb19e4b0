package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/mise/internal/models"
	"github.com/hyperjump/mise/pkg/utils"
)

// vocabulary returns the terms in column order.
func vocabulary(v *Vectorizer) []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.terms...)
}

func TestVectorizer_FitTransform(t *testing.T) {
	v := NewVectorizer()
	assert.False(t, v.IsFitted())
	assert.Equal(t, 0, v.Dimension())

	corpus := []string{
		"red running shoes",
		"blue cotton shirt",
		"wooden dining table",
	}
	require.NoError(t, v.Fit(corpus))
	assert.True(t, v.IsFitted())

	terms := vocabulary(v)
	assert.Contains(t, terms, "shoes")
	assert.Contains(t, terms, "running shoes")
	assert.Contains(t, terms, "dining table")
	assert.IsIncreasing(t, terms)
	assert.Equal(t, len(terms), v.Dimension())

	vec, err := v.Transform("red shoes")
	require.NoError(t, err)
	assert.Len(t, vec, v.Dimension())
	assert.InDelta(t, 1.0, utils.L2Norm(vec), 1e-9)

	unknown, err := v.Transform("completely unrelated words")
	require.NoError(t, err)
	assert.Equal(t, 0.0, utils.L2Norm(unknown))
}

func TestVectorizer_StopWordsAndShortTokensDropped(t *testing.T) {
	v := NewVectorizer()
	require.NoError(t, v.Fit([]string{"the shirt and a x jacket"}))
	terms := vocabulary(v)
	assert.NotContains(t, terms, "the")
	assert.NotContains(t, terms, "and")
	assert.NotContains(t, terms, "x")
	assert.Contains(t, terms, "shirt jacket")
}

func TestVectorizer_IDFWeighting(t *testing.T) {
	v := NewVectorizer()
	require.NoError(t, v.Fit([]string{"shoes leather", "shoes canvas", "shoes rubber"}))

	vec, err := v.Transform("shoes leather")
	require.NoError(t, err)
	terms := vocabulary(v)
	col := func(term string) int {
		for i, candidate := range terms {
			if candidate == term {
				return i
			}
		}
		return -1
	}
	// shoes appears everywhere, leather once: leather must weigh more
	assert.Greater(t, vec[col("leather")], vec[col("shoes")])

	// smoothed idf: ln((1+3)/(1+3))+1 = 1 and ln((1+3)/(1+1))+1
	ratio := vec[col("leather")] / vec[col("shoes")]
	assert.InDelta(t, math.Log(2)+1, ratio, 1e-9)
}

func TestVectorizer_MaxFeatures(t *testing.T) {
	v := NewVectorizer(WithMaxFeatures(2))
	require.NoError(t, v.Fit([]string{"apple apple apple banana banana cherry"}))
	assert.Equal(t, []string{"apple", "apple apple"}, vocabulary(v))
}

func TestVectorizer_EmptyCorpus(t *testing.T) {
	v := NewVectorizer()
	assert.ErrorIs(t, v.Fit(nil), ErrEmptyCorpus)
	assert.ErrorIs(t, v.Fit([]string{"the and of"}), ErrEmptyVocabulary)
	assert.False(t, v.IsFitted())
}

func TestVectorizer_AutoFitIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	v := NewVectorizer(WithLogger(zap.New(core)))

	vec, err := v.Transform("wireless headphones")
	require.NoError(t, err)
	assert.True(t, v.IsFitted())
	assert.Equal(t, []string{"headphones", "wireless", "wireless headphones"}, vocabulary(v))
	assert.Len(t, vec, 3)
	for _, x := range vec {
		assert.InDelta(t, 1/math.Sqrt(3), x, 1e-9)
	}

	entries := logs.FilterMessage("vectorizer not fitted, auto-fitting on query").All()
	assert.Len(t, entries, 1)

	_, err = v.Transform("wireless")
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len(), "a fitted vectorizer must not auto-fit again")
}

func TestVectorizer_RefitClearsCache(t *testing.T) {
	v := NewVectorizer()
	require.NoError(t, v.Fit([]string{"red shoes"}))
	first, err := v.Transform("red shoes")
	require.NoError(t, err)

	require.NoError(t, v.Fit([]string{"red shoes", "blue shirt", "green hat"}))
	second, err := v.Transform("red shoes")
	require.NoError(t, err)
	assert.NotEqual(t, len(first), len(second))
	assert.Len(t, second, v.Dimension())
}

func TestVectorizer_Deterministic(t *testing.T) {
	corpus := []string{"red running shoes", "blue cotton shirt", "red cotton socks"}
	a, b := NewVectorizer(), NewVectorizer(WithCacheSize(0))
	require.NoError(t, a.Fit(corpus))
	require.NoError(t, b.Fit(corpus))
	va, _ := a.Transform("red cotton")
	vb, _ := b.Transform("red cotton")
	assert.Equal(t, va, vb)
	assert.Equal(t, vocabulary(a), vocabulary(b))
}

func TestProductText(t *testing.T) {
	p := &models.Product{
		ID:          "p1",
		Name:        "Runner",
		Brand:       "Acme",
		Category:    "Footwear",
		Description: "",
		Specifications: map[string]string{
			"Size":  "10",
			"Color": "Red",
		},
	}
	assert.Equal(t, "Runner Acme Footwear Color: Red Size: 10", ProductText(p))
	assert.Equal(t, "", ProductText(&models.Product{}))
}

func TestEmbedProducts(t *testing.T) {
	products := []*models.Product{
		{ID: "a", Name: "red running shoes"},
		{ID: "b", Name: "blue cotton shirt"},
	}
	v := NewVectorizer()
	vecs, err := v.EmbedProducts(products)
	require.NoError(t, err)
	assert.True(t, v.IsFitted())
	require.Len(t, vecs, 2)
	for _, vec := range vecs {
		assert.Len(t, vec, v.Dimension())
	}

	assert.Equal(t, 0, v.cache.Len(), "product vectors must not fill the query cache")

	empty, err := NewVectorizer().EmbedProducts(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEmbedProducts_LeavesQueryCacheAlone(t *testing.T) {
	products := []*models.Product{
		{ID: "a", Name: "red running shoes"},
		{ID: "b", Name: "blue cotton shirt"},
	}
	v := NewVectorizer(WithCacheSize(8))
	require.NoError(t, v.Fit([]string{"red running shoes", "blue cotton shirt"}))
	query, err := v.Transform("red shoes")
	require.NoError(t, err)
	require.Equal(t, 1, v.cache.Len())

	vecs, err := v.EmbedProducts(products)
	require.NoError(t, err)
	assert.Equal(t, 1, v.cache.Len())

	cached, ok := v.cache.Get("red shoes")
	require.True(t, ok)
	assert.Equal(t, query, cached)

	direct, err := v.Transform(ProductText(products[0]))
	require.NoError(t, err)
	assert.Equal(t, direct, vecs["a"])
}
