// Package embedding turns product and query text into TF-IDF vectors.
package embedding

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"go.uber.org/zap"

	"github.com/hyperjump/mise/pkg/utils"
)

// DefaultMaxFeatures caps the vocabulary size when no option overrides it.
const DefaultMaxFeatures = 5000

const defaultCacheSize = 1000

var (
	// ErrEmptyCorpus is returned when Fit is called without any text.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrEmptyVocabulary is returned when a corpus yields no terms after stop-word removal.
	ErrEmptyVocabulary = errors.New("empty vocabulary; corpus contains only stop words")
)

// Vectorizer is a TF-IDF model over unigrams and bigrams. It is created unfitted;
// Fit learns the vocabulary and Transform projects text onto it.
type Vectorizer struct {
	maxFeatures int
	analyze     func(text string) []string
	cache       *QueryCache
	logger      *zap.Logger

	mu     sync.Mutex
	fitted bool
	vocab  map[string]int
	terms  []string
	idf    []float64
}

// VectorizerOption configures a Vectorizer.
type VectorizerOption func(*Vectorizer)

// WithMaxFeatures caps the vocabulary at n terms. Values <= 0 are ignored.
func WithMaxFeatures(n int) VectorizerOption {
	return func(v *Vectorizer) {
		if n > 0 {
			v.maxFeatures = n
		}
	}
}

// WithCacheSize sets the capacity of the query vector cache. Zero disables it.
func WithCacheSize(n int) VectorizerOption {
	return func(v *Vectorizer) { v.cache = NewQueryCache(n) }
}

// WithLogger sets a logger for fit events.
func WithLogger(l *zap.Logger) VectorizerOption {
	return func(v *Vectorizer) { v.logger = utils.OrNop(l) }
}

// NewVectorizer creates an unfitted vectorizer.
func NewVectorizer(opts ...VectorizerOption) *Vectorizer {
	v := &Vectorizer{
		maxFeatures: DefaultMaxFeatures,
		analyze:     standardAnalyzer(),
		cache:       NewQueryCache(defaultCacheSize),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// standardAnalyzer returns bleve's standard analyzer (unicode tokenizer, lowercase,
// English stop words) as a plain function.
func standardAnalyzer() func(string) []string {
	analyzer := bleve.NewIndexMapping().AnalyzerNamed(standard.Name)
	return func(text string) []string {
		if analyzer == nil {
			return strings.Fields(strings.ToLower(text))
		}
		stream := analyzer.Analyze([]byte(text))
		out := make([]string, 0, len(stream))
		for _, tok := range stream {
			out = append(out, string(tok.Term))
		}
		return out
	}
}

// extractTerms returns the unigrams and bigrams of text. Tokens shorter than two
// characters are dropped before bigrams are formed.
func (v *Vectorizer) extractTerms(text string) []string {
	tokens := v.analyze(text)
	kept := tokens[:0]
	for _, tok := range tokens {
		if len([]rune(tok)) >= 2 {
			kept = append(kept, tok)
		}
	}
	out := make([]string, 0, 2*len(kept))
	out = append(out, kept...)
	for i := 0; i+1 < len(kept); i++ {
		out = append(out, kept[i]+" "+kept[i+1])
	}
	return out
}

// Fit learns the vocabulary and idf weights from corpus, replacing any previous fit.
func (v *Vectorizer) Fit(corpus []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fitLocked(corpus)
}

func (v *Vectorizer) fitLocked(corpus []string) error {
	if len(corpus) == 0 {
		return ErrEmptyCorpus
	}

	totals := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]struct{})
		for _, term := range v.extractTerms(doc) {
			totals[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				docFreq[term]++
			}
		}
	}
	if len(totals) == 0 {
		return ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(totals))
	for term := range totals {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) > v.maxFeatures {
		sort.SliceStable(terms, func(i, j int) bool {
			return totals[terms[i]] > totals[terms[j]]
		})
		terms = terms[:v.maxFeatures]
		sort.Strings(terms)
	}

	n := float64(len(corpus))
	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		vocab[term] = i
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	v.vocab, v.terms, v.idf = vocab, terms, idf
	v.fitted = true
	v.cache.Clear()
	v.logger.Debug("vectorizer fitted",
		zap.Int("documents", len(corpus)),
		zap.Int("vocabulary_size", len(terms)),
	)
	return nil
}

// Transform returns the L2-normalized TF-IDF vector of text. An unfitted vectorizer
// first fits itself on text alone.
func (v *Vectorizer) Transform(text string) ([]float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.fitted {
		v.logger.Warn("vectorizer not fitted, auto-fitting on query", zap.String("text", utils.Truncate(text, 80)))
		if err := v.fitLocked([]string{text}); err != nil {
			return nil, fmt.Errorf("auto-fit: %w", err)
		}
	}
	if vec, ok := v.cache.Get(text); ok {
		return vec, nil
	}
	vec := v.transformLocked(text)
	v.cache.Set(text, vec)
	return vec, nil
}

// transformBatch vectorizes texts under a single lock without touching the query
// cache. An unfitted vectorizer is fitted on texts first.
func (v *Vectorizer) transformBatch(texts []string) ([][]float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.fitted {
		if err := v.fitLocked(texts); err != nil {
			return nil, err
		}
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = v.transformLocked(text)
	}
	return out, nil
}

func (v *Vectorizer) transformLocked(text string) []float64 {
	vec := make([]float64, len(v.terms))
	for _, term := range v.extractTerms(text) {
		if col, ok := v.vocab[term]; ok {
			vec[col]++
		}
	}
	for i := range vec {
		vec[i] *= v.idf[i]
	}
	utils.NormalizeL2(vec)
	return vec
}

// IsFitted reports whether a vocabulary has been learned.
func (v *Vectorizer) IsFitted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fitted
}

// Dimension returns the vocabulary size, or 0 when unfitted.
func (v *Vectorizer) Dimension() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.terms)
}
