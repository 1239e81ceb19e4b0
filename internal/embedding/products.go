package embedding

import (
	"sort"
	"strings"

	"github.com/hyperjump/mise/internal/models"
)

// ProductText builds the surrogate text a product is vectorized from: name, brand,
// category, description and each specification as "key: value" in key order.
// Empty parts are skipped.
func ProductText(p *models.Product) string {
	parts := make([]string, 0, 4+len(p.Specifications))
	for _, s := range []string{p.Name, p.Brand, p.Category, p.Description} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	keys := make([]string, 0, len(p.Specifications))
	for k := range p.Specifications {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+": "+p.Specifications[k])
	}
	return strings.Join(parts, " ")
}

// EmbedProducts vectorizes every product, fitting v on their surrogate texts first
// when it is unfitted. All vectors share the vectorizer's current dimension.
func (v *Vectorizer) EmbedProducts(products []*models.Product) (map[string][]float64, error) {
	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = ProductText(p)
	}
	if len(texts) == 0 {
		return map[string][]float64{}, nil
	}
	vecs, err := v.transformBatch(texts)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float64, len(products))
	for i, p := range products {
		out[p.ID] = vecs[i]
	}
	return out, nil
}
