// Package catalog holds the in-memory product collection and loads it from tabular files.
package catalog

import (
	"math"
	"sort"
	"strings"

	"github.com/hyperjump/mise/internal/models"
)

// Catalog is an ordered, read-only product collection with id lookup.
type Catalog struct {
	products   []*models.Product
	byID       map[string]*models.Product
	categories map[string]struct{}
}

// New builds a catalog from products, keeping their order. Later duplicates of an id are dropped.
func New(products []*models.Product) *Catalog {
	c := &Catalog{
		products:   make([]*models.Product, 0, len(products)),
		byID:       make(map[string]*models.Product, len(products)),
		categories: make(map[string]struct{}),
	}
	for _, p := range products {
		if p == nil {
			continue
		}
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.products = append(c.products, p)
		c.byID[p.ID] = p
		if main := MainCategory(p.Category); main != "" {
			c.categories[main] = struct{}{}
		}
	}
	return c
}

// MainCategory returns the lowercased first segment of a "A >> B >> C" category path.
func MainCategory(category string) string {
	main, _, _ := strings.Cut(category, ">>")
	return strings.ToLower(strings.TrimSpace(main))
}

// Products returns the products in load order.
func (c *Catalog) Products() []*models.Product {
	return c.products
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// Page returns up to limit products starting at skip.
func (c *Catalog) Page(skip, limit int) []*models.Product {
	if skip < 0 {
		skip = 0
	}
	if skip > len(c.products) {
		skip = len(c.products)
	}
	end := skip + limit
	if limit < 0 || end > len(c.products) {
		end = len(c.products)
	}
	return c.products[skip:end]
}

// GetProduct looks a product up by id.
func (c *Catalog) GetProduct(id string) (*models.Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// FilterProducts returns, in catalog order, the products satisfying every set criterion.
// Price bounds are inclusive and compare against the discounted price. Brand and
// category match as case-insensitive substrings; color matches name or description.
func (c *Catalog) FilterProducts(criteria models.FilterCriteria) []*models.Product {
	brand := strings.ToLower(criteria.Brand)
	category := strings.ToLower(criteria.Category)
	color := strings.ToLower(criteria.Color)

	out := make([]*models.Product, 0)
	for _, p := range c.products {
		if criteria.MinPrice != nil && p.DiscountedPrice < *criteria.MinPrice {
			continue
		}
		if criteria.MaxPrice != nil && p.DiscountedPrice > *criteria.MaxPrice {
			continue
		}
		if brand != "" && !strings.Contains(strings.ToLower(p.Brand), brand) {
			continue
		}
		if category != "" && !strings.Contains(strings.ToLower(p.Category), category) {
			continue
		}
		if color != "" &&
			!strings.Contains(strings.ToLower(p.Name), color) &&
			!strings.Contains(strings.ToLower(p.Description), color) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Brands returns the distinct brand names, sorted.
func (c *Catalog) Brands() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, p := range c.products {
		if p.Brand == "" {
			continue
		}
		if _, ok := seen[p.Brand]; ok {
			continue
		}
		seen[p.Brand] = struct{}{}
		out = append(out, p.Brand)
	}
	sort.Strings(out)
	return out
}

// Categories returns the distinct main categories, sorted.
func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.categories))
	for k := range c.categories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PriceRange returns the lowest and highest discounted price, or zeros for an empty catalog.
func (c *Catalog) PriceRange() models.PriceRange {
	if len(c.products) == 0 {
		return models.PriceRange{}
	}
	r := models.PriceRange{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, p := range c.products {
		r.Min = math.Min(r.Min, p.DiscountedPrice)
		r.Max = math.Max(r.Max, p.DiscountedPrice)
	}
	return r
}
