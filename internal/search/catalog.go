package search

import "github.com/hyperjump/mise/internal/models"

// Catalog is the product collection the engine indexes and filters.
type Catalog interface {
	Products() []*models.Product
	GetProduct(id string) (*models.Product, bool)
	FilterProducts(criteria models.FilterCriteria) []*models.Product
}
