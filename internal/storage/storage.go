// Package storage persists catalog snapshots so the service can start without the source file.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/mise/internal/models"
)

// ErrNotFound is returned when a product id is not stored.
var ErrNotFound = errors.New("product not found")

// Storage defines product snapshot persistence.
type Storage interface {
	// SaveProducts replaces the stored snapshot with products, keeping their order.
	SaveProducts(ctx context.Context, products []*models.Product) error
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	// ListProducts returns products in snapshot order. A negative limit returns all.
	ListProducts(ctx context.Context, offset, limit int) ([]*models.Product, error)
	CountProducts(ctx context.Context) (int64, error)
	// LastSaved returns the time of the latest SaveProducts, or zero when empty.
	LastSaved(ctx context.Context) (time.Time, error)

	Close() error
}
