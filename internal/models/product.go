// Package models defines the product, filter and query types shared across packages.
package models

// Product is a single catalog item.
type Product struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Category        string            `json:"category"`
	Price           float64           `json:"price"`
	DiscountedPrice float64           `json:"discounted_price"`
	Description     string            `json:"description"`
	Brand           string            `json:"brand"`
	Specifications  map[string]string `json:"specifications"`
	ImageURLs       []string          `json:"image_urls"`
}

// PriceRange is the lowest and highest discounted price in a catalog.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}
