// Package keyword provides keyword search over the product catalog.
package keyword

import (
	"context"

	"github.com/orbitblue/nitamono/internal/models"
)

// Index defines keyword search operations over products.
type Index interface {
	Index(ctx context.Context, p *models.Product) error
	BatchIndex(ctx context.Context, products []*models.Product) error
	Delete(ctx context.Context, brandCode, sku string) error
	Search(ctx context.Context, brandCode, query string, limit int) ([]*Match, error)
	Count() (uint64, error)
	Close() error
}

// Match is a single keyword search hit.
type Match struct {
	BrandCode string  `json:"brand_code"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name,omitempty"`
	Score     float64 `json:"score"`
}
