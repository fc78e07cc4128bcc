// Package storage defines persistence for the product catalog and the
// vision feature cache.
package storage

import (
	"context"
	"errors"

	"github.com/orbitblue/nitamono/internal/models"
)

// ErrNotFound is returned when a requested row does not exist or has expired.
var ErrNotFound = errors.New("not found")

// DefaultCandidateLimit caps the rows scanned per brand by rule-based matching.
const DefaultCandidateLimit = 300

// Storage defines product and feature cache persistence operations.
type Storage interface {
	// Product operations
	UpsertProduct(ctx context.Context, in *models.ProductInput) (*models.Product, error)
	BatchUpsertProducts(ctx context.Context, inputs []*models.ProductInput) (int, error)
	GetProduct(ctx context.Context, brandCode, sku string) (*models.Product, error)
	DeleteProduct(ctx context.Context, brandCode, sku string) error
	CandidatesByBrand(ctx context.Context, brandCode string, onSaleOnly bool, limit int) ([]*models.Product, error)
	ListProducts(ctx context.Context, offset, limit int) ([]*models.Product, error)

	// Feature cache operations, the durable tier behind Redis
	PutFeatureRecord(ctx context.Context, rec *models.FeatureRecord) error
	GetFeatureRecord(ctx context.Context, traceID string) (*models.FeatureRecord, error)
	DeleteExpiredFeatures(ctx context.Context) (int64, error)

	// Stats
	CountProducts(ctx context.Context) (int64, error)
	CountBrands(ctx context.Context) (int64, error)

	Close() error
}
