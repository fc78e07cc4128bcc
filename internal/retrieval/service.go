// Package retrieval serves vector store context for generation prompts. When
// a product SKU is supplied the result is filtered for SKU ownership so a
// prompt never carries another product's price, material, or stock.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/orbitblue/nitamono/internal/docid"
	"github.com/orbitblue/nitamono/internal/vector"
)

// DefaultTopK is the number of chunks returned when the caller asks for none.
const DefaultTopK = 3

// Diagnostics reports what happened to the retrieved chunks.
type Diagnostics struct {
	Retrieved int      `json:"retrieved"`
	Filtered  int      `json:"filtered"`
	Safe      int      `json:"safe"`
	Reasons   []string `json:"reasons,omitempty"`
}

// Service retrieves context chunks from the vector store.
type Service struct {
	store  *vector.Store
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a retrieval service over the given store.
func NewService(store *vector.Store, opts ...Option) *Service {
	s := &Service{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve returns up to topK chunks relevant to query, without ownership
// filtering. Failures degrade to an empty result, never an error; the caller
// proceeds without context.
func (s *Service) Retrieve(ctx context.Context, query string, topK int) []string {
	chunks, _ := s.RetrieveForSKU(ctx, query, topK, "")
	return chunks
}

// RetrieveForSKU retrieves chunks for a product prompt. When currentSKU is
// set it over-fetches three times topK and filters by ownership: chunks
// tagged with the current SKU are dropped as redundant with the product row,
// chunks tagged with any other SKU are dropped to prevent cross-product
// contamination, untagged chunks pass.
func (s *Service) RetrieveForSKU(ctx context.Context, query string, topK int, currentSKU string) ([]string, Diagnostics) {
	var diag Diagnostics
	if topK <= 0 {
		topK = DefaultTopK
	}
	if !s.store.Loaded() {
		s.logger.Warn("vector store not loaded, returning empty context")
		return nil, diag
	}

	fetch := topK
	if currentSKU != "" {
		fetch = topK * 3
	}
	results, err := s.store.Search(ctx, query, fetch)
	if err != nil {
		s.logger.Error("context retrieval failed", zap.Error(err))
		return nil, diag
	}
	chunks := make([]string, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, r.Chunk)
	}
	diag.Retrieved = len(chunks)

	if currentSKU == "" {
		s.logger.Warn("no current sku provided, skipping ownership filtering")
		if len(chunks) > topK {
			chunks = chunks[:topK]
		}
		diag.Safe = len(chunks)
		return chunks, diag
	}

	safe, reasons := filterBySKUOwnership(chunks, currentSKU)
	diag.Filtered = len(chunks) - len(safe)
	diag.Safe = len(safe)
	diag.Reasons = reasons
	if len(safe) == 0 && diag.Retrieved > 0 {
		s.logger.Warn("all retrieved chunks were filtered",
			zap.Int("retrieved", diag.Retrieved), zap.String("sku", currentSKU))
	}
	if len(safe) > topK {
		safe = safe[:topK]
	}
	s.logger.Debug("context retrieved",
		zap.Int("retrieved", diag.Retrieved),
		zap.Int("safe", diag.Safe),
		zap.Int("returned", len(safe)))
	return safe, diag
}

func filterBySKUOwnership(chunks []string, currentSKU string) (safe, reasons []string) {
	current := strings.ToUpper(currentSKU)
	for _, chunk := range chunks {
		found := docid.FindSKUs(chunk)
		if len(found) == 0 {
			safe = append(safe, chunk)
			continue
		}
		if containsSKU(found, current) {
			reasons = append(reasons, fmt.Sprintf("chunk repeats current sku %s", currentSKU))
			continue
		}
		reasons = append(reasons, fmt.Sprintf("chunk references foreign sku(s) %s", strings.Join(found, ", ")))
	}
	return safe, reasons
}

func containsSKU(skus []string, sku string) bool {
	for _, s := range skus {
		if s == sku {
			return true
		}
	}
	return false
}
