// Package similarity finds catalog SKUs that look like a set of vision
// features. Vector mode searches the embedding index and degrades to the
// rule scorer when it returns nothing; rule mode ranks brand candidates by
// attribute overlap.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/orbitblue/nitamono/internal/config"
	"github.com/orbitblue/nitamono/internal/docid"
	"github.com/orbitblue/nitamono/internal/featurecache"
	"github.com/orbitblue/nitamono/internal/models"
	"github.com/orbitblue/nitamono/internal/rule"
	"github.com/orbitblue/nitamono/internal/storage"
	"github.com/orbitblue/nitamono/internal/vector"
)

// Sentinel errors surfaced to the API layer.
var (
	ErrTraceNotFound = errors.New("trace_id not found or expired")
	ErrEmptyFeatures = errors.New("vision_features is empty")
)

// Service answers similar-sku requests.
type Service struct {
	store          storage.Storage
	vectors        *vector.Store
	features       *featurecache.Cache
	scorer         *rule.Scorer
	candidateLimit int
	onSaleOnly     bool
	logger         *zap.Logger
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

// NewService creates the similarity service. cfg may be nil for defaults.
func NewService(store storage.Storage, vectors *vector.Store, features *featurecache.Cache, cfg *config.SimilarityConfig, opts ...Option) *Service {
	s := &Service{
		store:          store,
		vectors:        vectors,
		features:       features,
		scorer:         rule.NewScorer(rule.DefaultWeights()),
		candidateLimit: storage.DefaultCandidateLimit,
		onSaleOnly:     true,
		logger:         zap.NewNop(),
	}
	if cfg != nil {
		if cfg.CandidateLimit > 0 {
			s.candidateLimit = cfg.CandidateLimit
		}
		s.onSaleOnly = cfg.OnSaleOnlyOrDefault()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindSimilar returns up to req.TopK SKUs of the same brand, most similar
// first, and whether the rule fallback was used. Results are bare SKU
// strings; price and stock never appear here.
func (s *Service) FindSimilar(ctx context.Context, req *models.SimilarityRequest) ([]string, bool, error) {
	if req == nil {
		return nil, false, errors.New("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, false, err
	}
	log := s.logger.With(zap.String("brand_code", req.BrandCode), zap.String("mode", req.Mode))

	features, cachedBrand, err := s.resolveFeatures(ctx, req)
	if err != nil {
		return nil, false, err
	}
	if features.Empty() {
		return nil, false, ErrEmptyFeatures
	}

	// A trace hit carries the brand the image was analyzed under; that brand
	// wins over the one in the request.
	brand := req.BrandCode
	if cachedBrand != "" {
		if cachedBrand != req.BrandCode {
			log.Warn("brand mismatch between request and cached features",
				zap.String("requested", req.BrandCode),
				zap.String("cached", cachedBrand))
		}
		brand = cachedBrand
	}

	fallbackUsed := false
	if req.Mode == models.ModeVector {
		skus, verr := s.searchVector(ctx, brand, features, req.TopK)
		switch {
		case verr != nil:
			log.Warn("vector search failed, falling back to rule", zap.Error(verr))
			fallbackUsed = true
		case len(skus) == 0:
			log.Warn("vector search returned no results, falling back to rule")
			fallbackUsed = true
		default:
			log.Info("vector search succeeded", zap.Int("skus", len(skus)))
			return skus, false, nil
		}
	}

	skus, err := s.searchRule(ctx, brand, features, req.TopK)
	if err != nil {
		return nil, fallbackUsed, err
	}
	log.Info("rule search completed", zap.Int("skus", len(skus)), zap.Bool("fallback_used", fallbackUsed))
	return skus, fallbackUsed, nil
}

// resolveFeatures returns the features to search with and, when they came
// from the trace cache, the brand they were recorded under.
func (s *Service) resolveFeatures(ctx context.Context, req *models.SimilarityRequest) (*models.VisionFeatures, string, error) {
	if req.VisionFeatures != nil {
		s.logger.Debug("using vision features from request")
		return req.VisionFeatures, "", nil
	}
	rec, err := s.features.Get(ctx, req.TraceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: %s", ErrTraceNotFound, req.TraceID)
		}
		return nil, "", fmt.Errorf("resolve trace %s: %w", req.TraceID, err)
	}
	s.logger.Debug("vision features resolved from trace",
		zap.String("trace_id", req.TraceID), zap.String("cached_brand", rec.BrandCode))
	return rec.Features, rec.BrandCode, nil
}

// searchVector queries the embedding index with the feature text and maps
// hits back to SKUs. Only SKUs present in the catalog under brand survive.
func (s *Service) searchVector(ctx context.Context, brand string, f *models.VisionFeatures, topK int) ([]string, error) {
	query := f.QueryText()
	if query == "" {
		s.logger.Warn("empty query text for vector search")
		return nil, nil
	}

	// Over-fetch to leave room for cross-brand hits and duplicate chunks.
	results, err := s.vectors.Search(ctx, query, topK*2)
	if err != nil {
		return nil, err
	}

	skus := make([]string, 0, topK)
	seen := make(map[string]struct{})
	for _, res := range results {
		sku := docid.ExtractSKU(res.Chunk)
		if sku == "" {
			continue
		}
		if _, err := s.store.GetProduct(ctx, brand, sku); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		key := docid.DocumentID(brand, sku)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		skus = append(skus, sku)
		if len(skus) >= topK {
			break
		}
	}
	return skus, nil
}

type scoredProduct struct {
	product *models.Product
	score   float64
}

// searchRule loads brand candidates, filters them by category when the
// features name one, and ranks the rest by attribute overlap.
func (s *Service) searchRule(ctx context.Context, brand string, f *models.VisionFeatures, topK int) ([]string, error) {
	candidates, err := s.store.CandidatesByBrand(ctx, brand, s.onSaleOnly, s.candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	if len(candidates) == 0 {
		s.logger.Warn("no candidates found", zap.String("brand_code", brand))
		return nil, nil
	}

	if f.Category != "" {
		filtered := candidates[:0]
		for _, p := range candidates {
			if c := p.Category(); c != "" && rule.CategoryMatches(c, f.Category) {
				filtered = append(filtered, p)
			}
		}
		s.logger.Debug("category filter applied",
			zap.String("category", f.Category),
			zap.Int("kept", len(filtered)),
			zap.Int("removed", len(candidates)-len(filtered)))
		candidates = filtered
	}

	scored := make([]scoredProduct, 0, len(candidates))
	for _, p := range candidates {
		scored = append(scored, scoredProduct{product: p, score: s.scorer.Score(p, f)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].product.UpdatedAt.After(scored[j].product.UpdatedAt)
	})

	skus := make([]string, 0, topK)
	seen := make(map[string]struct{})
	for _, sp := range scored {
		key := docid.DocumentID(sp.product.BrandCode, sp.product.SKU)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		skus = append(skus, sp.product.SKU)
		if len(skus) >= topK {
			break
		}
	}
	return skus, nil
}
