package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/orbitblue/nitamono/internal/catalog"
	"github.com/orbitblue/nitamono/internal/featurecache"
	"github.com/orbitblue/nitamono/internal/keyword"
	"github.com/orbitblue/nitamono/internal/models"
	"github.com/orbitblue/nitamono/internal/similarity"
	"github.com/orbitblue/nitamono/internal/storage"
)

// maxSearchLimit caps how many hits a single search request may ask for.
const maxSearchLimit = 100

// apiResponse is the envelope every /api/v1 endpoint responds with.
// Data is always present, null on failure.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

func (s *Server) handleSimilarSKUs(w http.ResponseWriter, r *http.Request) {
	var req models.SimilarityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("similar skus request",
		zap.String("brand_code", req.BrandCode),
		zap.String("trace_id", req.TraceID),
		zap.String("mode", req.Mode),
		zap.Int("top_k", req.TopK))

	skus, fallbackUsed, err := s.similar.FindSimilar(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, similarity.ErrTraceNotFound):
			// An expired trace is a normal outcome the caller recovers
			// from by re-submitting features, so it is not an HTTP error.
			s.respondJSON(w, http.StatusOK, apiResponse{Message: similarity.ErrTraceNotFound.Error()})
		case errors.Is(err, similarity.ErrEmptyFeatures):
			s.respondError(w, http.StatusBadRequest, similarity.ErrEmptyFeatures.Error())
		default:
			s.logger.Error("similarity search failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	if skus == nil {
		skus = []string{}
	}
	s.respondData(w, http.StatusOK, map[string]interface{}{
		"similar_skus":  skus,
		"fallback_used": fallbackUsed,
	})
}

type retrieveRequest struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k,omitempty"`
	CurrentSKU string `json:"current_sku,omitempty"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.logger.Debug("retrieve request",
		zap.String("query", req.Query),
		zap.Int("top_k", req.TopK),
		zap.String("current_sku", req.CurrentSKU))
	contexts, diag := s.retrieval.RetrieveForSKU(r.Context(), req.Query, req.TopK, req.CurrentSKU)
	if contexts == nil {
		contexts = []string{}
	}
	s.respondData(w, http.StatusOK, map[string]interface{}{
		"contexts":    contexts,
		"diagnostics": diag,
	})
}

func (s *Server) handleProductSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	brand := q.Get("brand")
	limit := keyword.DefaultSearchLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	hits, err := s.keywords.Search(r.Context(), brand, query, limit)
	if err != nil {
		s.logger.Error("product search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if hits == nil {
		hits = []*keyword.Match{}
	}
	s.respondData(w, http.StatusOK, map[string]interface{}{
		"hits":  hits,
		"count": len(hits),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productCount, err := s.storage.CountProducts(ctx)
	if err != nil {
		s.logger.Error("stats: count products failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	brandCount, err := s.storage.CountBrands(ctx)
	if err != nil {
		s.logger.Error("stats: count brands failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	keywordCount, err := s.keywords.Count()
	if err != nil {
		s.logger.Error("stats: count keyword docs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	stats := map[string]interface{}{
		"products":     productCount,
		"brands":       brandCount,
		"keyword_docs": keywordCount,
		"vector":       s.vectors.Stats(),
	}

	configInfo := map[string]interface{}{
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"chunk_size":           s.config.Vector.ChunkSize,
		"chunk_overlap":        s.config.Vector.ChunkOverlap,
		"top_k":                s.config.Similarity.TopK,
		"database_path":        s.config.Storage.DatabasePath,
		"keyword_index_path":   s.config.Storage.KeywordIndexPath,
		"vector_index_dir":     s.config.Vector.IndexDir,
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.KeywordIndexPath,
		s.config.Vector.IndexDir,
	)
	if err == nil {
		stats["disk_usage_bytes"] = diskBytes
	}
	stats["config"] = configInfo

	s.respondData(w, http.StatusOK, stats)
}

type putFeaturesRequest struct {
	TraceID        string                 `json:"trace_id,omitempty"`
	BrandCode      string                 `json:"brand_code"`
	Scene          string                 `json:"scene,omitempty"`
	VisionFeatures *models.VisionFeatures `json:"vision_features"`
}

func (s *Server) handlePutFeatures(w http.ResponseWriter, r *http.Request) {
	var req putFeaturesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BrandCode == "" {
		s.respondError(w, http.StatusBadRequest, "brand_code is required")
		return
	}
	if req.VisionFeatures == nil || req.VisionFeatures.Empty() {
		s.respondError(w, http.StatusBadRequest, "vision_features is required")
		return
	}
	traceID := req.TraceID
	if traceID == "" {
		traceID = featurecache.NewTraceID()
	}
	rec := &models.FeatureRecord{
		TraceID:   traceID,
		BrandCode: req.BrandCode,
		Scene:     req.Scene,
		Features:  req.VisionFeatures,
	}
	if err := s.features.Put(r.Context(), rec); err != nil {
		s.logger.Error("feature cache put failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondData(w, http.StatusOK, map[string]string{"trace_id": traceID})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("rebuild requested")
	chunks, err := s.indexer.Rebuild(r.Context())
	if err != nil {
		s.logger.Error("rebuild failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondData(w, http.StatusOK, map[string]interface{}{
		"chunks": chunks,
		"status": "rebuilt",
	})
}

type importRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	s.logger.Info("import requested", zap.String("path", req.Path))
	imported, err := catalog.ImportXLSX(r.Context(), req.Path, s.storage, catalog.WithLogger(s.logger))
	if err != nil {
		s.logger.Error("import failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	indexed, err := s.indexer.RefreshKeywords(r.Context())
	if err != nil {
		s.logger.Error("keyword refresh after import failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondData(w, http.StatusOK, map[string]interface{}{
		"imported":     imported,
		"keyword_docs": indexed,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondData(w http.ResponseWriter, status int, data interface{}) {
	s.respondJSON(w, status, apiResponse{Success: true, Data: data})
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, apiResponse{Message: message})
}
