// Package server provides the HTTP API for nitamono.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/orbitblue/nitamono/internal/config"
	"github.com/orbitblue/nitamono/internal/featurecache"
	"github.com/orbitblue/nitamono/internal/indexer"
	"github.com/orbitblue/nitamono/internal/keyword"
	"github.com/orbitblue/nitamono/internal/retrieval"
	"github.com/orbitblue/nitamono/internal/similarity"
	"github.com/orbitblue/nitamono/internal/storage"
	"github.com/orbitblue/nitamono/internal/vector"
)

// Server is the HTTP server for the nitamono API.
type Server struct {
	similar   *similarity.Service
	retrieval *retrieval.Service
	indexer   *indexer.Indexer
	keywords  keyword.Index
	vectors   *vector.Store
	storage   storage.Storage
	features  *featurecache.Cache
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	similar *similarity.Service,
	retrieval *retrieval.Service,
	idx *indexer.Indexer,
	keywords keyword.Index,
	vectors *vector.Store,
	storage storage.Storage,
	features *featurecache.Cache,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		similar:   similar,
		retrieval: retrieval,
		indexer:   idx,
		keywords:  keywords,
		vectors:   vectors,
		storage:   storage,
		features:  features,
		config:    cfg,
		logger:    logger,
	}
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.traceMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/similar-skus", s.handleSimilarSKUs)
	r.Post("/api/v1/retrieve", s.handleRetrieve)
	r.Get("/api/v1/products/search", s.handleProductSearch)
	r.Get("/api/v1/stats", s.handleStats)
	r.Put("/api/v1/feature-cache", s.handlePutFeatures)
	r.Post("/api/v1/admin/rebuild", s.handleRebuild)
	r.Post("/api/v1/admin/import", s.handleImport)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
