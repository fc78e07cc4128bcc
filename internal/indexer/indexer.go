package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/orbitblue/nitamono/internal/catalog"
	"github.com/orbitblue/nitamono/internal/config"
	"github.com/orbitblue/nitamono/internal/docid"
	"github.com/orbitblue/nitamono/internal/keyword"
	"github.com/orbitblue/nitamono/internal/models"
	"github.com/orbitblue/nitamono/internal/storage"
	"github.com/orbitblue/nitamono/internal/vector"
)

// chunkTagReserve keeps room in each chunk for the trailing SKU tag.
const chunkTagReserve = 50

// listPageSize is how many products Rebuild loads per storage query.
const listPageSize = 500

// Indexer rebuilds the vector index and the keyword index from the catalog.
type Indexer struct {
	storage   storage.Storage
	vectors   *vector.Store
	keywords  keyword.Index
	chunker   *Chunker
	chunkSize int
	indexDir  string
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger used for rebuild progress.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer over the given catalog and indexes.
// keywords may be nil when no keyword index is configured.
func NewIndexer(store storage.Storage, vectors *vector.Store, keywords keyword.Index, cfg *config.VectorConfig, opts ...IndexerOption) *Indexer {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	splitSize := chunkSize - chunkTagReserve
	if splitSize < 1 {
		splitSize = chunkSize
	}
	idx := &Indexer{
		storage:   store,
		vectors:   vectors,
		keywords:  keywords,
		chunker:   NewChunker(splitSize, cfg.ChunkOverlap),
		chunkSize: chunkSize,
		indexDir:  cfg.IndexDir,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// ChunkProduct renders one product as text and splits it into tagged chunks.
// Text that fits within chunkSize stays whole; longer text is split with
// room reserved for the tag so tagged chunks stay near the size limit.
func (idx *Indexer) ChunkProduct(p *models.Product) []string {
	text := Preprocess(catalog.BuildText(p))
	if text == "" {
		return nil
	}
	var chunks []string
	if len([]rune(text)) <= idx.chunkSize {
		chunks = []string{text}
	} else {
		chunks = idx.chunker.Chunk(text)
	}
	for i, ch := range chunks {
		chunks[i] = docid.TagChunk(ch, p.SKU)
	}
	return chunks
}

// Rebuild regenerates the vector index from every product in the catalog,
// persists it to the index directory, and refreshes the keyword index.
// The vector store keeps serving its current state until the new one is
// committed in a single step. Returns the number of chunks indexed.
func (idx *Indexer) Rebuild(ctx context.Context) (int, error) {
	products, err := idx.listAllProducts(ctx)
	if err != nil {
		return 0, err
	}

	var chunks []string
	for _, p := range products {
		chunks = append(chunks, idx.ChunkProduct(p)...)
	}
	if len(chunks) == 0 {
		idx.logger.Warn("no product text to index, skipping rebuild")
		return 0, nil
	}

	if err := idx.vectors.Build(ctx, chunks); err != nil {
		return 0, fmt.Errorf("build vector index: %w", err)
	}
	if err := idx.vectors.Save(idx.indexDir); err != nil {
		return 0, fmt.Errorf("save vector index: %w", err)
	}
	if idx.keywords != nil {
		if err := idx.keywords.BatchIndex(ctx, products); err != nil {
			return 0, fmt.Errorf("refresh keyword index: %w", err)
		}
	}

	idx.logger.Info("index rebuilt",
		zap.Int("products", len(products)),
		zap.Int("chunks", len(chunks)),
		zap.String("dir", idx.indexDir))
	return len(chunks), nil
}

// RefreshKeywords reindexes every product into the keyword index without
// touching the vector index. Used after imports, where embedding is too
// expensive to redo eagerly. Returns the number of products indexed.
func (idx *Indexer) RefreshKeywords(ctx context.Context) (int, error) {
	if idx.keywords == nil {
		return 0, nil
	}
	products, err := idx.listAllProducts(ctx)
	if err != nil {
		return 0, err
	}
	if err := idx.keywords.BatchIndex(ctx, products); err != nil {
		return 0, fmt.Errorf("refresh keyword index: %w", err)
	}
	return len(products), nil
}

func (idx *Indexer) listAllProducts(ctx context.Context) ([]*models.Product, error) {
	var all []*models.Product
	for offset := 0; ; offset += listPageSize {
		page, err := idx.storage.ListProducts(ctx, offset, listPageSize)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		all = append(all, page...)
		if len(page) < listPageSize {
			return all, nil
		}
	}
}
