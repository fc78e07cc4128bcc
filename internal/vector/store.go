package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/orbitblue/nitamono/internal/embedding"
)

// File names inside the index directory.
const (
	IndexFileName  = "vectors.idx"
	ChunksFileName = "chunks.json"
)

// SearchResult is one chunk hit with its squared L2 distance to the query.
type SearchResult struct {
	Chunk    string
	Distance float64
}

// Stats describes the current store contents.
type Stats struct {
	Loaded     bool `json:"loaded"`
	Vectors    int  `json:"vectors"`
	Dimensions int  `json:"dimensions"`
	Chunks     int  `json:"chunks"`
}

// Store pairs an exact vector index with the chunk texts behind it and keeps
// the two consistent under concurrent search, rebuild, and reload. Index rows
// map positionally to chunks. Rebuilds and reloads replace both together; the
// published index is never mutated in place.
type Store struct {
	embedder embedding.Embedder
	logger   *zap.Logger

	mu     sync.RWMutex
	index  *FlatIndex
	chunks []string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty store backed by the given embedder.
func NewStore(embedder embedding.Embedder, opts ...StoreOption) *Store {
	s := &Store{
		embedder: embedder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build embeds the chunks, normalizes the vectors, and replaces the store
// contents with a fresh index. An empty chunk list leaves the store unchanged.
// The dimension is taken from the first returned vector.
func (s *Store) Build(ctx context.Context, chunks []string) error {
	if len(chunks) == 0 {
		s.logger.Warn("no chunks to index, store unchanged")
		return nil
	}
	vecs, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}
	index, err := NewFlatIndex(len(vecs[0]))
	if err != nil {
		return err
	}
	for _, vec := range vecs {
		Normalize(vec)
	}
	if err := index.Add(vecs); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}
	kept := make([]string, len(chunks))
	copy(kept, chunks)

	s.mu.Lock()
	s.index = index
	s.chunks = kept
	s.mu.Unlock()

	s.logger.Info("vector index built",
		zap.Int("chunks", len(chunks)),
		zap.Int("dimensions", index.Dimensions()))
	return nil
}

// Search embeds the query and returns up to k chunks ordered by ascending
// squared L2 distance. A blank query or an unloaded store yields no results.
func (s *Store) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	s.mu.RLock()
	index := s.index
	chunks := s.chunks
	s.mu.RUnlock()
	if strings.TrimSpace(query) == "" || index == nil || len(chunks) == 0 {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	Normalize(vec)
	if k > index.Size() {
		k = index.Size()
	}
	hits, err := index.Search(vec, k)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Row < 0 || h.Row >= len(chunks) {
			s.logger.Warn("index row out of chunk range",
				zap.Int("row", h.Row),
				zap.Int("chunks", len(chunks)))
			continue
		}
		results = append(results, SearchResult{Chunk: chunks[h.Row], Distance: h.Distance})
	}
	return results, nil
}

// Save writes the index and chunk list to dir. Both files are written to
// temporary names first and renamed into place only after both writes
// succeed, so a crash never leaves a torn pair. A nil index is a warn no-op.
func (s *Store) Save(dir string) error {
	s.mu.RLock()
	index := s.index
	chunks := s.chunks
	s.mu.RUnlock()
	if index == nil {
		s.logger.Warn("vector index is nil, nothing to save")
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	indexPath := filepath.Join(dir, IndexFileName)
	chunksPath := filepath.Join(dir, ChunksFileName)
	indexTmp := indexPath + ".tmp"
	chunksTmp := chunksPath + ".tmp"

	if err := index.Save(indexTmp); err != nil {
		return err
	}
	data, err := json.Marshal(chunks)
	if err != nil {
		os.Remove(indexTmp)
		return fmt.Errorf("marshal chunks: %w", err)
	}
	if err := os.WriteFile(chunksTmp, data, 0644); err != nil {
		os.Remove(indexTmp)
		return fmt.Errorf("write chunks: %w", err)
	}
	if err := os.Rename(indexTmp, indexPath); err != nil {
		os.Remove(chunksTmp)
		return fmt.Errorf("rename index file: %w", err)
	}
	if err := os.Rename(chunksTmp, chunksPath); err != nil {
		return fmt.Errorf("rename chunks file: %w", err)
	}
	s.logger.Info("vector store saved",
		zap.String("dir", dir),
		zap.Int("vectors", index.Size()))
	return nil
}

// Load reads the index and chunk list from dir and replaces the store
// contents. Returns false with no error when either file is missing (nothing
// persisted yet), false with an error when a file exists but cannot be read.
// A count mismatch between vectors and chunks is logged but tolerated; search
// skips rows without a chunk.
func (s *Store) Load(dir string) (bool, error) {
	indexPath := filepath.Join(dir, IndexFileName)
	chunksPath := filepath.Join(dir, ChunksFileName)

	index, err := ReadFlatIndex(indexPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	data, err := os.ReadFile(chunksPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read chunks: %w", err)
	}
	var chunks []string
	if err := json.Unmarshal(data, &chunks); err != nil {
		return false, fmt.Errorf("decode chunks: %w", err)
	}
	if index.Size() != len(chunks) {
		s.logger.Warn("index and chunk counts differ",
			zap.Int("vectors", index.Size()),
			zap.Int("chunks", len(chunks)))
	}

	s.mu.Lock()
	s.index = index
	s.chunks = chunks
	s.mu.Unlock()

	s.logger.Info("vector store loaded",
		zap.String("dir", dir),
		zap.Int("vectors", index.Size()),
		zap.Int("chunks", len(chunks)))
	return true, nil
}

// Loaded reports whether the store has an index and at least one chunk.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index != nil && len(s.chunks) > 0
}

// Stats returns the current store contents.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Loaded: s.index != nil && len(s.chunks) > 0,
		Chunks: len(s.chunks),
	}
	if s.index != nil {
		st.Vectors = s.index.Size()
		st.Dimensions = s.index.Dimensions()
	}
	return st
}

// swapMu serializes Swap calls. Swapping holds both store locks at once;
// without the outer lock two swaps in opposite directions could each grab
// one store and wait forever on the other.
var swapMu sync.Mutex

// Swap exchanges the contents of two stores. Used to publish a freshly loaded
// store onto the serving one in a single step.
func (s *Store) Swap(other *Store) {
	if other == nil || s == other {
		return
	}
	swapMu.Lock()
	defer swapMu.Unlock()
	s.mu.Lock()
	other.mu.Lock()
	s.index, other.index = other.index, s.index
	s.chunks, other.chunks = other.chunks, s.chunks
	other.mu.Unlock()
	s.mu.Unlock()
}
