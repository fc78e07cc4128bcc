// Package embedding produces vector embeddings for product text via a remote
// embeddings API, with a deterministic local fallback when the API is not
// configured or unavailable.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
