package embedding

import (
	"context"
	"crypto/md5"
	"math"
)

// Stub produces deterministic pseudo-embeddings derived from the MD5 digest
// of the text. The 16 digest bytes are cycled across the full dimension and
// mapped into [-1, 1], then normalized to unit length so distance math
// behaves like real embeddings. The same text always yields the same vector.
type Stub struct {
	dimensions int
}

// NewStub returns a stub embedder with the given dimension.
func NewStub(dimensions int) *Stub {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Stub{dimensions: dimensions}
}

// Embed returns the deterministic embedding for text.
func (s *Stub) Embed(ctx context.Context, text string) ([]float32, error) {
	digest := md5.Sum([]byte(text))
	vec := make([]float32, s.dimensions)
	for i := range vec {
		vec[i] = float32(float64(digest[i%len(digest)])/127.5 - 1.0)
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		norm := float32(1.0 / math.Sqrt(sum))
		for i := range vec {
			vec[i] *= norm
		}
	}
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (s *Stub) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (s *Stub) Dimensions() int {
	return s.dimensions
}

// Close is a no-op for Stub.
func (s *Stub) Close() error {
	return nil
}
