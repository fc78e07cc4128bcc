package embedding

import (
	"context"
	"math"
	"reflect"
	"testing"
)

func TestStub_Deterministic(t *testing.T) {
	s := NewStub(64)
	ctx := context.Background()

	a, err := s.Embed(ctx, "黑色运动鞋")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	b, err := s.Embed(ctx, "黑色运动鞋")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("same text should produce identical vectors")
	}

	c, err := s.Embed(ctx, "红色连衣裙")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if reflect.DeepEqual(a, c) {
		t.Error("different texts should produce different vectors")
	}
}

func TestStub_UnitNorm(t *testing.T) {
	s := NewStub(1536)
	vec, err := s.Embed(context.Background(), "some product text")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if norm := math.Sqrt(sum); math.Abs(norm-1.0) > 1e-4 {
		t.Errorf("expected unit norm, got %f", norm)
	}
}

func TestStub_Dimensions(t *testing.T) {
	s := NewStub(32)
	vec, err := s.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(vec) != 32 {
		t.Errorf("expected 32 dimensions, got %d", len(vec))
	}
	if s.Dimensions() != 32 {
		t.Errorf("Dimensions() = %d", s.Dimensions())
	}

	if d := NewStub(0).Dimensions(); d != DefaultDimensions {
		t.Errorf("zero dimension should fall back to default, got %d", d)
	}
}

func TestStub_EmbedBatch(t *testing.T) {
	s := NewStub(16)
	vecs, err := s.EmbedBatch(context.Background(), []string{"a", "b", "a"})
	if err != nil {
		t.Fatalf("EmbedBatch error: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if !reflect.DeepEqual(vecs[0], vecs[2]) {
		t.Error("repeated text should embed identically")
	}
}
