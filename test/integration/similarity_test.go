// Package integration provides cross-component tests (requires real storage and indexes).
package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/orbitblue/nitamono/internal/config"
	"github.com/orbitblue/nitamono/internal/embedding"
	"github.com/orbitblue/nitamono/internal/featurecache"
	"github.com/orbitblue/nitamono/internal/indexer"
	"github.com/orbitblue/nitamono/internal/keyword"
	"github.com/orbitblue/nitamono/internal/models"
	"github.com/orbitblue/nitamono/internal/similarity"
	"github.com/orbitblue/nitamono/internal/storage"
	"github.com/orbitblue/nitamono/internal/vector"
)

func TestIntegration_SimilarSKUs(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(dir, "db.sqlite")
	cfg.Storage.KeywordIndexPath = filepath.Join(dir, "keyword.bleve")
	cfg.Vector.IndexDir = filepath.Join(dir, "index")

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	embedder := embedding.NewStub(8)
	defer embedder.Close()
	vectors := vector.NewStore(embedder)

	keywords, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	defer keywords.Close()

	features := featurecache.NewCache(cfg.Redis, store)
	defer features.Close()

	idx := indexer.NewIndexer(store, vectors, keywords, &cfg.Vector)
	svc := similarity.NewService(store, vectors, features, &cfg.Similarity)
	ctx := context.Background()

	products := []*models.ProductInput{
		{BrandCode: "BR001", SKU: "SKU-001", Name: "黑色运动鞋",
			Attributes: map[string]interface{}{"category": "运动鞋", "color": "黑色"}},
		{BrandCode: "BR001", SKU: "SKU-002", Name: "白色运动鞋",
			Attributes: map[string]interface{}{"category": "运动鞋", "color": "白色"}},
		{BrandCode: "BR001", SKU: "SKU-003", Name: "红色连衣裙",
			Attributes: map[string]interface{}{"category": "连衣裙", "color": "红色"}},
	}
	if _, err := store.BatchUpsertProducts(ctx, products); err != nil {
		t.Fatal(err)
	}

	req := &models.SimilarityRequest{
		BrandCode:      "BR001",
		VisionFeatures: &models.VisionFeatures{Category: "运动鞋", Color: "白色"},
		TopK:           2,
		Mode:           models.ModeRule,
	}
	skus, fallback, err := svc.FindSimilar(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if fallback {
		t.Error("rule mode reported a fallback")
	}
	if len(skus) == 0 || skus[0] != "SKU-002" {
		t.Errorf("rule search = %v, want SKU-002 first", skus)
	}

	// Vector mode before any index exists degrades to the rule scorer.
	req.Mode = models.ModeVector
	skus, fallback, err = svc.FindSimilar(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if !fallback {
		t.Error("expected fallback without a vector index")
	}
	if len(skus) == 0 {
		t.Error("fallback returned no SKUs")
	}

	// After a rebuild vector mode serves from the index.
	if _, err := idx.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	skus, _, err = svc.FindSimilar(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(skus) == 0 {
		t.Error("vector search returned no SKUs")
	}
	for _, sku := range skus {
		if _, err := store.GetProduct(ctx, "BR001", sku); err != nil {
			t.Errorf("returned SKU %s not in brand BR001: %v", sku, err)
		}
	}
}
