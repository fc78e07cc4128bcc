package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/orbitblue/nitamono/internal/embedding"
	"github.com/orbitblue/nitamono/internal/models"
	"github.com/orbitblue/nitamono/internal/rule"
	"github.com/orbitblue/nitamono/internal/vector"
)

func BenchmarkFlatIndexSearch(b *testing.B) {
	idx, _ := vector.NewFlatIndex(384)
	vecs := make([][]float32, 1000)
	for i := 0; i < 1000; i++ {
		vecs[i] = make([]float32, 384)
		vecs[i][0] = float32(i) / 1000
	}
	_ = idx.Add(vecs)
	query := make([]float32, 384)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(query, 10)
	}
}

func BenchmarkStubEmbed(b *testing.B) {
	e := embedding.NewStub(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "黑色简约运动鞋 四季 休闲")
	}
}

func BenchmarkRuleScore(b *testing.B) {
	scorer := rule.NewScorer(rule.DefaultWeights())
	products := make([]*models.Product, 300)
	for i := range products {
		products[i] = &models.Product{
			BrandCode: "BR001",
			SKU:       fmt.Sprintf("SKU-%03d", i),
			Name:      "黑色运动鞋",
			Tags:      []string{"运动", "跑步"},
			Attributes: map[string]interface{}{
				"category": "运动鞋",
				"colors":   []string{"黑色", "白色"},
				"season":   "四季",
			},
		}
	}
	features := &models.VisionFeatures{
		Category: "运动鞋",
		Color:    "黑色",
		Style:    []string{"运动"},
		Season:   "四季",
		Keywords: []string{"跑步"},
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range products {
			_ = scorer.Score(p, features)
		}
	}
}
