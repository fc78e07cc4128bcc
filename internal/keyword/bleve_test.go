package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/orbitblue/nitamono/internal/models"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "keyword.bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func seedProducts(t *testing.T, idx *BleveIndex) {
	t.Helper()
	products := []*models.Product{
		{BrandCode: "BR01", SKU: "SKU001", Name: "黑色运动鞋", Description: "轻便透气的跑步鞋", Tags: []string{"休闲", "透气"}},
		{BrandCode: "BR01", SKU: "SKU002", Name: "白色帆布鞋", Description: "经典百搭款", Tags: []string{"百搭"}},
		{BrandCode: "BR02", SKU: "SKU001", Name: "黑色运动外套", Description: "防风保暖", Tags: []string{"运动"}},
	}
	if err := idx.BatchIndex(context.Background(), products); err != nil {
		t.Fatalf("BatchIndex: %v", err)
	}
}

func TestBleveIndex_SearchByName(t *testing.T) {
	idx := newTestIndex(t)
	seedProducts(t, idx)

	results, err := idx.Search(context.Background(), "", "运动鞋", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected hits for 运动鞋")
	}
	if results[0].SKU != "SKU001" || results[0].BrandCode != "BR01" {
		t.Errorf("top hit = %s/%s, want BR01/SKU001", results[0].BrandCode, results[0].SKU)
	}
	if results[0].Name != "黑色运动鞋" {
		t.Errorf("top hit name = %q", results[0].Name)
	}
	if results[0].Score <= 0 {
		t.Error("hit should carry a positive score")
	}
}

func TestBleveIndex_BrandScope(t *testing.T) {
	idx := newTestIndex(t)
	seedProducts(t, idx)
	ctx := context.Background()

	results, err := idx.Search(ctx, "BR02", "黑色", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 hit in BR02, got %d", len(results))
	}
	if results[0].BrandCode != "BR02" || results[0].SKU != "SKU001" {
		t.Errorf("got %s/%s", results[0].BrandCode, results[0].SKU)
	}

	results, err = idx.Search(ctx, "BR99", "黑色", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("unknown brand should return nothing, got %d", len(results))
	}
}

func TestBleveIndex_SearchBySKU(t *testing.T) {
	idx := newTestIndex(t)
	seedProducts(t, idx)

	results, err := idx.Search(context.Background(), "BR01", "SKU002", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].SKU != "SKU002" {
		t.Errorf("exact sku search failed: %v", results)
	}
}

func TestBleveIndex_SearchByTag(t *testing.T) {
	idx := newTestIndex(t)
	seedProducts(t, idx)

	results, err := idx.Search(context.Background(), "BR01", "百搭", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	found := false
	for _, m := range results {
		if m.SKU == "SKU002" {
			found = true
		}
	}
	if !found {
		t.Errorf("tag search should surface SKU002, got %v", results)
	}
}

func TestBleveIndex_IndexUpdatesInPlace(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	p := &models.Product{BrandCode: "BR01", SKU: "SKU001", Name: "旧名称"}
	if err := idx.Index(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.Name = "新名称"
	if err := idx.Index(ctx, p); err != nil {
		t.Fatal(err)
	}

	n, err := idx.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("re-index should update, count = %d", n)
	}

	results, err := idx.Search(ctx, "", "新名称", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the updated doc, got %d hits", len(results))
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := newTestIndex(t)
	seedProducts(t, idx)
	ctx := context.Background()

	if err := idx.Delete(ctx, "BR01", "SKU001"); err != nil {
		t.Fatal(err)
	}
	n, err := idx.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 docs after delete, got %d", n)
	}

	results, err := idx.Search(ctx, "BR01", "运动鞋", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range results {
		if m.BrandCode == "BR01" && m.SKU == "SKU001" {
			t.Error("deleted product still in results")
		}
	}
}

func TestBleveIndex_ReopenExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyword.bleve")

	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	seedProducts(t, idx)
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	n, err := reopened.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 docs after reopen, got %d", n)
	}
}
