package e2e

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/orbitblue/nitamono/internal/catalog"
	"github.com/orbitblue/nitamono/internal/storage"
)

func TestWriteCatalogXLSX_ImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := BuildCatalog()

	path := filepath.Join(dir, "catalog.xlsx")
	if err := WriteCatalogXLSX(path, c.Products); err != nil {
		t.Fatalf("WriteCatalogXLSX: %v", err)
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	n, err := catalog.ImportXLSX(ctx, path, store)
	if err != nil {
		t.Fatalf("ImportXLSX: %v", err)
	}
	if n != c.TotalProducts {
		t.Errorf("imported %d products, want %d", n, c.TotalProducts)
	}

	for _, want := range []CatalogProduct{c.Products[0], c.Products[len(c.Products)-1]} {
		got, err := store.GetProduct(ctx, want.BrandCode, want.SKU)
		if err != nil {
			t.Fatalf("GetProduct(%s, %s): %v", want.BrandCode, want.SKU, err)
		}
		if got.Name != want.Name {
			t.Errorf("%s: name = %q, want %q", want.SKU, got.Name, want.Name)
		}
		if got.Category() != want.Category {
			t.Errorf("%s: category = %q, want %q", want.SKU, got.Category(), want.Category)
		}
		if got.OnSale != want.OnSale {
			t.Errorf("%s: on_sale = %v, want %v", want.SKU, got.OnSale, want.OnSale)
		}
		if len(got.Tags) != len(want.Tags) {
			t.Errorf("%s: tags = %v, want %v", want.SKU, got.Tags, want.Tags)
		}
	}
}
