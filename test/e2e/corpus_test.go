package e2e

import (
	"testing"
)

func TestBuildCatalog_Returns60Products(t *testing.T) {
	c := BuildCatalog()
	if c.TotalProducts != 60 {
		t.Errorf("expected 60 products, got %d", c.TotalProducts)
	}
	if len(c.Products) != 60 {
		t.Errorf("expected len(Products)=60, got %d", len(c.Products))
	}
}

func TestBuildCatalog_SKUsAreUnique(t *testing.T) {
	c := BuildCatalog()
	seen := make(map[string]bool)
	for _, p := range c.Products {
		key := p.BrandCode + "/" + p.SKU
		if seen[key] {
			t.Errorf("duplicate product %s", key)
		}
		seen[key] = true
	}
}

func TestBuildCatalog_CategoryColorUniquePerBrand(t *testing.T) {
	c := BuildCatalog()
	seen := make(map[string]string)
	for _, p := range c.Products {
		key := p.BrandCode + "/" + p.Category + "/" + p.Color
		if other, dup := seen[key]; dup {
			t.Errorf("products %s and %s share brand, category and color", other, p.SKU)
		}
		seen[key] = p.SKU
	}
}

func TestBuildCatalog_QueryCasesExist(t *testing.T) {
	c := BuildCatalog()
	if c.TotalCases == 0 {
		t.Fatal("expected at least one similarity case")
	}
	for i, tc := range c.Cases {
		if tc.BrandCode == "" {
			t.Errorf("case %d: empty brand code", i)
		}
		if tc.Features == nil || tc.Features.Empty() {
			t.Errorf("case %d: empty features", i)
		}
		if len(tc.ExpectedSKUs) == 0 {
			t.Errorf("case %d: no expected SKUs", i)
		}
	}
}

func TestBuildCatalog_ExpectedSKUsAreOnSaleBrandProducts(t *testing.T) {
	c := BuildCatalog()
	byKey := make(map[string]CatalogProduct)
	for _, p := range c.Products {
		byKey[p.BrandCode+"/"+p.SKU] = p
	}
	for _, tc := range c.Cases {
		for _, sku := range tc.ExpectedSKUs {
			p, ok := byKey[tc.BrandCode+"/"+sku]
			if !ok {
				t.Errorf("case %q: expected SKU %s not in catalog under brand %s", tc.Description, sku, tc.BrandCode)
				continue
			}
			if !p.OnSale {
				t.Errorf("case %q: expected SKU %s is off sale and can never be returned", tc.Description, sku)
			}
			if tc.Features.Category != "" && p.Category != tc.Features.Category {
				t.Errorf("case %q: expected SKU %s has category %q, want %q", tc.Description, sku, p.Category, tc.Features.Category)
			}
		}
	}
}

func TestCatalog_ToProductInputs(t *testing.T) {
	c := BuildCatalog()
	inputs := c.ToProductInputs()
	if len(inputs) != len(c.Products) {
		t.Fatalf("expected %d inputs, got %d", len(c.Products), len(inputs))
	}
	for i := range inputs {
		p := c.Products[i]
		in := inputs[i]
		if in.BrandCode != p.BrandCode || in.SKU != p.SKU || in.Name != p.Name {
			t.Errorf("input[%d] identity mismatch: %s/%s %q", i, in.BrandCode, in.SKU, in.Name)
		}
		if in.Attributes["category"] != p.Category {
			t.Errorf("input[%d] category = %v, want %q", i, in.Attributes["category"], p.Category)
		}
		if in.Attributes["color"] != p.Color {
			t.Errorf("input[%d] color = %v, want %q", i, in.Attributes["color"], p.Color)
		}
		if in.OnSale == nil || *in.OnSale != p.OnSale {
			t.Errorf("input[%d] on_sale mismatch", i)
		}
	}
}

func TestCatalog_OffSaleSKUs(t *testing.T) {
	c := BuildCatalog()
	off := c.OffSaleSKUs()
	var total int
	for _, skus := range off {
		total += len(skus)
	}
	if total == 0 {
		t.Fatal("expected some off-sale products in the catalog")
	}
	for _, p := range c.Products {
		if !p.OnSale && !off[p.BrandCode][p.SKU] {
			t.Errorf("off-sale product %s/%s missing from OffSaleSKUs", p.BrandCode, p.SKU)
		}
		if p.OnSale && off[p.BrandCode][p.SKU] {
			t.Errorf("on-sale product %s/%s wrongly in OffSaleSKUs", p.BrandCode, p.SKU)
		}
	}
}
