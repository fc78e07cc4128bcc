// Package e2e provides end-to-end tests with a multi-brand catalog and
// similarity query cases that drive the full service stack.
package e2e

import (
	"fmt"

	"github.com/orbitblue/nitamono/internal/models"
)

// CatalogProduct is a product entry in the e2e catalog. Category, Color,
// Style and Season land in the attributes column on import.
type CatalogProduct struct {
	BrandCode   string
	SKU         string
	Name        string
	Price       float64
	Tags        []string
	Category    string
	Color       string
	Style       []string
	Season      string
	OnSale      bool
	Description string
}

// SimilarityCase defines a feature query and the SKU(s) that must appear in
// the results. At least one of ExpectedSKUs must be present.
type SimilarityCase struct {
	Description  string
	BrandCode    string
	Features     *models.VisionFeatures
	ExpectedSKUs []string
}

// Catalog holds products and similarity query cases for e2e tests.
type Catalog struct {
	Products      []CatalogProduct
	Cases         []SimilarityCase
	TotalProducts int
	TotalCases    int
}

// BuildCatalog returns a catalog of 60 products across three brands and the
// query cases against it. Within a brand each (category, color) pair is
// unique, so a category+color query has exactly one best match.
func BuildCatalog() *Catalog {
	products := buildProducts()
	cases := buildSimilarityCases(products)
	return &Catalog{
		Products:      products,
		Cases:         cases,
		TotalProducts: len(products),
		TotalCases:    len(cases),
	}
}

type productLine struct {
	category string
	code     string
	style    string
	season   string
	colors   []string
	base     float64
}

func buildProducts() []CatalogProduct {
	brands := []struct {
		brand string
		lines []productLine
	}{
		{
			brand: "BR001",
			lines: []productLine{
				{"运动鞋", "SNK", "运动", "四季", []string{"黑色", "白色", "红色", "蓝色", "绿色", "灰色", "黄色", "粉色"}, 299},
				{"卫衣", "HOD", "休闲", "秋季", []string{"黑色", "白色", "灰色", "蓝色", "红色", "绿色"}, 199},
				{"运动短裤", "SHT", "运动", "夏季", []string{"黑色", "白色", "蓝色", "灰色", "绿色", "红色"}, 99},
			},
		},
		{
			brand: "BR002",
			lines: []productLine{
				{"连衣裙", "DRS", "优雅", "夏季", []string{"白色", "红色", "蓝色", "黑色", "粉色", "黄色", "绿色", "紫色"}, 399},
				{"半身裙", "SKT", "甜美", "春季", []string{"粉色", "白色", "蓝色", "黄色", "黑色", "红色"}, 259},
				{"衬衫", "SHR", "通勤", "四季", []string{"白色", "蓝色", "黑色", "灰色", "粉色", "绿色"}, 189},
			},
		},
		{
			brand: "BR003",
			lines: []productLine{
				{"羽绒服", "DWN", "户外", "冬季", []string{"黑色", "红色", "蓝色", "白色", "绿色", "灰色", "黄色", "橙色"}, 899},
				{"冲锋衣", "JKT", "户外", "秋季", []string{"红色", "蓝色", "黑色", "绿色", "橙色", "灰色"}, 699},
				{"登山靴", "BOT", "户外", "四季", []string{"棕色", "黑色", "灰色", "绿色", "蓝色", "橙色"}, 499},
			},
		},
	}

	var out []CatalogProduct
	for _, b := range brands {
		for _, line := range b.lines {
			for i, color := range line.colors {
				// The last color of every line stays off sale so rule search
				// always has excluded candidates to skip.
				onSale := i != len(line.colors)-1
				out = append(out, CatalogProduct{
					BrandCode:   b.brand,
					SKU:         fmt.Sprintf("%s-%s-%03d", b.brand, line.code, i+1),
					Name:        color + line.category,
					Price:       line.base + float64(i)*10,
					Tags:        []string{line.category, line.style},
					Category:    line.category,
					Color:       color,
					Style:       []string{line.style},
					Season:      line.season,
					OnSale:      onSale,
					Description: fmt.Sprintf("%s%s，%s%s款", color, line.category, line.season, line.style),
				})
			}
		}
	}
	return out
}

func buildSimilarityCases(products []CatalogProduct) []SimilarityCase {
	targets := []struct {
		brand    string
		category string
		color    string
	}{
		{"BR001", "运动鞋", "黑色"},
		{"BR001", "运动鞋", "红色"},
		{"BR001", "运动鞋", "灰色"},
		{"BR001", "卫衣", "蓝色"},
		{"BR001", "运动短裤", "白色"},
		{"BR002", "连衣裙", "白色"},
		{"BR002", "连衣裙", "粉色"},
		{"BR002", "连衣裙", "黑色"},
		{"BR002", "半身裙", "黄色"},
		{"BR002", "衬衫", "蓝色"},
		{"BR003", "羽绒服", "红色"},
		{"BR003", "羽绒服", "白色"},
		{"BR003", "冲锋衣", "橙色"},
		{"BR003", "登山靴", "棕色"},
		{"BR003", "登山靴", "黑色"},
	}

	var cases []SimilarityCase
	for _, tgt := range targets {
		p := findProduct(products, tgt.brand, tgt.category, tgt.color)
		if p == nil || !p.OnSale {
			continue
		}
		cases = append(cases, SimilarityCase{
			Description: fmt.Sprintf("%s %s%s", tgt.brand, tgt.color, tgt.category),
			BrandCode:   tgt.brand,
			Features: &models.VisionFeatures{
				Category: tgt.category,
				Color:    tgt.color,
			},
			ExpectedSKUs: []string{p.SKU},
		})
	}

	// A few cases with the full feature set, to exercise style, season and
	// keyword scoring on top of the category filter.
	full := []struct {
		brand    string
		category string
		color    string
	}{
		{"BR001", "卫衣", "灰色"},
		{"BR002", "连衣裙", "红色"},
		{"BR003", "冲锋衣", "红色"},
	}
	for _, tgt := range full {
		p := findProduct(products, tgt.brand, tgt.category, tgt.color)
		if p == nil || !p.OnSale {
			continue
		}
		cases = append(cases, SimilarityCase{
			Description: fmt.Sprintf("%s %s%s full features", tgt.brand, tgt.color, tgt.category),
			BrandCode:   tgt.brand,
			Features: &models.VisionFeatures{
				Category: p.Category,
				Color:    p.Color,
				Colors:   []string{p.Color},
				Style:    append([]string(nil), p.Style...),
				Season:   p.Season,
				Keywords: []string{p.Name},
			},
			ExpectedSKUs: []string{p.SKU},
		})
	}
	return cases
}

func findProduct(products []CatalogProduct, brand, category, color string) *CatalogProduct {
	for i := range products {
		p := &products[i]
		if p.BrandCode == brand && p.Category == category && p.Color == color {
			return p
		}
	}
	return nil
}

// OffSaleSKUs returns the SKUs that are not on sale, keyed by brand.
func (c *Catalog) OffSaleSKUs() map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, p := range c.Products {
		if p.OnSale {
			continue
		}
		if out[p.BrandCode] == nil {
			out[p.BrandCode] = make(map[string]bool)
		}
		out[p.BrandCode][p.SKU] = true
	}
	return out
}

// ToProductInputs converts the catalog products to models.ProductInput for
// upserting into storage.
func (c *Catalog) ToProductInputs() []*models.ProductInput {
	out := make([]*models.ProductInput, len(c.Products))
	for i := range c.Products {
		p := &c.Products[i]
		onSale := p.OnSale
		out[i] = &models.ProductInput{
			BrandCode:   p.BrandCode,
			SKU:         p.SKU,
			Name:        p.Name,
			Price:       p.Price,
			Tags:        append([]string(nil), p.Tags...),
			Attributes:  p.attributes(),
			Description: p.Description,
			OnSale:      &onSale,
		}
	}
	return out
}

func (p *CatalogProduct) attributes() map[string]interface{} {
	attrs := map[string]interface{}{
		"category": p.Category,
		"color":    p.Color,
		"colors":   []string{p.Color},
		"season":   p.Season,
	}
	if len(p.Style) > 0 {
		attrs["style"] = append([]string(nil), p.Style...)
	}
	return attrs
}
