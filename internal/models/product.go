// Package models defines core data structures for products, vision features, and similarity requests.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Product represents a catalog product row. (brand_code, sku) is the business key.
type Product struct {
	ID          int64                  `json:"id" db:"id"`
	BrandCode   string                 `json:"brand_code" db:"brand_code"`
	SKU         string                 `json:"sku" db:"sku"`
	Name        string                 `json:"name" db:"name"`
	Price       float64                `json:"-" db:"price"`
	Tags        []string               `json:"tags,omitempty" db:"tags"`
	Attributes  map[string]interface{} `json:"attributes,omitempty" db:"attributes"`
	Description string                 `json:"description,omitempty" db:"description"`
	ImageURL    string                 `json:"image_url,omitempty" db:"image_url"`
	OnSale      bool                   `json:"on_sale" db:"on_sale"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at" db:"updated_at"`
}

// ProductInput is the input for creating or updating a product.
type ProductInput struct {
	BrandCode   string                 `json:"brand_code"`
	SKU         string                 `json:"sku"`
	Name        string                 `json:"name"`
	Price       float64                `json:"price,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
	Description string                 `json:"description,omitempty"`
	ImageURL    string                 `json:"image_url,omitempty"`
	OnSale      *bool                  `json:"on_sale,omitempty"`
}

// AttrString returns the first non-empty string attribute among keys.
// Catalog imports carry attributes under English or Chinese keys, so
// accessors always probe both.
func (p *Product) AttrString(keys ...string) string {
	for _, k := range keys {
		v, ok := p.Attributes[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			if t := strings.TrimSpace(s); t != "" {
				return t
			}
		}
	}
	return ""
}

// AttrStrings returns the first attribute among keys as a string list.
// It accepts a JSON array or a comma separated string.
func (p *Product) AttrStrings(keys ...string) []string {
	for _, k := range keys {
		v, ok := p.Attributes[k]
		if !ok || v == nil {
			continue
		}
		var out []string
		switch val := v.(type) {
		case []string:
			for _, s := range val {
				if t := strings.TrimSpace(s); t != "" {
					out = append(out, t)
				}
			}
		case []interface{}:
			for _, item := range val {
				if item == nil {
					continue
				}
				if t := strings.TrimSpace(fmt.Sprintf("%v", item)); t != "" {
					out = append(out, t)
				}
			}
		case string:
			for _, part := range strings.Split(val, ",") {
				if t := strings.TrimSpace(part); t != "" {
					out = append(out, t)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// Category returns the category attribute.
func (p *Product) Category() string {
	return p.AttrString("category", "类目")
}

// Colors returns the color list attribute, falling back to the single
// color attribute when no list is present.
func (p *Product) Colors() []string {
	if colors := p.AttrStrings("colors", "颜色"); len(colors) > 0 {
		return colors
	}
	if c := p.AttrString("color"); c != "" {
		return []string{c}
	}
	return nil
}

// Season returns the season attribute.
func (p *Product) Season() string {
	return p.AttrString("season", "季节")
}

// Material returns the material attribute.
func (p *Product) Material() string {
	return p.AttrString("material", "材质")
}

// Scene returns the usage scene attribute.
func (p *Product) Scene() string {
	return p.AttrString("scene", "场景")
}

// Styles merges tags with the style attribute, deduplicated in first-seen order.
func (p *Product) Styles() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		t := strings.TrimSpace(s)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range p.Tags {
		add(t)
	}
	for _, s := range p.AttrStrings("style", "风格") {
		add(s)
	}
	return out
}
