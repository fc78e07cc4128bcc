package models

import (
	"strings"
	"time"
)

// VisionFeatures holds the visual attributes extracted upstream from a product image.
type VisionFeatures struct {
	Category string   `json:"category,omitempty"`
	Style    []string `json:"style,omitempty"`
	Color    string   `json:"color,omitempty"`
	Colors   []string `json:"colors,omitempty"`
	Season   string   `json:"season,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Empty reports whether no feature field is set.
func (f *VisionFeatures) Empty() bool {
	if f == nil {
		return true
	}
	return f.Category == "" && len(f.Style) == 0 && f.Color == "" &&
		len(f.Colors) == 0 && f.Season == "" && len(f.Keywords) == 0
}

// ColorSet returns the color list, falling back to the single color field.
func (f *VisionFeatures) ColorSet() []string {
	if len(f.Colors) > 0 {
		return f.Colors
	}
	if f.Color != "" {
		return []string{f.Color}
	}
	return nil
}

// FeatureRecord is a cached vision analysis result addressed by trace ID.
type FeatureRecord struct {
	TraceID   string          `json:"trace_id"`
	BrandCode string          `json:"brand_code"`
	Scene     string          `json:"scene,omitempty"`
	Features  *VisionFeatures `json:"vision_features"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"-"`
}

// QueryText joins all feature values into the text used for vector search.
func (f *VisionFeatures) QueryText() string {
	var parts []string
	if f.Category != "" {
		parts = append(parts, f.Category)
	}
	parts = append(parts, f.Style...)
	if f.Color != "" {
		parts = append(parts, f.Color)
	}
	if f.Season != "" {
		parts = append(parts, f.Season)
	}
	parts = append(parts, f.Keywords...)
	return strings.TrimSpace(strings.Join(parts, " "))
}
