// Package rule scores catalog products against vision features by attribute
// overlap. It backs the default retrieval mode and the fallback path when
// vector search comes back empty.
package rule

import (
	"fmt"
	"strings"

	"github.com/orbitblue/nitamono/internal/models"
)

// Weights holds the per-attribute contribution to a product score. The total
// is on a 100-point scale with category dominating.
type Weights struct {
	Category        float64
	CategoryPartial float64
	Color           float64
	ColorPartial    float64
	StylePer        float64
	StyleMax        float64
	Season          float64
	KeywordPer      float64
	KeywordMax      float64
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Category:        60,
		CategoryPartial: 30,
		Color:           10,
		ColorPartial:    5,
		StylePer:        3.33,
		StyleMax:        10,
		Season:          10,
		KeywordPer:      3.33,
		KeywordMax:      10,
	}
}

// Scorer computes attribute-overlap scores for products.
type Scorer struct {
	weights Weights
}

// NewScorer creates a Scorer with the given weights.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score returns the total overlap score between a product and the target
// features. Material is read from products elsewhere but carries no weight.
func (s *Scorer) Score(p *models.Product, f *models.VisionFeatures) float64 {
	if p == nil || f.Empty() {
		return 0
	}
	score := s.scoreCategory(p.Category(), f.Category)
	score += s.scoreColors(p.Colors(), f.ColorSet())
	score += s.scoreStyles(p.Styles(), f.Style)
	score += s.scoreSeason(p.Season(), f.Season)
	score += s.scoreKeywords(p, f.Keywords)
	return score
}

// CategoryMatches reports whether one category contains the other. Used both
// for full-score matching and for pre-filtering candidates.
func CategoryMatches(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return strings.Contains(got, want) || strings.Contains(want, got)
}

func (s *Scorer) scoreCategory(got, want string) float64 {
	if got == "" || want == "" {
		return 0
	}
	if CategoryMatches(got, want) {
		return s.weights.Category
	}
	for _, w := range strings.Fields(want) {
		if strings.Contains(got, w) {
			return s.weights.CategoryPartial
		}
	}
	for _, w := range strings.Fields(got) {
		if strings.Contains(want, w) {
			return s.weights.CategoryPartial
		}
	}
	return 0
}

func (s *Scorer) scoreColors(got, want []string) float64 {
	if len(got) == 0 || len(want) == 0 {
		return 0
	}
	gotSet := lowerSet(got)
	wantSet := lowerSet(want)
	for c := range wantSet {
		if _, ok := gotSet[c]; ok {
			return s.weights.Color
		}
	}
	for wc := range wantSet {
		for gc := range gotSet {
			if strings.Contains(gc, wc) || strings.Contains(wc, gc) {
				return s.weights.ColorPartial
			}
		}
	}
	return 0
}

func (s *Scorer) scoreStyles(got, want []string) float64 {
	if len(got) == 0 || len(want) == 0 {
		return 0
	}
	gotSet := make(map[string]struct{}, len(got))
	for _, v := range got {
		gotSet[v] = struct{}{}
	}
	matched := 0
	seen := make(map[string]struct{}, len(want))
	for _, v := range want {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := gotSet[v]; ok {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return capScore(float64(matched)*s.weights.StylePer, s.weights.StyleMax)
}

func (s *Scorer) scoreSeason(got, want string) float64 {
	if got == "" || want == "" {
		return 0
	}
	if strings.Contains(got, want) || strings.Contains(want, got) {
		return s.weights.Season
	}
	return 0
}

// scoreKeywords counts target keywords that appear anywhere in the product's
// name, tags, or flattened attributes.
func (s *Scorer) scoreKeywords(p *models.Product, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	haystack := strings.ToLower(
		p.Name + " " + strings.Join(p.Tags, " ") + " " + fmt.Sprintf("%v", p.Attributes))
	matched := 0
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if strings.Contains(haystack, k) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return capScore(float64(matched)*s.weights.KeywordPer, s.weights.KeywordMax)
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func capScore(score, max float64) float64 {
	if score > max {
		return max
	}
	return score
}
