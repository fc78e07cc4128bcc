package models

import "fmt"

// Search modes for similarity requests.
const (
	ModeRule   = "rule"
	ModeVector = "vector"
)

// MaxTopK is the absolute ceiling on returned SKUs.
const MaxTopK = 5

// SimilarityRequest asks for SKUs similar to previously seen vision features.
// Exactly one of TraceID or VisionFeatures must be supplied.
type SimilarityRequest struct {
	BrandCode      string          `json:"brand_code"`
	TraceID        string          `json:"trace_id,omitempty"`
	VisionFeatures *VisionFeatures `json:"vision_features,omitempty"`
	TopK           int             `json:"top_k,omitempty"`
	Mode           string          `json:"mode,omitempty"`
}

// Validate checks required fields and normalizes top_k and mode.
// An unknown mode falls back to rule rather than failing the request.
func (r *SimilarityRequest) Validate() error {
	if r.BrandCode == "" {
		return fmt.Errorf("brand_code is required")
	}
	if r.TraceID == "" && r.VisionFeatures == nil {
		return fmt.Errorf("one of trace_id or vision_features is required")
	}
	if r.TraceID != "" && r.VisionFeatures != nil {
		return fmt.Errorf("trace_id and vision_features are mutually exclusive")
	}
	if r.TopK <= 0 {
		r.TopK = MaxTopK
	}
	if r.TopK > MaxTopK {
		r.TopK = MaxTopK
	}
	if r.Mode != ModeRule && r.Mode != ModeVector {
		r.Mode = ModeRule
	}
	return nil
}
