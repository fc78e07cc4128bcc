// Package cli provides the HTTP client and output helpers for the nitamono command.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/orbitblue/nitamono/internal/models"
	"github.com/orbitblue/nitamono/internal/vector"
	"github.com/orbitblue/nitamono/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// envelope mirrors the server response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Client is a minimal HTTP client for a running nitamono server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SimilarResult is the data payload of a similar-skus response.
type SimilarResult struct {
	SimilarSKUs  []string `json:"similar_skus"`
	FallbackUsed bool     `json:"fallback_used"`
}

// SimilarSKUs calls POST /api/v1/similar-skus.
func (c *Client) SimilarSKUs(ctx context.Context, req *models.SimilarityRequest) (*SimilarResult, error) {
	data, err := c.postJSON(ctx, "/api/v1/similar-skus", req)
	if err != nil {
		return nil, err
	}
	var res SimilarResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &res, nil
}

// StatsResult is the data payload of a stats response.
type StatsResult struct {
	Products       int64        `json:"products"`
	Brands         int64        `json:"brands"`
	KeywordDocs    uint64       `json:"keyword_docs"`
	Vector         vector.Stats `json:"vector"`
	DiskUsageBytes *int64       `json:"disk_usage_bytes,omitempty"`
}

// Stats calls GET /api/v1/stats.
func (c *Client) Stats(ctx context.Context) (*StatsResult, error) {
	data, err := c.getJSON(ctx, "/api/v1/stats")
	if err != nil {
		return nil, err
	}
	var res StatsResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &res, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("server returned %d: %w", resp.StatusCode, err)
	}
	if !env.Success {
		if env.Message != "" {
			return nil, errors.New(env.Message)
		}
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return env.Data, nil
}

// WriteSimilar writes a similar-skus result in the given format.
func WriteSimilar(w io.Writer, res *SimilarResult, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if len(res.SimilarSKUs) == 0 {
		fmt.Fprintln(w, "no similar skus found")
		return nil
	}
	for i, sku := range res.SimilarSKUs {
		fmt.Fprintf(w, "%d. %s\n", i+1, sku)
	}
	if res.FallbackUsed {
		fmt.Fprintln(w, "(vector index unavailable, matched by rules)")
	}
	return nil
}

// WriteStats writes server stats in the given format.
func WriteStats(w io.Writer, stats *StatsResult, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(w, "products:      %d\n", stats.Products)
	fmt.Fprintf(w, "brands:        %d\n", stats.Brands)
	fmt.Fprintf(w, "keyword_docs:  %d\n", stats.KeywordDocs)
	fmt.Fprintf(w, "vectors:       %d\n", stats.Vector.Vectors)
	fmt.Fprintf(w, "chunks:        %d\n", stats.Vector.Chunks)
	fmt.Fprintf(w, "dimensions:    %d\n", stats.Vector.Dimensions)
	fmt.Fprintf(w, "index_loaded:  %t\n", stats.Vector.Loaded)
	if stats.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage:    %d bytes\n", *stats.DiskUsageBytes)
	}
	return nil
}

// WriteProbeResults writes vector index probe hits in the given format.
func WriteProbeResults(w io.Writer, results []vector.SearchResult, format OutputFormat) error {
	if format == OutputJSON {
		out := make([]map[string]interface{}, 0, len(results))
		for _, r := range results {
			out = append(out, map[string]interface{}{"chunk": r.Chunk, "distance": r.Distance})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "no matches")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. distance=%.4f\n   %s\n", i+1, r.Distance, utils.Truncate(r.Chunk, 200))
	}
	return nil
}
