package embedding

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

	"go.uber.org/zap"

	"github.com/orbitblue/nitamono/pkg/utils"
)

// Defaults for the embedding client.
const (
	DefaultDimensions  = 1536
	DefaultBatchSize   = 10
	DefaultMaxAttempts = 2
	DefaultTimeout     = 30 * time.Second
)

// ResponseError reports an embedding API reply that could not be interpreted.
// It is not retried: the endpoint answered, just not in a shape we understand.
type ResponseError struct {
	Reason string
}

func (e *ResponseError) Error() string {
	return "embedding response: " + e.Reason
}

// Config holds settings for the remote embedding API.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Dimensions  int
	BatchSize   int
	MaxAttempts int
	Timeout     time.Duration
	CacheSize   int
}

// Client calls a remote embeddings API. Texts are embedded in batches with
// bounded retries; a batch whose retries are exhausted falls back to stub
// vectors so index builds never abort on a flaky endpoint. Without an API key
// and base URL the client runs entirely on the stub.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	dimensions  int
	batchSize   int
	maxAttempts int
	remote      bool
	httpClient  *http.Client
	stub        *Stub
	cache       *EmbeddingCache
	logger      *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates an embedding client from cfg. Zero values in cfg fall
// back to the package defaults.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		endpoint:    resolveEndpoint(cfg.BaseURL),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		dimensions:  cfg.Dimensions,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		remote:      cfg.APIKey != "" && cfg.BaseURL != "",
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		stub:        NewStub(cfg.Dimensions),
		logger:      zap.NewNop(),
	}
	if cfg.CacheSize > 0 {
		c.cache = NewEmbeddingCache(cfg.CacheSize)
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.remote {
		c.logger.Warn("embedding api not configured, using deterministic stub vectors")
	}
	return c
}

// Embed returns the embedding for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one embedding per text, in order. Cached texts are
// served locally; the rest go to the API in batches of the configured size.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		if c.cache != nil {
			if vec, ok := c.cache.Get(text); ok {
				out[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.embedUncached(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		out[missIdx[j]] = vec
		if c.cache != nil {
			c.cache.Set(missTexts[j], vec)
		}
	}
	return out, nil
}

func (c *Client) embedUncached(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.remote {
		return c.stub.EmbedBatch(ctx, texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		vecs, err := c.embedWithRetry(ctx, batch)
		if err != nil {
			var respErr *ResponseError
			if errors.As(err, &respErr) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, err
			}
			c.logger.Warn("embedding api failed after retries, falling back to stub vectors",
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			vecs, err = c.stub.EmbedBatch(ctx, batch)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		vecs, err := c.post(ctx, batch)
		if err == nil {
			return vecs, nil
		}
		var respErr *ResponseError
		if errors.As(err, &respErr) {
			return nil, err
		}
		lastErr = err
		c.logger.Debug("embedding request failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

func (c *Client) post(ctx context.Context, batch []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: batch})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding api status %d: %s", resp.StatusCode, utils.Truncate(string(data), 200))
	}
	vecs, err := parseEmbeddings(data)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(batch) {
		return nil, &ResponseError{Reason: fmt.Sprintf("expected %d embeddings, got %d", len(batch), len(vecs))}
	}
	return vecs, nil
}

// parseEmbeddings accepts the OpenAI shape ({"data":[{"embedding":[...]}]}),
// a flat {"embeddings":[[...]]} object, or a bare array of vectors.
func parseEmbeddings(data []byte) ([][]float32, error) {
	var openai struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &openai); err == nil && len(openai.Data) > 0 {
		out := make([][]float32, len(openai.Data))
		for i, d := range openai.Data {
			out[i] = d.Embedding
		}
		return out, nil
	}
	var named struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(data, &named); err == nil && len(named.Embeddings) > 0 {
		return named.Embeddings, nil
	}
	var bare [][]float32
	if err := json.Unmarshal(data, &bare); err == nil && len(bare) > 0 {
		return bare, nil
	}
	return nil, &ResponseError{Reason: "unrecognized response shape"}
}

// resolveEndpoint derives the embeddings endpoint from a configured base URL.
// Chat-completion URLs are rewritten; anything else gets /embeddings appended
// unless already present.
func resolveEndpoint(baseURL string) string {
	url := strings.TrimRight(baseURL, "/")
	if url == "" {
		return ""
	}
	if strings.HasSuffix(url, "/chat/completions") {
		return strings.TrimSuffix(url, "/chat/completions") + "/embeddings"
	}
	if strings.HasSuffix(url, "/embeddings") {
		return url
	}
	return url + "/embeddings"
}

// Dimensions returns the embedding dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op for Client.
func (c *Client) Close() error {
	return nil
}
