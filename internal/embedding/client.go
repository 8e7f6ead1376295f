// Package embedding provides the text-to-vector client used for product search.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
)

// Embedder defines the interface for embedding generation.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

// Client calls an OpenAI-compatible /embeddings endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	retry      RetryConfig
}

// Config holds embedding client configuration.
type Config struct {
	APIKey    string
	Model     string // e.g. "text-embedding-3-small"
	BaseURL   string // Default: https://api.openai.com/v1
	Dimension int    // Default: 1536
	Timeout   time.Duration
	// MaxRetries bounds retries of 429/5xx responses. Zero disables retries.
	MaxRetries     int
	InitialBackoff time.Duration
}

// NewClient creates a new embedding client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.ConfigError("embedding API key is required", nil)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}

	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}

	if cfg.Dimension <= 0 {
		cfg.Dimension = 1536
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	retry := DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		retry:      retry,
	}, nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Model string          `json:"model"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Embed generates embeddings for the given texts, preserving input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	cleaned := make([]string, len(texts))
	for i, t := range texts {
		cleaned[i] = strings.TrimSpace(t)
		if cleaned[i] == "" {
			return nil, domain.InputError(fmt.Sprintf("text %d", i), domain.ErrEmptyEmbeddingInput)
		}
	}

	jsonBody, err := json.Marshal(embeddingRequest{Input: cleaned, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	body, err := c.doWithRetry(ctx, jsonBody)
	if err != nil {
		return nil, err
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, domain.TransportError("decode embedding response", err)
	}

	embeddings := make([][]float32, len(cleaned))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			continue
		}
		if len(data.Embedding) != c.dimension {
			return nil, domain.TransportError(
				fmt.Sprintf("embedding dimension %d, expected %d", len(data.Embedding), c.dimension), nil)
		}
		embeddings[data.Index] = data.Embedding
	}

	for i, e := range embeddings {
		if e == nil {
			return nil, domain.TransportError(fmt.Sprintf("no embedding returned for input %d", i), nil)
		}
	}

	return embeddings, nil
}

func (c *Client) doWithRetry(ctx context.Context, payload []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		body, status, err := c.post(ctx, payload)
		if err == nil && status == http.StatusOK {
			return body, nil
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, domain.TransportError("embedding request cancelled", ctx.Err())
			}
			lastErr = err
		} else {
			lastErr = statusError(status, body)
			if !shouldRetry(status) {
				return nil, domain.TransportError("embedding API error", lastErr)
			}
		}

		if attempt == c.retry.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, domain.TransportError("embedding request cancelled", ctx.Err())
		case <-time.After(calculateBackoff(attempt, c.retry)):
		}
	}

	return nil, domain.TransportError(fmt.Sprintf("embedding request failed after %d retries", c.retry.MaxRetries), lastErr)
}

func (c *Client) post(ctx context.Context, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func statusError(status int, body []byte) error {
	var errResp embeddingResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		return fmt.Errorf("status %d: %s (type: %s)", status, errResp.Error.Message, errResp.Error.Type)
	}
	return fmt.Errorf("status %d, body: %s", status, string(body))
}

// EmbedSingle generates an embedding for a single text.
func (c *Client) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for texts in batches.
func EmbedBatch(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	embeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		embeddings = append(embeddings, batch...)
	}

	return embeddings, nil
}

// Model returns the model being used.
func (c *Client) Model() string {
	return c.model
}

// Dimension returns the embedding dimension.
func (c *Client) Dimension() int {
	return c.dimension
}

var _ Embedder = (*Client)(nil)
