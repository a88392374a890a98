package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPConfig configures the HTTP provider for the external service.
type HTTPConfig struct {
	URL        string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// HTTPProvider talks to the external embedding/chunking service over JSON.
type HTTPProvider struct {
	client *http.Client
	config HTTPConfig
}

// Verify interface implementations at compile time.
var (
	_ Provider = (*HTTPProvider)(nil)
	_ Chunker  = (*HTTPProvider)(nil)
)

// NewHTTPProvider creates a provider for the configured service endpoint.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	// Per-request deadlines come from the context so the circuit breaker can
	// treat timeouts as failures; no client-level timeout.
	return &HTTPProvider{
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConns:    4,
			IdleConnTimeout: 10 * time.Second,
		}},
		config: cfg,
	}
}

type embedRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates an embedding for a single text.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
func (p *HTTPProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embedResponse
	err := p.post(ctx, "/api/embed", embedRequest{Model: p.config.Model, Input: texts}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}
	for i, v := range resp.Embeddings {
		if p.config.Dimensions > 0 && len(v) != p.config.Dimensions {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), p.config.Dimensions)
		}
	}
	return resp.Embeddings, nil
}

type chunkRequest struct {
	Model string `json:"model,omitempty"`
	Text  string `json:"text"`
}

type chunkResponse struct {
	Model  string `json:"model"`
	Chunks []struct {
		Text      string    `json:"text"`
		Embedding []float32 `json:"embedding,omitempty"`
		Score     float64   `json:"score,omitempty"`
	} `json:"chunks"`
}

// ChunkText sends text to the external chunker, returning sub-chunks with
// inline embeddings when the service provides them.
func (p *HTTPProvider) ChunkText(ctx context.Context, text string) ([]Piece, error) {
	var resp chunkResponse
	if err := p.post(ctx, "/api/chunk", chunkRequest{Model: p.config.Model, Text: text}, &resp); err != nil {
		return nil, err
	}
	pieces := make([]Piece, 0, len(resp.Chunks))
	for _, c := range resp.Chunks {
		pieces = append(pieces, Piece{
			Text:   c.Text,
			Vector: c.Embedding,
			Model:  resp.Model,
			Score:  c.Score,
		})
	}
	return pieces, nil
}

// Dimensions returns the configured embedding dimension.
func (p *HTTPProvider) Dimensions() int {
	return p.config.Dimensions
}

// ModelName returns the configured model identifier.
func (p *HTTPProvider) ModelName() string {
	return p.config.Model
}

func (p *HTTPProvider) post(ctx context.Context, path string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.URL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("embedding service %s: status %d: %s", path, resp.StatusCode, string(data))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
