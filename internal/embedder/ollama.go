package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nexus/internal/llm"
)

const embedProvider = "ollama-embed"

// OllamaEmbedder calls the Ollama /api/embed endpoint.
type OllamaEmbedder struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client
	retry   Backoff
}

// NewOllamaEmbedder creates an embedder targeting the given Ollama instance.
// dim must match the model's output size.
func NewOllamaEmbedder(baseURL, model string, dim int) *OllamaEmbedder {
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		dim:     dim,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		retry: DefaultBackoff(),
	}
}

// WithRetry replaces the retry policy.
func (e *OllamaEmbedder) WithRetry(b Backoff) *OllamaEmbedder {
	e.retry = b
	return e
}

func (e *OllamaEmbedder) Model() string { return "ollama:" + e.model }

func (e *OllamaEmbedder) Dimension() int { return e.dim }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends a batch of texts to Ollama and returns their embeddings.
// The returned slice has the same length and order as the input.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return withRetry(ctx, e.retry, func() ([][]float32, error) {
		return e.embed(ctx, texts)
	})
}

func (e *OllamaEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, llm.TransportError(ctx, embedProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, llm.StatusError(embedProvider, resp.StatusCode, string(respBody))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	for i, v := range result.Embeddings {
		if len(v) != e.dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), e.dim)
		}
	}

	return result.Embeddings, nil
}
