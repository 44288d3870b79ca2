package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"ragengine/internal/port"
)

var _ port.Embedder = (*OllamaEmbedder)(nil)

const (
	ollamaMaxRetries = 3
	ollamaBaseDelay  = 500 * time.Millisecond
)

// OllamaEmbedder embeds text through a local Ollama server.
type OllamaEmbedder struct {
	client    *api.Client
	model     string
	dimension int
	baseDelay time.Duration
}

// NewOllamaEmbedder creates an embedder for model. A dimension of 0 falls
// back to the model's known size.
func NewOllamaEmbedder(model, baseURL string, dimension int) (*OllamaEmbedder, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL %q: %w", baseURL, err)
	}

	if dimension <= 0 {
		switch model {
		case "mxbai-embed-large":
			dimension = 1024
		case "all-minilm":
			dimension = 384
		default:
			dimension = 768
		}
	}

	return &OllamaEmbedder{
		client:    api.NewClient(u, &http.Client{Timeout: 120 * time.Second}),
		model:     model,
		dimension: dimension,
		baseDelay: ollamaBaseDelay,
	}, nil
}

// Embed embeds each text in turn, retrying transient failures with
// exponential backoff.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *OllamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	req := &api.EmbeddingRequest{Model: e.model, Prompt: text}

	var lastErr error
	for attempt := 0; attempt < ollamaMaxRetries; attempt++ {
		if attempt > 0 {
			delay := e.baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := e.client.Embeddings(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Embedding) == 0 {
			lastErr = fmt.Errorf("model %s returned an empty embedding", e.model)
			continue
		}

		v := make([]float32, len(resp.Embedding))
		for i, f := range resp.Embedding {
			v[i] = float32(f)
		}
		return v, nil
	}
	return nil, fmt.Errorf("failed to embed after %d attempts: %w", ollamaMaxRetries, lastErr)
}

func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

func (e *OllamaEmbedder) ModelName() string {
	return e.model
}
