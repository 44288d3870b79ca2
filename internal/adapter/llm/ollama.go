package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"ragengine/internal/port"
)

var _ port.LLM = (*OllamaLLM)(nil)

// OllamaLLM generates text with a chat model served by Ollama.
type OllamaLLM struct {
	client      *api.Client
	model       string
	temperature float64
}

func NewOllamaLLM(model, baseURL string, temperature float64) (*OllamaLLM, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL %q: %w", baseURL, err)
	}
	return &OllamaLLM{
		client:      api.NewClient(u, &http.Client{Timeout: 5 * time.Minute}),
		model:       model,
		temperature: temperature,
	}, nil
}

func (l *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return l.chat(ctx, []api.Message{{Role: "user", Content: prompt}})
}

func (l *OllamaLLM) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return l.chat(ctx, []api.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
}

func (l *OllamaLLM) ModelName() string {
	return l.model
}

func (l *OllamaLLM) chat(ctx context.Context, messages []api.Message) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    l.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": l.temperature,
		},
	}

	var out strings.Builder
	err := l.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return out.String(), nil
}
