package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAILLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "gpt-4o-mini", req.Model)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"42"}}]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_LLM_KEY", "k")
	l := NewOpenAILLM("TEST_LLM_KEY", "gpt-4o-mini", srv.URL, 0)

	out, err := l.GenerateWithSystem(context.Background(), "sys", "question")
	require.NoError(t, err)
	assert.Equal(t, "42", out)
	assert.Equal(t, "gpt-4o-mini", l.ModelName())
}

func TestOpenAILLM_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	l := NewOpenAILLM("TEST_LLM_KEY_UNSET", "m", srv.URL, 0)
	_, err := l.Generate(context.Background(), "hi")
	assert.ErrorContains(t, err, "bad key")
}

func TestOllamaLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req["model"])
		assert.Equal(t, false, req["stream"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"hello there"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	l, err := NewOllamaLLM("llama3.2", srv.URL, 0.1)
	require.NoError(t, err)

	out, err := l.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
}

type recordingLLM struct {
	system, user string
	answer       string
	err          error
}

func (r *recordingLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return r.GenerateWithSystem(ctx, "", prompt)
}

func (r *recordingLLM) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	r.system, r.user = systemPrompt, userPrompt
	return r.answer, r.err
}

func (r *recordingLLM) ModelName() string { return "recording" }

func TestPromptedAnswerer(t *testing.T) {
	model := &recordingLLM{answer: "  Paris.\n"}
	a, err := NewPromptedAnswerer(model)
	require.NoError(t, err)

	out, err := a.Generate(context.Background(), "capital of France?", []string{"Paris is the capital.", "France is in Europe."})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", out)

	assert.Contains(t, model.user, "Question: capital of France?")
	assert.Contains(t, model.user, "[1] Paris is the capital.")
	assert.Contains(t, model.user, "[2] France is in Europe.")
	assert.Equal(t, systemPrompt, model.system)

	model.err = errors.New("overloaded")
	_, err = a.Generate(context.Background(), "q", []string{"p"})
	assert.Error(t, err)
}

func TestExtractiveAnswerer(t *testing.T) {
	out, err := ExtractiveAnswerer{}.Generate(context.Background(), "q", []string{"one", "two", "three"})
	require.NoError(t, err)
	assert.Equal(t, "one two three", out)
}
