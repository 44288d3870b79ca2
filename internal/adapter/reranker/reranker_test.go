package reranker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragengine/internal/port"
)

func indices(results []port.RerankedResult) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Index
	}
	return out
}

func TestTerms(t *testing.T) {
	got := terms("The quick-brown fox, a FOX and snake_case 42")
	assert.Equal(t, map[string]struct{}{
		"quick": {}, "brown": {}, "fox": {}, "snake_case": {}, "42": {},
	}, got)
	assert.Empty(t, terms(""))
}

func TestJaccard(t *testing.T) {
	set := func(words ...string) map[string]struct{} {
		m := map[string]struct{}{}
		for _, w := range words {
			m[w] = struct{}{}
		}
		return m
	}
	tests := []struct {
		name string
		a, b map[string]struct{}
		want float64
	}{
		{"identical", set("a", "b", "c"), set("a", "b", "c"), 1},
		{"no overlap", set("a", "b"), set("c", "d"), 0},
		{"half overlap", set("a", "b"), set("b", "c"), 1.0 / 3.0},
		{"empty a", set(), set("a"), 0},
		{"both empty", set(), set(), 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, jaccard(tc.a, tc.b), 0.001)
		})
	}
}

func TestSimpleReranker(t *testing.T) {
	r := NewSimpleReranker()
	assert.True(t, r.IsAvailable())

	results, err := r.Rerank(context.Background(), "vector database search", []string{
		"cooking pasta at home",
		"a vector database stores embeddings",
		"vector search in a vector database",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0}, indices(results))
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
	assert.Zero(t, results[2].Score)
}

func TestSimpleReranker_NoQueryTerms(t *testing.T) {
	results, err := NewSimpleReranker().Rerank(context.Background(), "the a of", []string{"x1", "y2", "z3"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, indices(results))
}

func TestMMRReranker_Diversifies(t *testing.T) {
	r := NewMMRReranker(0.3)

	texts := []string{
		"auth login user password",
		"auth login user session",
		"database query auth connection",
	}
	results, err := r.Rerank(context.Background(), "auth login", texts)
	require.NoError(t, err)

	// Every index comes back exactly once.
	assert.ElementsMatch(t, []int{0, 1, 2}, indices(results))
	assert.Equal(t, 0, results[0].Index)
	// The near-duplicate of the first pick drops behind the diverse text.
	assert.Equal(t, []int{0, 2, 1}, indices(results))
}

func TestMMRReranker_PureRelevance(t *testing.T) {
	r := NewMMRReranker(1)
	results, err := r.Rerank(context.Background(), "alpha beta", []string{"gamma", "alpha", "alpha beta"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0}, indices(results))
}

func TestMMRReranker_Empty(t *testing.T) {
	results, err := NewMMRReranker(0.7).Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestMMRReranker_ClampsLambda(t *testing.T) {
	assert.Equal(t, 1.0, NewMMRReranker(3).lambda)
	assert.Equal(t, 0.0, NewMMRReranker(-1).lambda)
}

func TestCohereReranker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req cohereRerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rerank-english-v3.0", req.Model)
		assert.Equal(t, []string{"a", "b", "c"}, req.Documents)

		_ = json.NewEncoder(w).Encode(cohereRerankResponse{Results: []cohereRerankResult{
			{Index: 0, RelevanceScore: 0.1},
			{Index: 2, RelevanceScore: 0.9},
			{Index: 1, RelevanceScore: 0.5},
		}})
	}))
	defer srv.Close()

	t.Setenv("TEST_COHERE_KEY", "secret")
	r := NewCohereReranker("TEST_COHERE_KEY", "", srv.URL)
	assert.True(t, r.IsAvailable())
	assert.Equal(t, "rerank-english-v3.0", r.ModelName())

	results, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0}, indices(results))
}

func TestCohereReranker_Errors(t *testing.T) {
	r := NewCohereReranker("TEST_COHERE_KEY_UNSET", "m", "")
	assert.False(t, r.IsAvailable())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	t.Setenv("TEST_COHERE_KEY", "secret")
	r = NewCohereReranker("TEST_COHERE_KEY", "m", srv.URL)
	_, err := r.Rerank(context.Background(), "q", []string{"a"})
	assert.ErrorContains(t, err, "503")
}
