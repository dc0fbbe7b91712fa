package embedder

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nexus/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"handle_error", []string{"handl", "error"}},
		{"handleError", []string{"handl", "error"}},
		{"HANDLE_ERROR", []string{"handl", "error"}},
		{"error handling", []string{"error", "handl"}},
		{"HTTPServer2", []string{"http", "serv"}},
		{"fn parse_files() -> Result", []string{"pars", "file", "result"}},
		{"the a of 42", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestStem(t *testing.T) {
	for _, w := range []string{"handle", "handles", "handled", "handling", "handler"} {
		assert.Equal(t, "handl", stem(w), w)
	}
	assert.Equal(t, "error", stem("errors"))
	assert.Equal(t, "class", stem("class"))
	assert.Equal(t, "query", stem("queries"))
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	assert.Equal(t, "hash-v1-512", e.Model())

	vecs, err := e.Embed(context.Background(), []string{
		"fn handle_error(e: Error) { log(e) }",
		"fn handle_error(e: Error) { log(e) }",
		"error handling",
		"render the page template",
		"",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 5)

	assert.Equal(t, vecs[0], vecs[1], "deterministic")

	var norm float64
	for _, x := range vecs[0] {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	related := Cosine(vecs[2], vecs[0])
	unrelated := Cosine(vecs[2], vecs[3])
	assert.Greater(t, related, unrelated)
	assert.Greater(t, related, 0.5)

	assert.Equal(t, 0.0, Cosine(vecs[4], vecs[0]), "empty text is a zero vector")
}

func TestHashEmbedderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestOllamaEmbedder(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		var req embedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		resp := embedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{1, 0, 0})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text", 3).WithRetry(Backoff{Attempts: 3, Base: time.Millisecond, Max: time.Millisecond})
	assert.Equal(t, "ollama:nomic-embed-text", e.Model())

	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, int32(2), calls.Load(), "one retry after the 503")

	none, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestOllamaEmbedderDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1, 2}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m", 3).WithRetry(Backoff{Attempts: 1})
	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension 2")
}

type countingEmbedder struct {
	mu    sync.Mutex
	texts []string
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, texts...)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return out, nil
}

func (c *countingEmbedder) Dimension() int { return 1 }
func (c *countingEmbedder) Model() string  { return "counting" }

func TestCached(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCached(inner, 2)
	ctx := context.Background()

	v, err := EmbedOne(ctx, c, "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, v)

	vecs, err := c.Embed(ctx, []string{"abc", "hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3}, {5}}, vecs)
	assert.Equal(t, []string{"abc", "hello"}, inner.texts, "abc served from cache")
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "counting", c.Model())
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := withRetry(ctx, Backoff{Attempts: 5, Base: time.Hour, Max: time.Hour}, func() (int, error) {
		calls++
		cancel()
		return 0, &llm.ProviderError{Provider: "ollama-embed", Kind: llm.KindUnreachable}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Max: time.Second}
	assert.Equal(t, 100*time.Millisecond, b.delay(0))
	assert.Equal(t, 400*time.Millisecond, b.delay(2))
	assert.Equal(t, time.Second, b.delay(10))
}

func TestOllamaEmbedderPermanentErrorNotRetried(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   llm.ErrorKind
	}{
		{"unknown model", http.StatusNotFound, llm.KindMalformed},
		{"bad request", http.StatusBadRequest, llm.KindMalformed},
		{"forbidden", http.StatusForbidden, llm.KindAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.Error(w, `{"error":"model not found"}`, tt.status)
			}))
			defer srv.Close()

			e := NewOllamaEmbedder(srv.URL, "missing", 3).WithRetry(Backoff{Attempts: 5, Base: time.Millisecond, Max: time.Millisecond})
			_, err := e.Embed(context.Background(), []string{"a"})
			var pe *llm.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.status, pe.Status)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}
