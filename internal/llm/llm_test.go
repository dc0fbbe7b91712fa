package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, r FragmentReader) ([]string, error) {
	t.Helper()
	defer r.Close()
	var out []string
	for {
		s, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
}

func userRequest(op Op, prompt string) Request {
	return Request{Op: op, Messages: []Message{{Role: "user", Content: prompt}}}
}

const claudeStream = `event: message_start
data: {"type":"message_start","message":{"usage":{"input_tokens":12}}}

event: ping
data: {"type":"ping"}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":", world"}}

event: message_delta
data: {"type":"message_delta","usage":{"output_tokens":3}}

event: message_stop
data: {"type":"message_stop"}

`

func TestClaudeStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req claudeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, ClaudeDefaultModel, req.Model)
		assert.Equal(t, 4096, req.MaxTokens)
		assert.Equal(t, "be brief", req.System)
		if assert.Len(t, req.Messages, 1) {
			assert.Contains(t, req.Messages[0].Content, "fn main() {}")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, claudeStream)
	}))
	defer srv.Close()

	c := NewClaude(srv.URL, "sk-test", "")
	req := userRequest(OpExplain, "explain")
	req.System = "be brief"
	req.Context = "fn main() {}"
	r, err := c.Stream(context.Background(), req)
	require.NoError(t, err)

	frags, err := drain(t, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", ", world"}, frags)
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 3}, r.Usage())
}

func TestClaudeTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"par\"}}\n\n")
	}))
	defer srv.Close()

	r, err := NewClaude(srv.URL, "k", "").Stream(context.Background(), userRequest(OpChat, "hi"))
	require.NoError(t, err)
	frags, err := drain(t, r)
	assert.Equal(t, []string{"par"}, frags)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Retryable())
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestClaudeStreamErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	}))
	defer srv.Close()

	r, err := NewClaude(srv.URL, "k", "").Stream(context.Background(), userRequest(OpChat, "hi"))
	require.NoError(t, err)
	_, err = drain(t, r)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindUnreachable, pe.Kind)
	assert.Equal(t, "Overloaded", pe.Message)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		kind      ErrorKind
		retryable bool
	}{
		{401, KindAuth, false},
		{403, KindAuth, false},
		{400, KindMalformed, false},
		{413, KindMalformed, false},
		{429, KindRateLimited, true},
		{408, KindTimeout, true},
		{504, KindTimeout, true},
		{500, KindUnreachable, true},
		{529, KindUnreachable, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, `{"type":"error","error":{"type":"x","message":"nope"}}`)
			}))
			defer srv.Close()

			_, err := NewClaude(srv.URL, "k", "").Stream(context.Background(), userRequest(OpChat, "hi"))
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.status, pe.Status)
			assert.Equal(t, tt.retryable, pe.Retryable())
			assert.Equal(t, "nope", pe.Message)
		})
	}
}

func TestClaudeRequiresKey(t *testing.T) {
	_, err := NewClaude("https://example.invalid", "", "").Stream(context.Background(), userRequest(OpChat, "hi"))
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindAuth, pe.Kind)
}

func TestInsecureEndpointRejected(t *testing.T) {
	_, err := NewProxy("http://proxy.example.com", "1.0").Stream(context.Background(), userRequest(OpChat, "hi"))
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindMalformed, pe.Kind)
	assert.False(t, pe.Retryable())

	for _, host := range []string{"localhost", "127.0.0.1", "::1"} {
		assert.True(t, isLoopback(host), host)
	}
	assert.False(t, isLoopback("10.0.0.1"))
}

func TestOllamaStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			var req chatRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.True(t, req.Stream)
			assert.Equal(t, "codellama", req.Model)
			if assert.Len(t, req.Messages, 2) {
				assert.Equal(t, "system", req.Messages[0].Role)
			}
			io.WriteString(w, `{"message":{"role":"assistant","content":"fn "},"done":false}`+"\n")
			io.WriteString(w, `{"message":{"role":"assistant","content":"main"},"done":false}`+"\n")
			io.WriteString(w, `{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":5,"eval_count":2}`+"\n")
		case "/api/tags":
			io.WriteString(w, `{"models":[{"name":"qwen3:8b"},{"name":"codellama:latest"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewOllamaChat(srv.URL, "")
	req := userRequest(OpGenerate, "write main")
	req.System = "sys"
	r, err := c.Stream(context.Background(), req)
	require.NoError(t, err)
	frags, err := drain(t, r)
	require.NoError(t, err)
	assert.Equal(t, "fn main", strings.Join(frags, ""))
	assert.Equal(t, Usage{InputTokens: 5, OutputTokens: 2}, r.Usage())

	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"codellama:latest", "qwen3:8b"}, models)
	assert.True(t, c.Reachable(context.Background()))
	assert.NoError(t, c.EnsureModel(context.Background()))
	assert.ErrorIs(t, NewOllamaChat(srv.URL, "llama3").EnsureModel(context.Background()), ErrModelMissing)
}

func TestOllamaTruncatedAndUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":{"content":"half"},"done":false}`+"\n")
	}))
	r, err := NewOllamaChat(srv.URL, "m").Stream(context.Background(), userRequest(OpChat, "hi"))
	require.NoError(t, err)
	_, err = drain(t, r)
	assert.ErrorIs(t, err, ErrTruncated)
	srv.Close()

	c := NewOllamaChat(srv.URL, "m")
	assert.False(t, c.Reachable(context.Background()))
	_, err = c.Stream(context.Background(), userRequest(OpChat, "hi"))
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Retryable())
}

func TestProxyEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NEXUS-Forge/1.2.3", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/api/generate":
			var req proxyGenerateRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "rust", req.Language)
			json.NewEncoder(w).Encode(proxyResponse{Success: true, Code: "fn main() {}", RequestID: "r1"})
		case "/api/chat":
			var req proxyChatRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ctx", req.Context)
			json.NewEncoder(w).Encode(proxyResponse{Success: true, Response: "an answer"})
		case "/health":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	p := NewProxy(srv.URL, "1.2.3")
	gen := userRequest(OpGenerate, "a main function")
	gen.Language = "rust"
	r, err := p.Stream(context.Background(), gen)
	require.NoError(t, err)
	frags, err := drain(t, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"fn main() {}"}, frags)

	chat := userRequest(OpAsk, "why?")
	chat.Context = "ctx"
	r, err = p.Stream(context.Background(), chat)
	require.NoError(t, err)
	frags, err = drain(t, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"an answer"}, frags)

	assert.NoError(t, p.Health(context.Background()))
}

func TestProxyFailures(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		kind      ErrorKind
		truncated bool
	}{
		{
			name: "success false",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(proxyResponse{Success: false, Error: "upstream down"})
			},
			kind: KindUnreachable,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(proxyResponse{Error: "slow down"})
			},
			kind: KindRateLimited,
		},
		{
			name: "cut off",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"success":true,"code":"fn ma`)
			},
			kind:      KindUnreachable,
			truncated: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			r, err := NewProxy(srv.URL, "dev").Stream(context.Background(), userRequest(OpGenerate, "x"))
			require.NoError(t, err)
			_, err = drain(t, r)
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.truncated, errors.Is(err, ErrTruncated))
		})
	}
}

func TestStreamCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":{"content":"first"},"done":false}`+"\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	r, err := NewOllamaChat(srv.URL, "m").Stream(ctx, userRequest(OpChat, "hi"))
	require.NoError(t, err)
	defer r.Close()

	s, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", s)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = r.Next()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestHelpers(t *testing.T) {
	req := Request{
		System:   "sys",
		Context:  "ctx",
		Language: "go",
		Messages: []Message{{Role: "user", Content: "first"}, {Role: "assistant", Content: "a"}, {Role: "user", Content: "second"}},
	}
	assert.Equal(t, "second", req.Prompt())
	assert.Equal(t, 3+3+5+1+6, req.Size())

	msgs := req.withContext()
	assert.Equal(t, "second\n\nContext:\n```go\nctx\n```", msgs[2].Content)
	assert.Equal(t, "second", req.Messages[2].Content, "original untouched")

	assert.True(t, OpGenerate.Generative())
	assert.False(t, OpAsk.Generative())
	assert.Equal(t, 3, EstimateTokens(10))
}
