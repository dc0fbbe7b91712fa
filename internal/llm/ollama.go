package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

const (
	OllamaName         = "ollama"
	OllamaBaseURL      = "http://localhost:11434"
	OllamaDefaultModel = "codellama"
	ollamaTimeout      = 5 * time.Minute
)

// OllamaChat calls the Ollama /api/chat endpoint with streaming enabled.
type OllamaChat struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaChat creates a chat client targeting the given Ollama instance and model.
func NewOllamaChat(baseURL, model string) *OllamaChat {
	if baseURL == "" {
		baseURL = OllamaBaseURL
	}
	if model == "" {
		model = OllamaDefaultModel
	}
	return &OllamaChat{
		baseURL: baseURL,
		model:   model,
		client:  newHTTPClient(ollamaTimeout),
	}
}

func (c *OllamaChat) Name() string { return OllamaName }

// Model returns the configured model name.
func (c *OllamaChat) Model() string { return c.model }

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatChunk struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	Error           string  `json:"error"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// Stream sends a conversation to Ollama and returns a reader over the
// NDJSON response lines.
func (c *OllamaChat) Stream(ctx context.Context, req Request) (FragmentReader, error) {
	u, err := checkEndpoint(OllamaName, c.baseURL)
	if err != nil {
		return nil, err
	}

	var msgs []Message
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, req.withContext()...)

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String()+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, OllamaName, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var chunk chatChunk
		msg := string(respBody)
		if json.Unmarshal(respBody, &chunk) == nil && chunk.Error != "" {
			msg = chunk.Error
		}
		return nil, statusError(OllamaName, resp.StatusCode, msg)
	}

	return &ndjsonReader{ctx: ctx, body: resp.Body, sc: newLineScanner(resp.Body)}, nil
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), 4<<20)
	return sc
}

// ndjsonReader decodes one JSON object per line until done:true.
type ndjsonReader struct {
	ctx   context.Context
	body  io.ReadCloser
	sc    *bufio.Scanner
	usage Usage
	done  bool
}

func (n *ndjsonReader) Next() (string, error) {
	if n.done {
		return "", io.EOF
	}
	for n.sc.Scan() {
		line := bytes.TrimSpace(n.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk chatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", &ProviderError{Provider: OllamaName, Kind: KindUnreachable, Message: "bad stream line", Err: err}
		}
		if chunk.Error != "" {
			return "", &ProviderError{Provider: OllamaName, Kind: KindUnreachable, Message: chunk.Error}
		}
		if chunk.Done {
			n.done = true
			n.usage = Usage{InputTokens: chunk.PromptEvalCount, OutputTokens: chunk.EvalCount}
			if chunk.Message.Content != "" {
				return chunk.Message.Content, nil
			}
			return "", io.EOF
		}
		if chunk.Message.Content != "" {
			return chunk.Message.Content, nil
		}
	}
	if err := n.sc.Err(); err != nil {
		return "", transportError(n.ctx, OllamaName, err)
	}
	return "", truncated(OllamaName)
}

func (n *ndjsonReader) Usage() Usage { return n.usage }

func (n *ndjsonReader) Close() error { return n.body.Close() }

// Reachable reports whether the Ollama server answers /api/tags.
func (c *OllamaChat) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := c.ListModels(ctx)
	return err == nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the names of the models installed on the server.
func (c *OllamaChat) ListModels(ctx context.Context) ([]string, error) {
	u, err := checkEndpoint(OllamaName, c.baseURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String()+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, OllamaName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, statusError(OllamaName, resp.StatusCode, string(raw))
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names, nil
}

// ErrModelMissing is returned by EnsureModel when the model is not installed.
var ErrModelMissing = errors.New("model not installed")

// EnsureModel checks that the configured model is installed.
func (c *OllamaChat) EnsureModel(ctx context.Context) error {
	names, err := c.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == c.model || n == c.model+":latest" {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (run 'ollama pull %s')", ErrModelMissing, c.model, c.model)
}
