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
	"strings"
	"time"
)

const (
	ClaudeName         = "claude"
	ClaudeBaseURL      = "https://api.anthropic.com"
	ClaudeDefaultModel = "claude-sonnet-4-20250514"
	claudeAPIVersion   = "2023-06-01"
	claudeMaxTokens    = 4096
	claudeTimeout      = 120 * time.Second
)

// Claude streams from the Anthropic Messages API.
type Claude struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewClaude creates a Claude backend. Empty baseURL or model take the defaults.
func NewClaude(baseURL, apiKey, model string) *Claude {
	if baseURL == "" {
		baseURL = ClaudeBaseURL
	}
	if model == "" {
		model = ClaudeDefaultModel
	}
	return &Claude{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  newHTTPClient(claudeTimeout),
	}
}

func (c *Claude) Name() string { return ClaudeName }

// Model returns the configured model name.
func (c *Claude) Model() string { return c.model }

type claudeRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
}

type claudeEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *claudeError `json:"error"`
}

type claudeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type claudeErrorBody struct {
	Error claudeError `json:"error"`
}

// Stream sends the request with stream=true and returns a reader over the
// SSE text deltas.
func (c *Claude) Stream(ctx context.Context, req Request) (FragmentReader, error) {
	u, err := checkEndpoint(ClaudeName, c.baseURL)
	if err != nil {
		return nil, err
	}
	if c.apiKey == "" {
		return nil, &ProviderError{Provider: ClaudeName, Kind: KindAuth, Message: "no API key configured"}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = claudeMaxTokens
	}
	var msgs []Message
	for _, m := range req.withContext() {
		if m.Role == "system" {
			continue
		}
		msgs = append(msgs, m)
	}
	body, err := json.Marshal(claudeRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  msgs,
		Stream:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal claude request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String()+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", claudeAPIVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, ClaudeName, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var eb claudeErrorBody
		msg := string(raw)
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
			msg = eb.Error.Message
		}
		return nil, statusError(ClaudeName, resp.StatusCode, msg)
	}

	return &sseReader{ctx: ctx, body: resp.Body, r: bufio.NewReader(resp.Body)}, nil
}

// sseReader decodes Anthropic server-sent events.
type sseReader struct {
	ctx   context.Context
	body  io.ReadCloser
	r     *bufio.Reader
	usage Usage
	done  bool
}

func (s *sseReader) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		line, err := s.r.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			if errors.Is(err, io.EOF) {
				return "", truncated(ClaudeName)
			}
			return "", transportError(s.ctx, ClaudeName, err)
		}
		line = strings.TrimRight(line, "\r\n")
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			if err != nil {
				return "", truncated(ClaudeName)
			}
			continue // event:, comments, blank separators
		}
		var ev claudeEvent
		if jerr := json.Unmarshal([]byte(strings.TrimSpace(data)), &ev); jerr != nil {
			return "", &ProviderError{Provider: ClaudeName, Kind: KindUnreachable, Message: "bad event payload", Err: jerr}
		}
		switch ev.Type {
		case "message_start":
			s.usage.InputTokens = ev.Message.Usage.InputTokens
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				return ev.Delta.Text, nil
			}
		case "message_delta":
			s.usage.OutputTokens = ev.Usage.OutputTokens
		case "message_stop":
			s.done = true
			return "", io.EOF
		case "error":
			return "", claudeStreamError(ev.Error)
		}
		if err != nil {
			return "", truncated(ClaudeName)
		}
	}
}

func claudeStreamError(e *claudeError) error {
	if e == nil {
		return &ProviderError{Provider: ClaudeName, Kind: KindUnreachable, Message: "unknown stream error"}
	}
	kind := KindUnreachable
	switch e.Type {
	case "authentication_error", "permission_error":
		kind = KindAuth
	case "rate_limit_error":
		kind = KindRateLimited
	case "invalid_request_error", "not_found_error", "request_too_large":
		kind = KindMalformed
	}
	return &ProviderError{Provider: ClaudeName, Kind: kind, Message: e.Message}
}

func (s *sseReader) Usage() Usage { return s.usage }

func (s *sseReader) Close() error { return s.body.Close() }
