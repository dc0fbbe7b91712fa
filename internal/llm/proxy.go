package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	ProxyName    = "proxy"
	ProxyBaseURL = "https://api-nexus.mustafasarac.com"
	proxyTimeout = 60 * time.Second
)

// Proxy is the free-tier relay. It answers with one JSON document, so the
// reader yields a single fragment.
type Proxy struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewProxy creates a proxy backend. version goes into the User-Agent.
func NewProxy(baseURL, version string) *Proxy {
	if baseURL == "" {
		baseURL = ProxyBaseURL
	}
	return &Proxy{
		baseURL:   baseURL,
		userAgent: "NEXUS-Forge/" + version,
		client:    newHTTPClient(proxyTimeout),
	}
}

func (p *Proxy) Name() string { return ProxyName }

// BaseURL returns the configured endpoint.
func (p *Proxy) BaseURL() string { return p.baseURL }

type proxyGenerateRequest struct {
	Description string `json:"description"`
	Language    string `json:"language,omitempty"`
}

type proxyChatRequest struct {
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

type proxyResponse struct {
	Success   bool   `json:"success"`
	Code      string `json:"code"`
	Response  string `json:"response"`
	Error     string `json:"error"`
	RequestID string `json:"requestId"`
}

// Stream posts to /api/generate for generative operations and /api/chat
// otherwise.
func (p *Proxy) Stream(ctx context.Context, req Request) (FragmentReader, error) {
	u, err := checkEndpoint(ProxyName, p.baseURL)
	if err != nil {
		return nil, err
	}

	prompt := req.Prompt()
	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}

	var path string
	var payload any
	if req.Op.Generative() {
		path = "/api/generate"
		desc := prompt
		if req.Context != "" {
			desc += "\n\nCode:\n" + req.Context
		}
		payload = proxyGenerateRequest{Description: desc, Language: req.Language}
	} else {
		path = "/api/chat"
		payload = proxyChatRequest{Message: prompt, Context: req.Context}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal proxy request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String()+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, ProxyName, err)
	}
	return &proxyReader{ctx: ctx, resp: resp}, nil
}

type proxyReader struct {
	ctx  context.Context
	resp *http.Response
	done bool
	size int
}

func (r *proxyReader) Next() (string, error) {
	if r.done {
		return "", io.EOF
	}
	r.done = true

	var pr proxyResponse
	err := json.NewDecoder(r.resp.Body).Decode(&pr)
	status := r.resp.StatusCode
	switch {
	case err != nil && status != http.StatusOK:
		return "", statusError(ProxyName, status, http.StatusText(status))
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "", truncated(ProxyName)
	case err != nil:
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return "", &ProviderError{Provider: ProxyName, Kind: KindUnreachable, Status: status, Message: "invalid response body", Err: err}
		}
		return "", transportError(r.ctx, ProxyName, err)
	case status != http.StatusOK:
		return "", statusError(ProxyName, status, pr.Error)
	case !pr.Success:
		// The relay reports upstream failures with 200 and success=false.
		msg := pr.Error
		if msg == "" {
			msg = "request failed"
		}
		return "", &ProviderError{Provider: ProxyName, Kind: KindUnreachable, Status: status, Message: msg}
	}

	text := pr.Code
	if text == "" {
		text = pr.Response
	}
	r.size = len(text)
	if text == "" {
		return "", io.EOF
	}
	return text, nil
}

func (r *proxyReader) Usage() Usage {
	return Usage{OutputTokens: EstimateTokens(r.size)}
}

func (r *proxyReader) Close() error { return r.resp.Body.Close() }

// Health checks the proxy /health endpoint.
func (p *Proxy) Health(ctx context.Context) error {
	u, err := checkEndpoint(ProxyName, p.baseURL)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String()+"/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", p.userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return transportError(ctx, ProxyName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(ProxyName, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}
