// Package router picks an AI provider for each request and drives the call
// through retries and a single Direct to Proxy fallback.
package router

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"nexus/internal/llm"
)

// Candidate is a configured provider.
type Candidate struct {
	Profile Profile
	Backend llm.Backend
	// APIKey must be non-empty for profiles that require a key.
	APIKey string
	// Reachable probes a local backend. Nil means always reachable.
	Reachable func(ctx context.Context) bool
}

// RetryPolicy bounds same-provider retries.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy returns 3 attempts with 500ms, 1s backoff capped at 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Multiplier:  2.0,
	}
}

// delay returns the wait before the given retry (1-based).
func (p RetryPolicy) delay(retry int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < retry; i++ {
		d *= p.Multiplier
	}
	if limit := float64(p.MaxDelay); p.MaxDelay > 0 && d > limit {
		d = limit
	}
	return time.Duration(d)
}

// Config is passed to New. Nil candidates are not configured.
type Config struct {
	Direct *Candidate
	Local  *Candidate
	Proxy  *Candidate
	// PreferLocal selects Local ahead of Proxy when it is reachable.
	PreferLocal bool
	Retry       RetryPolicy
	Logger      *slog.Logger
}

// Router selects providers and runs requests against them. It is safe for
// concurrent use; each request gets its own Stream.
type Router struct {
	cfg      Config
	logger   *slog.Logger
	limiters map[*Candidate]*rate.Limiter
}

// New creates a router. Zero retry fields take their defaults.
func New(cfg Config) *Router {
	def := DefaultRetryPolicy()
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = def.MaxAttempts
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = def.BaseDelay
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = def.MaxDelay
	}
	if cfg.Retry.Multiplier < 1 {
		cfg.Retry.Multiplier = def.Multiplier
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{cfg: cfg, logger: logger, limiters: map[*Candidate]*rate.Limiter{}}
	for _, c := range []*Candidate{cfg.Direct, cfg.Local, cfg.Proxy} {
		if c == nil || c.Profile.RequestsPerMinute <= 0 {
			continue
		}
		rpm := c.Profile.RequestsPerMinute
		r.limiters[c] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
	}
	return r
}

// required returns the capabilities a request needs.
func required(req llm.Request) []Capability {
	caps := []Capability{CapChat}
	if req.Op.Generative() {
		caps[0] = CapGenerate
	}
	if llm.EstimateTokens(req.Size()) > longContextTokens {
		caps = append(caps, CapLongContext)
	}
	return caps
}

// qualifies reports whether c can serve req, and why not.
func qualifies(c *Candidate, req llm.Request) (bool, string) {
	if c == nil || c.Backend == nil {
		return false, "not configured"
	}
	if c.Profile.RequiresKey && strings.TrimSpace(c.APIKey) == "" {
		return false, "no API key"
	}
	for _, need := range required(req) {
		if !c.Profile.Supports(need) {
			return false, "missing capability " + string(need)
		}
	}
	if limit := c.Profile.MaxPromptBytes; limit > 0 && req.Size() > limit {
		return false, "prompt too large"
	}
	return true, ""
}

// plan returns the ordered candidates for req: the selected provider and,
// when it is Direct, the Proxy fallback.
func (r *Router) plan(ctx context.Context, req llm.Request) ([]*Candidate, error) {
	var skipped []string
	note := func(c *Candidate, why string) {
		if c != nil {
			skipped = append(skipped, c.Profile.Name+": "+why)
		}
	}

	ok, why := qualifies(r.cfg.Direct, req)
	if ok {
		out := []*Candidate{r.cfg.Direct}
		if fallback, _ := qualifies(r.cfg.Proxy, req); fallback {
			out = append(out, r.cfg.Proxy)
		}
		return out, nil
	}
	note(r.cfg.Direct, why)

	if r.cfg.PreferLocal {
		if ok, why = qualifies(r.cfg.Local, req); !ok {
			note(r.cfg.Local, why)
		} else if r.cfg.Local.Reachable != nil && !r.cfg.Local.Reachable(ctx) {
			note(r.cfg.Local, "not reachable")
		} else {
			return []*Candidate{r.cfg.Local}, nil
		}
	}

	if ok, why = qualifies(r.cfg.Proxy, req); ok {
		return []*Candidate{r.cfg.Proxy}, nil
	}
	note(r.cfg.Proxy, why)

	r.logger.Warn("router.select.none", "skipped", strings.Join(skipped, "; "))
	return nil, &RouterError{Kind: NoProviderAvailable, Hint: r.hint()}
}

// hint suggests how to make a provider available.
func (r *Router) hint() string {
	if r.cfg.PreferLocal {
		return "set ANTHROPIC_API_KEY or start Ollama with 'ollama serve'"
	}
	return "set ANTHROPIC_API_KEY or check network"
}

// Select reports which provider would serve req without calling it.
func (r *Router) Select(ctx context.Context, req llm.Request) (string, error) {
	p, err := r.plan(ctx, req)
	if err != nil {
		return "", err
	}
	return p[0].Profile.Name, nil
}

// Stream starts a request. The returned Stream is driven by the caller
// through Next; nothing happens until the first call.
func (r *Router) Stream(ctx context.Context, req llm.Request) *Stream {
	return newStream(ctx, r, req)
}

// Complete runs req to completion and returns the final response.
func (r *Router) Complete(ctx context.Context, req llm.Request) (*Response, error) {
	s := r.Stream(ctx, req)
	defer s.Close()
	for s.Next() {
	}
	return s.Response(), s.Err()
}

func (r *Router) wait(ctx context.Context, c *Candidate) error {
	lim, ok := r.limiters[c]
	if !ok {
		return nil
	}
	return lim.Wait(ctx)
}
