package router

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/llm"
)

// step scripts one call to a fakeBackend.
type step struct {
	callErr   error    // returned from Stream
	fragments []string // yielded by the reader
	endErr    error    // returned after the fragments; nil means io.EOF
}

type fakeBackend struct {
	name string

	mu    sync.Mutex
	steps []step
	calls int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) Stream(ctx context.Context, req llm.Request) (llm.FragmentReader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.steps[min(f.calls, len(f.steps)-1)]
	f.calls++
	if st.callErr != nil {
		return nil, st.callErr
	}
	return &fakeReader{ctx: ctx, frags: st.fragments, end: st.endErr}, nil
}

type fakeReader struct {
	ctx    context.Context
	frags  []string
	end    error
	closed bool
}

func (r *fakeReader) Next() (string, error) {
	if err := r.ctx.Err(); err != nil {
		return "", err
	}
	if len(r.frags) > 0 {
		s := r.frags[0]
		r.frags = r.frags[1:]
		return s, nil
	}
	if r.end != nil {
		return "", r.end
	}
	return "", io.EOF
}

func (r *fakeReader) Usage() llm.Usage { return llm.Usage{} }
func (r *fakeReader) Close() error     { r.closed = true; return nil }

func retryable(name string) error {
	return &llm.ProviderError{Provider: name, Kind: llm.KindUnreachable, Status: 503}
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func candidate(p Profile, b llm.Backend, key string) *Candidate {
	p.RequestsPerMinute = 0
	return &Candidate{Profile: p, Backend: b, APIKey: key}
}

func generateRequest() llm.Request {
	return llm.Request{Op: llm.OpGenerate, Messages: []llm.Message{{Role: "user", Content: "a fibonacci function"}}}
}

func collect(s *Stream) (string, []Fragment) {
	var b strings.Builder
	var frags []Fragment
	for s.Next() {
		f := s.Fragment()
		if f.Reset {
			b.Reset()
		}
		b.WriteString(f.Text)
		frags = append(frags, f)
	}
	return b.String(), frags
}

func TestFallbackToProxy(t *testing.T) {
	direct := &fakeBackend{name: "claude", steps: []step{{callErr: retryable("claude")}}}
	proxy := &fakeBackend{name: "proxy", steps: []step{{fragments: []string{"fn fib", "() {}"}}}}
	r := New(Config{
		Direct: candidate(DirectProfile(), direct, "sk-ant"),
		Proxy:  candidate(ProxyProfile(), proxy, ""),
		Retry:  fastRetry(),
	})

	resp, err := r.Complete(context.Background(), generateRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.Equal(t, "proxy", resp.Provider)
	assert.True(t, resp.FellBack)
	assert.Equal(t, "fn fib() {}", resp.Text)
	assert.Equal(t, 4, resp.Attempts)
	assert.Equal(t, 3, direct.Calls())
	assert.Equal(t, 1, proxy.Calls())
	assert.NotEmpty(t, resp.ID)
}

func TestFatalErrorNotRetried(t *testing.T) {
	direct := &fakeBackend{name: "claude", steps: []step{{callErr: &llm.ProviderError{Provider: "claude", Kind: llm.KindAuth, Status: 401}}}}
	proxy := &fakeBackend{name: "proxy", steps: []step{{fragments: []string{"x"}}}}
	r := New(Config{
		Direct: candidate(DirectProfile(), direct, "bad-key"),
		Proxy:  candidate(ProxyProfile(), proxy, ""),
		Retry:  fastRetry(),
	})

	resp, err := r.Complete(context.Background(), generateRequest())
	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, llm.KindAuth, pe.Kind)
	assert.Equal(t, 1, direct.Calls(), "exactly one attempt")
	assert.Equal(t, 0, proxy.Calls())
	assert.Equal(t, StatusFailed, resp.Status)
	assert.Equal(t, 1, resp.Attempts)
}

func TestRetrySameProviderThenSucceed(t *testing.T) {
	proxy := &fakeBackend{name: "proxy", steps: []step{
		{callErr: &llm.ProviderError{Provider: "proxy", Kind: llm.KindRateLimited, Status: 429}},
		{fragments: []string{"ok"}},
	}}
	r := New(Config{Proxy: candidate(ProxyProfile(), proxy, ""), Retry: fastRetry()})

	resp, err := r.Complete(context.Background(), generateRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 2, resp.Attempts)
	assert.False(t, resp.FellBack)
}

func TestExhaustedReturnsRouterError(t *testing.T) {
	proxy := &fakeBackend{name: "proxy", steps: []step{{callErr: retryable("proxy")}}}
	r := New(Config{Proxy: candidate(ProxyProfile(), proxy, ""), Retry: fastRetry()})

	_, err := r.Complete(context.Background(), generateRequest())
	var re *RouterError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, NoProviderAvailable, re.Kind)
	assert.Contains(t, re.Hint, "ANTHROPIC_API_KEY")
	assert.Equal(t, 3, proxy.Calls(), "bounded retries")

	var pe *llm.ProviderError
	assert.ErrorAs(t, err, &pe, "last provider error is kept")
}

func TestNoCandidates(t *testing.T) {
	r := New(Config{Direct: candidate(DirectProfile(), &fakeBackend{name: "claude"}, "")})
	_, err := r.Complete(context.Background(), generateRequest())
	var re *RouterError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "set ANTHROPIC_API_KEY or check network", re.Hint)
}

func TestSelectionPrecedence(t *testing.T) {
	direct := &fakeBackend{name: "claude"}
	local := &fakeBackend{name: "ollama"}
	proxy := &fakeBackend{name: "proxy"}
	reachable := true

	build := func(key string, preferLocal bool) *Router {
		l := candidate(LocalProfile(), local, "")
		l.Reachable = func(context.Context) bool { return reachable }
		return New(Config{
			Direct:      candidate(DirectProfile(), direct, key),
			Local:       l,
			Proxy:       candidate(ProxyProfile(), proxy, ""),
			PreferLocal: preferLocal,
		})
	}
	ctx := context.Background()
	req := generateRequest()

	tests := []struct {
		name        string
		key         string
		preferLocal bool
		reachable   bool
		want        string
	}{
		{"key wins", "sk", true, true, "claude"},
		{"blank key ignored", "  ", false, true, "proxy"},
		{"local preferred", "", true, true, "ollama"},
		{"local unreachable", "", true, false, "proxy"},
		{"local not preferred", "", false, true, "proxy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reachable = tt.reachable
			got, err := build(tt.key, tt.preferLocal).Select(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCapabilityAndSizeLimits(t *testing.T) {
	proxy := &fakeBackend{name: "proxy"}
	direct := &fakeBackend{name: "claude"}
	r := New(Config{
		Direct: candidate(DirectProfile(), direct, "sk"),
		Proxy:  candidate(ProxyProfile(), proxy, ""),
	})

	big := llm.Request{Op: llm.OpAsk, Context: strings.Repeat("x", 200_000), Messages: []llm.Message{{Role: "user", Content: "q"}}}
	plan, err := r.plan(context.Background(), big)
	require.NoError(t, err)
	require.Len(t, plan, 1, "proxy cannot take a long-context fallback")
	assert.Equal(t, "claude", plan[0].Profile.Name)

	noKey := New(Config{Proxy: candidate(ProxyProfile(), proxy, "")})
	_, err = noKey.Select(context.Background(), big)
	var re *RouterError
	assert.ErrorAs(t, err, &re)
}

func TestResetAfterPartialOutput(t *testing.T) {
	proxy := &fakeBackend{name: "proxy", steps: []step{
		{fragments: []string{"partial "}, endErr: &llm.ProviderError{Provider: "proxy", Kind: llm.KindUnreachable, Err: llm.ErrTruncated}},
		{fragments: []string{"complete ", "answer"}},
	}}
	r := New(Config{Proxy: candidate(ProxyProfile(), proxy, ""), Retry: fastRetry()})

	s := r.Stream(context.Background(), generateRequest())
	defer s.Close()
	shown, frags := collect(s)
	require.NoError(t, s.Err())

	require.Len(t, frags, 3)
	assert.False(t, frags[0].Reset)
	assert.True(t, frags[1].Reset, "first fragment of the retry resets")
	assert.False(t, frags[2].Reset)
	assert.Equal(t, "complete answer", shown)
	assert.Equal(t, "complete answer", s.Response().Text)
	assert.Equal(t, StateCompleted, s.State())
}

func TestCancellationStopsStream(t *testing.T) {
	proxy := &fakeBackend{name: "proxy", steps: []step{{fragments: []string{"a", "b", "c"}}}}
	r := New(Config{Proxy: candidate(ProxyProfile(), proxy, ""), Retry: fastRetry()})

	ctx, cancel := context.WithCancel(context.Background())
	s := r.Stream(ctx, generateRequest())
	require.True(t, s.Next())
	assert.Equal(t, "a", s.Fragment().Text)

	cancel()
	assert.False(t, s.Next())
	assert.ErrorIs(t, s.Err(), context.Canceled)
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, 1, proxy.Calls(), "no retry after cancel")
	assert.NoError(t, s.Close())
}

func TestCloseBeforeStart(t *testing.T) {
	proxy := &fakeBackend{name: "proxy", steps: []step{{fragments: []string{"a"}}}}
	r := New(Config{Proxy: candidate(ProxyProfile(), proxy, "")})
	s := r.Stream(context.Background(), generateRequest())
	require.NoError(t, s.Close())
	assert.False(t, s.Next())
	assert.True(t, errors.Is(s.Err(), context.Canceled))
	assert.Equal(t, 0, proxy.Calls())
}

func TestRetryDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 500*time.Millisecond, p.delay(1))
	assert.Equal(t, time.Second, p.delay(2))
	assert.Equal(t, 8*time.Second, p.delay(10))
}

func TestStreamStateTransitions(t *testing.T) {
	proxy := &fakeBackend{name: "proxy", steps: []step{{fragments: []string{"x"}}}}
	r := New(Config{Proxy: candidate(ProxyProfile(), proxy, "")})
	s := r.Stream(context.Background(), generateRequest())
	assert.Equal(t, StateInit, s.State())
	require.True(t, s.Next())
	assert.Equal(t, StateStreaming, s.State())
	assert.Equal(t, "proxy", s.Fragment().Provider)
	assert.False(t, s.Next())
	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, "completed", s.State().String())
}
