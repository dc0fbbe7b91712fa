package router

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"nexus/internal/llm"
	"nexus/internal/metrics"
)

// State is the lifecycle position of a Stream.
type State int

const (
	StateInit State = iota
	StateSelecting
	StateCalling
	StateStreaming
	StateRetrying
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSelecting:
		return "selecting"
	case StateCalling:
		return "calling"
	case StateStreaming:
		return "streaming"
	case StateRetrying:
		return "retrying"
	case StateCompleted:
		return "completed"
	default:
		return "failed"
	}
}

// Fragment is one piece of response text. Reset is set on the first
// fragment after a restart: text shown from earlier attempts is void.
type Fragment struct {
	Text     string
	Reset    bool
	Provider string
}

// Status is the terminal outcome of a request.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Response is the normalised result of a request.
type Response struct {
	ID     string
	Status Status
	// Text holds the final attempt's output only.
	Text     string
	Bytes    int
	Tokens   int
	Provider string
	Attempts int
	FellBack bool
	Err      error
}

// Stream is a lazy, finite sequence of fragments for one request. It is
// not safe for concurrent use; the consumer pulls with Next.
type Stream struct {
	r      *Router
	ctx    context.Context
	cancel context.CancelFunc
	req    llm.Request
	id     string

	state   State
	plan    []*Candidate
	current int
	tries   int // attempts on the current candidate
	retries int // backoff index

	reader       llm.FragmentReader
	text         strings.Builder
	emitted      bool
	pendingReset bool

	frag     Fragment
	err      error
	attempts int
	fellBack bool
	resp     *Response
}

func newStream(ctx context.Context, r *Router, req llm.Request) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	return &Stream{
		r:      r,
		ctx:    ctx,
		cancel: cancel,
		req:    req,
		id:     uuid.NewString(),
		state:  StateInit,
	}
}

// ID returns the request id.
func (s *Stream) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Stream) State() State { return s.state }

// Fragment returns the fragment produced by the last successful Next.
func (s *Stream) Fragment() Fragment { return s.frag }

// Err returns the terminal error, if the stream failed.
func (s *Stream) Err() error { return s.err }

// Provider returns the name of the provider currently serving the request.
func (s *Stream) Provider() string {
	if s.current < len(s.plan) {
		return s.plan[s.current].Profile.Name
	}
	return ""
}

// Response returns the terminal response, or nil while the stream is live.
func (s *Stream) Response() *Response { return s.resp }

// Next advances to the next fragment. It returns false once the stream has
// completed or failed.
func (s *Stream) Next() bool {
	for {
		switch s.state {
		case StateCompleted, StateFailed:
			return false

		case StateInit:
			s.state = StateSelecting

		case StateSelecting:
			plan, err := s.r.plan(s.ctx, s.req)
			if err != nil {
				s.fail(err)
				return false
			}
			s.plan = plan
			s.r.logger.Debug("router.select", "id", s.id, "provider", s.Provider(), "op", s.req.Op)
			s.state = StateCalling

		case StateCalling:
			if err := s.ctx.Err(); err != nil {
				s.fail(err)
				return false
			}
			cand := s.plan[s.current]
			if err := s.r.wait(s.ctx, cand); err != nil {
				s.fail(err)
				return false
			}
			s.attempts++
			s.tries++
			reader, err := cand.Backend.Stream(s.ctx, s.req)
			if err != nil {
				s.failure(err)
				continue
			}
			s.reader = reader
			s.text.Reset()
			s.state = StateStreaming

		case StateStreaming:
			text, err := s.reader.Next()
			if errors.Is(err, io.EOF) {
				s.closeReader()
				s.complete()
				if s.pendingReset {
					// The final attempt produced nothing after a restart.
					s.pendingReset = false
					s.frag = Fragment{Reset: true, Provider: s.Provider()}
					return true
				}
				return false
			}
			if err != nil {
				s.closeReader()
				s.failure(err)
				continue
			}
			if text == "" {
				continue
			}
			s.text.WriteString(text)
			s.frag = Fragment{Text: text, Reset: s.pendingReset, Provider: s.Provider()}
			s.pendingReset = false
			s.emitted = true
			return true

		case StateRetrying:
			s.retries++
			d := s.r.cfg.Retry.delay(s.retries)
			if err := sleep(s.ctx, d); err != nil {
				s.fail(err)
				return false
			}
			s.state = StateCalling
		}
	}
}

// failure handles a failed call or stream read and picks the next state.
func (s *Stream) failure(err error) {
	cand := s.plan[s.current]
	name := cand.Profile.Name

	if ctxErr := s.ctx.Err(); ctxErr != nil {
		metrics.ProviderAttempts.WithLabelValues(name, "canceled").Inc()
		s.fail(ctxErr)
		return
	}

	var pe *llm.ProviderError
	if !errors.As(err, &pe) {
		pe = &llm.ProviderError{Provider: name, Kind: llm.KindUnreachable, Err: err}
	}

	if !pe.Retryable() {
		metrics.ProviderAttempts.WithLabelValues(name, "fatal").Inc()
		s.r.logger.Warn("router.attempt.fatal", "id", s.id, "provider", name, "kind", pe.Kind, "err", pe)
		s.fail(pe)
		return
	}
	metrics.ProviderAttempts.WithLabelValues(name, "retryable").Inc()
	s.r.logger.Warn("router.attempt.failed",
		"id", s.id, "provider", name, "attempt", s.tries, "kind", pe.Kind, "err", pe)

	if s.emitted {
		s.pendingReset = true
	}

	if s.tries < s.r.cfg.Retry.MaxAttempts {
		s.state = StateRetrying
		return
	}

	if s.current+1 < len(s.plan) && !s.fellBack {
		s.current++
		s.tries = 0
		s.retries = 0
		s.fellBack = true
		s.r.logger.Info("router.fallback", "id", s.id, "from", name, "to", s.Provider())
		s.state = StateCalling
		return
	}

	s.fail(&RouterError{Kind: NoProviderAvailable, Hint: s.r.hint(), Last: pe})
}

func (s *Stream) complete() {
	name := s.Provider()
	metrics.ProviderAttempts.WithLabelValues(name, "ok").Inc()

	text := s.text.String()
	tokens := 0
	if s.reader != nil {
		tokens = s.reader.Usage().OutputTokens
	}
	if tokens == 0 {
		tokens = llm.EstimateTokens(len(text))
	}
	s.state = StateCompleted
	s.resp = &Response{
		ID:       s.id,
		Status:   StatusCompleted,
		Text:     text,
		Bytes:    len(text),
		Tokens:   tokens,
		Provider: name,
		Attempts: s.attempts,
		FellBack: s.fellBack,
	}
	s.r.logger.Debug("router.complete", "id", s.id, "provider", name, "attempts", s.attempts, "bytes", len(text))
}

func (s *Stream) fail(err error) {
	s.state = StateFailed
	s.err = err
	s.resp = &Response{
		ID:       s.id,
		Status:   StatusFailed,
		Provider: s.Provider(),
		Attempts: s.attempts,
		FellBack: s.fellBack,
		Err:      err,
	}
	s.cancel()
}

func (s *Stream) closeReader() {
	if s.reader != nil {
		s.reader.Close()
	}
}

// Close stops the stream and releases the connection. Fragments already
// returned stay valid. Closing a live stream fails it with context.Canceled.
func (s *Stream) Close() error {
	s.cancel()
	if s.state == StateStreaming {
		s.closeReader()
	}
	s.reader = nil
	if s.state != StateCompleted && s.state != StateFailed {
		s.fail(context.Canceled)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
