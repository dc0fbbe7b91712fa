package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrTruncated marks a stream whose body ended before the end marker.
var ErrTruncated = errors.New("stream ended before end marker")

// ErrorKind classifies provider failures.
type ErrorKind int

const (
	KindUnreachable ErrorKind = iota
	KindAuth
	KindRateLimited
	KindTimeout
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindMalformed:
		return "malformed"
	default:
		return "unreachable"
	}
}

// ProviderError is a classified backend failure.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Provider, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the same provider may be called again.
// Auth and malformed-request failures are fatal.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindUnreachable:
		return true
	}
	return false
}

// Hint returns a remediation suggestion for the error kind.
func (e *ProviderError) Hint() string {
	switch e.Kind {
	case KindAuth:
		return "check the API key for " + e.Provider
	case KindRateLimited:
		return "rate limited by " + e.Provider + "; wait a moment and retry"
	case KindMalformed:
		return "the request was rejected; try a shorter prompt"
	default:
		return "check your network connection"
	}
}

// kindForStatus maps an HTTP status to an error kind.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 400 && status < 500:
		return KindMalformed
	default:
		return KindUnreachable
	}
}

// statusError builds a ProviderError for a non-2xx response.
func statusError(provider string, status int, message string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     kindForStatus(status),
		Status:   status,
		Message:  strings.TrimSpace(message),
	}
}

// transportError classifies a request or body-read failure. Caller
// cancellation is returned unchanged so it is never retried.
func transportError(ctx context.Context, provider string, err error) error {
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	kind := KindUnreachable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// StatusError classifies a non-2xx response from any HTTP backend.
func StatusError(provider string, status int, message string) *ProviderError {
	return statusError(provider, status, message)
}

// TransportError classifies a failed HTTP exchange with any backend.
func TransportError(ctx context.Context, provider string, err error) error {
	return transportError(ctx, provider, err)
}

// truncated reports a body that ended before the end marker.
func truncated(provider string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindUnreachable, Err: ErrTruncated}
}
