package embedder

import (
	"context"
	"errors"
	"time"

	"nexus/internal/llm"
)

// Backoff is the retry policy for remote embedding calls. Delays double
// from Base up to Max.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultBackoff is used by NewOllamaEmbedder.
func DefaultBackoff() Backoff {
	return Backoff{Attempts: 3, Base: 100 * time.Millisecond, Max: 5 * time.Second}
}

func (b Backoff) delay(n int) time.Duration {
	d := b.Base
	for range n {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	return d
}

// retryable reports whether another attempt may succeed. Only transient
// provider failures qualify; auth, malformed requests and bad responses do not.
func retryable(err error) bool {
	var pe *llm.ProviderError
	return errors.As(err, &pe) && pe.Retryable()
}

func withRetry[T any](ctx context.Context, b Backoff, fn func() (T, error)) (T, error) {
	var zero T
	attempts := max(b.Attempts, 1)
	for n := 0; ; n++ {
		v, err := fn()
		switch {
		case err == nil:
			return v, nil
		case ctx.Err() != nil:
			return zero, ctx.Err()
		case !retryable(err) || n+1 >= attempts:
			return zero, err
		}

		t := time.NewTimer(b.delay(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
}
