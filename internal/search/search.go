// Package search answers similarity queries against the persistent index.
//
// Indexes with at most ExactThreshold searchable chunks are scanned
// exhaustively, so results equal the exact top-K. Larger indexes take
// limit*Oversample candidates from the sqlite-vec table, rescore them
// exactly, and fall back to the full scan when too few candidates return.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"nexus/internal/embedder"
	"nexus/internal/metrics"
	"nexus/internal/store"
)

const (
	DefaultExactThreshold = 20_000
	DefaultOversample     = 4
)

// ErrorKind classifies search failures.
type ErrorKind int

const (
	MalformedQuery ErrorKind = iota
	StoreUnavailable
)

func (k ErrorKind) String() string {
	if k == StoreUnavailable {
		return "store_unavailable"
	}
	return "malformed_query"
}

// SearchError is returned for invalid queries or an unusable store.
type SearchError struct {
	Kind ErrorKind
	Err  error
}

func (e *SearchError) Error() string { return fmt.Sprintf("search: %s: %v", e.Kind, e.Err) }

func (e *SearchError) Unwrap() error { return e.Err }

// Mode names the strategy used for a query.
type Mode string

const (
	ModeExact       Mode = "exact"
	ModeApproximate Mode = "approximate"
)

// Options tune a Searcher.
type Options struct {
	// ExactThreshold is the largest index scanned exhaustively.
	ExactThreshold int
	// Oversample multiplies limit for approximate candidate retrieval.
	Oversample int
	Logger     *slog.Logger
}

// Result is a ranked chunk. Chunk.Embedding is cleared.
type Result struct {
	Chunk store.Chunk
	Score float64
}

// Searcher runs queries. It is safe for concurrent use and may run while
// an index update is in progress.
type Searcher struct {
	store  *store.Store
	emb    embedder.Embedder
	opts   Options
	logger *slog.Logger
}

// New creates a Searcher. emb must be the representation function the
// index was built with.
func New(st *store.Store, emb embedder.Embedder, opts Options) *Searcher {
	if opts.ExactThreshold <= 0 {
		opts.ExactThreshold = DefaultExactThreshold
	}
	if opts.Oversample <= 0 {
		opts.Oversample = DefaultOversample
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{store: st, emb: emb, opts: opts, logger: logger}
}

// ModeFor returns the strategy used for an index of count chunks.
func (s *Searcher) ModeFor(count int) Mode {
	if count <= s.opts.ExactThreshold {
		return ModeExact
	}
	return ModeApproximate
}

// Query returns up to limit chunks ordered by score descending, ties by
// chunk id ascending. An empty index yields no results and no error.
func (s *Searcher) Query(ctx context.Context, text string, limit int) ([]Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &SearchError{Kind: MalformedQuery, Err: errors.New("query is empty")}
	}
	if limit <= 0 {
		return nil, &SearchError{Kind: MalformedQuery, Err: fmt.Errorf("limit must be positive, got %d", limit)}
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, &SearchError{Kind: StoreUnavailable, Err: err}
	}
	if count == 0 {
		return nil, nil
	}
	if dim := s.store.Dimension(); dim != s.emb.Dimension() {
		return nil, &SearchError{Kind: StoreUnavailable, Err: fmt.Errorf(
			"index has dimension %d but %s produces %d; re-run 'nexus index'", dim, s.emb.Model(), s.emb.Dimension())}
	}

	qvec, err := embedder.EmbedOne(ctx, s.emb, text)
	if err != nil {
		return nil, &SearchError{Kind: StoreUnavailable, Err: fmt.Errorf("embed query: %w", err)}
	}

	mode := s.ModeFor(count)
	start := time.Now()
	var ranked []scored
	if mode == ModeApproximate {
		ranked, err = s.approximate(ctx, qvec, limit)
		switch {
		case err != nil:
			s.logger.Warn("search.approximate.failed", "err", err)
			fallthrough
		case len(ranked) < limit:
			s.logger.Debug("search.fallback.exact", "candidates", len(ranked), "limit", limit)
			mode = ModeExact
			ranked, err = s.exact(ctx, qvec, limit)
		}
	} else {
		ranked, err = s.exact(ctx, qvec, limit)
	}
	if err != nil {
		return nil, &SearchError{Kind: StoreUnavailable, Err: err}
	}
	metrics.SearchDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())

	return s.resolve(ctx, ranked)
}

type scored struct {
	id    string
	score float64
}

// exact scans every stored vector.
func (s *Searcher) exact(ctx context.Context, q []float32, limit int) ([]scored, error) {
	var all []scored
	err := s.store.ScanEmbeddings(ctx, func(id string, vec []float32) error {
		all = append(all, scored{id: id, score: score(q, vec)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return topK(all, limit), nil
}

// approximate rescores vector-table candidates.
func (s *Searcher) approximate(ctx context.Context, q []float32, limit int) ([]scored, error) {
	k := limit * s.opts.Oversample
	if k > store.MaxNearest || k < limit {
		k = store.MaxNearest
	}
	neighbors, err := s.store.Nearest(ctx, q, k)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.ID
	}
	chunks, err := s.store.Chunks(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]scored, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, scored{id: c.ID, score: score(q, c.Embedding)})
	}
	return topK(out, limit), nil
}

// resolve loads chunk metadata in ranked order.
func (s *Searcher) resolve(ctx context.Context, ranked []scored) ([]Result, error) {
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.id
	}
	chunks, err := s.store.Chunks(ctx, ids)
	if err != nil {
		return nil, &SearchError{Kind: StoreUnavailable, Err: err}
	}
	byID := make(map[string]store.Chunk, len(chunks))
	for _, c := range chunks {
		c.Embedding = nil
		byID[c.ID] = c
	}

	results := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		c, ok := byID[r.id]
		if !ok {
			// Evicted by a concurrent re-index.
			continue
		}
		results = append(results, Result{Chunk: c, Score: r.score})
	}
	return results, nil
}

// score is cosine similarity clamped to [0, 1].
func score(a, b []float32) float64 {
	return min(max(embedder.Cosine(a, b), 0), 1)
}

func topK(all []scored, k int) []scored {
	slices.SortFunc(all, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return strings.Compare(a.id, b.id)
	})
	if len(all) > k {
		all = all[:k]
	}
	return all
}
