package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"nexus/internal/chunker"
	"nexus/internal/embedder"
	"nexus/internal/parser"
	"nexus/internal/parser/languages"
	"nexus/internal/router"
	"nexus/internal/store"
)

// DirName is the per-repository index directory.
const DirName = ".nexus"

// DBFile is the store file inside the index directory.
const DBFile = "index.db"

// OverviewFile is written next to the store when summaries are generated.
const OverviewFile = "overview.md"

// Config holds the indexer configuration.
type Config struct {
	// Root is the repository to index.
	Root string
	// Dir holds the store and lock file. Defaults to Root/.nexus.
	Dir string
	// Embedder computes chunk representations. Defaults to a HashEmbedder.
	Embedder embedder.Embedder
	// Parser defaults to one with every built-in language registered.
	Parser *parser.Parser
	// Chunker options; zero values take the chunker defaults.
	Chunker chunker.Options
	// Workers bounds the per-file worker pool. Defaults to NumCPU.
	Workers int
	// Excludes are extra walk ignore patterns.
	Excludes []string
	// MaxFileSize in bytes; zero uses the walker default.
	MaxFileSize int64
	// Router is used for file summaries and the project overview.
	Router *router.Router
	Logger *slog.Logger
}

// Options control a single Index run.
type Options struct {
	// Force discards the existing index and rebuilds it.
	Force bool
	// Summarize generates per-file summaries and overview.md via the Router.
	Summarize bool
	// OnProgress is called from the writer goroutine.
	OnProgress ProgressFunc
}

// ProgressFunc reports progress for a phase.
type ProgressFunc func(phase string, current, total int)

// Stats reports indexing results.
type Stats struct {
	FilesTotal        int
	FilesIndexed      int
	FilesUnchanged    int
	FilesDeleted      int
	ChunksWritten     int
	ChunksTotal       int
	RecoverableErrors int
	FatalErrors       int
	Duration          time.Duration
}

// Indexer builds and maintains the persistent index for one repository.
type Indexer struct {
	cfg     Config
	store   *store.Store
	parser  *parser.Parser
	chunker *chunker.Chunker
	emb     embedder.Embedder
	logger  *slog.Logger
}

// DefaultDir returns the index directory for a repository root.
func DefaultDir(root string) string {
	return filepath.Join(root, DirName)
}

// Open opens (or creates) the index for cfg.Root.
func Open(ctx context.Context, cfg Config) (*Indexer, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, &IndexError{Kind: KindIO, Path: cfg.Root, Err: err}
	}
	cfg.Root = root
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir(root)
	}
	if cfg.Embedder == nil {
		cfg.Embedder = embedder.NewHashEmbedder(0)
	}
	if cfg.Parser == nil {
		cfg.Parser = parser.New(languages.NewRegistry())
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s, err := store.Open(ctx, filepath.Join(cfg.Dir, DBFile))
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return nil, &IndexError{Kind: KindCorruptStore, Path: cfg.Dir, Err: err}
		}
		return nil, &IndexError{Kind: KindIO, Path: cfg.Dir, Err: err}
	}

	return &Indexer{
		cfg:     cfg,
		store:   s,
		parser:  cfg.Parser,
		chunker: chunker.New(cfg.Chunker),
		emb:     cfg.Embedder,
		logger:  cfg.Logger,
	}, nil
}

// Purge removes the store files in dir. Used to recover from a corrupt store.
func Purge(dir string) error {
	for _, name := range []string{DBFile, DBFile + "-wal", DBFile + "-shm"} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Store exposes the underlying store for search.
func (idx *Indexer) Store() *store.Store { return idx.store }

// Embedder returns the representation function the index was built with.
func (idx *Indexer) Embedder() embedder.Embedder { return idx.emb }

// Root returns the absolute repository root.
func (idx *Indexer) Root() string { return idx.cfg.Root }

// Index brings the store up to date with the repository. Concurrent runs
// against the same destination are rejected with KindConcurrentWrite.
func (idx *Indexer) Index(ctx context.Context, opts Options) (*Stats, error) {
	lock, err := acquireLock(idx.cfg.Dir)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	start := time.Now()
	if err := idx.prepare(ctx, opts.Force); err != nil {
		return nil, err
	}

	stats, err := idx.runPipeline(ctx, opts.OnProgress)
	if err != nil {
		return stats, err
	}

	if err := idx.store.SetMeta(ctx, store.MetaIndexedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return stats, idx.storeError(err)
	}
	if n, err := idx.store.Count(ctx); err == nil {
		stats.ChunksTotal = n
	}

	if opts.Summarize && idx.cfg.Router != nil && stats.FilesIndexed > 0 {
		idx.summarize(ctx, opts.OnProgress)
	}

	stats.Duration = time.Since(start)
	idx.logger.Info("index.complete",
		"root", idx.cfg.Root,
		"files", stats.FilesTotal,
		"indexed", stats.FilesIndexed,
		"unchanged", stats.FilesUnchanged,
		"deleted", stats.FilesDeleted,
		"recoverable", stats.RecoverableErrors,
		"fatal", stats.FatalErrors,
		"duration", stats.Duration,
	)
	return stats, nil
}

// prepare resets the store when forced or when the representation function
// changed since the last run.
func (idx *Indexer) prepare(ctx context.Context, force bool) error {
	lastModel, err := idx.store.GetMeta(ctx, store.MetaEmbeddingModel)
	if err != nil {
		return idx.storeError(err)
	}
	model := idx.emb.Model()
	dim := idx.emb.Dimension()

	reason := ""
	switch {
	case force:
		reason = "forced"
	case idx.store.Dimension() != dim:
		reason = "dimension changed"
	case lastModel != model:
		reason = "model changed"
	}
	if reason == "" {
		return nil
	}

	idx.logger.Info("index.reset", "reason", reason, "from", lastModel, "to", model, "dimension", dim)
	if err := idx.store.Reset(ctx, dim); err != nil {
		return idx.storeError(err)
	}
	if err := idx.store.SetMeta(ctx, store.MetaEmbeddingModel, model); err != nil {
		return idx.storeError(err)
	}
	return nil
}

// Summary describes the current index without modifying it.
type Summary struct {
	Files     int
	Chunks    int
	Model     string
	Dimension int
	IndexedAt string
}

// Describe reports the index contents.
func (idx *Indexer) Describe(ctx context.Context) (*Summary, error) {
	files, err := idx.store.Files(ctx)
	if err != nil {
		return nil, idx.storeError(err)
	}
	n, err := idx.store.Count(ctx)
	if err != nil {
		return nil, idx.storeError(err)
	}
	model, _ := idx.store.GetMeta(ctx, store.MetaEmbeddingModel)
	at, _ := idx.store.GetMeta(ctx, store.MetaIndexedAt)
	return &Summary{Files: len(files), Chunks: n, Model: model, Dimension: idx.store.Dimension(), IndexedAt: at}, nil
}

func (idx *Indexer) storeError(err error) error {
	if errors.Is(err, store.ErrCorrupt) {
		return &IndexError{Kind: KindCorruptStore, Path: idx.cfg.Dir, Err: err}
	}
	return &IndexError{Kind: KindIO, Path: idx.cfg.Dir, Err: fmt.Errorf("store: %w", err)}
}

// Close releases resources.
func (idx *Indexer) Close() error {
	return idx.store.Close()
}
