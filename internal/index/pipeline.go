package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"nexus/internal/chunker"
	"nexus/internal/metrics"
	"nexus/internal/parser"
	"nexus/internal/store"
	"nexus/internal/walker"
)

const embedBatchSize = 32

// outcome is what the writer must do with a walked file.
type outcome int

const (
	outcomeUnchanged outcome = iota // nothing to write
	outcomeTouch                    // same content, new mtime/size
	outcomeReplace                  // new chunks (possibly none)
	outcomeFatal                    // unparseable; evict if present
)

// fileResult is produced by a worker for exactly one walked file.
type fileResult struct {
	outcome outcome
	info    walker.FileInfo
	record  store.FileRecord
	chunks  []store.Chunk
	err     error
}

func (idx *Indexer) runPipeline(ctx context.Context, onProgress ProgressFunc) (*Stats, error) {
	existing, err := idx.store.Files(ctx)
	if err != nil {
		return nil, idx.storeError(err)
	}
	known := make(map[string]store.FileRecord, len(existing))
	for _, f := range existing {
		known[f.Path] = f
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Stage 1: walk (only files with registered grammars)
	files, walkErrs := walker.Walk(idx.cfg.Root, walker.Options{
		Extensions:  idx.parser.Registry().Extensions(),
		Excludes:    append(append([]string(nil), idx.cfg.Excludes...), DirName),
		MaxFileSize: idx.cfg.MaxFileSize,
	})

	// Stage 2: read, diff, parse, chunk, embed (N workers)
	results := make(chan fileResult, idx.cfg.Workers)
	g, gctx := errgroup.WithContext(ctx)
	for range idx.cfg.Workers {
		g.Go(func() error {
			for fi := range files {
				if err := gctx.Err(); err != nil {
					return err
				}
				prev, ok := known[fi.RelPath]
				r, err := idx.processFile(gctx, fi, prev, ok)
				if err != nil {
					return err
				}
				select {
				case results <- r:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	var workErr error
	go func() {
		workErr = g.Wait()
		close(results)
		// Unblock the walker if the workers stopped early.
		for range files {
		}
	}()

	// Stage 3: store (1 writer)
	var stats Stats
	var writeErr error
	seen := make(map[string]bool, len(known))
	for r := range results {
		seen[r.info.RelPath] = true
		stats.FilesTotal++
		if writeErr != nil {
			continue
		}
		if err := idx.apply(ctx, r, known, &stats); err != nil {
			writeErr = idx.storeError(err)
			cancel()
			continue
		}
		if onProgress != nil {
			onProgress("indexing", stats.FilesTotal, 0)
		}
	}

	walkErr := <-walkErrs
	switch {
	case writeErr != nil:
		return &stats, writeErr
	case workErr != nil:
		if errors.Is(workErr, context.Canceled) || errors.Is(workErr, context.DeadlineExceeded) {
			return &stats, workErr
		}
		return &stats, &IndexError{Kind: KindIO, Path: idx.cfg.Root, Err: workErr}
	case walkErr != nil:
		return &stats, &IndexError{Kind: KindIO, Path: idx.cfg.Root, Err: fmt.Errorf("walk: %w", walkErr)}
	}

	// Evict files that disappeared from disk.
	for path := range known {
		if seen[path] {
			continue
		}
		if err := idx.store.DeleteFile(ctx, path); err != nil {
			return &stats, idx.storeError(err)
		}
		stats.FilesDeleted++
		metrics.IndexFiles.WithLabelValues("deleted").Inc()
		idx.logger.Debug("index.file.deleted", "path", path)
	}
	return &stats, nil
}

// processFile decides what happens to one file. Per-file failures are
// reported through the result; only embedding or cancellation errors abort
// the run.
func (idx *Indexer) processFile(ctx context.Context, fi walker.FileInfo, prev store.FileRecord, known bool) (fileResult, error) {
	r := fileResult{info: fi}
	mtime := fi.ModTime.UnixNano()

	if known && prev.ModTime == mtime && prev.Size == fi.Size {
		r.outcome = outcomeUnchanged
		return r, nil
	}

	src, err := os.ReadFile(fi.Path)
	if err != nil {
		r.outcome = outcomeFatal
		r.err = &parser.FatalParseError{Path: fi.RelPath, Err: fmt.Errorf("read: %w", err)}
		return r, nil
	}
	sum := sha256.Sum256(src)
	hash := hex.EncodeToString(sum[:])

	r.record = store.FileRecord{
		Path:    fi.RelPath,
		Hash:    hash,
		ModTime: mtime,
		Size:    fi.Size,
	}
	if known && prev.Hash == hash {
		r.outcome = outcomeTouch
		return r, nil
	}

	tree, err := idx.parser.Parse(ctx, fi.RelPath, src)
	var syntaxErr *parser.RecoverableSyntaxError
	switch {
	case err == nil:
	case errors.As(err, &syntaxErr):
		r.outcome = outcomeReplace
		r.record.Language = tree.Language
		r.record.SyntaxErrors = syntaxErr.Count
		r.err = err
		return r, nil
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return r, ctxErr
		}
		r.outcome = outcomeFatal
		r.err = err
		return r, nil
	}

	r.outcome = outcomeReplace
	r.record.Language = tree.Language
	chunks := idx.chunker.Chunk(tree)
	r.chunks, err = idx.embedChunks(ctx, chunks)
	if err != nil {
		return r, fmt.Errorf("embed %s: %w", fi.RelPath, err)
	}
	return r, nil
}

func (idx *Indexer) embedChunks(ctx context.Context, chunks []chunker.Chunk) ([]store.Chunk, error) {
	out := make([]store.Chunk, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = chunker.Representation(c)
		out[i] = store.Chunk{
			ID:        c.ID,
			ParentID:  c.ParentID,
			FilePath:  c.Path,
			Name:      c.Name,
			Kind:      string(c.Kind),
			Language:  c.Language,
			StartByte: uint32(c.StartByte),
			EndByte:   uint32(c.EndByte),
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Content:   c.Content,
		}
	}

	// Embed in sub-batches of embedBatchSize.
	for i := 0; i < len(texts); i += embedBatchSize {
		end := min(i+embedBatchSize, len(texts))
		vecs, err := idx.emb.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-i {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), end-i)
		}
		for j, v := range vecs {
			out[i+j].Embedding = v
		}
	}
	return out, nil
}

// apply performs the store write for one result. It runs only on the
// writer goroutine.
func (idx *Indexer) apply(ctx context.Context, r fileResult, known map[string]store.FileRecord, stats *Stats) error {
	path := r.info.RelPath
	switch r.outcome {
	case outcomeUnchanged:
		stats.FilesUnchanged++
		metrics.IndexFiles.WithLabelValues("unchanged").Inc()

	case outcomeTouch:
		stats.FilesUnchanged++
		metrics.IndexFiles.WithLabelValues("unchanged").Inc()
		return idx.store.TouchFile(ctx, path, r.record.ModTime, r.record.Size)

	case outcomeReplace:
		if err := idx.store.ReplaceFile(ctx, r.record, r.chunks); err != nil {
			return fmt.Errorf("replace %s: %w", path, err)
		}
		stats.FilesIndexed++
		stats.ChunksWritten += len(r.chunks)
		metrics.IndexFiles.WithLabelValues("indexed").Inc()
		metrics.ChunksWritten.Add(float64(len(r.chunks)))
		if r.err != nil {
			stats.RecoverableErrors++
			metrics.ParseErrors.WithLabelValues("recoverable").Inc()
			idx.logger.Warn("index.file.syntax_errors", "path", path, "count", r.record.SyntaxErrors)
		} else {
			idx.logger.Debug("index.file.indexed", "path", path, "chunks", len(r.chunks))
		}

	case outcomeFatal:
		stats.FatalErrors++
		metrics.IndexFiles.WithLabelValues("skipped").Inc()
		metrics.ParseErrors.WithLabelValues("fatal").Inc()
		idx.logger.Warn("index.file.skipped", "path", path, "err", r.err)
		if _, ok := known[path]; ok {
			return idx.store.DeleteFile(ctx, path)
		}
	}
	return nil
}
