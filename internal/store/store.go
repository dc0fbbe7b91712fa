package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrCorrupt is returned when the database file is not a usable index.
var ErrCorrupt = errors.New("index store is corrupt")

// Meta keys.
const (
	MetaEmbeddingModel = "embedding_model"
	MetaDimension      = "embedding_dimension"
	MetaIndexedAt      = "indexed_at"
)

// Store persists indexed files, chunks, and embeddings in SQLite with a
// sqlite-vec table for nearest neighbour candidates.
type Store struct {
	db  *sql.DB
	dim int
}

// Open creates or opens a SQLite database at the given path and initializes
// the schema. The vector table is created once a dimension is known.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(ctx, db); err != nil {
		db.Close()
		return nil, classify(fmt.Errorf("init schema: %w", err))
	}

	s := &Store{db: db}
	raw, err := s.GetMeta(ctx, MetaDimension)
	if err != nil {
		db.Close()
		return nil, classify(err)
	}
	if raw != "" {
		dim, err := strconv.Atoi(raw)
		if err != nil || dim <= 0 {
			db.Close()
			return nil, fmt.Errorf("%w: bad dimension %q", ErrCorrupt, raw)
		}
		if err := createVecTable(ctx, db, dim); err != nil {
			db.Close()
			return nil, classify(fmt.Errorf("create vector table: %w", err))
		}
		s.dim = dim
	}
	return s, nil
}

// classify maps SQLite corruption codes to ErrCorrupt.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrCorrupt || se.Code == sqlite3.ErrNotADB) {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "not a database") || strings.Contains(msg, "malformed") {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return err
}

// Dimension returns the active embedding dimension, or 0 before Reset.
func (s *Store) Dimension() int { return s.dim }

// Reset drops every file, chunk, and embedding and recreates the vector
// table for dim.
func (s *Store) Reset(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid dimension %d", dim)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS vec_chunks",
		"DELETE FROM chunks",
		"DELETE FROM files",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	if err := createVecTable(ctx, tx, dim); err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}
	if err := setMeta(ctx, tx, MetaDimension, strconv.Itoa(dim)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.dim = dim
	return nil
}

// Files returns every file record ordered by path.
func (s *Store) Files(ctx context.Context) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, hash, mtime, size, language, chunks, syntax_errors, summary, indexed_at
		FROM files ORDER BY path`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.Path, &f.Hash, &f.ModTime, &f.Size, &f.Language,
			&f.Chunks, &f.SyntaxErrors, &f.Summary, &f.IndexedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ReplaceFile replaces everything stored for f.Path with the given chunks
// in a single transaction. Chunks without an embedding are stored but not
// searchable.
func (s *Store) ReplaceFile(ctx context.Context, f FileRecord, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteChunks(ctx, tx, f.Path); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO files (path, hash, mtime, size, language, chunks, syntax_errors, summary, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			hash = excluded.hash, mtime = excluded.mtime, size = excluded.size,
			language = excluded.language, chunks = excluded.chunks,
			syntax_errors = excluded.syntax_errors, summary = '',
			indexed_at = CURRENT_TIMESTAMP`,
		f.Path, f.Hash, f.ModTime, f.Size, f.Language, len(chunks), f.SyntaxErrors)
	if err != nil {
		return fmt.Errorf("upsert file %s: %w", f.Path, err)
	}

	if len(chunks) > 0 {
		if err := s.insertChunks(ctx, tx, chunks); err != nil {
			return fmt.Errorf("insert chunks for %s: %w", f.Path, err)
		}
	}
	return tx.Commit()
}

func (s *Store) insertChunks(ctx context.Context, tx *sql.Tx, chunks []Chunk) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, parent_id, file_path, name, kind, language,
			start_byte, end_byte, start_line, end_line, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var vecStmt *sql.Stmt
	if s.dim > 0 {
		vecStmt, err = tx.PrepareContext(ctx, "INSERT INTO vec_chunks (rowid, embedding) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer vecStmt.Close()
	}

	for _, c := range chunks {
		var blob []byte
		if c.Embedding != nil {
			if len(c.Embedding) != s.dim {
				return fmt.Errorf("chunk %s has dimension %d, store has %d", c.ID, len(c.Embedding), s.dim)
			}
			blob, err = sqlite_vec.SerializeFloat32(c.Embedding)
			if err != nil {
				return fmt.Errorf("serialize embedding for chunk %s: %w", c.ID, err)
			}
		}
		res, err := stmt.ExecContext(ctx, c.ID, c.ParentID, c.FilePath, c.Name, c.Kind, c.Language,
			c.StartByte, c.EndByte, c.StartLine, c.EndLine, c.Content, blob)
		if err != nil {
			return err
		}
		if blob == nil {
			continue
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := vecStmt.ExecContext(ctx, seq, blob); err != nil {
			return fmt.Errorf("insert embedding for chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// deleteChunks removes a file's chunks and their vector rows.
func deleteChunks(ctx context.Context, tx *sql.Tx, path string) error {
	rows, err := tx.QueryContext(ctx, "SELECT seq FROM chunks WHERE file_path = ? AND embedding IS NOT NULL", path)
	if err != nil {
		return err
	}
	var seqs []int64
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			rows.Close()
			return err
		}
		seqs = append(seqs, seq)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(seqs) > 0 {
		var hasVec int
		if err := tx.QueryRowContext(ctx,
			"SELECT count(*) FROM sqlite_master WHERE name = 'vec_chunks'").Scan(&hasVec); err != nil {
			return err
		}
		if hasVec > 0 {
			for _, seq := range seqs {
				if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE rowid = ?", seq); err != nil {
					return err
				}
			}
		}
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_path = ?", path)
	return err
}

// TouchFile records a new mtime and size for a file whose content is unchanged.
func (s *Store) TouchFile(ctx context.Context, path string, mtime, size int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE files SET mtime = ?, size = ? WHERE path = ?", mtime, size, path)
	return err
}

// DeleteFile removes a file and all of its chunks.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteChunks(ctx, tx, path); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path); err != nil {
		return err
	}
	return tx.Commit()
}

// Count returns the number of searchable chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM chunks WHERE embedding IS NOT NULL").Scan(&n)
	return n, classify(err)
}

// ScanEmbeddings calls fn for every searchable chunk. Iteration stops at
// the first error fn returns. The vector passed to fn is freshly allocated.
func (s *Store) ScanEmbeddings(ctx context.Context, fn func(id string, vec []float32) error) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, embedding FROM chunks WHERE embedding IS NOT NULL")
	if err != nil {
		return classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", id, err)
		}
		if err := fn(id, vec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// MaxNearest is the largest k sqlite-vec accepts in a KNN query.
const MaxNearest = 4096

// Nearest returns up to k candidate chunk IDs from the vector table,
// closest first. k is clamped to MaxNearest.
func (s *Store) Nearest(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if s.dim == 0 || k <= 0 {
		return nil, nil
	}
	k = min(k, MaxNearest)
	if len(query) != s.dim {
		return nil, fmt.Errorf("query has dimension %d, store has %d", len(query), s.dim)
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, v.distance
		FROM (
			SELECT rowid, distance FROM vec_chunks
			WHERE embedding MATCH ? AND k = ?
		) v
		JOIN chunks c ON c.seq = v.rowid
		ORDER BY v.distance`, blob, k)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.ID, &n.Distance); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Chunks fetches chunks by ID, including embeddings. Unknown IDs are
// ignored; the result order is unspecified.
func (s *Store) Chunks(ctx context.Context, ids []string) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, file_path, name, kind, language,
			start_byte, end_byte, start_line, end_line, content, embedding
		FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.ParentID, &c.FilePath, &c.Name, &c.Kind, &c.Language,
			&c.StartByte, &c.EndByte, &c.StartLine, &c.EndLine, &c.Content, &blob); err != nil {
			return nil, err
		}
		if blob != nil {
			if c.Embedding, err = decodeVector(blob); err != nil {
				return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FileChunks returns a file's chunks in source order, without embeddings.
func (s *Store) FileChunks(ctx context.Context, path string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, file_path, name, kind, language,
			start_byte, end_byte, start_line, end_line, content
		FROM chunks WHERE file_path = ? ORDER BY start_byte, end_byte DESC`, path)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.ParentID, &c.FilePath, &c.Name, &c.Kind, &c.Language,
			&c.StartByte, &c.EndByte, &c.StartLine, &c.EndLine, &c.Content); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TopChunks lists named top-level chunks for overview generation.
func (s *Store) TopChunks(ctx context.Context) ([]ChunkSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, kind, file_path FROM chunks
		WHERE parent_id = '' AND name != '' AND kind IN ('function', 'class')
		ORDER BY file_path, start_byte`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []ChunkSummary
	for rows.Next() {
		var c ChunkSummary
		if err := rows.Scan(&c.Name, &c.Kind, &c.FilePath); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetFileSummary stores an LLM-generated summary for a file.
func (s *Store) SetFileSummary(ctx context.Context, path, summary string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE files SET summary = ? WHERE path = ?", summary, path)
	return err
}

// GetMeta returns a metadata value by key, or "" if not set.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetMeta sets a metadata key-value pair.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return setMeta(ctx, s.db, key, value)
}

func setMeta(ctx context.Context, q execer, key, value string) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// decodeVector reverses sqlite_vec.SerializeFloat32 (little-endian float32).
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("%w: embedding blob of %d bytes", ErrCorrupt, len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
