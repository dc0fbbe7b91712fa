package store

import (
	"context"
	"database/sql"
	"fmt"
)

const ddl = `
CREATE TABLE IF NOT EXISTS files (
    path          TEXT PRIMARY KEY,
    hash          TEXT NOT NULL,
    mtime         INTEGER NOT NULL DEFAULT 0,
    size          INTEGER NOT NULL DEFAULT 0,
    language      TEXT NOT NULL DEFAULT '',
    chunks        INTEGER NOT NULL DEFAULT 0,
    syntax_errors INTEGER NOT NULL DEFAULT 0,
    summary       TEXT NOT NULL DEFAULT '',
    indexed_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chunks (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    parent_id  TEXT NOT NULL DEFAULT '',
    file_path  TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
    name       TEXT NOT NULL DEFAULT '',
    kind       TEXT NOT NULL DEFAULT '',
    language   TEXT NOT NULL DEFAULT '',
    start_byte INTEGER NOT NULL,
    end_byte   INTEGER NOT NULL,
    start_line INTEGER NOT NULL,
    end_line   INTEGER NOT NULL,
    content    TEXT NOT NULL,
    embedding  BLOB
);

CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_path);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// vecDDL creates the vector table for a given embedding dimension.
// Rows are keyed by chunks.seq.
const vecDDL = `CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    embedding float[%d] distance_metric=cosine
)`

// Init creates the schema tables if they don't exist.
func Init(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, ddl)
	return err
}

func createVecTable(ctx context.Context, q execer, dim int) error {
	_, err := q.ExecContext(ctx, fmt.Sprintf(vecDDL, dim))
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
