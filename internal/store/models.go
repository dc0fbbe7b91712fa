package store

import "time"

// FileRecord represents an indexed source file.
type FileRecord struct {
	Path         string
	Hash         string
	ModTime      int64 // unix nanoseconds
	Size         int64
	Language     string
	Chunks       int
	SyntaxErrors int
	Summary      string
	IndexedAt    time.Time
}

// Chunk is a stored code chunk. Embedding is only populated by queries
// that ask for it.
type Chunk struct {
	ID        string
	ParentID  string
	FilePath  string
	Name      string
	Kind      string
	Language  string
	StartByte uint32
	EndByte   uint32
	StartLine int
	EndLine   int
	Content   string
	Embedding []float32
}

// Neighbor is a candidate returned by the vector index.
type Neighbor struct {
	ID       string
	Distance float64
}

// ChunkSummary is a lightweight chunk record for overview generation.
type ChunkSummary struct {
	Name     string
	Kind     string
	FilePath string
}
