package index

import "fmt"

// ErrorKind classifies indexing failures.
type ErrorKind int

const (
	KindIO ErrorKind = iota
	KindCorruptStore
	KindConcurrentWrite
)

func (k ErrorKind) String() string {
	switch k {
	case KindCorruptStore:
		return "corrupt_store"
	case KindConcurrentWrite:
		return "concurrent_write"
	default:
		return "io"
	}
}

// IndexError is returned when a repository-wide index operation fails.
// Per-file parse failures never surface as an IndexError; they are counted
// in Stats instead.
type IndexError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *IndexError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("index %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("index: %s: %v", e.Kind, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Hint returns a remediation suggestion for the error kind.
func (e *IndexError) Hint() string {
	switch e.Kind {
	case KindCorruptStore:
		return "run 'nexus index --force' to rebuild the index"
	case KindConcurrentWrite:
		return "another 'nexus index' is running for this repository; wait for it to finish"
	default:
		return "check file permissions and free disk space"
	}
}
