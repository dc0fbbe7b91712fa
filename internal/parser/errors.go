package parser

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupported = errors.New("no grammar registered for file type")
	ErrBinary      = errors.New("binary content")
	ErrEncoding    = errors.New("content is not valid UTF-8")
)

// RecoverableSyntaxError reports a file that parsed with errors. The tree
// returned with it is a best-effort result containing error nodes.
type RecoverableSyntaxError struct {
	Path  string
	Count int
}

func (e *RecoverableSyntaxError) Error() string {
	return fmt.Sprintf("%s: %d syntax error(s)", e.Path, e.Count)
}

// FatalParseError reports a file that could not be parsed at all.
type FatalParseError struct {
	Path string
	Err  error
}

func (e *FatalParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FatalParseError) Unwrap() error { return e.Err }
