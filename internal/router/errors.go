package router

import "fmt"

// ErrorKind classifies router failures.
type ErrorKind int

const (
	NoProviderAvailable ErrorKind = iota
)

func (k ErrorKind) String() string { return "no_provider_available" }

// RouterError is returned when every candidate provider is exhausted or
// none qualifies for the request.
type RouterError struct {
	Kind ErrorKind
	Hint string
	// Last is the final provider failure, if any call was made.
	Last error
}

func (e *RouterError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("no provider available: %v", e.Last)
	}
	return "no provider available"
}

func (e *RouterError) Unwrap() error { return e.Last }
