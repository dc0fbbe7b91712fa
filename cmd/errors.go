package cmd

import (
	"context"
	"errors"

	"nexus/internal/gitutil"
	"nexus/internal/index"
	"nexus/internal/llm"
	"nexus/internal/parser"
	"nexus/internal/router"
	"nexus/internal/search"
	"nexus/internal/update"
)

// classify maps an error onto the kind and hint printed as
// "error[<kind>]: <message>".
func classify(err error) (kind, hint string) {
	var (
		re *router.RouterError
		pe *llm.ProviderError
		ie *index.IndexError
		se *search.SearchError
		fe *parser.FatalParseError
	)
	switch {
	case errors.As(err, &re):
		return re.Kind.String(), re.Hint
	case errors.As(err, &pe):
		return pe.Kind.String(), pe.Hint()
	case errors.As(err, &ie):
		return ie.Kind.String(), ie.Hint()
	case errors.As(err, &se):
		if se.Kind == search.StoreUnavailable {
			return se.Kind.String(), "run 'nexus index' to build the index"
		}
		return se.Kind.String(), ""
	case errors.As(err, &fe):
		return "parse", ""
	case errors.Is(err, gitutil.ErrNothingStaged):
		return "git", "stage files with 'git add' first"
	case errors.Is(err, update.ErrNoRelease):
		return "update", "set GITHUB_TOKEN for a private repository"
	case errors.Is(err, context.Canceled):
		return "canceled", ""
	}
	return "error", ""
}
