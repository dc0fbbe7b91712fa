package search

import (
	"context"
	"strings"

	"github.com/sajari/fuzzy"

	"nexus/internal/embedder"
)

// Suggester proposes indexed symbol names close to a misspelled query term.
type Suggester struct {
	model *fuzzy.Model
	known map[string]bool
}

// NewSuggester trains a fuzzy model on the names of top-level chunks.
func (s *Searcher) NewSuggester(ctx context.Context) (*Suggester, error) {
	chunks, err := s.store.TopChunks(ctx)
	if err != nil {
		return nil, &SearchError{Kind: StoreUnavailable, Err: err}
	}

	model := fuzzy.NewModel()
	model.SetDepth(2)
	model.SetThreshold(1)
	model.SetUseAutocomplete(false)

	known := map[string]bool{}
	for _, c := range chunks {
		for _, w := range words(c.Name) {
			model.TrainWord(w)
			known[w] = true
		}
	}
	return &Suggester{model: model, known: known}, nil
}

// Suggest returns a corrected query when some terms are unknown and have a
// close match, or "" when nothing changes.
func (g *Suggester) Suggest(query string) string {
	terms := strings.Fields(strings.ToLower(query))
	changed := false
	for i, t := range terms {
		if g.known[t] || len(t) < 3 {
			continue
		}
		if sug := g.model.SpellCheckSuggestions(t, 1); len(sug) > 0 && sug[0] != t {
			terms[i] = sug[0]
			changed = true
		}
	}
	if !changed {
		return ""
	}
	return strings.Join(terms, " ")
}

// words splits an identifier into lowercase parts plus the whole name.
func words(name string) []string {
	lower := strings.ToLower(name)
	out := []string{lower}
	for _, w := range embedder.Words(name) {
		if w != lower && len(w) > 1 {
			out = append(out, w)
		}
	}
	return out
}
