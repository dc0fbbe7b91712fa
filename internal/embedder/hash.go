package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultDimension is the HashEmbedder vector size.
const DefaultDimension = 512

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "if": true, "in": true,
	"is": true, "it": true, "of": true, "on": true, "or": true, "the": true,
	"to": true, "with": true, "file": true, "language": true,
	// keywords common to most grammars
	"fn": true, "func": true, "function": true, "def": true, "let": true,
	"var": true, "const": true, "return": true, "pub": true, "self": true,
	"this": true, "else": true, "import": true, "package": true, "use": true,
	"class": true, "struct": true, "impl": true, "new": true, "mut": true,
}

// HashEmbedder is a local, deterministic representation: source identifiers
// are split, stemmed and hashed into a fixed number of buckets weighted by
// sublinear term frequency. It needs no corpus statistics, so a file's
// vectors never change when other files change.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder with dim buckets.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Dimension() int { return e.dim }

func (e *HashEmbedder) Model() string { return fmt.Sprintf("hash-v1-%d", e.dim) }

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	counts := make(map[string]int)
	for _, tok := range Tokenize(text) {
		counts[tok]++
	}

	v := make([]float32, e.dim)
	for tok, n := range counts {
		h := fnv.New64a()
		h.Write([]byte(tok))
		v[h.Sum64()%uint64(e.dim)] += float32(1 + math.Log(float64(n)))
	}
	normalize(v)
	return v
}

// Tokenize splits text into lowercase, stemmed terms. Identifiers are broken
// at case changes, underscores and digits so handleError, handle_error and
// HANDLE_ERROR yield the same terms.
func Tokenize(text string) []string {
	var out []string
	for _, part := range Words(text) {
		if len(part) < 2 || stopWords[part] || isNumber(part) {
			continue
		}
		out = append(out, stem(part))
	}
	return out
}

// Words splits text into lowercase identifier parts without filtering or
// stemming.
func Words(text string) []string {
	var out []string
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		for _, part := range splitIdentifier(word) {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

func splitIdentifier(s string) []string {
	runes := []rune(s)
	var parts []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := false
		switch {
		case unicode.IsLower(prev) && unicode.IsUpper(cur):
			boundary = true
		case unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			// HTTPServer → HTTP Server
			boundary = true
		case unicode.IsDigit(prev) != unicode.IsDigit(cur):
			boundary = true
		}
		if boundary {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	return append(parts, string(runes[start:]))
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// stem strips common English inflections. handling, handled, handler,
// handles and handle all reduce to "handl".
func stem(w string) string {
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "ing") && len(w) > 5:
		w = w[:len(w)-3]
	case strings.HasSuffix(w, "ed") && len(w) > 4:
		w = w[:len(w)-2]
	case strings.HasSuffix(w, "er") && len(w) > 5:
		w = w[:len(w)-2]
	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w) > 3:
		w = w[:len(w)-1]
	}
	if strings.HasSuffix(w, "e") && len(w) > 4 {
		w = w[:len(w)-1]
	}
	return w
}
