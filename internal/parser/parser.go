package parser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// binarySniffBytes is how much of a file is inspected for NUL bytes.
const binarySniffBytes = 8000

// NodeKind classifies a node for chunking purposes.
type NodeKind int

const (
	KindOther NodeKind = iota
	KindFunction
	KindClass
	KindContainer
	KindComment
	KindError
)

func (k NodeKind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindClass:
		return "class"
	case KindContainer:
		return "container"
	case KindComment:
		return "comment"
	case KindError:
		return "error"
	default:
		return "other"
	}
}

// Node is a structural element of a parsed file. Only nodes relevant to
// chunking are kept; grammar-specific noise is folded away.
type Node struct {
	Type      string
	Kind      NodeKind
	Name      string
	StartByte uint32
	EndByte   uint32
	StartLine int
	EndLine   int
	Children  []*Node
}

// Len returns the byte length of the node.
func (n *Node) Len() int { return int(n.EndByte - n.StartByte) }

// Tree is the result of parsing a single source file. It is discarded after
// chunk extraction.
type Tree struct {
	Path         string
	Language     string
	Source       []byte
	Root         *Node
	SyntaxErrors int
}

// KindAt returns the kind of the innermost node that covers [start, end).
func (t *Tree) KindAt(start, end uint32) NodeKind {
	if t.Root == nil {
		return KindOther
	}
	kind := KindOther
	n := t.Root
	for n != nil {
		if n != t.Root {
			kind = n.Kind
		}
		var next *Node
		for _, c := range n.Children {
			if c.StartByte <= start && end <= c.EndByte {
				next = c
				break
			}
		}
		n = next
	}
	return kind
}

// Walk visits every node in depth-first order. Returning false from fn skips
// the node's children.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		if !fn(n, depth) {
			return
		}
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	if t.Root != nil {
		visit(t.Root, 0)
	}
}

// Grammar is a language variant. Build produces a node tree for src and the
// number of syntax errors encountered while doing so.
type Grammar interface {
	Name() string
	Extensions() []string
	Build(ctx context.Context, src []byte) (root *Node, syntaxErrors int, err error)
}

// Parser dispatches files to grammars by extension.
type Parser struct {
	registry *Registry
}

// New creates a parser backed by the given registry.
func New(r *Registry) *Parser {
	return &Parser{registry: r}
}

// Registry returns the grammar registry.
func (p *Parser) Registry() *Registry { return p.registry }

// Parse builds a tree for src. A tree with syntax errors is still returned
// alongside a *RecoverableSyntaxError. Content that cannot be parsed at all
// yields a *FatalParseError and a nil tree.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*Tree, error) {
	g := p.registry.Lookup(path)
	if g == nil {
		return nil, &FatalParseError{Path: path, Err: ErrUnsupported}
	}
	if isBinary(src) {
		return nil, &FatalParseError{Path: path, Err: ErrBinary}
	}
	if !utf8.Valid(src) {
		return nil, &FatalParseError{Path: path, Err: ErrEncoding}
	}

	root, syntaxErrors, err := g.Build(ctx, src)
	if err != nil {
		return nil, &FatalParseError{Path: path, Err: err}
	}

	tree := &Tree{
		Path:         path,
		Language:     g.Name(),
		Source:       src,
		Root:         root,
		SyntaxErrors: syntaxErrors,
	}
	if syntaxErrors > 0 {
		return tree, &RecoverableSyntaxError{Path: path, Count: syntaxErrors}
	}
	return tree, nil
}

// ParseFile reads root/rel from disk and parses it. The tree path is rel.
func (p *Parser) ParseFile(ctx context.Context, root, rel string) (*Tree, error) {
	src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, &FatalParseError{Path: rel, Err: fmt.Errorf("read: %w", err)}
	}
	return p.Parse(ctx, rel, src)
}

func isBinary(src []byte) bool {
	n := len(src)
	if n > binarySniffBytes {
		n = binarySniffBytes
	}
	return bytes.IndexByte(src[:n], 0) >= 0
}

// lineAt returns the 1-based line number of byte offset off.
func lineAt(src []byte, off int) int {
	if off > len(src) {
		off = len(src)
	}
	return bytes.Count(src[:off], []byte{'\n'}) + 1
}
