package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"nexus/internal/parser"
)

const (
	// DefaultMinNestedBytes is the smallest nested function that is emitted
	// as its own chunk.
	DefaultMinNestedBytes = 256
	// DefaultMinCommentBytes is the smallest free-standing comment run that
	// is emitted as a comment chunk.
	DefaultMinCommentBytes = 120

	// maxRepresentationBytes caps the text handed to the embedder.
	maxRepresentationBytes = 8192
)

// Kind is the chunk classification.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindModule   Kind = "module"
	KindComment  Kind = "comment"
)

// Chunk is a retrievable unit of source with content-addressed identity.
type Chunk struct {
	ID        string
	ParentID  string
	Path      string
	Language  string
	Name      string
	Kind      Kind
	StartByte int
	EndByte   int
	StartLine int
	EndLine   int
	Content   string
}

// Options tune chunk extraction.
type Options struct {
	MinNestedBytes  int
	MinCommentBytes int
}

// Chunker slices parse trees into chunks.
type Chunker struct {
	opts Options
}

// New creates a chunker. Zero option values take their defaults.
func New(opts Options) *Chunker {
	if opts.MinNestedBytes <= 0 {
		opts.MinNestedBytes = DefaultMinNestedBytes
	}
	if opts.MinCommentBytes <= 0 {
		opts.MinCommentBytes = DefaultMinCommentBytes
	}
	return &Chunker{opts: opts}
}

// Chunk returns the chunks of tree ordered by start byte. The output depends
// only on the tree's path and source bytes.
func (c *Chunker) Chunk(tree *parser.Tree) []Chunk {
	if tree == nil || tree.Root == nil {
		return nil
	}

	var chunks []Chunk
	var comments []*parser.Node
	declarations := 0

	flushComments := func() {
		if len(comments) == 0 {
			return
		}
		start, end := comments[0].StartByte, comments[len(comments)-1].EndByte
		if int(end-start) >= c.opts.MinCommentBytes {
			chunks = append(chunks, c.newChunk(tree, KindComment, "", start, end, ""))
		}
		comments = nil
	}

	for _, n := range topLevel(tree.Root) {
		switch n.Kind {
		case parser.KindComment:
			if len(comments) > 0 && !adjacent(tree.Source, comments[len(comments)-1].EndByte, n.StartByte) {
				flushComments()
			}
			comments = append(comments, n)

		case parser.KindFunction, parser.KindClass:
			start := n.StartByte
			if len(comments) > 0 && adjacent(tree.Source, comments[len(comments)-1].EndByte, n.StartByte) {
				start = comments[0].StartByte
				comments = nil
			} else {
				flushComments()
			}
			top := c.newChunk(tree, kindOf(n), n.Name, start, n.EndByte, "")
			chunks = append(chunks, top)
			chunks = append(chunks, c.nested(tree, n, top.ID)...)
			declarations++

		default:
			flushComments()
		}
	}
	flushComments()

	if declarations == 0 {
		return []Chunk{c.newChunk(tree, KindModule, "", 0, uint32(len(tree.Source)), "")}
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].StartByte != chunks[j].StartByte {
			return chunks[i].StartByte < chunks[j].StartByte
		}
		return chunks[i].EndByte > chunks[j].EndByte
	})
	return chunks
}

// nested emits the sufficiently large functions below n.
func (c *Chunker) nested(tree *parser.Tree, n *parser.Node, parentID string) []Chunk {
	var out []Chunk
	for _, child := range n.Children {
		parent := parentID
		if child.Kind == parser.KindFunction && child.Len() >= c.opts.MinNestedBytes {
			ch := c.newChunk(tree, KindFunction, child.Name, child.StartByte, child.EndByte, parentID)
			out = append(out, ch)
			parent = ch.ID
		}
		out = append(out, c.nested(tree, child, parent)...)
	}
	return out
}

func (c *Chunker) newChunk(tree *parser.Tree, kind Kind, name string, start, end uint32, parentID string) Chunk {
	content := string(tree.Source[start:end])
	return Chunk{
		ID:        ID(tree.Path, int(start), int(end), content),
		ParentID:  parentID,
		Path:      tree.Path,
		Language:  tree.Language,
		Name:      name,
		Kind:      kind,
		StartByte: int(start),
		EndByte:   int(end),
		StartLine: lineAt(tree.Source, int(start)),
		EndLine:   endLine(tree.Source, int(start), int(end)),
		Content:   content,
	}
}

// ID derives the content-addressed chunk id from the file path, byte range
// and content.
func ID(path string, start, end int, content string) string {
	contentSum := sha256.Sum256([]byte(content))
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(start)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(end)))
	h.Write([]byte{0})
	h.Write(contentSum[:])
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Representation is the text embedded for a chunk: a small header naming the
// file, language and symbol followed by the source.
func Representation(ch Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// File: %s\n", ch.Path)
	fmt.Fprintf(&b, "// Language: %s\n", ch.Language)
	if ch.Name != "" {
		fmt.Fprintf(&b, "// %s: %s\n", ch.Kind, ch.Name)
	}
	b.WriteString(ch.Content)
	s := b.String()
	if len(s) > maxRepresentationBytes {
		cut := maxRepresentationBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

// topLevel returns the declarations and comments directly below root,
// looking through containers such as namespaces and modules.
func topLevel(root *parser.Node) []*parser.Node {
	var out []*parser.Node
	for _, n := range root.Children {
		if n.Kind == parser.KindContainer {
			out = append(out, topLevel(n)...)
			continue
		}
		out = append(out, n)
	}
	return out
}

func kindOf(n *parser.Node) Kind {
	if n.Kind == parser.KindClass {
		return KindClass
	}
	return KindFunction
}

// adjacent reports whether only whitespace without a blank line separates
// the two offsets.
func adjacent(src []byte, end, start uint32) bool {
	if start < end {
		return false
	}
	gap := src[end:start]
	newlines := 0
	for _, b := range gap {
		switch b {
		case '\n':
			newlines++
		case ' ', '\t', '\r':
		default:
			return false
		}
	}
	return newlines <= 1
}

func lineAt(src []byte, off int) int {
	return strings.Count(string(src[:off]), "\n") + 1
}

// endLine is the line holding the last byte of [start, end).
func endLine(src []byte, start, end int) int {
	if end <= start {
		return lineAt(src, start)
	}
	return lineAt(src, end-1)
}
