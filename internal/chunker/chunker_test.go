package chunker_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"nexus/internal/chunker"
	"nexus/internal/parser"
	"nexus/internal/parser/languages"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, path, src string) *parser.Tree {
	t.Helper()
	tree, err := parser.New(languages.NewRegistry()).Parse(context.Background(), path, []byte(src))
	require.NoError(t, err)
	return tree
}

func longMethod(name string) string {
	return "    fn " + name + "(&self) -> String {\n        let s = \"" +
		strings.Repeat("x", 300) + "\";\n        s.to_string()\n    }\n"
}

func TestChunkRustDeclarations(t *testing.T) {
	src := "// Handles errors.\n" +
		"fn handle_error(e: &str) -> String {\n    e.to_string()\n}\n\n" +
		"struct Config {\n    name: String,\n}\n\n" +
		"impl Config {\n" + longMethod("render") + "    fn small(&self) {}\n}\n"

	chunks := chunker.New(chunker.Options{}).Chunk(parse(t, "src/lib.rs", src))
	require.Len(t, chunks, 4)

	fn := chunks[0]
	assert.Equal(t, chunker.KindFunction, fn.Kind)
	assert.Equal(t, "handle_error", fn.Name)
	assert.Equal(t, 0, fn.StartByte, "leading comment is attached")
	assert.True(t, strings.HasPrefix(fn.Content, "// Handles errors.\nfn handle_error"))
	assert.Equal(t, 1, fn.StartLine)
	assert.Equal(t, 4, fn.EndLine)
	assert.Equal(t, "rust", fn.Language)
	assert.Equal(t, "src/lib.rs", fn.Path)

	assert.Equal(t, chunker.KindClass, chunks[1].Kind)
	assert.Equal(t, "Config", chunks[1].Name)

	impl := chunks[2]
	assert.Equal(t, chunker.KindClass, impl.Kind)
	assert.Empty(t, impl.ParentID)

	render := chunks[3]
	assert.Equal(t, "render", render.Name)
	assert.Equal(t, impl.ID, render.ParentID)
	assert.Equal(t, src[render.StartByte:render.EndByte], render.Content)
}

func TestChunkEmptyFileIsWholeFile(t *testing.T) {
	chunks := chunker.New(chunker.Options{}).Chunk(parse(t, "empty.rs", ""))
	require.Len(t, chunks, 1)
	assert.Equal(t, chunker.KindModule, chunks[0].Kind)
	assert.Equal(t, 0, chunks[0].StartByte)
	assert.Equal(t, 0, chunks[0].EndByte)
	assert.Equal(t, chunker.ID("empty.rs", 0, 0, ""), chunks[0].ID)
}

func TestChunkTextFileIsWholeFile(t *testing.T) {
	src := "name: nexus\nversion: 1\n"
	chunks := chunker.New(chunker.Options{}).Chunk(parse(t, "config.yaml", src))
	require.Len(t, chunks, 1)
	assert.Equal(t, chunker.KindModule, chunks[0].Kind)
	assert.Equal(t, src, chunks[0].Content)
	assert.Equal(t, 2, chunks[0].EndLine)
}

func TestChunkFreeStandingComments(t *testing.T) {
	long := "# " + strings.Repeat("long commentary ", 10) + "\n"
	src := long + "\n\ndef run():\n    pass\n\n# short\n"

	chunks := chunker.New(chunker.Options{}).Chunk(parse(t, "run.py", src))
	require.Len(t, chunks, 2)
	assert.Equal(t, chunker.KindComment, chunks[0].Kind)
	assert.Equal(t, chunker.KindFunction, chunks[1].Kind)
	assert.Equal(t, "run", chunks[1].Name)
}

func TestChunkIDsAreStable(t *testing.T) {
	c := chunker.New(chunker.Options{})
	base := "def first():\n    return 1\n"

	a := c.Chunk(parse(t, "m.py", base))
	b := c.Chunk(parse(t, "m.py", base))
	assert.Equal(t, a, b)

	appended := c.Chunk(parse(t, "m.py", base+"\ndef second():\n    return 2\n"))
	require.Len(t, appended, 2)
	assert.Equal(t, a[0].ID, appended[0].ID, "unchanged region keeps its id")

	edited := c.Chunk(parse(t, "m.py", "def first():\n    return 9\n"))
	assert.NotEqual(t, a[0].ID, edited[0].ID)

	moved := c.Chunk(parse(t, "other.py", base))
	assert.NotEqual(t, a[0].ID, moved[0].ID)
}

func TestMinNestedBytesOption(t *testing.T) {
	src := "class A:\n    def m(self):\n        return 1\n"
	tree := parse(t, "a.py", src)

	assert.Len(t, chunker.New(chunker.Options{}).Chunk(tree), 1)

	chunks := chunker.New(chunker.Options{MinNestedBytes: 1}).Chunk(tree)
	require.Len(t, chunks, 2)
	assert.Equal(t, chunks[0].ID, chunks[1].ParentID)
}

func TestRepresentation(t *testing.T) {
	ch := chunker.Chunk{Path: "a.rs", Language: "rust", Kind: chunker.KindFunction, Name: "run", Content: "fn run() {}"}
	assert.Equal(t, "// File: a.rs\n// Language: rust\n// function: run\nfn run() {}", chunker.Representation(ch))

	ch.Content = strings.Repeat("a", 10000)
	assert.Len(t, chunker.Representation(ch), 8192)

	// Three-byte runes straddle the limit; the cut lands on a rune boundary.
	ch.Content = strings.Repeat("世", 4000)
	rep := chunker.Representation(ch)
	assert.True(t, utf8.ValidString(rep))
	assert.LessOrEqual(t, len(rep), 8192)
	assert.Greater(t, len(rep), 8192-utf8.UTFMax)
}
