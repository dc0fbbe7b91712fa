package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"nexus/internal/config"
	"nexus/internal/gitutil"
	"nexus/internal/index"
	"nexus/internal/llm"
	"nexus/internal/router"
	"nexus/internal/search"
	"nexus/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     string
		hintPart string
	}{
		{
			name:     "router",
			err:      fmt.Errorf("ask: %w", &router.RouterError{Hint: "set ANTHROPIC_API_KEY or check network", Last: &llm.ProviderError{Provider: "proxy", Kind: llm.KindUnreachable}}),
			kind:     "no_provider_available",
			hintPart: "ANTHROPIC_API_KEY",
		},
		{
			name:     "provider",
			err:      &llm.ProviderError{Provider: "claude", Kind: llm.KindAuth, Status: 401},
			kind:     "auth",
			hintPart: "API key",
		},
		{
			name:     "corrupt store",
			err:      &index.IndexError{Kind: index.KindCorruptStore},
			kind:     "corrupt_store",
			hintPart: "--force",
		},
		{
			name:     "no index",
			err:      &search.SearchError{Kind: search.StoreUnavailable, Err: errors.New("no index")},
			kind:     "store_unavailable",
			hintPart: "nexus index",
		},
		{
			name: "malformed query",
			err:  &search.SearchError{Kind: search.MalformedQuery},
			kind: "malformed_query",
		},
		{
			name:     "nothing staged",
			err:      gitutil.ErrNothingStaged,
			kind:     "git",
			hintPart: "git add",
		},
		{
			name: "other",
			err:  errors.New("boom"),
			kind: "error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, hint := classify(tt.err)
			assert.Equal(t, tt.kind, kind)
			if tt.hintPart == "" {
				assert.Empty(t, hint)
			} else {
				assert.Contains(t, hint, tt.hintPart)
			}
		})
	}
}

func TestCommitMessage(t *testing.T) {
	assert.Equal(t, "feat: add login", commitMessage("  feat: add login\n"))
	assert.Equal(t, "fix: handle nil config", commitMessage("Here you go:\n```\nfix: handle nil config\n```\n"))
}

func TestSnippet(t *testing.T) {
	got := snippet("\nfunc a() {\n\n  return 1  \n}\nextra\n", 3)
	assert.Equal(t, []string{"func a() {", "  return 1", "}"}, got)
	assert.Empty(t, snippet("   \n\n", 3))
}

func TestGenerateLanguage(t *testing.T) {
	lang, err := generateLanguage("golang", "")
	require.NoError(t, err)
	assert.Equal(t, "go", lang)

	lang, err = generateLanguage("", "out/server.py")
	require.NoError(t, err)
	assert.Equal(t, "python", lang)

	_, err = generateLanguage("cobol", "")
	assert.ErrorContains(t, err, "unknown language")
}

func TestReadSources(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.xyz"), []byte("notes"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "hook.go"), []byte("package hook\n"), 0o644))

	files, err := readSources([]string{dir})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "go", files[0].Language)
	assert.Equal(t, "package main\n", files[0].Content)

	_, err = readSources([]string{filepath.Join(dir, ".git", "missing")})
	assert.Error(t, err)
}

func TestSymbols(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "util.go")
	require.NoError(t, os.WriteFile(path, []byte("package util\n\nfunc Retry() {}\n\ntype Client struct{}\n"), 0o644))

	f, err := readSource(path)
	require.NoError(t, err)
	names := symbols(context.Background(), f)
	assert.Contains(t, names, "function Retry (line 3)")
}

func TestFormatters(t *testing.T) {
	files := []store.FileRecord{
		{Path: "main.go", Language: "go", Chunks: 2, Summary: "Entry point.\nMore."},
		{Path: "app.py", Language: "python", Chunks: 1},
	}
	list := formatFileList(files, "go")
	assert.Contains(t, list, "## Indexed files (1, language: go)")
	assert.Contains(t, list, "- **main.go** (go, 2 chunks): Entry point.\n")
	assert.NotContains(t, list, "app.py")

	assert.Contains(t, formatFileList(files, ""), "(no summary)")

	assert.Equal(t, `No results found for query: "x"`, formatSearchResults("x", nil))
	res := formatSearchResults("retry", []search.Result{{
		Chunk: store.Chunk{FilePath: "util.go", Name: "Retry", Kind: "function", Language: "go", StartLine: 3, EndLine: 9, Content: "func Retry() {}"},
		Score: 0.8123,
	}})
	assert.Contains(t, res, "### Result 1: `util.go`")
	assert.Contains(t, res, "**Lines:** 3-9")
	assert.Contains(t, res, "```go\nfunc Retry() {}\n```")
}

func TestSessionsShareRouter(t *testing.T) {
	cfg = config.Default()
	t.Chdir(t.TempDir())

	first := newSession(context.Background())
	defer first.close()
	second := newSession(context.Background())
	defer second.close()

	require.NotNil(t, first.router)
	assert.Same(t, first.router, second.router)
	assert.Same(t, sharedRouter(), first.router)
	assert.Nil(t, first.searcher, "no index in an empty directory")
}
