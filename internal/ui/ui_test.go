package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorLine(t *testing.T) {
	var out, errOut bytes.Buffer
	p := NewPlain(&out, &errOut)

	p.Error("no_provider_available", "no provider could serve the request", "set ANTHROPIC_API_KEY or check network")
	assert.Equal(t, "error[no_provider_available]: no provider could serve the request\nhint: set ANTHROPIC_API_KEY or check network\n", errOut.String())
	assert.Empty(t, out.String())

	errOut.Reset()
	p.Error("io", "disk full", "")
	assert.Equal(t, "error[io]: disk full\n", errOut.String())
}

func TestPlainOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	p := NewPlain(&out, &errOut)
	assert.False(t, p.Interactive())

	p.Header("Search")
	p.Success("indexed %d files", 3)
	p.Markdown("# Title\n\nbody\n")
	p.Field("Files", 3)
	assert.Equal(t, "== Search ==\n✓ indexed 3 files\n# Title\n\nbody\n  Files:       3\n", out.String())

	p.Warn("slow")
	assert.Equal(t, "warning: slow\n", errOut.String())

	bar := p.Progress(0, "indexing")
	assert.NoError(t, bar.Add(1))
	assert.NoError(t, bar.Finish())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
	assert.Equal(t, "é", Truncate("éa", 1))
}
