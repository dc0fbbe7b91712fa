package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/llm"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		text string
		lang string
		want string
	}{
		{"bare code", "  fn main() {}\n\n", "rust", "fn main() {}\n"},
		{"single fence", "Here you go:\n```rust\nfn main() {}\n```\nDone.", "rust", "fn main() {}\n"},
		{"prefers language", "```text\nnotes\n```\n```py\nprint(1)\n```", "python", "print(1)\n"},
		{"falls back to first", "```\na\n```\n```\nb\n```", "go", "a\n"},
		{"unclosed fence", "```go\npackage x\n", "go", "package x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCode(tt.text, tt.lang))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "python", Normalize("py"))
	assert.Equal(t, "csharp", Normalize("C#"))
	assert.Equal(t, "go", Normalize("Golang"))
	assert.Equal(t, "rust", Normalize("rust"))
	assert.Equal(t, "", Normalize("cobol"))
	assert.Equal(t, "kt", Extension("kotlin"))
	assert.Equal(t, "txt", Extension(""))
}

func TestBuildersSetOperation(t *testing.T) {
	f := File{Path: "src/lib.rs", Language: "rust", Content: "fn a() {}"}

	explain, err := Explain(f, "brief", []string{"a"})
	require.NoError(t, err)
	review, err := Review([]File{f}, "security")
	require.NoError(t, err)

	tests := []struct {
		req     llm.Request
		op      llm.Op
		context bool
	}{
		{Generate("a web server", "go"), llm.OpGenerate, false},
		{explain, llm.OpExplain, true},
		{review, llm.OpReview, false},
		{Fix(f, "panic"), llm.OpFix, true},
		{Test(f, nil), llm.OpTest, true},
		{Commit("+x", []string{"M a.go"}), llm.OpCommit, false},
		{Doc(f, true, nil), llm.OpDoc, true},
		{Refactor([]File{f}, "extract helper"), llm.OpRefactor, false},
		{Convert(f, "python"), llm.OpConvert, true},
		{Optimize(f, "memory"), llm.OpOptimize, true},
		{Diff("+x", ""), llm.OpDiff, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.op, tt.req.Op)
			assert.NotEmpty(t, tt.req.System)
			assert.NotEmpty(t, tt.req.Prompt())
			if tt.context {
				assert.Equal(t, f.Content, tt.req.Context)
			}
		})
	}

	assert.Contains(t, review.Prompt(), "fn a() {}")
	assert.Contains(t, Convert(f, "python").System, "Python")
	assert.Contains(t, Optimize(f, "memory").System, "Focus on: memory")
}

func TestUnknownDepthAndFocus(t *testing.T) {
	_, err := Explain(File{}, "shallow", nil)
	assert.Error(t, err)
	_, err = Review(nil, "vibes")
	assert.Error(t, err)
}
