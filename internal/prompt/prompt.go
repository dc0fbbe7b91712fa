// Package prompt builds provider-neutral requests for each nexus operation.
package prompt

import (
	"fmt"
	"slices"
	"strings"

	"nexus/internal/llm"
)

// Depths accepted by Explain.
var Depths = []string{"brief", "detailed", "expert"}

// Focuses accepted by Review.
var Focuses = []string{"all", "security", "performance", "style"}

// File is a source file sent as context.
type File struct {
	Path     string
	Language string
	Content  string
}

func user(content string) []llm.Message {
	return []llm.Message{{Role: "user", Content: content}}
}

func fence(b *strings.Builder, f File) {
	fmt.Fprintf(b, "File: %s\n```%s\n%s\n```\n\n", f.Path, f.Language, strings.TrimRight(f.Content, "\n"))
}

// Generate asks for new code from a description.
func Generate(description, language string) llm.Request {
	return llm.Request{
		Op:       llm.OpGenerate,
		System:   generateSystem(DisplayName(language)),
		Messages: user(description),
		Language: language,
	}
}

// Explain asks for an explanation of f at the given depth.
func Explain(f File, depth string, symbols []string) (llm.Request, error) {
	system, ok := explainSystem[depth]
	if !ok {
		return llm.Request{}, fmt.Errorf("unknown depth %q (want %s)", depth, strings.Join(Depths, ", "))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Explain %s.\n", f.Path)
	if len(symbols) > 0 {
		b.WriteString("\nIt defines:\n")
		for _, s := range symbols {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return llm.Request{
		Op:       llm.OpExplain,
		System:   system,
		Messages: user(b.String()),
		Context:  f.Content,
		Language: f.Language,
	}, nil
}

// Review asks for a review of files with the given focus.
func Review(files []File, focus string) (llm.Request, error) {
	system, ok := reviewSystem[focus]
	if !ok {
		return llm.Request{}, fmt.Errorf("unknown focus %q (want %s)", focus, strings.Join(Focuses, ", "))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Review these %d file(s):\n\n", len(files))
	for _, f := range files {
		fence(&b, f)
	}
	return llm.Request{Op: llm.OpReview, System: system, Messages: user(b.String())}, nil
}

// Fix asks for a fix of f, optionally guided by an error message.
func Fix(f File, errMsg string) llm.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Fix the bug in %s.", f.Path)
	if errMsg != "" {
		fmt.Fprintf(&b, "\n\nObserved error:\n```\n%s\n```", errMsg)
	}
	return llm.Request{
		Op:       llm.OpFix,
		System:   fixSystem,
		Messages: user(b.String()),
		Context:  f.Content,
		Language: f.Language,
	}
}

// Test asks for a unit test suite for f.
func Test(f File, symbols []string) llm.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Write tests for %s.", f.Path)
	if len(symbols) > 0 {
		b.WriteString("\n\nTest these symbols:\n")
		for _, s := range symbols {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return llm.Request{
		Op:       llm.OpTest,
		System:   testSystem(DisplayName(f.Language)),
		Messages: user(b.String()),
		Context:  f.Content,
		Language: f.Language,
	}
}

// Commit asks for a commit message for a staged diff.
func Commit(diff string, files []string) llm.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "## Git diff\n\n```diff\n%s\n```\n\n## Changed files\n", diff)
	for _, f := range files {
		fmt.Fprintf(&b, "%s\n", f)
	}
	b.WriteString("\nWrite the commit message.")
	return llm.Request{Op: llm.OpCommit, System: commitSystem, Messages: user(b.String()), MaxTokens: 500}
}

// Doc asks for documentation of f, inline comments or Markdown.
func Doc(f File, inline bool, symbols []string) llm.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Document %s.", f.Path)
	if len(symbols) > 0 {
		b.WriteString("\n\nPublic symbols:\n")
		for _, s := range symbols {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return llm.Request{
		Op:       llm.OpDoc,
		System:   docSystem(DisplayName(f.Language), inline),
		Messages: user(b.String()),
		Context:  f.Content,
		Language: f.Language,
	}
}

// Refactor asks for files to be refactored as described.
func Refactor(files []File, description string) llm.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Refactoring request: %s\n\n", description)
	for _, f := range files {
		fence(&b, f)
	}
	return llm.Request{Op: llm.OpRefactor, System: refactorSystem, Messages: user(b.String())}
}

// Convert asks for f to be translated to language to.
func Convert(f File, to string) llm.Request {
	return llm.Request{
		Op:       llm.OpConvert,
		System:   convertSystem(DisplayName(f.Language), DisplayName(to)),
		Messages: user(fmt.Sprintf("Convert %s to %s.", f.Path, DisplayName(to))),
		Context:  f.Content,
		Language: f.Language,
	}
}

// Optimize asks for optimisation suggestions for f.
func Optimize(f File, focus string) llm.Request {
	return llm.Request{
		Op:       llm.OpOptimize,
		System:   optimizeSystem(DisplayName(f.Language), focus),
		Messages: user(fmt.Sprintf("Optimise %s.", f.Path)),
		Context:  f.Content,
		Language: f.Language,
	}
}

// Diff asks for an explanation of a git diff.
func Diff(diff, file string) llm.Request {
	subject := "the working tree changes"
	if file != "" {
		subject = file
	}
	return llm.Request{
		Op:       llm.OpDiff,
		System:   diffSystem,
		Messages: user(fmt.Sprintf("Explain this diff of %s:\n\n```diff\n%s\n```", subject, diff)),
	}
}

type langInfo struct {
	display string
	ext     string
}

var langs = map[string]langInfo{
	"rust":       {"Rust", "rs"},
	"python":     {"Python", "py"},
	"javascript": {"JavaScript", "js"},
	"typescript": {"TypeScript", "ts"},
	"go":         {"Go", "go"},
	"java":       {"Java", "java"},
	"csharp":     {"C#", "cs"},
	"ruby":       {"Ruby", "rb"},
	"swift":      {"Swift", "swift"},
	"kotlin":     {"Kotlin", "kt"},
	"c":          {"C", "c"},
	"cpp":        {"C++", "cpp"},
	"php":        {"PHP", "php"},
}

var aliases = map[string]string{
	"rs": "rust", "py": "python", "js": "javascript", "ts": "typescript",
	"golang": "go", "cs": "csharp", "c#": "csharp", "rb": "ruby", "kt": "kotlin",
	"c++": "cpp",
}

// Normalize maps a user-supplied language name or extension to the
// canonical name, or "" when unknown.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		n = a
	}
	if _, ok := langs[n]; ok {
		return n
	}
	return ""
}

// Languages lists the canonical language names, sorted.
func Languages() []string {
	out := make([]string, 0, len(langs))
	for k := range langs {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// DisplayName returns the human-readable language name.
func DisplayName(lang string) string {
	if l, ok := langs[lang]; ok {
		return l.display
	}
	if lang == "" {
		return "the appropriate language"
	}
	return lang
}

// Extension returns the file extension for lang without the dot, or "txt".
func Extension(lang string) string {
	if l, ok := langs[lang]; ok {
		return l.ext
	}
	return "txt"
}
