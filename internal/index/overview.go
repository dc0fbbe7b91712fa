package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nexus/internal/llm"
	"nexus/internal/store"
)

// maxSummaryInput caps the file content sent for one summary.
const maxSummaryInput = 24_000

const fileSummaryPrompt = `Summarize this source file in 2-3 sentences. What does it define, and what is its role in the project? Be specific about the types, functions, or interfaces it provides. Do not speculate about things not shown in the code.

File: %s
Language: %s

` + "```\n%s\n```"

const overviewPrompt = `You are a senior software architect analyzing a codebase. Based ONLY on the file summaries and symbol names provided below, write a concise architectural overview in Markdown.

Rules:
- ONLY describe what you can directly observe in the provided summaries
- Do NOT guess or infer features that aren't shown
- Describe THIS project, not external tools or services
- Use the file summaries and symbol names to understand purpose

Cover:
1. What the project does (one paragraph, based on the summaries you see)
2. Major components/packages and how they connect (bullet points)
3. Key data flows through the system

Keep it under 300 words. Do not include code snippets.
`

// summarize writes per-file summaries and overview.md. Failures are logged
// and never fail the index run.
func (idx *Indexer) summarize(ctx context.Context, onProgress ProgressFunc) {
	if err := idx.summarizeFiles(ctx, onProgress); err != nil {
		idx.logger.Warn("index.summary.failed", "err", err)
		return
	}
	overview, err := idx.synthesizeOverview(ctx)
	if err != nil {
		idx.logger.Warn("index.overview.failed", "err", err)
		return
	}
	path := filepath.Join(idx.cfg.Dir, OverviewFile)
	if err := os.WriteFile(path, []byte(overview), 0o644); err != nil {
		idx.logger.Warn("index.overview.write_failed", "path", path, "err", err)
	}
}

// summarizeFiles generates summaries for any files that don't have one yet.
func (idx *Indexer) summarizeFiles(ctx context.Context, onProgress ProgressFunc) error {
	files, err := idx.store.Files(ctx)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}

	for i, f := range files {
		if onProgress != nil {
			onProgress("summarizing", i+1, len(files))
		}
		if f.Summary != "" || f.Chunks == 0 {
			continue
		}

		content, err := idx.fileContent(ctx, f.Path)
		if err != nil {
			return fmt.Errorf("get content for %s: %w", f.Path, err)
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		resp, err := idx.cfg.Router.Complete(ctx, llm.Request{
			Op: llm.OpSummarize,
			Messages: []llm.Message{
				{Role: "user", Content: fmt.Sprintf(fileSummaryPrompt, f.Path, f.Language, content)},
			},
			MaxTokens: 300,
		})
		if err != nil {
			return fmt.Errorf("summarize %s: %w", f.Path, err)
		}
		if err := idx.store.SetFileSummary(ctx, f.Path, strings.TrimSpace(resp.Text)); err != nil {
			return fmt.Errorf("save summary for %s: %w", f.Path, err)
		}
		idx.logger.Debug("index.summary.saved", "path", f.Path)
	}
	return nil
}

// fileContent joins a file's top-level chunks in source order.
func (idx *Indexer) fileContent(ctx context.Context, path string) (string, error) {
	chunks, err := idx.store.FileChunks(ctx, path)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, c := range chunks {
		if c.ParentID != "" {
			continue
		}
		if b.Len()+len(c.Content) > maxSummaryInput {
			break
		}
		b.WriteString(c.Content)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// synthesizeOverview combines all file summaries into a project-level architectural overview.
func (idx *Indexer) synthesizeOverview(ctx context.Context) (string, error) {
	files, err := idx.store.Files(ctx)
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no files indexed")
	}

	chunks, err := idx.store.TopChunks(ctx)
	if err != nil {
		return "", fmt.Errorf("list chunks: %w", err)
	}

	// Group named chunks by file path.
	chunksByFile := make(map[string][]store.ChunkSummary)
	for _, c := range chunks {
		chunksByFile[c.FilePath] = append(chunksByFile[c.FilePath], c)
	}

	var b strings.Builder
	b.WriteString(overviewPrompt)
	b.WriteString("\n## Project Structure\n\n")

	for _, f := range files {
		fmt.Fprintf(&b, "### %s  (%s, %d chunks)\n", f.Path, f.Language, f.Chunks)
		if f.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", f.Summary)
		}
		for _, c := range chunksByFile[f.Path] {
			fmt.Fprintf(&b, "  - [%s] %s\n", c.Kind, c.Name)
		}
		b.WriteString("\n")
	}

	resp, err := idx.cfg.Router.Complete(ctx, llm.Request{
		Op:       llm.OpSummarize,
		Messages: []llm.Message{{Role: "user", Content: b.String()}},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Overview returns the stored overview.md, or "" if none was generated.
func (idx *Indexer) Overview() string {
	data, err := os.ReadFile(filepath.Join(idx.cfg.Dir, OverviewFile))
	if err != nil {
		return ""
	}
	return string(data)
}
