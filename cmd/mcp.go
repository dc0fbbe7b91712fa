package cmd

import (
	"context"
	"fmt"
	"strings"

	"nexus/internal/index"
	"nexus/internal/search"
	"nexus/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve codebase search tools over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	idx, err := openIndex(cmd.Context())
	if err != nil {
		return err
	}
	defer idx.Close()

	searcher := search.New(idx.Store(), idx.Embedder(), searchOptions())

	s := mcpserver.NewMCPServer("nexus", Version, mcpserver.WithToolCapabilities(false))
	s.AddTool(searchCodebaseTool(), makeSearchHandler(searcher))
	s.AddTool(getFileSummaryTool(), makeFileSummaryHandler(idx.Store()))
	s.AddTool(getProjectOverviewTool(), makeOverviewHandler(idx))
	s.AddTool(listIndexedFilesTool(), makeListFilesHandler(idx.Store()))

	logger.Info("mcp.serve", "root", idx.Root())
	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchCodebaseTool() mcp.Tool {
	return mcp.NewTool("search_codebase",
		mcp.WithDescription("Semantically search the indexed codebase. Returns the most similar code chunks with file paths, line ranges and scores."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or identifier query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of chunks to return (default 10)"),
		),
	)
}

func getFileSummaryTool() mcp.Tool {
	return mcp.NewTool("get_file_summary",
		mcp.WithDescription("Get the summary, language and chunk count of an indexed file."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path relative to the repository root"),
		),
	)
}

func getProjectOverviewTool() mcp.Tool {
	return mcp.NewTool("get_project_overview",
		mcp.WithDescription("Get the architectural overview written by 'nexus index --summarize'."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func listIndexedFilesTool() mcp.Tool {
	return mcp.NewTool("list_indexed_files",
		mcp.WithDescription("List indexed files with language, chunk count and summary snippet."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("language",
			mcp.Description("Optional language filter (e.g. 'go', 'python'). Case-insensitive."),
		),
	)
}

func makeSearchHandler(s *search.Searcher) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		if strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}

		results, err := s.Query(ctx, query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatSearchResults(query, results)), nil
	}
}

func findFile(ctx context.Context, st *store.Store, path string) (*store.FileRecord, error) {
	files, err := st.Files(ctx)
	if err != nil {
		return nil, err
	}
	for i := range files {
		if files[i].Path == path {
			return &files[i], nil
		}
	}
	return nil, nil
}

func makeFileSummaryHandler(st *store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}

		f, err := findFile(ctx, st, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list files failed: %v", err)), nil
		}
		if f == nil {
			return mcp.NewToolResultError(fmt.Sprintf("file %q not found in index; call list_indexed_files to see available paths", path)), nil
		}

		summary := f.Summary
		if summary == "" {
			summary = "(No summary generated yet)"
		}
		text := fmt.Sprintf("## %s\n\n**Language:** %s  \n**Chunks:** %d", f.Path, f.Language, f.Chunks)
		if f.SyntaxErrors > 0 {
			text += fmt.Sprintf("  \n**Syntax errors:** %d", f.SyntaxErrors)
		}
		return mcp.NewToolResultText(text + "\n\n" + summary), nil
	}
}

func makeOverviewHandler(idx *index.Indexer) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		overview := idx.Overview()
		if overview == "" {
			return mcp.NewToolResultText("No overview available yet. Run 'nexus index --summarize' to generate one."), nil
		}
		return mcp.NewToolResultText(overview), nil
	}
}

func makeListFilesHandler(st *store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		langFilter := strings.ToLower(req.GetString("language", ""))

		files, err := st.Files(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list files failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatFileList(files, langFilter)), nil
	}
}

func formatFileList(files []store.FileRecord, langFilter string) string {
	var filtered []store.FileRecord
	for _, f := range files {
		if langFilter == "" || strings.ToLower(f.Language) == langFilter {
			filtered = append(filtered, f)
		}
	}

	var sb strings.Builder
	if langFilter != "" {
		fmt.Fprintf(&sb, "## Indexed files (%d, language: %s)\n\n", len(filtered), langFilter)
	} else {
		fmt.Fprintf(&sb, "## Indexed files (%d)\n\n", len(filtered))
	}
	for _, f := range filtered {
		snippet := f.Summary
		if i := strings.Index(snippet, "\n"); i >= 0 {
			snippet = snippet[:i]
		}
		if len(snippet) > 120 {
			snippet = snippet[:120] + "..."
		}
		if snippet == "" {
			snippet = "(no summary)"
		}
		fmt.Fprintf(&sb, "- **%s** (%s, %d chunks): %s\n", f.Path, f.Language, f.Chunks, snippet)
	}
	return sb.String()
}

func formatSearchResults(query string, results []search.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", query, len(results))
	for i, r := range results {
		c := r.Chunk
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, c.FilePath)
		fmt.Fprintf(&sb, "**Kind:** %s  \n**Name:** %s  \n**Lines:** %d-%d  \n**Score:** %.3f\n\n",
			c.Kind, c.Name, c.StartLine, c.EndLine, r.Score)
		fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", strings.ToLower(c.Language), c.Content)
	}
	return sb.String()
}
