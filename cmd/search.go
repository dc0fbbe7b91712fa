package cmd

import (
	"fmt"
	"strings"

	"nexus/internal/search"
	"nexus/internal/ui"

	"github.com/spf13/cobra"
)

var flagLimit int

const snippetLines = 3

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search the indexed codebase semantically",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		query := strings.Join(args, " ")

		idx, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close()

		s := search.New(idx.Store(), idx.Embedder(), searchOptions())
		results, err := s.Query(ctx, query, flagLimit)
		if err != nil {
			return err
		}

		out.Header(fmt.Sprintf("Search: %q", query))
		if len(results) == 0 {
			out.Warn("no results")
		}
		for i, r := range results {
			c := r.Chunk
			name := c.Name
			if name == "" {
				name = "(anonymous)"
			}
			fmt.Fprintf(out.Out, "%2d. %s:%d-%d  %s %s  (%.2f)\n", i+1, c.FilePath, c.StartLine, c.EndLine, c.Kind, name, r.Score)
			for _, line := range snippet(c.Content, snippetLines) {
				fmt.Fprintf(out.Out, "      %s\n", ui.Truncate(line, 100))
			}
		}

		if sg, err := s.NewSuggester(ctx); err == nil {
			if alt := sg.Suggest(query); alt != "" {
				out.Status("did you mean %q?", alt)
			}
		}
		return nil
	},
}

// snippet returns the first n non-blank lines of content.
func snippet(content string, n int) []string {
	var lines []string
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, strings.TrimRight(l, " \t\r"))
		if len(lines) == n {
			break
		}
	}
	return lines
}

func init() {
	searchCmd.Flags().IntVarP(&flagLimit, "limit", "n", 10, "maximum number of results")
	rootCmd.AddCommand(searchCmd)
}
