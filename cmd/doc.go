package cmd

import (
	"os"
	"strings"

	"nexus/internal/prompt"

	"github.com/spf13/cobra"
)

var (
	flagDocOutput string
	flagDocInline bool
)

var docCmd = &cobra.Command{
	Use:   "doc <file>",
	Short: "Generate documentation for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := readSource(args[0])
		if err != nil {
			return err
		}
		req := prompt.Doc(f, flagDocInline, symbols(cmd.Context(), f))
		if flagDocOutput == "" {
			out.Header("Docs for " + f.Path)
			_, err := stream(cmd.Context(), req)
			return err
		}
		resp, err := complete(cmd.Context(), req)
		if err != nil {
			return err
		}
		if flagDocInline {
			return writeCode(flagDocOutput, resp.Text, f.Language)
		}
		text := strings.TrimSpace(resp.Text) + "\n"
		if err := os.WriteFile(flagDocOutput, []byte(text), 0o644); err != nil {
			return err
		}
		out.Success("Wrote %s", flagDocOutput)
		return nil
	},
}

func init() {
	docCmd.Flags().StringVarP(&flagDocOutput, "output", "o", "", "write the documentation to this file")
	docCmd.Flags().BoolVar(&flagDocInline, "inline", false, "return the source with doc comments added")
	rootCmd.AddCommand(docCmd)
}
