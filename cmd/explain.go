package cmd

import (
	"strings"

	"nexus/internal/prompt"

	"github.com/spf13/cobra"
)

var flagDepth string

var explainCmd = &cobra.Command{
	Use:   "explain <file>",
	Short: "Explain a source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := readSource(args[0])
		if err != nil {
			return err
		}
		req, err := prompt.Explain(f, flagDepth, symbols(cmd.Context(), f))
		if err != nil {
			return err
		}
		out.Header("Explain " + f.Path)
		_, err = stream(cmd.Context(), req)
		return err
	},
}

func init() {
	explainCmd.Flags().StringVarP(&flagDepth, "depth", "d", "detailed", "explanation depth ("+strings.Join(prompt.Depths, ", ")+")")
	rootCmd.AddCommand(explainCmd)
}
