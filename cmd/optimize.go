package cmd

import (
	"nexus/internal/prompt"

	"github.com/spf13/cobra"
)

var flagOptimizeFocus string

var optimizeCmd = &cobra.Command{
	Use:   "optimize <file>",
	Short: "Analyze a file for performance improvements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := readSource(args[0])
		if err != nil {
			return err
		}
		out.Header("Optimize " + f.Path)
		_, err = stream(cmd.Context(), prompt.Optimize(f, flagOptimizeFocus))
		return err
	},
}

func init() {
	optimizeCmd.Flags().StringVarP(&flagOptimizeFocus, "focus", "f", "", "focus area (time, memory, io, all)")
	rootCmd.AddCommand(optimizeCmd)
}
