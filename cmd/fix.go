package cmd

import (
	"nexus/internal/prompt"

	"github.com/spf13/cobra"
)

var flagFixError string

var fixCmd = &cobra.Command{
	Use:   "fix <file>",
	Short: "Find and fix bugs in a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := readSource(args[0])
		if err != nil {
			return err
		}
		out.Header("Fix " + f.Path)
		_, err = stream(cmd.Context(), prompt.Fix(f, flagFixError))
		return err
	},
}

func init() {
	fixCmd.Flags().StringVarP(&flagFixError, "error", "e", "", "error message to help diagnose the bug")
	rootCmd.AddCommand(fixCmd)
}
