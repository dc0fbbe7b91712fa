package cmd

import (
	"nexus/internal/prompt"

	"github.com/spf13/cobra"
)

var flagTestOutput string

var testCmd = &cobra.Command{
	Use:   "test <file>",
	Short: "Generate unit tests for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := readSource(args[0])
		if err != nil {
			return err
		}
		req := prompt.Test(f, symbols(cmd.Context(), f))
		if flagTestOutput == "" {
			out.Header("Tests for " + f.Path)
			_, err := stream(cmd.Context(), req)
			return err
		}
		resp, err := complete(cmd.Context(), req)
		if err != nil {
			return err
		}
		return writeCode(flagTestOutput, resp.Text, f.Language)
	},
}

func init() {
	testCmd.Flags().StringVarP(&flagTestOutput, "output", "o", "", "write the generated tests to this file")
	rootCmd.AddCommand(testCmd)
}
