package cmd

import (
	"nexus/internal/prompt"

	"github.com/spf13/cobra"
)

var flagRefactorDesc string

var refactorCmd = &cobra.Command{
	Use:   "refactor <paths...>",
	Short: "Refactor code following a description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := readSources(args)
		if err != nil {
			return err
		}
		out.Header("Refactor")
		_, err = stream(cmd.Context(), prompt.Refactor(files, flagRefactorDesc))
		return err
	},
}

func init() {
	refactorCmd.Flags().StringVarP(&flagRefactorDesc, "description", "d", "", "what to change")
	refactorCmd.MarkFlagRequired("description")
	rootCmd.AddCommand(refactorCmd)
}
