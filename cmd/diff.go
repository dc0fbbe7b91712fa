package cmd

import (
	"os"

	"nexus/internal/gitutil"
	"nexus/internal/prompt"

	"github.com/spf13/cobra"
)

var flagStaged bool

var diffCmd = &cobra.Command{
	Use:   "diff [file]",
	Short: "Explain the current git changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		repo, err := gitutil.Open(ctx, wd)
		if err != nil {
			return err
		}
		var file string
		if len(args) == 1 {
			file = args[0]
		}
		diff, err := repo.Diff(ctx, file, flagStaged)
		if err != nil {
			return err
		}
		if diff == "" {
			out.Warn("no changes to analyze")
			return nil
		}
		out.Header("Diff analysis")
		_, err = stream(ctx, prompt.Diff(gitutil.Truncate(diff, gitutil.MaxDiffBytes), file))
		return err
	},
}

func init() {
	diffCmd.Flags().BoolVarP(&flagStaged, "staged", "s", false, "analyze staged changes only")
	rootCmd.AddCommand(diffCmd)
}
