package cmd

import (
	"os"
	"strings"

	"nexus/internal/gitutil"
	"nexus/internal/prompt"

	"github.com/spf13/cobra"
)

var flagExecute bool

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Write a commit message for the staged changes",
	Args:  cobra.NoArgs,
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
		diff, files, err := repo.StagedDiff(ctx)
		if err != nil {
			return err
		}
		out.Status("%d file(s) staged", len(files))

		resp, err := complete(ctx, prompt.Commit(gitutil.Truncate(diff, gitutil.MaxDiffBytes), files))
		if err != nil {
			return err
		}
		msg := commitMessage(resp.Text)

		out.Header("Commit message")
		out.Markdown(msg)
		if !flagExecute {
			out.Status("run 'nexus commit --execute' to commit with this message")
			return nil
		}
		if _, err := repo.Commit(ctx, msg); err != nil {
			return err
		}
		out.Success("Committed")
		return nil
	},
}

// commitMessage strips a code fence the model may have wrapped the
// message in.
func commitMessage(text string) string {
	msg := strings.TrimSpace(text)
	if strings.Contains(msg, "```") {
		msg = strings.TrimSpace(prompt.ExtractCode(msg, ""))
	}
	return msg
}

func init() {
	commitCmd.Flags().BoolVarP(&flagExecute, "execute", "x", false, "run git commit with the generated message")
	rootCmd.AddCommand(commitCmd)
}
