package cmd

import (
	"strings"

	"nexus/internal/prompt"

	"github.com/spf13/cobra"
)

var flagReviewFocus string

var reviewCmd = &cobra.Command{
	Use:   "review <paths...>",
	Short: "Review code for bugs, security and style issues",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := readSources(args)
		if err != nil {
			return err
		}
		req, err := prompt.Review(files, flagReviewFocus)
		if err != nil {
			return err
		}
		out.Header("Review")
		out.Status("Reviewing %d file(s), focus: %s", len(files), flagReviewFocus)
		_, err = stream(cmd.Context(), req)
		return err
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&flagReviewFocus, "focus", "f", "all", "review focus ("+strings.Join(prompt.Focuses, ", ")+")")
	rootCmd.AddCommand(reviewCmd)
}
