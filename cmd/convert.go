package cmd

import (
	"fmt"
	"strings"

	"nexus/internal/prompt"

	"github.com/spf13/cobra"
)

var (
	flagConvertTo     string
	flagConvertOutput string
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a file to another programming language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to := prompt.Normalize(flagConvertTo)
		if to == "" {
			return fmt.Errorf("unknown language %q (supported: %s)", flagConvertTo, strings.Join(prompt.Languages(), ", "))
		}
		f, err := readSource(args[0])
		if err != nil {
			return err
		}
		req := prompt.Convert(f, to)
		if flagConvertOutput == "" {
			out.Header(fmt.Sprintf("Convert %s to %s", f.Path, prompt.DisplayName(to)))
			_, err := stream(cmd.Context(), req)
			return err
		}
		resp, err := complete(cmd.Context(), req)
		if err != nil {
			return err
		}
		return writeCode(flagConvertOutput, resp.Text, to)
	},
}

func init() {
	convertCmd.Flags().StringVarP(&flagConvertTo, "to", "t", "", "target language")
	convertCmd.Flags().StringVarP(&flagConvertOutput, "output", "o", "", "write the converted code to this file")
	convertCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(convertCmd)
}
