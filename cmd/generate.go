package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"nexus/internal/prompt"

	"github.com/spf13/cobra"
)

var (
	flagGenOutput   string
	flagGenLanguage string
)

var generateCmd = &cobra.Command{
	Use:   "generate <description...>",
	Short: "Generate code from a natural language description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, err := generateLanguage(flagGenLanguage, flagGenOutput)
		if err != nil {
			return err
		}
		req := prompt.Generate(strings.Join(args, " "), lang)

		if flagGenOutput == "" {
			out.Header("Generate " + prompt.DisplayName(lang))
			_, err := stream(cmd.Context(), req)
			return err
		}
		resp, err := complete(cmd.Context(), req)
		if err != nil {
			return err
		}
		return writeCode(flagGenOutput, resp.Text, lang)
	},
}

// generateLanguage picks the target language: the flag, then the output
// file extension, then an interactive choice.
func generateLanguage(flag, output string) (string, error) {
	if flag != "" {
		lang := prompt.Normalize(flag)
		if lang == "" {
			return "", fmt.Errorf("unknown language %q (supported: %s)", flag, strings.Join(prompt.Languages(), ", "))
		}
		return lang, nil
	}
	if output != "" {
		if lang := prompt.Normalize(strings.TrimPrefix(filepath.Ext(output), ".")); lang != "" {
			return lang, nil
		}
	}
	if !out.Interactive() {
		return "", fmt.Errorf("cannot infer the language; pass --language")
	}
	options := []string{"rust", "python", "typescript", "javascript", "go"}
	i, err := choose("Which programming language?", options, 0)
	if err != nil {
		return "", err
	}
	return options[i], nil
}

func init() {
	generateCmd.Flags().StringVarP(&flagGenOutput, "output", "o", "", "write the generated code to this file")
	generateCmd.Flags().StringVarP(&flagGenLanguage, "language", "l", "", "target language")
	rootCmd.AddCommand(generateCmd)
}
