package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"nexus/internal/config"
	"nexus/internal/llm"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show version, providers and index status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		out.Header("nexus " + Version)
		out.Field("OS", runtime.GOOS+"/"+runtime.GOARCH)
		out.Field("Go", runtime.Version())
		out.Field("Config", cfgPath)

		out.Header("Providers")
		claude := "not configured"
		if env := cfg.Provider(config.ProviderClaude).APIKeyEnv; os.Getenv(env) != "" {
			claude = fmt.Sprintf("ready (%s)", cfg.Provider(config.ProviderClaude).Model)
		}
		out.Field(llm.ClaudeName, claude)

		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		ollama := "not reachable"
		if o := newOllama(""); o.Reachable(pctx) {
			ollama = fmt.Sprintf("ready (%s)", o.Model())
		}
		out.Field(llm.OllamaName, ollama)
		out.Field(llm.ProxyName, cfg.Provider(config.ProviderProxy).Endpoint)

		r := sharedRouter()
		if name, err := r.Select(ctx, llm.Request{Op: llm.OpChat}); err == nil {
			out.Field("Default", name)
		} else {
			out.Field("Default", "none")
		}

		out.Header("Index")
		idx, err := openIndex(ctx)
		if err != nil {
			out.Field("Status", "not indexed")
			return nil
		}
		defer idx.Close()
		sum, err := idx.Describe(ctx)
		if err != nil {
			return err
		}
		out.Field("Files", sum.Files)
		out.Field("Chunks", sum.Chunks)
		out.Field("Model", sum.Model)
		out.Field("Indexed", sum.IndexedAt)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
