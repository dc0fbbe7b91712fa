package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"nexus/internal/config"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out.Header("Setup")
		c := *cfg

		providers := []string{config.ProviderClaude, config.ProviderOllama, config.ProviderProxy}
		i, err := choose("Which AI provider do you want to use?", []string{
			"Claude (Anthropic API key)",
			"Local (Ollama, offline)",
			"NEXUS free tier (no key, rate limited)",
		}, 0)
		if err != nil {
			return err
		}
		c.AI.DefaultProvider = providers[i]

		switch c.AI.DefaultProvider {
		case config.ProviderClaude:
			env := c.Provider(config.ProviderClaude).APIKeyEnv
			if os.Getenv(env) == "" {
				out.Warn("%s is not set; export it or add it to .env. Requests fall back to the free tier until then.", env)
			}
		case config.ProviderOllama:
			model, err := readLine("Ollama model", c.Provider(config.ProviderOllama).Model)
			if err != nil {
				return err
			}
			p := c.Provider(config.ProviderOllama)
			p.Model = model
			c.AI.Providers[config.ProviderOllama] = p
			checkOllama(cmd.Context(), model)
		}

		themes := []string{"dark", "light", "auto"}
		t, err := choose("Color theme?", themes, 0)
		if err != nil {
			return err
		}
		c.General.Theme = themes[t]

		e, err := choose("Embeddings for semantic search?", []string{
			"Built-in hashing (no dependencies)",
			"Ollama embedding model",
		}, 0)
		if err != nil {
			return err
		}
		if e == 1 {
			c.Index.Embedding.Backend = "ollama"
			if c.Index.Embedding.Model, err = readLine("Embedding model", "nomic-embed-text"); err != nil {
				return err
			}
			dim, err := readLine("Embedding dimension", "768")
			if err != nil {
				return err
			}
			if c.Index.Embedding.Dimension, err = strconv.Atoi(dim); err != nil {
				return fmt.Errorf("dimension: %w", err)
			}
		} else {
			c.Index.Embedding = config.Default().Index.Embedding
		}

		if err := c.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfgPath, &c); err != nil {
			return err
		}
		out.Success("Saved %s", cfgPath)
		out.Status("next: run 'nexus index' in your repository, then 'nexus ask' or just 'nexus'")
		return nil
	},
}

func checkOllama(ctx context.Context, model string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := newOllama(model).EnsureModel(ctx); err != nil {
		out.Warn("ollama: %v (start it with 'ollama serve' and run 'ollama pull %s')", err, model)
		return
	}
	out.Success("Ollama has %s", model)
}

func init() {
	rootCmd.AddCommand(initCmd)
}
