package cmd

import (
	"os"

	"nexus/internal/config"
	"nexus/internal/rag"
	"nexus/internal/router"
	"nexus/internal/tui"
)

func runTUI() error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}
	r := newRouter("")
	return tui.Run(tui.Config{
		Index:      indexConfig(root, r),
		Search:     searchOptions(),
		K:          10,
		Budget:     rag.DefaultBudget,
		Router:     r,
		Ollama:     newOllama(""),
		LocalModel: cfg.Provider(config.ProviderOllama).Model,
		NewRouter:  func(model string) *router.Router { return newRouter(model) },
	})
}
