package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"NEXUS_PROXY_URL", "OLLAMA_HOST", "OLLAMA_MODEL"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPartialFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
ai:
  default_provider: ollama
  providers:
    ollama:
      model: deepseek-coder
  retry:
    base_delay: 250ms
index:
  exclude_patterns: [fixtures]
  workers: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.AI.DefaultProvider)
	assert.Equal(t, "deepseek-coder", cfg.Provider(ProviderOllama).Model)
	assert.Equal(t, "http://localhost:11434", cfg.Provider(ProviderOllama).Endpoint, "defaults fill the rest of the entry")
	assert.Equal(t, "ANTHROPIC_API_KEY", cfg.Provider(ProviderClaude).APIKeyEnv)
	assert.Equal(t, 250*time.Millisecond, cfg.AI.Retry.BaseDelay)
	assert.Equal(t, 8*time.Second, cfg.AI.Retry.MaxDelay)
	assert.Equal(t, []string{"fixtures"}, cfg.Index.ExcludePatterns)
	assert.Equal(t, 3, cfg.Index.Workers)
	assert.Equal(t, "hash", cfg.Index.Embedding.Backend)
	assert.Equal(t, int64(1024*1024), cfg.MaxFileSize())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	for name, content := range map[string]string{
		"provider":  "ai:\n  default_provider: gemini\n",
		"theme":     "general:\n  theme: neon\n",
		"backend":   "index:\n  embedding:\n    backend: bert\n",
		"ollama":    "index:\n  embedding:\n    backend: ollama\n",
		"malformed": "ai: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NEXUS_PROXY_URL", "http://127.0.0.1:9999")
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("OLLAMA_MODEL", "qwen2.5-coder")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.Provider(ProviderProxy).Endpoint)
	assert.Equal(t, "http://gpu-box:11434", cfg.Provider(ProviderOllama).Endpoint)
	assert.Equal(t, "qwen2.5-coder", cfg.Provider(ProviderOllama).Model)
}

func TestAPIKeyFromNamedEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MY_CLAUDE_KEY", "sk-test")
	cfg, err := Load(writeConfig(t, "ai:\n  providers:\n    claude:\n      api_key_env: MY_CLAUDE_KEY\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.APIKey(ProviderClaude))
	assert.Equal(t, "", cfg.APIKey(ProviderProxy))
}

func TestRouting(t *testing.T) {
	tests := []struct {
		provider      string
		preferLocal   bool
		disableDirect bool
	}{
		{ProviderClaude, false, false},
		{ProviderOllama, true, false},
		{ProviderProxy, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := Default()
			cfg.AI.DefaultProvider = tt.provider
			preferLocal, disableDirect := cfg.Routing()
			assert.Equal(t, tt.preferLocal, preferLocal)
			assert.Equal(t, tt.disableDirect, disableDirect)
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.General.Theme = "light"
	cfg.AI.Retry.MaxDelay = 3 * time.Second
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NEXUS_TEST_A=from-file\nNEXUS_TEST_B=from-file\n"), 0o644))
	t.Setenv("NEXUS_TEST_A", "from-env")
	t.Setenv("NEXUS_TEST_B", "")
	os.Unsetenv("NEXUS_TEST_B")

	require.NoError(t, LoadDotEnv(dir))
	assert.Equal(t, "from-env", os.Getenv("NEXUS_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("NEXUS_TEST_B"))

	assert.NoError(t, LoadDotEnv(t.TempDir()), "missing .env is ignored")
}
