// Package config loads the nexus YAML configuration and applies environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider names used as keys under ai.providers.
const (
	ProviderClaude = "claude"
	ProviderProxy  = "proxy"
	ProviderOllama = "ollama"
)

// ProviderConfig configures one backend.
type ProviderConfig struct {
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	Model     string `yaml:"model,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`
}

// RetryConfig bounds provider retries.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// AIConfig selects and configures providers.
type AIConfig struct {
	DefaultProvider string                    `yaml:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
	Retry           RetryConfig               `yaml:"retry"`
}

// EmbeddingConfig selects the representation function for the index.
type EmbeddingConfig struct {
	Backend   string `yaml:"backend"` // hash, ollama
	Model     string `yaml:"model,omitempty"`
	Dimension int    `yaml:"dimension,omitempty"`
}

// IndexConfig tunes indexing and search.
type IndexConfig struct {
	ExcludePatterns []string        `yaml:"exclude_patterns"`
	MaxFileSizeKB   int             `yaml:"max_file_size_kb"`
	Workers         int             `yaml:"workers,omitempty"`
	ExactThreshold  int             `yaml:"exact_threshold"`
	Oversample      int             `yaml:"oversample"`
	MinNestedBytes  int             `yaml:"min_nested_bytes"`
	Embedding       EmbeddingConfig `yaml:"embedding"`
}

// GeneralConfig holds presentation settings.
type GeneralConfig struct {
	Theme      string `yaml:"theme"` // dark, light, auto
	AutoUpdate bool   `yaml:"auto_update"`
}

// Config is the root configuration.
type Config struct {
	General GeneralConfig `yaml:"general"`
	AI      AIConfig      `yaml:"ai"`
	Index   IndexConfig   `yaml:"index"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		General: GeneralConfig{Theme: "dark", AutoUpdate: true},
		AI: AIConfig{
			DefaultProvider: ProviderClaude,
			Providers: map[string]ProviderConfig{
				ProviderClaude: {APIKeyEnv: "ANTHROPIC_API_KEY", Model: "claude-sonnet-4-20250514", MaxTokens: 4096},
				ProviderProxy:  {Endpoint: "https://api-nexus.mustafasarac.com"},
				ProviderOllama: {Model: "codellama", Endpoint: "http://localhost:11434"},
			},
			Retry: RetryConfig{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second},
		},
		Index: IndexConfig{
			ExcludePatterns: []string{"node_modules", ".git", "target", "__pycache__", "*.lock"},
			MaxFileSizeKB:   1024,
			ExactThreshold:  20000,
			Oversample:      4,
			MinNestedBytes:  256,
			Embedding:       EmbeddingConfig{Backend: "hash", Dimension: 512},
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/nexus/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "nexus", "config.yaml"), nil
}

// Load reads path. A missing file yields the defaults. Environment
// overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyDefaults(cfg)

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads from DefaultPath.
func LoadDefault() (*Config, string, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Save writes cfg to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadDotEnv loads dir/.env into the process environment without
// overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Validate rejects unknown enumerations.
func (c *Config) Validate() error {
	switch c.AI.DefaultProvider {
	case ProviderClaude, ProviderProxy, ProviderOllama:
	default:
		return fmt.Errorf("ai.default_provider: unknown provider %q (want claude, proxy or ollama)", c.AI.DefaultProvider)
	}
	switch c.General.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("general.theme: unknown theme %q", c.General.Theme)
	}
	switch c.Index.Embedding.Backend {
	case "hash":
	case "ollama":
		if c.Index.Embedding.Model == "" || c.Index.Embedding.Dimension <= 0 {
			return errors.New("index.embedding: the ollama backend needs model and dimension")
		}
	default:
		return fmt.Errorf("index.embedding.backend: unknown backend %q", c.Index.Embedding.Backend)
	}
	return nil
}

// Provider returns the settings for name, or a zero value.
func (c *Config) Provider(name string) ProviderConfig {
	return c.AI.Providers[name]
}

// APIKey resolves the key for name from the environment variable its
// api_key_env names.
func (c *Config) APIKey(name string) string {
	env := c.Provider(name).APIKeyEnv
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

// Routing maps ai.default_provider onto router precedence: claude keeps the
// default order, ollama prefers the local model, proxy disables the direct
// provider.
func (c *Config) Routing() (preferLocal, disableDirect bool) {
	switch c.AI.DefaultProvider {
	case ProviderOllama:
		return true, false
	case ProviderProxy:
		return false, true
	}
	return false, false
}

// MaxFileSize returns index.max_file_size_kb in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Index.MaxFileSizeKB) * 1024
}

// applyDefaults fills provider fields a partial file left empty. Decoding
// replaces whole map entries, so these are not covered by decoding onto
// Default.
func applyDefaults(c *Config) {
	def := Default()
	if c.AI.Providers == nil {
		c.AI.Providers = map[string]ProviderConfig{}
	}
	for name, d := range def.AI.Providers {
		p := c.AI.Providers[name]
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = d.APIKeyEnv
		}
		if p.Model == "" {
			p.Model = d.Model
		}
		if p.Endpoint == "" {
			p.Endpoint = d.Endpoint
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = d.MaxTokens
		}
		c.AI.Providers[name] = p
	}
	if c.AI.Retry.MaxAttempts <= 0 {
		c.AI.Retry.MaxAttempts = def.AI.Retry.MaxAttempts
	}
	if c.Index.MaxFileSizeKB <= 0 {
		c.Index.MaxFileSizeKB = def.Index.MaxFileSizeKB
	}
	if c.Index.Embedding.Backend == "" {
		c.Index.Embedding.Backend = def.Index.Embedding.Backend
	}
	if c.Index.Embedding.Backend == "hash" && c.Index.Embedding.Dimension <= 0 {
		c.Index.Embedding.Dimension = def.Index.Embedding.Dimension
	}
}

// applyEnv applies NEXUS_PROXY_URL, OLLAMA_HOST and OLLAMA_MODEL.
func applyEnv(c *Config) {
	set := func(name string, fn func(*ProviderConfig, string), env string) {
		if v := os.Getenv(env); v != "" {
			p := c.AI.Providers[name]
			fn(&p, v)
			c.AI.Providers[name] = p
		}
	}
	set(ProviderProxy, func(p *ProviderConfig, v string) { p.Endpoint = v }, "NEXUS_PROXY_URL")
	set(ProviderOllama, func(p *ProviderConfig, v string) { p.Endpoint = v }, "OLLAMA_HOST")
	set(ProviderOllama, func(p *ProviderConfig, v string) { p.Model = v }, "OLLAMA_MODEL")
}
