// Package config provides configuration loading and management for the
// pipeline: provider selection, retry and timeout settings, and storage paths.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Provider name constants.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderTemplate  = "template" // deterministic, no external service
)

// Default model identifiers per provider.
const (
	DefaultOpenAIModel    = "gpt-4.1-mini"
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOllamaModel    = "llama3.1"
)

// Project config constants.
const (
	ProjectConfigDir      = ".ssotgen"
	ProjectConfigFilename = "config.json"
	SchemaVersion         = "1.0"
)

// Secret names resolved via the secrets file or environment.
const (
	SecretOpenAIKey    = "OPENAI_API_KEY"
	SecretAnthropicKey = "ANTHROPIC_API_KEY"
)

// GenerationConfig configures the external generation boundary.
//
//nolint:govet // Logical grouping preferred over field alignment.
type GenerationConfig struct {
	Provider          string  `json:"provider"`            // openai | anthropic | ollama | template
	Model             string  `json:"model"`               // provider-specific model identifier
	OllamaHost        string  `json:"ollama_host"`         // Ollama server URL
	Temperature       float32 `json:"temperature"`         // drafting temperature
	MaxTokens         int     `json:"max_tokens"`          // completion budget per draft
	MaxContextTokens  int     `json:"max_context_tokens"`  // prompt budget enforced before sending
	RequestTimeoutSec int     `json:"request_timeout_sec"` // per-request timeout
	MaxAttempts       int     `json:"max_attempts"`        // bounded retry, including initial attempt
	InitialDelayMS    int     `json:"initial_delay_ms"`    // initial backoff delay
	MaxDelayMS        int     `json:"max_delay_ms"`        // backoff cap
	BackoffFactor     float64 `json:"backoff_factor"`      // exponential backoff multiplier
}

// StorageConfig configures artifact and index storage.
type StorageConfig struct {
	FeaturesDir string `json:"features_dir"` // root for per-feature artifact directories
	IndexPath   string `json:"index_path"`   // SQLite database for the feature index
}

// Config is the main configuration for the pipeline.
type Config struct {
	Version    string           `json:"version"`
	Generation GenerationConfig `json:"generation"`
	Storage    StorageConfig    `json:"storage"`
}

// DefaultConfig returns the configuration used when no config file exists.
// Retry count and backoff are deliberately explicit configuration, not
// inferred (they vary per deployment and provider quota).
func DefaultConfig(projectDir string) *Config {
	return &Config{
		Version: SchemaVersion,
		Generation: GenerationConfig{
			Provider:          ProviderOpenAI,
			Model:             DefaultOpenAIModel,
			OllamaHost:        "http://localhost:11434",
			Temperature:       0.1,
			MaxTokens:         4096,
			MaxContextTokens:  100000,
			RequestTimeoutSec: 60,
			MaxAttempts:       4,
			InitialDelayMS:    500,
			MaxDelayMS:        10000,
			BackoffFactor:     2.0,
		},
		Storage: StorageConfig{
			FeaturesDir: filepath.Join(projectDir, "features"),
			IndexPath:   filepath.Join(projectDir, ProjectConfigDir, "index.db"),
		},
	}
}

// Load reads configuration from <projectDir>/.ssotgen/config.json, filling in
// defaults for anything the file does not set. A missing file is not an
// error; defaults apply.
func Load(projectDir string) (*Config, error) {
	cfg := DefaultConfig(projectDir)

	path := filepath.Join(projectDir, ProjectConfigDir, ProjectConfigFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to <projectDir>/.ssotgen/config.json.
func (c *Config) Save(projectDir string) error {
	dir := filepath.Join(projectDir, ProjectConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, ProjectConfigFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // Config is not secret material
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	g := &c.Generation
	switch g.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderTemplate:
	default:
		return fmt.Errorf("unknown provider %q", g.Provider)
	}
	if g.Model == "" && g.Provider != ProviderTemplate {
		return fmt.Errorf("model must be set for provider %s", g.Provider)
	}
	if g.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if g.RequestTimeoutSec < 1 {
		return fmt.Errorf("request_timeout_sec must be at least 1")
	}
	if g.BackoffFactor < 1.0 {
		return fmt.Errorf("backoff_factor must be at least 1.0")
	}
	if c.Storage.FeaturesDir == "" {
		return fmt.Errorf("features_dir must be set")
	}
	if c.Storage.IndexPath == "" {
		return fmt.Errorf("index_path must be set")
	}
	return nil
}

// APIKeySecret returns the secret name holding the API key for the configured
// provider, or "" when the provider needs no key.
func (c *Config) APIKeySecret() string {
	switch c.Generation.Provider {
	case ProviderOpenAI:
		return SecretOpenAIKey
	case ProviderAnthropic:
		return SecretAnthropicKey
	default:
		return ""
	}
}
