// Package config loads Solari configuration from YAML with environment
// overrides, and hot-reloads the policy table when its file changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all Solari configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Classifier fallback
	Classifier ClassifierConfig `yaml:"classifier"`

	// Intent routing
	Router RouterConfig `yaml:"router"`

	// Flow execution
	Flow FlowConfig `yaml:"flow"`

	// Policy gate
	Policy PolicyConfig `yaml:"policy"`

	// Audit chain persistence
	Audit AuditConfig `yaml:"audit"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ClassifierConfig configures the external model fallback.
type ClassifierConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// RouterConfig configures intent detection.
type RouterConfig struct {
	// TopN caps the ranked intent list.
	TopN int `yaml:"top_n"`

	// MinConfidence is the floor below which a request is unrecognized.
	MinConfidence float64 `yaml:"min_confidence"`
}

// FlowConfig configures the executor.
type FlowConfig struct {
	// ConfirmationTTL bounds how long an issued token stays redeemable.
	ConfirmationTTL string `yaml:"confirmation_ttl"`

	// TokenCapacity bounds outstanding confirmation tokens.
	TokenCapacity int `yaml:"token_capacity"`

	// ToolTimeout bounds each tool invocation.
	ToolTimeout string `yaml:"tool_timeout"`
}

// PolicyConfig configures the policy gate.
type PolicyConfig struct {
	// TablePath points at the YAML policy table. Empty selects the
	// built-in default table.
	TablePath string `yaml:"table_path"`

	// HotReload re-applies the table when the file changes on disk.
	HotReload bool `yaml:"hot_reload"`
}

// AuditConfig configures where the chain is persisted.
type AuditConfig struct {
	// Backend is "memory", "jsonl" or "sqlite".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	Dir        string   `yaml:"dir"`
	Level      string   `yaml:"level"` // debug, info, warn, error
	Debug      bool     `yaml:"debug"`
	JSONFormat bool     `yaml:"json_format"`
	Categories []string `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "solari",
		Version: "1.0.0",

		Classifier: ClassifierConfig{
			Enabled: false,
			Model:   "gemini-2.0-flash",
			Timeout: "10s",
		},

		Router: RouterConfig{
			TopN:          5,
			MinConfidence: 0.5,
		},

		Flow: FlowConfig{
			ConfirmationTTL: "10m",
			TokenCapacity:   512,
			ToolTimeout:     "30s",
		},

		Policy: PolicyConfig{
			HotReload: false,
		},

		Audit: AuditConfig{
			Backend: "sqlite",
			Path:    "data/solari-audit.db",
		},

		Logging: LoggingConfig{
			Dir:   "logs",
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults. A .env
// file next to the config, if present, is loaded first so env overrides can
// come from either place. A missing config file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// .env is optional; godotenv never overrides variables already set.
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Classifier.APIKey = key
		c.Classifier.Enabled = true
	}
	if model := os.Getenv("SOLARI_CLASSIFIER_MODEL"); model != "" {
		c.Classifier.Model = model
	}
	if path := os.Getenv("SOLARI_POLICY_TABLE"); path != "" {
		c.Policy.TablePath = path
	}
	if backend := os.Getenv("SOLARI_AUDIT_BACKEND"); backend != "" {
		c.Audit.Backend = backend
	}
	if path := os.Getenv("SOLARI_AUDIT_PATH"); path != "" {
		c.Audit.Path = path
	}
	if dir := os.Getenv("SOLARI_LOG_DIR"); dir != "" {
		c.Logging.Dir = dir
	}
	if os.Getenv("SOLARI_DEBUG") == "1" {
		c.Logging.Debug = true
		c.Logging.Level = "debug"
	}
}

// Validate rejects configurations that cannot be wired.
func (c *Config) Validate() error {
	switch c.Audit.Backend {
	case "memory", "jsonl", "sqlite":
	default:
		return fmt.Errorf("unknown audit backend %q", c.Audit.Backend)
	}
	if c.Router.TopN <= 0 {
		return fmt.Errorf("router top_n must be positive, got %d", c.Router.TopN)
	}
	if c.Router.MinConfidence < 0 || c.Router.MinConfidence > 1 {
		return fmt.Errorf("router min_confidence must be in [0,1], got %g", c.Router.MinConfidence)
	}
	for _, d := range []struct {
		name, val string
	}{
		{"classifier.timeout", c.Classifier.Timeout},
		{"flow.confirmation_ttl", c.Flow.ConfirmationTTL},
		{"flow.tool_timeout", c.Flow.ToolTimeout},
	} {
		if d.val == "" {
			continue
		}
		if _, err := time.ParseDuration(d.val); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", d.name, err)
		}
	}
	return nil
}

// Duration parses one of the config's duration strings, falling back to def
// when unset or unparseable.
func Duration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}
