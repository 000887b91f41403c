// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for rigroute.
//
// Supports TOML configuration with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.rigroute/config.toml
//   - Built-in defaults
package config

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigroute configuration.
type Config struct {
	// General settings
	Version string `toml:"version"`

	// DefaultPolicy names the routing policy preset used when the caller
	// does not supply one: "privacy_first", "cost_first", "quality_first",
	// or "balanced".
	DefaultPolicy string `toml:"default_policy"`

	// Routing configuration
	Routing RoutingConfig `toml:"routing"`

	// Local (Ollama) configuration
	Local LocalConfig `toml:"local"`

	// Cloud provider configuration, keyed by provider name
	Providers map[string]ProviderConfig `toml:"providers"`

	// Batch execution configuration
	Batch BatchConfig `toml:"batch"`

	// History configuration
	History HistoryConfig `toml:"history"`
}

// RoutingConfig contains routing engine configuration.
type RoutingConfig struct {
	// PreferredModel pins model selection to a specific local model when set.
	PreferredModel string `toml:"preferred_model"`
	// WarnCostTier logs a warning when a selection lands at or above this
	// cost tier name (e.g. "PREMIUM"). Empty disables the warning.
	WarnCostTier string `toml:"warn_cost_tier"`
}

// LocalConfig contains local Ollama configuration.
type LocalConfig struct {
	// OllamaURL is the URL of the Ollama server
	OllamaURL string `toml:"ollama_url"`
	// DefaultModel is the fallback model when ranking has nothing better
	DefaultModel string `toml:"default_model"`
}

// ProviderConfig describes one cloud provider endpoint.
type ProviderConfig struct {
	// Enabled controls whether the provider participates in routing
	Enabled bool `toml:"enabled"`
	// BaseURL is the OpenAI-compatible API base URL
	BaseURL string `toml:"base_url"`
	// APIKey authenticates requests; may also come from env
	APIKey string `toml:"api_key"`
	// DefaultModel is the provider's default model
	DefaultModel string `toml:"default_model"`
	// CostTier overrides the provider's built-in cost tier when set.
	// Valid values: "FREE", "CHEAP", "STANDARD", "PREMIUM".
	CostTier string `toml:"cost_tier"`
}

// BatchConfig contains batch execution configuration.
type BatchConfig struct {
	// BaseConcurrency is the minimum worker count before resource discovery
	// raises it. Must be at least 1.
	BaseConcurrency int `toml:"base_concurrency"`
}

// HistoryConfig contains routing history configuration.
type HistoryConfig struct {
	// Enabled controls whether selections are recorded
	Enabled bool `toml:"enabled"`
	// Path is the SQLite database path (empty = ~/.rigroute/history.db)
	Path string `toml:"path"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:       "1.0.0",
		DefaultPolicy: "balanced",

		Routing: RoutingConfig{
			WarnCostTier: "PREMIUM",
		},

		Local: LocalConfig{
			OllamaURL:    "http://127.0.0.1:11434",
			DefaultModel: "llama3.1:8b",
		},

		Providers: map[string]ProviderConfig{
			"openai": {
				Enabled:      false,
				BaseURL:      "https://api.openai.com/v1",
				DefaultModel: "gpt-4o-mini",
			},
			"anthropic": {
				Enabled:      false,
				BaseURL:      "https://api.anthropic.com/v1",
				DefaultModel: "claude-3-5-sonnet",
			},
		},

		Batch: BatchConfig{
			BaseConcurrency: 3,
		},

		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rigroute configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigroute"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file, falling back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := loadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := loadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadTOML loads configuration from a TOML file into cfg.
// SECURITY: Checks and fixes file permissions on load.
func loadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.DefaultPolicy == "" {
		c.DefaultPolicy = defaults.DefaultPolicy
	}
	if c.Local.OllamaURL == "" {
		c.Local.OllamaURL = defaults.Local.OllamaURL
	}
	if c.Local.DefaultModel == "" {
		c.Local.DefaultModel = defaults.Local.DefaultModel
	}
	if c.Batch.BaseConcurrency == 0 {
		c.Batch.BaseConcurrency = defaults.Batch.BaseConcurrency
	}
	if c.Providers == nil {
		c.Providers = defaults.Providers
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# rigroute configuration file")
	fmt.Fprintln(file, "# Generated by rigroute - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported variables:
//   - RIGROUTE_POLICY: overrides default_policy
//   - RIGROUTE_OLLAMA_URL: overrides local.ollama_url
//   - RIGROUTE_OPENAI_KEY: overrides providers.openai.api_key
//   - RIGROUTE_ANTHROPIC_KEY: overrides providers.anthropic.api_key
//   - RIGROUTE_CONCURRENCY: overrides batch.base_concurrency
func (c *Config) ApplyEnvOverrides() {
	if pol := os.Getenv("RIGROUTE_POLICY"); pol != "" {
		c.DefaultPolicy = pol
	}
	if u := os.Getenv("RIGROUTE_OLLAMA_URL"); u != "" {
		c.Local.OllamaURL = u
	}
	if key := os.Getenv("RIGROUTE_OPENAI_KEY"); key != "" {
		c.setProviderKey("openai", key)
	}
	if key := os.Getenv("RIGROUTE_ANTHROPIC_KEY"); key != "" {
		c.setProviderKey("anthropic", key)
	}
	if n := os.Getenv("RIGROUTE_CONCURRENCY"); n != "" {
		if parsed, err := strconv.Atoi(n); err == nil && parsed > 0 {
			c.Batch.BaseConcurrency = parsed
		}
	}
}

func (c *Config) setProviderKey(name, key string) {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	pc := c.Providers[name]
	pc.APIKey = key
	c.Providers[name] = pc
}

// =============================================================================
// VALIDATION
// =============================================================================

var validPolicies = map[string]bool{
	"privacy_first": true,
	"cost_first":    true,
	"quality_first": true,
	"balanced":      true,
}

var validCostTiers = map[string]bool{
	"":         true, // no override
	"FREE":     true,
	"CHEAP":    true,
	"STANDARD": true,
	"PREMIUM":  true,
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !validPolicies[c.DefaultPolicy] {
		return fmt.Errorf("invalid default_policy %q (valid: privacy_first, cost_first, quality_first, balanced)", c.DefaultPolicy)
	}

	if c.Batch.BaseConcurrency < 1 {
		return fmt.Errorf("batch.base_concurrency must be at least 1, got %d", c.Batch.BaseConcurrency)
	}

	if _, err := url.Parse(c.Local.OllamaURL); err != nil {
		return fmt.Errorf("invalid local.ollama_url %q: %w", c.Local.OllamaURL, err)
	}

	for name, pc := range c.Providers {
		tier := strings.ToUpper(strings.TrimSpace(pc.CostTier))
		if !validCostTiers[tier] {
			return fmt.Errorf("provider %s: invalid cost_tier %q (valid: FREE, CHEAP, STANDARD, PREMIUM)", name, pc.CostTier)
		}
		if pc.Enabled && pc.BaseURL == "" {
			return fmt.Errorf("provider %s: enabled but base_url is empty", name)
		}
	}
	return nil
}

// =============================================================================
// FILE WATCHING
// =============================================================================

// Watch watches the config file for changes and logs a notice when it is
// modified. The running process keeps its loaded configuration; a restart
// picks up the new file. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editor rename-and-replace saves are seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Printf("CONFIG: %s changed, restart to apply", path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("CONFIG: watch error: %v", err)
		}
	}
}
