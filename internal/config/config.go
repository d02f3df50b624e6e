// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete nanochat configuration.
type Config struct {
	// API configuration (backend endpoint and credentials)
	API APIConfig `toml:"api"`

	// Chat configuration (generation behavior)
	Chat ChatConfig `toml:"chat"`

	// Storage configuration (database and cache locations)
	Storage StorageConfig `toml:"storage"`

	// UI configuration (terminal rendering)
	UI UIConfig `toml:"ui"`
}

// APIConfig contains backend connection settings.
type APIConfig struct {
	// Key is the bearer token sent with every request
	Key string `toml:"key"`
	// BaseURL is the backend base URL (no trailing slash)
	BaseURL string `toml:"base_url"`
	// TimeoutSecs bounds each API call, including streaming reads
	TimeoutSecs int `toml:"timeout_secs"`
}

// ChatConfig contains generation settings.
type ChatConfig struct {
	// Model is the default chat model identifier
	Model string `toml:"model"`
	// TitleModel is the model used for conversation title generation.
	// Empty means use Model.
	TitleModel string `toml:"title_model"`
	// Stream requests incremental token deltas (on by default)
	Stream bool `toml:"stream"`
	// WebSearchDefault is the web-search toggle applied to new conversations
	WebSearchDefault bool `toml:"web_search_default"`
	// Mode is the default conversation mode: "standard", "create",
	// "explore", "code", "learn"
	Mode string `toml:"mode"`
	// MaxTokens caps generated output (0 = backend default)
	MaxTokens int `toml:"max_tokens"`
}

// StorageConfig contains on-disk data locations.
type StorageConfig struct {
	// DBPath is the SQLite database path (empty = ~/.nanochat/nanochat.db)
	DBPath string `toml:"db_path"`
	// ModelCachePath is the model list cache path (empty = ~/.nanochat/models.json)
	ModelCachePath string `toml:"model_cache_path"`
}

// UIConfig contains terminal rendering settings.
type UIConfig struct {
	// Theme is the markdown rendering style: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// ShowSources displays web-search citations under answers
	ShowSources bool `toml:"show_sources"`
	// ShowThinking displays model reasoning blocks as they stream
	ShowThinking bool `toml:"show_thinking"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Key:         "",
			BaseURL:     "https://openrouter.ai/api",
			TimeoutSecs: 120,
		},
		Chat: ChatConfig{
			Model:            "anthropic/claude-3.5-sonnet",
			TitleModel:       "",
			Stream:           true,
			WebSearchDefault: false,
			Mode:             "standard",
			MaxTokens:        0,
		},
		Storage: StorageConfig{},
		UI: UIConfig{
			Theme:        "dark",
			ShowSources:  true,
			ShowThinking: false,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the nanochat configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".nanochat"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on the config file.
// The file carries the API key, so anything looser than 0600 gets tightened.
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

// Load loads configuration from the default config file, falling back to
// defaults when the file does not exist. Environment overrides are applied
// last, then defaults are filled and the result validated.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path with full
// validation. A missing file is not an error; defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults and resolves
// derived paths.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.TimeoutSecs <= 0 {
		c.API.TimeoutSecs = defaults.API.TimeoutSecs
	}

	if c.Chat.Model == "" {
		c.Chat.Model = defaults.Chat.Model
	}
	if c.Chat.Mode == "" {
		c.Chat.Mode = defaults.Chat.Mode
	}
	if c.Chat.MaxTokens < 0 {
		c.Chat.MaxTokens = 0
	}

	if c.Storage.DBPath == "" {
		if dir, err := Dir(); err == nil {
			c.Storage.DBPath = filepath.Join(dir, "nanochat.db")
		}
	}
	if c.Storage.ModelCachePath == "" {
		if dir, err := Dir(); err == nil {
			c.Storage.ModelCachePath = filepath.Join(dir, "models.json")
		}
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file with 0600
// permissions (the file carries the API key).
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath saves the configuration to a specific TOML file.
func SaveToPath(cfg *Config, path string) error {
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

	fmt.Fprintln(file, "# nanochat configuration file")
	fmt.Fprintln(file, "# Generated by nanochat - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.API.BaseURL != "" {
		if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "api.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.API.BaseURL),
			})
		}
	}

	if c.API.TimeoutSecs <= 0 || c.API.TimeoutSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_secs",
			Message: fmt.Sprintf("must be 1-3600, got %d", c.API.TimeoutSecs),
		})
	}

	if !IsValidMode(c.Chat.Mode) {
		errs = append(errs, ValidationError{
			Field:   "chat.mode",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: %s", c.Chat.Mode, strings.Join(ModeNames(), ", ")),
		})
	}

	if c.Chat.MaxTokens < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.max_tokens",
			Message: "must be non-negative",
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - NANOCHAT_API_KEY: overrides api.key
//   - NANOCHAT_BASE_URL: overrides api.base_url
//   - NANOCHAT_TIMEOUT_SECS: overrides api.timeout_secs
//   - NANOCHAT_MODEL: overrides chat.model
//   - NANOCHAT_TITLE_MODEL: overrides chat.title_model
//   - NANOCHAT_MODE: overrides chat.mode
//   - NANOCHAT_WEB_SEARCH: set to "1" or "true" to default web search on
//   - NANOCHAT_DB_PATH: overrides storage.db_path
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("NANOCHAT_API_KEY"); key != "" {
		c.API.Key = key
	}
	if baseURL := os.Getenv("NANOCHAT_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if secs := os.Getenv("NANOCHAT_TIMEOUT_SECS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			c.API.TimeoutSecs = n
		}
	}
	if model := os.Getenv("NANOCHAT_MODEL"); model != "" {
		c.Chat.Model = model
	}
	if titleModel := os.Getenv("NANOCHAT_TITLE_MODEL"); titleModel != "" {
		c.Chat.TitleModel = titleModel
	}
	if mode := os.Getenv("NANOCHAT_MODE"); mode != "" {
		c.Chat.Mode = mode
	}
	if web := os.Getenv("NANOCHAT_WEB_SEARCH"); web != "" {
		c.Chat.WebSearchDefault = web == "1" || strings.ToLower(web) == "true"
	}
	if dbPath := os.Getenv("NANOCHAT_DB_PATH"); dbPath != "" {
		c.Storage.DBPath = dbPath
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Timeout returns the API timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// TitleModel returns the model used for title generation, falling back to
// the chat model.
func (c *Config) TitleModel() string {
	if c.Chat.TitleModel != "" {
		return c.Chat.TitleModel
	}
	return c.Chat.Model
}

// Clone creates a copy of the configuration. All fields are value types, so
// a shallow copy is a full copy.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance. Loads configuration on
// first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
			cfg.fillDefaults()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}
