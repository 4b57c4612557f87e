// Package config handles SaladBot configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/saladbot/config.yaml, /etc/saladbot/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "saladbot", "config.yaml"))
	}

	paths = append(paths, "/etc/saladbot/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all SaladBot configuration.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Session  SessionConfig  `yaml:"session"`
	Safety   SafetyConfig   `yaml:"safety"`
	Query    QueryConfig    `yaml:"query"`
	OrderURL string         `yaml:"order_url"`
	LogLevel string         `yaml:"log_level"`
}

// ListenConfig defines the webhook server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// CatalogConfig defines the menu database settings.
type CatalogConfig struct {
	// Path is the SQLite database file holding menu items.
	Path string `yaml:"path"`
}

// OpenAIConfig defines the chat completion provider settings.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	// BaseURL overrides the API endpoint (default: https://api.openai.com).
	// Useful for pointing at a compatible local server in development.
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// Temperature stays at 0 so the model never mixes data across tool
	// results when synthesizing a reply.
	Temperature float64 `yaml:"temperature"`
}

// WhatsAppConfig defines WhatsApp Cloud API settings.
type WhatsAppConfig struct {
	VerifyToken   string        `yaml:"verify_token"`
	AccessToken   string        `yaml:"access_token"`
	PhoneNumberID string        `yaml:"phone_number_id"`
	AppSecret     string        `yaml:"app_secret"`
	APITimeout    time.Duration `yaml:"api_timeout"`
}

// SessionConfig defines per-user session behavior.
type SessionConfig struct {
	// MaxHistory is the maximum stored exchanges per user. Oldest are
	// evicted first once the bound is exceeded.
	MaxHistory int `yaml:"max_history"`
	// HistoryWindow is how many recent messages go into the LLM context.
	HistoryWindow int `yaml:"history_window"`
	// IdleTimeout controls reaper eviction of inactive sessions.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// CategoryTTL is how long a browsed category stays valid as implicit
	// context. Checked lazily on read; no background expiry.
	CategoryTTL time.Duration `yaml:"category_ttl"`
}

// SafetyConfig defines the input safety filter thresholds.
type SafetyConfig struct {
	// MaxInputLength is the sanitizer truncation bound.
	MaxInputLength int `yaml:"max_input_length"`
	// InjectionLengthLimit flags raw inputs longer than this as hostile.
	// Checked against the untouched input, before any truncation.
	InjectionLengthLimit int `yaml:"injection_length_limit"`
}

// QueryConfig defines catalog query limits.
type QueryConfig struct {
	// FetchLimit is rows requested when no exclusions apply.
	FetchLimit int `yaml:"fetch_limit"`
	// FetchLimitExcluding is rows requested when shown-dish exclusions
	// apply, oversized so filtering still leaves enough results.
	FetchLimitExcluding int `yaml:"fetch_limit_excluding"`
	// MaxReturned caps dishes handed to the generator per turn.
	MaxReturned int `yaml:"max_returned"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration. The numeric limits mirror the
// values the bot has run with in production.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Port: 8000},
		Catalog: CatalogConfig{Path: "saladbot.db"},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0,
		},
		WhatsApp: WhatsAppConfig{
			APITimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			MaxHistory:    25,
			HistoryWindow: 40,
			IdleTimeout:   30 * time.Minute,
			CategoryTTL:   10 * time.Minute,
		},
		Safety: SafetyConfig{
			MaxInputLength:       500,
			InjectionLengthLimit: 1000,
		},
		Query: QueryConfig{
			FetchLimit:          5,
			FetchLimitExcluding: 10,
			MaxReturned:         5,
		},
		OrderURL: "https://order.picnicmaadanim.co.il",
	}
}

// Validate reports missing settings that serve cannot run without.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	return nil
}

// ValidateWhatsApp reports missing WhatsApp credentials. Optional in
// development (the ask command works without them) but required for the
// webhook transport.
func (c *Config) ValidateWhatsApp() error {
	if c.WhatsApp.VerifyToken == "" || c.WhatsApp.AccessToken == "" || c.WhatsApp.PhoneNumberID == "" {
		return fmt.Errorf("whatsapp.verify_token, whatsapp.access_token and whatsapp.phone_number_id are required")
	}
	return nil
}
