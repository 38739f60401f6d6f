package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration.
type Config struct {
	AI     AIConfig     `toml:"ai"`
	Usage  UsageConfig  `toml:"usage"`
	Feed   FeedConfig   `toml:"feed"`
	Ledger LedgerConfig `toml:"ledger"`
	Slack  SlackConfig  `toml:"slack"`
	Run    RunConfig    `toml:"run"`
	Server ServerConfig `toml:"server"`
}

// AIConfig holds AI provider settings for relevance classification.
type AIConfig struct {
	Provider string `toml:"provider"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
}

// UsageConfig holds settings for the billing/usage data source.
type UsageConfig struct {
	Endpoint string `toml:"endpoint"`
	APIToken string `toml:"api_token"`
	// Scope is either "account" (the current account only) or
	// "consolidated" (all accounts under a consolidated billing group).
	Scope string `toml:"scope"`
	// WindowDays is the trailing window over which a service counts as
	// in use.
	WindowDays int `toml:"window_days"`
}

// FeedConfig holds announcement feed settings.
type FeedConfig struct {
	URL      string `toml:"url"`
	DaysBack int    `toml:"days_back"`
	// FetchFullContent fetches the announcement page body for entries
	// whose feed summary is empty, to give the classifier more context.
	FetchFullContent bool `toml:"fetch_full_content"`
}

// LedgerConfig holds dedup ledger settings.
type LedgerConfig struct {
	Path string `toml:"path"`
	// NoHistory disables the ledger entirely: nothing is ever seen and
	// nothing is recorded.
	NoHistory bool `toml:"no_history"`
}

// SlackConfig holds Slack notification settings.
type SlackConfig struct {
	Enabled bool   `toml:"enabled"`
	Token   string `toml:"token"`
	Channel string `toml:"channel"`
}

// RunConfig holds pipeline execution settings.
type RunConfig struct {
	MaxWorkers         int    `toml:"max_workers"`
	ItemTimeoutSeconds int    `toml:"item_timeout_seconds"`
	Verbose            bool   `toml:"verbose"`
	LogLevel           string `toml:"log_level"`
}

// ServerConfig holds HTTP trigger settings for serve mode.
type ServerConfig struct {
	Port int `toml:"port"`
}

const defaultConfigContent = `[ai]
provider = "anthropic"            # "anthropic" or "openai"
api_key = ""                      # Your API key (or set AI_API_KEY env var)
model = "claude-haiku-4-5"

[usage]
endpoint = ""                     # Base URL of the cost/usage API
api_token = ""                    # Or set USAGE_API_TOKEN env var
scope = "account"                 # "account" or "consolidated"
window_days = 30

[feed]
url = "https://aws.amazon.com/about-aws/whats-new/recent/feed/"
days_back = 7
fetch_full_content = false

[ledger]
path = "data/cloudbrief.db"
no_history = false

[slack]
enabled = false
token = ""                        # Or set SLACK_BOT_TOKEN env var
channel = ""                      # e.g. "#cloud-updates"

[run]
max_workers = 10
item_timeout_seconds = 60
verbose = false
log_level = "INFO"

[server]
port = 8080
`

// Load reads and parses the TOML config from the given path. If the file does
// not exist, it creates a default config file at that path. Environment
// variables override values from the file with highest priority.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
		slog.Info("created default config file", "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Validate explicitly-set values before applying defaults, so that
	// explicitly writing "days_back = 0" is an error rather than silently
	// being replaced with the default.
	if err := validateExplicit(&cfg, md); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// createDefault writes the default config content to the given path,
// creating any parent directories as needed.
func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// validateExplicit checks values that were explicitly set in the TOML file.
// This catches cases like "max_workers = 0" which would otherwise be silently
// replaced by the default value.
func validateExplicit(cfg *Config, md toml.MetaData) error {
	if md.IsDefined("feed", "days_back") {
		if cfg.Feed.DaysBack < 1 {
			return fmt.Errorf("invalid feed.days_back %d: must be >= 1", cfg.Feed.DaysBack)
		}
	}
	if md.IsDefined("usage", "window_days") {
		if cfg.Usage.WindowDays < 1 {
			return fmt.Errorf("invalid usage.window_days %d: must be >= 1", cfg.Usage.WindowDays)
		}
	}
	if md.IsDefined("run", "max_workers") {
		if cfg.Run.MaxWorkers < 1 {
			return fmt.Errorf("invalid run.max_workers %d: must be >= 1", cfg.Run.MaxWorkers)
		}
	}
	if md.IsDefined("server", "port") {
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
		}
	}
	return nil
}

// applyDefaults sets default values for any zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "anthropic"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "claude-haiku-4-5"
	}
	if cfg.Usage.Scope == "" {
		cfg.Usage.Scope = "account"
	}
	if cfg.Usage.WindowDays == 0 {
		cfg.Usage.WindowDays = 30
	}
	if cfg.Feed.URL == "" {
		cfg.Feed.URL = "https://aws.amazon.com/about-aws/whats-new/recent/feed/"
	}
	if cfg.Feed.DaysBack == 0 {
		cfg.Feed.DaysBack = 7
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "data/cloudbrief.db"
	}
	if cfg.Run.MaxWorkers == 0 {
		cfg.Run.MaxWorkers = 10
	}
	if cfg.Run.ItemTimeoutSeconds == 0 {
		cfg.Run.ItemTimeoutSeconds = 60
	}
	if cfg.Run.LogLevel == "" {
		cfg.Run.LogLevel = "INFO"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

// applyEnvOverrides applies environment variable overrides. Environment
// variables take highest priority over config file values.
//
// Priority for ai.api_key:
//  1. AI_API_KEY (generic, highest)
//  2. ANTHROPIC_API_KEY (when provider is "anthropic")
//  3. OPENAI_API_KEY (when provider is "openai")
func applyEnvOverrides(cfg *Config) {
	// Apply provider-specific env var first (lower priority).
	switch cfg.AI.Provider {
	case "anthropic":
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			cfg.AI.APIKey = v
		}
	case "openai":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.AI.APIKey = v
		}
	}

	// AI_API_KEY overrides everything (highest priority).
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}

	if v := os.Getenv("USAGE_API_TOKEN"); v != "" {
		cfg.Usage.APIToken = v
	}
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		cfg.Slack.Token = v
	}
}

// logLevels maps config log level names to slog levels.
var logLevels = map[string]slog.Level{
	"DEBUG":    slog.LevelDebug,
	"INFO":     slog.LevelInfo,
	"WARNING":  slog.LevelWarn,
	"ERROR":    slog.LevelError,
	"CRITICAL": slog.LevelError,
}

// SlogLevel returns the slog level corresponding to run.log_level.
func (c *Config) SlogLevel() slog.Level {
	if lvl, ok := logLevels[strings.ToUpper(c.Run.LogLevel)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// validate checks that configuration values are within acceptable ranges.
func validate(cfg *Config) error {
	switch cfg.AI.Provider {
	case "anthropic", "openai":
		// valid
	default:
		return fmt.Errorf("invalid ai.provider %q: must be \"anthropic\" or \"openai\"", cfg.AI.Provider)
	}

	switch cfg.Usage.Scope {
	case "account", "consolidated":
		// valid
	default:
		return fmt.Errorf("invalid usage.scope %q: must be \"account\" or \"consolidated\"", cfg.Usage.Scope)
	}

	if _, ok := logLevels[strings.ToUpper(cfg.Run.LogLevel)]; !ok {
		return fmt.Errorf("invalid run.log_level %q: must be DEBUG, INFO, WARNING, ERROR, or CRITICAL", cfg.Run.LogLevel)
	}

	if cfg.Slack.Enabled && (cfg.Slack.Token == "" || cfg.Slack.Channel == "") {
		return errors.New("slack.enabled is true but slack.token or slack.channel is missing")
	}

	if cfg.AI.APIKey == "" {
		slog.Warn("ai.api_key is empty: set it in the config file or via AI_API_KEY environment variable")
	}

	return nil
}
