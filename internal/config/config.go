// Package config loads and validates docdriver configuration via Viper.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Remote   RemoteConfig   `mapstructure:"remote"`
	Session  SessionConfig  `mapstructure:"session"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Ask      AskConfig      `mapstructure:"ask"`
	Fallback FallbackConfig `mapstructure:"fallback"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Debug    DebugConfig    `mapstructure:"debug"`
}

// RemoteConfig governs the browser and the remote application surface.
type RemoteConfig struct {
	BaseURL              string   `mapstructure:"base_url"`
	UserDataDir          string   `mapstructure:"user_data_dir"`
	UserAgent            string   `mapstructure:"user_agent"`
	Headless             bool     `mapstructure:"headless"`
	LoginPattern         string   `mapstructure:"login_pattern"`
	NavTimeoutSec        int      `mapstructure:"nav_timeout_seconds"`
	StabilizeTimeoutSec  int      `mapstructure:"stabilize_timeout_seconds"`
	GenerationTimeoutSec int      `mapstructure:"generation_timeout_seconds"`
	ContentSelectors     []string `mapstructure:"content_selectors"`
	PromptSelector       string   `mapstructure:"prompt_selector"`
	SubmitSelector       string   `mapstructure:"submit_selector"`
	BusySelector         string   `mapstructure:"busy_selector"`
	ResponseSelector     string   `mapstructure:"response_selector"`
	SourcesToggle        string   `mapstructure:"sources_toggle_selector"`
	SourceEntry          string   `mapstructure:"source_entry_selector"`
}

// SessionConfig bounds session windows.
type SessionConfig struct {
	// Quota is the maximum successful items per session before rotation.
	Quota int `mapstructure:"quota"`
}

// SyncConfig configures the document synchronization workflow.
type SyncConfig struct {
	Manifest        string `mapstructure:"manifest"`
	OutputDir       string `mapstructure:"output_dir"`
	Checkpoint      string `mapstructure:"checkpoint"`
	MinContentChars int    `mapstructure:"min_content_chars"`
}

// AskConfig configures the conversational QA workflow.
type AskConfig struct {
	Input      string `mapstructure:"input"`
	OutputDir  string `mapstructure:"output_dir"`
	Checkpoint string `mapstructure:"checkpoint"`
	ChatPath   string `mapstructure:"chat_path"`
	PaceMs     int    `mapstructure:"pace_ms"`
}

// FallbackConfig configures the structured-query fallback.
type FallbackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ExportPath string `mapstructure:"export_path"`
	TimeoutSec int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DebugConfig controls the local health/metrics listener.
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCDRIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so environment overrides are seen
	// during Unmarshal.
	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.user_data_dir", "")
	v.SetDefault("remote.user_agent", "")
	v.SetDefault("sync.manifest", "")
	v.SetDefault("ask.input", "")
	v.SetDefault("remote.headless", true)
	v.SetDefault("remote.login_pattern", `/(login|signin|accounts)\b`)
	v.SetDefault("remote.nav_timeout_seconds", 45)
	v.SetDefault("remote.stabilize_timeout_seconds", 15)
	v.SetDefault("remote.generation_timeout_seconds", 180)
	v.SetDefault("remote.content_selectors", []string{"main article", "div.document-body", "main"})
	v.SetDefault("remote.prompt_selector", "textarea.chat-input")
	v.SetDefault("remote.submit_selector", "button[type=submit]")
	v.SetDefault("remote.busy_selector", "div.generation-indicator")
	v.SetDefault("remote.response_selector", "div.chat-message.assistant")
	v.SetDefault("remote.sources_toggle_selector", "button.sources-toggle")
	v.SetDefault("remote.source_entry_selector", "li.source-entry")
	v.SetDefault("session.quota", 25)
	v.SetDefault("sync.output_dir", "data/documents")
	v.SetDefault("sync.checkpoint", "data/sync-checkpoint.json")
	v.SetDefault("sync.min_content_chars", 40)
	v.SetDefault("ask.output_dir", "data/answers")
	v.SetDefault("ask.checkpoint", "data/ask-checkpoint.json")
	v.SetDefault("ask.chat_path", "/chat")
	v.SetDefault("ask.pace_ms", 300)
	v.SetDefault("fallback.enabled", true)
	v.SetDefault("fallback.export_path", "/api/documents/%s/export")
	v.SetDefault("fallback.timeout_seconds", 15)
	v.SetDefault("logging.development", true)
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.port", 9090)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if _, err := regexp.Compile(c.Remote.LoginPattern); err != nil {
		return fmt.Errorf("remote.login_pattern: %w", err)
	}
	if c.Session.Quota <= 0 {
		return fmt.Errorf("session.quota must be > 0")
	}
	if c.Remote.NavTimeoutSec <= 0 {
		return fmt.Errorf("remote.nav_timeout_seconds must be > 0")
	}
	if c.Debug.Enabled && c.Debug.Port <= 0 {
		return fmt.Errorf("debug.port must be > 0 when debug is enabled")
	}
	return nil
}

// NavTimeout converts the configured seconds into a duration.
func (c RemoteConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// StabilizeTimeout converts the configured seconds into a duration.
func (c RemoteConfig) StabilizeTimeout() time.Duration {
	return time.Duration(c.StabilizeTimeoutSec) * time.Second
}

// GenerationTimeout converts the configured seconds into a duration.
func (c RemoteConfig) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSec) * time.Second
}

// Timeout converts the configured seconds into a duration.
func (c FallbackConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Pace converts the configured pacing into a duration.
func (c AskConfig) Pace() time.Duration {
	return time.Duration(c.PaceMs) * time.Millisecond
}
