// Package config provides the configuration schema, loader, provider registry
// and hot-reload watcher for the voicenav service.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for the voicenav server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the equivalent [slog.Level]. Unknown levels map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Defaults applied by [ApplyDefaults] when a field is left at its zero value.
const (
	DefaultListenAddr      = ":8080"
	DefaultAcceptThreshold = 0.6
	DefaultClassifyTimeout = 8 * time.Second
	DefaultMaxHistory      = 3
	DefaultSessionTTL      = time.Hour
	DefaultSweepInterval   = 5 * time.Minute
	DefaultQuietPeriod     = 1200 * time.Millisecond
	DefaultSessionID       = "vapi-dev"
	DefaultURL             = "about:blank"
)

// Config is the root configuration structure for voicenav.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Session    SessionConfig    `yaml:"session"`
	Email      EmailConfig      `yaml:"email"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
	Navigation NavigationConfig `yaml:"navigation"`
	MCP        ToggleConfig     `yaml:"mcp"`
	Dispatch   ToggleConfig     `yaml:"dispatch"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig declares the LLM backends. Each entry selects a named
// provider registered in the [Registry].
type ProvidersConfig struct {
	// LLM is the primary classification backend.
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks are tried in order when the primary fails or its circuit
	// breaker is open.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	// Content is an optional separate backend for field value normalization.
	// When unset the classification chain is reused.
	Content ProviderEntry `yaml:"content"`
}

// ProviderEntry is the common configuration block shared by all providers.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the fields above.
	Options map[string]any `yaml:"options"`
}

// ClassifierConfig tunes the intent classifier.
type ClassifierConfig struct {
	// AcceptThreshold is the minimum LLM confidence accepted without
	// consulting the pattern classifier. Range (0, 1].
	AcceptThreshold float64 `yaml:"accept_threshold"`

	// Timeout bounds a single LLM classification call.
	Timeout time.Duration `yaml:"timeout"`

	// DirectNavigation answers commands naming a known page from the alias
	// table without calling the LLM.
	DirectNavigation bool `yaml:"direct_navigation"`
}

// SessionConfig bounds the per-session conversation memory.
type SessionConfig struct {
	MaxHistory    int           `yaml:"max_history"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// EmailConfig configures spoken-email fragment buffering.
type EmailConfig struct {
	// QuietPeriod is how long the buffer waits after the last fragment
	// before flushing an incomplete address.
	QuietPeriod time.Duration `yaml:"quiet_period"`
}

// DefaultsConfig holds the values substituted for placeholder session ids
// and page URLs sent by the voice platform.
type DefaultsConfig struct {
	SessionID string `yaml:"session_id"`
	URL       string `yaml:"url"`
}

// NavigationConfig extends the built-in page alias table. Keys are spoken
// names, values are canonical page names.
type NavigationConfig struct {
	Aliases map[string]string `yaml:"aliases"`
}

// ToggleConfig switches an optional subsystem on or off. Subsystems are
// enabled unless explicitly disabled.
type ToggleConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether the subsystem should run.
func (t ToggleConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}
