package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidLLMNames lists known LLM provider names.
// Used by [Validate] to warn about unrecognised provider names.
var ValidLLMNames = []string{"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields of cfg with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Classifier.AcceptThreshold == 0 {
		cfg.Classifier.AcceptThreshold = DefaultAcceptThreshold
	}
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = DefaultClassifyTimeout
	}
	if cfg.Session.MaxHistory == 0 {
		cfg.Session.MaxHistory = DefaultMaxHistory
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = DefaultSessionTTL
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = DefaultSweepInterval
	}
	if cfg.Email.QuietPeriod == 0 {
		cfg.Email.QuietPeriod = DefaultQuietPeriod
	}
	if cfg.Defaults.SessionID == "" {
		cfg.Defaults.SessionID = DefaultSessionID
	}
	if cfg.Defaults.URL == "" {
		cfg.Defaults.URL = DefaultURL
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	validateProviderName("providers.llm", cfg.Providers.LLM.Name)
	validateProviderName("providers.content", cfg.Providers.Content.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		prefix := fmt.Sprintf("providers.llm_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName(prefix, fb.Name)
	}
	if cfg.Providers.LLM.Name == "" {
		if len(cfg.Providers.LLMFallbacks) > 0 {
			errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
		} else {
			slog.Warn("no LLM provider configured; intents will be classified by patterns only")
		}
	}

	if t := cfg.Classifier.AcceptThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("classifier.accept_threshold %.2f is out of range (0, 1]", t))
	}
	if cfg.Classifier.Timeout < 0 {
		errs = append(errs, fmt.Errorf("classifier.timeout %s must not be negative", cfg.Classifier.Timeout))
	}

	if cfg.Session.MaxHistory < 1 {
		errs = append(errs, fmt.Errorf("session.max_history %d must be at least 1", cfg.Session.MaxHistory))
	}
	if cfg.Session.TTL < 0 || cfg.Session.SweepInterval < 0 {
		errs = append(errs, errors.New("session.ttl and session.sweep_interval must not be negative"))
	}
	if cfg.Email.QuietPeriod < 0 {
		errs = append(errs, fmt.Errorf("email.quiet_period %s must not be negative", cfg.Email.QuietPeriod))
	}

	for spoken, page := range cfg.Navigation.Aliases {
		if strings.TrimSpace(spoken) == "" || strings.TrimSpace(page) == "" {
			errs = append(errs, fmt.Errorf("navigation.aliases: %q -> %q must both be non-empty", spoken, page))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not a known
// LLM provider.
func validateProviderName(field, name string) {
	if name == "" || slices.Contains(ValidLLMNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidLLMNames,
	)
}
