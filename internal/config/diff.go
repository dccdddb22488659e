package config

import (
	"maps"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be hot-reloaded are tracked individually; anything
// touching the provider chain is reported as RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ThresholdChanged bool
	NewThreshold     float64

	AliasesChanged bool
	NewAliases     map[string]string

	QuietPeriodChanged bool

	// RestartRequired is set when server, provider or subsystem toggles
	// changed. These are logged but not applied live.
	RestartRequired bool
}

// Changed reports whether d contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.ThresholdChanged || d.AliasesChanged ||
		d.QuietPeriodChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Classifier.AcceptThreshold != new.Classifier.AcceptThreshold {
		d.ThresholdChanged = true
		d.NewThreshold = new.Classifier.AcceptThreshold
	}
	if !maps.Equal(old.Navigation.Aliases, new.Navigation.Aliases) {
		d.AliasesChanged = true
		d.NewAliases = maps.Clone(new.Navigation.Aliases)
	}
	if old.Email.QuietPeriod != new.Email.QuietPeriod {
		d.QuietPeriodChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		!providerEqual(old.Providers.LLM, new.Providers.LLM) ||
		!providerEqual(old.Providers.Content, new.Providers.Content) ||
		!slices.EqualFunc(old.Providers.LLMFallbacks, new.Providers.LLMFallbacks, providerEqual) ||
		old.MCP.IsEnabled() != new.MCP.IsEnabled() ||
		old.Dispatch.IsEnabled() != new.Dispatch.IsEnabled() {
		d.RestartRequired = true
	}

	return d
}

// providerEqual compares the identifying fields of two entries. Options are
// not compared.
func providerEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.Model == b.Model && a.BaseURL == b.BaseURL && a.APIKey == b.APIKey
}
