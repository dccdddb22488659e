package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voicenav/internal/app"
	"github.com/MrWong99/voicenav/internal/config"
	"github.com/MrWong99/voicenav/pkg/provider/llm"
	"github.com/MrWong99/voicenav/pkg/provider/llm/anyllm"
	"github.com/MrWong99/voicenav/pkg/provider/llm/openai"
)

// registerBuiltinProviders registers a factory for every known LLM provider
// name from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// openai talks to the API directly so the JSON response format and
	// organization header are available.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if d, err := time.ParseDuration(optString(entry.Options, "timeout")); err == nil && d > 0 {
			opts = append(opts, openai.WithTimeout(d))
		}
		p, err := openai.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	// anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile all
	// share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := anyllm.New("ollama", entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	for _, name := range reg.LLMNames() {
		slog.Debug("registered provider", "kind", "llm", "name", name)
	}
}

// buildProviders instantiates the configured LLM chain and content model.
// Names without a registered factory are skipped with a warning so the
// service still starts on the pattern classifier.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	p := &app.Providers{}

	if cfg.Providers.LLM.Name != "" {
		prov, err := create(reg, cfg.Providers.LLM, "llm")
		if err != nil {
			return nil, err
		}
		p.LLM, p.LLMName = prov, cfg.Providers.LLM.Name
	}

	for i, entry := range cfg.Providers.LLMFallbacks {
		prov, err := create(reg, entry, fmt.Sprintf("llm_fallbacks[%d]", i))
		if err != nil {
			return nil, err
		}
		if prov == nil {
			continue
		}
		if p.LLM == nil {
			p.LLM, p.LLMName = prov, entry.Name
			continue
		}
		p.LLMFallbacks = append(p.LLMFallbacks, app.NamedLLM{Name: entry.Name, Provider: prov})
	}

	if cfg.Providers.Content.Name != "" {
		prov, err := create(reg, cfg.Providers.Content, "content")
		if err != nil {
			return nil, err
		}
		p.Content = prov
	}

	return p, nil
}

// create returns a nil provider, not an error, for unregistered names.
func create(reg *config.Registry, entry config.ProviderEntry, slot string) (llm.Provider, error) {
	prov, err := reg.CreateLLM(entry)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("provider not registered, skipping", "slot", slot, "name", entry.Name)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create %s provider %q: %w", slot, entry.Name, err)
	}
	return prov, nil
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
