package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/voicenav/internal/app"
	"github.com/MrWong99/voicenav/internal/config"
	"github.com/MrWong99/voicenav/pkg/provider/llm"
	llmmock "github.com/MrWong99/voicenav/pkg/provider/llm/mock"
)

// execute runs the root command with args. Commands share package-level
// flag state, so these tests do not run in parallel.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestEmailCommand(t *testing.T) {
	out, err := execute(t, "email", "my", "email", "is", "john", "at", "gmail", "dot", "com")
	if err != nil {
		t.Fatalf("email: %v", err)
	}
	if got := strings.TrimSpace(out); got != "john@gmail.com" {
		t.Errorf("output = %q, want john@gmail.com", got)
	}

	if _, err := execute(t, "email", "hello", "there"); err == nil {
		t.Error("expected an error for a non-email phrase")
	}
}

func TestClassifyCommand_PatternsOnly(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")
	out, err := execute(t, "classify", "--config", missing, "--patterns-only", "scroll", "to", "the", "top")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	var res struct {
		Intent string `json:"intent"`
		Source string `json:"source"`
		Action struct {
			Direction string `json:"direction"`
		} `json:"action"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Intent != "scroll" || res.Source != "pattern" || res.Action.Direction != "top" {
		t.Errorf("result = %+v", res)
	}
}

func TestBuildProviders(t *testing.T) {
	primary := &llmmock.Provider{}
	backup := &llmmock.Provider{}
	reg := config.NewRegistry()
	reg.RegisterLLM("openai", func(config.ProviderEntry) (llm.Provider, error) { return primary, nil })
	reg.RegisterLLM("ollama", func(config.ProviderEntry) (llm.Provider, error) { return backup, nil })

	tests := []struct {
		name          string
		providers     config.ProvidersConfig
		wantName      string
		wantFallbacks int
		wantContent   bool
	}{
		{
			name: "primary with fallback and content",
			providers: config.ProvidersConfig{
				LLM:          config.ProviderEntry{Name: "openai", Model: "gpt-4o-mini"},
				LLMFallbacks: []config.ProviderEntry{{Name: "ollama", Model: "llama3.1"}},
				Content:      config.ProviderEntry{Name: "ollama", Model: "llama3.1"},
			},
			wantName:      "openai",
			wantFallbacks: 1,
			wantContent:   true,
		},
		{
			name: "unregistered primary promotes first fallback",
			providers: config.ProvidersConfig{
				LLM:          config.ProviderEntry{Name: "mistral", Model: "small"},
				LLMFallbacks: []config.ProviderEntry{{Name: "ollama", Model: "llama3.1"}},
			},
			wantName: "ollama",
		},
		{
			name: "nothing configured",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := buildProviders(&config.Config{Providers: tt.providers}, reg)
			if err != nil {
				t.Fatalf("buildProviders: %v", err)
			}
			if tt.wantName == "" {
				if p.LLM != nil {
					t.Errorf("LLM = %v, want nil", p.LLM)
				}
				return
			}
			if p.LLM == nil || p.LLMName != tt.wantName {
				t.Errorf("LLM name = %q, want %q", p.LLMName, tt.wantName)
			}
			if len(p.LLMFallbacks) != tt.wantFallbacks {
				t.Errorf("fallbacks = %d, want %d", len(p.LLMFallbacks), tt.wantFallbacks)
			}
			if (p.Content != nil) != tt.wantContent {
				t.Errorf("content set = %v, want %v", p.Content != nil, tt.wantContent)
			}
		})
	}
}

func TestPrintStartupSummary(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader("providers:\n  llm:\n    name: openai\n    model: gpt-4o-mini\n"))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	printStartupSummary(&buf, cfg, &app.Providers{})
	out := buf.String()
	for _, want := range []string{"openai / gpt-4o-mini", "patterns only", "enabled", ":8080"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
