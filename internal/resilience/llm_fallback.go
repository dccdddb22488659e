package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/voicenav/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] with failover across multiple LLM
// backends. Each backend has its own circuit breaker.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional LLM provider as a fallback.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy provider.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities returns the capabilities of the primary.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	return f.group.entries[0].value.Capabilities()
}

// Status reports the breaker state of every backend.
func (f *LLMFallback) Status() []EntryStatus {
	return f.group.Status()
}

// Check implements a readiness probe: it fails only when every backend has an
// open breaker. The command path still answers in that case, via the pattern
// classifier, so callers usually treat this as degraded rather than down.
func (f *LLMFallback) Check(context.Context) error {
	if f.group.Available() {
		return nil
	}
	names := make([]error, 0, f.group.Len())
	for _, s := range f.group.Status() {
		names = append(names, fmt.Errorf("%s: %s", s.Name, s.State))
	}
	return fmt.Errorf("resilience: no llm backend available: %w", errors.Join(names...))
}
