package intent_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/voicenav/internal/intent"
	"github.com/MrWong99/voicenav/pkg/provider/llm"
	"github.com/MrWong99/voicenav/pkg/provider/llm/mock"
)

func TestLLMClassifier_Request(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `{"type":"scroll","confidence":0.9,"action":{"kind":"scroll","direction":"top"}}`,
	}}
	c := intent.NewLLMClassifier(provider, "mock", intent.WithAliasSource(intent.NewPatternClassifier(intent.WithAliases(map[string]string{"docs": "resources"}))))

	history := []intent.Exchange{
		{Transcript: "one", Action: intent.Action{Kind: intent.KindScroll, Direction: "down"}},
		{Transcript: "two", Action: intent.Action{Kind: intent.KindScroll, Direction: "down"}},
		{Transcript: "three", Action: intent.Action{Kind: intent.KindScroll, Direction: "down"}},
		{Transcript: "toggle dark mode", Action: intent.Action{Kind: intent.KindToggle, Target: "dark mode"}},
	}
	_, err := c.Classify(context.Background(), intent.Request{
		Transcript: "go to the top", CurrentURL: "https://example.com/pricing", History: history,
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	calls := provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete calls = %d, want 1", len(calls))
	}
	req := calls[0].Req
	if req.Temperature != 0.1 || req.MaxTokens != 1000 || req.ResponseFormat != llm.FormatJSONObject {
		t.Errorf("request params = %v/%d/%q", req.Temperature, req.MaxTokens, req.ResponseFormat)
	}
	for _, want := range []string{"docs: resources", "plans: pricing", `"home"`} {
		if !strings.Contains(req.SystemPrompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	user := req.Messages[0].Content
	for _, want := range []string{`"go to the top"`, "https://example.com/pricing", `"toggle dark mode"`, `"target":"dark mode"`} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q:\n%s", want, user)
		}
	}
	if strings.Contains(user, `"one"`) {
		t.Errorf("user prompt carries more than three exchanges:\n%s", user)
	}
}

func TestLLMClassifier_Parse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		want    intent.Result
		wantErr error
	}{
		{
			name:    "plain",
			content: `{"type":"click","confidence":0.9,"action":{"kind":"click","targetText":"sign in"},"reasoning":"button"}`,
			want: intent.Result{
				Kind: intent.KindClick, Confidence: 0.9, Source: intent.SourceLLM, Reasoning: "button",
				Action: intent.Action{Kind: intent.KindClick, TargetText: "sign in"},
			},
		},
		{
			name:    "fenced with intent key",
			content: "```json\n{\"intent\":\"toggle\",\"confidence\":0.8,\"action\":{\"target\":\"dark mode\"}}\n```",
			want: intent.Result{
				Kind: intent.KindToggle, Confidence: 0.8, Source: intent.SourceLLM,
				Action: intent.Action{Kind: intent.KindToggle, Target: "dark mode"},
			},
		},
		{
			name:    "action kind forced and confidence clamped",
			content: `{"type":"Scroll","confidence":1.7,"action":{"kind":"click","direction":"up"}}`,
			want: intent.Result{
				Kind: intent.KindScroll, Confidence: 1, Source: intent.SourceLLM,
				Action: intent.Action{Kind: intent.KindScroll, Direction: "up"},
			},
		},
		{name: "unknown kind", content: `{"type":"dance","confidence":0.9}`, wantErr: intent.ErrBadResponse},
		{name: "not json", content: `I think you want to scroll`, wantErr: intent.ErrBadResponse},
		{name: "missing kind", content: `{"confidence":0.9}`, wantErr: intent.ErrBadResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := intent.NewLLMClassifier(&mock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: tt.content},
			}, "mock")
			got, err := c.Classify(context.Background(), intent.Request{Transcript: "x"})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLLMClassifier_ProviderError(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection refused")
	c := intent.NewLLMClassifier(&mock.Provider{CompleteErr: boom}, "mock")
	if _, err := c.Classify(context.Background(), intent.Request{Transcript: "x"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}
