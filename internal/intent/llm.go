package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/pkg/provider/llm"
	"go.opentelemetry.io/otel/metric"
)

// ErrBadResponse is returned by [LLMClassifier.Classify] when the model
// answer cannot be turned into a [Result].
var ErrBadResponse = errors.New("intent: malformed llm response")

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 1000
	defaultLLMTimeout  = 8 * time.Second
	maxPromptHistory   = 3
)

const systemPromptTemplate = `You are a voice command classifier for a web page. Analyze the user's spoken command and return the intended action as JSON.

Available actions:
1. scroll: move the page (up, down, top, bottom)
2. click: click buttons, links, tabs, modals
3. fill: fill forms, search, enter text
4. toggle: toggle switches, checkboxes, radio buttons, plan selectors

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "type": "scroll|click|fill|toggle|unknown",
  "confidence": 0.0-1.0,
  "action": {
    "kind": "scroll|click|fill|toggle",
    "direction": "up|down|top|bottom",
    "targetText": "visible text of the element to click",
    "role": "button|link|tab|...",
    "value": "text to enter",
    "fieldHint": "email|name|search|message|...",
    "submit": true|false,
    "target": "element to toggle"
  },
  "reasoning": "brief explanation"
}

Page rules:
- "go back", "previous page" or "return": click the "home" link unless the user is already on the home page (%s); there, scroll to the top.
- "got it" or closing a popup: click "got it".
- Navigating to a page is a click on its link. Known pages (spoken name: page):
%s
Examples:
- "go to the top" -> {"type":"scroll","confidence":0.95,"action":{"kind":"scroll","direction":"top"}}
- "click sign in button" -> {"type":"click","confidence":0.9,"action":{"kind":"click","targetText":"sign in","role":"button"}}
- "search for laptops" -> {"type":"fill","confidence":0.85,"action":{"kind":"fill","value":"laptops","fieldHint":"search","submit":true}}
- "toggle dark mode" -> {"type":"toggle","confidence":0.8,"action":{"kind":"toggle","target":"dark mode"}}
- "turn it off" (after "toggle dark mode") -> {"type":"toggle","confidence":0.85,"action":{"kind":"toggle","target":"dark mode"}}`

// llmResponse is the JSON shape the model is asked for. Some models answer
// with "intent" instead of "type".
type llmResponse struct {
	Type       string  `json:"type"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Action     Action  `json:"action"`
	Reasoning  string  `json:"reasoning"`
}

// LLMOption configures an [LLMClassifier].
type LLMOption func(*LLMClassifier)

// WithTimeout bounds a single classification call. Default: 8s.
func WithTimeout(d time.Duration) LLMOption {
	return func(c *LLMClassifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLLMMetrics records call latency and provider errors on m.
func WithLLMMetrics(m *observe.Metrics) LLMOption {
	return func(c *LLMClassifier) {
		c.metrics = m
	}
}

// WithAliasSource supplies the alias table embedded in the prompt.
// Passing the [PatternClassifier] keeps both classifiers on the same table.
func WithAliasSource(src interface{ Aliases() *Aliases }) LLMOption {
	return func(c *LLMClassifier) {
		c.aliases = src
	}
}

// LLMClassifier classifies with one completion call per transcript. It is
// safe for concurrent use.
type LLMClassifier struct {
	llm     llm.Provider
	name    string
	timeout time.Duration
	metrics *observe.Metrics
	aliases interface{ Aliases() *Aliases }
}

var _ Classifier = (*LLMClassifier)(nil)

// NewLLMClassifier returns an [LLMClassifier] backed by provider. name is
// used as the provider label on metrics.
func NewLLMClassifier(provider llm.Provider, name string, opts ...LLMOption) *LLMClassifier {
	c := &LLMClassifier{
		llm:     provider,
		name:    name,
		timeout: defaultLLMTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify implements [Classifier]. Transport failures, timeouts and
// unusable answers are returned as errors; the caller decides how to fall
// back.
func (c *LLMClassifier) Classify(ctx context.Context, req Request) (res Result, err error) {
	ctx, span := observe.StartSpan(ctx, "intent.llm")
	defer func() { observe.EndSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt:   c.systemPrompt(),
		Messages:       []llm.Message{{Role: "user", Content: userPrompt(req)}},
		Temperature:    defaultTemperature,
		MaxTokens:      defaultMaxTokens,
		ResponseFormat: llm.FormatJSONObject,
	})
	if c.metrics != nil {
		c.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(observe.Attr("purpose", "classify")))
	}
	if err != nil {
		kind := "request"
		if errors.Is(err, context.DeadlineExceeded) {
			kind = "timeout"
		}
		if c.metrics != nil {
			c.metrics.RecordProviderError(ctx, c.name, kind)
		}
		return Result{}, fmt.Errorf("intent: llm classify: %w", err)
	}
	if resp == nil {
		return Result{}, fmt.Errorf("intent: llm classify: %w: empty response", ErrBadResponse)
	}

	res, err = parseResponse(resp.Content)
	if err != nil && c.metrics != nil {
		c.metrics.RecordProviderError(ctx, c.name, "parse")
	}
	return res, err
}

func (c *LLMClassifier) systemPrompt() string {
	var a *Aliases
	if c.aliases != nil {
		a = c.aliases.Aliases()
	}
	if a == nil {
		a = NewAliases(nil)
	}
	var sb strings.Builder
	for _, name := range a.names {
		fmt.Fprintf(&sb, "  - %s: %s\n", name, a.table[name])
	}
	return fmt.Sprintf(systemPromptTemplate, "path / or /index.html", sb.String())
}

func userPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User command: %q", req.Transcript)
	if req.CurrentURL != "" {
		fmt.Fprintf(&sb, "\nCurrent page: %s", req.CurrentURL)
	}
	hist := req.History
	if len(hist) > maxPromptHistory {
		hist = hist[len(hist)-maxPromptHistory:]
	}
	if len(hist) > 0 {
		sb.WriteString("\n\nRecent conversation context:")
		for i, ex := range hist {
			action, _ := json.Marshal(ex.Action)
			fmt.Fprintf(&sb, "\n%d. User said: %q -> Action: %s", i+1, ex.Transcript, action)
		}
		sb.WriteString("\n\nUse this context to resolve pronouns like \"it\", \"that\", \"this\" in the current command.")
	}
	return sb.String()
}

// parseResponse turns model output into a [Result]. The kind must be one of
// the known kinds; confidence is clamped to [0, 1] and the action kind is
// forced to the result kind.
func parseResponse(content string) (Result, error) {
	var r llmResponse
	if err := json.Unmarshal([]byte(stripMarkdown(content)), &r); err != nil {
		return Result{}, fmt.Errorf("intent: parse llm response: %w: %w", ErrBadResponse, err)
	}
	raw := r.Type
	if raw == "" {
		raw = r.Intent
	}
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !kind.Valid() {
		return Result{}, fmt.Errorf("intent: parse llm response: %w: kind %q", ErrBadResponse, raw)
	}
	action := r.Action
	action.Kind = kind
	return Result{
		Kind:       kind,
		Confidence: min(max(r.Confidence, 0), 1),
		Action:     action,
		Source:     SourceLLM,
		Reasoning:  r.Reasoning,
	}, nil
}

// stripMarkdown removes optional ```json fences some models wrap around
// JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
