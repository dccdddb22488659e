// Package content cleans up dictated form values with a language model.
//
// Speech recognisers produce "five five five one two three four" for a
// phone number and "john smith" for a name. The [Normalizer] asks an
// [llm.Provider] for the field-appropriate spelling. Whenever the model is
// unavailable or answers with nothing usable, the original value is kept.
package content

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/voicenav/internal/email"
	"github.com/MrWong99/voicenav/pkg/provider/llm"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 200
	defaultTimeout     = 5 * time.Second
	defaultHint        = "text"
)

const systemPrompt = `You are a content normalizer that fixes voice-transcribed text for form fields.

CRITICAL: Return ONLY the corrected content, nothing else. No explanations, no quotes, no markdown.

Common voice transcription issues to fix:
- "at" or "at the rate" -> "@" in emails
- "dot" or "period" -> "." in emails and domains
- "dash" or "hyphen" -> "-"
- "underscore" or "under score" -> "_"
- Remove spaces in emails, phone numbers and structured data
- Fix split domains: "g mail" -> "gmail", "out look" -> "outlook", "hot mail" -> "hotmail", "y ahoo" -> "yahoo"
- Convert spoken numbers to digits for phone fields

Field types and expected formats:
- EMAIL: user@domain.com
- PHONE: digits with optional formatting
- NAME: first letter of each word capitalized
- SEARCH: clean query without filler words like "um", "uh"
- ADDRESS: commas and spaces in the usual places
- MESSAGE: natural text, fix obvious errors only
- COMPANY: business name capitalization
- SUBJECT/TITLE: sentence case, proper punctuation

Examples:
- "john at gmail dot com" -> "john@gmail.com"
- "five five five one two three four" -> "5551234"
- "john smith" -> "John Smith"
- "um laptops under five hundred" -> "laptops under 500"

Preserve the original meaning and intent.`

// junkRe matches output with no letters, digits or email punctuation.
var junkRe = regexp.MustCompile(`^[^\p{L}\p{N}@._-]+$`)

// Result is the outcome of one normalization.
type Result struct {
	OriginalValue   string `json:"originalValue"`
	NormalizedValue string `json:"normalizedValue"`
	FieldHint       string `json:"fieldHint"`
	Changed         bool   `json:"changed"`
}

// Option configures a [Normalizer].
type Option func(*Normalizer)

// WithTemperature sets the sampling temperature. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(n *Normalizer) { n.temperature = temp }
}

// WithTimeout bounds a single model call. Default: 5s.
func WithTimeout(d time.Duration) Option {
	return func(n *Normalizer) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// Normalizer is safe for concurrent use. Identical concurrent requests
// share one model call.
type Normalizer struct {
	llm         llm.Provider
	temperature float64
	timeout     time.Duration
	group       singleflight.Group
}

// New returns a [Normalizer] backed by provider. A nil provider makes every
// call a pass-through.
func New(provider llm.Provider, opts ...Option) *Normalizer {
	n := &Normalizer{
		llm:         provider,
		temperature: defaultTemperature,
		timeout:     defaultTimeout,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize returns the cleaned value for a field of kind hint. transcript
// is the full utterance the value came from and may be empty.
//
// The returned Result is always usable: on a model failure it carries the
// original value and the error is returned alongside for logging.
func (n *Normalizer) Normalize(ctx context.Context, value, hint, transcript string) (Result, error) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		hint = defaultHint
	}
	res := Result{OriginalValue: value, NormalizedValue: value, FieldHint: hint}
	if strings.TrimSpace(value) == "" {
		return res, nil
	}

	// Emails have a deterministic path; the model is only a fallback.
	if hint == "email" {
		if rebuilt := email.Reconstruct(value); email.Valid(rebuilt) {
			return finish(res, rebuilt), nil
		}
	}
	if n == nil || n.llm == nil {
		return res, nil
	}

	key := hint + "\x00" + transcript + "\x00" + value
	out, err, _ := n.group.Do(key, func() (any, error) {
		return n.complete(ctx, value, hint, transcript)
	})
	if err != nil {
		return res, err
	}
	return finish(res, out.(string)), nil
}

func (n *Normalizer) complete(ctx context.Context, value, hint, transcript string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if transcript == "" {
		transcript = value
	}
	resp, err := n.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  n.temperature,
		MaxTokens:    defaultMaxTokens,
		Messages: []llm.Message{{Role: "user", Content: fmt.Sprintf(
			"Field type: %s\nOriginal transcript: %q\nExtracted value: %q\n\nNormalize this %s content:",
			strings.ToUpper(hint), transcript, value, hint,
		)}},
	})
	if err != nil {
		return "", fmt.Errorf("content: normalize %s: %w", hint, err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}

// finish applies candidate to res unless it is empty or punctuation only.
func finish(res Result, candidate string) Result {
	candidate = strings.Trim(strings.TrimSpace(candidate), "\"`")
	if candidate == "" || junkRe.MatchString(candidate) {
		return res
	}
	res.NormalizedValue = candidate
	res.Changed = candidate != res.OriginalValue
	return res
}
