// Package intent decides which of the four supported actions a transcript
// asks for.
//
// Two [Classifier] implementations exist: [LLMClassifier] asks a language
// model, [PatternClassifier] walks ordered regular-expression rule tables.
// [Fallback] composes them: the model is authoritative when it answers with
// enough confidence, the pattern tables handle everything else. Pronouns
// ("turn it off") are resolved against per-session [Memory] before either
// classifier runs.
package intent

import (
	"context"
	"time"
)

// Kind is the coarse action category.
type Kind string

const (
	KindScroll  Kind = "scroll"
	KindClick   Kind = "click"
	KindFill    Kind = "fill"
	KindToggle  Kind = "toggle"
	KindUnknown Kind = "unknown"
)

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindScroll, KindClick, KindFill, KindToggle, KindUnknown:
		return true
	}
	return false
}

// Action is the descriptor handed to the dispatch layer. Which fields are
// meaningful depends on Kind: Direction for scroll; TargetText, Selector,
// Nth and Role for click; Value, FieldHint, Selector and Submit for fill;
// Target for toggle.
type Action struct {
	Kind       Kind   `json:"kind"`
	Direction  string `json:"direction,omitempty"`
	TargetText string `json:"targetText,omitempty"`
	Selector   string `json:"selector,omitempty"`
	Nth        int    `json:"nth,omitempty"`
	Role       string `json:"role,omitempty"`
	Value      string `json:"value,omitempty"`
	FieldHint  string `json:"fieldHint,omitempty"`
	Submit     *bool  `json:"submit,omitempty"`
	Target     string `json:"target,omitempty"`
}

// Source names the classifier that produced a [Result].
type Source string

const (
	SourceLLM     Source = "llm"
	SourcePattern Source = "pattern"

	// SourceTool marks actions from direct tool calls that skipped
	// classification.
	SourceTool Source = "tool"
)

// Result is the outcome of one classification. Action.Kind always equals
// Kind.
type Result struct {
	Kind       Kind           `json:"intent"`
	Confidence float64        `json:"confidence"`
	Action     Action         `json:"action"`
	Source     Source         `json:"source"`
	Reasoning  string         `json:"reasoning,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Exchange is one prior (transcript, action) pair of a session.
type Exchange struct {
	Transcript string    `json:"transcript"`
	Action     Action    `json:"action"`
	Timestamp  time.Time `json:"timestamp"`
}

// Request is the input to a [Classifier].
type Request struct {
	Transcript string
	SessionID  string
	CurrentURL string

	// History holds up to three prior exchanges, oldest first.
	History []Exchange
}

// Classifier maps a transcript to a [Result].
type Classifier interface {
	Classify(ctx context.Context, req Request) (Result, error)
}

// Memory is the session state consulted for context and pronoun resolution.
type Memory interface {
	History(sessionID string) []Exchange
	LastAction(sessionID string, kind Kind) (Exchange, bool)
	Record(sessionID, transcript string, action Action)
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// unknownResult is the well-formed answer for transcripts nothing matched.
func unknownResult(source Source) Result {
	return Result{
		Kind:       KindUnknown,
		Confidence: 0.1,
		Action:     Action{Kind: KindUnknown},
		Source:     source,
	}
}
