package intent_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/voicenav/internal/intent"
)

func TestPatternClassifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		transcript string
		url        string
		want       intent.Action
		wantRule   string
	}{
		{
			name:       "scroll to top",
			transcript: "scroll to the top",
			want:       intent.Action{Kind: intent.KindScroll, Direction: "top"},
			wantRule:   "scroll_to_edge",
		},
		{
			name:       "scroll down",
			transcript: "Scroll down",
			want:       intent.Action{Kind: intent.KindScroll, Direction: "down"},
			wantRule:   "scroll_page",
		},
		{
			name:       "show footer",
			transcript: "show me the footer",
			want:       intent.Action{Kind: intent.KindScroll, Direction: "bottom"},
			wantRule:   "show_edge",
		},
		{
			name:       "go back to the top",
			transcript: "go back to the top",
			want:       intent.Action{Kind: intent.KindScroll, Direction: "top"},
			wantRule:   "take_to_edge",
		},
		{
			name:       "click quoted-less target",
			transcript: "click on watch demo",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "watch demo"},
			wantRule:   "click_verb",
		},
		{
			name:       "click ordinal button",
			transcript: "click the second button",
			want:       intent.Action{Kind: intent.KindClick, Nth: 2, Role: "button"},
			wantRule:   "click_verb",
		},
		{
			name:       "popup acknowledgement",
			transcript: "got it",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "got it", Role: "button"},
			wantRule:   "acknowledge",
		},
		{
			name:       "close popup",
			transcript: "close the popup",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "got it", Role: "button"},
			wantRule:   "dismiss_popup",
		},
		{
			name:       "back away from home",
			transcript: "go back",
			url:        "https://example.com/pricing",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "home", Role: "link"},
			wantRule:   "back",
		},
		{
			name:       "back on home",
			transcript: "go back",
			url:        "https://example.com/",
			want:       intent.Action{Kind: intent.KindScroll, Direction: "top"},
			wantRule:   "back_on_home",
		},
		{
			name:       "back with unknown page",
			transcript: "previous page",
			url:        "about:blank",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "home", Role: "link"},
			wantRule:   "back",
		},
		{
			name:       "back to a named page",
			transcript: "take me back to pricing",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "pricing", Role: "link"},
			wantRule:   "back_to_page",
		},
		{
			name:       "go to page section",
			transcript: "go to pricing section",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "pricing", Role: "link"},
			wantRule:   "navigate",
		},
		{
			name:       "navigate via alias",
			transcript: "take me to the plans page",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "pricing", Role: "link"},
			wantRule:   "navigate",
		},
		{
			name:       "misheard page name",
			transcript: "go to pricin",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "pricing", Role: "link"},
			wantRule:   "navigate_phonetic",
		},
		{
			name:       "section phrase",
			transcript: "show the features section please",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "features", Role: "link"},
			wantRule:   "page_section",
		},
		{
			name:       "bare page name",
			transcript: "sign up",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "waitlist", Role: "link"},
			wantRule:   "page_name",
		},
		{
			name:       "page mentioned in short command",
			transcript: "pricing please",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "pricing", Role: "link"},
			wantRule:   "page_mention",
		},
		{
			name:       "search",
			transcript: "search for laptops under five hundred",
			want: intent.Action{
				Kind: intent.KindFill, Value: "laptops under five hundred",
				FieldHint: "search", Submit: intent.BoolPtr(true),
			},
			wantRule: "search",
		},
		{
			name:       "spoken email",
			transcript: "my email is john at gmail dot com",
			want: intent.Action{
				Kind: intent.KindFill, Value: "john@gmail.com",
				FieldHint: "email", Submit: intent.BoolPtr(false),
			},
			wantRule: "email_word",
		},
		{
			name:       "set field to value",
			transcript: "set the name field to John",
			want: intent.Action{
				Kind: intent.KindFill, Value: "John",
				FieldHint: "name", Submit: intent.BoolPtr(false),
			},
			wantRule: "fill_with",
		},
		{
			name:       "update field to value",
			transcript: "update my phone number to 555 1234",
			want: intent.Action{
				Kind: intent.KindFill, Value: "555 1234",
				FieldHint: "phone", Submit: intent.BoolPtr(false),
			},
			wantRule: "fill_with",
		},
		{
			name:       "toggle",
			transcript: "toggle dark mode",
			want:       intent.Action{Kind: intent.KindToggle, Target: "dark mode"},
			wantRule:   "toggle",
		},
		{
			name:       "enable",
			transcript: "enable notifications",
			want:       intent.Action{Kind: intent.KindToggle, Target: "notifications"},
			wantRule:   "enable",
		},
	}

	p := intent.NewPatternClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := p.Classify(context.Background(), intent.Request{Transcript: tt.transcript, CurrentURL: tt.url})
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if diff := cmp.Diff(tt.want, res.Action); diff != "" {
				t.Errorf("action mismatch (-want +got):\n%s", diff)
			}
			if res.Kind != res.Action.Kind {
				t.Errorf("Kind = %q, Action.Kind = %q", res.Kind, res.Action.Kind)
			}
			if res.Confidence != 0.7 {
				t.Errorf("Confidence = %v, want 0.7", res.Confidence)
			}
			if res.Source != intent.SourcePattern {
				t.Errorf("Source = %q", res.Source)
			}
			if got := res.Metadata["rule"]; got != tt.wantRule {
				t.Errorf("rule = %v, want %q", got, tt.wantRule)
			}
		})
	}
}

func TestPatternClassifier_Unknown(t *testing.T) {
	t.Parallel()
	p := intent.NewPatternClassifier()
	for _, in := range []string{"", "   ", "what a lovely day it has been today"} {
		res, err := p.Classify(context.Background(), intent.Request{Transcript: in})
		if err != nil {
			t.Fatalf("Classify(%q): %v", in, err)
		}
		if res.Kind != intent.KindUnknown || res.Action.Kind != intent.KindUnknown || res.Confidence != 0.1 {
			t.Errorf("Classify(%q) = %+v, want unknown at 0.1", in, res)
		}
	}
}

func TestPatternClassifier_MissingArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		transcript string
		wantKind   intent.Kind
		wantRule   string
	}{
		{"email", intent.KindFill, "email_word"},
		{"enter my email", intent.KindFill, "fill_verb"},
		{"turn on", intent.KindToggle, "turn_on_off"},
	}

	p := intent.NewPatternClassifier()
	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			t.Parallel()
			res, err := p.Classify(context.Background(), intent.Request{Transcript: tt.transcript})
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if res.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", res.Kind, tt.wantKind)
			}
			if diff := cmp.Diff(intent.Action{Kind: intent.KindUnknown}, res.Action); diff != "" {
				t.Errorf("action mismatch (-want +got):\n%s", diff)
			}
			if got := res.Metadata["rule"]; got != tt.wantRule {
				t.Errorf("rule = %v, want %q", got, tt.wantRule)
			}
			if _, ok := res.Metadata["withheld"]; !ok {
				t.Errorf("metadata = %v, want withheld reason", res.Metadata)
			}
		})
	}
}

func TestPatternClassifier_SetAliases(t *testing.T) {
	t.Parallel()
	p := intent.NewPatternClassifier()
	ctx := context.Background()

	res, _ := p.Classify(ctx, intent.Request{Transcript: "go to the docs"})
	if res.Action.TargetText == "resources" {
		t.Fatal("docs resolved before alias was added")
	}

	p.SetAliases(map[string]string{"Docs": "resources"})
	res, _ = p.Classify(ctx, intent.Request{Transcript: "go to the docs"})
	want := intent.Action{Kind: intent.KindClick, TargetText: "resources", Role: "link"}
	if diff := cmp.Diff(want, res.Action); diff != "" {
		t.Errorf("after SetAliases (-want +got):\n%s", diff)
	}
	if dest, ok := p.Aliases().Canonical("pricing"); !ok || dest != "pricing" {
		t.Errorf("built-in alias lost: %q, %v", dest, ok)
	}
}

func TestIsHome(t *testing.T) {
	t.Parallel()
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com", true},
		{"https://example.com/", true},
		{"https://example.com/index.html", true},
		{"https://example.com/#features", true},
		{"https://example.com/pricing", false},
		{"about:blank", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := intent.IsHome(tt.url); got != tt.want {
			t.Errorf("IsHome(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
