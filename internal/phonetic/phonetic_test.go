package phonetic_test

import (
	"testing"

	"github.com/MrWong99/voicenav/internal/phonetic"
)

var pages = []string{"home", "pricing", "features", "about", "waitlist", "feedback"}

func TestMatcher_Match(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		phrase    string
		wantTerm  string
		wantMatch bool
	}{
		{name: "exact", phrase: "pricing", wantTerm: "pricing", wantMatch: true},
		{name: "case insensitive", phrase: "  PRICING ", wantTerm: "pricing", wantMatch: true},
		{name: "dropped final consonant", phrase: "pricin", wantTerm: "pricing", wantMatch: true},
		{name: "unrelated", phrase: "hello", wantMatch: false},
		{name: "empty", phrase: "   ", wantMatch: false},
	}
	m := phonetic.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			term, score, ok := m.Match(tt.phrase, pages)
			if ok != tt.wantMatch {
				t.Fatalf("Match(%q) matched = %v, want %v (term=%q score=%.2f)", tt.phrase, ok, tt.wantMatch, term, score)
			}
			if !ok {
				if term != "" || score != 0 {
					t.Errorf("Match(%q) = (%q, %.2f), want zero values", tt.phrase, term, score)
				}
				return
			}
			if term != tt.wantTerm {
				t.Errorf("Match(%q) term = %q, want %q", tt.phrase, term, tt.wantTerm)
			}
			if score < 0.7 || score > 1 {
				t.Errorf("Match(%q) score = %.2f, want in [0.7,1]", tt.phrase, score)
			}
		})
	}
}

func TestMatcher_EmptyVocab(t *testing.T) {
	t.Parallel()
	if _, _, ok := phonetic.New().Match("pricing", nil); ok {
		t.Error("Match with empty vocab should not match")
	}
}

func TestMatcher_FuzzyThreshold(t *testing.T) {
	t.Parallel()
	m := phonetic.New(phonetic.WithFuzzyThreshold(0.999), phonetic.WithPhoneticThreshold(0.999))
	if term, _, ok := m.Match("pricin", pages); ok {
		t.Errorf("strict matcher matched %q", term)
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()
	if s := phonetic.Similarity("Watch Demo", "watch demo"); s != 1 {
		t.Errorf("identical similarity = %v, want 1", s)
	}
	if s := phonetic.Similarity("", "x"); s != 0 {
		t.Errorf("empty similarity = %v, want 0", s)
	}
	near := phonetic.Similarity("sign up", "signup")
	far := phonetic.Similarity("sign up", "pricing")
	if near <= far {
		t.Errorf("Similarity near=%.2f should exceed far=%.2f", near, far)
	}
}
