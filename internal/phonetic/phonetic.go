// Package phonetic matches misheard words against a known vocabulary using
// Double Metaphone encoding combined with Jaro-Winkler similarity.
//
// Matching runs in two stages:
//
//  1. Phonetic filtering: Double Metaphone codes are computed for each token
//     of the input and of every vocabulary term. A term whose codes overlap
//     the input's becomes a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates the term with the
//     highest similarity wins, provided it clears the phonetic threshold.
//     When no phonetic candidate exists, every term is tested against the
//     stricter fuzzy threshold instead.
//
// It is used to recover page names from speech ("go to the pricin page",
// "show me feechers") and to score near-miss element text.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matching term. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score used when no term
// matches phonetically. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] with the default thresholds, modified by opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the term from vocab that best matches phrase. When matched
// is false, term is empty and score is 0.
//
// Exact (case-insensitive) matches win immediately with score 1.
func (m *Matcher) Match(phrase string, vocab []string) (term string, score float64, matched bool) {
	in := strings.ToLower(strings.TrimSpace(phrase))
	if in == "" || len(vocab) == 0 {
		return "", 0, false
	}
	inTokens := strings.Fields(in)
	inCodes := codesForTokens(inTokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, v := range vocab {
		vl := strings.ToLower(strings.TrimSpace(v))
		if vl == "" {
			continue
		}
		if vl == in {
			return v, 1, true
		}
		vTokens := strings.Fields(vl)
		jw := bestJWScore(inTokens, vTokens, in, vl)

		if codesOverlap(inCodes, codesForTokens(vTokens)) {
			if jw >= m.phoneticThreshold && (!bestPhonetic || jw > bestScore) {
				best, bestScore, bestPhonetic = v, jw, true
			}
		} else if !bestPhonetic && jw >= m.fuzzyThreshold && jw > bestScore {
			best, bestScore = v, jw
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestScore, true
}

// Similarity returns the Jaro-Winkler similarity of a and b in [0,1],
// ignoring case and surrounding whitespace.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	return matchr.JaroWinkler(a, b, false)
}

// codesForTokens returns the union of the primary and secondary Double
// Metaphone codes of tokens, excluding empty codes.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the maximum of the full-string, space-stripped and best
// pairwise token similarities.
func bestJWScore(inTokens, vTokens []string, inFull, vFull string) float64 {
	score := matchr.JaroWinkler(inFull, vFull, false)

	if len(inTokens) > 1 || len(vTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inTokens, ""), strings.Join(vTokens, ""), false); s > score {
			score = s
		}
	}
	for _, it := range inTokens {
		for _, vt := range vTokens {
			if s := matchr.JaroWinkler(it, vt, false); s > score {
				score = s
			}
		}
	}
	return score
}
