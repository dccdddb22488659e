package target

import (
	"strings"

	"github.com/MrWong99/voicenav/internal/phonetic"
)

// Click score weights.
const (
	clickExact       = 1000
	clickContains    = 500
	clickShortText   = 300
	clickInteractive = 500
	clickDivPenalty  = -2000
	clickHref        = 100
	clickHrefSlug    = 200
	clickFuzzy       = 400
	clickOverlap     = 200
	clickRole        = 250
	clickDialogAck   = 3000

	fuzzyThreshold = 0.85
	shortTextLimit = 20
	maxLengthCost  = 200
)

// clickScore rates c as the element labelled target. The bool reports
// whether the text was relevant at all.
func clickScore(target, role string, c Candidate) (float64, bool) {
	target = strings.ToLower(strings.TrimSpace(target))
	text := strings.ToLower(strings.TrimSpace(c.Text))
	if text == "" {
		text = strings.ToLower(strings.TrimSpace(c.AriaLabel))
	}
	tag := strings.ToLower(c.Tag)

	var s float64
	r := impliedRole(c)
	if tag == "button" || tag == "a" || tag == "input" || r == "button" || r == "link" {
		s += clickInteractive
	}
	if tag == "div" {
		s += clickDivPenalty
	}
	if tag == "a" && c.Href != "" {
		s += clickHref
	}
	if role != "" && r == strings.ToLower(role) {
		s += clickRole
	}
	if len(text) <= shortTextLimit {
		s += clickShortText
	}
	s -= float64(min(len(text), maxLengthCost))

	if target == "" {
		return s, false
	}

	relevant := false
	switch {
	case text == target:
		s += clickExact
		relevant = true
	case strings.Contains(text, target):
		s += clickContains
		relevant = true
	default:
		if jw := phonetic.Similarity(target, text); jw >= fuzzyThreshold {
			s += clickFuzzy * jw
			relevant = true
		}
	}
	if ov := wordOverlap(target, text); ov > 0 {
		s += clickOverlap * ov
		relevant = relevant || ov >= 0.5
	}
	if slug := strings.ReplaceAll(target, " ", "-"); c.Href != "" && strings.Contains(strings.ToLower(c.Href), slug) {
		s += clickHrefSlug
		relevant = true
	}
	if c.InDialog && (target == "got it" || target == "got it!") {
		s += clickDialogAck
	}
	return s, relevant
}
