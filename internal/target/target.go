// Package target ranks addressable page elements for a click, fill or
// toggle action.
//
// Candidates are plain descriptors sent by the page; nothing here touches a
// real DOM. [Rank] drops invisible candidates, scores the rest for the
// requested [Mode] and sorts them best first. When nothing is clearly
// relevant the ranking falls back to visibility alone.
package target

import (
	"cmp"
	"errors"
	"slices"
	"strings"
)

// ErrNoMatch is returned when no candidate survives filtering. It is a soft
// failure: the action is reported as unmatched, not as an error.
var ErrNoMatch = errors.New("target: no matching element")

// Mode selects the scoring rules.
type Mode string

const (
	ModeClick  Mode = "click"
	ModeFill   Mode = "fill"
	ModeToggle Mode = "toggle"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeClick, ModeFill, ModeToggle:
		return true
	}
	return false
}

// Rect is an element's bounding box in viewport coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the visible area of the page. A zero viewport treats every
// non-empty element as fully visible.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Candidate describes one addressable element.
type Candidate struct {
	ID          string `json:"id"`
	Tag         string `json:"tag"`
	Type        string `json:"type,omitempty"`
	Role        string `json:"role,omitempty"`
	Text        string `json:"text,omitempty"`
	Label       string `json:"label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	AriaLabel   string `json:"ariaLabel,omitempty"`
	Name        string `json:"name,omitempty"`
	ElementID   string `json:"elementId,omitempty"`
	Href        string `json:"href,omitempty"`
	Disabled    bool   `json:"disabled,omitempty"`
	ReadOnly    bool   `json:"readOnly,omitempty"`
	Display     string `json:"display,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
	InDialog    bool   `json:"inDialog,omitempty"`
	Rect        Rect   `json:"rect"`

	// Score is set by [Rank].
	Score float64 `json:"score"`
}

// Query is what the ranking is for.
type Query struct {
	Mode       Mode
	TargetText string
	Hint       string
	Role       string
	Viewport   Viewport
}

// Ranking is the ordered result of [Rank].
type Ranking struct {
	Candidates []Candidate `json:"candidates"`

	// Fallback is set when no candidate was relevant and the order is by
	// visibility alone.
	Fallback bool `json:"fallback"`
}

// Rank filters, scores and sorts cands for q. The input slice is not
// modified. It returns [ErrNoMatch] when no candidate is usable.
func Rank(q Query, cands []Candidate) (Ranking, error) {
	var pool []Candidate
	for _, c := range cands {
		vis, ok := Visibility(c, q.Viewport)
		if !ok || !eligible(q.Mode, c) {
			continue
		}
		c.Score = vis
		pool = append(pool, c)
	}
	if len(pool) == 0 {
		return Ranking{}, ErrNoMatch
	}
	pool = narrowByRole(q, pool)

	relevant := false
	for i := range pool {
		s, rel := score(q, pool[i])
		pool[i].Score += s
		relevant = relevant || rel
	}
	if !relevant {
		for i := range pool {
			pool[i].Score, _ = Visibility(pool[i], q.Viewport)
		}
	}
	slices.SortStableFunc(pool, func(a, b Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return Ranking{Candidates: pool, Fallback: !relevant}, nil
}

// Pick returns the nth (1-based) candidate of r. Zero or negative n picks
// the first.
func (r Ranking) Pick(nth int) (Candidate, error) {
	i := max(nth, 1) - 1
	if i >= len(r.Candidates) {
		return Candidate{}, ErrNoMatch
	}
	return r.Candidates[i], nil
}

func score(q Query, c Candidate) (float64, bool) {
	switch q.Mode {
	case ModeFill:
		return fillScore(q.Hint, c)
	case ModeToggle:
		return toggleScore(q.TargetText, c)
	default:
		return clickScore(q.TargetText, q.Role, c)
	}
}

// Visibility scores how much of c is on screen: 100 fully inside the
// viewport, 40 to 90 when partially inside, 10 when off-screen. ok is false
// for elements that cannot be seen at all.
func Visibility(c Candidate, vp Viewport) (score float64, ok bool) {
	if strings.EqualFold(c.Display, "none") || strings.EqualFold(c.Visibility, "hidden") {
		return 0, false
	}
	if c.Rect.Width <= 0 || c.Rect.Height <= 0 {
		return 0, false
	}
	if vp.Width <= 0 || vp.Height <= 0 {
		return 100, true
	}
	w := overlap(c.Rect.X, c.Rect.Width, vp.Width)
	h := overlap(c.Rect.Y, c.Rect.Height, vp.Height)
	frac := (w * h) / (c.Rect.Width * c.Rect.Height)
	switch {
	case frac >= 0.999:
		return 100, true
	case frac > 0:
		return 40 + 50*frac, true
	default:
		return 10, true
	}
}

// overlap is the length of [start, start+size) inside [0, limit).
func overlap(start, size, limit float64) float64 {
	lo := max(start, 0)
	hi := min(start+size, limit)
	return max(hi-lo, 0)
}

// eligible drops candidates the mode cannot act on.
func eligible(m Mode, c Candidate) bool {
	switch m {
	case ModeFill:
		return fillable(c) && !c.Disabled && !c.ReadOnly
	case ModeToggle:
		return !c.Disabled
	}
	return true
}

// impliedRole is the ARIA role of c, explicit or derived from its tag.
func impliedRole(c Candidate) string {
	if c.Role != "" {
		return strings.ToLower(c.Role)
	}
	tag, typ := strings.ToLower(c.Tag), strings.ToLower(c.Type)
	switch tag {
	case "a":
		return "link"
	case "button":
		return "button"
	case "option":
		return "option"
	case "input":
		switch typ {
		case "button", "submit", "reset":
			return "button"
		case "checkbox", "radio":
			return typ
		}
	}
	return ""
}

// narrowByRole keeps only candidates with the requested role when any do.
func narrowByRole(q Query, pool []Candidate) []Candidate {
	if q.Role == "" || q.Mode == ModeFill {
		return pool
	}
	role := strings.ToLower(q.Role)
	matching := slices.DeleteFunc(slices.Clone(pool), func(c Candidate) bool {
		return impliedRole(c) != role
	})
	if len(matching) == 0 {
		return pool
	}
	return matching
}

// words splits s into lower-case words.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
}

// wordOverlap is the fraction of target's words that occur in text.
func wordOverlap(target, text string) float64 {
	tw := words(target)
	if len(tw) == 0 {
		return 0
	}
	have := words(text)
	n := 0
	for _, w := range tw {
		if slices.Contains(have, w) {
			n++
		}
	}
	return float64(n) / float64(len(tw))
}
