package target

import "strings"

const (
	toggleExact    = 100
	toggleContains = 80
	toggleOverlap  = 60
	toggleKind     = 20
)

var toggleRoles = map[string]bool{"switch": true, "checkbox": true, "radio": true, "tab": true, "option": true}

// toggleScore rates c as the switch named target, comparing against its
// text, label, aria label and name.
func toggleScore(target string, c Candidate) (float64, bool) {
	var s float64
	if toggleRoles[impliedRole(c)] {
		s += toggleKind
	}
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return s, false
	}

	best := 0.0
	for _, text := range []string{c.Text, c.Label, c.AriaLabel, c.Name} {
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			continue
		}
		var v float64
		switch {
		case text == target:
			v = toggleExact
		case strings.Contains(text, target) || strings.Contains(target, text):
			v = toggleContains
		default:
			v = wordOverlap(target, text) * toggleOverlap
		}
		best = max(best, v)
	}
	return s + best, best > 0
}
