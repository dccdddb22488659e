package intent

import (
	"maps"
	"regexp"
	"slices"
	"strings"
)

// DefaultAliases maps spoken page names to canonical destinations.
var DefaultAliases = map[string]string{
	"home":      "home",
	"homepage":  "home",
	"pricing":   "pricing",
	"plans":     "pricing",
	"features":  "features",
	"about":     "about",
	"waitlist":  "waitlist",
	"wait list": "waitlist",
	"signup":    "waitlist",
	"sign up":   "waitlist",
	"resources": "feedback",
	"feedback":  "feedback",
	"contact":   "feedback",
	"help":      "feedback",
	"support":   "feedback",
}

// ambiguousAliases are ordinary words that only count as a page name when
// the whole utterance is the name or it follows a navigation verb.
var ambiguousAliases = []string{"about", "help", "home"}

// Aliases is an immutable alias table with a compiled matcher.
type Aliases struct {
	table    map[string]string
	names    []string
	singles  []string
	alt      string
	anyRe    *regexp.Regexp
	bareRe   *regexp.Regexp
	sectRe   *regexp.Regexp
	backToRe *regexp.Regexp
}

// NewAliases merges extra over [DefaultAliases]. Keys and values are
// normalized to lower case; empty entries are ignored.
func NewAliases(extra map[string]string) *Aliases {
	table := maps.Clone(DefaultAliases)
	for k, v := range extra {
		k = strings.Join(strings.Fields(strings.ToLower(k)), " ")
		v = strings.TrimSpace(strings.ToLower(v))
		if k != "" && v != "" {
			table[k] = v
		}
	}

	names := slices.Collect(maps.Keys(table))
	// Longest first so "sign up" wins over a shorter overlapping key.
	slices.SortFunc(names, func(a, b string) int {
		if d := len(b) - len(a); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})

	quoted := make([]string, len(names))
	var singles []string
	for i, n := range names {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(n), " ", `\s+`)
		if !strings.Contains(n, " ") {
			singles = append(singles, n)
		}
	}
	alt := strings.Join(quoted, "|")

	return &Aliases{
		table:    table,
		names:    names,
		singles:  singles,
		alt:      alt,
		anyRe:    regexp.MustCompile(`\b(` + alt + `)\b`),
		bareRe:   regexp.MustCompile(`^(?:the\s+)?(` + alt + `)(?:\s+(?:page|section))?$`),
		sectRe:   regexp.MustCompile(`\b(` + alt + `)\s+(?:page|section)\b`),
		backToRe: regexp.MustCompile(`\bback\s+to\s+(?:the\s+)?(` + alt + `)\b`),
	}
}

// Canonical returns the destination for a spoken page name.
func (a *Aliases) Canonical(name string) (string, bool) {
	dest, ok := a.table[strings.Join(strings.Fields(strings.ToLower(name)), " ")]
	return dest, ok
}

// Names returns every alias key, longest first.
func (a *Aliases) Names() []string {
	return slices.Clone(a.names)
}

// Destinations returns the distinct canonical destinations, sorted.
func (a *Aliases) Destinations() []string {
	out := slices.Sorted(maps.Values(a.table))
	return slices.Compact(out)
}

// Table returns a copy of the alias table.
func (a *Aliases) Table() map[string]string {
	return maps.Clone(a.table)
}
