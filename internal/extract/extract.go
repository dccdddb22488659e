// Package extract mines action parameters from a transcript.
//
// Every extractor takes the raw transcript and an [Explicit] set of
// caller-supplied fields. Explicit fields always win over anything inferred
// from the transcript; inference only fills the gaps.
package extract

import (
	"errors"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/MrWong99/voicenav/internal/normalize"
)

var (
	// ErrEmptyValue is returned by [Fill] when no value could be extracted.
	// The fill action must be withheld rather than clear the field.
	ErrEmptyValue = errors.New("extract: empty fill value")

	// ErrNoTarget is returned by [Toggle] when no toggle target is named.
	ErrNoTarget = errors.New("extract: no toggle target")
)

// Explicit carries fields supplied by the caller alongside the transcript.
// Zero values mean "not supplied".
type Explicit struct {
	Direction  string
	TargetText string
	Selector   string
	Nth        int
	Role       string
	Value      string
	FieldHint  string
	Submit     *bool
	Target     string
}

// Scroll directions.
const (
	Up     = "up"
	Down   = "down"
	Top    = "top"
	Bottom = "bottom"
)

// ValidDirections lists the accepted scroll directions.
var ValidDirections = []string{Up, Down, Top, Bottom}

// ValidRoles lists the ARIA roles a click may be narrowed to.
var ValidRoles = []string{"button", "link", "checkbox", "radio", "menuitem", "tab", "option"}

var quotedRe = regexp.MustCompile(`["“”'‘’](.+?)["“”'‘’]`)

// Quoted returns the first quoted substring of s, trimmed.
func Quoted(s string) (string, bool) {
	m := quotedRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	q := strings.TrimSpace(m[1])
	return q, q != ""
}

// ScrollArgs are the parameters of a scroll action.
type ScrollArgs struct {
	Direction string
}

type directionRule struct {
	re        *regexp.Regexp
	direction string
}

// directionRules are tried in order; the first match decides.
var directionRules = []directionRule{
	{regexp.MustCompile(`\b(top|header|beginning)\b`), Top},
	{regexp.MustCompile(`\b(bottom|footer|last section|end)\b`), Bottom},
	{regexp.MustCompile(`\b(up|page up)\b`), Up},
	{regexp.MustCompile(`\b(down|page down)\b`), Down},
}

// Scroll returns the scroll direction for transcript, defaulting to down.
func Scroll(transcript string, ex Explicit) ScrollArgs {
	if d := normalize.Normalize(ex.Direction); slices.Contains(ValidDirections, d) {
		return ScrollArgs{Direction: d}
	}
	t := normalize.Normalize(transcript)
	for _, r := range directionRules {
		if r.re.MatchString(t) {
			return ScrollArgs{Direction: r.direction}
		}
	}
	return ScrollArgs{Direction: Down}
}

// ClickArgs are the parameters of a click action.
type ClickArgs struct {
	TargetText string
	Selector   string
	Nth        int
	Role       string
}

var (
	clickVerbRe = regexp.MustCompile(`\b(?:click|open|press|select|choose|tap|go to|take me to|navigate to|goto)\s+(?:the\s+)?(.+)$`)
	nthRe       = regexp.MustCompile(`\b(first|second|third|fourth|fifth|[1-9][0-9]*)\b`)
	navVerbRe   = regexp.MustCompile(`\b(open|go to|navigate|view)\b`)
	buttonRe    = regexp.MustCompile(`\bbutton\b`)
)

var ordinals = map[string]int{"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5}

// Nth returns the 1-based position named by an ordinal word or a bare
// integer in s, and the matched word.
func Nth(s string) (int, string) {
	m := nthRe.FindString(s)
	if m == "" {
		return 0, ""
	}
	if n, ok := ordinals[m]; ok {
		return n, m
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, ""
	}
	return n, m
}

// Click resolves the click target in the order explicit, quoted, then the
// text after a click verb.
func Click(transcript string, ex Explicit) ClickArgs {
	t := normalize.Normalize(transcript)
	args := ClickArgs{
		TargetText: normalize.SanitizeTarget(ex.TargetText),
		Selector:   strings.TrimSpace(ex.Selector),
		Nth:        max(ex.Nth, 0),
	}
	if r := normalize.Normalize(ex.Role); slices.Contains(ValidRoles, r) {
		args.Role = r
	}

	fromVerb := false
	if args.TargetText == "" {
		if q, ok := Quoted(transcript); ok {
			args.TargetText = normalize.SanitizeTarget(q)
		}
	}
	if args.TargetText == "" {
		if m := clickVerbRe.FindStringSubmatch(t); m != nil {
			args.TargetText = normalize.SanitizeTarget(m[1])
			fromVerb = true
		}
	}

	n, word := Nth(t)
	if args.Nth == 0 {
		args.Nth = n
	}
	// "click the second button": the ordinal selects, it is not the label.
	if fromVerb && word != "" {
		if rest, ok := strings.CutPrefix(args.TargetText, word); ok && (rest == "" || rest[0] == ' ') {
			args.TargetText = normalize.SanitizeTarget(rest)
		}
	}

	if args.Role == "" && args.Selector == "" && args.TargetText != "" && navVerbRe.MatchString(t) {
		args.Role = "link"
	}
	if args.Role == "" && buttonRe.MatchString(t) {
		args.Role = "button"
	}
	return args
}

// ToggleArgs are the parameters of a toggle action.
type ToggleArgs struct {
	Target string
}

// toggleRules capture the toggle target in group 1, tried in order.
var toggleRules = []*regexp.Regexp{
	regexp.MustCompile(`\btoggle\s+(.+)$`),
	regexp.MustCompile(`\b(?:turn|switch)\s+(?:on|off)\s+(.+)$`),
	regexp.MustCompile(`\b(?:turn|switch)\s+(.+?)\s+(?:on|off)\b`),
	regexp.MustCompile(`\b(?:enable|disable)\s+(.+)$`),
	regexp.MustCompile(`\bselect\s+((?:basic|pro|enterprise)\s+plan)\b`),
}

var onOffSuffix = regexp.MustCompile(`\s+(?:on|off)$`)

// Toggle resolves the toggle target. It returns [ErrNoTarget] when neither
// the caller nor the transcript names one.
func Toggle(transcript string, ex Explicit) (ToggleArgs, error) {
	if tgt := normalize.SanitizeTarget(ex.Target); tgt != "" {
		return ToggleArgs{Target: tgt}, nil
	}
	t := normalize.Normalize(transcript)
	for _, re := range toggleRules {
		if m := re.FindStringSubmatch(t); m != nil {
			if tgt := normalize.SanitizeTarget(onOffSuffix.ReplaceAllString(m[1], "")); tgt != "" {
				return ToggleArgs{Target: tgt}, nil
			}
		}
	}
	return ToggleArgs{}, ErrNoTarget
}
