// Package normalize cleans raw voice transcripts before classification.
//
// Every function is pure and total: empty or whitespace-only input yields the
// empty string, nothing panics, and inputs are never modified in place.
package normalize

import (
	"regexp"
	"strings"
)

var (
	// Western and CJK terminal punctuation that dictation tends to append.
	trailingValuePunct  = regexp.MustCompile(`[，。！？.,!?;:]+$`)
	trailingTargetPunct = regexp.MustCompile(`[，。！？.?!,:;]+$`)
	leadingFiller       = regexp.MustCompile(`^((on|the)\s+)+`)
	trailingTypeWord    = regexp.MustCompile(`\b(button|link|tab|item)$`)
)

// Normalize trims raw, collapses internal whitespace and lowercases it.
func Normalize(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}

// SanitizeTarget prepares a spoken element description for matching against
// page text: "the Watch Demo button." becomes "watch demo".
func SanitizeTarget(s string) string {
	t := Normalize(s)
	if t == "" {
		return ""
	}
	t = leadingFiller.ReplaceAllString(t, "")
	t = trailingTargetPunct.ReplaceAllString(t, "")
	t = strings.TrimSpace(t)
	t = trailingTypeWord.ReplaceAllString(t, "")
	return strings.Join(strings.Fields(t), " ")
}

// SanitizeValue trims s and strips trailing terminal punctuation. Unlike
// [SanitizeTarget] it keeps casing and type words, since the value is typed
// into a field verbatim.
func SanitizeValue(s string) string {
	t := strings.TrimSpace(s)
	t = trailingValuePunct.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

// Fix is one speech-recognition confusion and its replacement.
type Fix struct {
	From string
	To   string
	re   *regexp.Regexp
}

func fix(from, to string) Fix {
	return Fix{From: from, To: to, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(from) + `\b`)}
}

// ASRFixes is the ordered confusion table applied by [FixASR]. Longer phrases
// precede their substrings.
var ASRFixes = []Fix{
	fix("bot it", "got it"),
	fix("bought it", "got it"),
	fix("take me back to", "go to"),
	fix("back to home", "go to home"),
	fix("take me to", "go to"),
	fix("navigate to", "go to"),
	fix("bring me to", "go to"),
	fix("return home", "go to home"),
	fix("back home", "go to home"),
	fix("homepage", "home"),
	fix("home page", "home"),
}

// FixASR applies the first matching entry of [ASRFixes] to s, which should
// already be normalized. At most one rule fires per call so corrections never
// compound. The boolean reports whether a substitution happened.
func FixASR(s string) (string, bool) {
	for _, f := range ASRFixes {
		if f.re.MatchString(s) {
			return f.re.ReplaceAllLiteralString(s, f.To), true
		}
	}
	return s, false
}

// echoPrefixes match narration the assistant starts its own turns with.
var echoPrefixes = []string{
	"scrolling ", "clicking ", "opening ", "filling ", "toggling ",
	"navigating to", "taking you to",
}

// echoPhrases match first-person assistant speech anywhere in the text.
var echoPhrases = []string{
	"i'll help you", "i can help", "let me help", "let me ",
	"i'll navigate", "i understand", "i found", "here are the",
	"would you like", "how can i assist", "i've ",
}

// IsAssistantEcho reports whether s looks like the voice assistant's own
// speech picked up by the microphone rather than a user command.
func IsAssistantEcho(s string) bool {
	t := Normalize(s)
	if t == "" {
		return false
	}
	for _, p := range echoPrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	for _, p := range echoPhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}
