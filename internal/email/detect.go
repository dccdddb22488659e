package email

import (
	"regexp"
	"strings"
)

// tldWords are the top-level domains a spoken phrase must end on to count as
// complete.
const tldWords = `(com|net|org|io|ai|co|in|uk|us|dev|app|edu|gov)`

var (
	spokenAtRe      = regexp.MustCompile(`(?i)\b(at|at the rate)\b`)
	spokenDotRe     = regexp.MustCompile(`(?i)\bdot\b`)
	providerRe      = regexp.MustCompile(`(?i)gmail|outlook|hotmail|yahoo|icloud|protonmail`)
	emailWordRe     = regexp.MustCompile(`(?i)\b(e-?mail|mail)\b`)
	literalDomainRe = regexp.MustCompile(`(?i)@[a-z0-9.-]+\.[a-z]{2,}`)
	dotTLDRe        = regexp.MustCompile(`(?i)\bdot\s+` + tldWords + `\b`)
	providerTLDRe   = regexp.MustCompile(`(?i)\b(gmail|outlook|hotmail|yahoo|proton\s*mail|icloud)\b.*\bdot\s+` + tldWords + `\b`)
)

// LooksLikeEmail reports whether s contains a literal email address.
func LooksLikeEmail(s string) bool {
	return literalRe.MatchString(s)
}

// HasSpokenMarkers reports whether s contains words that dictated addresses
// are made of: "at", "dot" or a well-known mail provider.
func HasSpokenMarkers(s string) bool {
	return spokenAtRe.MatchString(s) || spokenDotRe.MatchString(s) || providerRe.MatchString(s)
}

// IsEmailish reports whether s is plausibly part of an email dictation. It
// is looser than [HasSpokenMarkers] and also accepts a bare "@" or the word
// "email".
func IsEmailish(s string) bool {
	return emailWordRe.MatchString(s) || strings.Contains(s, "@") ||
		spokenAtRe.MatchString(s) || spokenDotRe.MatchString(s)
}

// SeemsComplete reports whether s holds a whole address: a literal one, an
// "at ... dot <tld>" phrase, or a provider name followed by "dot <tld>".
func SeemsComplete(s string) bool {
	if literalDomainRe.MatchString(s) {
		return true
	}
	if spokenAtRe.MatchString(s) && dotTLDRe.MatchString(s) {
		return true
	}
	return providerTLDRe.MatchString(s)
}

// leadInVerbs are the dictation verbs that may precede "email" in a lead-in.
const leadInVerbs = `type|enter|fill|set|write|put|input|spell|say|provide|give|update|use|paste`

const (
	mailWord = `(?:e-?mail|mail)\b`
	idWord   = `(?:(?:address|id)\b)?`
	copula   = `(?:(?:is|as|to|should be|will be)\b|[=:])?`
)

// leadIns are stripped from the start of a value in order, most specific
// first.
var leadIns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(?:my\s+)?` + mailWord + `\s*` + idWord + `\s*` + copula + `\s*`),
	regexp.MustCompile(`(?i)^\s*(?:the\s+)?` + mailWord + `\s*` + idWord + `\s*` + copula + `\s*`),
	regexp.MustCompile(`(?i)^\s*(?:` + leadInVerbs + `)\b\s*(?:in(?:to)?\s+|to\s+)?(?:the\s+)?(?:my\s+)?` + mailWord + `(?:\s+(?:address|field|box|input)\b)?\s*` + copula + `\s*`),
	regexp.MustCompile(`(?i)^\s*(?:it|this|that|value)\s+(?:is|as|to)\b\s*`),
	regexp.MustCompile(`(?i)^\s*(?:it|this|that|value)\s*[=:]\s*`),
	regexp.MustCompile(`(?i)^\s*as\s+follows\b\s*:?\s*`),
}

var (
	leadingQuotes  = regexp.MustCompile(`^["“”'‘’\s]+`)
	trailingQuotes = regexp.MustCompile(`["“”'‘’]+$`)
	fieldSuffix    = regexp.MustCompile(`(?i)\s+(?:in|into)\s+(?:the\s+)?(?:e-?mail|mail)\s+(?:field|box|input)\b.*$`)
)

// StripLeadIns removes phrases like "my email address is", "type my email
// as" or "it is" from the start of v, and a trailing "in the email field".
func StripLeadIns(v string) string {
	v = strings.TrimSpace(v)
	v = leadingQuotes.ReplaceAllString(v, "")
	for _, re := range leadIns {
		v = re.ReplaceAllString(v, "")
	}
	v = fieldSuffix.ReplaceAllString(v, "")
	v = trailingQuotes.ReplaceAllString(v, "")
	v = trailingCJK.ReplaceAllString(v, "")
	return strings.TrimSpace(v)
}
