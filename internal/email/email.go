// Package email turns dictated email addresses into literal ones.
//
// Speech recognizers render "john.doe@gmail.com" as "john dot doe at g mail
// dot com", split it across several final transcripts, or surround it with
// lead-ins like "my email address is". [Reconstruct] recovers the address
// only when the result validates; otherwise the input is returned verbatim so
// a mangled partial rewrite is never typed into a form. [Buffer] joins
// fragments that arrive as separate utterances.
package email

import (
	"regexp"
	"strings"
)

var (
	validRe   = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)
	literalRe = regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)

	enclosingQuotes = regexp.MustCompile(`^["“”'‘’]+|["“”'‘’]+$`)
	trailingCJK     = regexp.MustCompile(`[，。！？]+$`)

	sepSpace   = regexp.MustCompile(`\s*([@._-])\s*`)
	whitespace = regexp.MustCompile(`\s+`)
	multiDot   = regexp.MustCompile(`\.{2,}`)
	multiAt    = regexp.MustCompile(`@{2,}`)
	atDot      = regexp.MustCompile(`@\.`)

	edgeSeps  = regexp.MustCompile(`^[._+-]+|[._+@-]+$`)
	twoLevTLD = regexp.MustCompile(`\.(co|com)[._-]+(in|uk)$`)
)

type substitution struct {
	re   *regexp.Regexp
	repl string
}

func sub(pattern, repl string) substitution {
	return substitution{re: regexp.MustCompile(pattern), repl: repl}
}

// symbolWords maps spoken symbol names to characters. Multi-word phrases
// precede the single words they contain.
var symbolWords = []substitution{
	sub(`\bat the rate\b`, "@"),
	sub(`\bat\b`, "@"),
	sub(`\bdot\b`, "."),
	sub(`\bperiod\b`, "."),
	sub(`\bunder\s*score\b`, "_"),
	sub(`\bdash\b`, "-"),
	sub(`\bhyphen\b`, "-"),
	sub(`\bplus\b`, "+"),
}

// splitNames re-joins provider names and two-level TLDs that recognizers
// split into separate words.
var splitNames = []substitution{
	sub(`\bg\s*mail\b`, "gmail"),
	sub(`\bout\s*look\b`, "outlook"),
	sub(`\bhot\s*mail\b`, "hotmail"),
	sub(`\by\s*ahoo\b`, "yahoo"),
	sub(`\bproton\s*mail\b`, "protonmail"),
	sub(`\bi\s*cloud\b`, "icloud"),
	sub(`\bco\s*\.\s*uk\b`, "co.uk"),
	sub(`\bco\s*\.\s*in\b`, "co.in"),
	sub(`\bcom\s*\.\s*in\b`, "com.in"),
}

// Valid reports whether s is a lowercase, well-formed email address.
func Valid(s string) bool {
	return validRe.MatchString(s)
}

// Reconstruct returns the email address spoken in text, or text unchanged
// when no valid address can be recovered. A literal address already present
// in text is returned as is, which makes Reconstruct idempotent.
func Reconstruct(text string) string {
	if lit := literalRe.FindString(text); lit != "" {
		return lit
	}

	s := strings.TrimSpace(text)
	s = enclosingQuotes.ReplaceAllString(s, "")
	s = trailingCJK.ReplaceAllString(s, "")
	s = strings.ToLower(s)

	for _, r := range symbolWords {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	for _, r := range splitNames {
		s = r.re.ReplaceAllString(s, r.repl)
	}

	s = sepSpace.ReplaceAllString(s, "$1")
	if local, domain, ok := strings.Cut(s, "@"); ok {
		s = whitespace.ReplaceAllString(local, "") + "@" + whitespace.ReplaceAllString(domain, "")
	} else {
		s = whitespace.ReplaceAllString(s, "")
	}

	s = multiDot.ReplaceAllString(s, ".")
	s = multiAt.ReplaceAllString(s, "@")
	s = atDot.ReplaceAllString(s, "@")

	if validRe.MatchString(s) {
		return s
	}

	// One more pass for dangling separators and two-level TLDs.
	s = edgeSeps.ReplaceAllString(s, "")
	s = twoLevTLD.ReplaceAllString(s, ".$1.$2")
	if validRe.MatchString(s) {
		return s
	}
	return text
}
