package extract

import (
	"regexp"
	"strings"

	"github.com/MrWong99/voicenav/internal/email"
	"github.com/MrWong99/voicenav/internal/normalize"
)

// FillArgs are the parameters of a fill action.
type FillArgs struct {
	Value     string
	FieldHint string
	Selector  string
	Submit    bool

	// EmailContext reports whether the value went through email
	// reconstruction.
	EmailContext bool
}

// fillVerbs introduce a dictated value.
const fillVerbs = `type|enter|fill|set|write|put|input|spell|say|provide|give|update|use|paste`

var (
	fillWithRe     = regexp.MustCompile(`(?i)\b(?:fill|set|update)\s+(?:in\s+)?(?:the\s+|my\s+)?[a-z0-9 _-]+?(?:\s+(?:field|box|input))?\s+(?:with|to|as)\s+(.+)$`)
	fillVerbRe     = regexp.MustCompile(`(?i)\b(?:` + fillVerbs + `)\b\s+(.+)$`)
	searchRe       = regexp.MustCompile(`(?i)\b(?:search(?:\s+for)?|find|look\s+up)\b\s+(.+)$`)
	locationSuffix = regexp.MustCompile(`(?i)(?:^|\s+)in(?:to)?\s+the\s+.*$`)

	fieldPhraseRe = regexp.MustCompile(`\b(?:in|into)\s+(?:the\s+)?([a-z0-9 _-]+?)\s+(?:field|box|input)\b`)
	forPhraseRe   = regexp.MustCompile(`\bfor\s+([a-z0-9 _-]+)`)
	emailWordRe   = regexp.MustCompile(`\be-?mail\b`)
	submitRe      = regexp.MustCompile(`\b(submit|save|apply|send|go|search|find|look up|sign in|log in)\b`)
)

// FieldHints is the keyword vocabulary used to infer a field hint, in
// precedence order. Multi-word hints precede the words they contain.
var FieldHints = []string{
	"email", "e-mail", "mail",
	"first name", "last name", "user name", "username", "name",
	"password", "passcode",
	"search", "query", "keywords",
	"phone", "mobile", "number",
	"address", "city", "state", "zip", "postcode", "postal",
	"message", "comments", "feedback", "note",
	"company", "organization", "org",
	"subject", "title",
}

var fieldHintRes = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(FieldHints))
	for i, h := range FieldHints {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(h) + `\b`)
	}
	return out
}()

// Fill resolves the value, field hint and submit flag of a fill action.
//
// The value is taken from ex.Value, then a quoted substring, then the text
// after "fill the X field with", a fill verb or "search for". In email
// context the value is stripped of lead-ins and reconstructed, and the hint
// defaults to "email". An empty value yields [ErrEmptyValue].
func Fill(transcript string, ex Explicit) (FillArgs, error) {
	t := normalize.Normalize(transcript)
	args := FillArgs{Selector: strings.TrimSpace(ex.Selector)}

	value := strings.TrimSpace(ex.Value)
	if value == "" {
		value = valueFromTranscript(transcript)
	}
	value = normalize.SanitizeValue(value)

	hint := normalize.Normalize(ex.FieldHint)
	if hint == "" {
		hint = InferFieldHint(t)
	}

	if emailWordRe.MatchString(hint) || hint == "mail" || emailWordRe.MatchString(t) ||
		email.HasSpokenMarkers(t) || email.LooksLikeEmail(value) {
		args.EmailContext = true
		if value == "" {
			value = transcript
		}
		value = email.Reconstruct(email.StripLeadIns(value))
		if hint == "" || hint == "mail" || hint == "e-mail" {
			hint = "email"
		}
	}

	args.Value = normalize.SanitizeValue(value)
	args.FieldHint = hint
	if ex.Submit != nil {
		args.Submit = *ex.Submit
	} else {
		args.Submit = InferSubmit(t)
	}

	if args.Value == "" {
		return args, ErrEmptyValue
	}
	return args, nil
}

func valueFromTranscript(transcript string) string {
	if q, ok := Quoted(transcript); ok {
		return q
	}
	for _, re := range []*regexp.Regexp{fillWithRe, fillVerbRe, searchRe} {
		if m := re.FindStringSubmatch(transcript); m != nil {
			return strings.TrimSpace(locationSuffix.ReplaceAllString(m[1], ""))
		}
	}
	return ""
}

// InferFieldHint guesses the target field from a normalized transcript:
// an "in/into the X field" phrase, then a hint word after "for", then the
// first [FieldHints] keyword present.
func InferFieldHint(t string) string {
	if m := fieldPhraseRe.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := forPhraseRe.FindStringSubmatch(t); m != nil {
		for i, re := range fieldHintRes {
			if re.MatchString(m[1]) {
				return FieldHints[i]
			}
		}
	}
	for i, re := range fieldHintRes {
		if re.MatchString(t) {
			return FieldHints[i]
		}
	}
	return ""
}

// InferSubmit reports whether a normalized transcript asks for the form to
// be submitted after filling.
func InferSubmit(t string) bool {
	return submitRe.MatchString(t)
}
