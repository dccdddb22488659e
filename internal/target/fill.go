package target

import (
	"slices"
	"strings"
)

// Fill score weights.
const (
	fillInputSingle    = 20000
	fillTextareaSingle = -100000
	fillTextareaLong   = 15000
	fillInputLong      = -2000
	fillTypeEmail      = 12000
	fillTypeSearch     = 8000
	fillTypeText       = 3000
	fillIDName         = 5000
	fillPlaceholder    = 7000
	fillLabel          = 9000
	fillSynonym        = 2500
	fillMismatch       = -20000
)

var (
	singleValueHints = []string{"name", "email", "phone", "subject", "search"}
	longTextHints    = []string{"message", "description", "comments", "feedback", "details", "note"}
	mismatchHints    = []string{"name", "email", "subject", "phone"}
	longTextMarkers  = []string{"description", "message", "details"}
)

var fillSynonyms = map[string][]string{
	"email":       {"e-mail", "mail", "issue-email", "idea-email"},
	"name":        {"full name", "first name", "last name", "username", "user name", "issue-name", "idea-name"},
	"search":      {"query", "keywords", "find"},
	"phone":       {"mobile", "number"},
	"message":     {"comments", "feedback", "note"},
	"subject":     {"title", "topic", "summary", "issue-subject", "idea-subject"},
	"description": {"details", "info", "information", "issue-description", "idea-description"},
	"address":     {"street", "city", "state", "zip", "postal", "postcode"},
}

// CanonicalHint maps field hint spellings onto the scoring vocabulary.
func CanonicalHint(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	switch h {
	case "title":
		return "subject"
	case "e-mail", "mail":
		return "email"
	case "msg":
		return "message"
	}
	return h
}

var nonTextInputs = []string{"hidden", "checkbox", "radio", "file", "submit", "button", "image", "reset"}

func fillable(c Candidate) bool {
	switch strings.ToLower(c.Tag) {
	case "textarea":
		return true
	case "input":
		return !slices.Contains(nonTextInputs, strings.ToLower(c.Type))
	}
	r := strings.ToLower(c.Role)
	return r == "textbox" || r == "searchbox"
}

// fillScore rates c as the field named by hint.
func fillScore(hint string, c Candidate) (float64, bool) {
	h := CanonicalHint(hint)
	if h == "" {
		return 0, false
	}
	tag, typ := strings.ToLower(c.Tag), strings.ToLower(c.Type)
	isInput, isTextarea := tag == "input", tag == "textarea"
	id, name := strings.ToLower(c.ElementID), strings.ToLower(c.Name)
	ph, aria, lbl := strings.ToLower(c.Placeholder), strings.ToLower(c.AriaLabel), strings.ToLower(c.Label)

	var s float64
	relevant := false
	if slices.Contains(singleValueHints, h) {
		if isInput {
			s += fillInputSingle
		}
		if isTextarea {
			s += fillTextareaSingle
		}
	}
	if slices.Contains(longTextHints, h) {
		if isTextarea {
			s += fillTextareaLong
			relevant = true
		}
		if isInput {
			s += fillInputLong
		}
	}

	switch {
	case h == "email" && typ == "email":
		s += fillTypeEmail
		relevant = true
	case h == "search" && (typ == "search" || strings.Contains(ph, "search")):
		s += fillTypeSearch
		relevant = true
	case (h == "name" || h == "subject") && (typ == "text" || typ == ""):
		s += fillTypeText
	}

	for _, f := range []struct {
		text   string
		weight float64
	}{
		{id, fillIDName}, {name, fillIDName},
		{ph, fillPlaceholder}, {aria, fillPlaceholder},
		{lbl, fillLabel},
	} {
		if f.text != "" && strings.Contains(f.text, h) {
			s += f.weight
			relevant = true
		}
	}

	for _, syn := range fillSynonyms[h] {
		for _, text := range []string{id, name, ph, aria, lbl} {
			if strings.Contains(text, syn) {
				s += fillSynonym
				relevant = true
			}
		}
	}

	if slices.Contains(mismatchHints, h) {
		for _, text := range []string{id, name, lbl} {
			if containsAny(text, longTextMarkers) {
				s += fillMismatch
				break
			}
		}
	}
	return s, relevant
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
