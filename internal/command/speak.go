package command

import (
	"fmt"
	"unicode/utf8"

	"github.com/MrWong99/voicenav/internal/intent"
)

// previewRunes bounds how much of a dictated value is read back.
const previewRunes = 40

// Speak returns the short confirmation read back to the user for action.
func Speak(action intent.Action) string {
	switch action.Kind {
	case intent.KindScroll:
		return "Scrolling " + action.Direction
	case intent.KindClick:
		if action.TargetText == "" {
			return "Clicking"
		}
		return "Clicking " + action.TargetText
	case intent.KindFill:
		field := action.FieldHint
		if field == "" {
			field = "field"
		}
		if action.Value == "" {
			return "Filling " + field
		}
		return fmt.Sprintf("Filling %s with %s", field, preview(action.Value))
	case intent.KindToggle:
		return "Toggling " + action.Target
	}
	return ""
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes]) + "…"
}
