package intent

import (
	"regexp"

	"github.com/MrWong99/voicenav/internal/normalize"
)

var (
	pronounRe     = regexp.MustCompile(`\b(?:it|that)\b`)
	pronounVerbRe = regexp.MustCompile(`\b(?:toggle|turn|switch|enable|disable|click|press|tap|open|select|choose)\b`)
	acknowledgeRe = regexp.MustCompile(`\bgot it\b`)
)

// ResolvePronouns replaces "it" and "that" in transcript with the most
// recent toggle target of the session, or failing that the most recent
// click target. It only rewrites commands with a toggle or click verb and
// never touches popup acknowledgements such as "got it". The returned
// string is normalized when ok is true.
func ResolvePronouns(transcript, sessionID string, mem Memory) (string, bool) {
	if mem == nil || sessionID == "" {
		return transcript, false
	}
	t := normalize.Normalize(transcript)
	if !pronounRe.MatchString(t) || !pronounVerbRe.MatchString(t) || acknowledgeRe.MatchString(t) {
		return transcript, false
	}
	for _, rl := range dismissRules {
		if rl.re.MatchString(t) {
			return transcript, false
		}
	}

	referent := ""
	if ex, ok := mem.LastAction(sessionID, KindToggle); ok && ex.Action.Target != "" {
		referent = ex.Action.Target
	} else if ex, ok := mem.LastAction(sessionID, KindClick); ok &&
		ex.Action.TargetText != "" && ex.Action.TargetText != AcknowledgeTarget {
		referent = ex.Action.TargetText
	}
	if referent == "" {
		return transcript, false
	}
	return pronounRe.ReplaceAllLiteralString(t, referent), true
}
