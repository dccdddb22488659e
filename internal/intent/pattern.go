package intent

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/MrWong99/voicenav/internal/extract"
	"github.com/MrWong99/voicenav/internal/normalize"
	"github.com/MrWong99/voicenav/internal/phonetic"
)

// patternConfidence is the confidence of every pattern match.
const patternConfidence = 0.7

// AcknowledgeTarget is the click target used to dismiss popups.
const AcknowledgeTarget = "got it"

// rule is one entry of an ordered rule table. When extraction finds no
// target, capture group targetGroup (if >= 0) supplies it.
type rule struct {
	name        string
	re          *regexp.Regexp
	targetGroup int
}

func r(name, pattern string, targetGroup int) rule {
	return rule{name: name, re: regexp.MustCompile(pattern), targetGroup: targetGroup}
}

var dismissRules = []rule{
	r("dismiss_popup", `\b(?:close|dismiss|got it|ok(?:ay)?)\b.*\b(?:pop\s?-?up|window|dialog|modal)\b`, -1),
	r("acknowledge", `^(?:ok(?:ay)?\s+)?got it[.!]*$`, -1),
}

var (
	backRes = []*regexp.Regexp{
		regexp.MustCompile(`^(?:please\s+)?(?:go\s+back|back|previous(?:\s+page)?|return|go\s+to\s+(?:the\s+)?previous(?:\s+page)?)\b`),
		regexp.MustCompile(`\b(?:go|take me|bring me)\s+back\b`),
	}
	scrollWordRe = regexp.MustCompile(`\b(?:top|bottom|up|down|header|footer)\b`)
	scrollVerbRe = regexp.MustCompile(`\bscroll`)

	navVerbRe    = regexp.MustCompile(`\b(?:go to|goto|take me to|navigate to|show me|scroll to)\s+(?:the\s+)?(.+)$`)
	pageSuffixRe = regexp.MustCompile(`\s+(?:page|section)$`)
	navStopWords = map[string]bool{"up": true, "down": true, "here": true, "there": true, "top": true, "bottom": true}
)

// The generic tables, tried in the order scroll, click, fill, toggle. Within
// a table the first matching rule wins.
var (
	scrollRules = []rule{
		r("scroll_page", `\b(?:scroll|page)\s+(?:up|down)\b`, -1),
		r("scroll_to_edge", `\bscroll\s+(?:to\s+)?(?:the\s+)?(?:top|bottom|end|beginning)\b`, -1),
		r("move_to_edge", `\b(?:go|move|jump)\s+(?:to\s+)?(?:the\s+)?(?:top|bottom|up|down)\b`, -1),
		r("take_to_edge", `\b(?:go|take|bring|navigate)\s+(?:me\s+)?(?:back\s+)?to\s+(?:the\s+)?(?:top|bottom|footer|header|end|beginning)\b`, -1),
		r("back_to_edge", `\bback\s+to\s+(?:the\s+)?(?:top|bottom)\b`, -1),
		r("show_edge", `\b(?:show|display)\s+(?:me\s+)?(?:the\s+)?(?:footer|header|top|bottom)\b`, -1),
		r("last_section", `\b(?:last|final)\s+section\b`, -1),
		r("bare_direction", `^(?:page\s+)?(?:up|down)$`, -1),
		r("scroll", `^scroll\b`, -1),
	}
	clickRules = []rule{
		r("click_verb", `\b(?:click|press|tap|select|choose)\s+(?:on\s+)?(?:the\s+)?(.+)`, 1),
		r("open", `\bopen\s+(?:the\s+)?(.+)`, 1),
		r("go_to", `\b(?:go to|goto)\s+(?:the\s+)?(.+)`, 1),
		r("control_word", `\b(?:button|link|tab|modal|dialog)\b`, -1),
		r("sign_in", `\b(?:sign|log)\s+(?:in|up)\b`, 0),
		r("keyword", `\b(subscribe|contact|pricing|features|settings|analytics|login)\b`, 1),
	}
	fillRules = []rule{
		r("fill_with", `\b(?:fill|set|update)\s+.+\s+(?:with|to|as)\s+.+`, -1),
		r("fill_verb", `\b(?:type|enter|fill|input|write|put)\s+(.+)`, -1),
		r("search", `\bsearch\s+(?:for\s+)?(.+)`, -1),
		r("look_up", `\blook\s+up\s+(.+)`, -1),
		r("email_word", `\be-?mail\b`, -1),
		r("email_literal", `@`, -1),
		r("email_spoken", `\bat\b.*\bdot\b`, -1),
	}
	toggleRules = []rule{
		r("toggle", `\btoggle\s+(.+)`, -1),
		r("enable", `\b(?:enable|disable)\s+(.+)`, -1),
		r("turn_on_off", `\b(?:turn|switch)\s+(?:on|off)\b`, -1),
		r("turn_x_on_off", `\b(?:turn|switch)\s+.+\s+(?:on|off)\b`, -1),
		r("select_plan", `\bselect\s+(?:basic|pro|enterprise)\s+plan\b`, -1),
	}
)

var genericTables = []struct {
	kind  Kind
	rules []rule
}{
	{KindScroll, scrollRules},
	{KindClick, clickRules},
	{KindFill, fillRules},
	{KindToggle, toggleRules},
}

// PatternOption configures a [PatternClassifier].
type PatternOption func(*PatternClassifier)

// WithAliases merges extra page-name aliases over [DefaultAliases].
func WithAliases(extra map[string]string) PatternOption {
	return func(p *PatternClassifier) {
		p.aliases.Store(NewAliases(extra))
	}
}

// WithMatcher replaces the phonetic matcher used for misheard page names.
func WithMatcher(m *phonetic.Matcher) PatternOption {
	return func(p *PatternClassifier) {
		if m != nil {
			p.matcher = m
		}
	}
}

// PatternClassifier is the deterministic classifier. Rules are tried in a
// fixed precedence: popup dismissal, back navigation, page navigation, then
// the scroll, click, fill and toggle tables. It never returns an error.
//
// The alias table can be swapped at runtime with [PatternClassifier.SetAliases].
type PatternClassifier struct {
	aliases atomic.Pointer[Aliases]
	matcher *phonetic.Matcher
}

var _ Classifier = (*PatternClassifier)(nil)

// NewPatternClassifier returns a [PatternClassifier] using [DefaultAliases].
func NewPatternClassifier(opts ...PatternOption) *PatternClassifier {
	p := &PatternClassifier{matcher: phonetic.New()}
	p.aliases.Store(NewAliases(nil))
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetAliases replaces the alias table with extra merged over the defaults.
func (p *PatternClassifier) SetAliases(extra map[string]string) {
	p.aliases.Store(NewAliases(extra))
}

// Aliases returns the current alias table.
func (p *PatternClassifier) Aliases() *Aliases {
	return p.aliases.Load()
}

// Classify implements [Classifier].
func (p *PatternClassifier) Classify(_ context.Context, req Request) (Result, error) {
	t := normalize.Normalize(req.Transcript)
	if t == "" {
		return unknownResult(SourcePattern), nil
	}
	if res, ok := p.dismiss(t); ok {
		return res, nil
	}
	if res, ok := p.back(t, req.CurrentURL); ok {
		return res, nil
	}
	if res, ok := p.Navigate(t); ok {
		return res, nil
	}
	if res, ok := p.generic(t, req.Transcript); ok {
		return res, nil
	}
	return unknownResult(SourcePattern), nil
}

func matched(ruleName string, action Action) Result {
	return Result{
		Kind:       action.Kind,
		Confidence: patternConfidence,
		Action:     action,
		Source:     SourcePattern,
		Metadata:   map[string]any{"rule": ruleName},
	}
}

func (p *PatternClassifier) dismiss(t string) (Result, bool) {
	for _, rl := range dismissRules {
		if rl.re.MatchString(t) {
			return matched(rl.name, Action{Kind: KindClick, TargetText: AcknowledgeTarget, Role: "button"}), true
		}
	}
	return Result{}, false
}

func (p *PatternClassifier) back(t, currentURL string) (Result, bool) {
	a := p.aliases.Load()
	if m := a.backToRe.FindStringSubmatch(t); m != nil {
		if dest, ok := a.Canonical(m[1]); ok {
			return navResult("back_to_page", dest), true
		}
	}
	if scrollWordRe.MatchString(t) {
		return Result{}, false
	}
	for _, re := range backRes {
		if !re.MatchString(t) {
			continue
		}
		if IsHome(currentURL) {
			return matched("back_on_home", Action{Kind: KindScroll, Direction: extract.Top}), true
		}
		return matched("back", Action{Kind: KindClick, TargetText: "home", Role: "link"}), true
	}
	return Result{}, false
}

func navResult(ruleName, dest string) Result {
	res := matched(ruleName, Action{Kind: KindClick, TargetText: dest, Role: "link"})
	res.Metadata["destination"] = dest
	return res
}

// Navigate reports whether normalized transcript t names a page to
// navigate to: "go to pricing", "features section", a bare page name, or a
// misheard page name after a navigation verb.
func (p *PatternClassifier) Navigate(t string) (Result, bool) {
	a := p.aliases.Load()

	if m := navVerbRe.FindStringSubmatch(t); m != nil {
		rest := strings.TrimSpace(pageSuffixRe.ReplaceAllString(m[1], ""))
		if dest, ok := a.Canonical(rest); ok {
			return navResult("navigate", dest), true
		}
		if rest != "" && !strings.Contains(rest, " ") {
			if term, score, ok := p.matcher.Match(rest, a.singles); ok {
				dest, _ := a.Canonical(term)
				res := navResult("navigate_phonetic", dest)
				res.Metadata["heard"] = rest
				res.Metadata["similarity"] = score
				return res, true
			}
		}
	}
	if m := a.sectRe.FindStringSubmatch(t); m != nil {
		if dest, ok := a.Canonical(m[1]); ok {
			return navResult("page_section", dest), true
		}
	}
	if m := a.bareRe.FindStringSubmatch(t); m != nil {
		if dest, ok := a.Canonical(m[1]); ok {
			return navResult("page_name", dest), true
		}
	}

	words := strings.Fields(t)
	if len(words) > 4 || scrollVerbRe.MatchString(t) {
		return Result{}, false
	}
	for _, loc := range a.anyRe.FindAllStringSubmatchIndex(t, -1) {
		name := t[loc[2]:loc[3]]
		if isAmbiguous(name) {
			continue
		}
		if next := strings.Fields(t[loc[1]:]); len(next) > 0 && navStopWords[next[0]] {
			continue
		}
		if dest, ok := a.Canonical(name); ok {
			return navResult("page_mention", dest), true
		}
	}
	return Result{}, false
}

func isAmbiguous(name string) bool {
	for _, a := range ambiguousAliases {
		if a == name {
			return true
		}
	}
	return false
}

func (p *PatternClassifier) generic(t, raw string) (Result, bool) {
	for _, table := range genericTables {
		for _, rl := range table.rules {
			m := rl.re.FindStringSubmatch(t)
			if m == nil {
				continue
			}
			action, err := buildAction(table.kind, rl, m, t, raw)
			if err != nil {
				return withheldResult(table.kind, rl.name, err), true
			}
			return matched(rl.name, action), true
		}
	}
	return Result{}, false
}

// buildAction fills in the parameters of a matched rule using the argument
// extractors. It fails when a fill has no value or a toggle no target.
func buildAction(kind Kind, rl rule, m []string, t, raw string) (Action, error) {
	switch kind {
	case KindScroll:
		return Action{Kind: KindScroll, Direction: extract.Scroll(t, extract.Explicit{}).Direction}, nil
	case KindClick:
		args := extract.Click(t, extract.Explicit{})
		if args.TargetText == "" && args.Nth == 0 && rl.targetGroup >= 0 && rl.targetGroup < len(m) {
			args.TargetText = normalize.SanitizeTarget(m[rl.targetGroup])
		}
		return Action{Kind: KindClick, TargetText: args.TargetText, Selector: args.Selector, Nth: args.Nth, Role: args.Role}, nil
	case KindFill:
		args, err := extract.Fill(raw, extract.Explicit{})
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: KindFill, Value: args.Value, FieldHint: args.FieldHint, Selector: args.Selector, Submit: BoolPtr(args.Submit)}, nil
	case KindToggle:
		args, err := extract.Toggle(t, extract.Explicit{})
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: KindToggle, Target: args.Target}, nil
	}
	return Action{Kind: KindUnknown}, nil
}

// withheldResult keeps the recognized intent of a rule whose arguments could
// not be extracted but carries no executable action. Callers that buffer
// partial input, such as a spoken email started with "enter my email", still
// see the intent.
func withheldResult(kind Kind, ruleName string, err error) Result {
	res := matched(ruleName, Action{Kind: KindUnknown})
	res.Kind = kind
	res.Metadata["withheld"] = err.Error()
	return res
}

// IsHome reports whether rawURL is a site's home page. Unknown or
// placeholder URLs are not home.
func IsHome(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "about" {
		return false
	}
	switch strings.TrimSuffix(u.Path, "/") {
	case "", "/index.html", "/home":
		return true
	}
	return false
}
