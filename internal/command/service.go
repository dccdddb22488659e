// Package command turns one spoken command into one dispatched action.
//
// [Service.Handle] is the end-to-end path: placeholder defaults,
// normalization, ASR fixes, email fragment buffering, classification,
// argument refinement, optional value normalization, dispatch and session
// memory. The per-tool handlers ([Service.Scroll] and friends) skip
// classification and run a single extractor; they back the voice-platform
// webhook, the MCP tools and the /v1/tools routes.
package command

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/voicenav/internal/content"
	"github.com/MrWong99/voicenav/internal/dispatch"
	"github.com/MrWong99/voicenav/internal/email"
	"github.com/MrWong99/voicenav/internal/extract"
	"github.com/MrWong99/voicenav/internal/intent"
	"github.com/MrWong99/voicenav/internal/normalize"
	"github.com/MrWong99/voicenav/internal/observe"
)

// Status is the outcome category of a command.
type Status string

const (
	// StatusOK means an action was resolved and dispatched.
	StatusOK Status = "ok"

	// StatusNoAction means nothing was done: empty input, assistant echo or
	// an unrecognized command.
	StatusNoAction Status = "no_action"

	// StatusWithheld means an action was recognized but not dispatched
	// because a required parameter was missing.
	StatusWithheld Status = "withheld"

	// StatusBuffering means an email fragment was buffered and the fill
	// will follow once the address is complete.
	StatusBuffering Status = "buffering"
)

// Placeholder ids and URLs some voice platforms send when they have none.
var (
	placeholderSessions = []string{"", "user_session", "undefined", "null"}
	placeholderURLs     = []string{"", "current_page", "undefined", "null"}
)

// contentHints are the field kinds passed through the value normalizer.
var contentHints = []string{"name", "phone", "address", "company"}

// Request is an inbound command. Every field except Transcript is an
// optional explicit override.
type Request struct {
	SessionID  string `json:"sessionId"`
	URL        string `json:"url"`
	Transcript string `json:"transcript"`

	Direction  string `json:"direction,omitempty"`
	TargetText string `json:"targetText,omitempty"`
	Selector   string `json:"selector,omitempty"`
	Nth        int    `json:"nth,omitempty"`
	Role       string `json:"role,omitempty"`
	Value      string `json:"value,omitempty"`
	FieldHint  string `json:"fieldHint,omitempty"`
	Submit     *bool  `json:"submit,omitempty"`
	Target     string `json:"target,omitempty"`
}

func (r Request) explicit() extract.Explicit {
	return extract.Explicit{
		Direction:  r.Direction,
		TargetText: r.TargetText,
		Selector:   r.Selector,
		Nth:        r.Nth,
		Role:       r.Role,
		Value:      r.Value,
		FieldHint:  r.FieldHint,
		Submit:     r.Submit,
		Target:     r.Target,
	}
}

// Response is the result of a command.
type Response struct {
	ID             string         `json:"id,omitempty"`
	SessionID      string         `json:"sessionId"`
	Status         Status         `json:"status"`
	Action         intent.Action  `json:"action"`
	Speak          string         `json:"speak,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Classification *intent.Result `json:"classification,omitempty"`
}

// Decider classifies a command without touching session memory. It returns
// the transcript the decision was made on.
type Decider interface {
	Decide(ctx context.Context, req intent.Request) (intent.Result, string)
}

// Publisher delivers resolved actions to the page.
type Publisher interface {
	Publish(ev dispatch.Event) int
}

// ContentNormalizer cleans dictated field values.
type ContentNormalizer interface {
	Normalize(ctx context.Context, value, hint, transcript string) (content.Result, error)
}

// Defaults are substituted for placeholder session ids and URLs.
type Defaults struct {
	SessionID string
	URL       string
}

// Option configures a [Service].
type Option func(*Service)

// WithMemory records every dispatched action in m.
func WithMemory(m intent.Memory) Option {
	return func(s *Service) { s.memory = m }
}

// WithPublisher sends every dispatched action to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithContentNormalizer passes name, phone, address and company values
// through n.
func WithContentNormalizer(n ContentNormalizer) Option {
	return func(s *Service) { s.content = n }
}

// WithEmailBuffer enables spoken-email fragment buffering with the given
// quiet period. Zero uses [email.DefaultQuietPeriod].
func WithEmailBuffer(quiet time.Duration) Option {
	return func(s *Service) { s.bufferQuiet, s.buffered = quiet, true }
}

// WithDefaults overrides the placeholder substitutes.
func WithDefaults(d Defaults) Option {
	return func(s *Service) {
		if d.SessionID != "" {
			s.defaults.SessionID = d.SessionID
		}
		if d.URL != "" {
			s.defaults.URL = d.URL
		}
	}
}

// WithServiceMetrics records command outcomes on m.
func WithServiceMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service resolves commands. It is safe for concurrent use.
type Service struct {
	decider   Decider
	memory    intent.Memory
	publisher Publisher
	content   ContentNormalizer
	metrics   *observe.Metrics
	defaults  Defaults

	buffered    bool
	bufferQuiet time.Duration
	buffer      *email.Buffer
}

// New returns a [Service] classifying with d.
func New(d Decider, opts ...Option) *Service {
	s := &Service{
		decider:  d,
		defaults: Defaults{SessionID: "vapi-dev", URL: "about:blank"},
	}
	for _, o := range opts {
		o(s)
	}
	if s.buffered {
		s.buffer = email.NewBuffer(s.bufferQuiet, s.flushEmail)
	}
	return s
}

// SetQuietPeriod changes the email buffer quiet period.
func (s *Service) SetQuietPeriod(d time.Duration) {
	if s.buffer != nil {
		s.buffer.SetQuietPeriod(d)
	}
}

// Close cancels pending email buffer timers.
func (s *Service) Close() {
	if s.buffer != nil {
		s.buffer.Close()
	}
}

// Resolve applies the placeholder defaults to a session id and URL.
func (s *Service) Resolve(sessionID, url string) (string, string) {
	if slices.Contains(placeholderSessions, strings.TrimSpace(sessionID)) {
		sessionID = s.defaults.SessionID
	}
	if slices.Contains(placeholderURLs, strings.TrimSpace(url)) {
		url = s.defaults.URL
	}
	return sessionID, url
}

// Handle resolves and dispatches one command. It never fails: every input
// yields a well-formed [Response].
func (s *Service) Handle(ctx context.Context, req Request) Response {
	req.SessionID, req.URL = s.Resolve(req.SessionID, req.URL)
	log := observe.Logger(ctx).With("session_id", req.SessionID)

	t := normalize.Normalize(req.Transcript)
	if t == "" {
		return s.noAction(ctx, req.SessionID, "empty transcript")
	}
	if normalize.IsAssistantEcho(t) {
		log.Debug("command: ignoring assistant echo", "transcript", t)
		return s.noAction(ctx, req.SessionID, "assistant echo")
	}

	transcript, asrFixed := req.Transcript, false
	if fixed, ok := normalize.FixASR(t); ok {
		log.Debug("command: applied asr fix", "from", t, "to", fixed)
		transcript, asrFixed = fixed, true
	}

	if s.buffer != nil && s.buffer.Pending(req.SessionID) && email.IsEmailish(req.Transcript) {
		phrase, complete := s.buffer.Add(req.SessionID, req.Transcript)
		if !complete {
			return s.buffering(ctx, req.SessionID)
		}
		s.recordFlush(ctx, "complete")
		return s.emailFill(ctx, req, phrase, nil)
	}

	res, decided := s.decider.Decide(ctx, intent.Request{
		Transcript: transcript,
		SessionID:  req.SessionID,
		CurrentURL: req.URL,
	})

	var (
		action intent.Action
		err    error
	)
	switch res.Kind {
	case intent.KindScroll:
		action = s.refineScroll(decided, req, res.Action)
	case intent.KindClick:
		action = s.refineClick(decided, req, res.Action)
	case intent.KindFill:
		// Fill values are typed as spoken, never from the ASR correction.
		fillText, classified := decided, res.Action
		if asrFixed && decided == transcript {
			fillText, classified.Value = req.Transcript, ""
		}
		var args extract.FillArgs
		args, err = extract.Fill(fillText, fillExplicit(req, classified))
		if s.shouldBuffer(args, err) {
			phrase, complete := s.buffer.Add(req.SessionID, fillText)
			if !complete {
				return s.buffering(ctx, req.SessionID)
			}
			s.recordFlush(ctx, "complete")
			return s.emailFill(ctx, req, phrase, &res)
		}
		action = fillAction(args)
		if err == nil {
			action.Value = s.normalizeValue(ctx, action.FieldHint, action.Value, fillText)
			s.recordEmail(ctx, args)
		}
	case intent.KindToggle:
		ex := req.explicit()
		if ex.Target == "" {
			ex.Target = res.Action.Target
		}
		var args extract.ToggleArgs
		args, err = extract.Toggle(decided, ex)
		action = intent.Action{Kind: intent.KindToggle, Target: args.Target}
	default:
		resp := s.noAction(ctx, req.SessionID, "unrecognized command")
		resp.Classification = &res
		return resp
	}

	if err != nil {
		log.Info("command: withholding action", "intent", res.Kind, "reason", err)
		resp := s.withheld(ctx, req.SessionID, action, err)
		resp.Classification = &res
		return resp
	}
	resp := s.dispatch(ctx, req.SessionID, decided, action, res.Source)
	resp.Classification = &res
	return resp
}

func (s *Service) refineScroll(transcript string, req Request, classified intent.Action) intent.Action {
	ex := req.explicit()
	if ex.Direction == "" {
		ex.Direction = classified.Direction
	}
	return intent.Action{Kind: intent.KindScroll, Direction: extract.Scroll(transcript, ex).Direction}
}

func (s *Service) refineClick(transcript string, req Request, classified intent.Action) intent.Action {
	ex := req.explicit()
	if ex.TargetText == "" {
		ex.TargetText = classified.TargetText
	}
	if ex.Selector == "" {
		ex.Selector = classified.Selector
	}
	if ex.Nth == 0 {
		ex.Nth = classified.Nth
	}
	if ex.Role == "" {
		ex.Role = classified.Role
	}
	args := extract.Click(transcript, ex)
	return intent.Action{Kind: intent.KindClick, TargetText: args.TargetText, Selector: args.Selector, Nth: args.Nth, Role: args.Role}
}

func fillExplicit(req Request, classified intent.Action) extract.Explicit {
	ex := req.explicit()
	if ex.Value == "" {
		ex.Value = classified.Value
	}
	if ex.FieldHint == "" {
		ex.FieldHint = classified.FieldHint
	}
	if ex.Selector == "" {
		ex.Selector = classified.Selector
	}
	if ex.Submit == nil {
		ex.Submit = classified.Submit
	}
	return ex
}

func fillAction(args extract.FillArgs) intent.Action {
	return intent.Action{
		Kind:      intent.KindFill,
		Value:     args.Value,
		FieldHint: args.FieldHint,
		Selector:  args.Selector,
		Submit:    intent.BoolPtr(args.Submit),
	}
}

// shouldBuffer reports whether a fill is a partial spoken email that should
// wait for more fragments.
func (s *Service) shouldBuffer(args extract.FillArgs, err error) bool {
	if s.buffer == nil || !args.EmailContext {
		return false
	}
	return errors.Is(err, extract.ErrEmptyValue) || !email.Valid(args.Value)
}

// emailFill turns a complete buffered phrase into a dispatched fill.
func (s *Service) emailFill(ctx context.Context, req Request, phrase string, res *intent.Result) Response {
	ex := req.explicit()
	if ex.FieldHint == "" {
		ex.FieldHint = "email"
	}
	args, err := extract.Fill(phrase, ex)
	action := fillAction(args)
	if err != nil {
		return s.withheld(ctx, req.SessionID, action, err)
	}
	s.recordEmail(ctx, args)
	source := intent.SourcePattern
	if res != nil {
		source = res.Source
	}
	resp := s.dispatch(ctx, req.SessionID, phrase, action, source)
	resp.Classification = res
	return resp
}

// flushEmail is the buffer callback for phrases that went quiet before they
// looked complete.
func (s *Service) flushEmail(sessionID, phrase string) {
	ctx := context.Background()
	s.recordFlush(ctx, "quiet_period")
	args, err := extract.Fill(phrase, extract.Explicit{FieldHint: "email"})
	if err != nil {
		slog.Info("command: dropping empty email flush", "session_id", sessionID)
		return
	}
	s.recordEmail(ctx, args)
	s.dispatch(ctx, sessionID, phrase, fillAction(args), intent.SourcePattern)
}

func (s *Service) normalizeValue(ctx context.Context, hint, value, transcript string) string {
	if s.content == nil || !slices.Contains(contentHints, hint) {
		return value
	}
	res, err := s.content.Normalize(ctx, value, hint, transcript)
	if err != nil {
		observe.Logger(ctx).Warn("command: content normalization failed, keeping value", "field_hint", hint, "err", err)
	}
	if res.NormalizedValue == "" {
		return value
	}
	return res.NormalizedValue
}

// dispatch publishes action, records it in session memory and builds the
// success response.
func (s *Service) dispatch(ctx context.Context, sessionID, transcript string, action intent.Action, source intent.Source) Response {
	resp := Response{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Status:    StatusOK,
		Action:    action,
		Speak:     Speak(action),
	}
	if s.publisher != nil {
		s.publisher.Publish(dispatch.Event{
			ID:        resp.ID,
			SessionID: sessionID,
			Action:    action,
			Speak:     resp.Speak,
			Source:    source,
			Timestamp: time.Now(),
		})
	}
	if s.memory != nil {
		s.memory.Record(sessionID, normalize.Normalize(transcript), action)
	}
	s.recordCommand(ctx, string(action.Kind), string(source), StatusOK)
	return resp
}

func (s *Service) noAction(ctx context.Context, sessionID, reason string) Response {
	s.recordCommand(ctx, string(intent.KindUnknown), "", StatusNoAction)
	return Response{
		SessionID: sessionID,
		Status:    StatusNoAction,
		Action:    intent.Action{Kind: intent.KindUnknown},
		Reason:    reason,
	}
}

func (s *Service) withheld(ctx context.Context, sessionID string, action intent.Action, err error) Response {
	s.recordCommand(ctx, string(action.Kind), "", StatusWithheld)
	return Response{
		SessionID: sessionID,
		Status:    StatusWithheld,
		Action:    action,
		Reason:    err.Error(),
	}
}

func (s *Service) buffering(ctx context.Context, sessionID string) Response {
	s.recordCommand(ctx, string(intent.KindFill), "", StatusBuffering)
	return Response{
		SessionID: sessionID,
		Status:    StatusBuffering,
		Action:    intent.Action{Kind: intent.KindUnknown},
		Reason:    "waiting for the rest of the email address",
	}
}

func (s *Service) recordCommand(ctx context.Context, kind, source string, status Status) {
	if s.metrics != nil {
		s.metrics.RecordCommand(ctx, kind, source, string(status))
	}
}

func (s *Service) recordFlush(ctx context.Context, trigger string) {
	if s.metrics != nil {
		s.metrics.RecordEmailFlush(ctx, trigger)
	}
}

func (s *Service) recordEmail(ctx context.Context, args extract.FillArgs) {
	if s.metrics == nil || !args.EmailContext {
		return
	}
	outcome := "unchanged"
	if email.Valid(args.Value) {
		outcome = "rebuilt"
	}
	s.metrics.RecordEmail(ctx, outcome)
}
