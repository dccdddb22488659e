package command_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/internal/content"
	"github.com/MrWong99/voicenav/internal/dispatch"
	"github.com/MrWong99/voicenav/internal/intent"
	"github.com/MrWong99/voicenav/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is a Publisher that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []dispatch.Event
	notify chan struct{}
}

func newRecorder() *recorder { return &recorder{notify: make(chan struct{}, 16)} }

func (r *recorder) Publish(ev dispatch.Event) int {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return 1
}

func (r *recorder) all() []dispatch.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatch.Event(nil), r.events...)
}

// stubDecider returns a fixed result.
type stubDecider struct{ res intent.Result }

func (d stubDecider) Decide(_ context.Context, req intent.Request) (intent.Result, string) {
	return d.res, req.Transcript
}

type fixture struct {
	svc   *command.Service
	store *session.Store
	pub   *recorder
}

func newFixture(t *testing.T, opts ...command.Option) fixture {
	t.Helper()
	store := session.NewStore()
	pub := newRecorder()
	dec := intent.NewFallback(nil, nil, intent.WithMemory(store))
	base := []command.Option{command.WithMemory(store), command.WithPublisher(pub)}
	svc := command.New(dec, append(base, opts...)...)
	t.Cleanup(svc.Close)
	return fixture{svc: svc, store: store, pub: pub}
}

func TestHandle_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		transcript string
		want       intent.Action
		wantSpeak  string
	}{
		{
			name:       "scroll to top",
			transcript: "scroll to the top",
			want:       intent.Action{Kind: intent.KindScroll, Direction: "top"},
			wantSpeak:  "Scrolling top",
		},
		{
			name:       "click named control",
			transcript: "click on watch demo",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "watch demo"},
			wantSpeak:  "Clicking watch demo",
		},
		{
			name:       "dictated email",
			transcript: "my email is john at gmail dot com",
			want: intent.Action{
				Kind: intent.KindFill, Value: "john@gmail.com",
				FieldHint: "email", Submit: intent.BoolPtr(false),
			},
			wantSpeak: "Filling email with john@gmail.com",
		},
		{
			name:       "search submits",
			transcript: "search for laptops under five hundred",
			want: intent.Action{
				Kind: intent.KindFill, Value: "laptops under five hundred",
				FieldHint: "search", Submit: intent.BoolPtr(true),
			},
			wantSpeak: "Filling search with laptops under five hundred",
		},
		{
			name:       "ordinal click",
			transcript: "click the second button",
			want:       intent.Action{Kind: intent.KindClick, Nth: 2, Role: "button"},
			wantSpeak:  "Clicking",
		},
		{
			name:       "misheard acknowledgement",
			transcript: "bot it",
			want:       intent.Action{Kind: intent.KindClick, TargetText: "got it", Role: "button"},
			wantSpeak:  "Clicking got it",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			resp := f.svc.Handle(context.Background(), command.Request{SessionID: "s1", Transcript: tt.transcript})
			if resp.Status != command.StatusOK {
				t.Fatalf("Status = %q (%s)", resp.Status, resp.Reason)
			}
			if diff := cmp.Diff(tt.want, resp.Action); diff != "" {
				t.Errorf("Action mismatch (-want +got):\n%s", diff)
			}
			if resp.Speak != tt.wantSpeak {
				t.Errorf("Speak = %q, want %q", resp.Speak, tt.wantSpeak)
			}
			if resp.ID == "" || resp.Classification == nil {
				t.Errorf("ID = %q, Classification = %v", resp.ID, resp.Classification)
			}

			evs := f.pub.all()
			if len(evs) != 1 || evs[0].ID != resp.ID || evs[0].SessionID != "s1" {
				t.Fatalf("events = %+v", evs)
			}
			if diff := cmp.Diff(tt.want, evs[0].Action); diff != "" {
				t.Errorf("event action mismatch (-want +got):\n%s", diff)
			}
			if n := len(f.store.History("s1")); n != 1 {
				t.Errorf("history length = %d, want 1", n)
			}
		})
	}
}

func TestHandle_PronounFollowUp(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first := f.svc.Handle(ctx, command.Request{SessionID: "s1", Transcript: "toggle dark mode"})
	if first.Status != command.StatusOK || first.Action.Target != "dark mode" {
		t.Fatalf("first = %+v", first)
	}
	second := f.svc.Handle(ctx, command.Request{SessionID: "s1", Transcript: "turn it off"})
	want := intent.Action{Kind: intent.KindToggle, Target: "dark mode"}
	if diff := cmp.Diff(want, second.Action); diff != "" {
		t.Errorf("Action mismatch (-want +got):\n%s", diff)
	}
	if got := second.Classification.Metadata["original_transcript"]; got != "turn it off" {
		t.Errorf("original_transcript = %v", got)
	}
}

func TestHandle_AcknowledgeAfterToggle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if first := f.svc.Handle(ctx, command.Request{SessionID: "s2", Transcript: "toggle dark mode"}); first.Status != command.StatusOK {
		t.Fatalf("first = %+v", first)
	}
	resp := f.svc.Handle(ctx, command.Request{SessionID: "s2", Transcript: "click got it"})
	if resp.Status != command.StatusOK {
		t.Fatalf("Status = %q (%s)", resp.Status, resp.Reason)
	}
	if resp.Action.Kind != intent.KindClick || resp.Action.TargetText != "got it" {
		t.Errorf("Action = %+v, want click on got it", resp.Action)
	}
}

func TestHandle_FillKeepsSpokenValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		transcript string
		want       intent.Action
	}{
		{
			name:       "set field",
			transcript: "set the name field to John",
			want:       intent.Action{Kind: intent.KindFill, Value: "John", FieldHint: "name", Submit: intent.BoolPtr(false)},
		},
		{
			name:       "update field",
			transcript: "update my phone number to 555 1234",
			want:       intent.Action{Kind: intent.KindFill, Value: "555 1234", FieldHint: "phone", Submit: intent.BoolPtr(false)},
		},
		{
			name:       "asr confusion inside value",
			transcript: "type I bought it on Monday",
			want:       intent.Action{Kind: intent.KindFill, Value: "I bought it on Monday", Submit: intent.BoolPtr(false)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			resp := f.svc.Handle(context.Background(), command.Request{SessionID: "s1", Transcript: tt.transcript})
			if resp.Status != command.StatusOK {
				t.Fatalf("Status = %q (%s)", resp.Status, resp.Reason)
			}
			if diff := cmp.Diff(tt.want, resp.Action); diff != "" {
				t.Errorf("Action mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHandle_NoAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		transcript string
		wantReason string
	}{
		{name: "empty", transcript: "", wantReason: "empty transcript"},
		{name: "whitespace", transcript: "   ", wantReason: "empty transcript"},
		{name: "assistant echo", transcript: "I'll navigate you to the pricing page", wantReason: "assistant echo"},
		{name: "unrecognized", transcript: "what a lovely afternoon", wantReason: "unrecognized command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			resp := f.svc.Handle(context.Background(), command.Request{SessionID: "s1", Transcript: tt.transcript})
			if resp.Status != command.StatusNoAction || resp.Reason != tt.wantReason {
				t.Errorf("got status %q reason %q, want no_action %q", resp.Status, resp.Reason, tt.wantReason)
			}
			if resp.Action.Kind != intent.KindUnknown {
				t.Errorf("Action.Kind = %q", resp.Action.Kind)
			}
			if evs := f.pub.all(); len(evs) != 0 {
				t.Errorf("published %+v", evs)
			}
		})
	}
}

func TestHandle_Placeholders(t *testing.T) {
	t.Parallel()
	f := newFixture(t, command.WithDefaults(command.Defaults{SessionID: "local"}))

	resp := f.svc.Handle(context.Background(), command.Request{
		SessionID:  "user_session",
		URL:        "current_page",
		Transcript: "scroll down",
	})
	if resp.SessionID != "local" {
		t.Errorf("SessionID = %q, want local", resp.SessionID)
	}
	if _, ok := f.store.Get("local"); !ok {
		t.Error("action not recorded under the default session")
	}

	sid, url := f.svc.Resolve("", "")
	if sid != "local" || url != "about:blank" {
		t.Errorf("Resolve = %q, %q", sid, url)
	}
}

func TestHandle_ExplicitFieldsWin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp := f.svc.Handle(context.Background(), command.Request{
		SessionID:  "s1",
		Transcript: "scroll to the top",
		Direction:  "bottom",
	})
	if resp.Action.Direction != "bottom" {
		t.Errorf("Direction = %q, want bottom", resp.Action.Direction)
	}
}

func TestHandle_Withheld(t *testing.T) {
	t.Parallel()
	pub := newRecorder()
	dec := stubDecider{res: intent.Result{Kind: intent.KindToggle, Action: intent.Action{Kind: intent.KindToggle}}}
	svc := command.New(dec, command.WithPublisher(pub))

	resp := svc.Handle(context.Background(), command.Request{SessionID: "s1", Transcript: "flip the thing"})
	if resp.Status != command.StatusWithheld {
		t.Fatalf("Status = %q, want withheld", resp.Status)
	}
	if resp.Reason == "" || len(pub.all()) != 0 {
		t.Errorf("reason = %q, events = %d", resp.Reason, len(pub.all()))
	}
}

func TestHandle_EmailFragments(t *testing.T) {
	t.Parallel()
	f := newFixture(t, command.WithEmailBuffer(time.Minute))
	ctx := context.Background()

	first := f.svc.Handle(ctx, command.Request{SessionID: "s1", Transcript: "my email is john at"})
	if first.Status != command.StatusBuffering {
		t.Fatalf("first Status = %q (%+v)", first.Status, first.Action)
	}
	second := f.svc.Handle(ctx, command.Request{SessionID: "s1", Transcript: "gmail dot com"})
	if second.Status != command.StatusOK {
		t.Fatalf("second Status = %q (%s)", second.Status, second.Reason)
	}
	if second.Action.Value != "john@gmail.com" || second.Action.FieldHint != "email" {
		t.Errorf("Action = %+v", second.Action)
	}
	if evs := f.pub.all(); len(evs) != 1 {
		t.Errorf("published %d events, want 1", len(evs))
	}
}

func TestHandle_EmailQuietPeriodFlush(t *testing.T) {
	t.Parallel()
	f := newFixture(t, command.WithEmailBuffer(20*time.Millisecond))

	resp := f.svc.Handle(context.Background(), command.Request{SessionID: "s1", Transcript: "my email is jane at"})
	if resp.Status != command.StatusBuffering {
		t.Fatalf("Status = %q", resp.Status)
	}
	select {
	case <-f.pub.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("no flush after quiet period")
	}
	evs := f.pub.all()
	if len(evs) != 1 || evs[0].Action.Kind != intent.KindFill || evs[0].Action.FieldHint != "email" {
		t.Errorf("events = %+v", evs)
	}
}

// upper is a content normalizer that uppercases names.
type upper struct{ calls int }

func (u *upper) Normalize(_ context.Context, value, hint, _ string) (content.Result, error) {
	u.calls++
	if hint == "phone" {
		return content.Result{OriginalValue: value}, errors.New("model down")
	}
	return content.Result{OriginalValue: value, NormalizedValue: "Jane Doe", FieldHint: hint, Changed: true}, nil
}

func TestFill_ContentNormalizer(t *testing.T) {
	t.Parallel()
	norm := &upper{}
	f := newFixture(t, command.WithContentNormalizer(norm))
	ctx := context.Background()

	resp := f.svc.Fill(ctx, command.Request{SessionID: "s1", Value: "jane doe", FieldHint: "name"})
	if resp.Action.Value != "Jane Doe" {
		t.Errorf("name Value = %q", resp.Action.Value)
	}
	resp = f.svc.Fill(ctx, command.Request{SessionID: "s1", Value: "555 0100", FieldHint: "phone"})
	if resp.Status != command.StatusOK || resp.Action.Value != "555 0100" {
		t.Errorf("phone resp = %+v", resp)
	}
	resp = f.svc.Fill(ctx, command.Request{SessionID: "s1", Value: "boots", FieldHint: "search"})
	if resp.Action.Value != "boots" {
		t.Errorf("search Value = %q", resp.Action.Value)
	}
	if norm.calls != 2 {
		t.Errorf("normalizer calls = %d, want 2", norm.calls)
	}
}

func TestExecute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tool       string
		req        command.Request
		wantStatus command.Status
		want       intent.Action
	}{
		{
			tool:       "scroll",
			req:        command.Request{},
			wantStatus: command.StatusOK,
			want:       intent.Action{Kind: intent.KindScroll, Direction: "down"},
		},
		{
			tool:       command.ToolClick,
			req:        command.Request{TargetText: "Sign Up!"},
			wantStatus: command.StatusOK,
			want:       intent.Action{Kind: intent.KindClick, TargetText: "sign up"},
		},
		{
			tool:       "fill_field",
			req:        command.Request{Transcript: "type hello world into the message box"},
			wantStatus: command.StatusOK,
			want:       intent.Action{Kind: intent.KindFill, Value: "hello world", FieldHint: "message", Submit: intent.BoolPtr(false)},
		},
		{
			tool:       "fill_field",
			req:        command.Request{Transcript: "type Bought It Books into the search box"},
			wantStatus: command.StatusOK,
			want:       intent.Action{Kind: intent.KindFill, Value: "Bought It Books", FieldHint: "search", Submit: intent.BoolPtr(true)},
		},
		{
			tool:       "fill",
			req:        command.Request{FieldHint: "name"},
			wantStatus: command.StatusWithheld,
		},
		{
			tool:       "toggle",
			req:        command.Request{Target: "Notifications"},
			wantStatus: command.StatusOK,
			want:       intent.Action{Kind: intent.KindToggle, Target: "notifications"},
		},
		{
			tool:       "toggle_element",
			req:        command.Request{},
			wantStatus: command.StatusWithheld,
		},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			resp, err := f.svc.Execute(context.Background(), tt.tool, tt.req)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Fatalf("Status = %q, want %q (%s)", resp.Status, tt.wantStatus, resp.Reason)
			}
			if tt.wantStatus != command.StatusOK {
				return
			}
			if diff := cmp.Diff(tt.want, resp.Action); diff != "" {
				t.Errorf("Action mismatch (-want +got):\n%s", diff)
			}
			if evs := f.pub.all(); len(evs) != 1 || evs[0].Source != intent.SourceTool {
				t.Errorf("events = %+v", evs)
			}
		})
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if _, err := f.svc.Execute(context.Background(), "teleport", command.Request{}); !errors.Is(err, command.ErrUnknownTool) {
		t.Errorf("err = %v, want ErrUnknownTool", err)
	}
}

func TestSpeak(t *testing.T) {
	t.Parallel()
	long := "a very long message that certainly exceeds the preview limit"
	tests := []struct {
		action intent.Action
		want   string
	}{
		{intent.Action{Kind: intent.KindScroll, Direction: "up"}, "Scrolling up"},
		{intent.Action{Kind: intent.KindClick, TargetText: "pricing"}, "Clicking pricing"},
		{intent.Action{Kind: intent.KindFill, Value: "x"}, "Filling field with x"},
		{intent.Action{Kind: intent.KindFill, FieldHint: "message", Value: long}, "Filling message with " + long[:40] + "…"},
		{intent.Action{Kind: intent.KindToggle, Target: "dark mode"}, "Toggling dark mode"},
		{intent.Action{Kind: intent.KindUnknown}, ""},
	}
	for _, tt := range tests {
		if got := command.Speak(tt.action); got != tt.want {
			t.Errorf("Speak(%+v) = %q, want %q", tt.action, got, tt.want)
		}
	}
}
