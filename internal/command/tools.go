package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/voicenav/internal/extract"
	"github.com/MrWong99/voicenav/internal/intent"
	"github.com/MrWong99/voicenav/internal/normalize"
)

// ErrUnknownTool is returned by [Service.Execute] for an unrecognized tool
// name.
var ErrUnknownTool = errors.New("command: unknown tool")

// Tool names as exposed to voice platforms and MCP clients.
const (
	ToolScroll = "scroll_page"
	ToolClick  = "click_element"
	ToolFill   = "fill_field"
	ToolToggle = "toggle_element"
)

// Tools lists every tool name in a stable order.
var Tools = []string{ToolScroll, ToolClick, ToolFill, ToolToggle}

// ToolName maps a short or full tool name ("scroll", "scroll_page") to the
// full name.
func ToolName(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "scroll", ToolScroll:
		return ToolScroll, true
	case "click", ToolClick:
		return ToolClick, true
	case "fill", ToolFill:
		return ToolFill, true
	case "toggle", ToolToggle:
		return ToolToggle, true
	}
	return "", false
}

// Execute runs the named tool on req without classification.
func (s *Service) Execute(ctx context.Context, tool string, req Request) (Response, error) {
	name, ok := ToolName(tool)
	if !ok {
		return Response{}, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	switch name {
	case ToolScroll:
		return s.Scroll(ctx, req), nil
	case ToolClick:
		return s.Click(ctx, req), nil
	case ToolFill:
		return s.Fill(ctx, req), nil
	default:
		return s.Toggle(ctx, req), nil
	}
}

// Scroll dispatches a scroll. The direction defaults to down.
func (s *Service) Scroll(ctx context.Context, req Request) Response {
	req.SessionID, req.URL = s.Resolve(req.SessionID, req.URL)
	t := s.toolTranscript(req.Transcript)
	args := extract.Scroll(t, req.explicit())
	return s.dispatch(ctx, req.SessionID, t, intent.Action{Kind: intent.KindScroll, Direction: args.Direction}, intent.SourceTool)
}

// Click dispatches a click. A click without any target text, selector or
// ordinal is still dispatched; the page falls back to the most prominent
// control.
func (s *Service) Click(ctx context.Context, req Request) Response {
	req.SessionID, req.URL = s.Resolve(req.SessionID, req.URL)
	t := s.toolTranscript(req.Transcript)
	args := extract.Click(t, req.explicit())
	action := intent.Action{Kind: intent.KindClick, TargetText: args.TargetText, Selector: args.Selector, Nth: args.Nth, Role: args.Role}
	return s.dispatch(ctx, req.SessionID, t, action, intent.SourceTool)
}

// Fill dispatches a fill, or withholds it when no value can be found.
func (s *Service) Fill(ctx context.Context, req Request) Response {
	req.SessionID, req.URL = s.Resolve(req.SessionID, req.URL)
	t := req.Transcript
	args, err := extract.Fill(t, req.explicit())
	action := fillAction(args)
	if err != nil {
		return s.withheld(ctx, req.SessionID, action, err)
	}
	action.Value = s.normalizeValue(ctx, action.FieldHint, action.Value, t)
	s.recordEmail(ctx, args)
	return s.dispatch(ctx, req.SessionID, t, action, intent.SourceTool)
}

// Toggle dispatches a toggle, or withholds it when no target is named.
func (s *Service) Toggle(ctx context.Context, req Request) Response {
	req.SessionID, req.URL = s.Resolve(req.SessionID, req.URL)
	t := s.toolTranscript(req.Transcript)
	if req.Target == "" {
		if resolved, ok := intent.ResolvePronouns(t, req.SessionID, s.memory); ok {
			t = resolved
		}
	}
	args, err := extract.Toggle(t, req.explicit())
	action := intent.Action{Kind: intent.KindToggle, Target: args.Target}
	if err != nil {
		return s.withheld(ctx, req.SessionID, action, err)
	}
	return s.dispatch(ctx, req.SessionID, t, action, intent.SourceTool)
}

// toolTranscript applies the ASR fixes to a tool-call transcript. Fill never
// uses it since values are typed as spoken.
func (s *Service) toolTranscript(raw string) string {
	if fixed, ok := normalize.FixASR(normalize.Normalize(raw)); ok {
		return fixed
	}
	return raw
}
