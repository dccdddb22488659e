package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/internal/intent"
)

// ScrollInput defines parameters for scroll_page.
type ScrollInput struct {
	SessionID  string `json:"session_id,omitempty" jsonschema:"session the action is dispatched to"`
	Transcript string `json:"transcript,omitempty" jsonschema:"the user's words, used to infer missing parameters"`
	Direction  string `json:"direction,omitempty" jsonschema:"up, down, top or bottom"`
}

// ClickInput defines parameters for click_element.
type ClickInput struct {
	SessionID  string `json:"session_id,omitempty" jsonschema:"session the action is dispatched to"`
	Transcript string `json:"transcript,omitempty" jsonschema:"the user's words, used to infer missing parameters"`
	TargetText string `json:"target_text,omitempty" jsonschema:"visible text of the element"`
	Selector   string `json:"selector,omitempty" jsonschema:"CSS selector of the element"`
	Nth        int    `json:"nth,omitempty" jsonschema:"1-based position among matching elements"`
	Role       string `json:"role,omitempty" jsonschema:"ARIA role such as button or link"`
}

// FillInput defines parameters for fill_field.
type FillInput struct {
	SessionID  string `json:"session_id,omitempty" jsonschema:"session the action is dispatched to"`
	Transcript string `json:"transcript,omitempty" jsonschema:"the user's words, used to infer missing parameters"`
	Value      string `json:"value,omitempty" jsonschema:"text to type"`
	FieldHint  string `json:"field_hint,omitempty" jsonschema:"kind of field, e.g. email, search, name"`
	Selector   string `json:"selector,omitempty" jsonschema:"CSS selector of the field"`
	Submit     *bool  `json:"submit,omitempty" jsonschema:"submit the form after filling"`
}

// ToggleInput defines parameters for toggle_element.
type ToggleInput struct {
	SessionID  string `json:"session_id,omitempty" jsonschema:"session the action is dispatched to"`
	Transcript string `json:"transcript,omitempty" jsonschema:"the user's words, used to infer missing parameters"`
	Target     string `json:"target,omitempty" jsonschema:"label of the switch or checkbox"`
}

// ActionOutput is the result of a navigation tool.
type ActionOutput struct {
	ID     string        `json:"id,omitempty"`
	Status string        `json:"status"`
	Action intent.Action `json:"action"`
	Speak  string        `json:"speak,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// ClassifyInput defines parameters for classify_intent.
type ClassifyInput struct {
	Transcript string `json:"transcript" jsonschema:"the spoken command"`
	SessionID  string `json:"session_id,omitempty" jsonschema:"session whose history resolves pronouns"`
	CurrentURL string `json:"current_url,omitempty" jsonschema:"URL of the page the user is on"`
}

// ClassifyOutput is the result of classify_intent.
type ClassifyOutput struct {
	Intent     intent.Kind   `json:"intent"`
	Confidence float64       `json:"confidence"`
	Source     intent.Source `json:"source"`
	Action     intent.Action `json:"action"`
	Reasoning  string        `json:"reasoning,omitempty"`
}

func (s *Server) handleScroll(ctx context.Context, _ *mcpsdk.CallToolRequest, in ScrollInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.run(ctx, command.ToolScroll, command.Request{
		SessionID: in.SessionID, Transcript: in.Transcript, Direction: in.Direction,
	})
}

func (s *Server) handleClick(ctx context.Context, _ *mcpsdk.CallToolRequest, in ClickInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.run(ctx, command.ToolClick, command.Request{
		SessionID: in.SessionID, Transcript: in.Transcript,
		TargetText: in.TargetText, Selector: in.Selector, Nth: in.Nth, Role: in.Role,
	})
}

func (s *Server) handleFill(ctx context.Context, _ *mcpsdk.CallToolRequest, in FillInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.run(ctx, command.ToolFill, command.Request{
		SessionID: in.SessionID, Transcript: in.Transcript,
		Value: in.Value, FieldHint: in.FieldHint, Selector: in.Selector, Submit: in.Submit,
	})
}

func (s *Server) handleToggle(ctx context.Context, _ *mcpsdk.CallToolRequest, in ToggleInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.run(ctx, command.ToolToggle, command.Request{
		SessionID: in.SessionID, Transcript: in.Transcript, Target: in.Target,
	})
}

// run executes tool and maps a withheld action to an error result.
func (s *Server) run(ctx context.Context, tool string, req command.Request) (*mcpsdk.CallToolResult, ActionOutput, error) {
	start := time.Now()
	resp, err := s.exec.Execute(ctx, tool, req)
	if err != nil {
		s.observe(tool, start, true)
		return nil, ActionOutput{}, fmt.Errorf("mcp: %s: %w", tool, err)
	}
	out := ActionOutput{
		ID:     resp.ID,
		Status: string(resp.Status),
		Action: resp.Action,
		Speak:  resp.Speak,
		Reason: resp.Reason,
	}
	failed := resp.Status != command.StatusOK
	s.observe(tool, start, failed)
	if failed {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

var errEmptyTranscript = errors.New("mcp: transcript is required")

func (s *Server) handleClassify(ctx context.Context, _ *mcpsdk.CallToolRequest, in ClassifyInput) (*mcpsdk.CallToolResult, ClassifyOutput, error) {
	start := time.Now()
	if in.Transcript == "" {
		s.observe(ToolClassify, start, true)
		return nil, ClassifyOutput{}, errEmptyTranscript
	}
	res, _ := s.decider.Decide(ctx, intent.Request{
		Transcript: in.Transcript,
		SessionID:  in.SessionID,
		CurrentURL: in.CurrentURL,
	})
	s.observe(ToolClassify, start, false)
	return nil, ClassifyOutput{
		Intent:     res.Kind,
		Confidence: res.Confidence,
		Source:     res.Source,
		Action:     res.Action,
		Reasoning:  res.Reasoning,
	}, nil
}
