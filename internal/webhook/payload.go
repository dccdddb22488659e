// Package webhook unwraps voice-platform tool-call webhooks into commands.
//
// Two envelope shapes are accepted: a "function-call" message carrying one
// call with decoded parameters, and a "tool-calls" message carrying a list
// of calls whose arguments may be either a JSON object or a JSON string
// containing one. Every call in a tool-calls message is executed.
//
// The session a call is routed to is resolved once per payload: the
// caller-provided call metadata sessionId wins, the platform call id is the
// fallback. Session ids inside tool arguments are ignored.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrWong99/voicenav/internal/command"
)

var (
	// ErrNoCall is returned when a payload carries no function or tool call.
	// Such payloads are status updates and are acknowledged, not executed.
	ErrNoCall = errors.New("webhook: no tool call in payload")

	// ErrNoSession is returned when neither call metadata nor a call id
	// identifies the session.
	ErrNoSession = errors.New("webhook: no session id in payload")
)

// Message types.
const (
	TypeFunctionCall = "function-call"
	TypeToolCalls    = "tool-calls"
)

// Payload is the webhook request body.
type Payload struct {
	Message Message `json:"message"`
	Call    *Call   `json:"call,omitempty"`
}

// Message is the envelope of a webhook event.
type Message struct {
	Type         string        `json:"type"`
	FunctionCall *FunctionCall `json:"functionCall,omitempty"`
	ToolCalls    []ToolCall    `json:"toolCalls,omitempty"`
	Call         *Call         `json:"call,omitempty"`
}

// FunctionCall is the single call of a function-call message.
type FunctionCall struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
}

// ToolCall is one entry of a tool-calls message.
type ToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

// Call identifies the voice call the event belongs to.
type Call struct {
	ID       string `json:"id"`
	Metadata struct {
		SessionID string `json:"sessionId"`
	} `json:"metadata"`
}

// Invocation is one decoded tool call.
type Invocation struct {
	// ID is the platform tool-call id, empty for function-call messages.
	ID   string
	Tool string
	Args Args
}

// Args are the tool arguments a voice platform sends. Field names follow
// the tool schemas registered with the platform.
type Args struct {
	// Direction is the scroll direction: up, down, top or bottom.
	Direction string `json:"direction"`

	// TargetText is the visible text of the element to click.
	TargetText string `json:"target_text"`

	Selector string  `json:"selector"`
	Nth      flexInt `json:"nth"`
	Role     string  `json:"role"`
	Value    string  `json:"value"`

	// FieldHint names the kind of field to fill, e.g. "email" or "search".
	FieldHint string `json:"field_hint"`

	// Submit is a boolean or one of the strings "true", "false", "auto".
	// Anything other than true or "true" means false. When absent the
	// submit flag is inferred from the transcript.
	Submit *flexBool `json:"submit"`

	// Target is the label of the switch or checkbox to toggle.
	Target string `json:"target"`

	// Transcript is the user utterance that triggered the call, if the
	// platform forwards it.
	Transcript string `json:"transcript"`
}

// Request converts the arguments into a command request for sessionID.
func (a Args) Request(sessionID string) command.Request {
	req := command.Request{
		SessionID:  sessionID,
		Transcript: a.Transcript,
		Direction:  a.Direction,
		TargetText: a.TargetText,
		Selector:   a.Selector,
		Nth:        int(a.Nth),
		Role:       a.Role,
		Value:      a.Value,
		FieldHint:  a.FieldHint,
		Target:     a.Target,
	}
	if a.Submit != nil {
		submit := bool(*a.Submit)
		req.Submit = &submit
	}
	return req
}

// SessionID returns the authoritative session id of the payload.
func (p Payload) SessionID() (string, error) {
	for _, c := range []*Call{p.Message.Call, p.Call} {
		if c == nil {
			continue
		}
		if id := strings.TrimSpace(c.Metadata.SessionID); id != "" && id != "default" {
			return id, nil
		}
	}
	for _, c := range []*Call{p.Message.Call, p.Call} {
		if c != nil && strings.TrimSpace(c.ID) != "" {
			return c.ID, nil
		}
	}
	return "", ErrNoSession
}

// Invocations decodes every call in the payload.
func (p Payload) Invocations() ([]Invocation, error) {
	switch {
	case p.Message.Type == TypeFunctionCall && p.Message.FunctionCall != nil:
		args, err := decodeArgs(p.Message.FunctionCall.Parameters)
		if err != nil {
			return nil, fmt.Errorf("webhook: decode %s parameters: %w", p.Message.FunctionCall.Name, err)
		}
		return []Invocation{{Tool: p.Message.FunctionCall.Name, Args: args}}, nil

	case p.Message.Type == TypeToolCalls && len(p.Message.ToolCalls) > 0:
		out := make([]Invocation, 0, len(p.Message.ToolCalls))
		for _, tc := range p.Message.ToolCalls {
			args, err := decodeArgs(tc.Function.Arguments)
			if err != nil {
				return nil, fmt.Errorf("webhook: decode %s arguments: %w", tc.Function.Name, err)
			}
			out = append(out, Invocation{ID: tc.ID, Tool: tc.Function.Name, Args: args})
		}
		return out, nil
	}
	return nil, ErrNoCall
}

// decodeArgs accepts an object, a JSON string holding an object, or nothing.
func decodeArgs(raw json.RawMessage) (Args, error) {
	var args Args
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return args, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return args, err
		}
		if strings.TrimSpace(s) == "" {
			return args, nil
		}
		raw = []byte(s)
	}
	err := json.Unmarshal(raw, &args)
	return args, err
}

// flexBool decodes true, false or the strings "true", "false" and "auto".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*b = flexBool(x)
	case string:
		*b = flexBool(strings.EqualFold(strings.TrimSpace(x), "true"))
	default:
		*b = false
	}
	return nil
}

// flexInt decodes a number or a numeric string. Anything else is zero.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*n = flexInt(x)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			*n = 0
			return nil
		}
		*n = flexInt(i)
	default:
		*n = 0
	}
	return nil
}
