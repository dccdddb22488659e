package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/internal/observe"
)

// maxBody bounds the size of a webhook request body.
const maxBody = 1 << 20

// Executor runs one named tool.
type Executor interface {
	Execute(ctx context.Context, tool string, req command.Request) (command.Response, error)
}

var _ Executor = (*command.Service)(nil)

// Result is the per-call entry of a webhook response.
type Result struct {
	ToolCallID string `json:"toolCallId,omitempty"`
	Result     string `json:"result"`
	Error      string `json:"error,omitempty"`
}

// Response is the webhook response body.
type Response struct {
	Results []Result `json:"results"`
}

// Handler serves voice-platform webhooks.
type Handler struct {
	exec Executor
}

// NewHandler returns a [Handler] that executes calls with exec.
func NewHandler(exec Executor) *Handler {
	return &Handler{exec: exec}
}

// ServeHTTP decodes the payload, executes every call and answers with one
// result per call. Status-only payloads are acknowledged with "ignored".
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var p Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("webhook: decode payload: %w", err))
		return
	}
	results, err := h.Handle(r.Context(), p)
	switch {
	case errors.Is(err, ErrNoCall):
		writeJSON(w, http.StatusOK, map[string]string{"result": "ignored"})
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
	default:
		writeJSON(w, http.StatusOK, Response{Results: results})
	}
}

// Handle executes every call of p. A failing call yields an error entry;
// only an undecodable or unroutable payload fails the whole request.
func (h *Handler) Handle(ctx context.Context, p Payload) ([]Result, error) {
	calls, err := p.Invocations()
	if err != nil {
		return nil, err
	}
	sessionID, err := p.SessionID()
	if err != nil {
		return nil, err
	}
	log := observe.Logger(ctx).With("session_id", sessionID)

	results := make([]Result, 0, len(calls))
	for _, c := range calls {
		res := Result{ToolCallID: c.ID}
		resp, err := h.exec.Execute(ctx, c.Tool, c.Args.Request(sessionID))
		switch {
		case err != nil:
			log.Warn("webhook: tool call failed", "tool", c.Tool, "err", err)
			res.Result = "Command failed to execute"
			res.Error = err.Error()
		case resp.Status != command.StatusOK:
			res.Result = fmt.Sprintf("Skipped %s: %s", c.Tool, resp.Reason)
		default:
			res.Result = fmt.Sprintf("Executed %s command successfully", resp.Action.Kind)
		}
		results = append(results, res)
	}
	return results, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
