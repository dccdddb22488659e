package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/internal/email"
	"github.com/MrWong99/voicenav/internal/intent"
	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/target"
)

// maxBody bounds request bodies. Rank requests carry whole candidate lists.
const maxBody = 4 << 20

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req command.Request
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.commands.Handle(r.Context(), req))
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	var req command.Request
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.commands.Execute(r.Context(), r.PathValue("tool"), req)
	if errors.Is(err, command.ErrUnknownTool) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type classifyRequest struct {
	Transcript string `json:"transcript"`
	SessionID  string `json:"sessionId"`
	CurrentURL string `json:"currentUrl"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decode(w, r, &req) {
		return
	}
	sessionID, url := s.commands.Resolve(req.SessionID, req.CurrentURL)
	res, _ := s.decider.Decide(r.Context(), intent.Request{
		Transcript: req.Transcript,
		SessionID:  sessionID,
		CurrentURL: url,
	})
	writeJSON(w, http.StatusOK, res)
}

type normalizeRequest struct {
	Value      string `json:"value"`
	FieldHint  string `json:"fieldHint"`
	Transcript string `json:"transcript,omitempty"`
}

func (s *Server) handleNormalizeContent(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.content.Normalize(r.Context(), req.Value, req.FieldHint, req.Transcript)
	if err != nil {
		// The original value is still usable; report the degradation only.
		observe.Logger(r.Context()).Warn("api: content normalization failed", "field_hint", req.FieldHint, "err", err)
	}
	writeJSON(w, http.StatusOK, res)
}

type reconstructRequest struct {
	Text string `json:"text"`
}

type reconstructResponse struct {
	Email string `json:"email"`
	Valid bool   `json:"valid"`
}

func (s *Server) handleReconstruct(w http.ResponseWriter, r *http.Request) {
	var req reconstructRequest
	if !decode(w, r, &req) {
		return
	}
	addr := email.Reconstruct(email.StripLeadIns(req.Text))
	writeJSON(w, http.StatusOK, reconstructResponse{Email: addr, Valid: email.Valid(addr)})
}

type rankRequest struct {
	Mode       target.Mode        `json:"mode"`
	TargetText string             `json:"targetText"`
	Hint       string             `json:"hint"`
	Role       string             `json:"role"`
	Nth        int                `json:"nth"`
	Viewport   target.Viewport    `json:"viewport"`
	Candidates []target.Candidate `json:"candidates"`
}

type rankResponse struct {
	Matched  bool               `json:"matched"`
	Fallback bool               `json:"fallback"`
	Best     *target.Candidate  `json:"best,omitempty"`
	Ranked   []target.Candidate `json:"candidates"`
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Mode.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("api: unknown rank mode %q", req.Mode))
		return
	}

	ctx, span := observe.StartSpan(r.Context(), "target.rank")
	ranking, err := target.Rank(target.Query{
		Mode:       req.Mode,
		TargetText: req.TargetText,
		Hint:       req.Hint,
		Role:       req.Role,
		Viewport:   req.Viewport,
	}, req.Candidates)
	var best *target.Candidate
	if err == nil {
		if c, perr := ranking.Pick(req.Nth); perr == nil {
			best = &c
		} else {
			err = perr
		}
	}
	observe.EndSpan(span, nil)

	if errors.Is(err, target.ErrNoMatch) {
		s.metrics.RecordRankMiss(ctx, string(req.Mode))
		writeJSON(w, http.StatusOK, rankResponse{Ranked: ranking.Candidates, Fallback: ranking.Fallback})
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{
		Matched:  true,
		Fallback: ranking.Fallback,
		Best:     best,
		Ranked:   ranking.Candidates,
	})
}

func (s *Server) handleToolStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.mcp.Stats()})
}

// decode reads a JSON body into v and writes a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("api: decode request: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
