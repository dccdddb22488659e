package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func serveReadyz(t *testing.T, h *Handler) (int, Report) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	var body Report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func ok(context.Context) error { return nil }

func TestHealthz_AlwaysReturns200(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "broken", Check: func(context.Context) error { return errors.New("down") }})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantCheck  map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: StatusOK,
		},
		{
			name:       "all pass",
			checkers:   []Checker{{Name: "config", Check: ok}, {Name: "llm", Check: ok, Optional: true}},
			wantCode:   http.StatusOK,
			wantStatus: StatusOK,
			wantCheck:  map[string]string{"config": "ok", "llm": "ok"},
		},
		{
			name:       "optional fails",
			checkers:   []Checker{{Name: "config", Check: ok}, {Name: "llm", Check: down, Optional: true}},
			wantCode:   http.StatusOK,
			wantStatus: StatusDegraded,
			wantCheck:  map[string]string{"llm": "degraded: connection refused"},
		},
		{
			name:       "required fails",
			checkers:   []Checker{{Name: "config", Check: down}, {Name: "llm", Check: down, Optional: true}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusFail,
			wantCheck:  map[string]string{"config": "fail: connection refused"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := serveReadyz(t, New(tt.checkers...))
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			for name, want := range tt.wantCheck {
				if body.Checks[name] != want {
					t.Errorf("checks[%q] = %q, want %q", name, body.Checks[name], want)
				}
			}
		})
	}
}

func TestReadyz_CheckerGetsDeadline(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		dl, ok := ctx.Deadline()
		if !ok {
			return errors.New("no deadline")
		}
		if time.Until(dl) > checkTimeout {
			return errors.New("deadline too far")
		}
		return nil
	}})
	if code, body := serveReadyz(t, h); code != http.StatusOK {
		t.Errorf("code = %d, body = %+v", code, body)
	}
}

func TestRegister_Routes(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	New().Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
			t.Errorf("%s: code=%d body=%s", path, rec.Code, rec.Body)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /healthz code = %d, want 405", rec.Code)
	}
}
