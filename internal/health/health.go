// Package health provides HTTP liveness and readiness handlers.
//
// /healthz always answers 200. /readyz runs every registered [Checker]
// concurrently: a failing required checker yields 503 "fail", a failing
// optional checker yields 200 "degraded". The LLM chain is registered as
// optional because commands are still served by the pattern classifier when
// every model is unavailable.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout is the maximum time a single readiness check may take.
const checkTimeout = 5 * time.Second

// Status values reported in the response body.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// Checker is a named health check. Check returns nil when the dependency is
// healthy and must respect context cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error

	// Optional marks a dependency the service can run without.
	Optional bool
}

// Report is the JSON body served by both endpoints.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates checkers on each /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Report{Status: StatusOK})
}

// Readyz runs [Handler.Evaluate] and maps a "fail" status to 503.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Evaluate(r.Context())
	status := http.StatusOK
	if rep.Status == StatusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

// Evaluate runs all checkers concurrently, each bounded by [checkTimeout].
func (h *Handler) Evaluate(ctx context.Context) Report {
	var (
		mu       sync.Mutex
		checks   = make(map[string]string, len(h.checkers))
		failed   bool
		degraded bool
	)

	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			err := c.Check(cctx)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				checks[c.Name] = StatusOK
			case c.Optional:
				checks[c.Name] = "degraded: " + err.Error()
				degraded = true
			default:
				checks[c.Name] = "fail: " + err.Error()
				failed = true
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Status: StatusOK, Checks: checks}
	switch {
	case failed:
		rep.Status = StatusFail
	case degraded:
		rep.Status = StatusDegraded
	}
	return rep
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
