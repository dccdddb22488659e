// Package api assembles the HTTP surface of the service.
//
// Every route is JSON. Routes whose backing component is not configured are
// not registered, so a minimal server exposes only /v1/commands, the tool
// routes, email reconstruction and target ranking.
package api

import (
	"context"
	"net/http"

	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/internal/content"
	"github.com/MrWong99/voicenav/internal/intent"
	"github.com/MrWong99/voicenav/internal/mcp"
	"github.com/MrWong99/voicenav/internal/observe"
)

// Commands resolves spoken commands and direct tool calls.
type Commands interface {
	Handle(ctx context.Context, req command.Request) command.Response
	Execute(ctx context.Context, tool string, req command.Request) (command.Response, error)
	Resolve(sessionID, url string) (string, string)
}

// Decider classifies without side effects.
type Decider interface {
	Decide(ctx context.Context, req intent.Request) (intent.Result, string)
}

// ContentNormalizer cleans dictated field values.
type ContentNormalizer interface {
	Normalize(ctx context.Context, value, hint, transcript string) (content.Result, error)
}

var (
	_ Commands          = (*command.Service)(nil)
	_ Decider           = (*intent.Fallback)(nil)
	_ ContentNormalizer = (*content.Normalizer)(nil)
)

// Registrar adds its own routes to a mux, like the health handler.
type Registrar interface {
	Register(mux *http.ServeMux)
}

// Option configures a [Server].
type Option func(*Server)

// WithDecider enables POST /v1/classify.
func WithDecider(d Decider) Option {
	return func(s *Server) { s.decider = d }
}

// WithContentNormalizer enables POST /v1/normalize-content.
func WithContentNormalizer(n ContentNormalizer) Option {
	return func(s *Server) { s.content = n }
}

// WithEvents serves the per-session WebSocket event stream with h.
func WithEvents(h http.HandlerFunc) Option {
	return func(s *Server) { s.events = h }
}

// WithWebhook serves POST /v1/webhook/tool-calls with h.
func WithWebhook(h http.Handler) Option {
	return func(s *Server) { s.webhook = h }
}

// WithMCP mounts the MCP server on /mcp and exposes its tool statistics.
func WithMCP(m *mcp.Server) Option {
	return func(s *Server) { s.mcp = m }
}

// WithRegistrar lets r add routes, e.g. /healthz and /readyz.
func WithRegistrar(r Registrar) Option {
	return func(s *Server) { s.registrars = append(s.registrars, r) }
}

// WithMetricsHandler serves GET /metrics with h.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithMetrics records HTTP and ranking metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is the HTTP API.
type Server struct {
	commands       Commands
	decider        Decider
	content        ContentNormalizer
	events         http.HandlerFunc
	webhook        http.Handler
	mcp            *mcp.Server
	registrars     []Registrar
	metricsHandler http.Handler
	metrics        *observe.Metrics

	handler http.Handler
}

// New builds the route table.
func New(commands Commands, opts ...Option) *Server {
	s := &Server{commands: commands}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/commands", s.handleCommand)
	mux.HandleFunc("POST /v1/tools/{tool}", s.handleTool)
	mux.HandleFunc("POST /v1/email/reconstruct", s.handleReconstruct)
	mux.HandleFunc("POST /v1/targets/rank", s.handleRank)
	if s.decider != nil {
		mux.HandleFunc("POST /v1/classify", s.handleClassify)
	}
	if s.content != nil {
		mux.HandleFunc("POST /v1/normalize-content", s.handleNormalizeContent)
	}
	if s.webhook != nil {
		mux.Handle("POST /v1/webhook/tool-calls", s.webhook)
	}
	if s.events != nil {
		mux.HandleFunc("GET /v1/sessions/{id}/events", s.events)
	}
	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp.Handler())
		mux.HandleFunc("GET /v1/tools/stats", s.handleToolStats)
	}
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	for _, r := range s.registrars {
		r.Register(mux)
	}

	s.handler = observe.Middleware(s.metrics)(Recover(mux))
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
