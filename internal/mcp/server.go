// Package mcp exposes the navigation tools over the Model Context Protocol.
//
// The server registers scroll_page, click_element, fill_field and
// toggle_element, which dispatch actions exactly like the webhook and HTTP
// tool routes, plus classify_intent, which returns a classification
// without dispatching or touching session memory. It is mounted on the
// HTTP API through the SDK's streamable HTTP handler.
package mcp

import (
	"context"
	"net/http"
	"sort"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/internal/intent"
)

// ToolClassify is the name of the read-only classification tool.
const ToolClassify = "classify_intent"

// Executor runs one named navigation tool.
type Executor interface {
	Execute(ctx context.Context, tool string, req command.Request) (command.Response, error)
}

// Decider classifies a command without side effects.
type Decider interface {
	Decide(ctx context.Context, req intent.Request) (intent.Result, string)
}

var (
	_ Executor = (*command.Service)(nil)
	_ Decider  = (*intent.Fallback)(nil)
)

// Option configures a [Server].
type Option func(*Server)

// WithVersion sets the implementation version reported to clients.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithStatsWindow sets how many recent calls per tool are kept for latency
// statistics. Default: 100.
func WithStatsWindow(n int) Option {
	return func(s *Server) { s.window = n }
}

// Server wraps the MCP SDK server.
type Server struct {
	srv     *mcpsdk.Server
	exec    Executor
	decider Decider
	version string
	window  int

	stats map[string]*rollingWindow
}

// New creates a Server with every tool registered. decider may be nil, in
// which case classify_intent is not offered.
func New(exec Executor, decider Decider, opts ...Option) *Server {
	s := &Server{
		exec:    exec,
		decider: decider,
		version: "0.1.0",
		window:  defaultWindowSize,
	}
	for _, o := range opts {
		o(s)
	}
	s.srv = mcpsdk.NewServer(&mcpsdk.Implementation{Name: "voicenav", Version: s.version}, nil)

	s.stats = make(map[string]*rollingWindow)
	for _, name := range append(append([]string(nil), command.Tools...), ToolClassify) {
		s.stats[name] = newRollingWindow(s.window)
	}
	s.registerTools()
	return s
}

// SDK returns the underlying SDK server.
func (s *Server) SDK() *mcpsdk.Server { return s.srv }

// Handler returns the streamable HTTP handler serving this server.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.srv }, nil)
}

// ToolStats summarizes recent calls of one tool.
type ToolStats struct {
	Name      string  `json:"name"`
	Calls     int     `json:"calls"`
	P50Ms     int64   `json:"p50Ms"`
	P99Ms     int64   `json:"p99Ms"`
	ErrorRate float64 `json:"errorRate"`
}

// Stats returns per-tool call statistics sorted by tool name.
func (s *Server) Stats() []ToolStats {
	out := make([]ToolStats, 0, len(s.stats))
	for name, w := range s.stats {
		out = append(out, ToolStats{
			Name:      name,
			Calls:     w.Count(),
			P50Ms:     w.P50(),
			P99Ms:     w.P99(),
			ErrorRate: w.ErrorRate(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// observe records the latency of one call started at start.
func (s *Server) observe(tool string, start time.Time, failed bool) {
	if w, ok := s.stats[tool]; ok {
		w.Record(time.Since(start).Milliseconds(), failed)
	}
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        command.ToolScroll,
		Description: "Scroll the user's page up, down, to the top or to the bottom.",
	}, s.handleScroll)

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        command.ToolClick,
		Description: "Click an element on the user's page, identified by its visible text, a CSS selector or its position.",
	}, s.handleClick)

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        command.ToolFill,
		Description: "Type a value into a form field on the user's page. Spoken email addresses are reconstructed.",
	}, s.handleFill)

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        command.ToolToggle,
		Description: "Flip a switch or checkbox on the user's page.",
	}, s.handleToggle)

	if s.decider != nil {
		mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
			Name:        ToolClassify,
			Description: "Classify a spoken command into scroll, click, fill, toggle or unknown without performing it.",
		}, s.handleClassify)
	}
}
