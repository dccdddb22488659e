// Package app wires all voicenav subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and runs the background loops, and Shutdown
// tears everything down in order.
//
// For testing, inject doubles via functional options (WithMetrics,
// WithListener, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicenav/internal/api"
	"github.com/MrWong99/voicenav/internal/command"
	"github.com/MrWong99/voicenav/internal/config"
	"github.com/MrWong99/voicenav/internal/content"
	"github.com/MrWong99/voicenav/internal/dispatch"
	"github.com/MrWong99/voicenav/internal/health"
	"github.com/MrWong99/voicenav/internal/intent"
	"github.com/MrWong99/voicenav/internal/mcp"
	"github.com/MrWong99/voicenav/internal/observe"
	"github.com/MrWong99/voicenav/internal/resilience"
	"github.com/MrWong99/voicenav/internal/session"
	"github.com/MrWong99/voicenav/internal/webhook"
	"github.com/MrWong99/voicenav/pkg/provider/llm"
)

// readHeaderTimeout bounds how long a client may take to send headers.
const readHeaderTimeout = 10 * time.Second

// NamedLLM is an LLM backend together with the name it was configured under.
type NamedLLM struct {
	Name     string
	Provider llm.Provider
}

// Providers holds the model backends built by main.go via the config
// registry. A nil LLM runs the service on the pattern classifier alone.
type Providers struct {
	LLM          llm.Provider
	LLMName      string
	LLMFallbacks []NamedLLM

	// Content cleans dictated values. When nil the LLM chain is used.
	Content llm.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	version   string

	level          *slog.LevelVar
	metrics        *observe.Metrics
	metricsHandler http.Handler
	listener       net.Listener
	configPath     string

	// Subsystems, initialised in New and torn down in Shutdown.
	store    *session.Store
	hub      *dispatch.Hub
	chain    *resilience.LLMFallback
	fallback *intent.Fallback
	content  *content.Normalizer
	commands *command.Service
	mcp      *mcp.Server
	api      *api.Server
	server   *http.Server
	watcher  *config.Watcher

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithLogLevel lets hot reload adjust the level of the logger main.go built.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithMetrics injects the metrics instruments instead of the global ones.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler replaces the default promhttp handler on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithListener makes Run serve on l instead of listening on the configured
// address.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// WithConfigWatch enables hot reload of the config file at path.
func WithConfigWatch(path string) Option {
	return func(a *App) { a.configPath = path }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. cfg must already
// have defaults applied.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
		a.level.Set(cfg.Server.LogLevel.Slog())
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.metricsHandler == nil {
		a.metricsHandler = promhttp.Handler()
	}

	// ── 1. Session memory ────────────────────────────────────────────────
	a.initSessions()

	// ── 2. LLM chain ─────────────────────────────────────────────────────
	a.initLLM()

	// ── 3. Classification ────────────────────────────────────────────────
	a.initClassifier()

	// ── 4. Command service + dispatch ────────────────────────────────────
	a.initCommands()

	// ── 5. HTTP surface ──────────────────────────────────────────────────
	a.initAPI()

	// ── 6. Config watcher ────────────────────────────────────────────────
	if err := a.initWatcher(); err != nil {
		_ = a.Shutdown(ctx)
		return nil, fmt.Errorf("app: init watcher: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initSessions() {
	m := a.metrics
	a.store = session.NewStore(
		session.WithMaxHistory(a.cfg.Session.MaxHistory),
		session.WithTTL(a.cfg.Session.TTL),
		session.WithSweepInterval(a.cfg.Session.SweepInterval),
		session.WithOnSizeChange(func(delta int64) {
			m.ActiveSessions.Add(context.Background(), delta)
		}),
	)
}

// initLLM puts every configured backend behind one circuit-broken chain.
func (a *App) initLLM() {
	if a.providers.LLM == nil {
		slog.Warn("no LLM configured, classifying with patterns only")
		return
	}
	m := a.metrics
	name := a.providers.LLMName
	if name == "" {
		name = "primary"
	}
	a.chain = resilience.NewLLMFallback(a.providers.LLM, name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Name: "llm",
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("llm circuit breaker changed state", "backend", name, "from", from, "to", to)
				m.RecordBreakerTransition(name, to.String())
			},
		},
	})
	for _, fb := range a.providers.LLMFallbacks {
		if fb.Provider == nil {
			continue
		}
		a.chain.AddFallback(fb.Name, fb.Provider)
	}
}

func (a *App) initClassifier() {
	pattern := intent.NewPatternClassifier(intent.WithAliases(a.cfg.Navigation.Aliases))

	var primary intent.Classifier
	if a.chain != nil {
		primary = intent.NewLLMClassifier(a.chain, a.providers.LLMName,
			intent.WithTimeout(a.cfg.Classifier.Timeout),
			intent.WithLLMMetrics(a.metrics),
			intent.WithAliasSource(pattern),
		)
	}
	a.fallback = intent.NewFallback(primary, pattern,
		intent.WithMemory(a.store),
		intent.WithThreshold(a.cfg.Classifier.AcceptThreshold),
		intent.WithDirectNavigation(a.cfg.Classifier.DirectNavigation),
		intent.WithMetrics(a.metrics),
	)

	contentLLM := a.providers.Content
	if contentLLM == nil && a.chain != nil {
		contentLLM = a.chain
	}
	a.content = content.New(contentLLM)
}

func (a *App) initCommands() {
	opts := []command.Option{
		command.WithMemory(a.store),
		command.WithContentNormalizer(a.content),
		command.WithEmailBuffer(a.cfg.Email.QuietPeriod),
		command.WithDefaults(command.Defaults{
			SessionID: a.cfg.Defaults.SessionID,
			URL:       a.cfg.Defaults.URL,
		}),
		command.WithServiceMetrics(a.metrics),
	}
	if a.cfg.Dispatch.IsEnabled() {
		m := a.metrics
		a.hub = dispatch.NewHub(dispatch.WithOnSubscriberChange(func(delta int64) {
			m.DispatchSubscribers.Add(context.Background(), delta)
		}))
		opts = append(opts, command.WithPublisher(a.hub))
	}
	a.commands = command.New(a.fallback, opts...)

	// A pending email flush publishes to the hub, so the command service
	// closes first.
	a.closers = append(a.closers, func() error {
		a.commands.Close()
		return nil
	})
	if a.hub != nil {
		a.closers = append(a.closers, func() error {
			a.hub.Close()
			return nil
		})
	}
}

func (a *App) initAPI() {
	var checkers []health.Checker
	if a.chain != nil {
		checkers = append(checkers, health.Checker{Name: "llm", Check: a.chain.Check, Optional: true})
	}

	opts := []api.Option{
		api.WithDecider(a.fallback),
		api.WithContentNormalizer(a.content),
		api.WithWebhook(webhook.NewHandler(a.commands)),
		api.WithRegistrar(health.New(checkers...)),
		api.WithMetricsHandler(a.metricsHandler),
		api.WithMetrics(a.metrics),
	}
	if a.hub != nil {
		opts = append(opts, api.WithEvents(a.hub.ServeWS))
	}
	if a.cfg.MCP.IsEnabled() {
		a.mcp = mcp.New(a.commands, a.fallback, mcp.WithVersion(a.version))
		opts = append(opts, api.WithMCP(a.mcp))
	}
	a.api = api.New(a.commands, opts...)

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.api,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func (a *App) initWatcher() error {
	if a.configPath == "" {
		return nil
	}
	w, err := config.NewWatcher(a.configPath, func(old, new *config.Config) {
		a.ApplyConfig(old, new)
	})
	if err != nil {
		return err
	}
	a.watcher = w
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the HTTP handler serving every route.
func (a *App) Handler() http.Handler {
	return a.api
}

// Commands returns the command service.
func (a *App) Commands() *command.Service {
	return a.commands
}

// Classifier returns the LLM-with-pattern-fallback classifier.
func (a *App) Classifier() *intent.Fallback {
	return a.fallback
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable differences between old and new and
// returns the diff. Changes that need a restart are only logged.
func (a *App) ApplyConfig(old, new *config.Config) config.ConfigDiff {
	d := config.Diff(old, new)
	if !d.Changed() {
		return d
	}
	if d.LogLevelChanged {
		a.level.Set(d.NewLogLevel.Slog())
	}
	if d.ThresholdChanged {
		a.fallback.SetThreshold(d.NewThreshold)
	}
	if d.AliasesChanged {
		a.fallback.Pattern().SetAliases(d.NewAliases)
	}
	if d.QuietPeriodChanged {
		a.commands.SetQuietPeriod(new.Email.QuietPeriod)
	}
	slog.Info("config reloaded",
		"log_level", d.LogLevelChanged,
		"threshold", d.ThresholdChanged,
		"aliases", d.AliasesChanged,
		"quiet_period", d.QuietPeriodChanged,
	)
	if d.RestartRequired {
		slog.Warn("config change needs a restart to take effect")
	}
	return d
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and runs the session sweeper and config watcher until ctx
// is cancelled or one of them fails. A clean cancellation returns nil.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.store.Run(ctx) })
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(ctx) })
	}
	g.Go(a.serve)
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), readHeaderTimeout)
		defer cancel()
		return a.server.Shutdown(sctx)
	})

	slog.Info("app running", "addr", a.addr(), "mcp", a.mcp != nil, "dispatch", a.hub != nil)
	return g.Wait()
}

func (a *App) serve() error {
	var err error
	tls := a.cfg.Server.TLS
	switch {
	case a.listener != nil && tls != nil:
		err = a.server.ServeTLS(a.listener, tls.CertFile, tls.KeyFile)
	case a.listener != nil:
		err = a.server.Serve(a.listener)
	case tls != nil:
		err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	default:
		err = a.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("app: serve: %w", err)
}

func (a *App) addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.server.Addr
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server and closes all subsystems in order. It is
// safe to call more than once; only the first call has any effect.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("app: http shutdown: %w", err))
			}
		}
		for _, c := range a.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
