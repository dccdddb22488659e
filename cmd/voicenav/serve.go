package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voicenav/internal/app"
	"github.com/MrWong99/voicenav/internal/config"
	"github.com/MrWong99/voicenav/internal/observe"
)

const shutdownTimeout = 15 * time.Second

var serveNoWatch bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "disable hot reload of the config file")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP, webhook, MCP and WebSocket server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath, false)
	if err != nil {
		return err
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Slog())
	slog.SetDefault(newLogger(os.Stderr, level))

	slog.Info("voicenav starting",
		"version", version,
		"config", configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelProviders, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voicenav",
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}

	printStartupSummary(cmd.OutOrStdout(), cfg, providers)

	opts := []app.Option{app.WithVersion(version), app.WithLogLevel(level)}
	if !serveNoWatch {
		opts = append(opts, app.WithConfigWatch(configPath))
	}
	application, err := app.New(ctx, cfg, providers, opts...)
	if err != nil {
		return err
	}

	slog.Info("server ready, press Ctrl+C to shut down")
	runErr := application.Run(ctx)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	if err := otelProviders.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	slog.Info("goodbye")
	return nil
}

// ── Startup summary ────────────────────────────────────────────────────────────

func printStartupSummary(w io.Writer, cfg *config.Config, p *app.Providers) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║        voicenav startup summary       ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printProvider(w, "LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	fmt.Fprintf(w, "║  %-12s    : %-19d ║\n", "Fallbacks", len(p.LLMFallbacks))
	printProvider(w, "Content", cfg.Providers.Content.Name, cfg.Providers.Content.Model)
	if p.LLM == nil {
		fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", "Classifier", "patterns only")
	} else {
		fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", "Classifier", "llm + patterns")
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", "MCP", enabled(cfg.MCP.IsEnabled()))
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", "Dispatch", enabled(cfg.Dispatch.IsEnabled()))
	fmt.Fprintf(w, "║  %-12s    : %-19d ║\n", "Aliases", len(cfg.Navigation.Aliases))
	if cfg.Server.ListenAddr != "" {
		fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", "Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func printProvider(w io.Writer, kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", kind, value)
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "(disabled)"
}
