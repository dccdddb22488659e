// Command voicenav is the entry point for the voice navigation service.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voicenav/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "voicenav",
	Short:         "Turn spoken commands into browser navigation actions",
	Long:          "Resolves voice transcripts into scroll, click, fill and toggle actions\nand serves them over HTTP, a voice-platform webhook, MCP and WebSocket.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "voicenav: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads path. When optional is set a missing file yields the
// default configuration.
func loadConfig(path string, optional bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if optional {
		return config.LoadFromReader(strings.NewReader(""))
	}
	return nil, fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", path)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
