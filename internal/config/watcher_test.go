package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/voicenav/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
classifier:
  accept_threshold: 0.6
`

const watcherUpdatedYAML = `
server:
  log_level: debug
classifier:
  accept_threshold: 0.7
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

// startWatcher runs w until the test ends and waits for Run to return.
func startWatcher(t *testing.T, w *config.Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within 3s")
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	w, err := config.NewWatcher(cfgPath, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	startWatcher(t, w)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
}

func TestWatcher_InitialLoadInvalid(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherInvalidYAML)

	if _, err := config.NewWatcher(cfgPath, nil); err == nil {
		t.Fatal("expected error for invalid initial config")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	var (
		mu       sync.Mutex
		gotOld   *config.Config
		gotNew   *config.Config
		numCalls int
	)
	w, err := config.NewWatcher(cfgPath, func(old, new *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		gotOld, gotNew = old, new
		numCalls++
	}, config.WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	startWatcher(t, w)

	writeFile(t, cfgPath, watcherUpdatedYAML)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return numCalls > 0
	})

	mu.Lock()
	defer mu.Unlock()
	if gotOld.Server.LogLevel != config.LogInfo {
		t.Errorf("old log_level = %q", gotOld.Server.LogLevel)
	}
	if gotNew.Server.LogLevel != config.LogDebug {
		t.Errorf("new log_level = %q", gotNew.Server.LogLevel)
	}
	if d := config.Diff(gotOld, gotNew); !d.ThresholdChanged || d.NewThreshold != 0.7 {
		t.Errorf("diff = %+v", d)
	}
	if w.Current() != gotNew {
		t.Error("Current() should return the reloaded config")
	}
}

func TestWatcher_KeepsPreviousOnInvalid(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	var (
		mu    sync.Mutex
		calls int
	)
	w, err := config.NewWatcher(cfgPath, func(_, _ *config.Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, config.WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	startWatcher(t, w)
	initial := w.Current()

	writeFile(t, cfgPath, watcherInvalidYAML)
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("onChange called %d times for an invalid config", calls)
	}
	if w.Current() != initial {
		t.Error("Current() should keep the previous valid config")
	}
}

func TestWatcher_IgnoresIdenticalContent(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	var (
		mu    sync.Mutex
		calls int
	)
	w, err := config.NewWatcher(cfgPath, func(_, _ *config.Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, config.WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	startWatcher(t, w)

	writeFile(t, cfgPath, watcherValidYAML)
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("onChange called %d times for identical content", calls)
	}
}
