package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/config"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/telemetry"
	"github.com/OEOTYAN/BedrockServerClientInterface/logging"
)

func TestNewRouterWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	router, closeSinks, err := newRouter(config.LoggingConfig{
		MinimumSeverity: "debug",
		Sinks:           []string{"json"},
		JSONPath:        path,
	}, telemetry.Discard)
	if err != nil {
		t.Fatalf("newRouter: %v", err)
	}

	router.Publish(context.Background(), logging.Event{Type: "test.event", Severity: logging.SeverityInfo})
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close router: %v", err)
	}
	closeSinks()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "test.event") {
		t.Fatalf("expected event in json log, got %q", data)
	}
}

func TestNewRouterRejectsUnwritablePath(t *testing.T) {
	dir := t.TempDir()
	_, _, err := newRouter(config.LoggingConfig{
		Sinks:    []string{"json"},
		JSONPath: filepath.Join(dir, "missing", "events.jsonl"),
	}, telemetry.Discard)
	if err == nil {
		t.Fatalf("expected an error for a missing directory")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bsci.toml")
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Logging.Sinks = nil
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{ConfigPath: path, Logger: telemetry.Discard})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
}
