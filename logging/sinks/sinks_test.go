package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OEOTYAN/BedrockServerClientInterface/logging"
	"github.com/OEOTYAN/BedrockServerClientInterface/logging/geometry"
)

func TestJSONOmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	event := logging.Event{
		Type:     geometry.EventRemoved,
		Time:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGeometry,
		Payload:  geometry.RemovedPayload{Messages: 3},
	}
	if err := sink.Write(event); err != nil {
		t.Fatalf("write: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record["type"] != string(geometry.EventRemoved) || record["severity"] != "debug" {
		t.Fatalf("unexpected record %v", record)
	}
	for _, key := range []string{"actor", "targets", "extra", "tick"} {
		if _, ok := record[key]; ok {
			t.Fatalf("expected %q to be omitted, got %v", key, record)
		}
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestConsoleLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{Prefix: "bsci "})
	sink.Write(logging.Event{
		Type:     "network.viewer_connected",
		Tick:     7,
		Severity: logging.SeverityInfo,
		Actor:    logging.EntityRef{ID: "abc", Kind: logging.EntityKindViewer},
		Extra:    map[string]any{"b": 2, "a": 1},
	})
	line := buf.String()
	if !strings.HasPrefix(line, "bsci ") {
		t.Fatalf("expected prefix, got %q", line)
	}
	for _, part := range []string{"[network.viewer_connected]", "tick=7", "actor=viewer:abc", "a=1 b=2"} {
		if !strings.Contains(line, part) {
			t.Fatalf("expected %q in %q", part, line)
		}
	}
}

func TestMemorySinkFilters(t *testing.T) {
	sink := NewMemorySink()
	sink.Write(logging.Event{Type: "a"})
	sink.Write(logging.Event{Type: "b"})
	sink.Write(logging.Event{Type: "a"})
	if got := len(sink.OfType("a")); got != 2 {
		t.Fatalf("expected two events of type a, got %d", got)
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected reset to clear events")
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = []string{logging.SinkConsole, logging.SinkJSON}
	cfg.JSON.FilePath = path

	named, release, err := Open(cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer release()
	if len(named) != 2 || named[0].Name != logging.SinkConsole || named[1].Name != logging.SinkJSON {
		t.Fatalf("unexpected sinks %+v", named)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected json log to be created: %v", err)
	}

	cfg.EnabledSinks = []string{"syslog"}
	if _, _, err := Open(cfg, nil); err == nil {
		t.Fatalf("expected unknown sink to fail")
	}
}
