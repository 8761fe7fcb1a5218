package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	for _, name := range []string{"config.toml", "config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.Particle.TablePerTick != 2 || cfg.DebugDraw.DisplayRadius != 48 {
				t.Fatalf("expected defaults, got %+v", cfg)
			}
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("expected defaults to be written: %v", err)
			}

			again, err := Load(path)
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if again.Server.Addr != cfg.Server.Addr || again.Particle.MaxCircleSegments != cfg.Particle.MaxCircleSegments {
				t.Fatalf("round trip changed config: %+v vs %+v", again, cfg)
			}
			if !again.DebugDraw.UseNativeArrow || !again.DebugDraw.RefreshNative {
				t.Fatalf("round trip lost booleans: %+v", again.DebugDraw)
			}
		})
	}
}

func TestDecodePartialDocumentsKeepDefaults(t *testing.T) {
	cases := map[string]string{
		"a.toml": "[particle]\ntable_per_tick = 4\n[debug_draw]\nuse_native_box = false\n",
		"a.yaml": "particle:\n  table_per_tick: 4\ndebug_draw:\n  use_native_box: false\n",
		"a.json": `{"particle":{"tablePerTick":4},"debugDraw":{"useNativeBox":false}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Decode(name, []byte(doc))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if cfg.Particle.TablePerTick != 4 {
				t.Fatalf("expected table_per_tick 4, got %d", cfg.Particle.TablePerTick)
			}
			if cfg.DebugDraw.UseNativeBox {
				t.Fatalf("expected native box disabled")
			}
			if !cfg.DebugDraw.UseNativeLine || cfg.Particle.MinCircleSpacing != 0.6 {
				t.Fatalf("expected untouched fields to keep defaults: %+v", cfg)
			}
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "config.ini"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestNormalizedTablePerTick(t *testing.T) {
	cases := map[int]int{0: 2, -3: 2, 1: 1, 3: 2, 5: 4, 8: 8, 100: 64}
	for in, want := range cases {
		cfg := Default()
		cfg.Particle.TablePerTick = in
		if got := cfg.Normalized().Particle.TablePerTick; got != want {
			t.Fatalf("table_per_tick %d: expected %d, got %d", in, want, got)
		}
	}
}

func TestLifetimeCoversRotation(t *testing.T) {
	cfg := Default()
	got := cfg.LifetimeSeconds()
	want := float32(0.05 + 64.0/20.0/2.0)
	if diff := got - want; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("expected lifetime %v, got %v", want, got)
	}
}

func TestApplyLookup(t *testing.T) {
	env := map[string]string{
		"BSCI_ADDR":           " :9000 ",
		"BSCI_TICK_RATE":      "40",
		"BSCI_VIEW_DISTANCE":  "nope",
		"BSCI_LOG_SINKS":      "console, json",
		"BSCI_DELAY_UPDATE":   "true",
		"BSCI_USE_NATIVE_BOX": "false",
	}
	var logged []string
	logger := loggerFunc(func(format string, args ...any) {
		logged = append(logged, format)
	})
	cfg := ApplyLookup(Default(), func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}, logger)

	if cfg.Server.Addr != ":9000" || cfg.Server.TickRate != 40 {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.ViewDistance != 4 {
		t.Fatalf("invalid value should be ignored, got %d", cfg.Server.ViewDistance)
	}
	if strings.Join(cfg.Logging.Sinks, ",") != "console,json" {
		t.Fatalf("unexpected sinks %v", cfg.Logging.Sinks)
	}
	if !cfg.Particle.DelayUpdate || cfg.DebugDraw.UseNativeBox {
		t.Fatalf("boolean overrides not applied: %+v %+v", cfg.Particle, cfg.DebugDraw)
	}
	if len(logged) != 1 {
		t.Fatalf("expected one warning, got %v", logged)
	}
}

func TestStoreReplaceNotifies(t *testing.T) {
	store := NewStore(Default())
	var seen []int
	cancel := store.Subscribe(func(cfg Config) { seen = append(seen, cfg.Server.TickRate) })

	next := Default()
	next.Server.TickRate = 10
	store.Replace(next)
	cancel()
	next.Server.TickRate = 5
	store.Replace(next)

	if store.Load().Server.TickRate != 5 {
		t.Fatalf("expected latest config to be live")
	}
	if len(seen) != 1 || seen[0] != 10 {
		t.Fatalf("unexpected notifications %v", seen)
	}

	var nilStore *Store
	if nilStore.Load().Server.TickRate != 20 {
		t.Fatalf("nil store should yield defaults")
	}
}

type loggerFunc func(format string, args ...any)

func (f loggerFunc) Printf(format string, args ...any) { f(format, args...) }
