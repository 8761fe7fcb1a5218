package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/telemetry"
)

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays BSCI_* variables from the process environment. Values
// that fail to parse are logged and ignored.
func ApplyEnv(cfg Config, logger telemetry.Logger) Config {
	return ApplyLookup(cfg, os.LookupEnv, logger)
}

// ApplyLookup is ApplyEnv with an explicit lookup.
func ApplyLookup(cfg Config, lookup LookupFunc, logger telemetry.Logger) Config {
	if logger == nil {
		logger = telemetry.Discard
	}
	str := func(key string, dst *string) {
		if raw, ok := lookup(key); ok && strings.TrimSpace(raw) != "" {
			*dst = strings.TrimSpace(raw)
		}
	}
	integer := func(key string, dst *int) {
		raw, ok := lookup(key)
		if !ok || raw == "" {
			return
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			logger.Printf("invalid %s=%q: %v", key, raw, err)
			return
		}
		*dst = value
	}
	boolean := func(key string, dst *bool) {
		raw, ok := lookup(key)
		if !ok || raw == "" {
			return
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			logger.Printf("invalid %s=%q: %v", key, raw, err)
			return
		}
		*dst = value
	}

	str("BSCI_ADDR", &cfg.Server.Addr)
	integer("BSCI_TICK_RATE", &cfg.Server.TickRate)
	integer("BSCI_VIEW_DISTANCE", &cfg.Server.ViewDistance)
	str("BSCI_REDIS_ADDR", &cfg.Server.RedisAddr)
	str("BSCI_REDIS_CHANNEL", &cfg.Server.RedisChannel)
	str("BSCI_LOG_LEVEL", &cfg.Logging.MinimumSeverity)
	str("BSCI_LOG_JSON_PATH", &cfg.Logging.JSONPath)
	if raw, ok := lookup("BSCI_LOG_SINKS"); ok && strings.TrimSpace(raw) != "" {
		var sinks []string
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				sinks = append(sinks, name)
			}
		}
		cfg.Logging.Sinks = sinks
	}
	integer("BSCI_TABLE_PER_TICK", &cfg.Particle.TablePerTick)
	boolean("BSCI_DELAY_UPDATE", &cfg.Particle.DelayUpdate)
	boolean("BSCI_REFRESH_NATIVE", &cfg.DebugDraw.RefreshNative)
	boolean("BSCI_USE_NATIVE_LINE", &cfg.DebugDraw.UseNativeLine)
	boolean("BSCI_USE_NATIVE_BOX", &cfg.DebugDraw.UseNativeBox)
	boolean("BSCI_USE_NATIVE_CIRCLE", &cfg.DebugDraw.UseNativeCircle)
	boolean("BSCI_USE_NATIVE_SPHERE", &cfg.DebugDraw.UseNativeSphere)
	boolean("BSCI_USE_NATIVE_ARROW", &cfg.DebugDraw.UseNativeArrow)

	return cfg.Normalized()
}
