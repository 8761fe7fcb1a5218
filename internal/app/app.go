// Package app wires the annotation server together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	bsci "github.com/OEOTYAN/BedrockServerClientInterface"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/config"
	servernet "github.com/OEOTYAN/BedrockServerClientInterface/internal/net"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/hub"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/relay"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/observability"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/sim"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/telemetry"
	"github.com/OEOTYAN/BedrockServerClientInterface/logging"
	loggingSinks "github.com/OEOTYAN/BedrockServerClientInterface/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	// ConfigPath names the TOML, YAML or JSON settings file. Empty runs on
	// the defaults without watching anything.
	ConfigPath    string
	Logger        telemetry.Logger
	Observability observability.Config
}

// Run serves until ctx is cancelled or a component fails.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	settings := config.Default()
	if cfg.ConfigPath != "" {
		loaded, err := config.Load(cfg.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		settings = loaded
	}
	settings = config.ApplyEnv(settings, telemetryLogger).Normalized()
	store := config.NewStore(settings)

	observabilityCfg := cfg.Observability
	if raw := os.Getenv("BSCI_ENABLE_PPROF"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			observabilityCfg.EnablePprof = value
		} else {
			telemetryLogger.Printf("invalid BSCI_ENABLE_PPROF=%q: %v", raw, err)
		}
	}

	router, closeSinks, err := newRouter(settings.Logging, telemetryLogger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
		closeSinks()
	}()

	instance := uuid.NewString()
	publisher := logging.WithFields(router, map[string]any{"instance": instance})
	prom := telemetry.NewPrometheusMetrics("bsci")
	metrics := telemetry.Fanout(telemetry.WrapMetrics(router.Metrics()), prom)

	loop := sim.NewLoop(sim.LoopConfig{TickRate: settings.Server.TickRate}, sim.LoopDeps{
		Logger:    telemetryLogger,
		Metrics:   metrics,
		Publisher: publisher,
	})

	h := hub.New(hub.Config{
		ViewDistance: settings.Server.ViewDistance,
		TickRate:     settings.Server.TickRate,
	}, hub.Deps{
		Logger:    telemetryLogger,
		Metrics:   metrics,
		Publisher: publisher,
	})

	group := bsci.New(bsci.Deps{
		Host:      h,
		Executor:  loop,
		Config:    store,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    telemetryLogger,
	})
	detach := group.Attach(loop)
	defer detach()

	var mirror *relay.Relay
	if settings.Server.RedisAddr != "" {
		mirror = relay.New(relay.Config{
			Addr:    settings.Server.RedisAddr,
			Channel: settings.Server.RedisChannel,
			Origin:  instance,
		}, relay.Deps{
			Logger:    telemetryLogger,
			Metrics:   metrics,
			Publisher: publisher,
		})
		if err := mirror.Ping(ctx); err != nil {
			mirror.Close()
			return fmt.Errorf("failed to reach redis at %s: %w", settings.Server.RedisAddr, err)
		}
		h.SetMirror(mirror)
		defer mirror.Close()
	}

	handler := servernet.NewHTTPHandler(h, servernet.HTTPHandlerConfig{
		Logger:        telemetryLogger,
		Group:         group,
		Metrics:       router.Metrics(),
		Prometheus:    prom.Handler(),
		TickRate:      settings.Server.TickRate,
		Observability: observabilityCfg,
	})
	srv := &http.Server{Addr: settings.Server.Addr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	if cfg.ConfigPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, cfg.ConfigPath, store, telemetryLogger)
		})
	}
	if mirror != nil {
		g.Go(func() error {
			return mirror.Run(gctx, h)
		})
	}
	g.Go(func() error {
		telemetryLogger.Printf("server %s listening on %s", instance, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		h.CloseAll(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	group.Close(context.Background())
	return err
}

// newRouter builds the event router for the configured sinks. The returned
// closer releases any files the sinks opened.
func newRouter(cfg config.LoggingConfig, logger telemetry.Logger) (*logging.Router, func(), error) {
	logConfig := logging.DefaultConfig()
	logConfig.EnabledSinks = cfg.Sinks
	logConfig.JSON.FilePath = cfg.JSONPath
	if severity, err := logging.ParseSeverity(cfg.MinimumSeverity); err == nil {
		logConfig.MinimumSeverity = severity
	} else {
		logger.Printf("%v; using %s", err, logConfig.MinimumSeverity)
	}
	if categories, err := logging.ParseCategorySeverity(cfg.Categories); err == nil {
		logConfig.CategorySeverity = categories
	} else {
		logger.Printf("ignoring logging categories: %v", err)
	}

	named, release, err := loggingSinks.Open(logConfig, os.Stdout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log sinks: %w", err)
	}
	router, err := logging.NewRouter(logging.SystemClock{}, logConfig, named)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to construct logging router: %w", err)
	}
	return router, release, nil
}
