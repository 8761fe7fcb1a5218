package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/app"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/observability"
)

func main() {
	configPath := flag.String("config", "config/bsci.toml", "path to the TOML, YAML or JSON settings file")
	pprof := flag.Bool("pprof", false, "serve runtime profiles under /debug/pprof")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := app.Config{
		ConfigPath:    *configPath,
		Observability: observability.Config{EnablePprof: *pprof},
	}
	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
