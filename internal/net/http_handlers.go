package net

import (
	"encoding/json"
	nethttp "net/http"

	"github.com/gorilla/mux"

	bsci "github.com/OEOTYAN/BedrockServerClientInterface"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/hub"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/ws"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/observability"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/telemetry"
	"github.com/OEOTYAN/BedrockServerClientInterface/logging"
)

type HTTPHandlerConfig struct {
	Logger telemetry.Logger
	// Group is optional; when set its counts appear in /diagnostics and the
	// /shapes routes are served.
	Group *bsci.Group
	// Metrics is the in-process counter set reported under "telemetry".
	Metrics *logging.Metrics
	// Prometheus, when set, is served on /metrics.
	Prometheus nethttp.Handler
	TickRate   int
	Clock      logging.Clock

	Observability observability.Config
}

func NewHTTPHandler(h *hub.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}

	router := mux.NewRouter()

	router.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}).Methods(nethttp.MethodGet)

	router.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string            `json:"status"`
			ServerTime int64             `json:"serverTime"`
			TickRate   int               `json:"tickRate"`
			Viewers    []hub.ViewerInfo  `json:"viewers"`
			Geometry   bsci.Stats        `json:"geometry"`
			Telemetry  map[string]uint64 `json:"telemetry"`
		}{
			Status:     "ok",
			ServerTime: clock.Now().UnixMilli(),
			TickRate:   cfg.TickRate,
			Viewers:    h.Diagnostics(),
			Geometry:   cfg.Group.Stats(),
			Telemetry:  cfg.Metrics.Snapshot(),
		}
		if payload.Viewers == nil {
			payload.Viewers = []hub.ViewerInfo{}
		}

		data, err := json.Marshal(payload)
		if err != nil {
			logger.Printf("failed to encode diagnostics: %v", err)
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}).Methods(nethttp.MethodGet)

	if cfg.Group != nil {
		registerShapeRoutes(router, cfg.Group, logger)
	}

	if cfg.Prometheus != nil {
		router.Handle("/metrics", cfg.Prometheus).Methods(nethttp.MethodGet)
	}

	cfg.Observability.Mount(router)

	handler := ws.NewHandler(h, ws.HandlerConfig{Logger: logger})
	router.HandleFunc("/ws", handler.Handle)

	return router
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
