// Package ws upgrades HTTP requests into hub viewer sessions.
package ws

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/hub"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/telemetry"
)

const (
	defaultReadLimit = 64 << 10
	defaultIdle      = 60 * time.Second
)

type HandlerConfig struct {
	Logger telemetry.Logger
	// IdleTimeout closes sessions that send nothing for this long.
	IdleTimeout time.Duration
}

type Handler struct {
	hub      *hub.Hub
	logger   telemetry.Logger
	idle     time.Duration
	upgrader websocket.Upgrader
}

func NewHandler(h *hub.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = defaultIdle
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      h,
		logger:   logger,
		idle:     idle,
		upgrader: upgrader,
	}
}

// Handle upgrades the request and runs the session until the client goes
// away.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	if h == nil || h.hub == nil {
		nethttp.Error(w, "hub unavailable", nethttp.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	h.Serve(r.Context(), conn, r.RemoteAddr)
}

// Serve registers conn with the hub and processes client messages.
func (h *Handler) Serve(ctx context.Context, conn *websocket.Conn, remote string) {
	conn.SetReadLimit(defaultReadLimit)
	viewer, err := h.hub.Register(ctx, conn, remote)
	if err != nil {
		h.logger.Printf("failed to register viewer %s: %v", remote, err)
		return
	}
	id := viewer.ID()
	// Handshake deadlines do not survive past the upgrade.
	ctx = context.WithoutCancel(ctx)

	for {
		conn.SetReadDeadline(time.Now().Add(h.idle))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			reason := "closed"
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = err.Error()
			}
			h.hub.Disconnect(ctx, id, reason)
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", id, err)
			continue
		}

		switch msg.Type {
		case proto.TypeMove:
			if msg.Position == nil {
				continue
			}
			h.hub.Move(ctx, id, *msg.Position, msg.Dimension)
		case proto.TypeHeartbeat:
			if !h.hub.Heartbeat(ctx, id, msg.SentAt) {
				return
			}
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, id)
		}
	}
}
