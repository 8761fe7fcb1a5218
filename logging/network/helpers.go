package network

import (
	"context"

	"github.com/OEOTYAN/BedrockServerClientInterface/logging"
)

const (
	// EventViewerConnected is emitted when a viewer session opens.
	EventViewerConnected logging.EventType = "network.viewer_connected"
	// EventViewerDisconnected is emitted when a viewer session closes.
	EventViewerDisconnected logging.EventType = "network.viewer_disconnected"
	// EventRelayFailed is emitted when a broadcast could not be mirrored to the relay.
	EventRelayFailed logging.EventType = "network.relay_failed"
)

// ViewerPayload describes a viewer session.
type ViewerPayload struct {
	Remote string `json:"remote,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ViewerConnected publishes an info event when a viewer joins.
func ViewerConnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ViewerPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventViewerConnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// ViewerDisconnected publishes an info event when a viewer leaves.
func ViewerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ViewerPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventViewerDisconnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// RelayFailedPayload captures the failed relay operation.
type RelayFailedPayload struct {
	Channel string `json:"channel"`
	Error   string `json:"error"`
	Dropped uint64 `json:"dropped,omitempty"`
}

// RelayFailed publishes a warning when the relay rejects a frame.
func RelayFailed(ctx context.Context, pub logging.Publisher, tick uint64, payload RelayFailedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventRelayFailed,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
