package geometry

import (
	"context"

	"github.com/OEOTYAN/BedrockServerClientInterface/logging"
)

const (
	// EventInvalidHandle is emitted when an operation names the invalid or an unknown handle.
	EventInvalidHandle logging.EventType = "geometry.invalid_handle"
	// EventRemoved is emitted when a handle is retracted.
	EventRemoved logging.EventType = "geometry.removed"
	// EventMerged is emitted when several handles are folded into one.
	EventMerged logging.EventType = "geometry.merged"
	// EventBackfill is emitted after shapes were re-sent for a delivered cell.
	EventBackfill logging.EventType = "geometry.backfill"
)

// InvalidHandlePayload names the rejected operation.
type InvalidHandlePayload struct {
	Operation string `json:"operation"`
	Handle    uint64 `json:"handle"`
}

// InvalidHandle publishes a debug trace for an operation on a handle that is not live.
func InvalidHandle(ctx context.Context, pub logging.Publisher, tick uint64, payload InvalidHandlePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventInvalidHandle,
		Tick:     tick,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGeometry,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// RemovedPayload captures how much was retracted.
type RemovedPayload struct {
	Messages int  `json:"messages"`
	Effect   bool `json:"effect"`
}

// Removed publishes a debug event when a handle is retracted.
func Removed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RemovedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventRemoved,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGeometry,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// MergedPayload captures the inputs folded into the new handle.
type MergedPayload struct {
	Inputs   int `json:"inputs"`
	Messages int `json:"messages"`
	Effects  int `json:"effects"`
}

// Merged publishes a debug event when handles are merged.
func Merged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MergedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventMerged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGeometry,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// BackfillPayload summarises one cell delivery.
type BackfillPayload struct {
	CellX     int32 `json:"cellX"`
	CellZ     int32 `json:"cellZ"`
	Dimension int32 `json:"dimension"`
	Sent      int   `json:"sent"`
	Pruned    int   `json:"pruned"`
}

// Backfill publishes a debug event after shapes were re-sent to a viewer.
func Backfill(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload BackfillPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventBackfill,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGeometry,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
