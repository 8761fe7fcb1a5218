// Package transport describes what the annotation core needs from the host
// that owns viewer connections. Implementations live elsewhere: the
// websocket hub in production and transporttest.Recorder in tests.
package transport

import (
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
)

// Viewer is one connected client.
type Viewer interface {
	ID() string
}

// Host sends messages to viewers. Send methods must not block on network
// I/O for longer than a write deadline and never call back into the core.
type Host interface {
	// SendShape delivers msg to every viewer that currently sees the cell
	// containing msg.Location in msg.Dimension.
	SendShape(msg proto.ShapeMessage)
	// SendShapeTo delivers msg to exactly one viewer.
	SendShapeTo(viewer Viewer, msg proto.ShapeMessage)
	// SendShapeToAll delivers msg to every connected viewer.
	SendShapeToAll(msg proto.ShapeMessage)
	// SendEffect fires a transient effect at msg.Location.
	SendEffect(msg proto.EffectMessage)
	// OnCellDelivered registers l to run whenever the host serves a cell
	// snapshot to a viewer. The returned func unregisters it.
	OnCellDelivered(l CellListener) (unregister func())
}

// CellListener observes cell deliveries.
type CellListener interface {
	CellDelivered(viewer Viewer, cell geo.CellPos, dim geo.Dimension)
}

// CellListenerFunc adapts a function into a CellListener.
type CellListenerFunc func(viewer Viewer, cell geo.CellPos, dim geo.Dimension)

// CellDelivered implements CellListener.
func (f CellListenerFunc) CellDelivered(viewer Viewer, cell geo.CellPos, dim geo.Dimension) {
	if f == nil {
		return
	}
	f(viewer, cell, dim)
}
