// Package transporttest provides an in-memory transport.Host.
package transporttest

import (
	"sync"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/transport"
)

// Kind labels how a message left the host.
type Kind int

const (
	KindShape Kind = iota
	KindShapeTo
	KindShapeToAll
	KindEffect
)

// Delivery is one recorded send.
type Delivery struct {
	Kind   Kind
	Viewer string
	Shape  proto.ShapeMessage
	Effect proto.EffectMessage
}

// Viewer is a named test viewer.
type Viewer string

// ID implements transport.Viewer.
func (v Viewer) ID() string { return string(v) }

// Recorder captures every send and lets tests simulate cell deliveries.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	listeners  map[int]transport.CellListener
	nextID     int
}

var _ transport.Host = (*Recorder)(nil)

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{listeners: make(map[int]transport.CellListener)}
}

func (r *Recorder) record(d Delivery) {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, d)
	r.mu.Unlock()
}

func (r *Recorder) SendShape(msg proto.ShapeMessage) {
	r.record(Delivery{Kind: KindShape, Shape: msg.Clone()})
}

func (r *Recorder) SendShapeTo(viewer transport.Viewer, msg proto.ShapeMessage) {
	id := ""
	if viewer != nil {
		id = viewer.ID()
	}
	r.record(Delivery{Kind: KindShapeTo, Viewer: id, Shape: msg.Clone()})
}

func (r *Recorder) SendShapeToAll(msg proto.ShapeMessage) {
	r.record(Delivery{Kind: KindShapeToAll, Shape: msg.Clone()})
}

func (r *Recorder) SendEffect(msg proto.EffectMessage) {
	r.record(Delivery{Kind: KindEffect, Effect: msg.Clone()})
}

func (r *Recorder) OnCellDelivered(l transport.CellListener) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Deliver simulates the host serving cell to viewer.
func (r *Recorder) Deliver(viewer transport.Viewer, cell geo.CellPos, dim geo.Dimension) {
	r.mu.Lock()
	listeners := make([]transport.CellListener, 0, len(r.listeners))
	for _, l := range r.listeners {
		listeners = append(listeners, l)
	}
	r.mu.Unlock()
	for _, l := range listeners {
		l.CellDelivered(viewer, cell, dim)
	}
}

// Listeners reports how many cell listeners are registered.
func (r *Recorder) Listeners() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// Deliveries returns a copy of every recorded send.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// Of returns the recorded sends of one kind.
func (r *Recorder) Of(kind Kind) []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Delivery
	for _, d := range r.deliveries {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Reset forgets recorded sends but keeps listeners.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.deliveries = nil
	r.mu.Unlock()
}
