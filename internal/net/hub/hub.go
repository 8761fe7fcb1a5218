// Package hub is the reference websocket host. It tracks which cells each
// viewer can see, fans shape and effect frames out to the viewers that see
// their anchor, and reports every cell it delivers to registered listeners.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/telemetry"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/transport"
	"github.com/OEOTYAN/BedrockServerClientInterface/logging"
	"github.com/OEOTYAN/BedrockServerClientInterface/logging/network"
)

const (
	defaultWriteWait    = 10 * time.Second
	defaultViewDistance = 4
	defaultTickRate     = 20

	metricViewers       = "hub_viewers"
	metricFramesTotal   = "hub_frames_total"
	metricCellsTotal    = "hub_cells_delivered_total"
	metricWriteFailures = "hub_write_failures_total"
)

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Mirror receives every locally originated broadcast so other processes can
// replay it.
type Mirror interface {
	MirrorShape(msg proto.ShapeMessage, all bool)
	MirrorEffect(msg proto.EffectMessage)
}

// Config tunes visibility and write behaviour.
type Config struct {
	// ViewDistance is the radius, in cells, of the square each viewer sees.
	ViewDistance int
	TickRate     int
	WriteWait    time.Duration
}

// DefaultConfig mirrors the shipped server configuration.
func DefaultConfig() Config {
	return Config{
		ViewDistance: defaultViewDistance,
		TickRate:     defaultTickRate,
		WriteWait:    defaultWriteWait,
	}
}

// Deps carries shared infrastructure.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
	Mirror    Mirror
}

// Viewer is one connected websocket client.
type Viewer struct {
	id     string
	remote string
	conn   Conn

	writeMu sync.Mutex

	stateMu    sync.Mutex
	positioned bool
	dim        geo.Dimension
	center     geo.CellPos
	visible    map[geo.CellPos]struct{}
	lastSeen   time.Time
}

// ID implements transport.Viewer.
func (v *Viewer) ID() string { return v.id }

// Remote returns the peer address recorded at registration.
func (v *Viewer) Remote() string { return v.remote }

func (v *Viewer) sees(cell geo.CellPos, dim geo.Dimension) bool {
	v.stateMu.Lock()
	defer v.stateMu.Unlock()
	if !v.positioned || v.dim != dim {
		return false
	}
	_, ok := v.visible[cell]
	return ok
}

// Hub implements transport.Host over websocket connections.
type Hub struct {
	cfg       Config
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher
	clock     logging.Clock
	mirror    Mirror

	mu      sync.RWMutex
	viewers map[string]*Viewer

	listenersMu  sync.RWMutex
	listeners    map[int]transport.CellListener
	nextListener int
}

var _ transport.Host = (*Hub)(nil)

// New constructs an empty hub.
func New(cfg Config, deps Deps) *Hub {
	def := DefaultConfig()
	if cfg.ViewDistance < 0 {
		cfg.ViewDistance = def.ViewDistance
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = def.TickRate
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.Discard
	}
	clock := deps.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	return &Hub{
		cfg:       cfg,
		logger:    logger,
		metrics:   deps.Metrics,
		publisher: deps.Publisher,
		clock:     clock,
		mirror:    deps.Mirror,
		viewers:   make(map[string]*Viewer),
		listeners: make(map[int]transport.CellListener),
	}
}

// SetMirror installs m. It must be called before the hub serves traffic.
func (h *Hub) SetMirror(m Mirror) {
	h.mirror = m
}

// Register adds a connection under a fresh viewer id and greets it.
func (h *Hub) Register(ctx context.Context, conn Conn, remote string) (*Viewer, error) {
	v := &Viewer{
		id:       uuid.NewString(),
		remote:   remote,
		conn:     conn,
		visible:  make(map[geo.CellPos]struct{}),
		lastSeen: h.clock.Now(),
	}
	hello, err := proto.EncodeHello(v.id, h.cfg.TickRate)
	if err != nil {
		return nil, err
	}
	if err := h.write(v, hello); err != nil {
		conn.Close()
		return nil, err
	}

	h.mu.Lock()
	h.viewers[v.id] = v
	count := len(h.viewers)
	h.mu.Unlock()

	h.storeMetric(metricViewers, uint64(count))
	network.ViewerConnected(ctx, h.publisher, 0, viewerRef(v.id), network.ViewerPayload{Remote: remote}, nil)
	return v, nil
}

// Disconnect closes and forgets a viewer. It reports whether the viewer was
// connected.
func (h *Hub) Disconnect(ctx context.Context, id, reason string) bool {
	h.mu.Lock()
	v, ok := h.viewers[id]
	if ok {
		delete(h.viewers, id)
	}
	count := len(h.viewers)
	h.mu.Unlock()
	if !ok {
		return false
	}

	v.conn.Close()
	h.storeMetric(metricViewers, uint64(count))
	network.ViewerDisconnected(ctx, h.publisher, 0, viewerRef(id), network.ViewerPayload{
		Remote: v.remote,
		Reason: reason,
	}, nil)
	return true
}

// Viewer looks up a connected viewer.
func (h *Hub) Viewer(id string) (*Viewer, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.viewers[id]
	return v, ok
}

// Len counts connected viewers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

func (h *Hub) snapshot() []*Viewer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		out = append(out, v)
	}
	return out
}

// Move records a viewer's position. Every cell that becomes visible is
// delivered: a cell frame is written and then cell listeners run on the
// caller's goroutine. It returns the cells delivered.
func (h *Hub) Move(ctx context.Context, id string, pos geo.Vec3, dim geo.Dimension) []geo.CellPos {
	v, ok := h.Viewer(id)
	if !ok {
		return nil
	}
	center := geo.CellOf(pos)

	v.stateMu.Lock()
	v.lastSeen = h.clock.Now()
	if v.positioned && v.dim == dim && v.center == center {
		v.stateMu.Unlock()
		return nil
	}
	next := make(map[geo.CellPos]struct{}, (2*h.cfg.ViewDistance+1)*(2*h.cfg.ViewDistance+1))
	var fresh []geo.CellPos
	sameDim := v.positioned && v.dim == dim
	r := int32(h.cfg.ViewDistance)
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			cell := geo.CellPos{X: center.X + dx, Z: center.Z + dz}
			next[cell] = struct{}{}
			if _, had := v.visible[cell]; !had || !sameDim {
				fresh = append(fresh, cell)
			}
		}
	}
	v.positioned = true
	v.dim = dim
	v.center = center
	v.visible = next
	v.stateMu.Unlock()

	for _, cell := range fresh {
		if !h.deliverCell(ctx, v, cell, dim) {
			return nil
		}
	}
	return fresh
}

func (h *Hub) deliverCell(ctx context.Context, v *Viewer, cell geo.CellPos, dim geo.Dimension) bool {
	frame, err := proto.EncodeCell(cell, dim)
	if err != nil {
		h.logger.Printf("failed to encode cell %s: %v", cell, err)
		return true
	}
	if err := h.write(v, frame); err != nil {
		h.dropViewer(ctx, v, err)
		return false
	}
	h.addMetric(metricCellsTotal, 1)

	h.listenersMu.RLock()
	listeners := make([]transport.CellListener, 0, len(h.listeners))
	for _, l := range h.listeners {
		listeners = append(listeners, l)
	}
	h.listenersMu.RUnlock()
	for _, l := range listeners {
		l.CellDelivered(v, cell, dim)
	}
	return true
}

// Heartbeat answers a client heartbeat.
func (h *Hub) Heartbeat(ctx context.Context, id string, clientTime int64) bool {
	v, ok := h.Viewer(id)
	if !ok {
		return false
	}
	now := h.clock.Now()
	v.stateMu.Lock()
	v.lastSeen = now
	v.stateMu.Unlock()

	frame, err := proto.EncodeHeartbeat(now.UnixMilli(), clientTime)
	if err != nil {
		h.logger.Printf("failed to encode heartbeat for %s: %v", id, err)
		return true
	}
	if err := h.write(v, frame); err != nil {
		h.dropViewer(ctx, v, err)
		return false
	}
	return true
}

// OnCellDelivered implements transport.Host.
func (h *Hub) OnCellDelivered(l transport.CellListener) func() {
	if l == nil {
		return func() {}
	}
	h.listenersMu.Lock()
	id := h.nextListener
	h.nextListener++
	h.listeners[id] = l
	h.listenersMu.Unlock()
	return func() {
		h.listenersMu.Lock()
		delete(h.listeners, id)
		h.listenersMu.Unlock()
	}
}

// SendShape implements transport.Host.
func (h *Hub) SendShape(msg proto.ShapeMessage) {
	h.DeliverShape(msg, false)
	if h.mirror != nil {
		h.mirror.MirrorShape(msg, false)
	}
}

// SendShapeToAll implements transport.Host.
func (h *Hub) SendShapeToAll(msg proto.ShapeMessage) {
	h.DeliverShape(msg, true)
	if h.mirror != nil {
		h.mirror.MirrorShape(msg, true)
	}
}

// SendEffect implements transport.Host.
func (h *Hub) SendEffect(msg proto.EffectMessage) {
	h.DeliverEffect(msg)
	if h.mirror != nil {
		h.mirror.MirrorEffect(msg)
	}
}

// SendShapeTo implements transport.Host.
func (h *Hub) SendShapeTo(viewer transport.Viewer, msg proto.ShapeMessage) {
	if viewer == nil {
		return
	}
	v, ok := viewer.(*Viewer)
	if !ok {
		if v, ok = h.Viewer(viewer.ID()); !ok {
			return
		}
	}
	frame, err := proto.EncodeShape(msg)
	if err != nil {
		h.logger.Printf("failed to encode shape %d: %v", msg.NetworkID, err)
		return
	}
	if err := h.write(v, frame); err != nil {
		h.dropViewer(context.Background(), v, err)
	}
}

// DeliverShape writes msg to local viewers only: every viewer when all is
// set, otherwise those that see its anchor cell.
func (h *Hub) DeliverShape(msg proto.ShapeMessage, all bool) {
	frame, err := proto.EncodeShape(msg)
	if err != nil {
		h.logger.Printf("failed to encode shape %d: %v", msg.NetworkID, err)
		return
	}
	cell := geo.CellOf(msg.Location)
	h.fanout(frame, func(v *Viewer) bool {
		return all || v.sees(cell, msg.Dimension)
	})
}

// DeliverEffect writes msg to local viewers that see its cell.
func (h *Hub) DeliverEffect(msg proto.EffectMessage) {
	frame, err := proto.EncodeEffect(msg)
	if err != nil {
		h.logger.Printf("failed to encode effect %s: %v", msg.Name, err)
		return
	}
	cell := geo.CellOf(msg.Location)
	h.fanout(frame, func(v *Viewer) bool {
		return v.sees(cell, msg.Dimension)
	})
}

func (h *Hub) fanout(frame []byte, match func(*Viewer) bool) {
	for _, v := range h.snapshot() {
		if !match(v) {
			continue
		}
		if err := h.write(v, frame); err != nil {
			h.dropViewer(context.Background(), v, err)
		}
	}
}

func (h *Hub) write(v *Viewer, frame []byte) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	v.conn.SetWriteDeadline(h.clock.Now().Add(h.cfg.WriteWait))
	if err := v.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return err
	}
	h.addMetric(metricFramesTotal, 1)
	return nil
}

func (h *Hub) dropViewer(ctx context.Context, v *Viewer, err error) {
	h.addMetric(metricWriteFailures, 1)
	h.logger.Printf("failed to send update to %s: %v", v.id, err)
	h.Disconnect(ctx, v.id, "write failed")
}

// ViewerInfo is a diagnostics row.
type ViewerInfo struct {
	ID        string        `json:"id"`
	Remote    string        `json:"remote"`
	Dimension geo.Dimension `json:"dimension"`
	Cell      geo.CellPos   `json:"cell"`
	Visible   int           `json:"visibleCells"`
	LastSeen  int64         `json:"lastSeen"`
}

// Diagnostics lists connected viewers.
func (h *Hub) Diagnostics() []ViewerInfo {
	viewers := h.snapshot()
	out := make([]ViewerInfo, 0, len(viewers))
	for _, v := range viewers {
		v.stateMu.Lock()
		out = append(out, ViewerInfo{
			ID:        v.id,
			Remote:    v.remote,
			Dimension: v.dim,
			Cell:      v.center,
			Visible:   len(v.visible),
			LastSeen:  v.lastSeen.UnixMilli(),
		})
		v.stateMu.Unlock()
	}
	return out
}

// CloseAll disconnects every viewer.
func (h *Hub) CloseAll(ctx context.Context) {
	for _, v := range h.snapshot() {
		h.Disconnect(ctx, v.id, "shutdown")
	}
}

func (h *Hub) addMetric(key string, delta uint64) {
	if h.metrics == nil {
		return
	}
	h.metrics.Add(key, delta)
}

func (h *Hub) storeMetric(key string, value uint64) {
	if h.metrics == nil {
		return
	}
	h.metrics.Store(key, value)
}

func viewerRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindViewer}
}
