package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/transport"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []map[string]any
	fail   bool
	closed bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.frames))
	for i, f := range c.frames {
		out[i], _ = f["type"].(string)
	}
	return out
}

func (c *fakeConn) count(typ string) int {
	n := 0
	for _, t := range c.types() {
		if t == typ {
			n++
		}
	}
	return n
}

type mirrorRecorder struct {
	shapes  int
	effects int
}

func (m *mirrorRecorder) MirrorShape(proto.ShapeMessage, bool) { m.shapes++ }
func (m *mirrorRecorder) MirrorEffect(proto.EffectMessage)     { m.effects++ }

func newTestHub(t *testing.T, viewDistance int) *Hub {
	t.Helper()
	return New(Config{ViewDistance: viewDistance, TickRate: 20}, Deps{})
}

func register(t *testing.T, h *Hub) (*Viewer, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	v, err := h.Register(context.Background(), conn, "127.0.0.1:1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return v, conn
}

func TestRegisterGreetsViewer(t *testing.T) {
	h := newTestHub(t, 1)
	v, conn := register(t, h)
	if v.ID() == "" {
		t.Fatalf("expected a viewer id")
	}
	types := conn.types()
	if len(types) != 1 || types[0] != proto.TypeHello {
		t.Fatalf("expected hello frame, got %v", types)
	}
	if h.Len() != 1 {
		t.Fatalf("expected one viewer, got %d", h.Len())
	}
}

func TestMoveDeliversNewlyVisibleCells(t *testing.T) {
	h := newTestHub(t, 1)
	v, conn := register(t, h)

	var mu sync.Mutex
	var delivered []geo.CellPos
	unregister := h.OnCellDelivered(transport.CellListenerFunc(func(viewer transport.Viewer, cell geo.CellPos, dim geo.Dimension) {
		mu.Lock()
		delivered = append(delivered, cell)
		mu.Unlock()
		if viewer.ID() != v.ID() {
			t.Errorf("unexpected viewer %s", viewer.ID())
		}
	}))
	defer unregister()

	ctx := context.Background()
	if cells := h.Move(ctx, v.ID(), geo.V3(8, 64, 8), 0); len(cells) != 9 {
		t.Fatalf("expected 9 cells on first move, got %d", len(cells))
	}
	if cells := h.Move(ctx, v.ID(), geo.V3(9, 70, 9), 0); len(cells) != 0 {
		t.Fatalf("expected no cells when staying in place, got %d", len(cells))
	}
	if cells := h.Move(ctx, v.ID(), geo.V3(24, 64, 8), 0); len(cells) != 3 {
		t.Fatalf("expected 3 cells after stepping east, got %d", len(cells))
	}
	if cells := h.Move(ctx, v.ID(), geo.V3(24, 64, 8), 1); len(cells) != 9 {
		t.Fatalf("expected a full refresh after changing dimension, got %d", len(cells))
	}

	if conn.count(proto.TypeCell) != 21 {
		t.Fatalf("expected 21 cell frames, got %d", conn.count(proto.TypeCell))
	}
	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 21 {
		t.Fatalf("expected listeners to see 21 deliveries, got %d", len(delivered))
	}
}

func TestShapesRouteByVisibility(t *testing.T) {
	h := newTestHub(t, 0)
	near, nearConn := register(t, h)
	far, farConn := register(t, h)
	ctx := context.Background()
	h.Move(ctx, near.ID(), geo.V3(1, 0, 1), 0)
	h.Move(ctx, far.ID(), geo.V3(500, 0, 500), 0)

	msg := proto.ShapeMessage{NetworkID: 7, Type: proto.ShapeText, Location: geo.V3(2, 0, 2), Text: &proto.TextPayload{Text: "hi"}}
	h.SendShape(msg)
	if nearConn.count(proto.TypeShape) != 1 || farConn.count(proto.TypeShape) != 0 {
		t.Fatalf("expected only the near viewer to receive the shape")
	}

	h.SendShapeToAll(msg)
	if nearConn.count(proto.TypeShape) != 2 || farConn.count(proto.TypeShape) != 1 {
		t.Fatalf("expected broadcast to reach every viewer")
	}

	h.SendShapeTo(far, msg)
	if farConn.count(proto.TypeShape) != 2 {
		t.Fatalf("expected unicast to reach the far viewer")
	}

	h.SendEffect(proto.EffectMessage{Name: proto.EffectPoint, Location: geo.V3(3, 0, 3)})
	if nearConn.count(proto.TypeEffect) != 1 || farConn.count(proto.TypeEffect) != 0 {
		t.Fatalf("expected effect routed by visibility")
	}
}

func TestWriteFailureDisconnects(t *testing.T) {
	h := newTestHub(t, 0)
	v, conn := register(t, h)
	h.Move(context.Background(), v.ID(), geo.V3(0, 0, 0), 0)

	conn.mu.Lock()
	conn.fail = true
	conn.mu.Unlock()
	h.SendShapeToAll(proto.ShapeMessage{NetworkID: 1, Type: proto.ShapeLine, Line: &proto.LinePayload{}})

	if h.Len() != 0 {
		t.Fatalf("expected viewer to be dropped")
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if !conn.closed {
		t.Fatalf("expected connection to be closed")
	}
}

func TestMirrorOnlySeesLocalBroadcasts(t *testing.T) {
	mirror := &mirrorRecorder{}
	h := New(Config{}, Deps{Mirror: mirror})
	msg := proto.ShapeMessage{NetworkID: 1, Type: proto.ShapeLine, Line: &proto.LinePayload{}}

	h.SendShape(msg)
	h.SendShapeToAll(msg)
	h.SendEffect(proto.EffectMessage{Name: proto.EffectLine})
	h.DeliverShape(msg, true)
	h.DeliverEffect(proto.EffectMessage{Name: proto.EffectLine})

	if mirror.shapes != 2 || mirror.effects != 1 {
		t.Fatalf("unexpected mirror counts: %+v", mirror)
	}
}

func TestHeartbeatAndDiagnostics(t *testing.T) {
	h := newTestHub(t, 2)
	v, conn := register(t, h)
	ctx := context.Background()
	h.Move(ctx, v.ID(), geo.V3(-1, 0, -1), 3)

	if !h.Heartbeat(ctx, v.ID(), 42) {
		t.Fatalf("expected heartbeat to be answered")
	}
	if conn.count("heartbeat") != 1 {
		t.Fatalf("expected heartbeat frame")
	}
	if h.Heartbeat(ctx, "missing", 0) {
		t.Fatalf("expected unknown viewer heartbeat to fail")
	}

	diag := h.Diagnostics()
	if len(diag) != 1 {
		t.Fatalf("expected one diagnostics row, got %d", len(diag))
	}
	if diag[0].Visible != 25 || diag[0].Cell != (geo.CellPos{X: -1, Z: -1}) || diag[0].Dimension != 3 {
		t.Fatalf("unexpected diagnostics: %+v", diag[0])
	}

	h.CloseAll(ctx)
	if h.Len() != 0 {
		t.Fatalf("expected all viewers closed")
	}
}
