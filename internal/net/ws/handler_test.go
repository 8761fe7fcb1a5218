package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	bsci "github.com/OEOTYAN/BedrockServerClientInterface"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/hub"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
)

type frame struct {
	Type     string             `json:"type"`
	ViewerID string             `json:"viewerId"`
	Cell     geo.CellPos        `json:"cell"`
	Shape    proto.ShapeMessage `json:"shape"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}
	u.Scheme = "ws"
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		t.Fatalf("failed to decode frame: %v", err)
	}
	return f
}

func TestSessionBackfillsShapesOnMove(t *testing.T) {
	h := hub.New(hub.Config{ViewDistance: 0}, hub.Deps{})
	group := bsci.New(bsci.Deps{Host: h})
	t.Cleanup(func() { group.Close(context.Background()) })

	id := group.Draw(context.Background(), bsci.Text{Pos: geo.V3(4, 64, 4), Text: "here"})
	if !id.Valid() {
		t.Fatalf("expected a valid handle")
	}

	srv := httptest.NewServer(http.HandlerFunc(NewHandler(h, HandlerConfig{}).Handle))
	t.Cleanup(srv.Close)
	conn := dial(t, srv)

	hello := readFrame(t, conn)
	if hello.Type != proto.TypeHello || hello.ViewerID == "" {
		t.Fatalf("expected hello frame, got %+v", hello)
	}

	move := map[string]any{"type": proto.TypeMove, "position": geo.V3(1, 64, 1), "dimension": 0}
	if err := conn.WriteJSON(move); err != nil {
		t.Fatalf("failed to send move: %v", err)
	}

	cell := readFrame(t, conn)
	if cell.Type != proto.TypeCell || cell.Cell != (geo.CellPos{}) {
		t.Fatalf("expected cell frame for origin, got %+v", cell)
	}
	shape := readFrame(t, conn)
	if shape.Type != proto.TypeShape || shape.Shape.NetworkID != uint64(id) {
		t.Fatalf("expected backfilled shape %d, got %+v", id, shape)
	}
	if shape.Shape.Text == nil || shape.Shape.Text.Text != "here" {
		t.Fatalf("unexpected shape payload %+v", shape.Shape)
	}
}

func TestSessionAnswersHeartbeat(t *testing.T) {
	h := hub.New(hub.DefaultConfig(), hub.Deps{})
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(h, HandlerConfig{}).Handle))
	t.Cleanup(srv.Close)
	conn := dial(t, srv)
	readFrame(t, conn)

	if err := conn.WriteJSON(map[string]any{"type": proto.TypeHeartbeat, "sentAt": 1234}); err != nil {
		t.Fatalf("failed to send heartbeat: %v", err)
	}
	if f := readFrame(t, conn); f.Type != proto.TypeHeartbeat {
		t.Fatalf("expected heartbeat ack, got %+v", f)
	}
}

func TestSessionDisconnectRemovesViewer(t *testing.T) {
	h := hub.New(hub.DefaultConfig(), hub.Deps{})
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(h, HandlerConfig{}).Handle))
	t.Cleanup(srv.Close)
	conn := dial(t, srv)
	readFrame(t, conn)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for h.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("viewer was not removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
