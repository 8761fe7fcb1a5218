// Package proto defines the websocket wire format exchanged with viewers.
package proto

import (
	"encoding/json"
	"fmt"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	// Type identifiers for outbound websocket payloads.
	typeHello     = "hello"
	typeShape     = "shape"
	typeEffect    = "effect"
	typeCell      = "cell"
	typeHeartbeat = "heartbeat"
)

// Client message type identifiers.
const (
	TypeMove      = "move"
	TypeHeartbeat = "heartbeat"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeHello  = typeHello
	TypeShape  = typeShape
	TypeEffect = typeEffect
	TypeCell   = typeCell
)

// ShapeFrame wraps a shape message for the wire.
type ShapeFrame struct {
	Ver   int          `json:"ver"`
	Type  string       `json:"type"`
	Shape ShapeMessage `json:"shape"`
}

// EffectFrame wraps an effect invocation for the wire.
type EffectFrame struct {
	Ver    int           `json:"ver"`
	Type   string        `json:"type"`
	Effect EffectMessage `json:"effect"`
}

// CellFrame tells a viewer that a cell snapshot follows. Shapes anchored in
// that cell are sent right after it.
type CellFrame struct {
	Ver       int           `json:"ver"`
	Type      string        `json:"type"`
	Cell      geo.CellPos   `json:"cell"`
	Dimension geo.Dimension `json:"dimension"`
}

// HelloFrame is the first frame a viewer receives.
type HelloFrame struct {
	Ver      int    `json:"ver"`
	Type     string `json:"type"`
	ViewerID string `json:"viewerId"`
	TickRate int    `json:"tickRate"`
}

// HeartbeatFrame answers a client heartbeat.
type HeartbeatFrame struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}

// EncodeShape renders a shape message frame.
func EncodeShape(msg ShapeMessage) ([]byte, error) {
	return json.Marshal(ShapeFrame{Ver: Version, Type: typeShape, Shape: msg})
}

// EncodeEffect renders an effect frame.
func EncodeEffect(msg EffectMessage) ([]byte, error) {
	return json.Marshal(EffectFrame{Ver: Version, Type: typeEffect, Effect: msg})
}

// EncodeCell renders a cell delivery frame.
func EncodeCell(cell geo.CellPos, dim geo.Dimension) ([]byte, error) {
	return json.Marshal(CellFrame{Ver: Version, Type: typeCell, Cell: cell, Dimension: dim})
}

// EncodeHello renders the session greeting.
func EncodeHello(viewerID string, tickRate int) ([]byte, error) {
	return json.Marshal(HelloFrame{Ver: Version, Type: typeHello, ViewerID: viewerID, TickRate: tickRate})
}

// EncodeHeartbeat renders a heartbeat acknowledgement.
func EncodeHeartbeat(serverTime, clientTime int64) ([]byte, error) {
	return json.Marshal(HeartbeatFrame{
		Ver:        Version,
		Type:       typeHeartbeat,
		ServerTime: serverTime,
		ClientTime: clientTime,
	})
}

// ClientMessage captures an inbound websocket message from a viewer.
type ClientMessage struct {
	Ver       int           `json:"ver,omitempty"`
	Type      string        `json:"type"`
	Position  *geo.Vec3     `json:"position,omitempty"`
	Dimension geo.Dimension `json:"dimension"`
	SentAt    int64         `json:"sentAt"`
}

// DecodeClientMessage converts raw websocket payloads into a structured message.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}
