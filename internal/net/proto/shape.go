package proto

import (
	"fmt"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
)

// ShapeType tags the geometry carried by a ShapeMessage. ShapeNone marks a
// retracted shape: a viewer receiving it erases the shape with that id.
type ShapeType uint8

const (
	ShapeNone ShapeType = iota
	ShapeLine
	ShapeBox
	ShapeSphere
	ShapeCircle
	ShapeText
	ShapeArrow
)

var shapeTypeNames = [...]string{
	ShapeNone:   "none",
	ShapeLine:   "line",
	ShapeBox:    "box",
	ShapeSphere: "sphere",
	ShapeCircle: "circle",
	ShapeText:   "text",
	ShapeArrow:  "arrow",
}

func (t ShapeType) String() string {
	if int(t) < len(shapeTypeNames) {
		return shapeTypeNames[t]
	}
	return fmt.Sprintf("shape(%d)", uint8(t))
}

// MarshalText renders the shape type by name.
func (t ShapeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a shape type name.
func (t *ShapeType) UnmarshalText(text []byte) error {
	for i, name := range shapeTypeNames {
		if name == string(text) {
			*t = ShapeType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown shape type %q", text)
}

// LinePayload carries the far endpoint of a line.
type LinePayload struct {
	End geo.Vec3 `json:"end"`
}

// BoxPayload carries the box extent measured from Location.
type BoxPayload struct {
	Bound geo.Vec3 `json:"bound"`
}

// SpherePayload optionally fixes the client-side segment count.
type SpherePayload struct {
	Segments uint8 `json:"segments"`
}

// ArrowPayload carries the arrow tip and optional head geometry. Nil fields
// fall back to the client defaults.
type ArrowPayload struct {
	End        geo.Vec3 `json:"end"`
	HeadLength *float32 `json:"headLength,omitempty"`
	HeadRadius *float32 `json:"headRadius,omitempty"`
	Segments   *uint8   `json:"segments,omitempty"`
}

// TextPayload carries a label.
type TextPayload struct {
	Text string `json:"text"`
}

// ShapeMessage is a single persistent shape. NetworkID is allocated from the
// descending handle range and stays stable for the life of the shape, so
// re-sending a mutated message replaces it on the viewer in place.
type ShapeMessage struct {
	NetworkID uint64        `json:"networkId"`
	Type      ShapeType     `json:"shapeType"`
	Location  geo.Vec3      `json:"location"`
	Rotation  *geo.Vec3     `json:"rotation,omitempty"`
	Scale     *float32      `json:"scale,omitempty"`
	Color     geo.Color     `json:"color"`
	Dimension geo.Dimension `json:"dimension"`

	Line   *LinePayload   `json:"line,omitempty"`
	Box    *BoxPayload    `json:"box,omitempty"`
	Sphere *SpherePayload `json:"sphere,omitempty"`
	Arrow  *ArrowPayload  `json:"arrow,omitempty"`
	Text   *TextPayload   `json:"text,omitempty"`
}

// Clone returns a deep copy so callers can hand the result to another
// goroutine while the original keeps mutating.
func (m ShapeMessage) Clone() ShapeMessage {
	out := m
	if m.Rotation != nil {
		v := *m.Rotation
		out.Rotation = &v
	}
	if m.Scale != nil {
		v := *m.Scale
		out.Scale = &v
	}
	if m.Line != nil {
		v := *m.Line
		out.Line = &v
	}
	if m.Box != nil {
		v := *m.Box
		out.Box = &v
	}
	if m.Sphere != nil {
		v := *m.Sphere
		out.Sphere = &v
	}
	if m.Arrow != nil {
		v := *m.Arrow
		if m.Arrow.HeadLength != nil {
			hl := *m.Arrow.HeadLength
			v.HeadLength = &hl
		}
		if m.Arrow.HeadRadius != nil {
			hr := *m.Arrow.HeadRadius
			v.HeadRadius = &hr
		}
		if m.Arrow.Segments != nil {
			s := *m.Arrow.Segments
			v.Segments = &s
		}
		out.Arrow = &v
	}
	if m.Text != nil {
		v := *m.Text
		out.Text = &v
	}
	return out
}

// Translate moves every position field by delta.
func (m *ShapeMessage) Translate(delta geo.Vec3) {
	m.Location = m.Location.Add(delta)
	if m.Line != nil {
		m.Line.End = m.Line.End.Add(delta)
	}
	if m.Arrow != nil {
		m.Arrow.End = m.Arrow.End.Add(delta)
	}
}

// Tombstone marks the message retracted.
func (m *ShapeMessage) Tombstone() {
	m.Type = ShapeNone
}

// Retracted reports whether the message is a tombstone.
func (m ShapeMessage) Retracted() bool {
	return m.Type == ShapeNone
}
