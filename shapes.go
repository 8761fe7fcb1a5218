package bsci

import (
	"context"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/ids"
)

// Shape is a drawing request accepted by Group.Draw. Requests are plain
// values; the group never retains or mutates them.
type Shape interface {
	draw(ctx context.Context, g *Group) ids.GeoId
	kind() string
}

// Point is a round marker. It is always rendered as an effect.
type Point struct {
	Dim    geo.Dimension
	Pos    geo.Vec3
	Color  geo.Color
	Radius float32
}

// Line is a straight segment. A positive Thickness forces the effect
// backend.
type Line struct {
	Dim        geo.Dimension
	Begin, End geo.Vec3
	Color      geo.Color
	Thickness  float32
}

// Polyline joins consecutive points with lines.
type Polyline struct {
	Dim       geo.Dimension
	Points    []geo.Vec3
	Color     geo.Color
	Thickness float32
}

// Box is an axis-aligned wire box.
type Box struct {
	Dim       geo.Dimension
	Bounds    geo.AABB
	Color     geo.Color
	Thickness float32
}

// Circle is a ring of Radius around Normal.
type Circle struct {
	Dim            geo.Dimension
	Center, Normal geo.Vec3
	Radius         float32
	Color          geo.Color
	Thickness      float32
}

// Cylinder is two rings joined by struts. It is always tessellated.
type Cylinder struct {
	Dim         geo.Dimension
	Top, Bottom geo.Vec3
	Radius      float32
	Color       geo.Color
	Thickness   float32
}

// Sphere is a wire sphere.
type Sphere struct {
	Dim       geo.Dimension
	Center    geo.Vec3
	Radius    float32
	Color     geo.Color
	Thickness float32
}

// Arrow is a line with a cone-shaped head at End. Nil head dimensions use
// the client defaults.
type Arrow struct {
	Dim        geo.Dimension
	Begin, End geo.Vec3
	Color      geo.Color
	Thickness  float32
	HeadLength *float32
	HeadRadius *float32
}

// Text is a floating label. It is always a native shape.
type Text struct {
	Dim   geo.Dimension
	Pos   geo.Vec3
	Text  string
	Color geo.Color
	Scale *float32
}

func (s Point) kind() string    { return "point" }
func (s Line) kind() string     { return "line" }
func (s Polyline) kind() string { return "polyline" }
func (s Box) kind() string      { return "box" }
func (s Circle) kind() string   { return "circle" }
func (s Cylinder) kind() string { return "cylinder" }
func (s Sphere) kind() string   { return "sphere" }
func (s Arrow) kind() string    { return "arrow" }
func (s Text) kind() string     { return "text" }

func colorOrWhite(c geo.Color) geo.Color {
	if c.IsZero() {
		return geo.White
	}
	return c
}
