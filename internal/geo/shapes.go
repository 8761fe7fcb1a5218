package geo

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Dimension identifies a world dimension (overworld, nether, ...).
type Dimension int32

// Color is a linear RGBA colour with components in [0,1].
type Color struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

var (
	White = Color{1, 1, 1, 1}
	Red   = Color{1, 0, 0, 1}
	Green = Color{0, 1, 0, 1}
	Blue  = Color{0, 0, 1, 1}
)

// Opaque reports whether the colour needs no blending.
func (c Color) Opaque() bool {
	return c.A >= 1
}

// IsZero reports whether c is the zero value, which callers treat as unset.
func (c Color) IsZero() bool {
	return c == Color{}
}

// AABB is an axis-aligned box.
type AABB struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// Box returns the AABB spanning the two corners in any order.
func Box(a, b Vec3) AABB {
	return AABB{
		Min: Vec3{math32.Min(a.X, b.X), math32.Min(a.Y, b.Y), math32.Min(a.Z, b.Z)},
		Max: Vec3{math32.Max(a.X, b.X), math32.Max(a.Y, b.Y), math32.Max(a.Z, b.Z)},
	}
}

func (b AABB) Extent() Vec3 {
	return b.Max.Sub(b.Min)
}

// CellSize is the edge length of a spatial cell in world units.
const CellSize = 16

// CellPos is the horizontal coordinate of a spatial cell. Cells span the
// full world height, so Y does not participate.
type CellPos struct {
	X int32 `json:"x"`
	Z int32 `json:"z"`
}

// CellOf returns the cell containing p.
func CellOf(p Vec3) CellPos {
	return CellPos{
		X: int32(math32.Floor(p.X / CellSize)),
		Z: int32(math32.Floor(p.Z / CellSize)),
	}
}

func (c CellPos) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}
