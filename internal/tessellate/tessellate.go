// Package tessellate turns curved and composite shapes into straight line
// segments. Every generator is pure and drops zero-length segments, so a
// degenerate input yields fewer segments rather than an error.
package tessellate

import (
	"github.com/chewxy/math32"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
)

// Segment is a single straight line between two world positions.
type Segment struct {
	Begin geo.Vec3
	End   geo.Vec3
}

// Length returns the euclidean length of the segment.
func (s Segment) Length() float32 {
	return s.Begin.DistanceTo(s.End)
}

// Degenerate reports whether both ends coincide.
func (s Segment) Degenerate() bool {
	return s.Begin == s.End
}

// Limits bounds the resolution of curved shapes.
type Limits struct {
	MaxCircleSegments int
	MinCircleSpacing  float32
	MaxSphereCells    int
	MinSphereSpacing  float32
}

// DefaultLimits matches the shipped configuration.
func DefaultLimits() Limits {
	return Limits{
		MaxCircleSegments: 128,
		MinCircleSpacing:  0.6,
		MaxSphereCells:    10,
		MinSphereSpacing:  0.6,
	}
}

const minCircleSegments = 7

type builder struct {
	out []Segment
}

func (b *builder) add(begin, end geo.Vec3) {
	if begin == end {
		return
	}
	b.out = append(b.out, Segment{Begin: begin, End: end})
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CircleSegmentCount returns how many chords approximate a circle of the
// given radius: ceil(2*pi*r / spacing) clamped to [7, MaxCircleSegments].
func CircleSegmentCount(radius float32, lim Limits) int {
	spacing := lim.MinCircleSpacing
	if spacing <= 0 {
		return clampInt(lim.MaxCircleSegments, minCircleSegments, lim.MaxCircleSegments)
	}
	n := int(math32.Ceil(2 * math32.Pi * radius / spacing))
	return clampInt(n, minCircleSegments, lim.MaxCircleSegments)
}

// ring returns n+1 points around center in the plane orthogonal to normal;
// the last point closes the loop onto the first.
func ring(center, normal geo.Vec3, radius float32, n int) []geo.Vec3 {
	t, b := geo.BranchlessONB(normal.Normal())
	delta := 2 * math32.Pi / float32(n)
	pts := make([]geo.Vec3, n+1)
	for i := 0; i <= n; i++ {
		theta := float32(i) * delta
		if i == n {
			theta = 0
		}
		pts[i] = center.
			Add(t.MulScalar(radius * math32.Cos(theta))).
			Add(b.MulScalar(radius * math32.Sin(theta)))
	}
	return pts
}

// Circle approximates a circle around center in the plane whose normal is
// given.
func Circle(center, normal geo.Vec3, radius float32, lim Limits) []Segment {
	if radius <= 0 {
		return nil
	}
	n := CircleSegmentCount(radius, lim)
	pts := ring(center, normal, radius, n)
	b := builder{out: make([]Segment, 0, n)}
	for i := 1; i <= n; i++ {
		b.add(pts[i-1], pts[i])
	}
	return b.out
}

// Cylinder emits a ring at each cap plus one strut per angular step.
func Cylinder(top, bottom geo.Vec3, radius float32, lim Limits) []Segment {
	if radius <= 0 {
		if top == bottom {
			return nil
		}
		return []Segment{{Begin: top, End: bottom}}
	}
	n := CircleSegmentCount(radius, lim)
	axis := top.Sub(bottom)
	upper := ring(top, axis, radius, n)
	lower := ring(bottom, axis, radius, n)

	b := builder{out: make([]Segment, 0, 3*n)}
	for i := 1; i <= n; i++ {
		b.add(upper[i-1], upper[i])
		b.add(lower[i-1], lower[i])
		b.add(upper[i-1], lower[i-1])
	}
	return b.out
}

// SphereCellCount returns the cube subdivision used for a sphere:
// ceil(2r / spacing) clamped to [2, MaxSphereCells].
func SphereCellCount(radius float32, lim Limits) int {
	if lim.MinSphereSpacing <= 0 {
		return clampInt(lim.MaxSphereCells, 2, lim.MaxSphereCells)
	}
	n := int(math32.Ceil(2 * radius / lim.MinSphereSpacing))
	return clampInt(n, 2, lim.MaxSphereCells)
}

var cubeEdges = [12][2]geo.Vec3{
	{{X: -1, Y: -1, Z: -1}, {X: -1, Y: -1, Z: 1}},
	{{X: 1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: 1}},
	{{X: -1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: 1}},
	{{X: 1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: 1}},

	{{X: -1, Y: -1, Z: -1}, {X: -1, Y: 1, Z: -1}},
	{{X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}},
	{{X: -1, Y: -1, Z: 1}, {X: -1, Y: 1, Z: 1}},
	{{X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}},

	{{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}},
	{{X: -1, Y: 1, Z: -1}, {X: 1, Y: 1, Z: -1}},
	{{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}},
	{{X: -1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}},
}

// sphereGrid returns the wireframe of a cube subdivided into cells per
// side: the 12 outer edges plus 12 interior grid lines per interior index.
func sphereGrid(cells int) [][2]geo.Vec3 {
	lines := make([][2]geo.Vec3, 0, 12*cells)
	lines = append(lines, cubeEdges[:]...)
	for i := 1; i < cells; i++ {
		p := float32(i)/float32(cells)*2 - 1
		lines = append(lines,
			[2]geo.Vec3{{X: p, Y: -1, Z: -1}, {X: p, Y: -1, Z: 1}},
			[2]geo.Vec3{{X: p, Y: 1, Z: -1}, {X: p, Y: 1, Z: 1}},
			[2]geo.Vec3{{X: p, Y: -1, Z: -1}, {X: p, Y: 1, Z: -1}},
			[2]geo.Vec3{{X: p, Y: -1, Z: 1}, {X: p, Y: 1, Z: 1}},

			[2]geo.Vec3{{X: -1, Y: p, Z: -1}, {X: -1, Y: p, Z: 1}},
			[2]geo.Vec3{{X: 1, Y: p, Z: -1}, {X: 1, Y: p, Z: 1}},
			[2]geo.Vec3{{X: -1, Y: p, Z: -1}, {X: 1, Y: p, Z: -1}},
			[2]geo.Vec3{{X: -1, Y: p, Z: 1}, {X: 1, Y: p, Z: 1}},

			[2]geo.Vec3{{X: -1, Y: -1, Z: p}, {X: -1, Y: 1, Z: p}},
			[2]geo.Vec3{{X: 1, Y: -1, Z: p}, {X: 1, Y: 1, Z: p}},
			[2]geo.Vec3{{X: -1, Y: -1, Z: p}, {X: 1, Y: -1, Z: p}},
			[2]geo.Vec3{{X: -1, Y: 1, Z: p}, {X: 1, Y: 1, Z: p}},
		)
	}
	return lines
}

// Sphere projects a subdivided cube wireframe onto the sphere surface.
func Sphere(center geo.Vec3, radius float32, lim Limits) []Segment {
	if radius <= 0 {
		return nil
	}
	cells := SphereCellCount(radius, lim)
	grid := sphereGrid(cells)
	project := func(p geo.Vec3) geo.Vec3 {
		return center.Add(geo.CubeToSphere(p).MulScalar(radius))
	}

	b := builder{out: make([]Segment, 0, len(grid)*cells)}
	for _, edge := range grid {
		last := project(edge[0])
		for i := 1; i <= cells; i++ {
			var pos geo.Vec3
			if i == cells {
				pos = project(edge[1])
			} else {
				pos = project(geo.Lerp(edge[0], edge[1], float32(i)/float32(cells)))
			}
			b.add(last, pos)
			last = pos
		}
	}
	return b.out
}

// Box returns the 12 edges of an axis-aligned box.
func Box(box geo.AABB) []Segment {
	lo, hi := box.Min, box.Max
	b := builder{out: make([]Segment, 0, 12)}

	b.add(geo.V3(lo.X, lo.Y, lo.Z), geo.V3(lo.X, lo.Y, hi.Z))
	b.add(geo.V3(hi.X, lo.Y, lo.Z), geo.V3(hi.X, lo.Y, hi.Z))
	b.add(geo.V3(lo.X, hi.Y, lo.Z), geo.V3(lo.X, hi.Y, hi.Z))
	b.add(geo.V3(hi.X, hi.Y, lo.Z), geo.V3(hi.X, hi.Y, hi.Z))

	b.add(geo.V3(lo.X, lo.Y, lo.Z), geo.V3(lo.X, hi.Y, lo.Z))
	b.add(geo.V3(hi.X, lo.Y, lo.Z), geo.V3(hi.X, hi.Y, lo.Z))
	b.add(geo.V3(lo.X, lo.Y, hi.Z), geo.V3(lo.X, hi.Y, hi.Z))
	b.add(geo.V3(hi.X, lo.Y, hi.Z), geo.V3(hi.X, hi.Y, hi.Z))

	b.add(geo.V3(lo.X, lo.Y, lo.Z), geo.V3(hi.X, lo.Y, lo.Z))
	b.add(geo.V3(lo.X, hi.Y, lo.Z), geo.V3(hi.X, hi.Y, lo.Z))
	b.add(geo.V3(lo.X, lo.Y, hi.Z), geo.V3(hi.X, lo.Y, hi.Z))
	b.add(geo.V3(lo.X, hi.Y, hi.Z), geo.V3(hi.X, hi.Y, hi.Z))

	return b.out
}

// Arrow head defaults used when a request leaves them unset.
const (
	DefaultHeadLength   float32 = 1
	DefaultHeadRadius   float32 = 0.5
	DefaultHeadSegments         = 4
)

// Arrow emits the shaft, a ring around the base of the head and one spoke
// from each ring point to the tip.
func Arrow(begin, end geo.Vec3, headLength, headRadius float32, segments int) []Segment {
	if begin == end {
		return nil
	}
	if headLength <= 0 {
		headLength = DefaultHeadLength
	}
	if headRadius <= 0 {
		headRadius = DefaultHeadRadius
	}
	if segments <= 0 {
		segments = DefaultHeadSegments
	}
	dir := end.Sub(begin).Normal()
	base := end.Sub(dir.MulScalar(headLength))
	pts := ring(base, dir, headRadius, segments)

	b := builder{out: make([]Segment, 0, 1+2*segments)}
	b.add(begin, end)
	for i := 1; i <= segments; i++ {
		b.add(pts[i-1], pts[i])
		b.add(pts[i-1], end)
	}
	return b.out
}

// Polyline joins consecutive points.
func Polyline(points []geo.Vec3) []Segment {
	if len(points) < 2 {
		return nil
	}
	b := builder{out: make([]Segment, 0, len(points)-1)}
	for i := 1; i < len(points); i++ {
		b.add(points[i-1], points[i])
	}
	return b.out
}

// Split cuts begin..end into ceil(length/max) equal pieces. A segment no
// longer than max comes back whole.
func Split(begin, end geo.Vec3, max float32) []Segment {
	if begin == end {
		return nil
	}
	length := begin.DistanceTo(end)
	if max <= 0 || length <= max {
		return []Segment{{Begin: begin, End: end}}
	}
	n := int(math32.Ceil(length / max))
	b := builder{out: make([]Segment, 0, n)}
	last := begin
	for i := 1; i <= n; i++ {
		pos := end
		if i < n {
			pos = geo.Lerp(begin, end, float32(i)/float32(n))
		}
		b.add(last, pos)
		last = pos
	}
	return b.out
}
