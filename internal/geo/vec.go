// Package geo holds the small value types shared by the tessellator, the
// wire protocol and the spatial index. Every function here is pure.
package geo

import "github.com/chewxy/math32"

// Vec3 is a world-space position or direction.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// V3 constructs a Vec3.
func V3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

var (
	Zero = Vec3{}
	Up   = Vec3{Y: 1}
)

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) MulScalar(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) DivScalar(s float32) Vec3 {
	return Vec3{v.X / s, v.Y / s, v.Z / s}
}

func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) LengthSqr() float32 {
	return v.Dot(v)
}

func (v Vec3) Length() float32 {
	return math32.Sqrt(v.LengthSqr())
}

func (v Vec3) DistanceTo(o Vec3) float32 {
	return o.Sub(v).Length()
}

// Normal returns v scaled to unit length. The zero vector stays zero.
func (v Vec3) Normal() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return v.DivScalar(l)
}

// Lerp interpolates between a and b; t is not clamped.
func Lerp(a, b Vec3, t float32) Vec3 {
	return Vec3{
		a.X + (b.X-a.X)*t,
		a.Y + (b.Y-a.Y)*t,
		a.Z + (b.Z-a.Z)*t,
	}
}

// BranchlessONB builds two tangents that complete the unit normal n into an
// orthonormal basis. It is valid for every unit n, including the poles
// (Duff et al., "Building an Orthonormal Basis, Revisited").
func BranchlessONB(n Vec3) (t, b Vec3) {
	sign := math32.Copysign(1, n.Z)
	a := -1 / (sign + n.Z)
	c := n.X * n.Y * a
	t = Vec3{1 + sign*n.X*n.X*a, sign * c, -sign * n.X}
	b = Vec3{c, sign + n.Y*n.Y*a, -n.Y}
	return t, b
}

// CubeToSphere maps a point on the [-1,1] cube surface onto the unit sphere.
// Unlike plain normalisation it keeps grid cells close to equal area, so the
// wireframe does not bunch up at the cube corners.
func CubeToSphere(p Vec3) Vec3 {
	x2, y2, z2 := p.X*p.X, p.Y*p.Y, p.Z*p.Z
	return Vec3{
		p.X * math32.Sqrt(1-y2/2-z2/2+y2*z2/3),
		p.Y * math32.Sqrt(1-z2/2-x2/2+z2*x2/3),
		p.Z * math32.Sqrt(1-x2/2-y2/2+x2*y2/3),
	}
}
