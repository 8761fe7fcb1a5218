package geo

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

const tol = 1e-5

func assertVecNear(t *testing.T, want, got Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol)
	assert.InDelta(t, want.Y, got.Y, tol)
	assert.InDelta(t, want.Z, got.Z, tol)
}

func TestBranchlessONBIsOrthonormal(t *testing.T) {
	normals := []Vec3{
		Up,
		{Y: -1},
		{Z: 1},
		{Z: -1},
		{X: 1},
		V3(1, 1, 1).Normal(),
		V3(-0.3, 0.2, -0.9).Normal(),
	}
	for _, n := range normals {
		tg, bt := BranchlessONB(n)
		assert.InDelta(t, 1, tg.Length(), tol, "tangent length for %v", n)
		assert.InDelta(t, 1, bt.Length(), tol, "bitangent length for %v", n)
		assert.InDelta(t, 0, tg.Dot(bt), tol, "t.b for %v", n)
		assert.InDelta(t, 0, tg.Dot(n), tol, "t.n for %v", n)
		assert.InDelta(t, 0, bt.Dot(n), tol, "b.n for %v", n)
	}
}

func TestCubeToSphereLandsOnUnitSphere(t *testing.T) {
	points := []Vec3{
		{1, 1, 1},
		{-1, 1, -1},
		{1, 0, 0},
		{0.5, -1, 0.25},
		{-1, -0.75, 0.4},
		{0.1, 0.9, 1},
	}
	for _, p := range points {
		assert.InDelta(t, 1, CubeToSphere(p).Length(), tol, "mapped %v", p)
	}
	assertVecNear(t, Vec3{X: 1}, CubeToSphere(Vec3{X: 1}))
}

func TestLerp(t *testing.T) {
	a, b := V3(0, 0, 0), V3(10, -4, 2)
	assertVecNear(t, a, Lerp(a, b, 0))
	assertVecNear(t, b, Lerp(a, b, 1))
	assertVecNear(t, V3(5, -2, 1), Lerp(a, b, 0.5))
}

func TestNormalOfZeroStaysZero(t *testing.T) {
	assert.Equal(t, Zero, Zero.Normal())
	assert.InDelta(t, 1, V3(3, 4, 0).Normal().Length(), tol)
}

func TestCellOfFloorsNegativeCoordinates(t *testing.T) {
	assert.Equal(t, CellPos{0, 0}, CellOf(V3(0, 64, 15.9)))
	assert.Equal(t, CellPos{-1, 0}, CellOf(V3(-0.1, 0, 0)))
	assert.Equal(t, CellPos{2, -3}, CellOf(V3(32, -100, -33)))
}

func TestBoxOrdersCorners(t *testing.T) {
	b := Box(V3(4, -1, 2), V3(-2, 3, 2))
	assert.Equal(t, V3(-2, -1, 2), b.Min)
	assert.Equal(t, V3(4, 3, 2), b.Max)
	assert.InDelta(t, math32.Sqrt(36+16), b.Extent().Length(), tol)
}
