package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestNewPlaneNormalizes(t *testing.T) {
	p := NewPlane(0, 0, 2, 4)
	assert.InDelta(t, 1, p.Normal[2], 1e-6)
	assert.InDelta(t, 2, p.Distance, 1e-6)

	zero := NewPlane(0, 0, 0, 5)
	assert.True(t, zero.IsZero())
	assert.True(t, zero.IsInside(mgl32.Vec3{1, 2, 3}))
}

func TestExtractFrustumFromMatrix(t *testing.T) {
	proj := Perspective(mgl32.DegToRad(90), 1, 1, 100)
	f := ExtractFrustumFromMatrix(proj)

	inside := func(p mgl32.Vec3) bool {
		for _, pl := range f.Planes {
			if !pl.IsInside(p) {
				return false
			}
		}
		return true
	}

	tests := []struct {
		name  string
		point mgl32.Vec3
		want  bool
	}{
		{"center", mgl32.Vec3{0, 0, -10}, true},
		{"before near", mgl32.Vec3{0, 0, -0.5}, false},
		{"beyond far", mgl32.Vec3{0, 0, -200}, false},
		{"right of frustum", mgl32.Vec3{20, 0, -10}, false},
		{"left of frustum", mgl32.Vec3{-20, 0, -10}, false},
		{"above frustum", mgl32.Vec3{0, 20, -10}, false},
		{"behind camera", mgl32.Vec3{0, 0, 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inside(tt.point))
		})
	}

	assert.InDelta(t, 1, f.Planes[FrustumNear].Distance, 1e-4)
	assert.InDelta(t, -100, f.Planes[FrustumFar].Distance, 1e-2)
}

func TestPlanesAABB(t *testing.T) {
	// Slab 0 <= x <= 10.
	planes := []Plane{
		NewPlane(1, 0, 0, 0),
		NewPlane(-1, 0, 0, -10),
	}

	tests := []struct {
		name   string
		box    Extents
		inside bool
		fully  bool
	}{
		{"fully inside", Extents{1, 0, 0, 9, 1, 1}, true, true},
		{"straddles", Extents{-1, 0, 0, 1, 1, 1}, true, false},
		{"touches boundary", Extents{-2, 0, 0, 0, 1, 1}, true, false},
		{"outside", Extents{-3, 0, 0, -1, 1, 1}, false, false},
		{"beyond", Extents{11, 0, 0, 12, 1, 1}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.inside, IsInsidePlanesAABB(tt.box, planes))
			assert.Equal(t, tt.fully, IsFullyInsidePlanesAABB(tt.box, planes))
		})
	}

	assert.True(t, IsInsidePlanesAABB(Extents{-5, -5, -5, -4, -4, -4}, nil))
}

func TestIsInsidePlanesSphere(t *testing.T) {
	planes := []Plane{NewPlane(1, 0, 0, 0)}
	assert.True(t, IsInsidePlanesSphere(mgl32.Vec3{-0.5, 0, 0}, 1, planes))
	assert.False(t, IsInsidePlanesSphere(mgl32.Vec3{-2, 0, 0}, 1, planes))
}
