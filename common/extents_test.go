package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtentsOverlap(t *testing.T) {
	a := Extents{0, 0, 0, 1, 1, 1}
	touching := Extents{1, 0, 0, 2, 1, 1}
	apart := Extents{1.5, 0, 0, 2, 1, 1}

	assert.True(t, a.Overlaps(touching))
	assert.False(t, a.OverlapsStrict(touching))
	assert.False(t, a.Overlaps(apart))
	assert.True(t, a.OverlapsStrict(Extents{0.5, 0.5, 0.5, 3, 3, 3}))
}

func TestExtentsUnionAndContains(t *testing.T) {
	a := Extents{0, 0, 0, 1, 1, 1}
	b := Extents{-1, 2, 0, 0, 3, 4}
	u := a.Union(b)

	assert.Equal(t, Extents{-1, 0, 0, 1, 3, 4}, u)
	assert.True(t, u.Contains(a))
	assert.True(t, u.Contains(b))
	assert.False(t, a.Contains(u))

	empty := EmptyExtents()
	assert.False(t, empty.IsValid())
	assert.Equal(t, a, empty.Union(a))
}

func TestExtentsPadAndDimensions(t *testing.T) {
	e := Extents{0, 0, 0, 2, 4, 6}
	assert.Equal(t, float32(6), e.MaxDimension())
	assert.Equal(t, Extents{-1, -1, -1, 3, 5, 7}, e.Pad(1))
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, e.Center())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, e.HalfExtents())
}

func TestExtentsTransform(t *testing.T) {
	e := Extents{-1, -1, -1, 1, 1, 1}

	moved := e.Transform(mgl32.Translate3D(10, 0, 0))
	assert.Equal(t, Extents{9, -1, -1, 11, 1, 1}, moved)

	rotated := Extents{0, 0, 0, 2, 1, 1}.Transform(mgl32.HomogRotate3DZ(mgl32.DegToRad(90)))
	require.True(t, rotated.IsValid())
	assert.InDelta(t, -1, rotated[0], 1e-5)
	assert.InDelta(t, 0, rotated[1], 1e-5)
	assert.InDelta(t, 0, rotated[3], 1e-5)
	assert.InDelta(t, 2, rotated[4], 1e-5)
}

func TestExtentsFromPoints(t *testing.T) {
	e := ExtentsFromPoints([]mgl32.Vec3{{1, 2, 3}, {-1, 5, 0}})
	assert.Equal(t, Extents{-1, 2, 0, 1, 5, 3}, e)
	assert.True(t, e.ContainsPoint(mgl32.Vec3{0, 3, 1}))
}
