package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Extents is an axis-aligned bounding box stored as (minX, minY, minZ, maxX, maxY, maxZ).
type Extents [6]float32

// EmptyExtents returns an inverted box that any Union will replace.
//
// Returns:
//   - Extents: a box with min at +MaxFloat32 and max at -MaxFloat32
func EmptyExtents() Extents {
	m := float32(math32.MaxFloat32)
	return Extents{m, m, m, -m, -m, -m}
}

// ExtentsFromCenter builds a box from a center point and half extents.
//
// Parameters:
//   - center: the center of the box
//   - half: the half size along each axis
//
// Returns:
//   - Extents: the resulting box
func ExtentsFromCenter(center, half mgl32.Vec3) Extents {
	return Extents{
		center[0] - half[0], center[1] - half[1], center[2] - half[2],
		center[0] + half[0], center[1] + half[1], center[2] + half[2],
	}
}

// ExtentsFromPoints returns the tight box around the given points.
// An empty point list yields EmptyExtents.
//
// Parameters:
//   - points: the points to bound
//
// Returns:
//   - Extents: the bounding box of the points
func ExtentsFromPoints(points []mgl32.Vec3) Extents {
	e := EmptyExtents()
	for _, p := range points {
		e = e.AddPoint(p)
	}
	return e
}

// Min returns the minimum corner.
func (e Extents) Min() mgl32.Vec3 { return mgl32.Vec3{e[0], e[1], e[2]} }

// Max returns the maximum corner.
func (e Extents) Max() mgl32.Vec3 { return mgl32.Vec3{e[3], e[4], e[5]} }

// Center returns the midpoint of the box.
func (e Extents) Center() mgl32.Vec3 {
	return mgl32.Vec3{(e[0] + e[3]) * 0.5, (e[1] + e[4]) * 0.5, (e[2] + e[5]) * 0.5}
}

// HalfExtents returns half the size of the box along each axis.
func (e Extents) HalfExtents() mgl32.Vec3 {
	return mgl32.Vec3{(e[3] - e[0]) * 0.5, (e[4] - e[1]) * 0.5, (e[5] - e[2]) * 0.5}
}

// IsValid reports whether min <= max on every axis and no component is NaN.
func (e Extents) IsValid() bool {
	for i := range 3 {
		if math32.IsNaN(e[i]) || math32.IsNaN(e[i+3]) || e[i] > e[i+3] {
			return false
		}
	}
	return true
}

// Overlaps reports whether two boxes intersect, touching faces included.
//
// Parameters:
//   - o: the other box
//
// Returns:
//   - bool: true if the closed boxes share at least one point
func (e Extents) Overlaps(o Extents) bool {
	return e[0] <= o[3] && e[1] <= o[4] && e[2] <= o[5] &&
		e[3] >= o[0] && e[4] >= o[1] && e[5] >= o[2]
}

// OverlapsStrict reports whether two boxes intersect with a positive volume.
// Boxes that only touch along a face do not overlap.
//
// Parameters:
//   - o: the other box
//
// Returns:
//   - bool: true if the open boxes intersect
func (e Extents) OverlapsStrict(o Extents) bool {
	return e[0] < o[3] && e[1] < o[4] && e[2] < o[5] &&
		e[3] > o[0] && e[4] > o[1] && e[5] > o[2]
}

// Contains reports whether o lies entirely within e.
func (e Extents) Contains(o Extents) bool {
	return e[0] <= o[0] && e[1] <= o[1] && e[2] <= o[2] &&
		e[3] >= o[3] && e[4] >= o[4] && e[5] >= o[5]
}

// ContainsPoint reports whether p lies within the closed box.
func (e Extents) ContainsPoint(p mgl32.Vec3) bool {
	return e[0] <= p[0] && e[1] <= p[1] && e[2] <= p[2] &&
		e[3] >= p[0] && e[4] >= p[1] && e[5] >= p[2]
}

// Union returns the smallest box containing both e and o.
func (e Extents) Union(o Extents) Extents {
	return Extents{
		min(e[0], o[0]), min(e[1], o[1]), min(e[2], o[2]),
		max(e[3], o[3]), max(e[4], o[4]), max(e[5], o[5]),
	}
}

// Intersect returns the overlapping region of e and o.
// The result is not valid when the boxes do not overlap.
func (e Extents) Intersect(o Extents) Extents {
	return Extents{
		max(e[0], o[0]), max(e[1], o[1]), max(e[2], o[2]),
		min(e[3], o[3]), min(e[4], o[4]), min(e[5], o[5]),
	}
}

// AddPoint grows the box to include p.
func (e Extents) AddPoint(p mgl32.Vec3) Extents {
	return Extents{
		min(e[0], p[0]), min(e[1], p[1]), min(e[2], p[2]),
		max(e[3], p[0]), max(e[4], p[1]), max(e[5], p[2]),
	}
}

// Pad grows the box by amount on every side.
func (e Extents) Pad(amount float32) Extents {
	return Extents{
		e[0] - amount, e[1] - amount, e[2] - amount,
		e[3] + amount, e[4] + amount, e[5] + amount,
	}
}

// MaxDimension returns the largest side length of the box.
func (e Extents) MaxDimension() float32 {
	return math32.Max(e[3]-e[0], math32.Max(e[4]-e[1], e[5]-e[2]))
}

// SurfaceArea returns the surface area of the box, used as the insertion cost metric by spatial indices.
func (e Extents) SurfaceArea() float32 {
	dx := e[3] - e[0]
	dy := e[4] - e[1]
	dz := e[5] - e[2]
	return 2 * (dx*dy + dy*dz + dz*dx)
}

// Transform returns the axis-aligned box enclosing e after transformation by m.
// Uses the center / half-extents form so the result stays tight for rotations.
//
// Parameters:
//   - m: the affine transform to apply
//
// Returns:
//   - Extents: the world-space bounding box
func (e Extents) Transform(m mgl32.Mat4) Extents {
	c := e.Center()
	h := e.HalfExtents()

	wc := m.Mul4x1(c.Vec4(1)).Vec3()
	var wh mgl32.Vec3
	for row := range 3 {
		wh[row] = math32.Abs(m.At(row, 0))*h[0] +
			math32.Abs(m.At(row, 1))*h[1] +
			math32.Abs(m.At(row, 2))*h[2]
	}
	return ExtentsFromCenter(wc, wh)
}
