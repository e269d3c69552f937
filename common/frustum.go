package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents an oriented plane with a unit Normal.
// A point p is inside (on the positive side) when dot(Normal, p) >= Distance.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// Frustum represents the six planes of a view frustum for culling.
// Every plane faces into the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// NewPlane builds a normalized plane from an unnormalized normal and distance.
// A zero-length normal yields the all-zero plane, which every point passes.
//
// Parameters:
//   - nx, ny, nz: the plane normal
//   - d: the plane distance in units of the given normal
//
// Returns:
//   - Plane: the normalized plane
func NewPlane(nx, ny, nz, d float32) Plane {
	lsq := nx*nx + ny*ny + nz*nz
	if lsq == 0 {
		return Plane{}
	}
	inv := 1 / math32.Sqrt(lsq)
	return Plane{Normal: [3]float32{nx * inv, ny * inv, nz * inv}, Distance: d * inv}
}

// PlaneFromPointNormal builds a normalized plane through p facing n.
func PlaneFromPointNormal(p, n mgl32.Vec3) Plane {
	return NewPlane(n[0], n[1], n[2], n.Dot(p))
}

// Dot returns dot(Normal, p).
func (pl Plane) Dot(p mgl32.Vec3) float32 {
	return pl.Normal[0]*p[0] + pl.Normal[1]*p[1] + pl.Normal[2]*p[2]
}

// IsInside reports whether p lies on the positive side of the plane.
func (pl Plane) IsInside(p mgl32.Vec3) bool {
	return pl.Dot(p) >= pl.Distance
}

// IsZero reports whether the plane is the degenerate all-zero plane.
func (pl Plane) IsZero() bool {
	return pl.Normal == [3]float32{} && pl.Distance == 0
}

// IsInsidePlanesAABB reports whether a box is at least partially on the positive side of every plane.
// For each plane only the box corner furthest along the normal is tested.
// An empty plane set accepts every box.
//
// Parameters:
//   - e: the box to test
//   - planes: the convex plane set
//
// Returns:
//   - bool: false if the box lies entirely behind any plane
func IsInsidePlanesAABB(e Extents, planes []Plane) bool {
	for i := range planes {
		p := &planes[i]
		n0, n1, n2 := p.Normal[0], p.Normal[1], p.Normal[2]
		x, y, z := e[3], e[4], e[5]
		if n0 < 0 {
			x = e[0]
		}
		if n1 < 0 {
			y = e[1]
		}
		if n2 < 0 {
			z = e[2]
		}
		if n0*x+n1*y+n2*z < p.Distance {
			return false
		}
	}
	return true
}

// IsFullyInsidePlanesAABB reports whether a box is entirely on the positive side of every plane.
// For each plane only the box corner furthest against the normal is tested.
//
// Parameters:
//   - e: the box to test
//   - planes: the convex plane set
//
// Returns:
//   - bool: true only if every corner of the box passes every plane
func IsFullyInsidePlanesAABB(e Extents, planes []Plane) bool {
	for i := range planes {
		p := &planes[i]
		n0, n1, n2 := p.Normal[0], p.Normal[1], p.Normal[2]
		x, y, z := e[3], e[4], e[5]
		if n0 > 0 {
			x = e[0]
		}
		if n1 > 0 {
			y = e[1]
		}
		if n2 > 0 {
			z = e[2]
		}
		if n0*x+n1*y+n2*z < p.Distance {
			return false
		}
	}
	return true
}

// IsInsidePlanesSphere reports whether a sphere is at least partially on the positive side of every plane.
func IsInsidePlanesSphere(center mgl32.Vec3, radius float32, planes []Plane) bool {
	for i := range planes {
		if planes[i].Dot(center)+radius < planes[i].Distance {
			return false
		}
	}
	return true
}

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix.
// The matrix should be the combined Projection * View matrix and use the
// WebGPU clip-space depth range [0, 1].
// Uses the Gribb/Hartmann method for plane extraction.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the view-projection matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized, inward-facing planes
func ExtractFrustumFromMatrix(viewProj mgl32.Mat4) Frustum {
	var f Frustum
	row := func(r int) mgl32.Vec4 { return viewProj.Row(r) }
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	// Clip-space inequality a.x + b >= 0 becomes dot(n, p) >= -w.
	set := func(i int, v mgl32.Vec4) {
		f.Planes[i] = NewPlane(v[0], v[1], v[2], -v[3])
	}

	set(FrustumLeft, r3.Add(r0))
	set(FrustumRight, r3.Sub(r0))
	set(FrustumBottom, r3.Add(r1))
	set(FrustumTop, r3.Sub(r1))
	// z in [0, w]
	set(FrustumNear, r2)
	set(FrustumFar, r3.Sub(r2))

	return f
}
