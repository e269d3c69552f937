package area

import (
	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// PortalPlaneBuilder derives the planes bounding the view through a portal polygon.
// It owns the scratch memory reused across calls, so one builder must not be shared between goroutines.
type PortalPlaneBuilder struct {
	culled []bool
}

// BuildPortalPlanes computes the convex plane set bounding what a viewpoint sees through a polygon,
// limited by parentPlanes.
//
// Parent planes that reject every point make the portal invisible and an empty set is returned.
// Parent planes that reject no point are dropped, the others are kept. Then one plane through the
// viewpoint is added per polygon edge, except for edges whose two points are rejected by the same
// parent plane. A degenerate edge makes the portal invisible.
//
// Parameters:
//   - points: the ordered convex polygon points
//   - parentPlanes: the planes of the volume the polygon is seen from
//   - viewpoint: the eye position
//   - out: the slice to append the planes to, truncated first
//
// Returns:
//   - []common.Plane: the plane set, empty if the portal cannot be seen
//   - bool: true if every point passed every parent plane
func (b *PortalPlaneBuilder) BuildPortalPlanes(points []mgl32.Vec3, parentPlanes []common.Plane, viewpoint mgl32.Vec3, out []common.Plane) ([]common.Plane, bool) {
	out = out[:0]
	numPoints := len(points)
	numParent := len(parentPlanes)
	if numPoints == 0 {
		return out, false
	}

	size := numPoints * numParent
	if cap(b.culled) < size {
		b.culled = make([]bool, size)
	}
	culled := b.culled[:size]
	clear(culled)

	for pi := range parentPlanes {
		plane := &parentPlanes[pi]
		visible := 0
		for i := range points {
			if plane.Dot(points[i]) >= plane.Distance {
				visible++
			} else {
				culled[i*numParent+pi] = true
			}
		}
		if visible == 0 {
			return out[:0], false
		}
		if visible < numPoints {
			out = append(out, *plane)
		}
	}

	allVisible := len(out) == 0

	for i := range points {
		j := i + 1
		if j == numPoints {
			j = 0
		}

		if sharesCulling(culled[i*numParent:(i+1)*numParent], culled[j*numParent:(j+1)*numParent]) {
			continue
		}

		a := points[i].Sub(viewpoint)
		c := points[j].Sub(viewpoint)
		n := a.Cross(c)
		lsq := n.Dot(n)
		if lsq == 0 {
			return out[:0], false
		}
		n = n.Mul(1 / math32.Sqrt(lsq))
		out = append(out, common.Plane{Normal: n, Distance: n.Dot(viewpoint)})
	}

	return out, allVisible
}

func sharesCulling(a, b []bool) bool {
	for k := range a {
		if a[k] && b[k] {
			return true
		}
	}
	return false
}
