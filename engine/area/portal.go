package area

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrDegeneratePortal is returned when a portal polygon has fewer than three points or zero area.
	ErrDegeneratePortal = errors.New("degenerate portal polygon")

	// ErrInvalidAreaIndex is returned when a portal or BSP leaf references an area that does not exist.
	ErrInvalidAreaIndex = errors.New("invalid area index")
)

// Portal is a planar convex polygon through which its owning area sees into Area.
// The camera can look through a portal when it is behind the portal plane, dot(n, c) < d.
type Portal struct {
	Area     int
	Points   []mgl32.Vec3
	Origin   mgl32.Vec3
	Plane    common.Plane
	Extents  common.Extents
	Disabled bool

	queryCounter uint32
}

// NewPortal builds a portal from world-space polygon points. The plane normal follows the winding,
// cross(p1 - p0, p2 - p0).
//
// Parameters:
//   - targetArea: the area index seen through the portal
//   - points: the ordered convex polygon points, at least three
//
// Returns:
//   - *Portal: the portal, with centroid, extents and plane computed
//   - error: ErrDegeneratePortal if the polygon has no area
func NewPortal(targetArea int, points []mgl32.Vec3) (*Portal, error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("%w: %d points", ErrDegeneratePortal, len(points))
	}

	p0 := points[0]
	n := points[1].Sub(p0).Cross(points[2].Sub(p0))
	plane := common.PlaneFromPointNormal(p0, n)
	if plane.IsZero() {
		return nil, fmt.Errorf("%w: collinear points", ErrDegeneratePortal)
	}

	var origin mgl32.Vec3
	for _, p := range points {
		origin = origin.Add(p)
	}
	origin = origin.Mul(1 / float32(len(points)))

	return &Portal{
		Area:    targetArea,
		Points:  points,
		Origin:  origin,
		Plane:   plane,
		Extents: common.ExtentsFromPoints(points),
	}, nil
}

// Area is a convex region of the portal graph.
type Area struct {
	// Target names the scene node whose hierarchy fills the area.
	Target  string
	Portals []*Portal
	Extents common.Extents
}

// VisiblePortal is a portal reached during a visibility query, with the planes bounding what can be seen through it.
type VisiblePortal struct {
	Portal *Portal
	Area   int
	Planes []common.Plane
}
