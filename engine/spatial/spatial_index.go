package spatial

import (
	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/go-gl/mathgl/mgl32"
)

// SpatialIndex defines a bounding-volume acceleration structure over items of type T.
//
// Mutations (Add, Update) may be deferred until Finalize. Remove takes effect immediately
// and is safe to call for an item whose Add has not yet been finalized.
// Query methods append their results to the provided slice and return it, so a caller can keep
// a prefix of earlier results by passing out[:start]. Queries made before Finalize observe the
// last finalized state.
type SpatialIndex[T comparable] interface {
	// Add registers an item under the given world-space extents.
	//
	// Parameters:
	//   - item: the item to register
	//   - extents: the item's world-space bounding box
	Add(item T, extents common.Extents)

	// Update notifies the index that an item's extents changed.
	// Updating an unknown item registers it.
	//
	// Parameters:
	//   - item: the item that moved
	//   - extents: the item's new world-space bounding box
	Update(item T, extents common.Extents)

	// Remove unregisters an item. Unknown items are ignored.
	//
	// Parameters:
	//   - item: the item to remove
	//
	// Returns:
	//   - bool: true if the item was registered (finalized or pending)
	Remove(item T) bool

	// Finalize flushes pending mutations into the queryable structure.
	Finalize()

	// GetVisibleNodes appends the items whose extents intersect the convex region bounded by planes.
	//
	// Parameters:
	//   - planes: inward-facing planes, a point p is inside when dot(n, p) >= d
	//   - out: the slice to append to
	//
	// Returns:
	//   - []T: out with the visible items appended
	GetVisibleNodes(planes []common.Plane, out []T) []T

	// GetOverlappingNodes appends the items whose extents overlap the given box, touching faces included.
	//
	// Parameters:
	//   - extents: the query box
	//   - out: the slice to append to
	//
	// Returns:
	//   - []T: out with the overlapping items appended
	GetOverlappingNodes(extents common.Extents, out []T) []T

	// GetSphereOverlappingNodes appends the items whose extents overlap the given sphere.
	//
	// Parameters:
	//   - center: the sphere center
	//   - radius: the sphere radius
	//   - out: the slice to append to
	//
	// Returns:
	//   - []T: out with the overlapping items appended
	GetSphereOverlappingNodes(center mgl32.Vec3, radius float32, out []T) []T

	// GetOverlappingPairs appends every unordered pair of distinct items whose extents overlap.
	// Each pair is reported once.
	//
	// Parameters:
	//   - out: the slice to append to
	//
	// Returns:
	//   - [][2]T: out with the overlapping pairs appended
	GetOverlappingPairs(out [][2]T) [][2]T

	// GetExtents returns the union of all finalized item extents.
	//
	// Returns:
	//   - common.Extents: the aggregate bounding box
	//   - bool: false if the index holds no finalized items
	GetExtents() (common.Extents, bool)

	// Has reports whether the item is registered, pending or finalized.
	Has(item T) bool

	// Len returns the number of registered items, pending adds included.
	Len() int

	// Clear removes every item.
	Clear()
}

// sphereOverlapsExtents reports whether a sphere touches a box.
func sphereOverlapsExtents(center mgl32.Vec3, radius float32, e common.Extents) bool {
	var distSq float32
	for i := range 3 {
		v := center[i]
		if v < e[i] {
			d := e[i] - v
			distSq += d * d
		} else if v > e[i+3] {
			d := v - e[i+3]
			distSq += d * d
		}
	}
	return distSq <= radius*radius
}
