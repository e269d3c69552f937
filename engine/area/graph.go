package area

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Graph is the portal graph of a scene: convex areas linked by portals, plus the BSP tree that
// classifies points into areas. Traversals stamp portals with a query counter instead of keeping
// a visited set, so cycles in the graph are harmless.
//
// Query results returned by a Graph are scratch memory owned by the graph and stay valid until the
// next query of the same kind.
type Graph struct {
	Areas []Area
	BSP   BSPTree

	queryCounter uint32
	areaStamps   []uint32

	planes      PortalPlaneBuilder
	basePlanes  []common.Plane
	edgePlanes  []common.Plane
	visible     []VisiblePortal
	overlapping []VisiblePortal
	portalStack []*Portal

	maxVisiblePortals int
	capWarned         bool
}

// NewGraph creates an empty portal graph.
//
// Parameters:
//   - options: variadic list of GraphBuilderOption functions to configure the graph
//
// Returns:
//   - *Graph: the new graph
func NewGraph(options ...GraphBuilderOption) *Graph {
	g := &Graph{
		maxVisiblePortals: 4096,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// NumAreas returns the number of areas.
func (g *Graph) NumAreas() int {
	return len(g.Areas)
}

// Empty reports whether the graph has no areas to classify against.
func (g *Graph) Empty() bool {
	return len(g.Areas) == 0 || len(g.BSP.Nodes) == 0
}

// Append adds areas and BSP nodes loaded from another document. Area indices referenced by the new
// portals and BSP leaves are relative to the new batch, and BSP node indices relative to the new nodes.
// The first new BSP node is not linked from the existing tree, so appending a second tree only makes
// its areas reachable through portals.
//
// Parameters:
//   - areas: the areas to append
//   - nodes: the BSP nodes to append
//
// Returns:
//   - int: the index of the first appended area
func (g *Graph) Append(areas []Area, nodes []BSPNode) int {
	base := len(g.Areas)
	nodeBase := len(g.BSP.Nodes)

	for i := range areas {
		for _, p := range areas[i].Portals {
			p.Area += base
		}
	}
	g.Areas = append(g.Areas, areas...)

	for _, n := range nodes {
		n.Pos = rebase(n.Pos, base, nodeBase)
		n.Neg = rebase(n.Neg, base, nodeBase)
		g.BSP.Nodes = append(g.BSP.Nodes, n)
	}
	return base
}

func rebase(c BSPChild, areaBase, nodeBase int) BSPChild {
	switch c.Kind {
	case BSPChildLeaf:
		c.Index += int32(areaBase)
	case BSPChildInternal:
		c.Index += int32(nodeBase)
	}
	return c
}

// Validate checks that every portal and BSP leaf references an existing area.
//
// Returns:
//   - error: ErrInvalidAreaIndex describing the first bad reference, or nil
func (g *Graph) Validate() error {
	numAreas := len(g.Areas)
	for ai := range g.Areas {
		for pi, p := range g.Areas[ai].Portals {
			if p.Area < 0 || p.Area >= numAreas {
				return fmt.Errorf("%w: area %d portal %d targets %d", ErrInvalidAreaIndex, ai, pi, p.Area)
			}
		}
	}
	for ni, n := range g.BSP.Nodes {
		for _, c := range [2]BSPChild{n.Pos, n.Neg} {
			if c.IsLeaf() && int(c.Index) >= numAreas {
				return fmt.Errorf("%w: bsp node %d leaf %d", ErrInvalidAreaIndex, ni, c.Index)
			}
		}
	}
	return nil
}

// Clear removes every area and BSP node.
func (g *Graph) Clear() {
	g.Areas = g.Areas[:0]
	g.BSP.Nodes = g.BSP.Nodes[:0]
	g.visible = g.visible[:0]
	g.overlapping = g.overlapping[:0]
}

// FindAreaIndex returns the area containing p, or -1 when p is outside every area.
func (g *Graph) FindAreaIndex(p mgl32.Vec3) int {
	if len(g.Areas) == 0 {
		return -1
	}
	return g.BSP.FindAreaIndex(p)
}

// FindAreaIndicesAABB appends every area a box may touch according to the BSP tree.
func (g *Graph) FindAreaIndicesAABB(e common.Extents, out []int) []int {
	if len(g.Areas) == 0 {
		return out
	}
	return g.BSP.FindAreaIndicesAABB(e, out)
}

// NextQueryCounter returns a fresh stamp for a traversal.
func (g *Graph) NextQueryCounter() uint32 {
	g.queryCounter++
	if g.queryCounter == 0 {
		g.resetStamps()
		g.queryCounter = 1
	}
	return g.queryCounter
}

// QueryCounter returns the stamp of the latest traversal.
func (g *Graph) QueryCounter() uint32 {
	return g.queryCounter
}

func (g *Graph) resetStamps() {
	for ai := range g.Areas {
		for _, p := range g.Areas[ai].Portals {
			p.queryCounter = 0
		}
	}
	clear(g.areaStamps)
}

// SetPortalDisabled opens or closes every portal between two areas, in both directions.
//
// Parameters:
//   - a, b: the areas the portals connect
//   - disabled: true to close the portals
//
// Returns:
//   - int: the number of portals changed
func (g *Graph) SetPortalDisabled(a, b int, disabled bool) int {
	changed := 0
	set := func(from, to int) {
		if from < 0 || from >= len(g.Areas) {
			return
		}
		for _, p := range g.Areas[from].Portals {
			if p.Area == to {
				p.Disabled = disabled
				changed++
			}
		}
	}
	set(a, b)
	set(b, a)
	return changed
}

// FindVisiblePortals walks the portal graph breadth first from the area containing the viewpoint.
// Each reached portal carries the planes bounding what the viewpoint sees through it, derived from
// the planes of the portal it was reached through. Portals seen only partially stay unstamped so a
// different path may reach them again with other planes.
//
// Parameters:
//   - start: the area containing viewpoint
//   - viewpoint: the camera position
//   - frustumPlanes: the camera side planes
//   - nearPlane: the camera near plane, moved to the viewpoint to reject portals behind the camera
//
// Returns:
//   - []VisiblePortal: the reached portals, valid until the next call
func (g *Graph) FindVisiblePortals(start int, viewpoint mgl32.Vec3, frustumPlanes []common.Plane, nearPlane common.Plane) []VisiblePortal {
	counter := g.NextQueryCounter()
	n := 0

	base := append(g.basePlanes[:0], frustumPlanes...)
	base = append(base, common.Plane{Normal: nearPlane.Normal, Distance: nearPlane.Dot(viewpoint)})
	g.basePlanes = base

	for _, portal := range g.Areas[start].Portals {
		if portal.Disabled {
			continue
		}
		portal.queryCounter = counter
		if portal.Plane.Dot(viewpoint) >= portal.Plane.Distance {
			continue
		}
		n = g.tryAddVisible(n, portal, portal.Area, base, viewpoint, false, counter)
	}

	for current := 0; current < n; current++ {
		// The portal plane itself culls portals behind it while expanding this item.
		numPlanes := len(g.visible[current].Planes)
		parent := append(g.visible[current].Planes, g.visible[current].Portal.Plane)
		g.visible[current].Planes = parent
		areaIndex := g.visible[current].Area

		for _, portal := range g.Areas[areaIndex].Portals {
			if portal.Area == areaIndex || portal.queryCounter == counter || portal.Disabled {
				continue
			}
			if portal.Plane.Dot(viewpoint) < portal.Plane.Distance {
				n = g.tryAddVisible(n, portal, portal.Area, parent, viewpoint, true, counter)
			} else {
				portal.queryCounter = counter
			}
		}

		g.visible[current].Planes = g.visible[current].Planes[:numPlanes]
	}

	for i := n; i < len(g.visible); i++ {
		g.visible[i].Portal = nil
	}
	g.visible = g.visible[:n]
	return g.visible
}

func (g *Graph) capReached(n int) bool {
	if n < g.maxVisiblePortals {
		return false
	}
	if !g.capWarned {
		log.Printf("[Area] portal cap of %d reached, traversal truncated", g.maxVisiblePortals)
		g.capWarned = true
	}
	return true
}

// tryAddVisible builds the planes for a portal into slot n, reusing the slot's plane storage,
// and returns the new count.
func (g *Graph) tryAddVisible(n int, portal *Portal, area int, parent []common.Plane, viewpoint mgl32.Vec3, stampIfAllVisible bool, counter uint32) int {
	if g.capReached(n) {
		return n
	}
	if n == len(g.visible) {
		if n < cap(g.visible) {
			g.visible = g.visible[:n+1]
		} else {
			g.visible = append(g.visible, VisiblePortal{})
		}
	}

	slot := &g.visible[n]
	planes, allVisible := g.planes.BuildPortalPlanes(portal.Points, parent, viewpoint, slot.Planes)
	slot.Planes = planes
	if len(planes) == 0 {
		return n
	}
	if stampIfAllVisible && allVisible {
		portal.queryCounter = counter
	}
	slot.Portal = portal
	slot.Area = area
	return n + 1
}

// FindOverlappingAreas collects the areas a box reaches through open portals from start, start excluded.
// A portal is followed when its extents overlap the box and the box reaches its front side.
//
// Parameters:
//   - start: the area the box is known to be in
//   - e: the world-space box
//   - avoidDisabled: true to not follow disabled portals
//   - out: the slice to append area indices to
//
// Returns:
//   - []int: out with the reached areas appended
func (g *Graph) FindOverlappingAreas(start int, e common.Extents, avoidDisabled bool, out []int) []int {
	counter := g.NextQueryCounter()
	if len(g.areaStamps) < len(g.Areas) {
		g.areaStamps = append(g.areaStamps, make([]uint32, len(g.Areas)-len(g.areaStamps))...)
	}
	g.areaStamps[start] = counter

	stack := g.portalStack[:0]
	for _, portal := range g.Areas[start].Portals {
		if avoidDisabled && portal.Disabled {
			continue
		}
		portal.queryCounter = counter
		if portalReachedByBox(portal, e) {
			stack = append(stack, portal)
		}
	}

	for len(stack) > 0 {
		portal := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		areaIndex := portal.Area
		if g.areaStamps[areaIndex] != counter {
			g.areaStamps[areaIndex] = counter
			out = append(out, areaIndex)
		}

		for _, next := range g.Areas[areaIndex].Portals {
			if avoidDisabled && next.Disabled {
				continue
			}
			if next.Area == areaIndex || next.Area == start || next.queryCounter == counter {
				continue
			}
			next.queryCounter = counter
			if portalReachedByBox(next, e) {
				stack = append(stack, next)
			}
		}
	}

	clear(stack)
	g.portalStack = stack[:0]
	return out
}

func portalReachedByBox(p *Portal, e common.Extents) bool {
	if !p.Extents.OverlapsStrict(e) {
		return false
	}
	return common.IsInsidePlanesAABB(e, []common.Plane{p.Plane})
}

// FindOverlappingPortals walks open portals from start whose extents overlap a box and which the
// origin looks through, accumulating the view planes through each portal chain. No frustum limits
// the walk.
//
// Parameters:
//   - start: the area containing origin
//   - origin: the query origin
//   - e: the world-space query box
//
// Returns:
//   - []VisiblePortal: the reached portals, valid until the next call
func (g *Graph) FindOverlappingPortals(start int, origin mgl32.Vec3, e common.Extents) []VisiblePortal {
	counter := g.NextQueryCounter()
	n := 0

	for _, portal := range g.Areas[start].Portals {
		if portal.Disabled {
			continue
		}
		portal.queryCounter = counter
		if !g.portalOpensTowards(portal, origin, e) {
			continue
		}
		n = g.tryAddOverlapping(n, portal, nil, origin)
	}

	for current := 0; current < n; current++ {
		areaIndex := g.overlapping[current].Area
		for _, portal := range g.Areas[areaIndex].Portals {
			if portal.Area == areaIndex || portal.queryCounter == counter || portal.Disabled {
				continue
			}
			if g.portalOpensTowards(portal, origin, e) {
				before := n
				n = g.tryAddOverlapping(n, portal, g.overlapping[current].Planes, origin)
				if n > before {
					portal.queryCounter = counter
				}
			} else {
				portal.queryCounter = counter
			}
		}
	}

	for i := n; i < len(g.overlapping); i++ {
		g.overlapping[i].Portal = nil
	}
	g.overlapping = g.overlapping[:n]
	return g.overlapping
}

func (g *Graph) portalOpensTowards(p *Portal, origin mgl32.Vec3, e common.Extents) bool {
	return p.Extents.OverlapsStrict(e) &&
		p.Plane.Dot(origin) < p.Plane.Distance &&
		common.IsInsidePlanesAABB(e, []common.Plane{p.Plane})
}

func (g *Graph) tryAddOverlapping(n int, portal *Portal, parent []common.Plane, origin mgl32.Vec3) int {
	if g.capReached(n) {
		return n
	}
	if n == len(g.overlapping) {
		if n < cap(g.overlapping) {
			g.overlapping = g.overlapping[:n+1]
		} else {
			g.overlapping = append(g.overlapping, VisiblePortal{})
		}
	}

	slot := &g.overlapping[n]
	planes := append(slot.Planes[:0], parent...)
	edges, _ := g.planes.BuildPortalPlanes(portal.Points, nil, origin, g.edgePlanes)
	g.edgePlanes = edges[:0]
	if len(edges) == 0 {
		slot.Planes = planes[:0]
		return n
	}
	slot.Planes = append(planes, edges...)
	slot.Portal = portal
	slot.Area = portal.Area
	return n + 1
}
