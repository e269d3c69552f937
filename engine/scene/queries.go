package scene

import (
	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/go-gl/mathgl/mgl32"
)

// traverseOverlapping visits every indexed node overlapping e once. From inside an area the search
// covers the origin area and the areas behind open portals the origin looks through, and nodes
// behind a portal must lie within the planes of that portal.
func (s *sceneImpl) traverseOverlapping(origin mgl32.Vec3, e common.Extents, static, dynamic bool, visit visitFunc) {
	if len(s.dirtyList) > 0 {
		s.update()
	}

	ai := -1
	if !s.graph.Empty() {
		ai = s.graph.FindAreaIndex(origin)
	}

	if ai < 0 {
		for _, id := range s.queryIndices(e, static, dynamic) {
			visit(id, nil)
		}
		return
	}

	counter := s.nextQueryCounter()
	if q := s.graph.Areas[ai].Extents.Intersect(e); q.IsValid() {
		for _, id := range s.queryIndices(q, static, dynamic) {
			s.nodes[id].queryCounter = counter
			visit(id, nil)
		}
	}

	for _, vp := range s.graph.FindOverlappingPortals(ai, origin, e) {
		q := s.graph.Areas[vp.Area].Extents.Intersect(e)
		if !q.IsValid() {
			continue
		}
		for _, id := range s.queryIndices(q, static, dynamic) {
			n := &s.nodes[id]
			if n.queryCounter == counter || !common.IsInsidePlanesAABB(n.worldExtents, vp.Planes) {
				continue
			}
			n.queryCounter = counter
			visit(id, vp.Planes)
		}
	}
}

func (s *sceneImpl) queryIndices(e common.Extents, static, dynamic bool) []NodeID {
	s.queryNodes = s.queryNodes[:0]
	if static {
		s.queryNodes = s.staticIndex.GetOverlappingNodes(e, s.queryNodes)
	}
	if dynamic {
		s.queryNodes = s.dynamicIndex.GetOverlappingNodes(e, s.queryNodes)
	}
	return s.queryNodes
}

func (s *sceneImpl) findOverlappingNodes(origin mgl32.Vec3, e common.Extents, static, dynamic bool, out []NodeHandle) []NodeHandle {
	s.traverseOverlapping(origin, e, static, dynamic, func(id NodeID, _ []common.Plane) {
		out = append(out, s.handle(id))
	})
	return out
}

func (s *sceneImpl) FindOverlappingNodes(origin mgl32.Vec3, extents common.Extents, out []NodeHandle) []NodeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findOverlappingNodes(origin, extents, true, true, out)
}

func (s *sceneImpl) FindStaticOverlappingNodes(origin mgl32.Vec3, extents common.Extents, out []NodeHandle) []NodeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findOverlappingNodes(origin, extents, true, false, out)
}

func (s *sceneImpl) FindDynamicOverlappingNodes(origin mgl32.Vec3, extents common.Extents, out []NodeHandle) []NodeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findOverlappingNodes(origin, extents, false, true, out)
}

func (s *sceneImpl) FindOverlappingRenderables(origin mgl32.Vec3, extents common.Extents, out []*Renderable) []*Renderable {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.traverseOverlapping(origin, extents, true, true, func(id NodeID, planes []common.Plane) {
		n := &s.nodes[id]
		if n.disabled {
			return
		}
		full := extents.Contains(n.worldExtents) &&
			(planes == nil || common.IsFullyInsidePlanesAABB(n.worldExtents, planes))
		for _, r := range n.renderables {
			if r.Disabled {
				continue
			}
			if full || (extents.Overlaps(r.worldExtents) &&
				(planes == nil || common.IsInsidePlanesAABB(r.worldExtents, planes))) {
				out = append(out, r)
			}
		}
	})
	return out
}
