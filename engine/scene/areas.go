package scene

import (
	"log"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/Carmen-Shannon/oxy-vis/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// maxAreaPadIterations bounds how far a box outside every area is grown looking for one.
const maxAreaPadIterations = 64

func (s *sceneImpl) InitializeAreas() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dirtyList) > 0 {
		s.updateNodes()
		s.staticIndex.Finalize()
		s.dynamicIndex.Finalize()
		s.updateExtents()
	}
	s.initializeAreas()
}

// initializeAreas grows each area to hold its target hierarchy and rebuilds the static node lists.
func (s *sceneImpl) initializeAreas() {
	for i := range s.areas {
		a := &s.areas[i]
		a.nodes = a.nodes[:0]
		a.numStaticNodes = 0
		a.addedDynamic = false

		e := s.graph.Areas[i].Extents
		if s.tightAreaExtents {
			e = a.baseExtents
		}
		if _, ok := s.lookup(a.target); ok {
			if te, ok := s.hierarchyExtents(a.target.ID); ok {
				e = e.Union(te)
			}
		}
		s.graph.Areas[i].Extents = e
	}

	s.addAreaStaticNodes()
	s.checkAreaDynamicNodes()

	for i := range s.areas {
		s.areas[i].numStaticNodes = len(s.areas[i].nodes)
	}
	s.areaChanges = s.staticChanges
	s.areasLocked = true
}

func (s *sceneImpl) hierarchyExtents(root NodeID) (common.Extents, bool) {
	e := common.EmptyExtents()
	found := false
	s.walk(root, func(id NodeID) bool {
		n := &s.nodes[id]
		if n.hasExtents {
			e = e.Union(n.worldExtents)
			found = true
		}
		return true
	})
	return e, found
}

// addAreaStaticNodes files every static node with attachments into the areas it occupies.
// Dynamic subtrees are skipped whole.
func (s *sceneImpl) addAreaStaticNodes() {
	for _, root := range s.roots {
		s.walk(root, func(id NodeID) bool {
			n := &s.nodes[id]
			if n.dynamic {
				return false
			}
			if n.indexed && n.attachmentsEligible() {
				s.addStaticNodeToAreas(id)
			}
			return true
		})
	}
}

func (s *sceneImpl) addStaticNodeToAreas(id NodeID) {
	n := &s.nodes[id]
	e := n.worldExtents

	// A lone spot light is placed by its apex, its box reaches far into neighbouring areas.
	p := e.Center()
	if len(n.renderables) == 0 && len(n.lights) == 1 && n.lights[0].Light.Type() == light.LightTypeSpot {
		p = worldTranslation(n.world)
	}

	if ai := s.graph.FindAreaIndex(p); ai >= 0 {
		s.areas[ai].nodes = append(s.areas[ai].nodes, id)
		s.overlapScratch = s.graph.FindOverlappingAreas(ai, e, false, s.overlapScratch[:0])
		for _, oi := range s.overlapScratch {
			s.areas[oi].nodes = append(s.areas[oi].nodes, id)
		}
		return
	}

	pad := areaPad(e)
	for range maxAreaPadIterations {
		s.areaScratch = s.graph.FindAreaIndicesAABB(e, s.areaScratch[:0])
		if len(s.areaScratch) > 0 {
			added := false
			for _, ai := range s.areaScratch {
				if s.graph.Areas[ai].Extents.Overlaps(e) {
					s.areas[ai].nodes = append(s.areas[ai].nodes, id)
					added = true
				}
			}
			if !added {
				for _, ai := range s.areaScratch {
					s.areas[ai].nodes = append(s.areas[ai].nodes, id)
				}
			}
			return
		}
		e = e.Pad(pad)
	}

	if !s.outsideWarned {
		s.outsideWarned = true
		log.Printf("[Area] node %q is outside every area and will not be visible from inside one", n.name)
	}
}

// checkAreaDynamicNodes grows the boxes of dynamic nodes lying outside every area until the BSP
// places them in an area they overlap, so a portal query from inside an area can still reach them.
func (s *sceneImpl) checkAreaDynamicNodes() {
	updated := false
	for id := range s.nodes {
		n := &s.nodes[id]
		if !n.alive || !n.indexed || !n.indexedDynamic || !n.attachmentsEligible() {
			continue
		}

		e := n.worldExtents
		padded := false
		for range maxAreaPadIterations {
			if s.inOverlappingArea(e) {
				if padded {
					n.worldExtents = e
					s.dynamicIndex.Update(NodeID(id), e)
					updated = true
				}
				break
			}
			e = e.Pad(areaPad(e))
			padded = true
		}
	}
	if updated {
		s.dynamicIndex.Finalize()
	}
}

// inOverlappingArea reports whether the BSP reaches an area from e whose extents overlap e.
func (s *sceneImpl) inOverlappingArea(e common.Extents) bool {
	s.areaScratch = s.graph.FindAreaIndicesAABB(e, s.areaScratch[:0])
	for _, ai := range s.areaScratch {
		if s.graph.Areas[ai].Extents.Overlaps(e) {
			return true
		}
	}
	return false
}

func areaPad(e common.Extents) float32 {
	if pad := e.MaxDimension() / 20; pad > 0 {
		return pad
	}
	return 0.01
}

func (s *sceneImpl) NumAreas() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.NumAreas()
}

func (s *sceneImpl) AreaExtents(index int) (common.Extents, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= s.graph.NumAreas() {
		return common.Extents{}, false
	}
	return s.graph.Areas[index].Extents, true
}

func (s *sceneImpl) AreaStaticNodes(index int) []NodeHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.areas) {
		return nil
	}
	a := &s.areas[index]
	out := make([]NodeHandle, 0, a.numStaticNodes)
	for _, id := range a.nodes[:a.numStaticNodes] {
		if s.nodes[id].alive {
			out = append(out, s.handle(id))
		}
	}
	return out
}

func (s *sceneImpl) FindAreaIndex(p mgl32.Vec3) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.FindAreaIndex(p)
}

func (s *sceneImpl) SetPortalDisabled(a, b int, disabled bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.SetPortalDisabled(a, b, disabled)
}
