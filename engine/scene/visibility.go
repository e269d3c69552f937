package scene

import (
	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/Carmen-Shannon/oxy-vis/engine/camera"
)

// visitFunc receives each node found by a traversal along with the planes it was tested against.
type visitFunc func(id NodeID, planes []common.Plane)

// visibleFunc receives each node seen by a visibility traversal. It reports whether every attachment
// of the node was accepted, only then is the node closed to the other portals of the pass.
type visibleFunc func(id NodeID, planes []common.Plane, counter uint32) bool

// nextQueryCounter returns a fresh stamp, resetting every node and attachment stamp when the
// counter wraps.
func (s *sceneImpl) nextQueryCounter() uint32 {
	s.queryCounter++
	if s.queryCounter == 0 {
		for i := range s.nodes {
			n := &s.nodes[i]
			n.queryCounter = 0
			for _, r := range n.renderables {
				r.queryCounter = 0
			}
			for _, li := range n.lights {
				li.queryCounter = 0
			}
		}
		s.queryCounter = 1
	}
	return s.queryCounter
}

// cameraPlanes collects the side planes of the camera frustum. The far plane is only used when the
// scene has no areas, portal traversal bounds the view otherwise.
func (s *sceneImpl) cameraPlanes(frustum common.Frustum, withFar bool) []common.Plane {
	planes := append(s.frustumPlanes[:0],
		frustum.Planes[common.FrustumLeft],
		frustum.Planes[common.FrustumRight],
		frustum.Planes[common.FrustumBottom],
		frustum.Planes[common.FrustumTop],
	)
	if withFar {
		planes = append(planes, frustum.Planes[common.FrustumFar])
	}
	s.frustumPlanes = planes
	return planes
}

// traverseVisible visits the enabled nodes in view of cam. Nodes of the camera area are visited once,
// nodes behind portals are visited again through each further portal until visit accepts all of their
// attachments. It returns the area the camera is in, or -1, and the number of portals traversed.
func (s *sceneImpl) traverseVisible(cam camera.Camera, visit visibleFunc) (int, int) {
	frustum := cam.Frustum()
	hasAreas := !s.graph.Empty()
	planes := s.cameraPlanes(frustum, !hasAreas)
	pos := cam.Position()

	cameraArea := -1
	if hasAreas {
		cameraArea = s.graph.FindAreaIndex(pos)
	}

	counter := s.nextQueryCounter()
	if cameraArea < 0 {
		s.queryNodes = s.staticIndex.GetVisibleNodes(planes, s.queryNodes[:0])
		s.queryNodes = s.dynamicIndex.GetVisibleNodes(planes, s.queryNodes)
		for _, id := range s.queryNodes {
			if !s.nodes[id].disabled {
				visit(id, planes, counter)
			}
		}
		return cameraArea, 0
	}

	camExt := cam.FrustumExtents(0)
	portals := s.graph.FindVisiblePortals(cameraArea, pos, planes, frustum.Planes[common.FrustumNear])
	for i := range s.areas {
		a := &s.areas[i]
		a.nodes = a.nodes[:a.numStaticNodes]
		a.addedDynamic = false
	}

	s.addAreaDynamicNodes(cameraArea, camExt)
	for _, id := range s.areas[cameraArea].nodes {
		n := &s.nodes[id]
		if !n.indexed || n.queryCounter == counter {
			continue
		}
		n.queryCounter = counter
		if n.disabled || !common.IsInsidePlanesAABB(n.worldExtents, planes) {
			continue
		}
		visit(id, planes, counter)
	}

	for _, vp := range portals {
		if !camExt.OverlapsStrict(s.graph.Areas[vp.Area].Extents) {
			continue
		}
		s.addAreaDynamicNodes(vp.Area, camExt)
		for _, id := range s.areas[vp.Area].nodes {
			n := &s.nodes[id]
			if !n.indexed || n.queryCounter == counter {
				continue
			}
			if n.disabled {
				n.queryCounter = counter
				continue
			}
			// Left unstamped so another portal into the same area may still see it.
			if !common.IsInsidePlanesAABB(n.worldExtents, vp.Planes) {
				continue
			}
			if visit(id, vp.Planes, counter) {
				n.queryCounter = counter
			}
		}
	}
	return cameraArea, len(portals)
}

// addAreaDynamicNodes appends the dynamic nodes overlapping both an area and the camera box to the
// area's node list, once per pass.
func (s *sceneImpl) addAreaDynamicNodes(index int, camExt common.Extents) {
	a := &s.areas[index]
	if a.addedDynamic {
		return
	}
	a.addedDynamic = true
	q := s.graph.Areas[index].Extents.Intersect(camExt)
	if !q.IsValid() {
		return
	}
	s.queryNodes = s.dynamicIndex.GetOverlappingNodes(q, s.queryNodes[:0])
	a.nodes = append(a.nodes, s.queryNodes...)
}

func (s *sceneImpl) UpdateVisibleNodes(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.dirtyList) > 0 {
		s.update()
	}

	frameIndex := s.frameIndex
	s.visibleNodes = s.visibleNodes[:0]
	clear(s.visibleRenderables)
	s.visibleRenderables = s.visibleRenderables[:0]
	clear(s.visibleLights)
	s.visibleLights = s.visibleLights[:0]
	s.maxDistance = 0

	near := cam.Frustum().Planes[common.FrustumNear]
	cameraArea, numPortals := s.traverseVisible(cam, func(id NodeID, planes []common.Plane, counter uint32) bool {
		return s.processVisibleNode(id, planes, near, frameIndex, counter)
	})
	s.cameraAreaIndex = cameraArea

	s.trimToMaxDistance(cam, frameIndex)
	s.frameIndex++
	if s.frameIndex == 0 {
		s.frameIndex = 1
	}

	if s.profiler != nil {
		s.profiler.RecordVisibility(len(s.visibleNodes), len(s.visibleRenderables), len(s.visibleLights), numPortals)
	}
}

// processVisibleNode records a node and classifies its attachments against the planes it was seen
// through. A node fully inside the planes accepts all of its attachments without testing them.
// Nodes and attachments lying wholly behind the near plane are culled. It reports whether every
// enabled attachment not yet emitted in this pass was accepted.
func (s *sceneImpl) processVisibleNode(id NodeID, planes []common.Plane, near common.Plane, frameIndex, counter uint32) bool {
	n := &s.nodes[id]
	if n.frameVisible != frameIndex {
		n.frameVisible = frameIndex
		n.distance = nearDistance(n.worldExtents, near)
		if n.distance > 0 {
			s.visibleNodes = append(s.visibleNodes, s.handle(id))
		}
	}
	if n.distance <= 0 {
		return true
	}

	fullyVisible := len(n.renderables)+len(n.lights) > 1 && common.IsFullyInsidePlanesAABB(n.worldExtents, planes)
	allVisible := true

	for _, r := range n.renderables {
		if r.Disabled || r.queryCounter == counter {
			continue
		}
		if !fullyVisible && !common.IsInsidePlanesAABB(r.worldExtents, planes) {
			allVisible = false
			continue
		}
		d := nearDistance(r.worldExtents, near)
		if d <= 0 {
			allVisible = false
			continue
		}
		r.Distance = d
		r.FrameVisible = frameIndex
		r.queryCounter = counter
		s.visibleRenderables = append(s.visibleRenderables, r)
		s.maxDistance = max(s.maxDistance, d)
	}

	for _, li := range n.lights {
		if li.Disabled || li.Light.IsGlobal() || li.queryCounter == counter {
			continue
		}
		if !fullyVisible && !common.IsInsidePlanesAABB(li.worldExtents, planes) {
			allVisible = false
			continue
		}
		d := nearDistance(li.worldExtents, near)
		if d <= 0 {
			allVisible = false
			continue
		}
		li.Distance = d
		li.FrameVisible = frameIndex
		li.queryCounter = counter
		s.visibleLights = append(s.visibleLights, li)
		s.maxDistance = max(s.maxDistance, d)
	}
	return allVisible
}

// trimToMaxDistance shrinks the view to the farthest visible object and drops objects outside the
// shrunken frustum box.
func (s *sceneImpl) trimToMaxDistance(cam camera.Camera, frameIndex uint32) {
	s.maxDistance += cam.Near()
	if s.maxDistance >= cam.Far() {
		s.maxDistance = cam.Far()
		return
	}

	box := cam.FrustumExtents(s.maxDistance)
	removed := false
	for i := 0; i < len(s.visibleRenderables); {
		r := s.visibleRenderables[i]
		if box.Overlaps(r.worldExtents) {
			i++
			continue
		}
		r.FrameVisible = frameIndex - 1
		last := len(s.visibleRenderables) - 1
		s.visibleRenderables[i] = s.visibleRenderables[last]
		s.visibleRenderables[last] = nil
		s.visibleRenderables = s.visibleRenderables[:last]
		removed = true
	}
	for i := 0; i < len(s.visibleLights); {
		li := s.visibleLights[i]
		if box.Overlaps(li.worldExtents) {
			i++
			continue
		}
		li.FrameVisible = frameIndex - 1
		last := len(s.visibleLights) - 1
		s.visibleLights[i] = s.visibleLights[last]
		s.visibleLights[last] = nil
		s.visibleLights = s.visibleLights[:last]
		removed = true
	}
	if !removed {
		return
	}

	kept := s.visibleNodes[:0]
	for _, h := range s.visibleNodes {
		n := &s.nodes[h.ID]
		if box.Overlaps(n.worldExtents) {
			kept = append(kept, h)
		} else {
			n.frameVisible = frameIndex - 1
		}
	}
	s.visibleNodes = kept
}

func (s *sceneImpl) FindVisibleNodes(cam camera.Camera, out []NodeHandle) []NodeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traverseVisible(cam, func(id NodeID, _ []common.Plane, _ uint32) bool {
		out = append(out, s.handle(id))
		return true
	})
	return out
}

func (s *sceneImpl) CurrentVisibleNodes() []NodeHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleNodes
}

func (s *sceneImpl) CurrentVisibleRenderables() []*Renderable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleRenderables
}

func (s *sceneImpl) CurrentVisibleLights() []*LightInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibleLights
}

func (s *sceneImpl) FrameIndex() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameIndex
}

func (s *sceneImpl) CameraAreaIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cameraAreaIndex
}

func (s *sceneImpl) MaxDistance() float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxDistance
}
