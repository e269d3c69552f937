package scene

import (
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/go-gl/mathgl/mgl32"
)

type propagateEntry struct {
	id    NodeID
	moved bool
}

func (s *sceneImpl) UpdateNodes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateNodes()
}

// updateNodes recomputes world transforms and extents below every dirty root, then applies the
// resulting index membership changes. Root hierarchies are disjoint, so each one is propagated by
// its own task and only the index writes are serialized.
func (s *sceneImpl) updateNodes() {
	roots := s.dirtyList
	if len(roots) == 0 {
		return
	}
	for len(s.changed) < len(roots) {
		s.changed = append(s.changed, nil)
		s.propagateStacks = append(s.propagateStacks, nil)
	}

	if len(roots) == 1 || s.computePool == nil || s.computeWorkers < 2 {
		for i, root := range roots {
			s.changed[i], s.propagateStacks[i] = s.propagate(root, s.changed[i][:0], s.propagateStacks[i])
		}
	} else {
		var wg sync.WaitGroup
		for i, root := range roots {
			wg.Add(1)
			s.computePool.SubmitTask(worker.Task{
				ID: i,
				Do: func() (any, error) {
					defer wg.Done()
					s.changed[i], s.propagateStacks[i] = s.propagate(root, s.changed[i][:0], s.propagateStacks[i])
					return nil, nil
				},
			})
		}
		wg.Wait()
	}

	for i := range roots {
		for _, id := range s.changed[i] {
			s.refreshIndex(id)
		}
	}

	clear(s.dirtyRoots)
	s.dirtyList = s.dirtyList[:0]
}

// propagate walks one root hierarchy top down. A node moves when it or an ancestor was given a
// new transform; moved nodes and nodes with changed attachments get new extents and are appended
// to changed. stack is scratch owned by the caller's slot and is returned for reuse.
func (s *sceneImpl) propagate(root NodeID, changed []NodeID, stack []propagateEntry) ([]NodeID, []propagateEntry) {
	stack = append(stack[:0], propagateEntry{id: root})
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &s.nodes[e.id]
		moved := e.moved || n.dirtyWorld
		if moved {
			if n.parent == noNode {
				n.world = n.local
			} else {
				n.world = s.nodes[n.parent].world.Mul4(n.local)
			}
			n.dirtyWorld = false
		}
		if moved || n.dirtyExt {
			n.computeExtents()
			n.dirtyExt = false
			changed = append(changed, e.id)
		}

		for _, c := range n.children {
			stack = append(stack, propagateEntry{id: c, moved: moved})
		}
	}
	return changed, stack
}

// refreshIndex files a node under the index matching its dynamic flag, or removes it when it
// has no extents.
func (s *sceneImpl) refreshIndex(id NodeID) {
	n := &s.nodes[id]
	if !n.alive {
		return
	}

	if n.indexed && (!n.hasExtents || n.indexedDynamic != n.dynamic) {
		if n.indexedDynamic {
			s.dynamicIndex.Remove(id)
		} else {
			s.staticIndex.Remove(id)
			s.staticChanges++
		}
		n.indexed = false
	}
	if !n.hasExtents {
		return
	}

	if n.dynamic {
		s.dynamicIndex.Update(id, n.worldExtents)
	} else {
		s.staticIndex.Update(id, n.worldExtents)
		s.staticChanges++
	}
	n.indexed = true
	n.indexedDynamic = n.dynamic
}

// worldTranslation returns the origin of a node in world space.
func worldTranslation(m mgl32.Mat4) mgl32.Vec3 {
	return m.Col(3).Vec3()
}
