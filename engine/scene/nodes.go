package scene

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// lookup resolves a handle to its arena slot. The pointer is invalidated by the next CreateNode.
func (s *sceneImpl) lookup(h NodeHandle) (*node, bool) {
	if h.ID < 0 || int(h.ID) >= len(s.nodes) {
		return nil, false
	}
	n := &s.nodes[h.ID]
	if !n.alive || n.generation != h.Generation {
		return nil, false
	}
	return n, true
}

func (s *sceneImpl) handle(id NodeID) NodeHandle {
	return NodeHandle{ID: id, Generation: s.nodes[id].generation}
}

func notFound(h NodeHandle) error {
	return fmt.Errorf("%w: %d/%d", ErrNodeNotFound, h.ID, h.Generation)
}

func (s *sceneImpl) CreateNode(options ...NodeOption) NodeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createNode(options...)
}

func (s *sceneImpl) createNode(options ...NodeOption) NodeHandle {
	var id NodeID
	var generation uint32 = 1
	if len(s.free) > 0 {
		id = s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
		generation = s.nodes[id].generation + 1
		if generation == 0 {
			generation = 1
		}
	} else {
		id = NodeID(len(s.nodes))
		s.nodes = append(s.nodes, node{})
	}

	n := node{
		generation: generation,
		alive:      true,
		parent:     noNode,
		local:      mgl32.Ident4(),
		world:      mgl32.Ident4(),
		dirtyWorld: true,
		dirtyExt:   true,
	}
	for _, option := range options {
		option(&n)
	}
	if n.name == "" {
		n.name = uuid.NewString()
	}
	s.nodes[id] = n
	return NodeHandle{ID: id, Generation: generation}
}

func (s *sceneImpl) DestroyNode(h NodeHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyNode(h)
}

func (s *sceneImpl) destroyNode(h NodeHandle) error {
	n, ok := s.lookup(h)
	if !ok {
		return notFound(h)
	}
	if n.parent != noNode {
		p := &s.nodes[n.parent]
		p.children = slices.DeleteFunc(p.children, func(c NodeID) bool { return c == h.ID })
		p.dirtyExt = true
		s.markDirty(n.parent)
	}
	if n.root {
		s.unregisterRoot(h.ID)
	}
	s.removeFromIndices(h.ID)

	s.walk(h.ID, func(id NodeID) bool {
		d := &s.nodes[id]
		for _, r := range d.renderables {
			r.node = NodeHandle{}
		}
		for _, li := range d.lights {
			li.node = NodeHandle{}
		}
		generation := d.generation
		*d = node{generation: generation, parent: noNode}
		s.free = append(s.free, id)
		return true
	})
	return nil
}

// walk visits a subtree depth first. Returning false from visit skips the children of that node.
// Children are read after visit returns, so visit may reset the node it is given.
func (s *sceneImpl) walk(root NodeID, visit func(id NodeID) bool) {
	stack := append(s.walkStack[:0], root)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		children := s.nodes[id].children
		if visit(id) {
			stack = append(stack, children...)
		}
	}
	s.walkStack = stack[:0]
}

// rootOf returns the topmost ancestor of a node.
func (s *sceneImpl) rootOf(id NodeID) NodeID {
	for s.nodes[id].parent != noNode {
		id = s.nodes[id].parent
	}
	return id
}

// markDirty queues the root of a node for the next update. Nodes outside the scene are picked up
// when their hierarchy is added.
func (s *sceneImpl) markDirty(id NodeID) {
	root := s.rootOf(id)
	if !s.nodes[root].root {
		return
	}
	if _, ok := s.dirtyRoots[root]; ok {
		return
	}
	s.dirtyRoots[root] = struct{}{}
	s.dirtyList = append(s.dirtyList, root)
}

// removeFromIndices takes a subtree out of both spatial indices. Its transforms are recomputed
// when it rejoins the scene.
func (s *sceneImpl) removeFromIndices(root NodeID) {
	s.walk(root, func(id NodeID) bool {
		n := &s.nodes[id]
		if n.indexed {
			if n.indexedDynamic {
				s.dynamicIndex.Remove(id)
			} else {
				s.staticIndex.Remove(id)
				s.staticChanges++
			}
			n.indexed = false
		}
		n.dirtyWorld = true
		return true
	})
}

func (s *sceneImpl) AddChild(parent, child NodeHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addChild(parent, child)
}

func (s *sceneImpl) addChild(parent, child NodeHandle) error {
	p, ok := s.lookup(parent)
	if !ok {
		return notFound(parent)
	}
	c, ok := s.lookup(child)
	if !ok {
		return notFound(child)
	}
	if c.parent != noNode || c.root {
		return fmt.Errorf("%w: %q", ErrNodeOwned, c.name)
	}
	for id := parent.ID; id != noNode; id = s.nodes[id].parent {
		if id == child.ID {
			return fmt.Errorf("%w: %q would become its own ancestor", ErrInvalidState, c.name)
		}
	}
	for _, sibling := range p.children {
		if s.nodes[sibling].name == c.name {
			return fmt.Errorf("%w: %q under %q", ErrDuplicateName, c.name, p.name)
		}
	}

	p.children = append(p.children, child.ID)
	c.parent = parent.ID
	c.dirtyWorld = true
	s.markDirty(child.ID)
	return nil
}

func (s *sceneImpl) RemoveChild(parent, child NodeHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.lookup(parent)
	if !ok {
		return notFound(parent)
	}
	c, ok := s.lookup(child)
	if !ok || c.parent != parent.ID {
		return notFound(child)
	}
	p.children = slices.DeleteFunc(p.children, func(id NodeID) bool { return id == child.ID })
	c.parent = noNode
	s.removeFromIndices(child.ID)
	return nil
}

func (s *sceneImpl) SetLocalTransform(h NodeHandle, m mgl32.Mat4) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.lookup(h)
	if !ok {
		return notFound(h)
	}
	if s.areasLocked && n.indexed && !n.indexedDynamic {
		return fmt.Errorf("%w: static node %q is placed in areas", ErrInvalidState, n.name)
	}
	n.local = m
	n.hasLocal = true
	n.dirtyWorld = true
	s.markDirty(h.ID)
	return nil
}

func (s *sceneImpl) LocalTransform(h NodeHandle) (mgl32.Mat4, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.lookup(h)
	if !ok {
		return mgl32.Ident4(), false
	}
	return n.local, true
}

func (s *sceneImpl) WorldTransform(h NodeHandle) (mgl32.Mat4, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.lookup(h)
	if !ok {
		return mgl32.Ident4(), false
	}
	return n.world, true
}

func (s *sceneImpl) WorldExtents(h NodeHandle) (common.Extents, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.lookup(h)
	if !ok || !n.hasExtents {
		return common.Extents{}, false
	}
	return n.worldExtents, true
}

func (s *sceneImpl) SetCustomWorldExtents(h NodeHandle, extents *common.Extents) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.lookup(h)
	if !ok {
		return notFound(h)
	}
	if extents == nil {
		n.customExtents = nil
	} else {
		e := *extents
		n.customExtents = &e
	}
	n.dirtyExt = true
	s.markDirty(h.ID)
	return nil
}

func (s *sceneImpl) SetDynamic(h NodeHandle, dynamic bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(h); !ok {
		return notFound(h)
	}
	s.walk(h.ID, func(id NodeID) bool {
		n := &s.nodes[id]
		if n.dynamic != dynamic {
			n.dynamic = dynamic
			n.dirtyExt = true
		}
		return true
	})
	s.markDirty(h.ID)
	return nil
}

func (s *sceneImpl) Dynamic(h NodeHandle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.lookup(h)
	return ok && n.dynamic
}

func (s *sceneImpl) SetDisabled(h NodeHandle, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(h); !ok {
		return notFound(h)
	}
	s.walk(h.ID, func(id NodeID) bool {
		s.nodes[id].disabled = disabled
		return true
	})
	return nil
}

func (s *sceneImpl) Disabled(h NodeHandle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.lookup(h)
	return ok && n.disabled
}

func (s *sceneImpl) AddRenderable(h NodeHandle, r *Renderable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRenderable(h, r)
}

func (s *sceneImpl) addRenderable(h NodeHandle, r *Renderable) error {
	n, ok := s.lookup(h)
	if !ok {
		return notFound(h)
	}
	if !r.node.IsZero() {
		return fmt.Errorf("%w: renderable already attached", ErrNodeOwned)
	}
	r.node = h
	n.renderables = append(n.renderables, r)
	n.dirtyExt = true
	s.markDirty(h.ID)
	return nil
}

func (s *sceneImpl) RemoveRenderable(h NodeHandle, r *Renderable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.lookup(h)
	if !ok {
		return notFound(h)
	}
	i := slices.Index(n.renderables, r)
	if i < 0 {
		return fmt.Errorf("%w: renderable not attached to %q", ErrNodeNotFound, n.name)
	}
	n.renderables = slices.Delete(n.renderables, i, i+1)
	r.node = NodeHandle{}
	n.dirtyExt = true
	s.markDirty(h.ID)
	return nil
}

func (s *sceneImpl) AddLightInstance(h NodeHandle, li *LightInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLightInstance(h, li)
}

func (s *sceneImpl) addLightInstance(h NodeHandle, li *LightInstance) error {
	n, ok := s.lookup(h)
	if !ok {
		return notFound(h)
	}
	if !li.node.IsZero() {
		return fmt.Errorf("%w: light instance already attached", ErrNodeOwned)
	}
	li.node = h
	n.lights = append(n.lights, li)
	n.dirtyExt = true
	s.markDirty(h.ID)
	return nil
}

func (s *sceneImpl) RemoveLightInstance(h NodeHandle, li *LightInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.lookup(h)
	if !ok {
		return notFound(h)
	}
	i := slices.Index(n.lights, li)
	if i < 0 {
		return fmt.Errorf("%w: light instance not attached to %q", ErrNodeNotFound, n.name)
	}
	n.lights = slices.Delete(n.lights, i, i+1)
	li.node = NodeHandle{}
	n.dirtyExt = true
	s.markDirty(h.ID)
	return nil
}

func (s *sceneImpl) Renderables(h NodeHandle) []*Renderable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.lookup(h); ok {
		return n.renderables
	}
	return nil
}

func (s *sceneImpl) LightInstances(h NodeHandle) []*LightInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.lookup(h); ok {
		return n.lights
	}
	return nil
}

func (s *sceneImpl) Children(h NodeHandle) []NodeHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.lookup(h)
	if !ok {
		return nil
	}
	out := make([]NodeHandle, len(n.children))
	for i, c := range n.children {
		out[i] = s.handle(c)
	}
	return out
}

func (s *sceneImpl) Parent(h NodeHandle) (NodeHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.lookup(h)
	if !ok || n.parent == noNode {
		return NodeHandle{}, false
	}
	return s.handle(n.parent), true
}

func (s *sceneImpl) NodeName(h NodeHandle) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.lookup(h); ok {
		return n.name
	}
	return ""
}

func (s *sceneImpl) NodePath(h NodeHandle) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.lookup(h); !ok {
		return ""
	}
	var parts []string
	for id := h.ID; id != noNode; id = s.nodes[id].parent {
		parts = append(parts, s.nodes[id].name)
	}
	slices.Reverse(parts)
	return strings.Join(parts, "/")
}

func (s *sceneImpl) Valid(h NodeHandle) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lookup(h)
	return ok
}

func (s *sceneImpl) AddRootNode(h NodeHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRootNode(h)
}

func (s *sceneImpl) addRootNode(h NodeHandle) error {
	n, ok := s.lookup(h)
	if !ok {
		return notFound(h)
	}
	if n.parent != noNode || n.root {
		return fmt.Errorf("%w: %w: %q", ErrInvalidState, ErrNodeOwned, n.name)
	}
	if _, ok := s.rootNames[n.name]; ok {
		return fmt.Errorf("%w: %w: root %q", ErrInvalidState, ErrDuplicateName, n.name)
	}

	n.root = true
	n.dirtyWorld = true
	s.roots = append(s.roots, h.ID)
	s.rootNames[n.name] = h.ID
	s.markDirty(h.ID)
	return nil
}

func (s *sceneImpl) RemoveRootNode(h NodeHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.lookup(h)
	if !ok {
		return notFound(h)
	}
	if !n.root {
		return fmt.Errorf("%w: %q", ErrNotRoot, n.name)
	}
	s.unregisterRoot(h.ID)
	s.removeFromIndices(h.ID)
	return nil
}

func (s *sceneImpl) unregisterRoot(id NodeID) {
	n := &s.nodes[id]
	n.root = false
	s.roots = slices.DeleteFunc(s.roots, func(r NodeID) bool { return r == id })
	delete(s.rootNames, n.name)
	if _, ok := s.dirtyRoots[id]; ok {
		delete(s.dirtyRoots, id)
		s.dirtyList = slices.DeleteFunc(s.dirtyList, func(r NodeID) bool { return r == id })
	}
}

func (s *sceneImpl) FindNode(path string) (NodeHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findNode(path)
}

func (s *sceneImpl) findNode(path string) (NodeHandle, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	id, ok := s.rootNames[parts[0]]
	if !ok {
		return NodeHandle{}, false
	}
	for _, name := range parts[1:] {
		i := slices.IndexFunc(s.nodes[id].children, func(c NodeID) bool { return s.nodes[c].name == name })
		if i < 0 {
			return NodeHandle{}, false
		}
		id = s.nodes[id].children[i]
	}
	return s.handle(id), true
}

func (s *sceneImpl) RootNodes() []NodeHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]NodeHandle, len(s.roots))
	for i, id := range s.roots {
		out[i] = s.handle(id)
	}
	return out
}
