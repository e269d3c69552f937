package spatial

import (
	"cmp"
	"slices"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/go-gl/mathgl/mgl32"
)

const nullNode int32 = -1

// treeNode is a slot in the tree arena. A leaf has child1 == nullNode, a free slot has height -1.
type treeNode[T comparable] struct {
	// box is exact: the item extents for a leaf, the union of both children otherwise.
	box common.Extents
	// fat is only used by leaves. Updates that stay inside it refit ancestors instead of reinserting.
	fat common.Extents

	parent int32
	child1 int32
	child2 int32
	height int32

	item T
}

func (n *treeNode[T]) isLeaf() bool {
	return n.child1 == nullNode
}

type buildEntry[T comparable] struct {
	item    T
	extents common.Extents
	center  mgl32.Vec3
}

// aabbTreeImpl is a dynamic bounding volume hierarchy stored in a flat arena.
// Inserts pick a sibling by the surface area heuristic and keep the tree
// height-balanced with rotations. Large batches rebuild the tree top-down.
type aabbTreeImpl[T comparable] struct {
	nodes []treeNode[T]
	free  []int32
	root  int32

	leaves       map[T]int32
	pending      map[T]common.Extents
	pendingOrder []T

	cfg aabbTreeConfig

	stack []int32
	build []buildEntry[T]
}

var _ SpatialIndex[int] = &aabbTreeImpl[int]{}

// NewAABBTree creates an empty dynamic AABB tree.
//
// Parameters:
//   - options: variadic list of AABBTreeBuilderOption functions to configure the tree
//
// Returns:
//   - SpatialIndex[T]: the new index
func NewAABBTree[T comparable](options ...AABBTreeBuilderOption) SpatialIndex[T] {
	cfg := defaultAABBTreeConfig()
	for _, opt := range options {
		opt(&cfg)
	}

	return &aabbTreeImpl[T]{
		nodes:   make([]treeNode[T], 0, 2*cfg.initialCapacity),
		root:    nullNode,
		leaves:  make(map[T]int32, cfg.initialCapacity),
		pending: make(map[T]common.Extents),
		cfg:     cfg,
	}
}

func (t *aabbTreeImpl[T]) Add(item T, extents common.Extents) {
	t.queue(item, extents)
}

func (t *aabbTreeImpl[T]) Update(item T, extents common.Extents) {
	t.queue(item, extents)
}

func (t *aabbTreeImpl[T]) queue(item T, extents common.Extents) {
	if _, ok := t.pending[item]; !ok {
		t.pendingOrder = append(t.pendingOrder, item)
	}
	t.pending[item] = extents
}

func (t *aabbTreeImpl[T]) Remove(item T) bool {
	_, wasPending := t.pending[item]
	delete(t.pending, item)

	idx, ok := t.leaves[item]
	if !ok {
		return wasPending
	}
	t.removeLeaf(idx)
	delete(t.leaves, item)
	t.freeNode(idx)
	return true
}

func (t *aabbTreeImpl[T]) Finalize() {
	if len(t.pending) == 0 {
		t.pendingOrder = t.pendingOrder[:0]
		return
	}

	if len(t.pending) >= t.cfg.minRebuildSize &&
		float32(len(t.pending)) > t.cfg.rebuildThreshold*float32(len(t.leaves)) {
		t.rebuild()
		return
	}

	for _, item := range t.pendingOrder {
		extents, ok := t.pending[item]
		if !ok {
			continue
		}
		delete(t.pending, item)

		idx, exists := t.leaves[item]
		if !exists {
			t.createLeaf(item, extents)
			continue
		}

		n := &t.nodes[idx]
		if n.fat.Contains(extents) {
			n.box = extents
			t.refitAncestors(idx)
			continue
		}

		t.removeLeaf(idx)
		n = &t.nodes[idx]
		n.box = extents
		n.fat = extents.Pad(t.cfg.margin)
		t.insertLeaf(idx)
	}
	t.pendingOrder = t.pendingOrder[:0]
}

func (t *aabbTreeImpl[T]) GetVisibleNodes(planes []common.Plane, out []T) []T {
	if t.root == nullNode {
		return out
	}

	// A negative stack entry ^i marks a subtree already known to be fully inside.
	stack := append(t.stack[:0], t.root)
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if idx < 0 {
			n := &t.nodes[^idx]
			if n.isLeaf() {
				out = append(out, n.item)
			} else {
				stack = append(stack, ^n.child1, ^n.child2)
			}
			continue
		}

		n := &t.nodes[idx]
		if !common.IsInsidePlanesAABB(n.box, planes) {
			continue
		}
		if n.isLeaf() {
			out = append(out, n.item)
			continue
		}
		if common.IsFullyInsidePlanesAABB(n.box, planes) {
			stack = append(stack, ^n.child1, ^n.child2)
			continue
		}
		stack = append(stack, n.child1, n.child2)
	}
	t.stack = stack
	return out
}

func (t *aabbTreeImpl[T]) GetOverlappingNodes(extents common.Extents, out []T) []T {
	if t.root == nullNode {
		return out
	}

	stack := append(t.stack[:0], t.root)
	for len(stack) > 0 {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		if !n.box.Overlaps(extents) {
			continue
		}
		if n.isLeaf() {
			out = append(out, n.item)
			continue
		}
		stack = append(stack, n.child1, n.child2)
	}
	t.stack = stack
	return out
}

func (t *aabbTreeImpl[T]) GetSphereOverlappingNodes(center mgl32.Vec3, radius float32, out []T) []T {
	if t.root == nullNode {
		return out
	}

	stack := append(t.stack[:0], t.root)
	for len(stack) > 0 {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		if !sphereOverlapsExtents(center, radius, n.box) {
			continue
		}
		if n.isLeaf() {
			out = append(out, n.item)
			continue
		}
		stack = append(stack, n.child1, n.child2)
	}
	t.stack = stack
	return out
}

func (t *aabbTreeImpl[T]) GetOverlappingPairs(out [][2]T) [][2]T {
	if t.root == nullNode {
		return out
	}

	stack := t.stack[:0]
	for i := range t.nodes {
		leaf := &t.nodes[i]
		if leaf.height != 0 {
			continue
		}

		stack = append(stack[:0], t.root)
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			n := &t.nodes[idx]
			if !n.box.Overlaps(leaf.box) {
				continue
			}
			if n.isLeaf() {
				// Report each pair from its lower arena slot only.
				if idx > int32(i) {
					out = append(out, [2]T{leaf.item, n.item})
				}
				continue
			}
			stack = append(stack, n.child1, n.child2)
		}
	}
	t.stack = stack
	return out
}

func (t *aabbTreeImpl[T]) GetExtents() (common.Extents, bool) {
	if t.root == nullNode {
		return common.Extents{}, false
	}
	return t.nodes[t.root].box, true
}

func (t *aabbTreeImpl[T]) Has(item T) bool {
	if _, ok := t.leaves[item]; ok {
		return true
	}
	_, ok := t.pending[item]
	return ok
}

func (t *aabbTreeImpl[T]) Len() int {
	n := len(t.leaves)
	for item := range t.pending {
		if _, ok := t.leaves[item]; !ok {
			n++
		}
	}
	return n
}

func (t *aabbTreeImpl[T]) Clear() {
	t.nodes = t.nodes[:0]
	t.free = t.free[:0]
	t.root = nullNode
	clear(t.leaves)
	clear(t.pending)
	t.pendingOrder = t.pendingOrder[:0]
}

// Height returns the height of the tree, 0 for a single leaf and -1 when empty.
func (t *aabbTreeImpl[T]) Height() int {
	if t.root == nullNode {
		return -1
	}
	return int(t.nodes[t.root].height)
}

func (t *aabbTreeImpl[T]) allocNode() int32 {
	blank := treeNode[T]{parent: nullNode, child1: nullNode, child2: nullNode}
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		t.nodes[idx] = blank
		return idx
	}
	t.nodes = append(t.nodes, blank)
	return int32(len(t.nodes) - 1)
}

func (t *aabbTreeImpl[T]) freeNode(idx int32) {
	t.nodes[idx] = treeNode[T]{parent: nullNode, child1: nullNode, child2: nullNode, height: -1}
	t.free = append(t.free, idx)
}

func (t *aabbTreeImpl[T]) createLeaf(item T, extents common.Extents) {
	idx := t.allocNode()
	n := &t.nodes[idx]
	n.item = item
	n.box = extents
	n.fat = extents.Pad(t.cfg.margin)
	t.leaves[item] = idx
	t.insertLeaf(idx)
}

func (t *aabbTreeImpl[T]) insertLeaf(leaf int32) {
	if t.root == nullNode {
		t.root = leaf
		t.nodes[leaf].parent = nullNode
		return
	}

	leafBox := t.nodes[leaf].box
	index := t.root
	for !t.nodes[index].isLeaf() {
		n := &t.nodes[index]
		area := n.box.SurfaceArea()
		combined := n.box.Union(leafBox).SurfaceArea()

		// Cost of making a new parent here, and the minimum cost pushed to descendants.
		cost := 2 * combined
		inheritance := 2 * (combined - area)

		cost1 := t.descendCost(n.child1, leafBox, inheritance)
		cost2 := t.descendCost(n.child2, leafBox, inheritance)
		if cost < cost1 && cost < cost2 {
			break
		}
		if cost1 < cost2 {
			index = n.child1
		} else {
			index = n.child2
		}
	}

	sibling := index
	oldParent := t.nodes[sibling].parent
	newParent := t.allocNode()

	p := &t.nodes[newParent]
	p.parent = oldParent
	p.box = leafBox.Union(t.nodes[sibling].box)
	p.height = t.nodes[sibling].height + 1
	p.child1 = sibling
	p.child2 = leaf

	if oldParent != nullNode {
		op := &t.nodes[oldParent]
		if op.child1 == sibling {
			op.child1 = newParent
		} else {
			op.child2 = newParent
		}
	} else {
		t.root = newParent
	}
	t.nodes[sibling].parent = newParent
	t.nodes[leaf].parent = newParent

	t.rebalanceFrom(newParent)
}

func (t *aabbTreeImpl[T]) descendCost(child int32, leafBox common.Extents, inheritance float32) float32 {
	c := &t.nodes[child]
	union := leafBox.Union(c.box).SurfaceArea()
	if c.isLeaf() {
		return union + inheritance
	}
	return union - c.box.SurfaceArea() + inheritance
}

func (t *aabbTreeImpl[T]) removeLeaf(leaf int32) {
	if leaf == t.root {
		t.root = nullNode
		return
	}

	parent := t.nodes[leaf].parent
	grand := t.nodes[parent].parent
	sibling := t.nodes[parent].child1
	if sibling == leaf {
		sibling = t.nodes[parent].child2
	}

	if grand != nullNode {
		g := &t.nodes[grand]
		if g.child1 == parent {
			g.child1 = sibling
		} else {
			g.child2 = sibling
		}
		t.nodes[sibling].parent = grand
		t.freeNode(parent)
		t.rebalanceFrom(grand)
	} else {
		t.root = sibling
		t.nodes[sibling].parent = nullNode
		t.freeNode(parent)
	}
	t.nodes[leaf].parent = nullNode
}

// rebalanceFrom walks to the root fixing heights and boxes, rotating unbalanced nodes.
func (t *aabbTreeImpl[T]) rebalanceFrom(index int32) {
	for index != nullNode {
		index = t.balance(index)

		n := &t.nodes[index]
		c1 := &t.nodes[n.child1]
		c2 := &t.nodes[n.child2]
		n.height = 1 + max(c1.height, c2.height)
		n.box = c1.box.Union(c2.box)

		index = n.parent
	}
}

func (t *aabbTreeImpl[T]) refitAncestors(index int32) {
	for p := t.nodes[index].parent; p != nullNode; p = t.nodes[p].parent {
		n := &t.nodes[p]
		n.box = t.nodes[n.child1].box.Union(t.nodes[n.child2].box)
	}
}

// balance performs a left or right rotation if node a is imbalanced and returns the new subtree root.
func (t *aabbTreeImpl[T]) balance(a int32) int32 {
	n := &t.nodes[a]
	if n.isLeaf() || n.height < 2 {
		return a
	}

	b, c := n.child1, n.child2
	diff := t.nodes[c].height - t.nodes[b].height
	switch {
	case diff > 1:
		return t.rotate(a, c, b)
	case diff < -1:
		return t.rotate(a, b, c)
	}
	return a
}

// rotate lifts child up above a. The taller grandchild stays under up, the other moves under a.
func (t *aabbTreeImpl[T]) rotate(a, up, other int32) int32 {
	na := &t.nodes[a]
	nu := &t.nodes[up]
	f, g := nu.child1, nu.child2

	nu.child1 = a
	nu.parent = na.parent
	na.parent = up

	if nu.parent != nullNode {
		p := &t.nodes[nu.parent]
		if p.child1 == a {
			p.child1 = up
		} else {
			p.child2 = up
		}
	} else {
		t.root = up
	}

	keep, move := g, f
	if t.nodes[f].height > t.nodes[g].height {
		keep, move = f, g
	}

	nu.child2 = keep
	if na.child1 == up {
		na.child1 = move
	} else {
		na.child2 = move
	}
	t.nodes[move].parent = a

	no := &t.nodes[other]
	nm := &t.nodes[move]
	nk := &t.nodes[keep]

	na.box = no.box.Union(nm.box)
	na.height = 1 + max(no.height, nm.height)
	nu.box = na.box.Union(nk.box)
	nu.height = 1 + max(na.height, nk.height)

	return up
}

// rebuild discards the tree and builds it top-down from every leaf plus every pending item.
func (t *aabbTreeImpl[T]) rebuild() {
	entries := t.build[:0]
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.height != 0 {
			continue
		}
		extents := n.box
		if p, ok := t.pending[n.item]; ok {
			extents = p
			delete(t.pending, n.item)
		}
		entries = append(entries, buildEntry[T]{item: n.item, extents: extents, center: extents.Center()})
	}
	for _, item := range t.pendingOrder {
		extents, ok := t.pending[item]
		if !ok {
			continue
		}
		delete(t.pending, item)
		entries = append(entries, buildEntry[T]{item: item, extents: extents, center: extents.Center()})
	}
	t.pendingOrder = t.pendingOrder[:0]

	t.nodes = slices.Grow(t.nodes[:0], 2*len(entries))
	t.free = t.free[:0]
	clear(t.leaves)
	t.root = nullNode
	if len(entries) > 0 {
		t.root = t.buildRange(entries, nullNode)
	}

	clear(entries)
	t.build = entries[:0]
}

// buildRange builds a subtree by splitting at the median center along the longest center axis.
func (t *aabbTreeImpl[T]) buildRange(entries []buildEntry[T], parent int32) int32 {
	idx := t.allocNode()
	if len(entries) == 1 {
		n := &t.nodes[idx]
		n.item = entries[0].item
		n.box = entries[0].extents
		n.fat = n.box.Pad(t.cfg.margin)
		n.parent = parent
		t.leaves[n.item] = idx
		return idx
	}

	centers := common.EmptyExtents()
	for i := range entries {
		centers = centers.AddPoint(entries[i].center)
	}
	axis := 0
	size := centers.HalfExtents()
	if size[1] > size[axis] {
		axis = 1
	}
	if size[2] > size[axis] {
		axis = 2
	}
	slices.SortFunc(entries, func(a, b buildEntry[T]) int {
		return cmp.Compare(a.center[axis], b.center[axis])
	})

	mid := len(entries) / 2
	left := t.buildRange(entries[:mid], idx)
	right := t.buildRange(entries[mid:], idx)

	n := &t.nodes[idx]
	n.parent = parent
	n.child1 = left
	n.child2 = right
	n.box = t.nodes[left].box.Union(t.nodes[right].box)
	n.height = 1 + max(t.nodes[left].height, t.nodes[right].height)
	return idx
}
