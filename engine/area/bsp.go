package area

import (
	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/go-gl/mathgl/mgl32"
)

// BSPChildKind discriminates the three states a BSP child link can be in.
type BSPChildKind uint8

const (
	// BSPChildNone is a link to nothing, a point reaching it is outside every area.
	BSPChildNone BSPChildKind = iota
	// BSPChildInternal links to another BSP node.
	BSPChildInternal
	// BSPChildLeaf resolves to an area.
	BSPChildLeaf
)

// BSPChild is a child link of a BSPNode: either another node, an area leaf, or nothing.
type BSPChild struct {
	Kind  BSPChildKind
	Index int32
}

// BSPInternal returns a link to the BSP node at index.
func BSPInternal(index int) BSPChild {
	return BSPChild{Kind: BSPChildInternal, Index: int32(index)}
}

// BSPLeaf returns a link resolving to area.
func BSPLeaf(area int) BSPChild {
	return BSPChild{Kind: BSPChildLeaf, Index: int32(area)}
}

// BSPChildFromFile decodes the scene file encoding: a positive value is a node index,
// a negative value v is the leaf for area -(v+1), and zero links to nothing.
//
// Parameters:
//   - v: the encoded child value
//
// Returns:
//   - BSPChild: the decoded link
func BSPChildFromFile(v int) BSPChild {
	switch {
	case v > 0:
		return BSPInternal(v)
	case v < 0:
		return BSPLeaf(-(v + 1))
	}
	return BSPChild{}
}

// IsLeaf reports whether the link resolves to an area.
func (c BSPChild) IsLeaf() bool { return c.Kind == BSPChildLeaf }

// IsInternal reports whether the link points at another BSP node.
func (c BSPChild) IsInternal() bool { return c.Kind == BSPChildInternal }

// Area returns the area index of a leaf link, or -1 for any other link.
func (c BSPChild) Area() int {
	if c.Kind != BSPChildLeaf {
		return -1
	}
	return int(c.Index)
}

// BSPNode splits space by Plane. Points with dot(n, p) < d descend into Neg, all others into Pos.
type BSPNode struct {
	Plane common.Plane
	Pos   BSPChild
	Neg   BSPChild
}

// BSPTree classifies points and boxes into areas. The root is node 0.
type BSPTree struct {
	Nodes []BSPNode

	stack      []int32
	areaStamps []uint32
	stamp      uint32
}

// FindAreaIndex returns the area containing p, or -1 if the tree is empty or p reaches a link to nothing.
//
// Parameters:
//   - p: the world-space point to classify
//
// Returns:
//   - int: the area index, or -1
func (t *BSPTree) FindAreaIndex(p mgl32.Vec3) int {
	numNodes := int32(len(t.Nodes))
	if numNodes == 0 {
		return -1
	}

	child := BSPInternal(0)
	for child.Kind == BSPChildInternal && child.Index < numNodes {
		n := &t.Nodes[child.Index]
		if n.Plane.Dot(p) < n.Plane.Distance {
			child = n.Neg
		} else {
			child = n.Pos
		}
	}
	return child.Area()
}

// FindAreaIndicesAABB appends every area reachable by a box. When a box straddles a node plane both
// sides are followed, so the result is conservative. Each area is reported once.
//
// Parameters:
//   - e: the world-space box to classify
//   - out: the slice to append area indices to
//
// Returns:
//   - []int: out with the reachable areas appended
func (t *BSPTree) FindAreaIndicesAABB(e common.Extents, out []int) []int {
	numNodes := int32(len(t.Nodes))
	if numNodes == 0 {
		return out
	}

	t.stamp++
	if t.stamp == 0 {
		clear(t.areaStamps)
		t.stamp = 1
	}

	stack := append(t.stack[:0], 0)
	for len(stack) > 0 {
		index := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for {
			n := &t.Nodes[index]
			d0, d1, d2 := n.Plane.Normal[0], n.Plane.Normal[1], n.Plane.Normal[2]

			var child BSPChild
			if d0*pick(d0 < 0, e[0], e[3])+d1*pick(d1 < 0, e[1], e[4])+d2*pick(d2 < 0, e[2], e[5]) < n.Plane.Distance {
				child = n.Neg
			} else {
				if d0*pick(d0 > 0, e[0], e[3])+d1*pick(d1 > 0, e[1], e[4])+d2*pick(d2 > 0, e[2], e[5]) <= n.Plane.Distance {
					switch n.Neg.Kind {
					case BSPChildLeaf:
						out = t.recordArea(n.Neg.Area(), out)
					case BSPChildInternal:
						if n.Neg.Index < numNodes {
							stack = append(stack, n.Neg.Index)
						}
					}
				}
				child = n.Pos
			}

			if child.Kind != BSPChildInternal {
				if child.Kind == BSPChildLeaf {
					out = t.recordArea(child.Area(), out)
				}
				break
			}
			if child.Index >= numNodes {
				break
			}
			index = child.Index
		}
	}
	t.stack = stack
	return out
}

func (t *BSPTree) recordArea(area int, out []int) []int {
	if area >= len(t.areaStamps) {
		t.areaStamps = append(t.areaStamps, make([]uint32, area+1-len(t.areaStamps))...)
	}
	if t.areaStamps[area] == t.stamp {
		return out
	}
	t.areaStamps[area] = t.stamp
	return append(out, area)
}

func pick(cond bool, a, b float32) float32 {
	if cond {
		return a
	}
	return b
}
