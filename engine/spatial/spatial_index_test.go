package spatial

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type indexFactory struct {
	name string
	make func() SpatialIndex[int]
}

func factories() []indexFactory {
	return []indexFactory{
		{"aabb tree", func() SpatialIndex[int] { return NewAABBTree[int]() }},
		{"aabb tree with margin", func() SpatialIndex[int] { return NewAABBTree[int](WithMargin(0.5)) }},
		{"aabb tree incremental", func() SpatialIndex[int] {
			return NewAABBTree[int](WithRebuildThreshold(1e9, 1<<30))
		}},
		{"rtree", func() SpatialIndex[int] { return NewRTreeIndex[int](WithBranching(2, 4)) }},
	}
}

func box(x, y, z, size float32) common.Extents {
	return common.Extents{x, y, z, x + size, y + size, z + size}
}

func sorted(items []int) []int {
	out := append([]int{}, items...)
	slices.Sort(out)
	return out
}

func TestSpatialIndexBasics(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.make()

			_, ok := idx.GetExtents()
			assert.False(t, ok)
			assert.Empty(t, idx.GetOverlappingNodes(box(0, 0, 0, 100), nil))

			idx.Add(1, box(0, 0, 0, 1))
			idx.Add(2, box(5, 0, 0, 1))
			idx.Add(3, box(10, 0, 0, 1))
			assert.Equal(t, 3, idx.Len())
			assert.True(t, idx.Has(2))

			// Pending adds are not queryable until finalized.
			assert.Empty(t, idx.GetOverlappingNodes(box(-100, -100, -100, 200), nil))

			idx.Finalize()
			assert.Equal(t, []int{1, 2, 3}, sorted(idx.GetOverlappingNodes(box(-100, -100, -100, 200), nil)))
			assert.Equal(t, []int{2}, idx.GetOverlappingNodes(box(5.2, 0.2, 0.2, 0.2), nil))

			// Touching faces count as overlap.
			assert.Equal(t, []int{1}, idx.GetOverlappingNodes(common.Extents{1, 0, 0, 2, 1, 1}, nil))

			ext, ok := idx.GetExtents()
			require.True(t, ok)
			assert.Equal(t, common.Extents{0, 0, 0, 11, 1, 1}, ext)

			idx.Update(2, box(20, 0, 0, 1))
			idx.Finalize()
			assert.Empty(t, idx.GetOverlappingNodes(box(5.2, 0.2, 0.2, 0.2), nil))
			assert.Equal(t, []int{2}, idx.GetOverlappingNodes(box(20, 0, 0, 0.5), nil))

			assert.True(t, idx.Remove(1))
			assert.False(t, idx.Remove(1))
			assert.Equal(t, []int{2, 3}, sorted(idx.GetOverlappingNodes(box(-100, -100, -100, 200), nil)))

			idx.Clear()
			assert.Equal(t, 0, idx.Len())
			idx.Finalize()
			assert.Empty(t, idx.GetOverlappingNodes(box(-100, -100, -100, 200), nil))
		})
	}
}

func TestSpatialIndexRemoveBeforeFinalize(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.make()
			idx.Add(7, box(0, 0, 0, 1))
			assert.True(t, idx.Remove(7))
			idx.Finalize()

			assert.False(t, idx.Has(7))
			assert.Empty(t, idx.GetOverlappingNodes(box(-1, -1, -1, 3), nil))

			idx.Add(7, box(0, 0, 0, 1))
			idx.Finalize()
			assert.Equal(t, []int{7}, idx.GetOverlappingNodes(box(-1, -1, -1, 3), nil))
		})
	}
}

func TestSpatialIndexAppendsAfterPrefix(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.make()
			idx.Add(4, box(0, 0, 0, 1))
			idx.Finalize()

			out := []int{100, 200}
			out = idx.GetOverlappingNodes(box(0, 0, 0, 1), out[:1])
			assert.Equal(t, []int{100, 4}, out)
		})
	}
}

func TestSpatialIndexVisibleAndSphere(t *testing.T) {
	// Half space x >= 2.
	planes := []common.Plane{common.NewPlane(1, 0, 0, 2)}

	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.make()
			idx.Add(1, box(0, 0, 0, 1))
			idx.Add(2, box(1.5, 0, 0, 1))
			idx.Add(3, box(4, 0, 0, 1))
			idx.Finalize()

			assert.Equal(t, []int{2, 3}, sorted(idx.GetVisibleNodes(planes, nil)))
			assert.Equal(t, []int{1, 2, 3}, sorted(idx.GetVisibleNodes(nil, nil)))

			assert.Equal(t, []int{3}, idx.GetSphereOverlappingNodes(mgl32.Vec3{6, 0.5, 0.5}, 1.1, nil))
			assert.Empty(t, idx.GetSphereOverlappingNodes(mgl32.Vec3{7, 0.5, 0.5}, 1.1, nil))
		})
	}
}

func TestSpatialIndexPairs(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			idx := f.make()
			idx.Add(1, box(0, 0, 0, 2))
			idx.Add(2, box(1, 1, 1, 2))
			idx.Add(3, box(10, 0, 0, 1))
			idx.Add(4, box(2.5, 2.5, 2.5, 1))
			idx.Finalize()

			pairs := idx.GetOverlappingPairs(nil)
			normalized := make([][2]int, 0, len(pairs))
			for _, p := range pairs {
				if p[0] > p[1] {
					p[0], p[1] = p[1], p[0]
				}
				normalized = append(normalized, p)
			}
			assert.ElementsMatch(t, [][2]int{{1, 2}, {2, 4}}, normalized)
		})
	}
}

// TestSpatialIndexMatchesBruteForce drives random mutation batches and compares every query with a linear scan.
func TestSpatialIndexMatchesBruteForce(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(7, 11))
			idx := f.make()
			truth := map[int]common.Extents{}

			randomBox := func() common.Extents {
				x := rng.Float32()*100 - 50
				y := rng.Float32()*100 - 50
				z := rng.Float32()*100 - 50
				return common.Extents{x, y, z, x + rng.Float32()*8, y + rng.Float32()*8, z + rng.Float32()*8}
			}

			for round := range 20 {
				for range 40 {
					id := rng.IntN(200)
					switch rng.IntN(3) {
					case 0, 1:
						e := randomBox()
						idx.Update(id, e)
						truth[id] = e
					case 2:
						_, existed := truth[id]
						assert.Equal(t, existed, idx.Remove(id))
						delete(truth, id)
					}
				}
				idx.Finalize()
				require.Equal(t, len(truth), idx.Len(), "round %d", round)

				query := randomBox().Pad(10)
				var want []int
				for id, e := range truth {
					if e.Overlaps(query) {
						want = append(want, id)
					}
				}
				assert.Equal(t, sorted(want), sorted(idx.GetOverlappingNodes(query, nil)), "round %d", round)

				planes := []common.Plane{
					common.NewPlane(rng.Float32()-0.5, rng.Float32()-0.5, rng.Float32()-0.5, rng.Float32()*10-5),
					common.NewPlane(rng.Float32()-0.5, rng.Float32()-0.5, rng.Float32()-0.5, rng.Float32()*10-5),
				}
				want = want[:0]
				for id, e := range truth {
					if common.IsInsidePlanesAABB(e, planes) {
						want = append(want, id)
					}
				}
				assert.Equal(t, sorted(want), sorted(idx.GetVisibleNodes(planes, nil)), "round %d", round)

				if len(truth) > 0 {
					union := common.EmptyExtents()
					for _, e := range truth {
						union = union.Union(e)
					}
					got, ok := idx.GetExtents()
					require.True(t, ok)
					assert.Equal(t, union, got)
				}
			}
		})
	}
}

func TestAABBTreeStaysBalanced(t *testing.T) {
	tree := NewAABBTree[int](WithRebuildThreshold(1e9, 1<<30)).(*aabbTreeImpl[int])
	// Sorted insertion is the worst case for a naive tree.
	for i := range 1024 {
		tree.Add(i, box(float32(i), 0, 0, 0.5))
		tree.Finalize()
	}
	assert.LessOrEqual(t, tree.Height(), 32)

	rebuilt := NewAABBTree[int]().(*aabbTreeImpl[int])
	for i := range 1024 {
		rebuilt.Add(i, box(float32(i), 0, 0, 0.5))
	}
	rebuilt.Finalize()
	assert.Equal(t, 10, rebuilt.Height())
}

func TestAABBTreeMarginSkipsReinsert(t *testing.T) {
	tree := NewAABBTree[int](WithMargin(1)).(*aabbTreeImpl[int])
	tree.Add(1, box(0, 0, 0, 1))
	tree.Add(2, box(5, 0, 0, 1))
	tree.Finalize()

	leaf := tree.leaves[1]
	tree.Update(1, box(0.5, 0, 0, 1))
	tree.Finalize()
	assert.Equal(t, leaf, tree.leaves[1])
	assert.Equal(t, box(0.5, 0, 0, 1), tree.nodes[leaf].box)

	ext, ok := tree.GetExtents()
	require.True(t, ok)
	assert.Equal(t, common.Extents{0.5, 0, 0, 6, 1, 1}, ext)
}
