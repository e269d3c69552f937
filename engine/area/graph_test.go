package area

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quad builds a portal into target whose normal faces along facing.
func quad(t *testing.T, target int, facing mgl32.Vec3, points ...mgl32.Vec3) *Portal {
	t.Helper()
	p, err := NewPortal(target, points)
	require.NoError(t, err)
	if p.Plane.Dot(facing) < 0 {
		slices.Reverse(points)
		p, err = NewPortal(target, points)
		require.NoError(t, err)
	}
	return p
}

// gridGraph builds four rooms on a 2x2 grid around the origin, each 10 units wide and 2 units tall,
// connected in a ring:
//
//	2 | 3
//	--+--
//	0 | 1
func gridGraph(t *testing.T) *Graph {
	t.Helper()
	xWall := func(target int, facing float32, y0, y1 float32) *Portal {
		return quad(t, target, mgl32.Vec3{facing, 0, 0},
			mgl32.Vec3{0, y0, -1}, mgl32.Vec3{0, y1, -1}, mgl32.Vec3{0, y1, 1}, mgl32.Vec3{0, y0, 1})
	}
	yWall := func(target int, facing float32, x0, x1 float32) *Portal {
		return quad(t, target, mgl32.Vec3{0, facing, 0},
			mgl32.Vec3{x0, 0, -1}, mgl32.Vec3{x1, 0, -1}, mgl32.Vec3{x1, 0, 1}, mgl32.Vec3{x0, 0, 1})
	}

	g := NewGraph()
	g.Append([]Area{
		{Extents: common.Extents{-10, -10, -1, 0, 0, 1}, Portals: []*Portal{xWall(1, 1, -10, 0), yWall(2, 1, -10, 0)}},
		{Extents: common.Extents{0, -10, -1, 10, 0, 1}, Portals: []*Portal{xWall(0, -1, -10, 0), yWall(3, 1, 0, 10)}},
		{Extents: common.Extents{-10, 0, -1, 0, 10, 1}, Portals: []*Portal{yWall(0, -1, -10, 0), xWall(3, 1, 0, 10)}},
		{Extents: common.Extents{0, 0, -1, 10, 10, 1}, Portals: []*Portal{yWall(1, -1, 0, 10), xWall(2, -1, 0, 10)}},
	}, []BSPNode{
		{Plane: common.NewPlane(1, 0, 0, 0), Pos: BSPInternal(1), Neg: BSPInternal(2)},
		{Plane: common.NewPlane(0, 1, 0, 0), Pos: BSPLeaf(3), Neg: BSPLeaf(1)},
		{Plane: common.NewPlane(0, 1, 0, 0), Pos: BSPLeaf(2), Neg: BSPLeaf(0)},
	})
	require.NoError(t, g.Validate())
	return g
}

type view struct {
	eye    mgl32.Vec3
	planes []common.Plane
	near   common.Plane
}

func lookAt(eye, target mgl32.Vec3, fovDegrees float32) view {
	viewMat := mgl32.LookAtV(eye, target, mgl32.Vec3{0, 0, 1})
	proj := common.Perspective(mgl32.DegToRad(fovDegrees), 1, 0.1, 100)
	f := common.ExtractFrustumFromMatrix(proj.Mul4(viewMat))
	return view{
		eye:    eye,
		planes: f.Planes[:common.FrustumNear],
		near:   f.Planes[common.FrustumNear],
	}
}

func reachedAreas(portals []VisiblePortal) []int {
	var out []int
	for _, vp := range portals {
		if !slices.Contains(out, vp.Area) {
			out = append(out, vp.Area)
		}
	}
	slices.Sort(out)
	return out
}

func TestBSPChildFromFile(t *testing.T) {
	assert.Equal(t, BSPInternal(3), BSPChildFromFile(3))
	assert.Equal(t, BSPLeaf(0), BSPChildFromFile(-1))
	assert.Equal(t, BSPLeaf(4), BSPChildFromFile(-5))
	assert.Equal(t, BSPChild{}, BSPChildFromFile(0))

	assert.Equal(t, 4, BSPLeaf(4).Area())
	assert.Equal(t, -1, BSPInternal(4).Area())
	assert.True(t, BSPLeaf(0).IsLeaf())
	assert.True(t, BSPInternal(0).IsInternal())
}

func TestFindAreaIndexRoundTrip(t *testing.T) {
	g := gridGraph(t)
	for i, a := range g.Areas {
		assert.Equal(t, i, g.FindAreaIndex(a.Extents.Center()), "area %d", i)
	}

	empty := NewGraph()
	assert.Equal(t, -1, empty.FindAreaIndex(mgl32.Vec3{}))
	assert.True(t, empty.Empty())
}

func TestFindAreaIndexNoneChild(t *testing.T) {
	var tree BSPTree
	tree.Nodes = []BSPNode{{Plane: common.NewPlane(1, 0, 0, 0), Pos: BSPLeaf(0), Neg: BSPChildFromFile(0)}}
	assert.Equal(t, 0, tree.FindAreaIndex(mgl32.Vec3{1, 0, 0}))
	assert.Equal(t, -1, tree.FindAreaIndex(mgl32.Vec3{-1, 0, 0}))
}

func TestFindAreaIndicesAABB(t *testing.T) {
	g := gridGraph(t)

	got := g.FindAreaIndicesAABB(common.Extents{-2, -2, -0.5, 2, 2, 0.5}, nil)
	slices.Sort(got)
	assert.Equal(t, []int{0, 1, 2, 3}, got)

	got = g.FindAreaIndicesAABB(common.Extents{1, -5, 0, 2, -4, 0.5}, nil)
	assert.Equal(t, []int{1}, got)

	got = g.FindAreaIndicesAABB(common.Extents{-5, 1, 0, 5, 2, 0.5}, []int{42})
	slices.Sort(got)
	assert.Equal(t, []int{2, 3, 42}, got)
}

func TestValidateRejectsBadIndices(t *testing.T) {
	g := gridGraph(t)
	g.Areas[2].Portals[0].Area = 9
	assert.ErrorIs(t, g.Validate(), ErrInvalidAreaIndex)

	g = gridGraph(t)
	g.BSP.Nodes[1].Pos = BSPLeaf(7)
	assert.ErrorIs(t, g.Validate(), ErrInvalidAreaIndex)
}

func TestAppendRebasesIndices(t *testing.T) {
	g := gridGraph(t)
	p := quad(t, 0, mgl32.Vec3{1, 0, 0},
		mgl32.Vec3{20, 0, 0}, mgl32.Vec3{20, 1, 0}, mgl32.Vec3{20, 1, 1})

	base := g.Append([]Area{{Portals: []*Portal{p}}}, []BSPNode{
		{Plane: common.NewPlane(1, 0, 0, 20), Pos: BSPLeaf(0), Neg: BSPInternal(0)},
	})
	assert.Equal(t, 4, base)
	assert.Equal(t, 4, g.Areas[4].Portals[0].Area)
	assert.Equal(t, BSPLeaf(4), g.BSP.Nodes[3].Pos)
	assert.Equal(t, BSPInternal(3), g.BSP.Nodes[3].Neg)
	assert.NoError(t, g.Validate())
}

func TestNewPortalRejectsDegenerate(t *testing.T) {
	_, err := NewPortal(0, []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}})
	assert.ErrorIs(t, err, ErrDegeneratePortal)

	_, err = NewPortal(0, []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}})
	assert.ErrorIs(t, err, ErrDegeneratePortal)

	p, err := NewPortal(1, []mgl32.Vec3{{0, -1, -1}, {0, 1, -1}, {0, 1, 1}, {0, -1, 1}})
	require.NoError(t, err)
	assert.InDelta(t, 1, p.Plane.Normal[0], 1e-6)
	assert.InDelta(t, 0, p.Plane.Distance, 1e-6)
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, p.Origin)
	assert.Equal(t, common.Extents{0, -1, -1, 0, 1, 1}, p.Extents)
}

func TestBuildPortalPlanes(t *testing.T) {
	var b PortalPlaneBuilder
	square := []mgl32.Vec3{{5, -1, -1}, {5, 1, -1}, {5, 1, 1}, {5, -1, 1}}
	eye := mgl32.Vec3{}

	planes, allVisible := b.BuildPortalPlanes(square, nil, eye, nil)
	require.Len(t, planes, 4)
	assert.True(t, allVisible)
	for _, pl := range planes {
		assert.InDelta(t, 0, pl.Distance, 1e-6, "silhouette planes pass through the eye")
		assert.True(t, pl.IsInside(mgl32.Vec3{10, 0, 0}))
		assert.False(t, pl.IsInside(mgl32.Vec3{10, 5, 5}) && pl.IsInside(mgl32.Vec3{10, -5, -5}))
	}

	t.Run("redundant parent plane is dropped", func(t *testing.T) {
		planes, allVisible := b.BuildPortalPlanes(square, []common.Plane{common.NewPlane(1, 0, 0, 0)}, eye, nil)
		assert.Len(t, planes, 4)
		assert.True(t, allVisible)
	})

	t.Run("plane rejecting every point hides the portal", func(t *testing.T) {
		planes, allVisible := b.BuildPortalPlanes(square, []common.Plane{common.NewPlane(-1, 0, 0, 0)}, eye, nil)
		assert.Empty(t, planes)
		assert.False(t, allVisible)
	})

	t.Run("clipping plane is kept and edges behind it skipped", func(t *testing.T) {
		// y >= 0 rejects the two points at y = -1, so the bottom edge gets no silhouette plane.
		clip := common.NewPlane(0, 1, 0, 0)
		planes, allVisible := b.BuildPortalPlanes(square, []common.Plane{clip}, eye, nil)
		require.Len(t, planes, 4)
		assert.False(t, allVisible)
		assert.Equal(t, clip, planes[0])
	})

	t.Run("degenerate edge hides the portal", func(t *testing.T) {
		planes, _ := b.BuildPortalPlanes(square, nil, square[0], nil)
		assert.Empty(t, planes)
	})

	t.Run("reuses the output slice", func(t *testing.T) {
		out := make([]common.Plane, 2, 16)
		planes, _ := b.BuildPortalPlanes(square, nil, eye, out)
		assert.Len(t, planes, 4)
		assert.Same(t, &out[0], &planes[0])
	})
}

// TestPortalPlanesNeverWiden checks that any point beyond the portal accepted by the derived planes
// is also accepted by the parent planes.
func TestPortalPlanesNeverWiden(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	var b PortalPlaneBuilder
	eye := mgl32.Vec3{}

	for trial := range 200 {
		cy, cz := rng.Float32()*4-2, rng.Float32()*4-2
		h := rng.Float32()*2 + 0.5
		square := []mgl32.Vec3{{5, cy - h, cz - h}, {5, cy + h, cz - h}, {5, cy + h, cz + h}, {5, cy - h, cz + h}}

		parent := make([]common.Plane, 3)
		for i := range parent {
			parent[i] = common.NewPlane(rng.Float32()*0.4, rng.Float32()*2-1, rng.Float32()*2-1, 0)
		}

		planes, _ := b.BuildPortalPlanes(square, parent, eye, nil)
		if len(planes) == 0 {
			continue
		}

		for range 200 {
			p := mgl32.Vec3{5 + rng.Float32()*45, rng.Float32()*80 - 40, rng.Float32()*80 - 40}
			inChild := true
			for _, pl := range planes {
				if pl.Dot(p) < pl.Distance {
					inChild = false
					break
				}
			}
			if !inChild {
				continue
			}
			for _, pl := range parent {
				assert.GreaterOrEqual(t, pl.Dot(p), pl.Distance-1e-3, "trial %d point %v", trial, p)
			}
		}
	}
}

// TestFullyInsideImpliesNestedInside backs the scene shortcut that skips per-attachment plane tests.
func TestFullyInsideImpliesNestedInside(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 17))
	for range 2000 {
		x, y, z := rng.Float32()*20-10, rng.Float32()*20-10, rng.Float32()*20-10
		parent := common.Extents{x, y, z, x + rng.Float32()*6, y + rng.Float32()*6, z + rng.Float32()*6}

		child := parent
		for axis := range 3 {
			lo, hi := parent[axis], parent[axis+3]
			a := lo + rng.Float32()*(hi-lo)
			b := lo + rng.Float32()*(hi-lo)
			child[axis], child[axis+3] = min(a, b), max(a, b)
		}

		planes := make([]common.Plane, 1+rng.IntN(5))
		for i := range planes {
			planes[i] = common.NewPlane(rng.Float32()*2-1, rng.Float32()*2-1, rng.Float32()*2-1, rng.Float32()*10-5)
		}

		if common.IsFullyInsidePlanesAABB(parent, planes) {
			assert.True(t, common.IsInsidePlanesAABB(child, planes))
			assert.True(t, common.IsFullyInsidePlanesAABB(child, planes))
		}
	}
}

func TestFindVisiblePortals(t *testing.T) {
	g := gridGraph(t)
	diagonal := lookAt(mgl32.Vec3{-5, -5, 0}, mgl32.Vec3{5, 5, 0}, 60)

	visible := g.FindVisiblePortals(0, diagonal.eye, diagonal.planes, diagonal.near)
	assert.Equal(t, []int{1, 2, 3}, reachedAreas(visible))
	for _, vp := range visible {
		assert.NotEmpty(t, vp.Planes)
		assert.NotNil(t, vp.Portal)
		assert.Equal(t, vp.Portal.Area, vp.Area)
	}

	t.Run("portals behind the camera are not seen", func(t *testing.T) {
		away := lookAt(mgl32.Vec3{-5, -5, 0}, mgl32.Vec3{-10, -5, 0}, 60)
		assert.Empty(t, g.FindVisiblePortals(0, away.eye, away.planes, away.near))
	})

	t.Run("disabled portals block traversal", func(t *testing.T) {
		assert.Equal(t, 2, g.SetPortalDisabled(0, 2, true))
		defer g.SetPortalDisabled(0, 2, false)

		visible := g.FindVisiblePortals(0, diagonal.eye, diagonal.planes, diagonal.near)
		assert.Equal(t, []int{1, 3}, reachedAreas(visible))
	})

	t.Run("start area is never reported", func(t *testing.T) {
		side := lookAt(mgl32.Vec3{5, -5, 0}, mgl32.Vec3{5, 5, 0}, 60)
		visible := g.FindVisiblePortals(1, side.eye, side.planes, side.near)
		assert.Contains(t, reachedAreas(visible), 3)
		for _, vp := range visible {
			assert.NotEqual(t, 1, vp.Area)
		}
	})
}

// TestFindVisiblePortalsReusesSlots checks that the scratch list shrinks and grows back cleanly.
func TestFindVisiblePortalsReusesSlots(t *testing.T) {
	g := gridGraph(t)
	diagonal := lookAt(mgl32.Vec3{-5, -5, 0}, mgl32.Vec3{5, 5, 0}, 60)
	away := lookAt(mgl32.Vec3{-5, -5, 0}, mgl32.Vec3{-10, -5, 0}, 60)

	snapshot := func(vps []VisiblePortal) []VisiblePortal {
		out := make([]VisiblePortal, len(vps))
		for i, vp := range vps {
			out[i] = VisiblePortal{Portal: vp.Portal, Area: vp.Area, Planes: slices.Clone(vp.Planes)}
		}
		return out
	}

	first := snapshot(g.FindVisiblePortals(0, diagonal.eye, diagonal.planes, diagonal.near))
	require.NotEmpty(t, first)

	second := g.FindVisiblePortals(0, diagonal.eye, diagonal.planes, diagonal.near)
	assert.Equal(t, first, snapshot(second))

	assert.Empty(t, g.FindVisiblePortals(0, away.eye, away.planes, away.near))
	for _, vp := range g.visible[:cap(g.visible)] {
		assert.Nil(t, vp.Portal, "stale portal left past the end of the list")
	}

	third := g.FindVisiblePortals(0, diagonal.eye, diagonal.planes, diagonal.near)
	assert.Equal(t, first, snapshot(third))
}

func TestFindVisiblePortalsCap(t *testing.T) {
	g := gridGraph(t)
	WithMaxVisiblePortals(1)(g)
	diagonal := lookAt(mgl32.Vec3{-5, -5, 0}, mgl32.Vec3{5, 5, 0}, 60)

	visible := g.FindVisiblePortals(0, diagonal.eye, diagonal.planes, diagonal.near)
	assert.Len(t, visible, 1)
}

func TestFindOverlappingAreas(t *testing.T) {
	g := gridGraph(t)

	assert.Equal(t, []int{1}, g.FindOverlappingAreas(0, common.Extents{-2, -3, -0.5, 2, -1, 0.5}, true, nil))
	assert.Empty(t, g.FindOverlappingAreas(0, common.Extents{-4, -4, -0.5, -2, -2, 0.5}, true, nil))

	got := g.FindOverlappingAreas(0, common.Extents{-2, -2, -0.5, 2, 2, 0.5}, true, nil)
	slices.Sort(got)
	assert.Equal(t, []int{1, 2, 3}, got)

	g.SetPortalDisabled(0, 1, true)
	assert.Empty(t, g.FindOverlappingAreas(0, common.Extents{-2, -3, -0.5, 2, -1, 0.5}, true, nil))
	assert.Equal(t, []int{1}, g.FindOverlappingAreas(0, common.Extents{-2, -3, -0.5, 2, -1, 0.5}, false, nil))
}

func TestFindOverlappingPortals(t *testing.T) {
	g := gridGraph(t)
	origin := mgl32.Vec3{-5, -5, 0}

	portals := g.FindOverlappingPortals(0, origin, common.ExtentsFromCenter(origin, mgl32.Vec3{20, 20, 20}))
	areas := reachedAreas(portals)
	assert.Contains(t, areas, 1)
	assert.Contains(t, areas, 2)
	for _, vp := range portals {
		assert.NotEmpty(t, vp.Planes)
	}

	assert.Empty(t, g.FindOverlappingPortals(0, origin, common.ExtentsFromCenter(origin, mgl32.Vec3{1, 1, 1})))
}
