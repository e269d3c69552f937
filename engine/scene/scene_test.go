package scene

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/Carmen-Shannon/oxy-vis/engine/camera"
	"github.com/Carmen-Shannon/oxy-vis/engine/config"
	"github.com/Carmen-Shannon/oxy-vis/engine/geometry"
	"github.com/Carmen-Shannon/oxy-vis/engine/light"
	"github.com/Carmen-Shannon/oxy-vis/engine/profiler"
	"github.com/Carmen-Shannon/oxy-vis/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cube(half float32) *geometry.Shape {
	return &geometry.Shape{Name: fmt.Sprintf("cube%g", half), HalfExtents: mgl32.Vec3{half, half, half}}
}

// addCube creates a node at pos holding one cube renderable. A zero parent registers the node as a root.
func addCube(t *testing.T, s Scene, parent NodeHandle, name string, pos mgl32.Vec3, half float32, dynamic bool) (NodeHandle, *Renderable) {
	t.Helper()
	h := s.CreateNode(
		WithNodeName(name),
		WithLocalTransform(mgl32.Translate3D(pos[0], pos[1], pos[2])),
		WithDynamic(dynamic),
	)
	r := NewRenderable(cube(half), nil, nil)
	require.NoError(t, s.AddRenderable(h, r))
	if parent.IsZero() {
		require.NoError(t, s.AddRootNode(h))
	} else {
		require.NoError(t, s.AddChild(parent, h))
	}
	return h, r
}

func lookingDown(eye mgl32.Vec3) camera.Camera {
	return camera.NewCamera(
		camera.WithLookAt(eye, eye.Sub(mgl32.Vec3{0, 0, 20})),
		camera.WithFov(math.Pi/2),
		camera.WithNear(0.1),
		camera.WithFar(100),
	)
}

// Two rooms along -z joined by a 2x2 portal at z = -10. The BSP puts z > -10 in room 0.
const twoRoomsDoc = `{
	"nodes": {"room0": {}, "room1": {}},
	"areas": [
		{"target": "room0", "portals": [{"area": 1, "points": [[-1,1,-10],[1,1,-10],[1,-1,-10],[-1,-1,-10]]}]},
		{"target": "room1", "portals": [{"area": 0, "points": [[-1,-1,-10],[1,-1,-10],[1,1,-10],[-1,1,-10]]}]}
	],
	"bspnodes": [{"plane": [0,0,-1,-10], "pos": -2, "neg": -1}]
}`

type twoRooms struct {
	s                    Scene
	cube0, twin0, bridge *Renderable
	cube1, hidden1       *Renderable
	mover                NodeHandle
	moverR               *Renderable
}

func newTwoRooms(t *testing.T, options ...SceneBuilderOption) *twoRooms {
	t.Helper()
	s := NewScene(options...)
	t.Cleanup(s.Destroy)
	require.NoError(t, s.Load([]byte(twoRoomsDoc), LoadParams{}))

	room0, ok := s.FindNode("room0")
	require.True(t, ok)
	room1, ok := s.FindNode("room1")
	require.True(t, ok)

	floor := func(parent NodeHandle, name string, z float32) {
		h := s.CreateNode(WithNodeName(name), WithLocalTransform(mgl32.Translate3D(0, -1, z)))
		shape := &geometry.Shape{Name: "floor", HalfExtents: mgl32.Vec3{5, 0.1, 5}}
		require.NoError(t, s.AddRenderable(h, NewRenderable(shape, nil, nil)))
		require.NoError(t, s.AddChild(parent, h))
	}
	floor(room0, "floor", -5)
	floor(room1, "floor", -15)

	tr := &twoRooms{s: s}
	_, tr.cube0 = addCube(t, s, room0, "cube", mgl32.Vec3{0, 0, -5}, 0.5, false)
	_, tr.twin0 = addCube(t, s, room0, "twin", mgl32.Vec3{4, 0, -5}, 0.5, false)
	_, tr.bridge = addCube(t, s, room1, "bridge", mgl32.Vec3{0, 0, -10}, 0.5, false)
	_, tr.cube1 = addCube(t, s, room1, "cube", mgl32.Vec3{0, 0, -15}, 0.5, false)
	_, tr.hidden1 = addCube(t, s, room1, "hidden", mgl32.Vec3{4, 0, -15}, 0.5, false)
	tr.mover, tr.moverR = addCube(t, s, NodeHandle{}, "mover", mgl32.Vec3{0, 0.2, -16}, 0.25, true)

	s.Update()
	return tr
}

func TestEmptyScene(t *testing.T) {
	s := NewScene()
	defer s.Destroy()

	s.Update()
	before := s.FrameIndex()
	s.UpdateVisibleNodes(lookingDown(mgl32.Vec3{0, 0, 5}))

	assert.Empty(t, s.CurrentVisibleNodes())
	assert.Empty(t, s.CurrentVisibleRenderables())
	assert.Empty(t, s.CurrentVisibleLights())
	assert.Equal(t, -1, s.CameraAreaIndex())
	assert.Equal(t, before+1, s.FrameIndex())
	assert.Equal(t, common.Extents{}, s.Extents())
}

func TestSingleCubeVisibleOnce(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	_, r := addCube(t, s, NodeHandle{}, "cube", mgl32.Vec3{}, 1, false)
	s.Update()

	frame := s.FrameIndex()
	s.UpdateVisibleNodes(lookingDown(mgl32.Vec3{0, 0, 5}))

	require.Equal(t, []*Renderable{r}, s.CurrentVisibleRenderables())
	assert.Equal(t, frame, r.FrameVisible)
	assert.InDelta(t, 5.9, r.Distance, 0.05)
	assert.InDelta(t, 6.0, s.MaxDistance(), 0.05)
	assert.Equal(t, common.Extents{-1, -1, -1, 1, 1, 1}, r.WorldExtents())
	assert.Equal(t, common.Extents{-1, -1, -1, 1, 1, 1}, s.Extents())
}

func TestNearPlaneCullsBoxesBehindTheEye(t *testing.T) {
	s := NewScene()
	defer s.Destroy()

	slab := &geometry.Shape{Name: "slab", HalfExtents: mgl32.Vec3{50, 50, 0.5}}
	behind := s.CreateNode(WithNodeName("behind"), WithLocalTransform(mgl32.Translate3D(0, 0, 8)))
	slabR := NewRenderable(slab, nil, nil)
	require.NoError(t, s.AddRenderable(behind, slabR))
	require.NoError(t, s.AddRootNode(behind))

	mixed, front := addCube(t, s, NodeHandle{}, "mixed", mgl32.Vec3{}, 1, false)
	tail := NewRenderable(slab, nil, nil)
	tail.LocalExtents = common.Extents{-50, -50, 7.5, 50, 50, 8.5}
	require.NoError(t, s.AddRenderable(mixed, tail))

	_, far := addCube(t, s, NodeHandle{}, "far", mgl32.Vec3{0, 0, -85}, 5, false)
	s.Update()

	s.UpdateVisibleNodes(lookingDown(mgl32.Vec3{0, 0, 5}))

	visible := s.CurrentVisibleRenderables()
	assert.ElementsMatch(t, []*Renderable{front, far}, visible)
	assert.Zero(t, slabR.FrameVisible)
	assert.Zero(t, tail.FrameVisible)
	assert.NotContains(t, s.CurrentVisibleNodes(), behind)
	assert.Contains(t, s.CurrentVisibleNodes(), mixed)
	for _, r := range visible {
		assert.Positive(t, r.Distance)
	}
	assert.InDelta(t, far.Distance+0.1, s.MaxDistance(), 1e-3)
}

// Two openings side by side at z = -10 lead into room1.
const twoOpeningsDoc = `{
	"nodes": {"room0": {}, "room1": {}},
	"areas": [
		{"target": "room0", "portals": [
			{"area": 1, "points": [[-4,1,-10],[-2,1,-10],[-2,-1,-10],[-4,-1,-10]]},
			{"area": 1, "points": [[2,1,-10],[4,1,-10],[4,-1,-10],[2,-1,-10]]}
		]},
		{"target": "room1", "portals": [
			{"area": 0, "points": [[-4,-1,-10],[-2,-1,-10],[-2,1,-10],[-4,1,-10]]},
			{"area": 0, "points": [[2,-1,-10],[4,-1,-10],[4,1,-10],[2,1,-10]]}
		]}
	],
	"bspnodes": [{"plane": [0,0,-1,-10], "pos": -2, "neg": -1}]
}`

func TestRenderablesSeenThroughDifferentPortalsOfOneNode(t *testing.T) {
	s := NewScene()
	t.Cleanup(s.Destroy)
	require.NoError(t, s.Load([]byte(twoOpeningsDoc), LoadParams{}))

	room0, ok := s.FindNode("room0")
	require.True(t, ok)
	room1, ok := s.FindNode("room1")
	require.True(t, ok)
	_, ground := addCube(t, s, room0, "ground", mgl32.Vec3{0, -1, -5}, 0.5, false)

	pair := s.CreateNode(WithNodeName("pair"), WithLocalTransform(mgl32.Translate3D(0, 0, -15)))
	left := NewRenderable(cube(0.5), nil, nil)
	left.LocalExtents = common.ExtentsFromCenter(mgl32.Vec3{-3, 0, 0}, mgl32.Vec3{0.5, 0.5, 0.5})
	right := NewRenderable(cube(0.5), nil, nil)
	right.LocalExtents = common.ExtentsFromCenter(mgl32.Vec3{3, 0, 0}, mgl32.Vec3{0.5, 0.5, 0.5})
	require.NoError(t, s.AddRenderable(pair, left))
	require.NoError(t, s.AddRenderable(pair, right))
	require.NoError(t, s.AddChild(room1, pair))
	s.Update()

	cam := lookingDown(mgl32.Vec3{0, 0, -1})
	for range 2 {
		s.UpdateVisibleNodes(cam)
		require.Equal(t, 0, s.CameraAreaIndex())

		visible := s.CurrentVisibleRenderables()
		assert.ElementsMatch(t, []*Renderable{ground, left, right}, visible)
		assert.Equal(t, 1, lo.Count(s.CurrentVisibleNodes(), pair))
	}
}

func TestDynamicNodeMovesOutOfView(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	h, r := addCube(t, s, NodeHandle{}, "ball", mgl32.Vec3{}, 1, true)
	cam := lookingDown(mgl32.Vec3{0, 0, 5})

	s.Update()
	s.UpdateVisibleNodes(cam)
	assert.Contains(t, s.CurrentVisibleRenderables(), r)

	require.NoError(t, s.SetLocalTransform(h, mgl32.Translate3D(0, 0, 500)))
	s.Update()
	s.UpdateVisibleNodes(cam)
	assert.NotContains(t, s.CurrentVisibleRenderables(), r)
	assert.Empty(t, s.CurrentVisibleNodes())
}

func TestVisibleListsReuseScratch(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	a, _ := addCube(t, s, NodeHandle{}, "a", mgl32.Vec3{-1, 0, 0}, 0.5, false)
	addCube(t, s, NodeHandle{}, "b", mgl32.Vec3{1, 0, 0}, 0.5, false)
	cam := lookingDown(mgl32.Vec3{0, 0, 5})
	s.Update()

	s.UpdateVisibleNodes(cam)
	first := append([]*Renderable(nil), s.CurrentVisibleRenderables()...)
	s.UpdateVisibleNodes(cam)
	assert.ElementsMatch(t, first, s.CurrentVisibleRenderables())
	require.Len(t, first, 2)

	require.NoError(t, s.SetDisabled(a, true))
	s.UpdateVisibleNodes(cam)
	assert.Len(t, s.CurrentVisibleRenderables(), 1)
	assert.Len(t, s.CurrentVisibleNodes(), 1)
}

func TestUpdateNodesPropagatesAcrossRoots(t *testing.T) {
	s := NewScene(WithComputeWorkers(4))
	defer s.Destroy()

	var children []NodeHandle
	for i := range 16 {
		root := s.CreateNode(WithNodeName(fmt.Sprintf("root%d", i)), WithLocalTransform(mgl32.Translate3D(float32(i)*10, 0, 0)))
		require.NoError(t, s.AddRootNode(root))
		child, _ := addCube(t, s, root, "child", mgl32.Vec3{0, 1, 0}, 0.5, false)
		children = append(children, child)
	}
	s.Update()

	for i, child := range children {
		e, ok := s.WorldExtents(child)
		require.True(t, ok)
		x := float32(i) * 10
		assert.Equal(t, common.Extents{x - 0.5, 0.5, -0.5, x + 0.5, 1.5, 0.5}, e)
	}
	assert.Equal(t, common.Extents{-0.5, 0.5, -0.5, 150.5, 1.5, 0.5}, s.Extents())
}

func TestParentTransformMovesSubtree(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	root := s.CreateNode(WithNodeName("root"), WithDynamic(true))
	require.NoError(t, s.AddRootNode(root))
	child, r := addCube(t, s, root, "child", mgl32.Vec3{1, 0, 0}, 0.5, true)
	s.Update()

	require.NoError(t, s.SetLocalTransform(root, mgl32.Translate3D(0, 10, 0)))
	s.UpdateNodes()
	world, ok := s.WorldTransform(child)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 10, 0}, world.Col(3).Vec3())
	assert.Equal(t, common.Extents{0.5, 9.5, -0.5, 1.5, 10.5, 0.5}, r.WorldExtents())

	_, hasExtents := s.WorldExtents(root)
	assert.False(t, hasExtents, "nodes without attachments have no extents")
}

func TestUpdateNodesReusesPropagationStack(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	parent := s.CreateNode(WithNodeName("root"), WithDynamic(true))
	require.NoError(t, s.AddRootNode(parent))
	for i := range 8 {
		parent, _ = addCube(t, s, parent, fmt.Sprintf("link%d", i), mgl32.Vec3{1, 0, 0}, 0.5, true)
	}
	root, ok := s.FindNode("root")
	require.True(t, ok)
	s.Update()

	impl := s.(*sceneImpl)
	require.NoError(t, s.SetLocalTransform(root, mgl32.Translate3D(0, 1, 0)))
	s.UpdateNodes()
	require.NotEmpty(t, impl.propagateStacks)
	stack := impl.propagateStacks[0][:1]

	require.NoError(t, s.SetLocalTransform(root, mgl32.Translate3D(0, 2, 0)))
	s.UpdateNodes()
	assert.Same(t, &stack[0], &impl.propagateStacks[0][:1][0])

	world, ok := s.WorldTransform(parent)
	require.True(t, ok)
	assert.InDelta(t, 8, world.Col(3)[0], 1e-5)
	assert.InDelta(t, 2, world.Col(3)[1], 1e-5)
}

func TestNodeOwnershipErrors(t *testing.T) {
	s := NewScene()
	defer s.Destroy()

	a := s.CreateNode(WithNodeName("a"))
	require.NoError(t, s.AddRootNode(a))
	dup := s.CreateNode(WithNodeName("a"))
	err := s.AddRootNode(dup)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, err, ErrDuplicateName)

	err = s.AddRootNode(a)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, err, ErrNodeOwned)

	child := s.CreateNode(WithNodeName("child"))
	require.NoError(t, s.AddChild(a, child))
	assert.ErrorIs(t, s.AddChild(dup, child), ErrNodeOwned)
	assert.ErrorIs(t, s.AddChild(child, a), ErrNodeOwned)

	sibling := s.CreateNode(WithNodeName("child"))
	assert.ErrorIs(t, s.AddChild(a, sibling), ErrDuplicateName)

	grandchild := s.CreateNode(WithNodeName("grandchild"))
	require.NoError(t, s.AddChild(child, grandchild))
	detached := s.CreateNode(WithNodeName("detached"))
	require.NoError(t, s.AddChild(detached, s.CreateNode()))
	assert.NoError(t, s.AddChild(grandchild, detached))

	assert.ErrorIs(t, s.RemoveRootNode(child), ErrNotRoot)

	r := NewRenderable(cube(1), nil, nil)
	require.NoError(t, s.AddRenderable(child, r))
	assert.ErrorIs(t, s.AddRenderable(grandchild, r), ErrNodeOwned)
	assert.Equal(t, child, r.Node())
}

func TestNodePathsAndLookup(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	level := s.CreateNode(WithNodeName("level"))
	require.NoError(t, s.AddRootNode(level))
	room := s.CreateNode(WithNodeName("room"))
	require.NoError(t, s.AddChild(level, room))
	lamp := s.CreateNode(WithNodeName("lamp"))
	require.NoError(t, s.AddChild(room, lamp))

	found, ok := s.FindNode("level/room/lamp")
	require.True(t, ok)
	assert.Equal(t, lamp, found)
	assert.Equal(t, "level/room/lamp", s.NodePath(lamp))
	_, ok = s.FindNode("level/kitchen")
	assert.False(t, ok)

	parent, ok := s.Parent(lamp)
	require.True(t, ok)
	assert.Equal(t, room, parent)
	assert.Equal(t, []NodeHandle{room}, s.Children(level))
	assert.Equal(t, []NodeHandle{level}, s.RootNodes())

	unnamed := s.CreateNode()
	assert.NotEmpty(t, s.NodeName(unnamed))
}

func TestDestroyNodeInvalidatesHandles(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	h, r := addCube(t, s, NodeHandle{}, "gone", mgl32.Vec3{}, 1, false)
	s.Update()

	require.NoError(t, s.DestroyNode(h))
	assert.False(t, s.Valid(h))
	assert.True(t, r.Node().IsZero())
	assert.ErrorIs(t, s.SetDisabled(h, true), ErrNodeNotFound)
	assert.ErrorIs(t, s.DestroyNode(h), ErrNodeNotFound)
	assert.Empty(t, s.RootNodes())

	reused := s.CreateNode()
	assert.Equal(t, h.ID, reused.ID)
	assert.NotEqual(t, h.Generation, reused.Generation)

	s.Update()
	s.UpdateVisibleNodes(lookingDown(mgl32.Vec3{0, 0, 5}))
	assert.Empty(t, s.CurrentVisibleRenderables())
}

func TestRemoveRootNodeLeavesIndices(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	h, _ := addCube(t, s, NodeHandle{}, "cube", mgl32.Vec3{}, 1, false)
	s.Update()
	require.Len(t, s.FindOverlappingNodes(mgl32.Vec3{}, common.Extents{-2, -2, -2, 2, 2, 2}, nil), 1)

	require.NoError(t, s.RemoveRootNode(h))
	s.Update()
	assert.Empty(t, s.FindOverlappingNodes(mgl32.Vec3{}, common.Extents{-2, -2, -2, 2, 2, 2}, nil))

	require.NoError(t, s.AddRootNode(h))
	s.Update()
	assert.Len(t, s.FindOverlappingNodes(mgl32.Vec3{}, common.Extents{-2, -2, -2, 2, 2, 2}, nil), 1)
}

func TestSetDynamicMovesBetweenIndices(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	h, _ := addCube(t, s, NodeHandle{}, "cube", mgl32.Vec3{}, 1, false)
	s.Update()
	e := common.Extents{-2, -2, -2, 2, 2, 2}

	assert.Len(t, s.FindStaticOverlappingNodes(mgl32.Vec3{}, e, nil), 1)
	assert.Empty(t, s.FindDynamicOverlappingNodes(mgl32.Vec3{}, e, nil))

	require.NoError(t, s.SetDynamic(h, true))
	s.Update()
	assert.True(t, s.Dynamic(h))
	assert.Empty(t, s.FindStaticOverlappingNodes(mgl32.Vec3{}, e, nil))
	assert.Len(t, s.FindDynamicOverlappingNodes(mgl32.Vec3{}, e, nil), 1)
}

func TestCustomWorldExtentsExtendNodeBox(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	h, r := addCube(t, s, NodeHandle{}, "cube", mgl32.Vec3{}, 1, false)
	custom := common.Extents{0, 0, 0, 5, 5, 5}
	require.NoError(t, s.SetCustomWorldExtents(h, &custom))
	s.Update()

	e, ok := s.WorldExtents(h)
	require.True(t, ok)
	assert.Equal(t, common.Extents{-1, -1, -1, 5, 5, 5}, e)
	assert.Equal(t, common.Extents{-1, -1, -1, 1, 1, 1}, r.WorldExtents())

	require.NoError(t, s.SetCustomWorldExtents(h, nil))
	s.Update()
	e, _ = s.WorldExtents(h)
	assert.Equal(t, common.Extents{-1, -1, -1, 1, 1, 1}, e)
}

func TestAreasClassifyTargets(t *testing.T) {
	tr := newTwoRooms(t)
	s := tr.s
	require.Equal(t, 2, s.NumAreas())

	for i, name := range []string{"room0/floor", "room1/floor"} {
		h, ok := s.FindNode(name)
		require.True(t, ok)
		e, ok := s.WorldExtents(h)
		require.True(t, ok)
		assert.Equal(t, i, s.FindAreaIndex(e.Center()), name)
	}

	e0, ok := s.AreaExtents(0)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{-5, -1.1, -10, 5, 1, 0}, e0[:], 1e-5)
}

func TestInitializeAreasIsIdempotent(t *testing.T) {
	tr := newTwoRooms(t)
	s := tr.s

	before := [][]NodeHandle{s.AreaStaticNodes(0), s.AreaStaticNodes(1)}
	s.InitializeAreas()
	after := [][]NodeHandle{s.AreaStaticNodes(0), s.AreaStaticNodes(1)}
	assert.Equal(t, before, after)

	bridge, ok := s.FindNode("room1/bridge")
	require.True(t, ok)
	assert.Contains(t, before[0], bridge, "a node straddling the portal belongs to both areas")
	assert.Contains(t, before[1], bridge)
	assert.Len(t, before[0], 4)
	assert.Len(t, before[1], 4)
}

func TestPortalOcclusion(t *testing.T) {
	tr := newTwoRooms(t)
	s := tr.s
	s.UpdateVisibleNodes(lookingDown(mgl32.Vec3{0, 0, -1}))

	visible := s.CurrentVisibleRenderables()
	assert.Equal(t, 0, s.CameraAreaIndex())
	assert.Contains(t, visible, tr.cube0)
	assert.Contains(t, visible, tr.twin0, "the twin is in plain view inside the camera area")
	assert.Contains(t, visible, tr.cube1, "seen through the portal")
	assert.Contains(t, visible, tr.moverR, "dynamic nodes are found through the portal too")
	assert.NotContains(t, visible, tr.hidden1, "outside the portal opening")
	assert.Len(t, lo.Uniq(visible), len(visible))
	assert.Equal(t, 1, lo.Count(visible, tr.bridge))

	assert.Equal(t, 2, s.SetPortalDisabled(0, 1, true))
	s.UpdateVisibleNodes(lookingDown(mgl32.Vec3{0, 0, -1}))
	visible = s.CurrentVisibleRenderables()
	assert.Contains(t, visible, tr.cube0)
	assert.NotContains(t, visible, tr.cube1)
	assert.NotContains(t, visible, tr.moverR)
}

func TestDynamicNodeLeavesPortalView(t *testing.T) {
	tr := newTwoRooms(t)
	s := tr.s
	cam := lookingDown(mgl32.Vec3{0, 0, -1})

	s.UpdateVisibleNodes(cam)
	assert.Contains(t, s.CurrentVisibleRenderables(), tr.moverR)

	require.NoError(t, s.SetLocalTransform(tr.mover, mgl32.Translate3D(4, 0.2, -16)))
	s.Update()
	s.UpdateVisibleNodes(cam)
	assert.NotContains(t, s.CurrentVisibleRenderables(), tr.moverR)
}

func TestStaticNodesLockAfterInitializeAreas(t *testing.T) {
	tr := newTwoRooms(t)
	h, ok := tr.s.FindNode("room0/cube")
	require.True(t, ok)
	assert.ErrorIs(t, tr.s.SetLocalTransform(h, mgl32.Translate3D(1, 0, -5)), ErrInvalidState)
	assert.NoError(t, tr.s.SetLocalTransform(tr.mover, mgl32.Translate3D(1, 0, -5)))
}

func TestDynamicNodesOutsideAreasGrowIntoOne(t *testing.T) {
	s := NewScene()
	t.Cleanup(s.Destroy)
	require.NoError(t, s.Load([]byte(twoRoomsDoc), LoadParams{}))
	room0, ok := s.FindNode("room0")
	require.True(t, ok)
	room1, ok := s.FindNode("room1")
	require.True(t, ok)
	addCube(t, s, room0, "cube", mgl32.Vec3{0, -1, -5}, 1, false)
	addCube(t, s, room1, "cube", mgl32.Vec3{0, -1, -15}, 1, false)

	inside, _ := addCube(t, s, NodeHandle{}, "inside", mgl32.Vec3{0, -1, -6}, 0.5, true)
	stray, _ := addCube(t, s, NodeHandle{}, "stray", mgl32.Vec3{0, -1, 3}, 0.5, true)
	s.Update()

	area0, ok := s.AreaExtents(0)
	require.True(t, ok)

	ext, ok := s.WorldExtents(inside)
	require.True(t, ok)
	assert.Equal(t, common.ExtentsFromCenter(mgl32.Vec3{0, -1, -6}, mgl32.Vec3{0.5, 0.5, 0.5}), ext)

	ext, ok = s.WorldExtents(stray)
	require.True(t, ok)
	assert.True(t, ext.Overlaps(area0))
	assert.True(t, ext.Contains(common.ExtentsFromCenter(mgl32.Vec3{0, -1, 3}, mgl32.Vec3{0.5, 0.5, 0.5})))
}

func TestOverlapQueriesFollowPortals(t *testing.T) {
	tr := newTwoRooms(t)
	s := tr.s
	box := common.Extents{-1, -0.5, -16, 1, 0.5, -4}

	renderables := s.FindOverlappingRenderables(mgl32.Vec3{0, 0, -5}, box, nil)
	assert.ElementsMatch(t, []*Renderable{tr.cube0, tr.bridge, tr.cube1, tr.moverR}, renderables)

	static := s.FindStaticOverlappingNodes(mgl32.Vec3{0, 0, -5}, box, nil)
	assert.Len(t, static, 3)

	s.SetPortalDisabled(0, 1, true)
	renderables = s.FindOverlappingRenderables(mgl32.Vec3{0, 0, -5}, box, nil)
	assert.ElementsMatch(t, []*Renderable{tr.cube0, tr.bridge}, renderables)
}

func TestLoadDocument(t *testing.T) {
	doc := `{
		"materials": {"red": {"effect": "lambert", "parameters": {"diffuse": [1, 0, 0, 1]}}},
		"effects": {"lambert": {"type": "lambert"}},
		"lights": {
			"sun": {"type": "directional", "direction": [0, -1, 0]},
			"lamp": {"type": "point", "radius": 2, "color": [1, 0.5, 0]}
		},
		"geometries": {
			"quad": {
				"sources": {"pos": {"stride": 3, "data": [-1,-1,0, 1,-1,0, 1,1,0, -1,1,0], "min": [-1,-1,0], "max": [1,1,0]}},
				"inputs": {"POSITION": {"source": "pos", "offset": 0}},
				"triangles": [0,1,2, 0,2,3],
				"numPrimitives": 2
			}
		},
		"nodes": {
			"props": {
				"matrix": [1,0,0, 0,1,0, 0,0,1, 0,0,-5],
				"geometryinstances": {
					"good": {"geometry": "quad", "material": "red"},
					"bad": {"geometry": "quad", "material": "missing"}
				},
				"lightinstances": {"lamp": {"light": "lamp"}, "sun": {"light": "sun"}},
				"nodes": {"child": {"dynamic": true}}
			}
		}
	}`

	rb := renderer.NewRecordingBackend()
	s := NewScene()
	defer s.Destroy()
	err := s.Load([]byte(doc), LoadParams{Device: rb})
	assert.ErrorIs(t, err, ErrUnknownMaterial)

	props, ok := s.FindNode("props")
	require.True(t, ok)
	require.Len(t, s.Renderables(props), 1)
	require.Len(t, s.LightInstances(props), 1, "global lights are not instanced")
	child, ok := s.FindNode("props/child")
	require.True(t, ok)
	assert.True(t, s.Dynamic(child))

	sun, ok := s.Light("sun")
	require.True(t, ok)
	assert.Equal(t, []light.Light{sun}, s.GlobalLights())
	require.NotNil(t, s.Shape("quad"))
	require.NotNil(t, s.Material("red"))

	s.UpdateVisibleNodes(lookingDown(mgl32.Vec3{}))
	require.Len(t, s.CurrentVisibleRenderables(), 1)
	require.Len(t, s.CurrentVisibleLights(), 1)

	items := s.DrawItems(nil)
	require.Len(t, items, 1)
	assert.Same(t, s.Shape("quad").VertexBuffer, items[0].Vertices)
	assert.Equal(t, 1, renderer.DrawVisible(rb, items))
	assert.Len(t, rb.CallsOf(renderer.CallDrawIndexed), 1)

	s.Clear()
	assert.Nil(t, s.Shape("quad"))
	assert.True(t, rb.Buffers()[0].Released)
	assert.Empty(t, s.RootNodes())
}

func TestLoadWithPrefixesAndBaseMatrix(t *testing.T) {
	doc := `{"nodes": {"a": {"matrix": [1,0,0, 0,1,0, 0,0,1, 1,0,0]}, "b": {}}}`
	s := NewScene()
	defer s.Destroy()

	base := mgl32.Translate3D(0, 10, 0)
	require.NoError(t, s.Load([]byte(doc), LoadParams{NodesNamePrefix: "level", BaseMatrix: &base}))
	require.NoError(t, s.Load([]byte(doc), LoadParams{Append: true, NodesNamePrefix: "other"}))

	a, ok := s.FindNode("level/a")
	require.True(t, ok)
	world, _ := s.WorldTransform(a)
	assert.Equal(t, mgl32.Vec3{1, 10, 0}, world.Col(3).Vec3())

	b, ok := s.FindNode("level/b")
	require.True(t, ok)
	world, _ = s.WorldTransform(b)
	assert.Equal(t, mgl32.Vec3{0, 10, 0}, world.Col(3).Vec3())

	_, ok = s.FindNode("other/a")
	assert.True(t, ok)
	assert.Len(t, s.RootNodes(), 2)

	err := s.Load([]byte(doc), LoadParams{Append: true})
	require.NoError(t, err)
	err = s.Load([]byte(doc), LoadParams{Append: true})
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLoadSkipsAreasWithMissingTargets(t *testing.T) {
	doc := `{
		"nodes": {"room1": {}},
		"areas": [
			{"target": "room0", "portals": []},
			{"target": "room1", "portals": []}
		],
		"bspnodes": [{"plane": [0,0,-1,-10], "pos": -1, "neg": -1}]
	}`
	s := NewScene()
	defer s.Destroy()
	err := s.Load([]byte(doc), LoadParams{})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, s.NumAreas())
	assert.Equal(t, 0, s.FindAreaIndex(mgl32.Vec3{}))
}

func TestLoadRejectsMalformedDocument(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	assert.Error(t, s.Load([]byte(`{"nodes": [`), LoadParams{}))
}

func TestLightRegistry(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	sun := light.NewLight("sun", light.LightTypeDirectional)
	lamp := light.NewLight("lamp", light.LightTypePoint, light.WithRadius(3))

	require.NoError(t, s.AddLight(sun))
	require.NoError(t, s.AddLight(lamp))
	assert.ErrorIs(t, s.AddLight(lamp), ErrDuplicateName)
	assert.Equal(t, []light.Light{sun}, s.GlobalLights())

	assert.True(t, s.RemoveLight("sun"))
	assert.False(t, s.RemoveLight("sun"))
	assert.Empty(t, s.GlobalLights())
}

func TestLightInstancesAreVisibleByExtents(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	h := s.CreateNode(WithNodeName("lamp"), WithLocalTransform(mgl32.Translate3D(0, 0, -5)))
	li := NewLightInstance(light.NewLight("lamp", light.LightTypePoint, light.WithRadius(1)))
	require.NoError(t, s.AddLightInstance(h, li))
	require.NoError(t, s.AddRootNode(h))
	s.Update()

	assert.Equal(t, common.Extents{-1, -1, -6, 1, 1, -4}, li.WorldExtents())
	s.UpdateVisibleNodes(lookingDown(mgl32.Vec3{}))
	assert.Equal(t, []*LightInstance{li}, s.CurrentVisibleLights())

	require.NoError(t, s.RemoveLightInstance(h, li))
	s.Update()
	s.UpdateVisibleNodes(lookingDown(mgl32.Vec3{}))
	assert.Empty(t, s.CurrentVisibleLights())
	assert.Empty(t, s.CurrentVisibleNodes())
}

func TestFindVisibleNodesLeavesFrameState(t *testing.T) {
	s := NewScene()
	defer s.Destroy()
	h, r := addCube(t, s, NodeHandle{}, "cube", mgl32.Vec3{}, 1, false)
	s.Update()

	frame := s.FrameIndex()
	nodes := s.FindVisibleNodes(lookingDown(mgl32.Vec3{0, 0, 5}), nil)
	assert.Equal(t, []NodeHandle{h}, nodes)
	assert.Equal(t, frame, s.FrameIndex())
	assert.Zero(t, r.FrameVisible)
	assert.Empty(t, s.CurrentVisibleRenderables())
}

func TestSceneFromConfigRecordsProfile(t *testing.T) {
	cfg := config.Default()
	cfg.StaticIndex = config.IndexRTree
	cfg.DynamicIndex = config.IndexRTree

	now := time.Unix(0, 0)
	p := profiler.NewProfiler(profiler.WithClock(func() time.Time { return now }))
	s := NewScene(WithConfig(cfg), WithProfiler(p))
	defer s.Destroy()

	addCube(t, s, NodeHandle{}, "static", mgl32.Vec3{-1, 0, 0}, 0.5, false)
	addCube(t, s, NodeHandle{}, "dynamic", mgl32.Vec3{1, 0, 0}, 0.5, true)
	s.Update()
	s.UpdateVisibleNodes(lookingDown(mgl32.Vec3{0, 0, 5}))
	assert.Len(t, s.CurrentVisibleRenderables(), 2)

	now = now.Add(time.Second)
	require.True(t, p.Tick())
	assert.Equal(t, profiler.VisibilityStats{Nodes: 2, Renderables: 2}, p.Last().Visibility)
}
