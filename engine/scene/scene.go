package scene

import (
	"errors"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/Carmen-Shannon/oxy-vis/engine/area"
	"github.com/Carmen-Shannon/oxy-vis/engine/camera"
	"github.com/Carmen-Shannon/oxy-vis/engine/geometry"
	"github.com/Carmen-Shannon/oxy-vis/engine/light"
	"github.com/Carmen-Shannon/oxy-vis/engine/profiler"
	"github.com/Carmen-Shannon/oxy-vis/engine/renderer"
	"github.com/Carmen-Shannon/oxy-vis/engine/spatial"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	// ErrInvalidState is returned when an operation conflicts with the current scene state.
	// Configuration errors such as duplicate root names also match it.
	ErrInvalidState = errors.New("invalid scene state")

	// ErrDuplicateName is returned when a name is already taken among roots, siblings or lights.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrNodeOwned is returned when a node or attachment already belongs elsewhere.
	ErrNodeOwned = errors.New("node already owned")

	// ErrNodeNotFound is returned for stale or unknown node handles.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNotRoot is returned when a root operation is given a node that is not a scene root.
	ErrNotRoot = errors.New("node is not a root")
)

// Scene owns a forest of nodes, the static and dynamic spatial indices they are filed in, an optional
// portal graph partitioning space into areas, and the registries of lights, materials and shapes.
//
// The frame protocol is: mutate nodes, call Update once, then call UpdateVisibleNodes for each camera.
// Lists returned by the CurrentVisible* methods are borrowed and stay valid only until the next
// UpdateVisibleNodes call. Every method is safe to call from any goroutine, but mutations must not
// race with a frame in progress.
type Scene interface {
	// ID returns the unique instance identifier of the scene, used to correlate log lines.
	ID() string

	// CreateNode allocates a detached node in the scene arena. Unnamed nodes get a generated name.
	//
	// Parameters:
	//   - options: variadic list of NodeOption functions
	//
	// Returns:
	//   - NodeHandle: the new node
	CreateNode(options ...NodeOption) NodeHandle

	// DestroyNode detaches a node and frees it and its subtree. Handles to the freed nodes go stale.
	//
	// Parameters:
	//   - h: the node to destroy
	//
	// Returns:
	//   - error: ErrNodeNotFound for a stale handle
	DestroyNode(h NodeHandle) error

	// AddChild attaches a detached node under parent. Children of a node in the scene join the scene.
	//
	// Parameters:
	//   - parent: the new parent
	//   - child: a node with no parent that is not a scene root
	//
	// Returns:
	//   - error: ErrNodeOwned, ErrDuplicateName among siblings, ErrInvalidState for a cycle, or ErrNodeNotFound
	AddChild(parent, child NodeHandle) error

	// RemoveChild detaches child from parent, taking its subtree out of the scene.
	//
	// Parameters:
	//   - parent: the current parent
	//   - child: the child to detach
	//
	// Returns:
	//   - error: ErrNodeNotFound if child is not a child of parent
	RemoveChild(parent, child NodeHandle) error

	// SetLocalTransform sets the transform of a node relative to its parent and marks its root dirty.
	// Static nodes are frozen once InitializeAreas has placed them in areas.
	//
	// Parameters:
	//   - h: the node
	//   - m: the local transform
	//
	// Returns:
	//   - error: ErrInvalidState for a frozen static node, or ErrNodeNotFound
	SetLocalTransform(h NodeHandle, m mgl32.Mat4) error

	// LocalTransform returns the local transform of a node.
	//
	// Returns:
	//   - mgl32.Mat4: the transform, identity when never set
	//   - bool: false for a stale handle
	LocalTransform(h NodeHandle) (mgl32.Mat4, bool)

	// WorldTransform returns the world transform computed by the last update.
	WorldTransform(h NodeHandle) (mgl32.Mat4, bool)

	// WorldExtents returns the world box computed by the last update.
	//
	// Returns:
	//   - common.Extents: the box
	//   - bool: false when the node has no extents or the handle is stale
	WorldExtents(h NodeHandle) (common.Extents, bool)

	// SetCustomWorldExtents overrides the box of a node. The node box still contains its attachments.
	// Pass nil to remove the override.
	SetCustomWorldExtents(h NodeHandle, extents *common.Extents) error

	// SetDynamic moves a node and its subtree between the static and dynamic index.
	//
	// Parameters:
	//   - h: the subtree root
	//   - dynamic: true to file the subtree under the dynamic index
	//
	// Returns:
	//   - error: ErrNodeNotFound for a stale handle
	SetDynamic(h NodeHandle, dynamic bool) error

	// Dynamic reports whether a node is filed under the dynamic index.
	Dynamic(h NodeHandle) bool

	// SetDisabled enables or disables a node and its subtree. Disabled nodes are never visible.
	SetDisabled(h NodeHandle, disabled bool) error

	// Disabled reports whether a node is disabled.
	Disabled(h NodeHandle) bool

	// AddRenderable attaches a renderable to a node.
	//
	// Returns:
	//   - error: ErrNodeOwned if r is attached elsewhere, or ErrNodeNotFound
	AddRenderable(h NodeHandle, r *Renderable) error

	// RemoveRenderable detaches a renderable from a node.
	RemoveRenderable(h NodeHandle, r *Renderable) error

	// AddLightInstance attaches a light instance to a node.
	AddLightInstance(h NodeHandle, li *LightInstance) error

	// RemoveLightInstance detaches a light instance from a node.
	RemoveLightInstance(h NodeHandle, li *LightInstance) error

	// Renderables returns the renderables attached to a node. The slice is borrowed.
	Renderables(h NodeHandle) []*Renderable

	// LightInstances returns the light instances attached to a node. The slice is borrowed.
	LightInstances(h NodeHandle) []*LightInstance

	// Children returns the children of a node in attachment order.
	Children(h NodeHandle) []NodeHandle

	// Parent returns the parent of a node, false for roots and detached nodes.
	Parent(h NodeHandle) (NodeHandle, bool)

	// NodeName returns the name of a node.
	NodeName(h NodeHandle) string

	// NodePath returns the slash-separated path of a node from its root.
	NodePath(h NodeHandle) string

	// Valid reports whether h refers to a live node of this scene.
	Valid(h NodeHandle) bool

	// AddRootNode registers a detached node as a root. Its subtree joins the scene and is updated
	// by the next UpdateNodes.
	//
	// Parameters:
	//   - h: the node to register
	//
	// Returns:
	//   - error: ErrInvalidState wrapping ErrDuplicateName or ErrNodeOwned, or ErrNodeNotFound
	AddRootNode(h NodeHandle) error

	// RemoveRootNode unregisters a root, taking its whole subtree out of the pending updates and both indices.
	//
	// Returns:
	//   - error: ErrNotRoot, or ErrNodeNotFound
	RemoveRootNode(h NodeHandle) error

	// FindNode resolves a slash-separated path such as "level/room/lamp".
	FindNode(path string) (NodeHandle, bool)

	// RootNodes returns the roots in registration order.
	RootNodes() []NodeHandle

	// UpdateNodes propagates pending transform and attachment changes and refreshes index membership.
	UpdateNodes()

	// Update runs the frame update: UpdateNodes, finalize both indices, recompute the scene extents,
	// and rebuild area membership when the static node set changed.
	Update()

	// Extents returns the union of both indices' extents, flushing pending node updates first.
	Extents() common.Extents

	// InitializeAreas grows area extents from their target hierarchies and rebuilds the static node
	// membership of every area.
	InitializeAreas()

	// NumAreas returns the number of areas loaded.
	NumAreas() int

	// AreaExtents returns the extents of an area.
	AreaExtents(index int) (common.Extents, bool)

	// AreaStaticNodes returns the static members of an area recorded by the last InitializeAreas.
	AreaStaticNodes(index int) []NodeHandle

	// FindAreaIndex returns the area containing p, or -1.
	FindAreaIndex(p mgl32.Vec3) int

	// SetPortalDisabled opens or closes the portals between two areas.
	//
	// Returns:
	//   - int: the number of portals changed
	SetPortalDisabled(a, b int, disabled bool) int

	// UpdateVisibleNodes runs the visibility pass for a camera and fills the current visible lists.
	//
	// Parameters:
	//   - cam: the camera to see through
	UpdateVisibleNodes(cam camera.Camera)

	// CurrentVisibleNodes returns the nodes found by the last visibility pass. The slice is borrowed.
	CurrentVisibleNodes() []NodeHandle

	// CurrentVisibleRenderables returns the renderables found by the last visibility pass. The slice is borrowed.
	CurrentVisibleRenderables() []*Renderable

	// CurrentVisibleLights returns the light instances found by the last visibility pass. The slice is borrowed.
	CurrentVisibleLights() []*LightInstance

	// FrameIndex returns the stamp the next visibility pass will mark visible objects with.
	FrameIndex() uint32

	// CameraAreaIndex returns the area the camera was in during the last visibility pass, or -1.
	CameraAreaIndex() int

	// MaxDistance returns the farthest visible distance of the last pass, measured from the camera.
	MaxDistance() float32

	// FindVisibleNodes appends the enabled nodes a camera can see, without classifying attachments.
	//
	// Parameters:
	//   - cam: the camera
	//   - out: the slice to append to
	//
	// Returns:
	//   - []NodeHandle: out with the visible nodes appended
	FindVisibleNodes(cam camera.Camera, out []NodeHandle) []NodeHandle

	// FindOverlappingNodes appends the nodes of both indices overlapping a box. When origin lies in an
	// area the search only reaches other areas through open portals the origin looks through.
	//
	// Parameters:
	//   - origin: the point the query is made from
	//   - extents: the query box
	//   - out: the slice to append to
	//
	// Returns:
	//   - []NodeHandle: out with the overlapping nodes appended
	FindOverlappingNodes(origin mgl32.Vec3, extents common.Extents, out []NodeHandle) []NodeHandle

	// FindStaticOverlappingNodes is FindOverlappingNodes restricted to static nodes.
	FindStaticOverlappingNodes(origin mgl32.Vec3, extents common.Extents, out []NodeHandle) []NodeHandle

	// FindDynamicOverlappingNodes is FindOverlappingNodes restricted to dynamic nodes.
	FindDynamicOverlappingNodes(origin mgl32.Vec3, extents common.Extents, out []NodeHandle) []NodeHandle

	// FindOverlappingRenderables appends the enabled renderables overlapping a box, with the same area
	// rules as FindOverlappingNodes.
	FindOverlappingRenderables(origin mgl32.Vec3, extents common.Extents, out []*Renderable) []*Renderable

	// AddLight registers a light by name.
	//
	// Returns:
	//   - error: ErrDuplicateName if the name is taken
	AddLight(l light.Light) error

	// RemoveLight unregisters a light by name.
	//
	// Returns:
	//   - bool: true if a light was removed
	RemoveLight(name string) bool

	// Light looks up a registered light.
	Light(name string) (light.Light, bool)

	// GlobalLights returns the registered lights that affect the whole scene.
	GlobalLights() []light.Light

	// Material looks up a registered material.
	Material(name string) *geometry.Material

	// SetMaterial registers a material under its name, replacing any previous one.
	SetMaterial(m *geometry.Material)

	// Shape looks up a registered shape.
	Shape(name string) *geometry.Shape

	// SetShape registers a shape under its name, replacing any previous one.
	SetShape(s *geometry.Shape)

	// Load reads a JSON scene document.
	//
	// Parameters:
	//   - data: the document
	//   - params: load parameters
	//
	// Returns:
	//   - error: a parse error, or the joined errors of every skipped unit
	Load(data []byte, params LoadParams) error

	// DrawItems appends one draw item per visible renderable that has device buffers and a material.
	//
	// Parameters:
	//   - out: the slice to append to
	//
	// Returns:
	//   - []renderer.DrawItem: out with the draw items appended
	DrawItems(out []renderer.DrawItem) []renderer.DrawItem

	// Clear removes every node, area, light, material and shape. Shape buffers are released.
	Clear()

	// Destroy clears the scene and stops its worker pool. The scene must not be used afterwards.
	Destroy()
}

type areaState struct {
	target      NodeHandle
	baseExtents common.Extents

	// nodes holds the static members up to numStaticNodes, then per-pass dynamic scratch.
	nodes          []NodeID
	numStaticNodes int
	addedDynamic   bool
}

// sceneImpl is the implementation of the Scene interface.
type sceneImpl struct {
	mu *sync.RWMutex
	id uuid.UUID

	nodes     []node
	free      []NodeID
	roots     []NodeID
	rootNames map[string]NodeID

	dirtyRoots map[NodeID]struct{}
	dirtyList  []NodeID

	staticIndex   spatial.SpatialIndex[NodeID]
	dynamicIndex  spatial.SpatialIndex[NodeID]
	staticChanges uint64
	areaChanges   uint64
	extents       common.Extents

	graph             *area.Graph
	areas             []areaState
	areasLocked       bool
	tightAreaExtents  bool
	maxVisiblePortals int

	lights       map[string]light.Light
	globalLights []light.Light
	materials    map[string]*geometry.Material
	shapes       map[string]*geometry.Shape

	frameIndex         uint32
	queryCounter       uint32
	cameraAreaIndex    int
	maxDistance        float32
	frustumPlanes      []common.Plane
	visibleNodes       []NodeHandle
	visibleRenderables []*Renderable
	visibleLights      []*LightInstance

	// Pre-allocated scratch reused across frames and queries.
	queryNodes      []NodeID
	changed         [][]NodeID
	propagateStacks [][]propagateEntry
	walkStack       []NodeID
	areaScratch     []int
	overlapScratch  []int

	// computePool fans dirty root subtrees out across workers during UpdateNodes.
	computePool    worker.DynamicWorkerPool
	computeWorkers int

	profiler      *profiler.Profiler
	outsideWarned bool
}

// Ensure sceneImpl implements Scene interface.
var _ Scene = &sceneImpl{}

// NewScene creates an empty scene. Both indices default to dynamic AABB trees.
//
// Parameters:
//   - options: variadic list of SceneBuilderOption functions to configure the scene
//
// Returns:
//   - Scene: the new scene
func NewScene(options ...SceneBuilderOption) Scene {
	s := &sceneImpl{
		mu:                &sync.RWMutex{},
		id:                uuid.New(),
		rootNames:         make(map[string]NodeID),
		dirtyRoots:        make(map[NodeID]struct{}),
		lights:            make(map[string]light.Light),
		materials:         make(map[string]*geometry.Material),
		shapes:            make(map[string]*geometry.Shape),
		frameIndex:        1,
		queryCounter:      1,
		cameraAreaIndex:   -1,
		maxVisiblePortals: 4096,
		computeWorkers:    max(runtime.NumCPU()-1, 1),
	}

	for _, option := range options {
		option(s)
	}

	if s.staticIndex == nil {
		s.staticIndex = spatial.NewAABBTree[NodeID]()
	}
	if s.dynamicIndex == nil {
		s.dynamicIndex = spatial.NewAABBTree[NodeID](spatial.WithMargin(0.1))
	}
	s.graph = area.NewGraph(area.WithMaxVisiblePortals(s.maxVisiblePortals))

	// Initialize the compute pool after options so WithComputeWorkers can override the default.
	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)
	return s
}

func (s *sceneImpl) ID() string {
	return s.id.String()
}

func (s *sceneImpl) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update()
}

func (s *sceneImpl) update() {
	s.updateNodes()
	s.staticIndex.Finalize()
	s.dynamicIndex.Finalize()
	s.updateExtents()

	if len(s.areas) > 0 && s.staticChanges != s.areaChanges {
		s.initializeAreas()
	}
}

func (s *sceneImpl) updateExtents() {
	se, hasStatic := s.staticIndex.GetExtents()
	de, hasDynamic := s.dynamicIndex.GetExtents()
	switch {
	case hasStatic && hasDynamic:
		s.extents = se.Union(de)
	case hasStatic:
		s.extents = se
	case hasDynamic:
		s.extents = de
	default:
		s.extents = common.Extents{}
	}
}

func (s *sceneImpl) Extents() common.Extents {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dirtyList) > 0 {
		s.update()
	}
	return s.extents
}

func (s *sceneImpl) AddLight(l light.Light) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLight(l)
}

func (s *sceneImpl) addLight(l light.Light) error {
	if _, ok := s.lights[l.Name()]; ok {
		return ErrDuplicateName
	}
	s.lights[l.Name()] = l
	if l.IsGlobal() {
		s.globalLights = append(s.globalLights, l)
	}
	return nil
}

func (s *sceneImpl) RemoveLight(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lights[name]; !ok {
		return false
	}
	delete(s.lights, name)
	s.globalLights = lo.Filter(s.globalLights, func(l light.Light, _ int) bool {
		return l.Name() != name
	})
	return true
}

func (s *sceneImpl) Light(name string) (light.Light, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lights[name]
	return l, ok
}

func (s *sceneImpl) GlobalLights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.globalLights
}

func (s *sceneImpl) Material(name string) *geometry.Material {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.materials[name]
}

func (s *sceneImpl) SetMaterial(m *geometry.Material) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials[m.Name] = m
}

func (s *sceneImpl) Shape(name string) *geometry.Shape {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shapes[name]
}

func (s *sceneImpl) SetShape(shape *geometry.Shape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.shapes[shape.Name]; ok && old != shape {
		old.Release()
	}
	s.shapes[shape.Name] = shape
}

func (s *sceneImpl) DrawItems(out []renderer.DrawItem) []renderer.DrawItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.visibleRenderables {
		if r.Shape == nil || r.Surface == nil || r.Material == nil || r.Shape.VertexBuffer == nil {
			continue
		}
		item := r.Shape.DrawItem(r.Surface, r.Material, r.Distance)
		if n, ok := s.lookup(r.node); ok {
			item.World = n.world
		}
		out = append(out, item)
	}
	return out
}

func (s *sceneImpl) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

func (s *sceneImpl) clear() {
	s.clearNodes()
	s.clearAreas()

	clear(s.lights)
	s.globalLights = s.globalLights[:0]
	clear(s.materials)
	for _, shape := range s.shapes {
		shape.Release()
	}
	clear(s.shapes)

	s.extents = common.Extents{}
	s.visibleNodes = s.visibleNodes[:0]
	clear(s.visibleRenderables)
	s.visibleRenderables = s.visibleRenderables[:0]
	clear(s.visibleLights)
	s.visibleLights = s.visibleLights[:0]
	s.cameraAreaIndex = -1
	s.maxDistance = 0
}

// clearNodes drops every node and empties both indices.
func (s *sceneImpl) clearNodes() {
	s.nodes = s.nodes[:0]
	s.free = s.free[:0]
	s.roots = s.roots[:0]
	clear(s.rootNames)
	clear(s.dirtyRoots)
	s.dirtyList = s.dirtyList[:0]
	s.staticIndex.Clear()
	s.dynamicIndex.Clear()
	s.staticChanges = 0
	s.areaChanges = 0
}

func (s *sceneImpl) clearAreas() {
	s.graph.Clear()
	s.areas = s.areas[:0]
	s.areasLocked = false
	s.outsideWarned = false
}

func (s *sceneImpl) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	if s.computePool != nil {
		s.computePool.Stop()
		s.computePool = nil
	}
	log.Printf("[Scene] %s destroyed", s.id)
}
