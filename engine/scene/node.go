package scene

import (
	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/Carmen-Shannon/oxy-vis/engine/geometry"
	"github.com/Carmen-Shannon/oxy-vis/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// NodeID is the arena slot of a node. Slots are reused after a node is destroyed.
type NodeID int32

const noNode NodeID = -1

// NodeHandle refers to a node of one scene. A handle goes stale when its node is destroyed,
// and every scene operation given a stale handle fails with ErrNodeNotFound.
// The zero value is never valid.
type NodeHandle struct {
	ID         NodeID
	Generation uint32
}

// IsZero reports whether h is the zero handle.
func (h NodeHandle) IsZero() bool {
	return h.Generation == 0
}

// Renderable is a drawable instance of a shape surface with a material, attached to at most one node.
// Distance and FrameVisible are written by visibility passes.
type Renderable struct {
	Shape    *geometry.Shape
	Surface  *geometry.Surface
	Material *geometry.Material
	Disabled bool

	// LocalExtents bounds the renderable in node space.
	LocalExtents common.Extents

	Distance     float32
	FrameVisible uint32

	queryCounter uint32
	worldExtents common.Extents
	node         NodeHandle
}

// NewRenderable creates a renderable bounded by the shape extents. A nil surface selects the
// first surface of the shape.
//
// Parameters:
//   - shape: the shape to draw
//   - surface: the surface of shape to draw, or nil
//   - material: the material to draw with, may be nil for CPU-only scenes
//
// Returns:
//   - *Renderable: the renderable
func NewRenderable(shape *geometry.Shape, surface *geometry.Surface, material *geometry.Material) *Renderable {
	r := &Renderable{
		Shape:    shape,
		Surface:  surface,
		Material: material,
	}
	if shape != nil {
		r.LocalExtents = shape.Extents()
		if r.Surface == nil && len(shape.Surfaces) > 0 {
			r.Surface = shape.Surfaces[0]
		}
	}
	return r
}

// WorldExtents returns the world-space box computed at the last node update.
func (r *Renderable) WorldExtents() common.Extents {
	return r.worldExtents
}

// Node returns the node the renderable is attached to, or the zero handle.
func (r *Renderable) Node() NodeHandle {
	return r.node
}

// LightInstance binds a shared Light to the transform of the node it is attached to.
type LightInstance struct {
	Light    light.Light
	Disabled bool

	Distance     float32
	FrameVisible uint32

	queryCounter uint32
	worldExtents common.Extents
	node         NodeHandle
}

// NewLightInstance creates an instance of l.
func NewLightInstance(l light.Light) *LightInstance {
	return &LightInstance{Light: l, Disabled: l.Disabled()}
}

// WorldExtents returns the world-space bounds of the light computed at the last node update.
// Global lights have no bounds and return the zero box.
func (li *LightInstance) WorldExtents() common.Extents {
	return li.worldExtents
}

// Node returns the node the instance is attached to, or the zero handle.
func (li *LightInstance) Node() NodeHandle {
	return li.node
}

// node is one arena slot.
type node struct {
	name       string
	generation uint32
	alive      bool

	parent   NodeID
	children []NodeID
	root     bool // registered through AddRootNode

	local      mgl32.Mat4
	world      mgl32.Mat4
	hasLocal   bool
	dirtyWorld bool
	dirtyExt   bool

	worldExtents  common.Extents
	hasExtents    bool
	customExtents *common.Extents

	dynamic  bool
	disabled bool

	// index membership, maintained serially after each update
	indexed        bool
	indexedDynamic bool

	renderables []*Renderable
	lights      []*LightInstance

	distance     float32
	frameVisible uint32
	queryCounter uint32
}

// computeExtents refreshes the world extents of every attachment and the node box they union to.
// A node without bounded attachments or custom extents has no extents and stays out of the indices.
func (n *node) computeExtents() {
	e := common.EmptyExtents()
	has := false
	for _, r := range n.renderables {
		r.worldExtents = r.LocalExtents.Transform(n.world)
		e = e.Union(r.worldExtents)
		has = true
	}
	for _, li := range n.lights {
		if li.Light.IsGlobal() {
			li.worldExtents = common.Extents{}
			continue
		}
		li.worldExtents = li.Light.WorldExtents(n.world)
		e = e.Union(li.worldExtents)
		has = true
	}
	if n.customExtents != nil {
		e = e.Union(*n.customExtents)
		has = true
	}
	n.worldExtents = e
	n.hasExtents = has
}

// attachmentsEligible reports whether the node takes part in area membership.
func (n *node) attachmentsEligible() bool {
	return n.hasExtents && (len(n.renderables) > 0 || len(n.lights) > 0)
}

// nearDistance is the signed distance of the farthest box corner in front of the near plane.
func nearDistance(e common.Extents, near common.Plane) float32 {
	var d float32
	for i := range 3 {
		if near.Normal[i] > 0 {
			d += near.Normal[i] * e[i+3]
		} else {
			d += near.Normal[i] * e[i]
		}
	}
	return d - near.Distance
}
