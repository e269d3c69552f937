package renderer

import (
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/go-gl/mathgl/mgl32"
)

// DrawItem is one surface ready for submission: a material technique, its parameters and
// the buffers of the shape surface, plus the view distance used for ordering.
type DrawItem struct {
	Technique  string
	Parameters map[string]any
	Distance   float32

	Primitive  common.PrimitiveType
	Vertices   Buffer
	Attributes []common.VertexAttribute
	Indices    Buffer // nil draws Count vertices from First without an index buffer
	First      int
	Count      int

	// World places the item; it reaches the technique as ParamWorld once a view projection is set.
	World mgl32.Mat4
}

// Parameter names the renderer adds to each item's parameters after SetViewProjection.
const (
	ParamViewProjection = "viewProjection"
	ParamWorld          = "world"
)

// SortOrder controls the distance ordering applied within each technique group.
type SortOrder int

const (
	// SortFrontToBack draws near items first, favouring early depth rejection.
	SortFrontToBack SortOrder = iota

	// SortBackToFront draws far items first, as blended surfaces require.
	SortBackToFront
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backend   Backend
	sortOrder SortOrder

	items     []DrawItem
	drawCalls int
	skipped   int

	viewProjection    mgl32.Mat4
	hasViewProjection bool
	paramScratch      []map[string]any
}

// Renderer submits visible surfaces to a Backend in a state-friendly order.
//
// Items are grouped by technique so pipeline switches are minimised, then ordered by
// distance inside each group. Buffers and techniques are only rebound when they change
// between consecutive items.
type Renderer interface {
	// Backend returns the backend draws are submitted to.
	//
	// Returns:
	//   - Backend: the backend
	Backend() Backend

	// Submit sorts and draws the given items. The slice is copied into renderer-owned
	// storage, so the caller may reuse it immediately.
	//
	// Parameters:
	//   - items: the items to draw
	//
	// Returns:
	//   - int: the number of draw calls issued
	Submit(items []DrawItem) int

	// SetViewProjection sets the camera matrix for subsequent Submits. From then on every item
	// is drawn with ParamViewProjection and ParamWorld merged into its parameters; a zero World
	// is treated as identity.
	//
	// Parameters:
	//   - m: the combined projection and view matrix
	SetViewProjection(m mgl32.Mat4)

	// DrawCalls returns the number of draw calls issued by the last Submit.
	//
	// Returns:
	//   - int: the draw call count
	DrawCalls() int

	// Skipped returns the number of items the last Submit dropped because their technique
	// could not be bound or they had nothing to draw.
	//
	// Returns:
	//   - int: the skipped item count
	Skipped() int
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer that submits to the given backend.
//
// Parameters:
//   - backend: the backend receiving draws
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the renderer
func NewRenderer(backend Backend, options ...RendererBuilderOption) Renderer {
	if backend == nil {
		panic("renderer: backend must not be nil")
	}
	r := &renderer{
		mu:      &sync.Mutex{},
		backend: backend,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *renderer) Backend() Backend {
	return r.backend
}

func (r *renderer) Submit(items []DrawItem) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items[:0], items...)
	sortDrawItems(r.items, r.sortOrder)
	if r.hasViewProjection {
		for i := range r.items {
			r.items[i].Parameters = r.withTransforms(i)
		}
	}
	r.drawCalls, r.skipped = submit(r.backend, r.items)

	clear(r.items)
	r.items = r.items[:0]
	return r.drawCalls
}

func (r *renderer) SetViewProjection(m mgl32.Mat4) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewProjection = m
	r.hasViewProjection = true
}

// withTransforms returns the parameters of the i-th item with the camera and world matrices
// added. The merged maps are reused across frames, so backends must consume them before the
// next Submit.
func (r *renderer) withTransforms(i int) map[string]any {
	for len(r.paramScratch) <= i {
		r.paramScratch = append(r.paramScratch, make(map[string]any))
	}
	params := r.paramScratch[i]
	clear(params)
	for k, v := range r.items[i].Parameters {
		params[k] = v
	}
	world := r.items[i].World
	if world == (mgl32.Mat4{}) {
		world = mgl32.Ident4()
	}
	params[ParamViewProjection] = r.viewProjection
	params[ParamWorld] = world
	return params
}

func (r *renderer) DrawCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drawCalls
}

func (r *renderer) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

// DrawVisible sorts items in place by technique and then by ascending distance (stable, so
// equal keys keep their visibility order) and submits them to the backend.
//
// Parameters:
//   - backend: the backend receiving draws
//   - items: the items to sort and draw
//
// Returns:
//   - int: the number of draw calls issued
func DrawVisible(backend Backend, items []DrawItem) int {
	sortDrawItems(items, SortFrontToBack)
	n, _ := submit(backend, items)
	return n
}

func sortDrawItems(items []DrawItem, order SortOrder) {
	slices.SortStableFunc(items, func(a, b DrawItem) int {
		if a.Technique != b.Technique {
			if a.Technique < b.Technique {
				return -1
			}
			return 1
		}
		da, db := a.Distance, b.Distance
		if order == SortBackToFront {
			da, db = db, da
		}
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	})
}

func submit(backend Backend, items []DrawItem) (drawCalls, skipped int) {
	var (
		technique    string
		techniqueOK  bool
		haveTech     bool
		boundVerts   Buffer
		boundIndices Buffer
	)

	for i := range items {
		it := &items[i]
		if it.Count <= 0 || it.Vertices == nil {
			skipped++
			continue
		}

		if !haveTech || it.Technique != technique {
			technique = it.Technique
			haveTech = true
			techniqueOK = backend.SetTechnique(technique) == nil
			boundVerts, boundIndices = nil, nil
		}
		if !techniqueOK {
			skipped++
			continue
		}

		backend.SetTechniqueParameters(it.Parameters)
		if it.Vertices != boundVerts {
			backend.SetStream(it.Vertices, it.Attributes, 0)
			boundVerts = it.Vertices
		}

		if it.Indices == nil {
			backend.Draw(it.Primitive, it.Count, it.First)
			drawCalls++
			continue
		}
		if it.Indices != boundIndices {
			backend.SetIndexBuffer(it.Indices)
			boundIndices = it.Indices
		}
		backend.DrawIndexed(it.Primitive, it.Count, it.First)
		drawCalls++
	}
	return drawCalls, skipped
}
