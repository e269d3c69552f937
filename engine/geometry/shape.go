package geometry

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/Carmen-Shannon/oxy-vis/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/samber/lo"
)

var (
	// ErrBufferAllocation is returned when the device fails to allocate a shape's vertex or index buffer.
	ErrBufferAllocation = errors.New("geometry: buffer allocation failed")

	// ErrUnknownShape is returned when a shape name is not present in the document.
	ErrUnknownShape = errors.New("geometry: unknown shape")

	// ErrInvalidShape is returned when shape data is inconsistent (missing sources, out of range indices).
	ErrInvalidShape = errors.New("geometry: invalid shape data")
)

// maxIndicesPerVertex bounds the multi-index tuple size accepted by LoadShape.
const maxIndicesPerVertex = 8

// semanticRank orders inputs sharing an index offset.
var semanticRank = map[common.Semantic]int{
	common.SemanticPosition: 0,
	common.SemanticBlendWgt: 1,
	common.SemanticNormal:   2,
	common.SemanticColor:    3,
	common.SemanticBlendIdx: 7,
	common.SemanticTexcoord: 8,
	common.SemanticTangent:  14,
	common.SemanticBinormal: 15,
}

// Surface is one drawable index range of a Shape. Indexed surfaces draw NumIndices indices
// from First in the shape's index buffer; the others draw NumVertices vertices from First.
type Surface struct {
	Name        string
	Primitive   common.PrimitiveType
	First       int
	NumIndices  int
	NumVertices int
	Indices     []uint32 // CPU copy, kept only with WithKeepVertexData or without a device
}

// Indexed reports whether the surface draws through the index buffer.
func (s *Surface) Indexed() bool {
	return s.NumIndices > 0
}

// Shape is a loaded geometry: one interleaved vertex stream shared by its surfaces.
type Shape struct {
	Name        string
	Attributes  []common.VertexAttribute
	Stride      int // float32 components per vertex
	NumVertices int
	Vertices    []float32 // CPU copy, kept only with WithKeepVertexData or without a device

	Surfaces     []*Surface // sorted by name
	Center       mgl32.Vec3
	HalfExtents  mgl32.Vec3
	VertexBuffer renderer.Buffer
	IndexBuffer  renderer.Buffer
}

// Surface returns the surface with the given name, or nil.
func (s *Shape) Surface(name string) *Surface {
	for _, surf := range s.Surfaces {
		if surf.Name == name {
			return surf
		}
	}
	return nil
}

// Extents returns the local-space bounds of the shape.
func (s *Shape) Extents() common.Extents {
	return common.ExtentsFromCenter(s.Center, s.HalfExtents)
}

// Release frees the shape's device buffers.
func (s *Shape) Release() {
	if s.VertexBuffer != nil {
		s.VertexBuffer.Release()
		s.VertexBuffer = nil
	}
	if s.IndexBuffer != nil {
		s.IndexBuffer.Release()
		s.IndexBuffer = nil
	}
}

// DrawItem builds the draw submission for one surface of the shape with the given material.
//
// Parameters:
//   - surface: the surface to draw
//   - m: the material supplying technique and parameters, may be nil
//   - distance: the view distance used for ordering
//
// Returns:
//   - renderer.DrawItem: the draw item
func (s *Shape) DrawItem(surface *Surface, m *Material, distance float32) renderer.DrawItem {
	item := renderer.DrawItem{
		Distance:   distance,
		Primitive:  surface.Primitive,
		Vertices:   s.VertexBuffer,
		Attributes: s.Attributes,
		First:      surface.First,
		Count:      surface.NumVertices,
	}
	if m != nil {
		item.Technique = m.TechniqueName
		item.Parameters = m.Parameters
	}
	if surface.Indexed() {
		item.Indices = s.IndexBuffer
		item.Count = surface.NumIndices
	}
	return item
}

type vertexSource struct {
	semantic common.Semantic
	offset   int
	stride   int
	data     []float32
}

// LoadShape converts a document shape into a Shape. Multi-index vertices are de-indexed into
// a single interleaved float32 stream, surfaces whose indices are sequential draw without an
// index buffer and the rest share one uint32 index buffer. With a nil device only CPU data is
// produced. A failed allocation returns ErrBufferAllocation and no shape.
//
// Parameters:
//   - name: the shape name, used for buffer labels
//   - data: the document shape
//   - device: the device allocating buffers, may be nil
//   - options: functional options to configure loading
//
// Returns:
//   - *Shape: the loaded shape
//   - error: ErrInvalidShape for inconsistent data, ErrBufferAllocation on device failure
func LoadShape(name string, data ShapeData, device renderer.Device, options ...LoadOption) (*Shape, error) {
	cfg := loadConfig{}
	for _, option := range options {
		option(&cfg)
	}
	keep := cfg.keepVertexData || device == nil

	sources, err := collectSources(name, data)
	if err != nil {
		return nil, err
	}
	indicesPerVertex := 1
	for _, src := range sources {
		indicesPerVertex = max(indicesPerVertex, src.offset+1)
	}
	if indicesPerVertex > maxIndicesPerVertex {
		return nil, fmt.Errorf("%w: shape %s uses %d indices per vertex", ErrInvalidShape, name, indicesPerVertex)
	}

	surfaces := collectSurfaces(data)
	if indicesPerVertex > 1 {
		if sources, err = deindex(name, surfaces, sources, indicesPerVertex); err != nil {
			return nil, err
		}
	}

	shape := &Shape{Name: name, Surfaces: surfaces}
	shape.NumVertices = len(sources[0].data) / sources[0].stride
	for _, src := range sources {
		shape.Attributes = append(shape.Attributes, common.VertexAttribute{
			Semantic:   src.semantic,
			Components: src.stride,
			Offset:     shape.Stride,
		})
		shape.Stride += src.stride
		if len(src.data) < shape.NumVertices*src.stride {
			return nil, fmt.Errorf("%w: shape %s source for %s is short", ErrInvalidShape, name, src.semantic)
		}
	}

	vertices := make([]float32, 0, shape.NumVertices*shape.Stride)
	for v := 0; v < shape.NumVertices; v++ {
		for _, src := range sources {
			vertices = append(vertices, src.data[v*src.stride:(v+1)*src.stride]...)
		}
	}

	var indices []uint32
	for _, surf := range surfaces {
		for _, idx := range surf.Indices {
			if int(idx) >= shape.NumVertices {
				return nil, fmt.Errorf("%w: shape %s surface %s index %d out of range", ErrInvalidShape, name, surf.Name, idx)
			}
		}
		if isSequential(surf.Indices) {
			surf.First = int(surf.Indices[0])
			surf.NumVertices = len(surf.Indices)
		} else {
			surf.First = len(indices)
			surf.NumIndices = len(surf.Indices)
			indices = append(indices, surf.Indices...)
		}
		if !keep {
			surf.Indices = nil
		}
	}

	shape.Center, shape.HalfExtents = positionBounds(data, sources)

	if device != nil {
		vb, err := device.CreateVertexBuffer(name+" Vertex Buffer", vertices)
		if err != nil {
			return nil, fmt.Errorf("shape %s: %w: %w", name, ErrBufferAllocation, err)
		}
		shape.VertexBuffer = vb
		if len(indices) > 0 {
			ib, err := device.CreateIndexBuffer(name+" Index Buffer", indices)
			if err != nil {
				shape.Release()
				return nil, fmt.Errorf("shape %s: %w: %w", name, ErrBufferAllocation, err)
			}
			shape.IndexBuffer = ib
		}
	}
	if keep {
		shape.Vertices = vertices
	}
	return shape, nil
}

// collectSources resolves the shape's inputs, skipping unknown semantics, ordered by index
// offset and then by semantic.
func collectSources(name string, data ShapeData) ([]vertexSource, error) {
	var sources []vertexSource
	for input, in := range data.Inputs {
		semantic, ok := normalizeSemantic(input)
		if !ok {
			log.Printf("[Loader] unknown semantic %s in shape %s", input, name)
			continue
		}
		src, ok := data.Sources[in.Source]
		if !ok || src.Stride <= 0 {
			return nil, fmt.Errorf("%w: shape %s input %s references missing source %q", ErrInvalidShape, name, input, in.Source)
		}
		if in.Offset < 0 {
			return nil, fmt.Errorf("%w: shape %s input %s has negative offset", ErrInvalidShape, name, input)
		}
		sources = append(sources, vertexSource{
			semantic: semantic,
			offset:   in.Offset,
			stride:   src.Stride,
			data:     src.Data,
		})
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: shape %s has no usable inputs", ErrInvalidShape, name)
	}

	slices.SortFunc(sources, func(a, b vertexSource) int {
		if a.offset != b.offset {
			return a.offset - b.offset
		}
		return semanticRank[a.semantic] - semanticRank[b.semantic]
	})
	return sources, nil
}

func normalizeSemantic(input string) (common.Semantic, bool) {
	s := common.Semantic(input)
	if input == "TEXCOORD" {
		s = common.SemanticTexcoord
	} else if trimmed := strings.TrimSuffix(input, "0"); trimmed != input && input != string(common.SemanticTexcoord) {
		s = common.Semantic(trimmed)
	}
	_, ok := semanticRank[s]
	return s, ok
}

// collectSurfaces returns the surfaces holding primitives, sorted by name. The Indices of each
// surface are a private copy of the document faces.
func collectSurfaces(data ShapeData) []*Surface {
	fileSurfaces := data.Surfaces
	if len(fileSurfaces) == 0 {
		fileSurfaces = map[string]SurfaceData{
			"singleSurface": {
				Triangles:     data.Triangles,
				Lines:         data.Lines,
				NumPrimitives: data.NumPrimitives,
			},
		}
	}

	var surfaces []*Surface
	for _, surfName := range lo.Keys(fileSurfaces) {
		fs := fileSurfaces[surfName]
		surf := &Surface{Name: surfName}
		switch {
		case len(fs.Triangles) > 0:
			surf.Primitive = common.PrimitiveTriangles
			surf.Indices = slices.Clone(fs.Triangles)
		case len(fs.Lines) > 0:
			surf.Primitive = common.PrimitiveLines
			surf.Indices = slices.Clone(fs.Lines)
		default:
			continue
		}
		surfaces = append(surfaces, surf)
	}
	slices.SortFunc(surfaces, func(a, b *Surface) int {
		return strings.Compare(a.Name, b.Name)
	})
	return surfaces
}

// deindex rewrites multi-index surfaces to one index per vertex, creating one vertex for each
// distinct index tuple shared across all surfaces, and rebuilds every source in that vertex order.
func deindex(name string, surfaces []*Surface, sources []vertexSource, indicesPerVertex int) ([]vertexSource, error) {
	table := make(map[[maxIndicesPerVertex]uint32]uint32)
	var tuples []uint32

	for _, surf := range surfaces {
		if len(surf.Indices)%indicesPerVertex != 0 {
			return nil, fmt.Errorf("%w: shape %s surface %s index count is not a multiple of %d",
				ErrInvalidShape, name, surf.Name, indicesPerVertex)
		}
		single := make([]uint32, len(surf.Indices)/indicesPerVertex)
		for v := range single {
			var key [maxIndicesPerVertex]uint32
			copy(key[:indicesPerVertex], surf.Indices[v*indicesPerVertex:(v+1)*indicesPerVertex])
			idx, ok := table[key]
			if !ok {
				idx = uint32(len(tuples) / indicesPerVertex)
				table[key] = idx
				tuples = append(tuples, key[:indicesPerVertex]...)
			}
			single[v] = idx
		}
		surf.Indices = single
	}

	numVertices := len(tuples) / indicesPerVertex
	out := make([]vertexSource, len(sources))
	for i, src := range sources {
		data := make([]float32, numVertices*src.stride)
		for v := 0; v < numVertices; v++ {
			old := int(tuples[v*indicesPerVertex+src.offset])
			if (old+1)*src.stride > len(src.data) {
				return nil, fmt.Errorf("%w: shape %s index %d out of range for %s", ErrInvalidShape, name, old, src.semantic)
			}
			copy(data[v*src.stride:], src.data[old*src.stride:(old+1)*src.stride])
		}
		out[i] = vertexSource{semantic: src.semantic, stride: src.stride, data: data}
	}
	return out, nil
}

func isSequential(indices []uint32) bool {
	for n := 1; n < len(indices); n++ {
		if indices[n] != indices[0]+uint32(n) {
			return false
		}
	}
	return len(indices) > 0
}

// positionBounds returns the center and half extents of the POSITION input, preferring the
// exporter's min/max and falling back to scanning the positions.
func positionBounds(data ShapeData, sources []vertexSource) (center, half mgl32.Vec3) {
	for input, in := range data.Inputs {
		if s, ok := normalizeSemantic(input); !ok || s != common.SemanticPosition {
			continue
		}
		src := data.Sources[in.Source]
		if len(src.Min) >= 3 && len(src.Max) >= 3 {
			e := common.Extents{src.Min[0], src.Min[1], src.Min[2], src.Max[0], src.Max[1], src.Max[2]}
			return e.Center(), e.HalfExtents()
		}
	}

	for _, src := range sources {
		if src.semantic != common.SemanticPosition || src.stride < 3 {
			continue
		}
		e := common.EmptyExtents()
		for i := 0; i+2 < len(src.data); i += src.stride {
			e = e.AddPoint(mgl32.Vec3{src.data[i], src.data[i+1], src.data[i+2]})
		}
		if e.IsValid() {
			return e.Center(), e.HalfExtents()
		}
	}
	return mgl32.Vec3{}, mgl32.Vec3{}
}
