package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var posOnly = []common.VertexAttribute{{Semantic: common.SemanticPosition, Components: 3}}

func newBuffers(t *testing.T, rb *RecordingBackend) (Buffer, Buffer) {
	t.Helper()
	vb, err := rb.CreateVertexBuffer("verts", []float32{0, 0, 0, 1, 0, 0, 0, 1, 0})
	require.NoError(t, err)
	ib, err := rb.CreateIndexBuffer("indices", []uint32{0, 1, 2})
	require.NoError(t, err)
	return vb, ib
}

func drawnTechniques(rb *RecordingBackend) []string {
	var out []string
	current := ""
	for _, c := range rb.Calls() {
		switch c.Kind {
		case CallSetTechnique:
			current = c.Technique
		case CallDraw, CallDrawIndexed:
			out = append(out, current)
		}
	}
	return out
}

func TestDrawVisibleOrdersByTechniqueThenDistance(t *testing.T) {
	rb := NewRecordingBackend()
	vb, ib := newBuffers(t, rb)

	items := []DrawItem{
		{Technique: "lit", Distance: 5, Vertices: vb, Indices: ib, Count: 3, Parameters: map[string]any{"id": 0}},
		{Technique: "flat", Distance: 9, Vertices: vb, Indices: ib, Count: 3, Parameters: map[string]any{"id": 1}},
		{Technique: "lit", Distance: 1, Vertices: vb, Indices: ib, Count: 3, Parameters: map[string]any{"id": 2}},
		{Technique: "flat", Distance: 2, Vertices: vb, Indices: ib, Count: 3, Parameters: map[string]any{"id": 3}},
		{Technique: "lit", Distance: 1, Vertices: vb, Indices: ib, Count: 3, Parameters: map[string]any{"id": 4}},
	}

	n := DrawVisible(rb, items)
	assert.Equal(t, 5, n)
	assert.Equal(t, []string{"flat", "flat", "lit", "lit", "lit"}, drawnTechniques(rb))

	var ids []int
	for _, c := range rb.CallsOf(CallSetTechniqueParameters) {
		ids = append(ids, c.Parameters["id"].(int))
	}
	// equal distances keep their input order
	assert.Equal(t, []int{3, 1, 2, 4, 0}, ids)
	assert.Len(t, rb.CallsOf(CallSetTechnique), 2)
}

func TestSubmitRebindsOnlyOnChange(t *testing.T) {
	rb := NewRecordingBackend()
	vb, ib := newBuffers(t, rb)
	vb2, _ := newBuffers(t, rb)

	r := NewRenderer(rb)
	n := r.Submit([]DrawItem{
		{Technique: "t", Distance: 1, Vertices: vb, Indices: ib, Count: 3},
		{Technique: "t", Distance: 2, Vertices: vb, Indices: ib, Count: 3, First: 3},
		{Technique: "t", Distance: 3, Vertices: vb2, Count: 3, Primitive: common.PrimitiveLines},
	})
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, r.DrawCalls())

	assert.Len(t, rb.CallsOf(CallSetStream), 2)
	assert.Len(t, rb.CallsOf(CallSetIndexBuffer), 1)
	indexed := rb.CallsOf(CallDrawIndexed)
	require.Len(t, indexed, 2)
	assert.Equal(t, 3, indexed[1].First)
	plain := rb.CallsOf(CallDraw)
	require.Len(t, plain, 1)
	assert.Equal(t, common.PrimitiveLines, plain[0].Primitive)
}

func TestSubmitSkipsRejectedTechniques(t *testing.T) {
	rb := NewRecordingBackend()
	rb.RejectTechnique("missing")
	vb, ib := newBuffers(t, rb)

	r := NewRenderer(rb, WithSortOrder(SortBackToFront), WithInitialCapacity(8))
	n := r.Submit([]DrawItem{
		{Technique: "missing", Vertices: vb, Indices: ib, Count: 3},
		{Technique: "ok", Distance: 1, Vertices: vb, Indices: ib, Count: 3},
		{Technique: "ok", Distance: 4, Vertices: vb, Indices: ib, Count: 3},
		{Technique: "ok", Vertices: vb, Count: 0},
	})
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, r.Skipped())
	assert.Equal(t, []string{"ok", "ok"}, drawnTechniques(rb))
}

func TestSubmitMergesTransformsAfterSetViewProjection(t *testing.T) {
	rb := NewRecordingBackend()
	vb, ib := newBuffers(t, rb)
	material := map[string]any{"color": mgl32.Vec4{1, 0, 0, 1}}
	moved := mgl32.Translate3D(0, 0, -5)

	r := NewRenderer(rb)
	r.Submit([]DrawItem{{Technique: "t", Vertices: vb, Indices: ib, Count: 3, Parameters: material}})
	first := rb.CallsOf(CallSetTechniqueParameters)
	require.Len(t, first, 1)
	assert.NotContains(t, first[0].Parameters, ParamWorld)

	vp := mgl32.Perspective(1, 1, 0.1, 100)
	r.SetViewProjection(vp)
	rb.Reset()
	r.Submit([]DrawItem{
		{Technique: "t", Distance: 1, Vertices: vb, Indices: ib, Count: 3, Parameters: material, World: moved},
		{Technique: "t", Distance: 2, Vertices: vb, Indices: ib, Count: 3, Parameters: material},
	})

	calls := rb.CallsOf(CallSetTechniqueParameters)
	require.Len(t, calls, 2)
	assert.Equal(t, vp, calls[0].Parameters[ParamViewProjection])
	assert.Equal(t, moved, calls[0].Parameters[ParamWorld])
	assert.Equal(t, mgl32.Ident4(), calls[1].Parameters[ParamWorld])
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, calls[1].Parameters["color"])

	// the material map itself is left untouched
	assert.Len(t, material, 1)
}

func TestRecordingBackendAllocationBudget(t *testing.T) {
	rb := NewRecordingBackend()
	rb.SetAllocationBudget(1)

	_, err := rb.CreateVertexBuffer("a", []float32{1})
	require.NoError(t, err)
	_, err = rb.CreateIndexBuffer("b", []uint32{1})
	assert.ErrorIs(t, err, ErrAllocationFailed)
	assert.Len(t, rb.Buffers(), 1)

	b := rb.Buffers()[0]
	assert.Equal(t, 4, b.Size())
	b.Release()
	assert.True(t, b.Released)
}

func TestPackParameters(t *testing.T) {
	layout := []TechniqueParameter{
		{Name: "color", Slots: 1},
		{Name: "world", Slots: 4},
		{Name: "shininess"},
		{Name: "tint", Slots: 1},
	}
	assert.Equal(t, 28, ParameterBlockSize(layout))

	params := map[string]any{
		"color":     mgl32.Vec3{1, 0.5, 0.25},
		"world":     mgl32.Translate3D(1, 2, 3),
		"shininess": 32.0,
		"tint":      []any{0.5, 0.5, "x", 1.0},
		"unused":    1,
	}
	out := PackParameters(layout, params, nil)
	require.Len(t, out, 28)

	assert.Equal(t, []float32{1, 0.5, 0.25, 0}, out[0:4])
	assert.Equal(t, []float32{1, 2, 3, 1}, out[16:20])
	assert.Equal(t, float32(32), out[20])
	assert.Equal(t, []float32{0.5, 0.5, 0, 1}, out[24:28])

	again := PackParameters(layout, map[string]any{}, out)
	assert.Same(t, &out[0], &again[0])
	assert.Equal(t, make([]float32, 28), again)
}

func TestVertexStride(t *testing.T) {
	attrs := []common.VertexAttribute{
		{Semantic: common.SemanticPosition, Components: 3, Offset: 0},
		{Semantic: common.SemanticNormal, Components: 3, Offset: 3},
		{Semantic: common.SemanticTexcoord, Components: 2, Offset: 6},
	}
	assert.Equal(t, 8, VertexStride(attrs))
	assert.Equal(t, 3, VertexStride(posOnly))
	assert.Equal(t, 0, VertexStride(nil))
}
