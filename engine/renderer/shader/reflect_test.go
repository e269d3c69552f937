package shader

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/Carmen-Shannon/oxy-vis/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const litSource = `
// Per-draw block.
struct Params {
	viewProjection: mat4x4<f32>,
	world: mat4x4<f32>,
	color: vec4<f32>,
	/* a vec3 still takes a whole slot */
	emissive: vec3<f32>,
	gloss: vec4<f32>,
};
@group(0) @binding(0) var<uniform> params: Params;

struct VsIn {
	@location(1) normal: vec3<f32>,
	@location(0) position: vec3<f32>,
	@location(2) uv: vec2<f32>,
};

struct VsOut {
	@builtin(position) position: vec4<f32>,
	@location(0) @interpolate(perspective, center) normal: vec3<f32>,
};

@vertex
fn vs_main(in: VsIn, @builtin(vertex_index) vi: u32) -> VsOut {
	var out: VsOut;
	out.position = params.viewProjection * params.world * vec4<f32>(in.position, 1.0);
	out.normal = in.normal;
	return out;
}

@fragment
fn fs_main(in: VsOut) -> @location(0) vec4<f32> {
	return params.color;
}
`

func TestReflectStructInputsAndParameters(t *testing.T) {
	r, err := Reflect(litSource)
	require.NoError(t, err)

	assert.Equal(t, "vs_main", r.VertexEntry)
	assert.Equal(t, "fs_main", r.FragmentEntry)
	assert.Equal(t, []common.VertexAttribute{
		{Semantic: common.SemanticPosition, Components: 3, Offset: 0},
		{Semantic: common.SemanticNormal, Components: 3, Offset: 3},
		{Semantic: common.SemanticTexcoord, Components: 2, Offset: 6},
	}, r.Attributes)
	assert.Equal(t, []renderer.TechniqueParameter{
		{Name: "viewProjection", Slots: 4},
		{Name: "world", Slots: 4},
		{Name: "color", Slots: 1},
		{Name: "emissive", Slots: 1},
		{Name: "gloss", Slots: 1},
	}, r.Parameters)
	assert.Equal(t, 44, renderer.ParameterBlockSize(r.Parameters))
}

func TestReflectInlineInputsWithoutParameters(t *testing.T) {
	r, err := Reflect(`
@vertex fn main_vs(@location(0) pos: vec3f, @location(1) color: vec4f) -> @builtin(position) vec4f {
	return vec4f(pos, 1.0);
}`)
	require.NoError(t, err)
	assert.Equal(t, "main_vs", r.VertexEntry)
	assert.Empty(t, r.FragmentEntry)
	assert.Empty(t, r.Parameters)
	require.Len(t, r.Attributes, 2)
	assert.Equal(t, common.SemanticColor, r.Attributes[1].Semantic)
	assert.Equal(t, 4, r.Attributes[1].Components)
	assert.Equal(t, 3, r.Attributes[1].Offset)
}

func TestReflectRejectsUnsupportedSources(t *testing.T) {
	_, err := Reflect(`@fragment fn fs() -> @location(0) vec4f { return vec4f(1.0); }`)
	assert.ErrorIs(t, err, ErrNoVertexEntry)

	_, err = Reflect(`@vertex fn vs(@location(1) p: vec3f) -> @builtin(position) vec4f { return vec4f(p, 1.0); }`)
	assert.ErrorIs(t, err, ErrVertexInput)

	_, err = Reflect(`@vertex fn vs(@location(0) p: vec3<i32>) -> @builtin(position) vec4f { return vec4f(1.0); }`)
	assert.ErrorIs(t, err, ErrVertexInput)

	_, err = Reflect(`
struct Packed { a: f32, b: f32, };
@group(0) @binding(0) var<uniform> params: Packed;
@vertex fn vs(@location(0) p: vec3f) -> @builtin(position) vec4f { return vec4f(p, params.a); }`)
	assert.ErrorIs(t, err, ErrParameterLayout)
}

func TestReflectBareUniform(t *testing.T) {
	r, err := Reflect(`
@group(0) @binding(0) var<uniform> viewProjection: mat4x4<f32>;
@vertex fn vs(@location(0) p: vec3f) -> @builtin(position) vec4f { return viewProjection * vec4f(p, 1.0); }`)
	require.NoError(t, err)
	assert.Equal(t, []renderer.TechniqueParameter{{Name: "viewProjection", Slots: 4}}, r.Parameters)
}

func TestSplitAtTopLevelCommas(t *testing.T) {
	parts := splitAtTopLevelCommas("a: array<vec4<f32>, 4>, @interpolate(flat, either) b: u32")
	require.Len(t, parts, 2)
	assert.Equal(t, "a: array<vec4<f32>, 4>", parts[0])
}

func TestStructLayouts(t *testing.T) {
	sizes := computeStructSizes(parseStructBlocks(`
struct Inner { a: vec3<f32>, b: f32, };
struct Outer { inner: Inner, items: array<Inner, 3>, tail: vec2<f32>, };`))
	assert.Equal(t, wgslTypeLayout{size: 16, align: 16}, sizes["Inner"])
	assert.Equal(t, wgslTypeLayout{size: 80, align: 16}, sizes["Outer"])
}

func TestUniformLayout(t *testing.T) {
	tests := []struct {
		typeName string
		want     wgslTypeLayout
		ok       bool
	}{
		{"f32", wgslTypeLayout{4, 4}, true},
		{"vec2f", wgslTypeLayout{8, 8}, true},
		{"vec3<f32>", wgslTypeLayout{12, 16}, true},
		{"vec4u", wgslTypeLayout{16, 16}, true},
		{"mat2x2<f32>", wgslTypeLayout{16, 8}, true},
		{"mat3x3f", wgslTypeLayout{48, 16}, true},
		{"mat4x4<f32>", wgslTypeLayout{64, 16}, true},
		{"array<f32, 4>", wgslTypeLayout{64, 16}, true},
		{"array<vec4f>", wgslTypeLayout{}, false},
		{"vec4h", wgslTypeLayout{}, false},
		{"mat4x4<i32>", wgslTypeLayout{}, false},
		{"sampler", wgslTypeLayout{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			got, ok := resolveTypeLayout(tt.typeName, nil)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripCommentsKeepsLines(t *testing.T) {
	src := "a /* x /* nested */ y */ b // tail\n/* one\ntwo */c"
	assert.Equal(t, "a  b \n\nc", stripComments(src))
}
