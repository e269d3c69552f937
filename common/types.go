package common

// PrimitiveType identifies how a vertex stream is assembled into primitives.
type PrimitiveType int

const (
	// PrimitiveTriangles draws independent triangles, three indices each.
	PrimitiveTriangles PrimitiveType = iota
	// PrimitiveLines draws independent line segments, two indices each.
	PrimitiveLines
	// PrimitivePoints draws one point per index.
	PrimitivePoints
)

// VerticesPerPrimitive returns the number of indices consumed by one primitive.
func (p PrimitiveType) VerticesPerPrimitive() int {
	switch p {
	case PrimitiveLines:
		return 2
	case PrimitivePoints:
		return 1
	default:
		return 3
	}
}

func (p PrimitiveType) String() string {
	switch p {
	case PrimitiveLines:
		return "lines"
	case PrimitivePoints:
		return "points"
	default:
		return "triangles"
	}
}

// Semantic names a vertex attribute in an interleaved vertex stream.
type Semantic string

const (
	SemanticPosition Semantic = "POSITION"
	SemanticNormal   Semantic = "NORMAL"
	SemanticTangent  Semantic = "TANGENT"
	SemanticBinormal Semantic = "BINORMAL"
	SemanticTexcoord Semantic = "TEXCOORD0"
	SemanticColor    Semantic = "COLOR"
	SemanticBlendIdx Semantic = "BLENDINDICES"
	SemanticBlendWgt Semantic = "BLENDWEIGHT"
)

// VertexAttribute describes one attribute inside an interleaved vertex.
type VertexAttribute struct {
	Semantic   Semantic
	Components int // float32 components
	Offset     int // in float32 units from the vertex start
}
