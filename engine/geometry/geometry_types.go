package geometry

// SourceData is one vertex attribute source of a shape: Stride float32 components per entry.
// Min and Max are the per-component bounds written by the exporter.
type SourceData struct {
	Stride int       `json:"stride"`
	Data   []float32 `json:"data"`
	Min    []float32 `json:"min,omitempty"`
	Max    []float32 `json:"max,omitempty"`
}

// InputData binds a semantic to a source. Offset is the position of this input's index
// inside each multi-index vertex tuple of the surface index lists.
type InputData struct {
	Source string `json:"source"`
	Offset int    `json:"offset"`
}

// SurfaceData is one index list of a shape. Exactly one of Triangles and Lines is expected.
type SurfaceData struct {
	Triangles     []uint32 `json:"triangles,omitempty"`
	Lines         []uint32 `json:"lines,omitempty"`
	NumPrimitives int      `json:"numPrimitives"`
}

// ShapeData is a geometry entry of a scene document. Shapes without Surfaces carry a single
// anonymous surface in Triangles / Lines / NumPrimitives.
type ShapeData struct {
	Sources       map[string]SourceData  `json:"sources"`
	Inputs        map[string]InputData   `json:"inputs"`
	Surfaces      map[string]SurfaceData `json:"surfaces,omitempty"`
	Triangles     []uint32               `json:"triangles,omitempty"`
	Lines         []uint32               `json:"lines,omitempty"`
	NumPrimitives int                    `json:"numPrimitives,omitempty"`
	Skeleton      string                 `json:"skeleton,omitempty"`
}

// MaterialData is a material entry of a scene document. String parameters name textures.
type MaterialData struct {
	Effect     string         `json:"effect,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// EffectData is an effect entry of a scene document, providing defaults for the materials using it.
type EffectData struct {
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}
