package renderer

import (
	"github.com/go-gl/mathgl/mgl32"
)

// TechniqueParameter declares one named parameter of a technique's uniform block.
// Every parameter starts on a 16-byte boundary and occupies Slots vec4 slots.
type TechniqueParameter struct {
	Name  string
	Slots int
}

// ParameterBlockSize returns the size in float32 components of the uniform block described by layout.
//
// Parameters:
//   - layout: the declared parameters
//
// Returns:
//   - int: the block size in float32 units
func ParameterBlockSize(layout []TechniqueParameter) int {
	n := 0
	for _, p := range layout {
		n += max(p.Slots, 1) * 4
	}
	return n
}

// PackParameters writes params into out following layout. Missing parameters leave their
// slots zeroed; values wider than their slots are truncated. Supported values are scalars
// (float32, float64, int, bool), numeric slices ([]float32, []float64, and []any holding
// float64 as decoded from JSON) and the mgl32 vector and Mat4 types.
//
// Parameters:
//   - layout: the declared parameters
//   - params: parameter values keyed by name
//   - out: destination reused when large enough
//
// Returns:
//   - []float32: the packed block
func PackParameters(layout []TechniqueParameter, params map[string]any, out []float32) []float32 {
	size := ParameterBlockSize(layout)
	if cap(out) < size {
		out = make([]float32, size)
	}
	out = out[:size]
	clear(out)

	offset := 0
	for _, p := range layout {
		width := max(p.Slots, 1) * 4
		dst := out[offset : offset+width]
		offset += width

		v, ok := params[p.Name]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case float32:
			dst[0] = val
		case float64:
			dst[0] = float32(val)
		case int:
			dst[0] = float32(val)
		case bool:
			if val {
				dst[0] = 1
			}
		case []float32:
			copy(dst, val)
		case []float64:
			for i := 0; i < len(val) && i < len(dst); i++ {
				dst[i] = float32(val[i])
			}
		case []any:
			for i := 0; i < len(val) && i < len(dst); i++ {
				if f, isNum := val[i].(float64); isNum {
					dst[i] = float32(f)
				}
			}
		case mgl32.Vec2:
			copy(dst, val[:])
		case mgl32.Vec3:
			copy(dst, val[:])
		case mgl32.Vec4:
			copy(dst, val[:])
		case mgl32.Mat4:
			copy(dst, val[:])
		}
	}
	return out
}
