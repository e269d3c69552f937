package shader

import (
	"strconv"
	"strings"
)

// uniformLayout returns the host-shareable size and alignment of a scalar, vector or matrix type
// usable in a uniform block. Both the generic (vec3<f32>) and the alias (vec3f) spellings are
// accepted. f16 types are not, they need an extension the backend does not enable.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
func uniformLayout(typeName string) (wgslTypeLayout, bool) {
	switch typeName {
	case "f32", "i32", "u32":
		return wgslTypeLayout{4, 4}, true
	}

	var rows, cols int
	var scalar string
	switch {
	case strings.HasPrefix(typeName, "vec") && len(typeName) > 4:
		rows, cols = int(typeName[3]-'0'), 1
		scalar = typeName[4:]
	case strings.HasPrefix(typeName, "mat") && len(typeName) > 6 && typeName[4] == 'x':
		cols, rows = int(typeName[3]-'0'), int(typeName[5]-'0')
		scalar = typeName[6:]
	default:
		return wgslTypeLayout{}, false
	}
	if rows < 2 || rows > 4 || cols < 1 || cols > 4 {
		return wgslTypeLayout{}, false
	}

	switch scalar {
	case "f", "<f32>":
	case "i", "u", "<i32>", "<u32>":
		if cols > 1 {
			return wgslTypeLayout{}, false
		}
	default:
		return wgslTypeLayout{}, false
	}

	// vec3 aligns like vec4; a matrix is an array of its column vectors.
	align := uint64(rows) * 4
	if rows == 3 {
		align = 16
	}
	if cols == 1 {
		return wgslTypeLayout{uint64(rows) * 4, align}, true
	}
	return wgslTypeLayout{uint64(cols) * roundUpAlign(align, uint64(rows)*4), align}, true
}

// roundUpAlign rounds value up to a multiple of alignment, which must be a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveTypeLayout resolves a member type from the built-in types, the structs resolved so far
// and fixed-size arrays of either. Runtime-sized arrays cannot appear in a uniform block and do
// not resolve.
func resolveTypeLayout(typeName string, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if layout, ok := uniformLayout(typeName); ok {
		return layout, true
	}
	if layout, ok := knownTypes[typeName]; ok {
		return layout, true
	}
	if !strings.HasPrefix(typeName, "array<") || !strings.HasSuffix(typeName, ">") {
		return wgslTypeLayout{}, false
	}

	parts := splitAtTopLevelCommas(typeName[len("array<") : len(typeName)-1])
	if len(parts) != 2 {
		return wgslTypeLayout{}, false
	}
	elem, ok := resolveTypeLayout(strings.TrimSpace(parts[0]), knownTypes)
	if !ok {
		return wgslTypeLayout{}, false
	}
	count, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil || count == 0 {
		return wgslTypeLayout{}, false
	}
	// Uniform arrays stride on 16 bytes.
	align := roundUpAlign(16, elem.align)
	return wgslTypeLayout{count * roundUpAlign(align, elem.size), align}, true
}

// computeStructLayout places each member at its next aligned offset. Uniform rules round a struct's
// alignment up to 16. Builtins carry no storage.
func computeStructLayout(ps parsedStruct, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	var offset uint64
	align := uint64(16)
	for _, f := range ps.fields {
		if f.isBuiltin {
			continue
		}
		layout, ok := resolveTypeLayout(f.typeName, knownTypes)
		if !ok {
			return wgslTypeLayout{}, false
		}
		offset = roundUpAlign(layout.align, offset) + layout.size
		align = max(align, layout.align)
	}
	return wgslTypeLayout{roundUpAlign(align, offset), align}, true
}

// computeStructSizes resolves every struct that can live in a uniform block. Structs may refer to
// structs declared after them, so passes repeat while any struct resolves.
func computeStructSizes(structs []parsedStruct) map[string]wgslTypeLayout {
	resolved := make(map[string]wgslTypeLayout, len(structs))
	for progress := true; progress; {
		progress = false
		for _, ps := range structs {
			if _, done := resolved[ps.name]; done {
				continue
			}
			if layout, ok := computeStructLayout(ps, resolved); ok {
				resolved[ps.name] = layout
				progress = true
			}
		}
	}
	return resolved
}

// stripComments blanks out line comments and nested block comments, keeping line breaks.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	line := false
	for i := 0; i < len(source); i++ {
		c := source[i]
		var next byte
		if i+1 < len(source) {
			next = source[i+1]
		}
		switch {
		case line:
			if c == '\n' {
				line = false
				sb.WriteByte(c)
			}
		case c == '/' && next == '*':
			depth++
			i++
		case depth > 0 && c == '*' && next == '/':
			depth--
			i++
		case depth > 0:
			if c == '\n' {
				sb.WriteByte(c)
			}
		case c == '/' && next == '/':
			line = true
			i++
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// splitAtTopLevelCommas splits s at commas outside angle brackets and parentheses, so
// array<vec4<f32>, 4> and @interpolate(flat, either) stay whole.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// vectorComponents returns the float32 component count of a vertex input type.
func vectorComponents(typeName string) (int, bool) {
	if typeName == "f32" {
		return 1, true
	}
	if !strings.HasPrefix(typeName, "vec") || len(typeName) < 5 {
		return 0, false
	}
	if s := typeName[4:]; s != "f" && s != "<f32>" {
		return 0, false
	}
	n := int(typeName[3] - '0')
	return n, n >= 2 && n <= 4
}
