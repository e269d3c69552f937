package shader

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-vis/common"
	"github.com/Carmen-Shannon/oxy-vis/engine/renderer"
)

var (
	// ErrNoVertexEntry is returned when the source declares no @vertex function.
	ErrNoVertexEntry = errors.New("shader: no @vertex entry point")

	// ErrVertexInput is returned for vertex inputs the interleaved float32 stream cannot feed.
	ErrVertexInput = errors.New("shader: unsupported vertex input")

	// ErrParameterLayout is returned when a parameter block member does not start on its own
	// 16-byte slot.
	ErrParameterLayout = errors.New("shader: parameter block does not follow the vec4 slot layout")
)

// Reflection is what a technique needs to know about its WGSL source.
type Reflection struct {
	VertexEntry   string
	FragmentEntry string

	// Attributes is the interleaved vertex layout, in shader location order.
	Attributes []common.VertexAttribute

	// Parameters describes the uniform block at @group(0) @binding(0), if any.
	Parameters []renderer.TechniqueParameter
}

// Reflect reads the entry points, vertex inputs and parameter block of a WGSL technique.
//
// Vertex inputs are the @location parameters of the vertex entry point, directly or through an
// input struct. They must use consecutive locations from 0 and float32 scalar or vector types.
// The parameter block members are mapped one to one onto renderer.TechniqueParameter, which
// requires each member to start on a 16-byte boundary.
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - Reflection: the reflected technique interface
//   - error: ErrNoVertexEntry, ErrVertexInput or ErrParameterLayout
func Reflect(source string) (Reflection, error) {
	cleaned := stripComments(source)
	structs := parseStructBlocks(cleaned)

	var r Reflection
	r.VertexEntry = parseEntryPoint(cleaned, vertexEntryRegex)
	r.FragmentEntry = parseEntryPoint(cleaned, fragmentEntryRegex)
	if r.VertexEntry == "" {
		return Reflection{}, ErrNoVertexEntry
	}

	attrs, err := reflectVertexInputs(cleaned, r.VertexEntry, structs)
	if err != nil {
		return Reflection{}, err
	}
	r.Attributes = attrs

	params, err := reflectParameters(cleaned, structs)
	if err != nil {
		return Reflection{}, err
	}
	r.Parameters = params
	return r, nil
}

func reflectVertexInputs(source, entry string, structs []parsedStruct) ([]common.VertexAttribute, error) {
	params, ok := parseFunctionParams(source, entry)
	if !ok {
		return nil, fmt.Errorf("%w: cannot read parameters of %s", ErrVertexInput, entry)
	}

	var inputs []parsedField
	for _, p := range params {
		switch {
		case p.isBuiltin:
		case p.location >= 0:
			inputs = append(inputs, p)
		default:
			idx := slices.IndexFunc(structs, func(s parsedStruct) bool { return s.name == p.typeName })
			if idx < 0 {
				return nil, fmt.Errorf("%w: parameter %s has no location", ErrVertexInput, p.name)
			}
			for _, f := range structs[idx].fields {
				if !f.isBuiltin && f.location >= 0 {
					inputs = append(inputs, f)
				}
			}
		}
	}
	slices.SortFunc(inputs, func(a, b parsedField) int { return a.location - b.location })

	attrs := make([]common.VertexAttribute, 0, len(inputs))
	offset := 0
	for i, in := range inputs {
		if in.location != i {
			return nil, fmt.Errorf("%w: locations must be consecutive from 0, got %d at %s", ErrVertexInput, in.location, in.name)
		}
		n, ok := vectorComponents(in.typeName)
		if !ok {
			return nil, fmt.Errorf("%w: %s has type %s", ErrVertexInput, in.name, in.typeName)
		}
		attrs = append(attrs, common.VertexAttribute{Semantic: semanticFor(in.name), Components: n, Offset: offset})
		offset += n
	}
	return attrs, nil
}

func reflectParameters(source string, structs []parsedStruct) ([]renderer.TechniqueParameter, error) {
	bindings := parseBindings(source)
	idx := slices.IndexFunc(bindings, func(b parsedBinding) bool {
		return b.group == 0 && b.binding == 0 && b.addressSpace == "uniform"
	})
	if idx < 0 {
		return nil, nil
	}
	block := bindings[idx]
	known := computeStructSizes(structs)

	sidx := slices.IndexFunc(structs, func(s parsedStruct) bool { return s.name == block.typeName })
	if sidx < 0 {
		layout, ok := resolveTypeLayout(block.typeName, known)
		if !ok {
			return nil, fmt.Errorf("%w: unknown type %s", ErrParameterLayout, block.typeName)
		}
		return []renderer.TechniqueParameter{{Name: block.varName, Slots: slotsFor(layout.size)}}, nil
	}

	var params []renderer.TechniqueParameter
	var offset, slotOffset uint64
	for _, f := range structs[sidx].fields {
		layout, ok := resolveTypeLayout(f.typeName, known)
		if !ok {
			return nil, fmt.Errorf("%w: member %s has unsized type %s", ErrParameterLayout, f.name, f.typeName)
		}
		offset = roundUpAlign(layout.align, offset)
		if offset != slotOffset*16 {
			return nil, fmt.Errorf("%w: member %s starts at byte %d", ErrParameterLayout, f.name, offset)
		}
		slots := slotsFor(layout.size)
		params = append(params, renderer.TechniqueParameter{Name: f.name, Slots: slots})
		offset += layout.size
		slotOffset += uint64(slots)
	}
	return params, nil
}

func slotsFor(size uint64) int {
	return int(max(roundUpAlign(16, size)/16, 1))
}

// semanticFor guesses the stream semantic of a vertex input from its name.
func semanticFor(name string) common.Semantic {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "binormal"), strings.Contains(n, "bitangent"):
		return common.SemanticBinormal
	case strings.Contains(n, "normal"):
		return common.SemanticNormal
	case strings.Contains(n, "tangent"):
		return common.SemanticTangent
	case strings.Contains(n, "pos"):
		return common.SemanticPosition
	case strings.Contains(n, "uv"), strings.Contains(n, "texcoord"):
		return common.SemanticTexcoord
	case strings.Contains(n, "color"), strings.Contains(n, "colour"):
		return common.SemanticColor
	case strings.Contains(n, "weight"):
		return common.SemanticBlendWgt
	case strings.Contains(n, "joint"), strings.Contains(n, "indices"):
		return common.SemanticBlendIdx
	}
	return common.Semantic(strings.ToUpper(name))
}
