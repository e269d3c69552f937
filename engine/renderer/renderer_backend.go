package renderer

import "github.com/Carmen-Shannon/oxy-vis/common"

// Buffer is an opaque handle to vertex or index data owned by a Device.
type Buffer interface {
	// Label returns the debug label the buffer was created with.
	//
	// Returns:
	//   - string: the buffer label
	Label() string

	// Size returns the buffer size in bytes.
	//
	// Returns:
	//   - int: the size in bytes
	Size() int

	// Release frees the device memory backing the buffer. The handle must not be used afterwards.
	Release()
}

// Device allocates GPU-resident buffers.
type Device interface {
	// CreateVertexBuffer uploads an interleaved float32 vertex stream.
	//
	// Parameters:
	//   - label: debug label for the buffer
	//   - data: the interleaved vertex data
	//
	// Returns:
	//   - Buffer: the created buffer
	//   - error: an error if the allocation fails
	CreateVertexBuffer(label string, data []float32) (Buffer, error)

	// CreateIndexBuffer uploads a list of 32-bit indices.
	//
	// Parameters:
	//   - label: debug label for the buffer
	//   - data: the indices
	//
	// Returns:
	//   - Buffer: the created buffer
	//   - error: an error if the allocation fails
	CreateIndexBuffer(label string, data []uint32) (Buffer, error)
}

// Backend receives draw submissions. State set through SetTechnique, SetTechniqueParameters,
// SetStream and SetIndexBuffer persists until it is set again, so consecutive draws sharing
// state only need to issue the calls that change it.
type Backend interface {
	// SetTechnique selects the named technique (pipeline) for subsequent draws.
	//
	// Parameters:
	//   - name: the technique name
	//
	// Returns:
	//   - error: an error if the technique is unknown to the backend
	SetTechnique(name string) error

	// SetTechniqueParameters sets the parameter values consumed by the current technique.
	// Parameters the technique does not declare are ignored.
	//
	// Parameters:
	//   - params: parameter values keyed by name
	SetTechniqueParameters(params map[string]any)

	// SetStream binds an interleaved vertex buffer.
	//
	// Parameters:
	//   - buffer: the vertex buffer
	//   - attributes: the attribute layout of one vertex
	//   - offset: byte offset of the first vertex in the buffer
	SetStream(buffer Buffer, attributes []common.VertexAttribute, offset int)

	// SetIndexBuffer binds a 32-bit index buffer for DrawIndexed.
	//
	// Parameters:
	//   - buffer: the index buffer
	SetIndexBuffer(buffer Buffer)

	// Draw submits non-indexed primitives from the bound stream.
	//
	// Parameters:
	//   - primitive: how vertices are assembled
	//   - vertexCount: number of vertices to draw
	//   - firstVertex: index of the first vertex
	Draw(primitive common.PrimitiveType, vertexCount, firstVertex int)

	// DrawIndexed submits indexed primitives from the bound stream and index buffer.
	//
	// Parameters:
	//   - primitive: how vertices are assembled
	//   - indexCount: number of indices to draw
	//   - firstIndex: position of the first index in the index buffer
	DrawIndexed(primitive common.PrimitiveType, indexCount, firstIndex int)
}

// VertexStride returns the size in float32 components of one vertex described by attrs.
//
// Parameters:
//   - attrs: the attribute layout
//
// Returns:
//   - int: the stride in float32 units
func VertexStride(attrs []common.VertexAttribute) int {
	stride := 0
	for _, a := range attrs {
		stride = max(stride, a.Offset+a.Components)
	}
	return stride
}
