package renderer

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-vis/common"
)

// ErrUnknownTechnique is returned by RecordingBackend.SetTechnique for techniques it was told to reject.
var ErrUnknownTechnique = errors.New("renderer: unknown technique")

// ErrAllocationFailed is returned by RecordingBackend when its allocation budget is exhausted.
var ErrAllocationFailed = errors.New("renderer: allocation failed")

// CallKind identifies a recorded backend call.
type CallKind int

const (
	CallSetTechnique CallKind = iota
	CallSetTechniqueParameters
	CallSetStream
	CallSetIndexBuffer
	CallDraw
	CallDrawIndexed
)

func (k CallKind) String() string {
	switch k {
	case CallSetTechnique:
		return "SetTechnique"
	case CallSetTechniqueParameters:
		return "SetTechniqueParameters"
	case CallSetStream:
		return "SetStream"
	case CallSetIndexBuffer:
		return "SetIndexBuffer"
	case CallDraw:
		return "Draw"
	case CallDrawIndexed:
		return "DrawIndexed"
	}
	return fmt.Sprintf("CallKind(%d)", int(k))
}

// Call is one recorded backend call. Only the fields relevant to Kind are set.
type Call struct {
	Kind       CallKind
	Technique  string
	Parameters map[string]any
	Buffer     Buffer
	Attributes []common.VertexAttribute
	Primitive  common.PrimitiveType
	Count      int
	First      int
}

// RecordedBuffer is the Buffer handed out by RecordingBackend. It keeps a copy of the uploaded data.
type RecordedBuffer struct {
	label    string
	Vertices []float32
	Indices  []uint32
	Released bool
}

func (b *RecordedBuffer) Label() string { return b.label }

func (b *RecordedBuffer) Size() int {
	return 4 * (len(b.Vertices) + len(b.Indices))
}

func (b *RecordedBuffer) Release() { b.Released = true }

// RecordingBackend is an in-memory Backend and Device that records every call.
// It is safe for concurrent use.
type RecordingBackend struct {
	mu *sync.Mutex

	calls    []Call
	buffers  []*RecordedBuffer
	rejected map[string]bool
	budget   int // remaining successful allocations, negative means unlimited
}

var (
	_ Backend = &RecordingBackend{}
	_ Device  = &RecordingBackend{}
)

// NewRecordingBackend creates an empty recording backend with an unlimited allocation budget.
func NewRecordingBackend() *RecordingBackend {
	return &RecordingBackend{
		mu:       &sync.Mutex{},
		rejected: make(map[string]bool),
		budget:   -1,
	}
}

// RejectTechnique makes SetTechnique fail with ErrUnknownTechnique for name.
func (r *RecordingBackend) RejectTechnique(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected[name] = true
}

// SetAllocationBudget allows n more buffer allocations before every further one fails
// with ErrAllocationFailed. A negative n removes the limit.
func (r *RecordingBackend) SetAllocationBudget(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budget = n
}

// Calls returns a copy of the recorded calls.
func (r *RecordingBackend) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// CallsOf returns the recorded calls of the given kind.
func (r *RecordingBackend) CallsOf(kind CallKind) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Buffers returns every buffer created so far, in creation order.
func (r *RecordingBackend) Buffers() []*RecordedBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.buffers)
}

// Reset forgets the recorded calls. Created buffers are kept.
func (r *RecordingBackend) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = r.calls[:0]
}

func (r *RecordingBackend) allocate(label string) (*RecordedBuffer, error) {
	if r.budget == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAllocationFailed, label)
	}
	if r.budget > 0 {
		r.budget--
	}
	b := &RecordedBuffer{label: label}
	r.buffers = append(r.buffers, b)
	return b, nil
}

func (r *RecordingBackend) CreateVertexBuffer(label string, data []float32) (Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.allocate(label)
	if err != nil {
		return nil, err
	}
	b.Vertices = slices.Clone(data)
	return b, nil
}

func (r *RecordingBackend) CreateIndexBuffer(label string, data []uint32) (Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.allocate(label)
	if err != nil {
		return nil, err
	}
	b.Indices = slices.Clone(data)
	return b, nil
}

func (r *RecordingBackend) SetTechnique(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejected[name] {
		return fmt.Errorf("%w: %s", ErrUnknownTechnique, name)
	}
	r.calls = append(r.calls, Call{Kind: CallSetTechnique, Technique: name})
	return nil
}

func (r *RecordingBackend) SetTechniqueParameters(params map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: CallSetTechniqueParameters, Parameters: maps.Clone(params)})
}

func (r *RecordingBackend) SetStream(buffer Buffer, attributes []common.VertexAttribute, offset int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: CallSetStream, Buffer: buffer, Attributes: attributes, First: offset})
}

func (r *RecordingBackend) SetIndexBuffer(buffer Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: CallSetIndexBuffer, Buffer: buffer})
}

func (r *RecordingBackend) Draw(primitive common.PrimitiveType, vertexCount, firstVertex int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: CallDraw, Primitive: primitive, Count: vertexCount, First: firstVertex})
}

func (r *RecordingBackend) DrawIndexed(primitive common.PrimitiveType, indexCount, firstIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Kind: CallDrawIndexed, Primitive: primitive, Count: indexCount, First: firstIndex})
}
