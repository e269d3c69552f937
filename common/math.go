package common

import (
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// Perspective creates a perspective projection matrix for the WebGPU clip space,
// where depth maps to [0, 1] instead of OpenGL's [-1, 1].
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / math32.Tan(fovY/2.0)
	var out mgl32.Mat4
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	return out
}

// Mat4FromSlice builds a matrix from either 16 column-major values or 12 values
// holding the three basis columns followed by the translation (4x3 affine form).
// Any other length returns the identity.
//
// Parameters:
//   - v: the source values
//
// Returns:
//   - mgl32.Mat4: the matrix
//   - bool: false if the length was not 12 or 16
func Mat4FromSlice(v []float32) (mgl32.Mat4, bool) {
	switch len(v) {
	case 16:
		var m mgl32.Mat4
		copy(m[:], v)
		return m, true
	case 12:
		return mgl32.Mat4{
			v[0], v[1], v[2], 0,
			v[3], v[4], v[5], 0,
			v[6], v[7], v[8], 0,
			v[9], v[10], v[11], 1,
		}, true
	}
	return mgl32.Ident4(), false
}

// Vec3FromSlice returns the first three values of v as a vector, or the zero vector if v is short.
func Vec3FromSlice(v []float32) mgl32.Vec3 {
	if len(v) < 3 {
		return mgl32.Vec3{}
	}
	return mgl32.Vec3{v[0], v[1], v[2]}
}
