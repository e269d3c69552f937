package common

// Key codes reported by the window package. They match GLFW, which uses ASCII for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyW = 87
	KeyA = 65
	KeyS = 83
	KeyD = 68
	KeyQ = 81
	KeyE = 69

	// Debug toggles used by the demos.
	KeyP = 80 // portal culling
	KeyF = 70 // freeze the visibility camera

	KeySpace     = 32
	KeyEsc       = 256
	KeyLeftShift = 340
)
